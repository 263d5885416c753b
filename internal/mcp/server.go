package mcp

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/searchlabs/catalog-search/internal/search"
)

type Server struct {
	searcher *search.Searcher
	logger   *log.Logger
}

func New(searcher *search.Searcher, logger *log.Logger) *Server {
	return &Server{
		searcher: searcher,
		logger:   logger,
	}
}

func (s *Server) Run() error {
	// Create MCP server
	mcpServer := server.NewMCPServer(
		"Catalog Search",
		"1.0.0",
	)

	mcpServer.AddTool(mcp.NewTool("search_products",
		mcp.WithDescription("Search the product catalog with a natural-language query"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query - what you're looking for"),
		),
		mcp.WithString("limit",
			mcp.Description("Maximum number of results to return (default: 10, max: 20)"),
		),
	), s.searchProductsHandler)

	mcpServer.AddTool(mcp.NewTool("get_product",
		mcp.WithDescription("Look up a single product by its catalog id"),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Catalog id of the product"),
		),
	), s.getProductHandler)

	mcpServer.AddTool(mcp.NewTool("catalog_info",
		mcp.WithDescription("Describe the loaded catalog index: item count, embedding model, build time"),
	), s.catalogInfoHandler)

	// Start the stdio server
	if err := server.ServeStdio(mcpServer); err != nil {
		return err
	}

	return nil
}

func (s *Server) searchProductsHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, ok := request.Params.Arguments["query"].(string)
	if !ok {
		return nil, errors.New("query must be a string")
	}

	limit := 0 // 0 lets the searcher pick its default
	if limitVal, ok := request.Params.Arguments["limit"]; ok {
		switch v := limitVal.(type) {
		case int:
			limit = v
		case float64:
			limit = int(v)
		case string:
			var err error
			limit, err = strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("limit must be a valid integer: %w", err)
			}
		default:
			return nil, errors.New("limit must be a number or string")
		}
	}

	results, err := s.searcher.Search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search products: %w", err)
	}

	if len(results.Results) == 0 {
		return mcp.NewToolResultText("No products matched the query.\n"), nil
	}

	// Format results as text
	var result string
	result += fmt.Sprintf("Found %d products (%d lexical candidates considered)\n\n",
		len(results.Results), results.TotalCandidates)
	for _, r := range results.Results {
		result += fmt.Sprintf("%s: %s (score %.1f)\n", r.ID, r.Title, r.Score)
		if r.Price != "" {
			result += fmt.Sprintf("  Price: %s\n", r.Price)
		}
		if r.Description != "" {
			result += fmt.Sprintf("  Description: %s\n", r.Description)
		}
		if r.MatchReason != "" {
			result += fmt.Sprintf("  Matched on: %s\n", r.MatchReason)
		}
		result += "\n"
	}

	return mcp.NewToolResultText(result), nil
}

func (s *Server) getProductHandler(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, ok := request.Params.Arguments["id"].(string)
	if !ok {
		return nil, errors.New("id must be a string")
	}

	item, ok := s.searcher.Item(id)
	if !ok {
		return mcp.NewToolResultText(fmt.Sprintf("No product with id %q in the catalog.\n", id)), nil
	}

	var result string
	result += fmt.Sprintf("%s: %s\n", item.ID, item.Title)
	result += fmt.Sprintf("  Price: %s\n", item.PriceString())
	if item.Category != "" {
		result += fmt.Sprintf("  Category: %s\n", item.Category)
	}
	if item.Description != "" {
		result += fmt.Sprintf("  Description: %s\n", item.Description)
	}
	if item.Features != "" {
		result += fmt.Sprintf("  Features: %s\n", item.Features)
	}

	return mcp.NewToolResultText(result), nil
}

func (s *Server) catalogInfoHandler(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats := s.searcher.Stats()

	var result string
	result += fmt.Sprintf("Catalog items: %d\n", stats.Items)
	result += fmt.Sprintf("Embedding model: %s (dimension %d)\n", stats.ModelName, stats.Dimension)
	result += fmt.Sprintf("Index built: %s\n", stats.BuiltAt.Format("2006-01-02 15:04:05 MST"))

	return mcp.NewToolResultText(result), nil
}
