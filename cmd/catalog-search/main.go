package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kong"

	"github.com/searchlabs/catalog-search/internal/commands"
	"github.com/searchlabs/catalog-search/internal/search"
	"github.com/searchlabs/catalog-search/internal/types"
)

type CLI struct {
	commands.CommonConfig
	commands.EmbeddingConfig

	Query      string  `help:"Search query - what you're looking for" arg:""`
	Limit      int     `help:"Maximum number of results to return" default:"10"`
	Candidates int     `help:"Size of the lexical candidate pool to re-rank" default:"100"`
	MinScore   float64 `help:"Minimum match score (0-100) for results" default:"0"`
	JSON       bool    `help:"Print results as JSON" default:"false"`
}

func (c *CLI) Run() error {
	logger := commands.SetupLogger(c.CommonConfig)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	embeddingProvider, err := commands.SetupEmbeddingProvider(ctx, c.EmbeddingConfig, logger)
	if err != nil {
		logger.Fatal("Failed to initialize embedding provider", "error", err)
	}
	defer commands.CloseEmbeddingProvider(embeddingProvider, logger)

	searcher, err := commands.SetupSearcher(ctx, c.DataDir, embeddingProvider, logger)
	if err != nil {
		return err
	}
	defer searcher.Close()

	if err := searcher.VerifyEmbeddingDimension(ctx); err != nil {
		return err
	}

	results, err := searcher.Search(ctx, c.Query, c.Limit,
		search.WithCandidateLimit(c.Candidates),
		search.WithMinScore(c.MinScore),
	)
	if err != nil {
		return err
	}

	if c.JSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(results)
	}

	printResults(c.Query, results)
	return nil
}

func printResults(query string, results types.SearchResults) {
	if len(results.Results) == 0 {
		fmt.Printf("No products matched '%s'\n", query)
		return
	}

	fmt.Printf("Found %d products for '%s' (%d lexical candidates considered):\n\n",
		len(results.Results), query, results.TotalCandidates)
	for _, r := range results.Results {
		fmt.Printf("%s: %s (score: %.1f)\n", r.ID, r.Title, r.Score)
		if r.Price != "" {
			fmt.Printf("  Price: %s\n", r.Price)
		}
		if r.Description != "" {
			fmt.Printf("  Description: %s\n", r.Description)
		}
		if r.MatchReason != "" {
			fmt.Printf("  Matched on: %s\n", r.MatchReason)
		}
		fmt.Println()
	}
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("catalog-search"),
		kong.Description("Search the product catalog with hybrid lexical and semantic ranking"),
		kong.UsageOnError(),
	)

	err := ctx.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
