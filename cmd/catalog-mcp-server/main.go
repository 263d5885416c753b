package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kong"

	"github.com/searchlabs/catalog-search/internal/commands"
	"github.com/searchlabs/catalog-search/internal/mcp"
)

type CLI struct {
	commands.CommonConfig
	commands.EmbeddingConfig
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

	return mcp.New(searcher, logger).Run()
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("catalog-mcp-server"),
		kong.Description("Serve catalog search over the Model Context Protocol on stdio"),
		kong.UsageOnError(),
	)

	err := ctx.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
