package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kong"

	"github.com/searchlabs/catalog-search/internal/builder"
	"github.com/searchlabs/catalog-search/internal/commands"
)

type CLI struct {
	commands.CommonConfig
	commands.EmbeddingConfig

	Catalog     string `help:"Path to the catalog CSV export" required:"" type:"existingfile"`
	Concurrency int    `help:"Number of concurrent embedding requests" default:"4"`
	NoProgress  bool   `help:"Disable progress bar" default:"false"`
}

func (c *CLI) Run() error {
	logger := commands.SetupLogger(c.CommonConfig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	embeddingProvider, err := commands.SetupEmbeddingProvider(ctx, c.EmbeddingConfig, logger)
	if err != nil {
		logger.Fatal("Failed to initialize embedding provider", "error", err)
	}
	defer commands.CloseEmbeddingProvider(embeddingProvider, logger)

	stats, err := builder.Build(ctx, builder.Config{
		CatalogPath: c.Catalog,
		DataDir:     c.DataDir,
		Provider:    embeddingProvider,
		Logger:      logger,
		Progress:    !c.NoProgress,
		Workers:     c.Concurrency,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Indexed %d items with %s (dimension %d) in %s\n",
		stats.Items, stats.ModelName, stats.Dimension, stats.Duration.Round(time.Millisecond))
	return nil
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("catalog-index-builder"),
		kong.Description("Build the catalog search artifacts from a CSV export"),
		kong.UsageOnError(),
	)

	err := ctx.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
