package commands

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/searchlabs/catalog-search/internal/db"
	"github.com/searchlabs/catalog-search/internal/embeddings"
	"github.com/searchlabs/catalog-search/internal/search"
	"github.com/searchlabs/catalog-search/internal/vectorindex"
)

// SetupSearcher opens the build artifacts in dataDir and wires them to
// the embedding provider. Missing or inconsistent artifacts are fatal
// here, not at query time.
func SetupSearcher(
	ctx context.Context,
	dataDir string,
	provider embeddings.EmbeddingProvider,
	logger *log.Logger,
) (*search.Searcher, error) {
	database, err := db.Open(dataDir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog database: %w", err)
	}

	index, err := vectorindex.Open(dataDir, logger)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to open vector index: %w", err)
	}

	searcher, err := search.New(ctx, search.Config{
		DB:       database,
		Vectors:  index,
		Provider: provider,
		Logger:   logger,
	})
	if err != nil {
		index.Close()
		database.Close()
		return nil, err
	}

	return searcher, nil
}
