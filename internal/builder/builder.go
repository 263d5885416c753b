// Package builder turns a catalog CSV export into the search artifacts:
// the SQLite catalog with its FTS index and the persistent vector index
// with its manifest. The manifest is written last, so a partial build is
// never mistaken for a loadable index.
package builder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/searchlabs/catalog-search/internal/db"
	"github.com/searchlabs/catalog-search/internal/embeddings"
	"github.com/searchlabs/catalog-search/internal/textnorm"
	"github.com/searchlabs/catalog-search/internal/types"
	"github.com/searchlabs/catalog-search/internal/vectorindex"
)

// DefaultWorkers bounds concurrent embedding requests during a build.
const DefaultWorkers = 4

// Config holds everything a build needs.
type Config struct {
	CatalogPath string
	DataDir     string
	Provider    embeddings.EmbeddingProvider
	Logger      *log.Logger
	Progress    bool
	Workers     int
}

// Stats summarizes a completed build.
type Stats struct {
	Items     int
	Dimension int
	ModelName string
	Duration  time.Duration
}

// Build parses the catalog, stores it in SQLite with the FTS index, and
// embeds every item into a fresh vector index. Item positions are
// assigned in file order and shared between both artifacts.
func Build(ctx context.Context, cfg Config) (Stats, error) {
	start := time.Now()
	if cfg.Provider == nil {
		return Stats{}, fmt.Errorf("embedding provider is required")
	}
	if cfg.Logger == nil {
		return Stats{}, fmt.Errorf("logger is required")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}

	items, err := ParseCatalogCSV(cfg.CatalogPath, cfg.Logger)
	if err != nil {
		return Stats{}, err
	}
	if len(items) == 0 {
		return Stats{}, fmt.Errorf("catalog file %s contains no items", cfg.CatalogPath)
	}
	cfg.Logger.Info("Parsed catalog", "items", len(items))

	// Invalidate any previous build before the first artifact is touched.
	// From here until WriteManifest lands, nothing in dataDir opens for
	// serving, so a failed rebuild cannot pair a new catalog with stale
	// vectors.
	if err := vectorindex.Invalidate(cfg.DataDir); err != nil {
		return Stats{}, err
	}

	indexed := make([]db.IndexedItem, len(items))
	for i, item := range items {
		indexed[i] = prepareItem(i, item)
	}

	database, err := db.New(cfg.DataDir, cfg.Logger)
	if err != nil {
		return Stats{}, err
	}
	defer database.Close()

	if err := database.StoreItems(ctx, indexed); err != nil {
		return Stats{}, err
	}
	cfg.Logger.Info("Stored catalog and lexical index", "items", len(indexed))

	vectors, err := embedAll(ctx, cfg, indexed)
	if err != nil {
		return Stats{}, err
	}
	dimension := len(vectors[0])

	index, err := vectorindex.New(cfg.DataDir, cfg.Logger)
	if err != nil {
		return Stats{}, err
	}
	defer index.Close()

	for i, item := range indexed {
		if err := index.Add(ctx, item.Item.ID, item.Position, item.SearchBody, vectors[i]); err != nil {
			return Stats{}, fmt.Errorf("failed to index item %s: %w", item.Item.ID, err)
		}
	}

	manifest := vectorindex.Manifest{
		ModelName: cfg.Provider.ModelName(),
		Dimension: dimension,
		Count:     len(indexed),
		BuiltAt:   time.Now().UTC(),
	}
	if err := index.WriteManifest(cfg.DataDir, manifest); err != nil {
		return Stats{}, err
	}

	stats := Stats{
		Items:     len(indexed),
		Dimension: dimension,
		ModelName: manifest.ModelName,
		Duration:  time.Since(start),
	}
	cfg.Logger.Info("Build complete",
		"items", stats.Items,
		"dimension", stats.Dimension,
		"model", stats.ModelName,
		"duration", stats.Duration.Round(time.Millisecond))
	return stats, nil
}

// prepareItem normalizes an item's text fields for indexing. SearchBody
// is the single string both the FTS recall column and the embedding see.
func prepareItem(position int, item types.CatalogItem) db.IndexedItem {
	reference := textnorm.Normalize(item.Reference)
	title := textnorm.Normalize(item.Title)
	description := textnorm.Normalize(item.Description)
	features := textnorm.Normalize(item.Features)
	category := textnorm.Normalize(item.Category)

	parts := make([]string, 0, 5)
	for _, p := range []string{reference, title, description, features, category} {
		if p != "" {
			parts = append(parts, p)
		}
	}

	return db.IndexedItem{
		Position:    position,
		Item:        item,
		Reference:   reference,
		Title:       title,
		Description: description,
		Features:    features,
		SearchBody:  strings.Join(parts, " "),
	}
}

// embedAll embeds every item's search body with a bounded worker pool,
// returning normalized vectors in position order. All vectors must share
// one dimension; a provider that returns mixed sizes aborts the build.
func embedAll(ctx context.Context, cfg Config, indexed []db.IndexedItem) ([][]float32, error) {
	vectors := make([][]float32, len(indexed))

	var progress Progress = NewNoopProgress()
	if cfg.Progress {
		progress = NewBarProgress(len(indexed))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i, item := range indexed {
		g.Go(func() error {
			vector, err := cfg.Provider.Embed(gctx, item.SearchBody)
			if err != nil {
				return fmt.Errorf("failed to embed item %s: %w", item.Item.ID, err)
			}
			if len(vector) == 0 {
				return fmt.Errorf("embedding provider returned an empty vector for item %s", item.Item.ID)
			}
			vectors[i] = vectorindex.NormalizeL2(vector)
			if err := progress.Add(1); err != nil {
				cfg.Logger.Warn("Failed to update progress", "error", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	progress.Close()

	dimension := len(vectors[0])
	for i, vector := range vectors {
		if len(vector) != dimension {
			return nil, fmt.Errorf("inconsistent embedding dimensions: item %s has %d, expected %d",
				indexed[i].Item.ID, len(vector), dimension)
		}
	}
	return vectors, nil
}
