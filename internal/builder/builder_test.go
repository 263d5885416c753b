package builder

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchlabs/catalog-search/internal/db"
	"github.com/searchlabs/catalog-search/internal/vectorindex"
)

type buildMockProvider struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (p *buildMockProvider) Embed(_ context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	if p.fail {
		return nil, assert.AnError
	}
	// Deterministic vector derived from the text length so items differ.
	return []float32{float32(len(text)), 1, 0, 0}, nil
}

func (p *buildMockProvider) ModelName() string {
	return "mock-model"
}

func testLogger() *log.Logger {
	return log.New(io.Discard)
}

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseCatalogCSV(t *testing.T) {
	path := writeCatalog(t, `Referencia,Título,Descripción,Características,Categoría,Precio
SCREW-1,Tornillo métrico,Tornillo de acero,Cabeza hexagonal,Tornillería,2.50
SCREW-2,Brass screw,NULL,N/A,Fasteners,NaN
,Missing id row,,,,"1.00"
PIPE-1,PVC pipe,,,Plumbing,
`)

	items, err := ParseCatalogCSV(path, testLogger())
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, "SCREW-1", items[0].ID)
	assert.Equal(t, "SCREW-1", items[0].Reference)
	assert.Equal(t, "Tornillo métrico", items[0].Title)
	assert.True(t, items[0].HasPrice)
	assert.Equal(t, "2.5", items[0].Price.String())

	assert.Equal(t, "SCREW-2", items[1].ID)
	assert.Empty(t, items[1].Description)
	assert.Empty(t, items[1].Features)
	assert.False(t, items[1].HasPrice)

	assert.Equal(t, "PIPE-1", items[2].ID)
	assert.False(t, items[2].HasPrice)
}

func TestParseCatalogCSVMissingIDColumn(t *testing.T) {
	path := writeCatalog(t, "title,price\nSomething,1.00\n")

	_, err := ParseCatalogCSV(path, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no id/reference column")
}

func TestParseCatalogCSVDuplicateID(t *testing.T) {
	path := writeCatalog(t, `id,title
SCREW-1,First screw
SCREW-1,Duplicate screw
PIPE-1,PVC pipe
`)

	items, err := ParseCatalogCSV(path, testLogger())
	require.NoError(t, err)
	require.Len(t, items, 2)
	// First occurrence wins; the duplicate row is skipped.
	assert.Equal(t, "SCREW-1", items[0].ID)
	assert.Equal(t, "First screw", items[0].Title)
	assert.Equal(t, "PIPE-1", items[1].ID)
}

func TestParseCatalogCSVMissingFile(t *testing.T) {
	_, err := ParseCatalogCSV(filepath.Join(t.TempDir(), "nope.csv"), testLogger())
	require.Error(t, err)
}

func TestBuildProducesArtifacts(t *testing.T) {
	catalog := writeCatalog(t, `id,title,description,category,price
SCREW-1,Metric screw,Steel hex screw,Fasteners,2.50
PIPE-1,PVC pipe,Pressure pipe,Plumbing,8.00
`)
	dataDir := t.TempDir()
	provider := &buildMockProvider{}

	stats, err := Build(context.Background(), Config{
		CatalogPath: catalog,
		DataDir:     dataDir,
		Provider:    provider,
		Logger:      testLogger(),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Items)
	assert.Equal(t, 4, stats.Dimension)
	assert.Equal(t, "mock-model", stats.ModelName)
	assert.Equal(t, 2, provider.calls)

	database, err := db.Open(dataDir, testLogger())
	require.NoError(t, err)
	defer database.Close()

	count, err := database.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	hits, err := database.SearchLexical(context.Background(), "screw", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "SCREW-1", hits[0].ID)

	index, err := vectorindex.Open(dataDir, testLogger())
	require.NoError(t, err)
	defer index.Close()

	assert.Equal(t, "mock-model", index.ModelName())
	assert.Equal(t, 4, index.Dimension())
	assert.Equal(t, 2, index.Count())

	vector, err := index.Vector(context.Background(), "PIPE-1")
	require.NoError(t, err)
	require.Len(t, vector, 4)
	// Vectors are stored L2-normalized.
	var norm float32
	for _, v := range vector {
		norm += v * v
	}
	assert.InDelta(t, 1.0, norm, 1e-5)
}

func TestBuildRebuildReplacesCatalog(t *testing.T) {
	dataDir := t.TempDir()

	first := writeCatalog(t, "id,title\nOLD-1,Old widget\nOLD-2,Old gadget\n")
	_, err := Build(context.Background(), Config{
		CatalogPath: first,
		DataDir:     dataDir,
		Provider:    &buildMockProvider{},
		Logger:      testLogger(),
	})
	require.NoError(t, err)

	second := writeCatalog(t, "id,title\nNEW-1,New widget\n")
	stats, err := Build(context.Background(), Config{
		CatalogPath: second,
		DataDir:     dataDir,
		Provider:    &buildMockProvider{},
		Logger:      testLogger(),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Items)

	database, err := db.Open(dataDir, testLogger())
	require.NoError(t, err)
	defer database.Close()

	positions, err := database.LoadIDPositions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"NEW-1": 0}, positions)

	index, err := vectorindex.Open(dataDir, testLogger())
	require.NoError(t, err)
	defer index.Close()
	assert.Equal(t, 1, index.Count())
}

func TestBuildEmptyCatalogFails(t *testing.T) {
	catalog := writeCatalog(t, "id,title\n")

	_, err := Build(context.Background(), Config{
		CatalogPath: catalog,
		DataDir:     t.TempDir(),
		Provider:    &buildMockProvider{},
		Logger:      testLogger(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "contains no items")
}

func TestBuildFailureInvalidatesPreviousArtifacts(t *testing.T) {
	dataDir := t.TempDir()

	first := writeCatalog(t, "id,title\nOLD-1,Old widget\nOLD-2,Old gadget\n")
	_, err := Build(context.Background(), Config{
		CatalogPath: first,
		DataDir:     dataDir,
		Provider:    &buildMockProvider{},
		Logger:      testLogger(),
	})
	require.NoError(t, err)

	// Rebuild over the same directory, failing at embed time: after the
	// new catalog is stored but before any vector is written.
	second := writeCatalog(t, "id,title\nNEW-1,New widget\nNEW-2,New gadget\nNEW-3,New gizmo\n")
	_, err = Build(context.Background(), Config{
		CatalogPath: second,
		DataDir:     dataDir,
		Provider:    &buildMockProvider{fail: true},
		Logger:      testLogger(),
	})
	require.Error(t, err)

	// The old build's vectors must not be servable next to the new
	// catalog: the manifest is gone, so the vector index refuses to open.
	_, err = vectorindex.Open(dataDir, testLogger())
	require.Error(t, err)
}

func TestBuildProviderFailureAborts(t *testing.T) {
	catalog := writeCatalog(t, "id,title\nSCREW-1,Metric screw\n")
	dataDir := t.TempDir()

	_, err := Build(context.Background(), Config{
		CatalogPath: catalog,
		DataDir:     dataDir,
		Provider:    &buildMockProvider{fail: true},
		Logger:      testLogger(),
	})
	require.Error(t, err)

	// No manifest means the artifacts are not loadable.
	_, err = vectorindex.Open(dataDir, testLogger())
	require.Error(t, err)
}
