package db

import (
	"context"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchlabs/catalog-search/internal/textnorm"
	"github.com/searchlabs/catalog-search/internal/types"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	logger := log.New(io.Discard)
	d, err := New(t.TempDir(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func testItem(id, title, description, features, category, price string) types.CatalogItem {
	item := types.CatalogItem{
		ID:          id,
		Reference:   id,
		Title:       title,
		Description: description,
		Features:    features,
		Category:    category,
	}
	if price != "" {
		item.Price = decimal.RequireFromString(price)
		item.HasPrice = true
	}
	return item
}

func storeTestCatalog(t *testing.T, d *DB, items []types.CatalogItem) {
	t.Helper()
	indexed := make([]IndexedItem, len(items))
	for i, item := range items {
		indexed[i] = IndexedItem{
			Position:    i,
			Item:        item,
			Reference:   textnorm.Normalize(item.Reference),
			Title:       textnorm.Normalize(item.Title),
			Description: textnorm.Normalize(item.Description),
			Features:    textnorm.Normalize(item.Features),
			SearchBody: textnorm.Normalize(
				item.Reference + " " + item.Title + " " + item.Description + " " + item.Features,
			),
		}
	}
	require.NoError(t, d.StoreItems(context.Background(), indexed))
}

func TestStoreAndSearchLexical(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	storeTestCatalog(t, d, []types.CatalogItem{
		testItem("REF-001", "Stainless steel hex screw", "Corrosion resistant screw for outdoor use", "hex head 10mm", "fasteners", "4.99"),
		testItem("REF-002", "Brass wood screw", "Decorative screw for furniture", "countersunk 4mm", "fasteners", "1.20"),
		testItem("REF-003", "PVC pipe elbow", "90 degree fitting", "32mm diameter", "plumbing", ""),
	})

	hits, err := d.SearchLexical(ctx, textnorm.Normalize("stainless steel"), 100)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "REF-001", hits[0].ID)

	// bm25 scores order lower-is-better
	hits, err = d.SearchLexical(ctx, "screw", 100)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.LessOrEqual(t, hits[0].Score, hits[1].Score)

	hits, err = d.SearchLexical(ctx, "titanium", 100)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearchLexicalEmptyQuery(t *testing.T) {
	d := setupTestDB(t)

	hits, err := d.SearchLexical(context.Background(), "", 100)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearchLexicalLimit(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	storeTestCatalog(t, d, []types.CatalogItem{
		testItem("A", "bolt one", "bolt", "", "", ""),
		testItem("B", "bolt two", "bolt", "", "", ""),
		testItem("C", "bolt three", "bolt", "", "", ""),
	})

	hits, err := d.SearchLexical(ctx, "bolt", 2)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestLoadIDPositions(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	storeTestCatalog(t, d, []types.CatalogItem{
		testItem("X-1", "first", "", "", "", ""),
		testItem("X-2", "second", "", "", "", ""),
		testItem("X-3", "third", "", "", "", ""),
	})

	positions, err := d.LoadIDPositions(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"X-1": 0, "X-2": 1, "X-3": 2}, positions)
}

func TestLoadCatalog(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	storeTestCatalog(t, d, []types.CatalogItem{
		testItem("P-1", "Priced item", "has a price", "", "tools", "12.50"),
		testItem("P-2", "Unpriced item", "no price", "", "tools", ""),
	})

	items, err := d.LoadCatalog(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "P-1", items[0].ID)
	assert.True(t, items[0].HasPrice)
	assert.Equal(t, "12.5", items[0].Price.String())
	assert.Equal(t, "12.5", items[0].PriceString())

	assert.Equal(t, "P-2", items[1].ID)
	assert.False(t, items[1].HasPrice)
	assert.Equal(t, "N/A", items[1].PriceString())

	count, err := d.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestOpenMissingArtifact(t *testing.T) {
	logger := log.New(io.Discard)
	_, err := Open(t.TempDir(), logger)
	assert.Error(t, err)
}
