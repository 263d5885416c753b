package vectorindex

import (
	"context"
	"io"
	"math"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildOpenRoundTrip(t *testing.T) {
	logger := log.New(io.Discard)
	dataDir := t.TempDir()
	ctx := context.Background()

	idx, err := New(dataDir, logger)
	require.NoError(t, err)

	vectors := map[string][]float32{
		"A": NormalizeL2([]float32{1, 0, 0}),
		"B": NormalizeL2([]float32{0, 1, 0}),
	}
	position := 0
	for id, vec := range vectors {
		require.NoError(t, idx.Add(ctx, id, position, "content "+id, vec))
		position++
	}
	require.NoError(t, idx.WriteManifest(dataDir, Manifest{
		ModelName: "test-model",
		Dimension: 3,
		Count:     2,
		BuiltAt:   time.Now().UTC(),
	}))
	require.NoError(t, idx.Close())

	opened, err := Open(dataDir, logger)
	require.NoError(t, err)
	defer opened.Close()

	assert.Equal(t, "test-model", opened.ModelName())
	assert.Equal(t, 3, opened.Dimension())
	assert.Equal(t, 2, opened.Count())

	vec, err := opened.Vector(ctx, "A")
	require.NoError(t, err)
	assert.InDeltaSlice(t, vectors["A"], vec, 1e-6)

	_, err = opened.Vector(ctx, "missing")
	assert.Error(t, err)
}

func TestOpenMissingManifest(t *testing.T) {
	logger := log.New(io.Discard)
	_, err := Open(t.TempDir(), logger)
	assert.Error(t, err)
}

func TestOpenCountMismatch(t *testing.T) {
	logger := log.New(io.Discard)
	dataDir := t.TempDir()
	ctx := context.Background()

	idx, err := New(dataDir, logger)
	require.NoError(t, err)
	require.NoError(t, idx.Add(ctx, "only", 0, "content", []float32{1, 0}))
	require.NoError(t, idx.WriteManifest(dataDir, Manifest{
		ModelName: "test-model",
		Dimension: 2,
		Count:     5, // wrong on purpose
		BuiltAt:   time.Now().UTC(),
	}))

	_, err = Open(dataDir, logger)
	assert.Error(t, err)
}

func TestInvalidate(t *testing.T) {
	logger := log.New(io.Discard)
	dataDir := t.TempDir()
	ctx := context.Background()

	// Invalidating a directory with no artifacts is a no-op.
	require.NoError(t, Invalidate(dataDir))

	idx, err := New(dataDir, logger)
	require.NoError(t, err)
	require.NoError(t, idx.Add(ctx, "A", 0, "content", NormalizeL2([]float32{1, 0})))
	require.NoError(t, idx.WriteManifest(dataDir, Manifest{
		ModelName: "test-model",
		Dimension: 2,
		Count:     1,
		BuiltAt:   time.Now().UTC(),
	}))

	_, err = Open(dataDir, logger)
	require.NoError(t, err)

	// After invalidation the stored vectors must not be servable.
	require.NoError(t, Invalidate(dataDir))
	_, err = Open(dataDir, logger)
	assert.Error(t, err)
}

func TestNormalizeL2(t *testing.T) {
	v := NormalizeL2([]float32{3, 4})
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	var length float64
	for _, f := range v {
		length += float64(f) * float64(f)
	}
	assert.InDelta(t, 1.0, math.Sqrt(length), 1e-6)

	zero := NormalizeL2([]float32{0, 0, 0})
	assert.Equal(t, []float32{0, 0, 0}, zero)
}

func TestDot(t *testing.T) {
	a := NormalizeL2([]float32{1, 0})
	b := NormalizeL2([]float32{1, 0})
	c := NormalizeL2([]float32{0, 1})
	d := NormalizeL2([]float32{-1, 0})

	assert.InDelta(t, 1.0, float64(Dot(a, b)), 1e-6)
	assert.InDelta(t, 0.0, float64(Dot(a, c)), 1e-6)
	assert.InDelta(t, -1.0, float64(Dot(a, d)), 1e-6)
}
