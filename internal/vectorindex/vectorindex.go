// Package vectorindex stores and loads the dense vector index artifact:
// one L2-normalized embedding per catalog item, keyed by catalog id,
// plus a manifest recording the model and dimensionality the index was
// built with.
package vectorindex

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/philippgille/chromem-go"
)

const (
	manifestFileName = "manifest.json"
	chromemDirName   = "chromem-go"
	collectionName   = "products"
)

// Manifest describes the vector index artifact. It is written once by
// the build job and checked at startup; a missing or inconsistent
// manifest means the artifacts cannot be trusted.
type Manifest struct {
	ModelName string    `json:"model_name"`
	Dimension int       `json:"dimension"`
	Count     int       `json:"count"`
	BuiltAt   time.Time `json:"built_at"`
}

// Index is a read-only (after build) vector index backed by a
// persistent chromem-go collection.
type Index struct {
	db         *chromem.DB
	collection *chromem.Collection
	manifest   Manifest
	logger     *log.Logger
}

// Invalidate removes the manifest so the artifacts in dataDir can no
// longer be opened for serving. The build job calls this before it
// touches any artifact; a rebuild that dies partway must leave nothing
// loadable, not a new catalog beside stale vectors.
func Invalidate(dataDir string) error {
	if err := os.Remove(filepath.Join(dataDir, manifestFileName)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to invalidate vector index manifest: %w", err)
	}
	return nil
}

// New creates a fresh vector index for the build job, discarding any
// previous index in dataDir. The manifest is removed first so a build
// that dies partway cannot leave artifacts that look loadable.
func New(dataDir string, logger *log.Logger) (*Index, error) {
	if err := Invalidate(dataDir); err != nil {
		return nil, err
	}
	dbPath := filepath.Join(dataDir, chromemDirName)
	if err := os.RemoveAll(dbPath); err != nil {
		return nil, fmt.Errorf("failed to clear previous vector index: %w", err)
	}

	db, err := chromem.NewPersistentDB(dbPath, true)
	if err != nil {
		return nil, fmt.Errorf("failed to create vector database: %w", err)
	}

	collection, err := db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}

	return &Index{
		db:         db,
		collection: collection,
		logger:     logger,
	}, nil
}

// Open loads an existing vector index for serving. All artifacts must
// be present and consistent; anything else is a startup failure, never
// deferred to query time.
func Open(dataDir string, logger *log.Logger) (*Index, error) {
	manifest, err := readManifest(dataDir)
	if err != nil {
		return nil, err
	}
	if manifest.Dimension <= 0 {
		return nil, fmt.Errorf("vector index manifest has invalid dimension %d", manifest.Dimension)
	}

	dbPath := filepath.Join(dataDir, chromemDirName)
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("vector index not found at %s: %w", dbPath, err)
	}

	db, err := chromem.NewPersistentDB(dbPath, true)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector database: %w", err)
	}

	collection := db.GetCollection(collectionName, nil)
	if collection == nil {
		return nil, fmt.Errorf("vector index collection %q not found", collectionName)
	}

	count := collection.Count()
	if count != manifest.Count {
		return nil, fmt.Errorf("vector index holds %d vectors but manifest records %d", count, manifest.Count)
	}

	logger.Info("Opened vector index",
		"path", dbPath,
		"vectors", count,
		"model", manifest.ModelName,
		"dimension", manifest.Dimension)

	return &Index{
		db:         db,
		collection: collection,
		manifest:   manifest,
		logger:     logger,
	}, nil
}

// Add stores one item's embedding at build time. The vector must
// already be L2-normalized.
func (x *Index) Add(ctx context.Context, id string, position int, content string, vector []float32) error {
	doc := chromem.Document{
		ID:        id,
		Content:   content,
		Embedding: vector,
		Metadata: map[string]string{
			"position": strconv.Itoa(position),
		},
	}
	if err := x.collection.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("failed to store vector for %q: %w", id, err)
	}
	return nil
}

// WriteManifest persists the manifest after a successful build.
func (x *Index) WriteManifest(dataDir string, manifest Manifest) error {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	path := filepath.Join(dataDir, manifestFileName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	x.manifest = manifest
	return nil
}

func readManifest(dataDir string) (Manifest, error) {
	path := filepath.Join(dataDir, manifestFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("vector index manifest not readable at %s: %w", path, err)
	}
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return Manifest{}, fmt.Errorf("vector index manifest corrupt: %w", err)
	}
	return manifest, nil
}

// Vector fetches the stored embedding for one catalog id. A missing id
// means the lexical and vector artifacts have drifted; callers skip the
// candidate rather than failing the query.
func (x *Index) Vector(ctx context.Context, id string) ([]float32, error) {
	doc, err := x.collection.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("no vector for catalog id %q: %w", id, err)
	}
	return doc.Embedding, nil
}

// Manifest returns the manifest the index was opened or built with.
func (x *Index) Manifest() Manifest {
	return x.manifest
}

// ModelName returns the embedding model recorded in the manifest.
func (x *Index) ModelName() string {
	return x.manifest.ModelName
}

// Dimension returns the embedding dimensionality recorded in the manifest.
func (x *Index) Dimension() int {
	return x.manifest.Dimension
}

// Count returns the number of stored vectors.
func (x *Index) Count() int {
	return x.collection.Count()
}

// Close releases the index. chromem persists on write, so there is
// nothing to flush.
func (x *Index) Close() error {
	return nil
}

// NormalizeL2 scales v to unit length in place and returns it. The zero
// vector is returned unchanged.
func NormalizeL2(v []float32) []float32 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	if sum == 0 {
		return v
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
	return v
}

// Dot returns the inner product of a and b. For L2-normalized vectors
// this is the cosine similarity, in [-1, 1].
func Dot(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float32
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
