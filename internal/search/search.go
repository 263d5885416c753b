// Package search implements the two-stage retrieval pipeline: lexical
// candidate generation over the FTS index, semantic re-ranking of the
// candidate pool against the vector index, and result assembly.
package search

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/log"

	"github.com/searchlabs/catalog-search/internal/db"
	"github.com/searchlabs/catalog-search/internal/embeddings"
	"github.com/searchlabs/catalog-search/internal/textnorm"
	"github.com/searchlabs/catalog-search/internal/types"
	"github.com/searchlabs/catalog-search/internal/vectorindex"
)

const (
	// DefaultCandidateLimit bounds the lexical candidate pool handed to
	// the re-ranker: large enough for meaningful re-ranking, small
	// enough to keep the brute-force similarity pass cheap.
	DefaultCandidateLimit = 100

	// DefaultTopK is the result count when the caller does not ask for one.
	DefaultTopK = 10
	// MaxTopK caps the result count a caller may request.
	MaxTopK = 20
)

// Config wires a Searcher to its read-only artifacts and collaborators.
type Config struct {
	DB             *db.DB
	Vectors        *vectorindex.Index
	Provider       embeddings.EmbeddingProvider
	Logger         *log.Logger
	CandidateLimit int
}

// Searcher answers natural-language catalog queries against artifacts
// loaded once at construction. It is safe for concurrent use: every
// loaded structure is read-only after New returns.
type Searcher struct {
	db             *db.DB
	vectors        *vectorindex.Index
	provider       embeddings.EmbeddingProvider
	logger         *log.Logger
	candidateLimit int

	// positions maps catalog id to vector-index position; items is
	// indexed by that position. Both come from the same build pass.
	positions map[string]int
	items     []types.CatalogItem
}

// New loads the catalog and id-mapping artifacts and validates them
// against the vector index. Any load or consistency failure is fatal
// here; a Searcher never starts in a degraded state.
func New(ctx context.Context, cfg Config) (*Searcher, error) {
	if cfg.DB == nil {
		return nil, fmt.Errorf("catalog database is required")
	}
	if cfg.Vectors == nil {
		return nil, fmt.Errorf("vector index is required")
	}
	if cfg.Provider == nil {
		return nil, fmt.Errorf("embedding provider is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = DefaultCandidateLimit
	}

	if model := cfg.Provider.ModelName(); model != cfg.Vectors.ModelName() {
		return nil, fmt.Errorf("embedding model %q does not match vector index model %q",
			model, cfg.Vectors.ModelName())
	}

	positions, err := cfg.DB.LoadIDPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load id mapping: %w", err)
	}

	items, err := cfg.DB.LoadCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	if cfg.Vectors.Count() != len(items) {
		// Tolerated: drift between artifacts drops individual
		// candidates at query time instead of refusing to serve.
		cfg.Logger.Warn("Catalog and vector index sizes differ",
			"catalog_items", len(items),
			"vectors", cfg.Vectors.Count())
	}

	cfg.Logger.Info("Searcher ready",
		"catalog_items", len(items),
		"vectors", cfg.Vectors.Count(),
		"model", cfg.Vectors.ModelName(),
		"dimension", cfg.Vectors.Dimension())

	return &Searcher{
		db:             cfg.DB,
		vectors:        cfg.Vectors,
		provider:       cfg.Provider,
		logger:         cfg.Logger,
		candidateLimit: cfg.CandidateLimit,
		positions:      positions,
		items:          items,
	}, nil
}

// VerifyEmbeddingDimension embeds a probe string and checks the
// provider's output dimensionality against the vector index manifest.
// Callers run this once at startup so a misconfigured provider fails
// the process instead of every query.
func (s *Searcher) VerifyEmbeddingDimension(ctx context.Context) error {
	vec, err := s.provider.Embed(ctx, "dimension probe")
	if err != nil {
		return fmt.Errorf("embedding probe failed: %w", err)
	}
	if len(vec) != s.vectors.Dimension() {
		return fmt.Errorf("embedding provider returns %d dimensions but vector index was built with %d",
			len(vec), s.vectors.Dimension())
	}
	return nil
}

type searchOptions struct {
	candidateLimit int
	minScore       float64
}

// SearchOption is a function that modifies search options
type SearchOption func(*searchOptions)

// WithCandidateLimit overrides the lexical candidate pool size for one
// query. Non-positive values keep the configured default.
func WithCandidateLimit(limit int) SearchOption {
	return func(opts *searchOptions) {
		if limit > 0 {
			opts.candidateLimit = limit
		}
	}
}

// WithMinScore drops results scoring below the given floor (0-100).
func WithMinScore(minScore float64) SearchOption {
	return func(opts *searchOptions) {
		opts.minScore = minScore
	}
}

// Search runs the full pipeline for one query and returns at most topK
// results ordered by score descending. Empty queries, zero lexical
// hits, and unresolvable candidate pools all return an empty list, not
// an error.
func (s *Searcher) Search(ctx context.Context, query string, topK int, opts ...SearchOption) (types.SearchResults, error) {
	options := searchOptions{
		candidateLimit: s.candidateLimit,
	}
	for _, opt := range opts {
		opt(&options)
	}

	topK = clampTopK(topK)
	start := time.Now()
	empty := types.SearchResults{Results: []types.SearchResult{}, Limit: topK}

	normalized := textnorm.Normalize(query)
	if normalized == "" {
		s.logger.Info("Query normalized to empty string, no results", "query", query)
		return empty, nil
	}

	// Stage one: lexical recall.
	hits, err := s.db.SearchLexical(ctx, normalized, options.candidateLimit)
	if err != nil {
		return types.SearchResults{}, fmt.Errorf("lexical search failed: %w", err)
	}
	if len(hits) == 0 {
		s.logger.Info("No lexical candidates", "query", normalized, "duration", time.Since(start))
		return empty, nil
	}

	candidates := s.resolve(hits)
	if len(candidates) == 0 {
		s.logger.Info("No lexical candidate resolved to a vector position",
			"query", normalized,
			"hits", len(hits),
			"duration", time.Since(start))
		return empty, nil
	}

	// Stage two: semantic precision over the candidate pool only. The
	// raw query goes to the embedding model; normalization is a lexical
	// index concern.
	queryVec, err := s.provider.Embed(ctx, query)
	if err != nil {
		return types.SearchResults{}, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(queryVec) != s.vectors.Dimension() {
		return types.SearchResults{}, fmt.Errorf("query embedding has %d dimensions, vector index expects %d",
			len(queryVec), s.vectors.Dimension())
	}
	vectorindex.NormalizeL2(queryVec)

	scored, err := s.rerank(ctx, queryVec, candidates)
	if err != nil {
		return types.SearchResults{}, err
	}
	totalScored := len(scored)
	if totalScored > topK {
		scored = scored[:topK]
	}

	results := s.assemble(query, scored, options.minScore)

	s.logger.Info("Search completed",
		"query", query,
		"lexical_hits", len(hits),
		"candidates", totalScored,
		"results", len(results),
		"duration", time.Since(start))

	return types.SearchResults{
		Results:         results,
		TotalCandidates: totalScored,
		Limit:           topK,
	}, nil
}

// resolve joins lexical hits to vector positions via the persisted id
// mapping. Unresolvable ids (artifact drift) and duplicate ids are
// dropped, never fatal.
func (s *Searcher) resolve(hits []types.LexicalHit) []types.Candidate {
	candidates := make([]types.Candidate, 0, len(hits))
	seen := make(map[string]struct{}, len(hits))
	for i, hit := range hits {
		if _, dup := seen[hit.ID]; dup {
			continue
		}
		seen[hit.ID] = struct{}{}
		position, ok := s.positions[hit.ID]
		if !ok {
			s.logger.Warn("Lexical hit has no vector position, skipping", "id", hit.ID)
			continue
		}
		candidates = append(candidates, types.Candidate{
			Hit:         hit,
			Position:    position,
			LexicalRank: i + 1,
		})
	}
	return candidates
}

// rerank gathers each candidate's stored vector by catalog id and
// scores it against the query embedding. Similarity is computed over
// exactly the candidate pool; the full vector space is never searched,
// so no result can come from outside the lexical stage. Candidates
// whose vector is missing are dropped and logged.
func (s *Searcher) rerank(ctx context.Context, queryVec []float32, candidates []types.Candidate) ([]types.Candidate, error) {
	scored := make([]types.Candidate, 0, len(candidates))
	for _, c := range candidates {
		vec, err := s.vectors.Vector(ctx, c.Hit.ID)
		if err != nil {
			s.logger.Warn("Candidate missing from vector index, skipping", "id", c.Hit.ID, "error", err)
			continue
		}
		c.Similarity = vectorindex.Dot(queryVec, vec)
		scored = append(scored, c)
	}

	// Stable sort keeps lexical rank as the tiebreak, making output
	// deterministic for identical inputs.
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})
	return scored, nil
}

// assemble joins the re-ranked candidates back to catalog attributes
// and produces display-ready results ordered by score descending.
func (s *Searcher) assemble(query string, candidates []types.Candidate, minScore float64) []types.SearchResult {
	results := make([]types.SearchResult, 0, len(candidates))
	for _, c := range candidates {
		if c.Position < 0 || c.Position >= len(s.items) {
			s.logger.Warn("Candidate position outside catalog bounds, skipping",
				"id", c.Hit.ID, "position", c.Position, "catalog_items", len(s.items))
			continue
		}
		item := s.items[c.Position]
		score := similarityToScore(c.Similarity)
		if minScore > 0 && score < minScore {
			continue
		}
		results = append(results, types.SearchResult{
			ID:          item.ID,
			Title:       item.Title,
			Price:       item.PriceString(),
			Description: truncateDescription(item.Description),
			Score:       score,
			MatchReason: MatchReason(query, item),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results
}

// Item returns the catalog item with the given id, if indexed.
func (s *Searcher) Item(id string) (types.CatalogItem, bool) {
	position, ok := s.positions[id]
	if !ok || position < 0 || position >= len(s.items) {
		return types.CatalogItem{}, false
	}
	return s.items[position], true
}

// Stats describes the loaded artifacts.
type Stats struct {
	Items     int
	ModelName string
	Dimension int
	BuiltAt   time.Time
}

func (s *Searcher) Stats() Stats {
	manifest := s.vectors.Manifest()
	return Stats{
		Items:     len(s.items),
		ModelName: manifest.ModelName,
		Dimension: manifest.Dimension,
		BuiltAt:   manifest.BuiltAt,
	}
}

func clampTopK(topK int) int {
	if topK <= 0 {
		return DefaultTopK
	}
	if topK > MaxTopK {
		return MaxTopK
	}
	return topK
}

// Close releases the handle to the lexical engine. The vector index and
// catalog are in-memory after load and need no teardown.
func (s *Searcher) Close() error {
	if err := s.vectors.Close(); err != nil {
		return err
	}
	return s.db.Close()
}
