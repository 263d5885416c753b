package types

// LexicalHit is a single match from the lexical full-text index.
type LexicalHit struct {
	// ID is the catalog identifier of the matched row.
	ID string `json:"id"`
	// Score is the engine's bm25 score; lower means more relevant.
	Score float64 `json:"score"`
}

// Candidate is a lexical hit joined to its vector-index position,
// carrying the semantic similarity once re-ranked.
type Candidate struct {
	Hit LexicalHit
	// Position is the 0-based row of this item in the vector index.
	Position int
	// LexicalRank is the 1-based rank within the lexical results.
	LexicalRank int
	// Similarity is the cosine similarity to the query embedding, in [-1, 1].
	Similarity float32
}

// SearchResult is one ranked entry returned to the caller.
type SearchResult struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Price       string  `json:"price"`
	Description string  `json:"description"`
	Score       float64 `json:"score"`
	MatchReason string  `json:"match_reason"`
}

// SearchResults is a ranked result list plus pipeline counters.
type SearchResults struct {
	Results []SearchResult `json:"results"`
	// TotalCandidates is the size of the resolved candidate pool the
	// re-ranker scored, before truncation to the requested count.
	TotalCandidates int `json:"total_candidates"`
	Limit           int `json:"limit"`
}
