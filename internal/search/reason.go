package search

import (
	"strings"

	"github.com/searchlabs/catalog-search/internal/textnorm"
	"github.com/searchlabs/catalog-search/internal/types"
)

// semanticMatchReason is reported when no query token appears verbatim
// in any catalog field: the item matched on embedding similarity alone.
const semanticMatchReason = "Semantic match"

// MatchReason explains why an item matched: for each catalog field, the
// query tokens that also occur in that field, as "field: term1, term2"
// joined by "; ". Purely explanatory; it never affects ranking. Token
// order follows the query, so identical inputs give identical reasons.
func MatchReason(query string, item types.CatalogItem) string {
	queryTokens := textnorm.Tokens(query)
	if len(queryTokens) == 0 {
		return semanticMatchReason
	}

	// Dedupe while keeping query order.
	uniqueTokens := queryTokens[:0:0]
	seen := make(map[string]struct{}, len(queryTokens))
	for _, tok := range queryTokens {
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		uniqueTokens = append(uniqueTokens, tok)
	}

	price := ""
	if item.HasPrice {
		price = item.Price.String()
	}
	fields := []struct {
		name string
		text string
	}{
		{"reference", item.Reference},
		{"title", item.Title},
		{"description", item.Description},
		{"features", item.Features},
		{"category", item.Category},
		{"price", price},
	}

	var reasons []string
	for _, field := range fields {
		fieldTokens := textnorm.TokenSet(field.text)
		if len(fieldTokens) == 0 {
			continue
		}
		var matching []string
		for _, tok := range uniqueTokens {
			if _, ok := fieldTokens[tok]; ok {
				matching = append(matching, tok)
			}
		}
		if len(matching) > 0 {
			reasons = append(reasons, field.name+": "+strings.Join(matching, ", "))
		}
	}

	if len(reasons) == 0 {
		return semanticMatchReason
	}
	return strings.Join(reasons, "; ")
}
