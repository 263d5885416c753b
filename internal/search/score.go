package search

// descriptionBudget is the display budget for result descriptions, in runes.
const descriptionBudget = 200

// similarityToScore remaps cosine similarity [-1, 1] onto the display
// scale [0, 100], with 50 for orthogonal vectors. The formula is a
// fixed design choice; callers depend on it for score compatibility.
func similarityToScore(similarity float32) float64 {
	score := (float64(similarity) + 1) * 50
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// truncateDescription cuts a description to the display budget,
// appending an ellipsis marker when anything was dropped.
func truncateDescription(description string) string {
	runes := []rune(description)
	if len(runes) <= descriptionBudget {
		return description
	}
	return string(runes[:descriptionBudget]) + "..."
}
