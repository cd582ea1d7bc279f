package chunker

import "unicode/utf8"

// EstimateTokens gives a rough token count using the ~4 chars/token heuristic.
// Never returns less than 1.
func EstimateTokens(text string) int {
	tokens := utf8.RuneCountInString(text) / 4
	if tokens < 1 {
		return 1
	}
	return tokens
}
