package ai

import "strings"

// EstimateTokens approximates a tokenizer: one token per whitespace
// separated word plus one per non-ASCII rune. Non-empty text is at least
// one token.
func EstimateTokens(text string) int {
	count := 0
	for _, r := range text {
		if r > 127 {
			count++
		}
	}
	count += len(strings.Fields(text))
	if count == 0 && len(text) > 0 {
		return 1
	}
	return count
}
