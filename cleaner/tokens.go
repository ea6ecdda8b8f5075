package cleaner

import "unicode"

// EstimateTokens approximates how many LLM tokens text costs. Han, kana and
// Hangul characters count one token each; everything else counts one token
// per four runes, rounded up.
func EstimateTokens(text string) int {
	var ideographic, other int
	for _, r := range text {
		if unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul) {
			ideographic++
		} else {
			other++
		}
	}
	return ideographic + (other+3)/4
}
