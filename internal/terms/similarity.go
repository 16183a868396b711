package terms

import (
	"strings"
	"unicode"
)

// DefaultSimilarityThreshold flags two definitions as near-duplicates.
const DefaultSimilarityThreshold = 0.8

// SimilarityFunc scores two definition texts in [0, 1].
type SimilarityFunc func(a, b string) float64

// TokenOverlap is the Jaccard ratio of the lowercase word sets of a and b.
func TokenOverlap(a, b string) float64 {
	ta, tb := tokenSet(a), tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	shared := 0
	for tok := range ta {
		if _, ok := tb[tok]; ok {
			shared++
		}
	}
	union := len(ta) + len(tb) - shared
	return float64(shared) / float64(union)
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}
