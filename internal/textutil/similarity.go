package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var folder = cases.Fold()

// Tokenize splits text into case-folded words with punctuation stripped.
func Tokenize(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	normalized := folder.String(norm.NFKC.String(text))
	return strings.FieldsFunc(normalized, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// WordSet returns the distinct tokens of text.
func WordSet(text string) map[string]struct{} {
	tokens := Tokenize(text)
	set := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		set[token] = struct{}{}
	}
	return set
}

// JaccardSimilarity returns |A∩B| / |A∪B| over the word sets of a and b.
// Returns 0 when both inputs are empty.
func JaccardSimilarity(a, b string) float64 {
	return JaccardSets(WordSet(a), WordSet(b))
}

// JaccardSets computes the Jaccard index of two precomputed word sets.
func JaccardSets(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	intersection := 0
	for token := range small {
		if _, ok := large[token]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
