package dedup

import (
	"strings"
	"unicode/utf8"
)

const DefaultSimilarityThreshold = 0.2

// EditDistance returns the Levenshtein distance between a and b, counted in runes.
func EditDistance(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)

	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(
				prev[j]+1,
				curr[j-1]+1,
				prev[j-1]+cost,
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(rb)]
}

func IsSimilar(a, b string) bool {
	return IsSimilarWithThreshold(a, b, DefaultSimilarityThreshold)
}

// IsSimilarWithThreshold compares case-insensitively; the ratio is the edit
// distance over the longer input and must be strictly below threshold.
func IsSimilarWithThreshold(a, b string, threshold float64) bool {
	la := strings.ToLower(a)
	lb := strings.ToLower(b)

	longest := max(utf8.RuneCountInString(la), utf8.RuneCountInString(lb), 1)
	ratio := float64(EditDistance(la, lb)) / float64(longest)

	return ratio < threshold
}
