package formfill

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// fuzzyThreshold is the minimum Jaro-Winkler similarity for a fuzzy label match
const fuzzyThreshold = 0.85

func normalizeLabel(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// matchOption returns the index of the candidate that best matches want, or
// -1. Exact (case-insensitive) beats substring, which beats fuzzy.
func matchOption(want string, candidates []string) int {
	w := normalizeLabel(want)
	if w == "" {
		return -1
	}

	for i, c := range candidates {
		if normalizeLabel(c) == w {
			return i
		}
	}
	for i, c := range candidates {
		if strings.Contains(normalizeLabel(c), w) {
			return i
		}
	}

	best, bestScore := -1, fuzzyThreshold
	for i, c := range candidates {
		if score := matchr.JaroWinkler(w, normalizeLabel(c), false); score >= bestScore {
			if score > bestScore || best == -1 {
				best, bestScore = i, score
			}
		}
	}
	return best
}
