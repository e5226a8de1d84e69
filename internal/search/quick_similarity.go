package search

import (
	"math"
	"strings"
)

// QuickSimilarity is the cheap token-overlap score used only to pre-filter
// candidates: 100 exact, 80 containment, otherwise the share of common tokens.
// It is not the scoring similarity and must never rank final results.
func QuickSimilarity(a, b string) int {
	a, b = strings.ToLower(strings.TrimSpace(a)), strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 100
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return 80
	}

	t1, t2 := tokenSet(a), tokenSet(b)
	common := 0
	for tok := range t1 {
		if t2[tok] {
			common++
		}
	}
	maxLen := len(t1)
	if len(t2) > maxLen {
		maxLen = len(t2)
	}
	if maxLen == 0 {
		return 0
	}
	return int(math.Round(100 * float64(common) / float64(maxLen)))
}

func tokenSet(s string) map[string]bool {
	fields := strings.Fields(s)
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return set
}
