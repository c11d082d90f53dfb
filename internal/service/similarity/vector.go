package similarity

import (
	"math"
	"strings"
)

// EmbeddingSimilarity maps cosine similarity from [-1,1] onto [0,1]. Zero-norm
// or mismatched vectors yield 0.
func EmbeddingSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	cos := dot / (math.Sqrt(na) * math.Sqrt(nb))
	return clamp01((cos + 1) / 2)
}

// MatchKeywords returns the paper keywords that match any reviewer keyword.
// Comparison is case-insensitive on trimmed text; a match is equality or either
// side containing the other. Results keep paper order and casing, deduplicated.
func MatchKeywords(paperKeywords, reviewerKeywords []string) []string {
	out := []string{}
	if len(paperKeywords) == 0 || len(reviewerKeywords) == 0 {
		return out
	}
	rv := make([]string, 0, len(reviewerKeywords))
	for _, k := range reviewerKeywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			rv = append(rv, k)
		}
	}
	seen := make(map[string]bool, len(paperKeywords))
	for _, raw := range paperKeywords {
		trimmed := strings.TrimSpace(raw)
		pk := strings.ToLower(trimmed)
		if pk == "" || seen[pk] {
			continue
		}
		for _, r := range rv {
			if pk == r || strings.Contains(r, pk) || strings.Contains(pk, r) {
				seen[pk] = true
				out = append(out, trimmed)
				break
			}
		}
	}
	return out
}

// KeywordScore is matches / paper keyword count, or 0 with no paper keywords.
func KeywordScore(matches, paperKeywords int) float64 {
	if paperKeywords <= 0 {
		return 0
	}
	return clamp01(float64(matches) / float64(paperKeywords))
}
