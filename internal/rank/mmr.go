package rank

import (
	"regexp"
	"strings"
)

// DefaultMMRLambda balances relevance against diversity: 1.0 is pure
// relevance, 0.0 pure diversity.
const DefaultMMRLambda = 0.7

var wordPattern = regexp.MustCompile(`[a-z0-9]+`)

// MMRFilter greedily re-selects from a relevance-sorted result list using
// Maximal Marginal Relevance, penalizing candidates that look like chunks
// already selected. The highest-relevance result is always kept first.
// maxResults <= 0 means unbounded. Inputs of length 0 or 1 are returned
// unchanged.
func MMRFilter(results []Fused, lambda float64, maxResults int) []Fused {
	if len(results) <= 1 {
		return results
	}
	if maxResults <= 0 || maxResults > len(results) {
		maxResults = len(results)
	}

	tokens := make([]map[string]struct{}, len(results))
	for i, r := range results {
		tokens[i] = wordSet(r.Text)
	}

	selected := make([]Fused, 0, maxResults)
	selectedTokens := make([]map[string]struct{}, 0, maxResults)
	remaining := make([]int, 0, len(results)-1)

	selected = append(selected, results[0])
	selectedTokens = append(selectedTokens, tokens[0])
	for i := 1; i < len(results); i++ {
		remaining = append(remaining, i)
	}

	for len(selected) < maxResults && len(remaining) > 0 {
		bestPos := 0
		bestScore := mmrScore(results[remaining[0]].Score, tokens[remaining[0]], selectedTokens, lambda)

		for pos := 1; pos < len(remaining); pos++ {
			idx := remaining[pos]
			score := mmrScore(results[idx].Score, tokens[idx], selectedTokens, lambda)
			if score > bestScore {
				bestScore = score
				bestPos = pos
			}
		}

		idx := remaining[bestPos]
		selected = append(selected, results[idx])
		selectedTokens = append(selectedTokens, tokens[idx])
		remaining = append(remaining[:bestPos], remaining[bestPos+1:]...)
	}

	return selected
}

func mmrScore(relevance float64, candidate map[string]struct{}, selected []map[string]struct{}, lambda float64) float64 {
	maxSim := 0.0
	for _, s := range selected {
		if sim := Jaccard(candidate, s); sim > maxSim {
			maxSim = sim
		}
	}
	return lambda*relevance - (1-lambda)*maxSim
}

// Jaccard returns |intersection| / |union| of two token sets. Two empty
// sets count as identical (1); exactly one empty set as disjoint (0).
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for t := range a {
		if _, ok := b[t]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

func wordSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		set[w] = struct{}{}
	}
	return set
}
