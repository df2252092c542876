package rank

// Adaptive filter thresholds: a top score below noiseFloor means the whole
// result set is judged noise; above strongMatch the top hits are precise
// enough that fewer, tighter results serve better. Scores exactly at either
// boundary count as moderate.
const (
	noiseFloor  = 0.4
	strongMatch = 0.7
	strongCap   = 2
)

// AdaptiveFilter trims a descending-sorted result list based on the
// quality of its top score: noise returns nothing, a strong match returns
// at most two results, and a moderate match returns up to maxResults.
func AdaptiveFilter(results []Fused, maxResults int) []Fused {
	if len(results) == 0 {
		return results
	}

	top := results[0].Score

	switch {
	case top < noiseFloor:
		return nil
	case top > strongMatch:
		limit := strongCap
		if maxResults < limit {
			limit = maxResults
		}
		if len(results) > limit {
			return results[:limit]
		}
		return results
	default:
		if maxResults > 0 && len(results) > maxResults {
			return results[:maxResults]
		}
		return results
	}
}
