package rank

import (
	"math"
	"sort"
	"time"
)

// ApplyTemporalDecay rescales each chunk's score by its age using
// exponential decay and re-sorts the results by the decayed score.
//
// Age comes from the first YYYY-MM-DD substring in the chunk's path,
// taken as midnight UTC; undated chunks keep their score unchanged.
// halfLifeHours <= 0 disables decay entirely and returns the input
// untouched. The pre-decay score is preserved on every result.
func ApplyTemporalDecay(results []Fused, halfLifeHours float64, now time.Time) []Fused {
	if halfLifeHours <= 0 || len(results) == 0 {
		return results
	}

	decayRate := math.Ln2 / halfLifeHours

	out := make([]Fused, len(results))
	copy(out, results)
	for i := range out {
		out[i].PreDecayScore = out[i].Score
		date, ok := ParsePathDate(out[i].Path)
		if !ok {
			continue
		}
		ageHours := now.Sub(date).Hours()
		if ageHours < 0 {
			ageHours = 0
		}
		out[i].Score *= math.Exp(-decayRate * ageHours)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}
