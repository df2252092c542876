// Package rank implements the ranking pipeline for recalled memory chunks:
// Reciprocal Rank Fusion across independent search signals, temporal decay,
// adaptive result-count filtering, and MMR diversity filtering.
//
// Signals produce scores on incompatible scales (cosine similarity vs BM25
// weight vs ordinal recency), so fusion is rank-based rather than
// score-based: each signal only has to produce a total order.
package rank

import (
	"regexp"
	"time"
)

// Chunk is a single memory fragment as produced by a search signal.
// Identity is Path when non-empty, else a text prefix (see IdentityKey).
// The Score field is signal-specific and not comparable across signals.
type Chunk struct {
	Text   string
	Source string
	Path   string
	Lines  string // e.g. "14-16"
	Score  float64
}

// identityPrefixLen is the number of leading text characters used as the
// identity key for chunks without a path.
const identityPrefixLen = 100

// IdentityKey returns the deduplication key for a chunk: its path if
// non-empty, otherwise the first 100 characters of its text.
func IdentityKey(c Chunk) string {
	if c.Path != "" {
		return c.Path
	}
	text := []rune(c.Text)
	if len(text) > identityPrefixLen {
		text = text[:identityPrefixLen]
	}
	return string(text)
}

// TemporalWindow is an inclusive date range used to filter chunks by the
// date embedded in their path. Chunks with no parseable date always pass.
type TemporalWindow struct {
	Start time.Time
	End   time.Time
}

// Fused is a chunk plus its fusion score and per-signal rank breakdown.
type Fused struct {
	Chunk
	FusedScore    float64
	PreDecayScore float64 // original score before temporal decay, set by ApplyTemporalDecay
	VectorRank    int
	BM25Rank      int
	RecencyRank   int
	EntityRank    int
}

var pathDatePattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

// ParsePathDate extracts the first YYYY-MM-DD substring from a path and
// returns it as midnight UTC. The second return value is false when the
// path carries no valid date.
func ParsePathDate(path string) (time.Time, bool) {
	match := pathDatePattern.FindString(path)
	if match == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", match)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}
