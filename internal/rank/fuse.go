package rank

import (
	"sort"
	"strings"
	"time"
)

const defaultRRFK = 60

// DefaultMaxResults is the fused result count when FuseInput.MaxResults
// is unset.
const DefaultMaxResults = 5

// Weights holds the per-signal weights for Reciprocal Rank Fusion.
type Weights struct {
	Vector  float64
	BM25    float64
	Recency float64
	Entity  float64
}

// DefaultWeights returns the default signal weighting. Vector similarity
// dominates; entity overlap is a weak corrective signal.
func DefaultWeights() Weights {
	return Weights{Vector: 0.4, BM25: 0.3, Recency: 0.2, Entity: 0.1}
}

// FuseInput holds the inputs to FuseResults. VectorResults and BM25Results
// must each be pre-sorted descending by their own signal's score.
type FuseInput struct {
	VectorResults  []Chunk
	BM25Results    []Chunk
	Weights        Weights
	K              int // RRF constant, default 60
	MaxResults     int
	TemporalFilter *TemporalWindow
	Entities       []string
}

// FuseResults merges the vector and keyword result lists with two derived
// signals (path-date recency, entity containment) using Reciprocal Rank
// Fusion. Chunks are deduplicated by identity key before fusion; the first
// occurrence wins for carried-through fields. A chunk absent from a signal
// receives the sentinel rank totalDocuments+1, one worse than last place.
func FuseResults(in FuseInput) []Fused {
	if in.K <= 0 {
		in.K = defaultRRFK
	}
	if in.MaxResults <= 0 {
		in.MaxResults = DefaultMaxResults
	}
	if in.Weights == (Weights{}) {
		in.Weights = DefaultWeights()
	}

	byKey := make(map[string]*Fused)
	var keys []string

	add := func(c Chunk) *Fused {
		key := IdentityKey(c)
		if e, ok := byKey[key]; ok {
			return e
		}
		e := &Fused{Chunk: c}
		byKey[key] = e
		keys = append(keys, key)
		return e
	}

	for i, c := range in.VectorResults {
		e := add(c)
		if e.VectorRank == 0 {
			e.VectorRank = i + 1
		}
	}
	for i, c := range in.BM25Results {
		e := add(c)
		if e.BM25Rank == 0 {
			e.BM25Rank = i + 1
		}
	}

	total := len(keys)
	sentinel := total + 1

	assignRecencyRanks(byKey, keys)
	assignEntityRanks(byKey, keys, in.Entities)

	merged := make([]*Fused, 0, total)
	for _, key := range keys {
		e := byKey[key]
		if e.VectorRank == 0 {
			e.VectorRank = sentinel
		}
		if e.BM25Rank == 0 {
			e.BM25Rank = sentinel
		}
		if e.RecencyRank == 0 {
			e.RecencyRank = sentinel
		}
		if e.EntityRank == 0 {
			e.EntityRank = sentinel
		}

		e.FusedScore = in.Weights.Vector/float64(in.K+e.VectorRank) +
			in.Weights.BM25/float64(in.K+e.BM25Rank) +
			in.Weights.Recency/float64(in.K+e.RecencyRank) +
			in.Weights.Entity/float64(in.K+e.EntityRank)

		merged = append(merged, e)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].FusedScore > merged[j].FusedScore
	})

	out := make([]Fused, 0, len(merged))
	for _, e := range merged {
		if !withinWindow(e.Path, in.TemporalFilter) {
			continue
		}
		out = append(out, *e)
		if len(out) >= in.MaxResults {
			break
		}
	}
	return out
}

// assignRecencyRanks ranks every chunk by the date parsed from its path,
// newest first. Undated chunks sort as oldest (epoch). Ties keep insertion
// order so the fused output stays deterministic.
func assignRecencyRanks(byKey map[string]*Fused, keys []string) {
	type dated struct {
		key  string
		date time.Time
	}
	ds := make([]dated, 0, len(keys))
	for _, key := range keys {
		d, ok := ParsePathDate(byKey[key].Path)
		if !ok {
			d = time.Unix(0, 0).UTC()
		}
		ds = append(ds, dated{key: key, date: d})
	}
	sort.SliceStable(ds, func(i, j int) bool {
		return ds[i].date.After(ds[j].date)
	})
	for rank, d := range ds {
		byKey[d.key].RecencyRank = rank + 1
	}
}

// assignEntityRanks ranks chunks by how many of the query's extracted
// entities appear in the chunk text (case-insensitive containment).
// With no entities the ranks stay unset: every chunk then receives the
// sentinel rank, netting to an equal contribution for all of them.
func assignEntityRanks(byKey map[string]*Fused, keys []string, entities []string) {
	if len(entities) == 0 {
		return
	}
	type counted struct {
		key   string
		count int
	}
	cs := make([]counted, 0, len(keys))
	for _, key := range keys {
		text := strings.ToLower(byKey[key].Text)
		n := 0
		for _, ent := range entities {
			if ent == "" {
				continue
			}
			if strings.Contains(text, strings.ToLower(ent)) {
				n++
			}
		}
		cs = append(cs, counted{key: key, count: n})
	}
	sort.SliceStable(cs, func(i, j int) bool {
		return cs[i].count > cs[j].count
	})
	for rank, c := range cs {
		byKey[c.key].EntityRank = rank + 1
	}
}

// withinWindow reports whether a chunk passes the temporal filter.
// Chunks with no parseable path date are always retained.
func withinWindow(path string, w *TemporalWindow) bool {
	if w == nil || (w.Start.IsZero() && w.End.IsZero()) {
		return true
	}
	d, ok := ParsePathDate(path)
	if !ok {
		return true
	}
	if !w.Start.IsZero() && d.Before(w.Start) {
		return false
	}
	if !w.End.IsZero() && d.After(w.End) {
		return false
	}
	return true
}
