// Package index provides an in-memory BM25 keyword index over memory
// chunks. The index is additive-only and rebuilt from the chunk store on
// startup; it is not persisted.
package index

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/hurttlocker/recall/internal/rank"
)

// Okapi BM25 parameters. k1 controls term-frequency saturation, b the
// degree of document-length normalization.
const (
	k1 = 1.2
	b  = 0.75
)

// tokenPattern keeps dots, at-signs, slashes and hyphens inside tokens so
// dotted paths, emails and scoped package names survive as single terms.
var tokenPattern = regexp.MustCompile(`[\w.@/-]+`)

type document struct {
	text   string
	source string
	path   string
	lines  string
	terms  map[string]int // term -> frequency
	length int            // token count
}

// Index is an in-memory BM25 full-text index. Adding documents invalidates
// the cached average document length until the next Build; Search builds
// automatically when needed. Safe for concurrent use.
type Index struct {
	mu        sync.RWMutex
	docs      []document
	postings  map[string][]int // term -> doc IDs containing it, ascending
	avgDocLen float64
	built     bool
}

// New creates an empty index.
func New() *Index {
	return &Index{postings: make(map[string][]int)}
}

// AddDocument appends a document to the index and marks it unbuilt.
func (ix *Index) AddDocument(text, source, path, lines string) {
	tokens := Tokenize(text)
	terms := make(map[string]int, len(tokens))
	for _, t := range tokens {
		terms[t]++
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	id := len(ix.docs)
	ix.docs = append(ix.docs, document{
		text:   text,
		source: source,
		path:   path,
		lines:  lines,
		terms:  terms,
		length: len(tokens),
	})
	for term := range terms {
		ix.postings[term] = append(ix.postings[term], id)
	}
	ix.built = false
}

// Build computes the average document length and marks the index ready.
// Called automatically by Search when documents were added since the last
// build.
func (ix *Index) Build() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.buildLocked()
}

func (ix *Index) buildLocked() {
	if len(ix.docs) == 0 {
		ix.avgDocLen = 0
		ix.built = true
		return
	}
	total := 0
	for _, d := range ix.docs {
		total += d.length
	}
	ix.avgDocLen = float64(total) / float64(len(ix.docs))
	ix.built = true
}

// Len returns the number of indexed documents.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.docs)
}

// Search returns up to maxResults documents ranked by BM25 score
// descending. Only documents containing at least one query token are
// candidates; ties keep insertion order. Terms listed in boostTerms
// (case-insensitive) contribute double.
func (ix *Index) Search(query string, maxResults int, boostTerms []string) []rank.Chunk {
	queryTokens := Tokenize(query)
	if len(queryTokens) == 0 {
		return nil
	}

	ix.mu.Lock()
	if !ix.built {
		ix.buildLocked()
	}
	ix.mu.Unlock()

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	n := len(ix.docs)
	if n == 0 {
		return nil
	}

	boosted := make(map[string]struct{}, len(boostTerms))
	for _, t := range boostTerms {
		boosted[strings.ToLower(t)] = struct{}{}
	}

	// Candidate set: union of postings for the query tokens. Documents
	// matching no token are excluded, never scored as zero.
	seen := make(map[string]struct{}, len(queryTokens))
	scores := make(map[int]float64)
	var order []int

	for _, token := range queryTokens {
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}

		ids, ok := ix.postings[token]
		if !ok {
			continue
		}
		df := float64(len(ids))
		idf := math.Log((float64(n)-df+0.5)/(df+0.5) + 1)

		for _, id := range ids {
			doc := &ix.docs[id]
			tf := float64(doc.terms[token])
			tfNorm := (tf * (k1 + 1)) / (tf + k1*(1-b+b*(float64(doc.length)/ix.avgDocLen)))
			contribution := idf * tfNorm
			if _, boost := boosted[token]; boost {
				contribution *= 2
			}
			if _, present := scores[id]; !present {
				order = append(order, id)
			}
			scores[id] += contribution
		}
	}

	if len(order) == 0 {
		return nil
	}

	// Ties break by insertion order (doc IDs are assigned sequentially).
	sort.Slice(order, func(i, j int) bool {
		if scores[order[i]] == scores[order[j]] {
			return order[i] < order[j]
		}
		return scores[order[i]] > scores[order[j]]
	})

	if maxResults > 0 && len(order) > maxResults {
		order = order[:maxResults]
	}

	out := make([]rank.Chunk, 0, len(order))
	for _, id := range order {
		doc := &ix.docs[id]
		out = append(out, rank.Chunk{
			Text:   doc.text,
			Source: doc.source,
			Path:   doc.path,
			Lines:  doc.lines,
			Score:  scores[id],
		})
	}
	return out
}

// Tokenize lowercases text and extracts maximal runs of word characters
// plus `.`, `@`, `/` and `-`. Indexing and querying share this tokenizer.
func Tokenize(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}
