// Package vector implements the semantic search signal: query embedding
// plus brute-force cosine similarity over the embeddings held in the
// chunk store. At the corpus sizes recall targets (hundreds to a few
// thousand chunks) brute force stays well under a millisecond.
package vector

import (
	"context"

	"github.com/hurttlocker/recall/internal/rank"
)

// SearchOpts bounds a vector search.
type SearchOpts struct {
	MaxResults int
	MinScore   float64
}

// Searcher produces vector-similarity ranked chunks for a query. A
// Searcher must fail soft: internal errors surface as empty results plus
// the error for logging, never as a reason to abort the query.
type Searcher interface {
	Search(ctx context.Context, query string, opts SearchOpts) ([]rank.Chunk, error)

	// Available reports whether the signal can serve queries at all.
	// Unavailability is permanent and cheap to check; callers skip the
	// signal rather than re-attempting initialization per query.
	Available() bool
}
