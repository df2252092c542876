package vector

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/hurttlocker/recall/internal/embed"
	"github.com/hurttlocker/recall/internal/rank"
	"github.com/hurttlocker/recall/internal/store"
	"go.uber.org/zap"
)

type indexed struct {
	chunk  rank.Chunk
	vector []float32
}

// Local is a Searcher over the chunk store's embeddings. Initialization
// is lazy and one-shot: the first search loads all embeddings into
// memory; if that or the embedder construction fails, the searcher stays
// permanently unavailable and every search returns empty results.
// Callers search concurrently, so the availability flag is atomic.
type Local struct {
	store    store.Store
	embedder embed.Embedder
	log      *zap.Logger

	initOnce    sync.Once
	entries     []indexed // written only inside initOnce
	unavailable atomic.Bool
}

// NewLocal creates a Local searcher. embedder may come from
// embed.NewClient; a nil embedder marks the searcher unavailable from
// the start.
func NewLocal(st store.Store, embedder embed.Embedder, log *zap.Logger) *Local {
	if log == nil {
		log = zap.NewNop()
	}
	l := &Local{store: st, embedder: embedder, log: log}
	if embedder == nil {
		l.unavailable.Store(true)
	}
	return l
}

// Available reports whether the searcher can serve queries. Before the
// first search this only reflects embedder presence; a failed lazy init
// flips it off for good.
func (l *Local) Available() bool {
	return !l.unavailable.Load()
}

// Search embeds the query and returns chunks ranked by cosine similarity
// descending, filtered to MinScore, capped at MaxResults.
func (l *Local) Search(ctx context.Context, query string, opts SearchOpts) ([]rank.Chunk, error) {
	if l.unavailable.Load() {
		return nil, nil
	}

	// Only the goroutine that runs the init observes its error; any
	// concurrent searches see the flag flip and degrade to empty.
	var initErr error
	l.initOnce.Do(func() {
		if err := l.init(ctx); err != nil {
			l.unavailable.Store(true)
			initErr = err
		}
	})
	if initErr != nil {
		return nil, fmt.Errorf("initializing vector index: %w", initErr)
	}
	if l.unavailable.Load() || len(l.entries) == 0 {
		return nil, nil
	}

	queryVec, err := l.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	scored := make([]rank.Chunk, 0, len(l.entries))
	for _, e := range l.entries {
		sim := cosineSimilarity(queryVec, e.vector)
		if sim < opts.MinScore {
			continue
		}
		c := e.chunk
		c.Score = sim
		scored = append(scored, c)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if opts.MaxResults > 0 && len(scored) > opts.MaxResults {
		scored = scored[:opts.MaxResults]
	}
	return scored, nil
}

// init loads all chunks and embeddings into memory. Chunks without a
// stored embedding are skipped; they still participate via the keyword
// signal.
func (l *Local) init(ctx context.Context) error {
	vectors, err := l.store.AllEmbeddings(ctx)
	if err != nil {
		return err
	}
	if len(vectors) == 0 {
		return nil
	}

	const page = 1000
	for offset := 0; ; offset += page {
		chunks, err := l.store.ListChunks(ctx, page, offset)
		if err != nil {
			return err
		}
		if len(chunks) == 0 {
			break
		}
		for _, c := range chunks {
			vec, ok := vectors[c.ID]
			if !ok {
				continue
			}
			l.entries = append(l.entries, indexed{
				chunk: rank.Chunk{
					Text:   c.Text,
					Source: c.Source,
					Path:   c.Path,
					Lines:  c.Lines,
				},
				vector: vec,
			})
		}
		if len(chunks) < page {
			break
		}
	}

	l.log.Debug("vector index loaded", zap.Int("entries", len(l.entries)))
	return nil
}

// cosineSimilarity returns the cosine of the angle between two vectors,
// or 0 when dimensions mismatch or either vector is zero.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
