// Package engine wires the retrieval pipeline together: gating, query
// enrichment, concurrent vector + keyword search, rank fusion, temporal
// decay, adaptive and diversity filtering, query caching, and the
// utility-feedback hooks.
//
// No failure inside the pipeline propagates out of Recall: every stage
// degrades to contributing nothing, and the caller either gets a
// formatted context block or an explicit "no injection".
package engine

import (
	"context"
	"time"

	"github.com/hurttlocker/recall/internal/config"
	"github.com/hurttlocker/recall/internal/enrich"
	"github.com/hurttlocker/recall/internal/index"
	"github.com/hurttlocker/recall/internal/qcache"
	"github.com/hurttlocker/recall/internal/rank"
	"github.com/hurttlocker/recall/internal/store"
	"github.com/hurttlocker/recall/internal/utility"
	"github.com/hurttlocker/recall/internal/vector"
	"go.uber.org/zap"
)

// candidateMultiplier widens the per-signal result lists handed to
// fusion, so the fused top-N has real candidates to choose from.
const candidateMultiplier = 3

// Engine owns the shared mutable state of the pipeline (keyword index,
// query cache, utility tracker) and orchestrates one Recall per query.
type Engine struct {
	opts    config.Options
	log     *zap.Logger
	store   store.Store
	idx     *index.Index
	cache   *qcache.Cache
	tracker *utility.Tracker
	vec     vector.Searcher
	gate    *gate

	now func() time.Time // swapped in tests
}

// New constructs an engine. vec may be nil when no embedding provider is
// configured; the pipeline then runs on the keyword signal alone.
func New(opts config.Options, st store.Store, vec vector.Searcher, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}

	// Disabled gating means a pattern-free gate, not the defaults.
	g := &gate{}
	if opts.EnableSkipPatterns {
		g = newGate(opts.SkipPatterns, log)
	}

	fuzzy := opts.FuzzyCacheThreshold
	e := &Engine{
		opts:    opts,
		log:     log,
		store:   st,
		idx:     index.New(),
		cache:   qcache.New(opts.CacheSize, time.Duration(opts.CacheTTLMs)*time.Millisecond, fuzzy),
		tracker: utility.NewTracker(opts.UtilityPath, log),
		vec:     vec,
		gate:    g,
		now:     time.Now,
	}

	if err := e.tracker.Load(); err != nil {
		log.Warn("loading utility state failed, starting empty", zap.Error(err))
	}
	return e
}

// Rebuild loads all stored chunks into the keyword index. Called at
// startup and after imports.
func (e *Engine) Rebuild(ctx context.Context) error {
	const page = 1000
	total := 0
	for offset := 0; ; offset += page {
		chunks, err := e.store.ListChunks(ctx, page, offset)
		if err != nil {
			return err
		}
		if len(chunks) == 0 {
			break
		}
		for _, c := range chunks {
			e.idx.AddDocument(c.Text, c.Source, c.Path, c.Lines)
		}
		total += len(chunks)
		if len(chunks) < page {
			break
		}
	}
	e.idx.Build()
	e.log.Debug("keyword index rebuilt", zap.Int("chunks", total))
	return nil
}

// AddDocument appends one chunk to the keyword index without touching
// the store. The index re-derives its statistics on the next search.
func (e *Engine) AddDocument(text, source, path, lines string) {
	e.idx.AddDocument(text, source, path, lines)
}

// Recall runs the full pipeline for one query and returns the rendered
// context block. The second return value is false when nothing relevant
// survived filtering (or the query was gated): the caller proceeds
// without injected content. Recall never returns an error.
func (e *Engine) Recall(ctx context.Context, query, sessionKey string) (string, bool) {
	results := e.recallChunks(ctx, query, sessionKey)
	if len(results) == 0 {
		return "", false
	}
	rendered := formatContext(results, e.opts.MaxContextChars)
	if rendered == "" {
		return "", false
	}
	return rendered, true
}

func (e *Engine) recallChunks(ctx context.Context, query, sessionKey string) []rank.Chunk {
	// Cache first: a hit answers without re-judging the query.
	if cached, ok := e.cache.Get(query); ok {
		e.log.Debug("query cache hit", zap.String("query", query))
		e.recordInjection(sessionKey, cached)
		return cached
	}

	if e.gate.shouldSkip(query) {
		return nil
	}

	now := e.now().UTC()

	enriched := enrich.EnrichQuery(query, now)
	if !e.opts.EnableTemporalParsing {
		enriched.TemporalFilter = nil
	}

	vectorResults, bm25Results := e.searchSignals(ctx, query, enriched.Entities)

	fused := rank.FuseResults(rank.FuseInput{
		VectorResults:  vectorResults,
		BM25Results:    bm25Results,
		MaxResults:     e.opts.MaxResults * candidateMultiplier,
		TemporalFilter: enriched.TemporalFilter,
		Entities:       enriched.Entities,
	})

	if e.opts.EnableFts {
		boostOverlap(fused, len(vectorResults), bm25Results, e.opts.FtsBoostWeight)
	}

	fused = rank.ApplyTemporalDecay(fused, e.opts.HalfLifeHours, now)
	fused = rank.AdaptiveFilter(fused, e.opts.MaxResults)
	if e.opts.EnableMmr {
		fused = rank.MMRFilter(fused, e.opts.MmrLambda, e.opts.MaxResults)
	}

	results := make([]rank.Chunk, 0, len(fused))
	for _, f := range fused {
		results = append(results, f.Chunk)
	}

	e.cache.Set(query, results)
	if len(results) == 0 {
		return nil
	}

	e.recordInjection(sessionKey, results)
	return results
}

// searchSignals issues the vector and keyword searches concurrently. The
// vector search is bounded by the configured timeout; a timeout or error
// means "no vector results", never a failed query. Timeouts are
// non-sticky and retried fresh on the next query.
func (e *Engine) searchSignals(ctx context.Context, query string, entities []string) (vectorResults, bm25Results []rank.Chunk) {
	limit := e.opts.MaxResults * candidateMultiplier

	vecCh := make(chan []rank.Chunk, 1)
	go func() {
		if e.vec == nil || !e.vec.Available() {
			vecCh <- nil
			return
		}
		vecCtx, cancel := context.WithTimeout(ctx, time.Duration(e.opts.TimeoutMs)*time.Millisecond)
		defer cancel()

		results, err := e.vec.Search(vecCtx, query, vector.SearchOpts{
			MaxResults: limit,
			MinScore:   e.opts.MinScore,
		})
		if err != nil {
			e.log.Debug("vector search degraded to empty", zap.Error(err))
			vecCh <- nil
			return
		}
		vecCh <- results
	}()

	bm25Results = e.idx.Search(query, limit, entities)

	select {
	case vectorResults = <-vecCh:
	case <-ctx.Done():
	}
	return vectorResults, bm25Results
}

// boostOverlap nudges the carried score of chunks confirmed by both
// signals: BM25 scores are unbounded, so they are squashed to [0,1)
// before weighting. The boosted score stays capped at 1.
func boostOverlap(fused []rank.Fused, vectorCount int, bm25Results []rank.Chunk, weight float64) {
	if weight <= 0 {
		return
	}
	bm25ByKey := make(map[string]float64, len(bm25Results))
	for _, c := range bm25Results {
		bm25ByKey[rank.IdentityKey(c)] = c.Score
	}
	for i := range fused {
		raw, inBM25 := bm25ByKey[rank.IdentityKey(fused[i].Chunk)]
		if !inBM25 || fused[i].VectorRank > vectorCount {
			continue // present in only one signal
		}
		boosted := fused[i].Score + weight*(raw/(1+raw))
		if boosted > 1 {
			boosted = 1
		}
		fused[i].Score = boosted
	}
}

func (e *Engine) recordInjection(sessionKey string, chunks []rank.Chunk) {
	if !e.opts.EnableFeedbackLoop || sessionKey == "" {
		return
	}
	e.tracker.RecordInjection(sessionKey, chunks)
}

// RecordResponse feeds an agent response back into the utility tracker,
// correlating it with the chunks injected for the same session.
func (e *Engine) RecordResponse(sessionKey, responseText string) {
	if !e.opts.EnableFeedbackLoop {
		return
	}
	e.tracker.RecordResponse(sessionKey, responseText)
}

// UtilityScore exposes the tracker's Bayesian-smoothed usefulness score
// for a chunk identity key.
func (e *Engine) UtilityScore(key string) float64 {
	return e.tracker.UtilityScore(key)
}

// Tracker returns the owned utility tracker, for stats and maintenance
// commands.
func (e *Engine) Tracker() *utility.Tracker {
	return e.tracker
}

// Store returns the owned chunk store.
func (e *Engine) Store() store.Store {
	return e.store
}

// IndexedChunks returns the number of documents in the keyword index.
func (e *Engine) IndexedChunks() int {
	return e.idx.Len()
}

// Close flushes and releases owned resources. The engine must not be
// used after Close.
func (e *Engine) Close() error {
	return e.tracker.Close()
}
