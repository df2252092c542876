package engine

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hurttlocker/recall/internal/config"
	"github.com/hurttlocker/recall/internal/rank"
	"github.com/hurttlocker/recall/internal/store"
	"github.com/hurttlocker/recall/internal/vector"
)

type fakeSearcher struct {
	results []rank.Chunk
	err     error
	block   bool
}

func (f *fakeSearcher) Search(ctx context.Context, query string, opts vector.SearchOpts) ([]rank.Chunk, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.results, f.err
}

func (f *fakeSearcher) Available() bool { return true }

func testOptions(t *testing.T) config.Options {
	t.Helper()
	opts := config.Default()
	opts.UtilityPath = filepath.Join(t.TempDir(), "utility.json")
	opts.TimeoutMs = 200
	return opts
}

func newTestEngine(t *testing.T, opts config.Options, vec vector.Searcher) *Engine {
	t.Helper()
	st, err := store.NewStore(store.StoreConfig{DBPath: ":memory:"})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	e := New(opts, st, vec, nil)
	t.Cleanup(func() {
		e.Close()
		st.Close()
	})
	return e
}

func TestRecallGatesTrivialQueries(t *testing.T) {
	e := newTestEngine(t, testOptions(t), nil)
	e.AddDocument("hello is also indexed content for completeness", "notes", "a.md", "")

	for _, q := range []string{"hi", "thanks!", "/compact", "continue", "ab", "  "} {
		if _, ok := e.Recall(context.Background(), q, ""); ok {
			t.Fatalf("query %q should have been gated", q)
		}
	}
}

func TestRecallGateDisabled(t *testing.T) {
	opts := testOptions(t)
	opts.EnableSkipPatterns = false

	e := newTestEngine(t, opts, nil)
	e.AddDocument("hello is the standard greeting in the onboarding doc", "notes", "onboarding.md", "")
	e.AddDocument("budget review notes from the spring planning cycle", "notes", "budget.md", "")

	if _, ok := e.Recall(context.Background(), "hello", ""); !ok {
		t.Fatalf("with gating disabled, a greeting-shaped query should still retrieve")
	}
}

func TestRecallCacheCheckedBeforeGate(t *testing.T) {
	e := newTestEngine(t, testOptions(t), nil)
	e.cache.Set("thanks", []rank.Chunk{{Path: "greet.md", Text: "canned greeting context", Score: 0.9}})

	got, ok := e.Recall(context.Background(), "thanks", "")
	if !ok {
		t.Fatalf("cached entry should be served even for a gated query")
	}
	if !strings.Contains(got, "canned greeting context") {
		t.Fatalf("expected cached chunk in the context: %q", got)
	}
}

func TestRecallEndToEnd(t *testing.T) {
	target := rank.Chunk{
		Text:   "NETSDK1005 fixed by deleting obj and restoring with the lockfile",
		Source: "notes",
		Path:   "memory/2026-02-10.md",
		Lines:  "3-5",
		Score:  0.82,
	}
	vec := &fakeSearcher{results: []rank.Chunk{target}}

	e := newTestEngine(t, testOptions(t), vec)
	// Pin the clock near the chunk dates so decay leaves scores meaningful.
	e.now = func() time.Time { return time.Date(2026, 2, 11, 12, 0, 0, 0, time.UTC) }
	e.AddDocument(target.Text, target.Source, target.Path, target.Lines)
	e.AddDocument("unrelated grocery list apples and bread", "notes", "memory/2026-02-11.md", "1-2")

	got, ok := e.Recall(context.Background(), "how did we fix NETSDK1005", "session-1")
	if !ok {
		t.Fatalf("expected an injection")
	}
	if !strings.Contains(got, "<relevant-memories>") || !strings.Contains(got, "</relevant-memories>") {
		t.Fatalf("missing wrapper: %q", got)
	}
	if !strings.Contains(got, "NETSDK1005 fixed by deleting obj") {
		t.Fatalf("expected the matching chunk in the context: %q", got)
	}
	if !strings.Contains(got, `path="memory/2026-02-10.md"`) {
		t.Fatalf("expected chunk metadata in the context: %q", got)
	}
	if strings.Contains(got, "grocery list") {
		t.Fatalf("unrelated chunk leaked into the context: %q", got)
	}
}

func TestRecallKeywordOnlyWhenVectorTimesOut(t *testing.T) {
	opts := testOptions(t)
	opts.TimeoutMs = 30
	vec := &fakeSearcher{block: true}

	e := newTestEngine(t, opts, vec)
	e.AddDocument("the migration plan moves chunks into sqlite", "notes", "a.md", "")
	e.AddDocument("lunch options near the office", "notes", "b.md", "")

	start := time.Now()
	got, ok := e.Recall(context.Background(), "sqlite migration plan", "")
	if !ok {
		t.Fatalf("keyword signal alone should still produce an injection")
	}
	if !strings.Contains(got, "migration plan") {
		t.Fatalf("wrong chunk injected: %q", got)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("vector timeout not enforced, recall took %v", elapsed)
	}

	// Timeouts are not sticky; the next query still works.
	if _, ok := e.Recall(context.Background(), "sqlite migration plan again", ""); !ok {
		t.Fatalf("subsequent query should succeed")
	}
}

func TestRecallVectorErrorDegrades(t *testing.T) {
	vec := &fakeSearcher{err: context.DeadlineExceeded}
	e := newTestEngine(t, testOptions(t), vec)
	e.AddDocument("error budget policy for the ingest service", "notes", "a.md", "")

	if _, ok := e.Recall(context.Background(), "ingest error budget policy", ""); !ok {
		t.Fatalf("vector errors must degrade to keyword-only, not fail the query")
	}
}

func TestRecallNoMatchesNoInjection(t *testing.T) {
	e := newTestEngine(t, testOptions(t), nil)
	e.AddDocument("completely unrelated indexed text", "notes", "a.md", "")

	got, ok := e.Recall(context.Background(), "quantum chromodynamics lattice spacing", "")
	if ok || got != "" {
		t.Fatalf("no matching chunk should mean no injection, got %q", got)
	}
}

func TestRecallCachesResults(t *testing.T) {
	e := newTestEngine(t, testOptions(t), nil)
	e.AddDocument("retry with exponential backoff on embed calls", "notes", "a.md", "")

	query := "embed retry backoff"
	if _, ok := e.Recall(context.Background(), query, ""); !ok {
		t.Fatalf("expected an injection")
	}

	cached, ok := e.cache.Get(query)
	if !ok {
		t.Fatalf("recall result should be cached")
	}
	if len(cached) == 0 || !strings.Contains(cached[0].Text, "exponential backoff") {
		t.Fatalf("wrong cached results: %v", cached)
	}
}

func TestRecallCachesNegativeResults(t *testing.T) {
	e := newTestEngine(t, testOptions(t), nil)
	e.AddDocument("some indexed content", "notes", "a.md", "")

	query := "nothing matches this query text"
	e.Recall(context.Background(), query, "")

	cached, ok := e.cache.Get(query)
	if !ok {
		t.Fatalf("empty results should be cached too")
	}
	if len(cached) != 0 {
		t.Fatalf("expected cached empty slice, got %v", cached)
	}
}

func TestRecallCacheHitShortCircuits(t *testing.T) {
	opts := testOptions(t)
	opts.TimeoutMs = 5000
	e := newTestEngine(t, opts, nil)
	e.AddDocument("rotation schedule for the on-call pager", "notes", "a.md", "")

	query := "on-call pager rotation"
	if _, ok := e.Recall(context.Background(), query, ""); !ok {
		t.Fatalf("expected an injection")
	}

	// A cached query must not reach the search signals at all.
	e.vec = &fakeSearcher{block: true}
	start := time.Now()
	if _, ok := e.Recall(context.Background(), query, ""); !ok {
		t.Fatalf("cache hit should serve the query")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("cache hit should bypass the pipeline, took %v", elapsed)
	}
}

func TestRecallFeedbackLoop(t *testing.T) {
	e := newTestEngine(t, testOptions(t), nil)
	e.AddDocument("connection pool capped at twenty for the primary", "notes", "pool.md", "")

	session := "session-42"
	if _, ok := e.Recall(context.Background(), "primary connection pool cap", session); !ok {
		t.Fatalf("expected an injection")
	}
	e.RecordResponse(session, "the connection pool stays capped at twenty on the primary")

	snap := e.Tracker().Snapshot()
	rec, ok := snap["pool.md"]
	if !ok {
		t.Fatalf("injected chunk should be tracked, have %v", snap)
	}
	if rec.Retrievals != 1 || rec.Citations != 1 {
		t.Fatalf("wrong counts: %+v", rec)
	}
}

func TestRecallFeedbackDisabled(t *testing.T) {
	opts := testOptions(t)
	opts.EnableFeedbackLoop = false
	e := newTestEngine(t, opts, nil)
	e.AddDocument("tracked content that should not be recorded", "notes", "a.md", "")

	e.Recall(context.Background(), "tracked content recorded", "session-1")
	if len(e.Tracker().Snapshot()) != 0 {
		t.Fatalf("feedback disabled must mean no tracking")
	}
}

func TestRebuildIndexesStoredChunks(t *testing.T) {
	e := newTestEngine(t, testOptions(t), nil)
	ctx := context.Background()

	for _, text := range []string{"first stored chunk", "second stored chunk"} {
		if _, err := e.Store().AddChunk(ctx, &store.Chunk{Text: text, Path: text + ".md"}); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	if err := e.Rebuild(ctx); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if e.IndexedChunks() != 2 {
		t.Fatalf("expected 2 indexed chunks, got %d", e.IndexedChunks())
	}
	if _, ok := e.Recall(ctx, "second stored chunk", ""); !ok {
		t.Fatalf("rebuilt index should serve queries")
	}
}

func TestBoostOverlapCapsAtOne(t *testing.T) {
	fused := []rank.Fused{
		{Chunk: rank.Chunk{Path: "both.md", Score: 0.95}, VectorRank: 1},
		{Chunk: rank.Chunk{Path: "vector-only.md", Score: 0.5}, VectorRank: 2},
	}
	bm25 := []rank.Chunk{{Path: "both.md", Score: 4.2}}

	boostOverlap(fused, 2, bm25, 0.15)

	if fused[0].Score != 1 {
		t.Fatalf("boosted score must cap at 1, got %.4f", fused[0].Score)
	}
	if fused[1].Score != 0.5 {
		t.Fatalf("single-signal chunk must not be boosted, got %.4f", fused[1].Score)
	}
}
