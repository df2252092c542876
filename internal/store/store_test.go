package store

import (
	"context"
	"testing"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	s, err := NewStore(StoreConfig{DBPath: ":memory:"})
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAddAndListChunks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.AddChunk(ctx, &Chunk{
		Text:   "decided to use WAL mode for the local db",
		Source: "notes",
		Path:   "memory/2026-02-01.md",
		Lines:  "10-12",
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if id == 0 {
		t.Fatalf("expected a non-zero id")
	}

	chunks, err := s.ListChunks(ctx, 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	c := chunks[0]
	if c.ID != id || c.Path != "memory/2026-02-01.md" || c.Lines != "10-12" {
		t.Fatalf("round-trip mismatch: %+v", c)
	}
	if c.ContentHash == "" || c.CreatedAt.IsZero() {
		t.Fatalf("hash and timestamp must be set: %+v", c)
	}
}

func TestAddChunkDeduplicates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.AddChunk(ctx, &Chunk{Text: "same text", Path: "a.md"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	second, err := s.AddChunk(ctx, &Chunk{Text: "same text", Path: "a.md"})
	if err != nil {
		t.Fatalf("add duplicate: %v", err)
	}
	if first != second {
		t.Fatalf("duplicate insert must return the existing id: %d vs %d", first, second)
	}

	// Same text at a different path is a distinct chunk.
	third, err := s.AddChunk(ctx, &Chunk{Text: "same text", Path: "b.md"})
	if err != nil {
		t.Fatalf("add other path: %v", err)
	}
	if third == first {
		t.Fatalf("path participates in identity, expected a new id")
	}

	n, err := s.CountChunks(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 chunks, got %d", n)
	}
}

func TestAddChunkRejectsEmptyText(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.AddChunk(context.Background(), &Chunk{Path: "a.md"}); err == nil {
		t.Fatalf("empty text must be rejected")
	}
}

func TestAddChunkBatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	chunks := []*Chunk{
		{Text: "batch one", Path: "a.md"},
		{Text: "batch two", Path: "b.md"},
		{Text: "batch one", Path: "a.md"}, // duplicate of the first
	}
	ids, err := s.AddChunkBatch(ctx, chunks)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("expected 3 ids, got %d", len(ids))
	}
	if ids[0] != ids[2] {
		t.Fatalf("duplicate in batch must resolve to the existing id")
	}

	n, _ := s.CountChunks(ctx)
	if n != 2 {
		t.Fatalf("expected 2 stored chunks, got %d", n)
	}
}

func TestFindByHash(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := &Chunk{Text: "lookup target", Path: "x.md"}
	if _, err := s.AddChunk(ctx, c); err != nil {
		t.Fatalf("add: %v", err)
	}

	found, err := s.FindByHash(ctx, HashChunk("lookup target", "x.md"))
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found == nil || found.Text != "lookup target" {
		t.Fatalf("expected the stored chunk, got %+v", found)
	}

	absent, err := s.FindByHash(ctx, "no-such-hash")
	if err != nil {
		t.Fatalf("find absent: %v", err)
	}
	if absent != nil {
		t.Fatalf("absent hash must return nil, got %+v", absent)
	}
}

func TestEmbeddingRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.AddChunk(ctx, &Chunk{Text: "embedded chunk", Path: "x.md"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	vec := []float32{0.1, -0.5, 2.25, 0}
	if err := s.AddEmbedding(ctx, id, vec); err != nil {
		t.Fatalf("add embedding: %v", err)
	}

	all, err := s.AllEmbeddings(ctx)
	if err != nil {
		t.Fatalf("all embeddings: %v", err)
	}
	got, ok := all[id]
	if !ok {
		t.Fatalf("embedding for chunk %d missing", id)
	}
	if len(got) != len(vec) {
		t.Fatalf("dims mismatch: %d vs %d", len(got), len(vec))
	}
	for i := range vec {
		if got[i] != vec[i] {
			t.Fatalf("vector corrupted at %d: %v vs %v", i, got, vec)
		}
	}
}

func TestAddEmbeddingUpserts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, _ := s.AddChunk(ctx, &Chunk{Text: "re-embedded", Path: "x.md"})
	if err := s.AddEmbedding(ctx, id, []float32{1, 2}); err != nil {
		t.Fatalf("first embedding: %v", err)
	}
	if err := s.AddEmbedding(ctx, id, []float32{3, 4}); err != nil {
		t.Fatalf("second embedding: %v", err)
	}

	all, _ := s.AllEmbeddings(ctx)
	if len(all) != 1 {
		t.Fatalf("expected a single embedding row, got %d", len(all))
	}
	if got := all[id]; got[0] != 3 || got[1] != 4 {
		t.Fatalf("upsert did not replace the vector: %v", got)
	}
}

func TestDeleteChunkCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, _ := s.AddChunk(ctx, &Chunk{Text: "doomed", Path: "x.md"})
	if err := s.AddEmbedding(ctx, id, []float32{1}); err != nil {
		t.Fatalf("embed: %v", err)
	}

	if err := s.DeleteChunk(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteChunk(ctx, id); err == nil {
		t.Fatalf("deleting a missing chunk must fail")
	}

	all, _ := s.AllEmbeddings(ctx)
	if len(all) != 0 {
		t.Fatalf("embedding must be deleted with its chunk")
	}
}

func TestStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, _ := s.AddChunk(ctx, &Chunk{Text: "counted", Path: "x.md"})
	s.AddEmbedding(ctx, id, []float32{1})
	s.AddChunk(ctx, &Chunk{Text: "also counted", Path: "y.md"})

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.ChunkCount != 2 || stats.EmbeddingCount != 1 {
		t.Fatalf("wrong counts: %+v", stats)
	}
}

func TestListChunksPagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := s.AddChunk(ctx, &Chunk{Text: "chunk " + string(rune('a'+i)), Path: "p.md", Lines: ""}); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}

	page1, err := s.ListChunks(ctx, 2, 0)
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	page2, err := s.ListChunks(ctx, 2, 2)
	if err != nil {
		t.Fatalf("page 2: %v", err)
	}
	if len(page1) != 2 || len(page2) != 2 {
		t.Fatalf("expected 2-element pages, got %d and %d", len(page1), len(page2))
	}
	if page1[1].ID >= page2[0].ID {
		t.Fatalf("pages must be ordered by id: %d then %d", page1[1].ID, page2[0].ID)
	}
}

func TestExpandPath(t *testing.T) {
	if got := ExpandPath("/absolute/path.db"); got != "/absolute/path.db" {
		t.Fatalf("absolute paths must pass through, got %q", got)
	}
	got := ExpandPath("~/data/recall.db")
	if got == "~/data/recall.db" || got[0] == '~' {
		t.Fatalf("tilde should expand, got %q", got)
	}
}
