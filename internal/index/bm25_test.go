package index

import "testing"

func TestSearchExactToken(t *testing.T) {
	ix := New()
	ix.AddDocument("Build failed with NETSDK1005 missing asset file", "notes", "memory/2026-01-10.md", "1-2")
	ix.AddDocument("Lunch plans for the offsite next week", "notes", "memory/2026-01-11.md", "4-5")
	ix.Build()

	got := ix.Search("NETSDK1005 error", 10, nil)
	if len(got) != 1 {
		t.Fatalf("expected exactly the matching document, got %d results", len(got))
	}
	if got[0].Path != "memory/2026-01-10.md" {
		t.Fatalf("wrong document returned: %q", got[0].Path)
	}
}

func TestSearchMonotonicity(t *testing.T) {
	ix := New()
	// Same length, different term frequency.
	ix.AddDocument("cache cache cache miss in the hot path", "", "many.md", "")
	ix.AddDocument("cache warmup handled in the cold path", "", "few.md", "")
	ix.Build()

	got := ix.Search("cache", 10, nil)
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	if got[0].Path != "many.md" {
		t.Fatalf("document with more term occurrences must rank first, got %q", got[0].Path)
	}
	if got[0].Score <= got[1].Score {
		t.Fatalf("expected strictly higher score for higher tf: %.4f vs %.4f", got[0].Score, got[1].Score)
	}
}

func TestSearchBoostTerms(t *testing.T) {
	ix := New()
	ix.AddDocument("timeout raised in the gateway handler", "", "a.md", "")
	ix.AddDocument("gateway timeout raised twice", "", "b.md", "")
	ix.Build()

	plain := ix.Search("gateway timeout", 10, nil)
	boosted := ix.Search("gateway timeout", 10, []string{"GATEWAY", "timeout"})
	if len(plain) != 2 || len(boosted) != 2 {
		t.Fatalf("expected 2 results in both searches")
	}
	// Boost is case-insensitive and doubles each boosted term's
	// contribution; with every query term boosted, scores double.
	for i := range plain {
		if boosted[i].Score <= plain[i].Score {
			t.Fatalf("boosted score should exceed plain score: %.4f vs %.4f", boosted[i].Score, plain[i].Score)
		}
	}
}

func TestSearchExcludesNonMatching(t *testing.T) {
	ix := New()
	ix.AddDocument("alpha beta", "", "match.md", "")
	ix.AddDocument("gamma delta", "", "nomatch.md", "")
	ix.Build()

	got := ix.Search("alpha", 10, nil)
	if len(got) != 1 {
		t.Fatalf("documents matching zero tokens must be excluded, got %d results", len(got))
	}
}

func TestSearchEmptyEdgeCases(t *testing.T) {
	ix := New()
	if got := ix.Search("anything", 10, nil); len(got) != 0 {
		t.Fatalf("empty index should return no results")
	}

	ix.AddDocument("some content", "", "x.md", "")
	if got := ix.Search("", 10, nil); len(got) != 0 {
		t.Fatalf("empty query should return no results")
	}
	if got := ix.Search("   ", 10, nil); len(got) != 0 {
		t.Fatalf("whitespace query should return no results")
	}
}

func TestSearchAutoBuild(t *testing.T) {
	ix := New()
	ix.AddDocument("search before explicit build", "", "x.md", "")

	// No Build call: Search must build silently first.
	got := ix.Search("explicit build", 10, nil)
	if len(got) != 1 {
		t.Fatalf("auto-build search failed, got %d results", len(got))
	}
}

func TestSearchMaxResults(t *testing.T) {
	ix := New()
	for i := 0; i < 10; i++ {
		ix.AddDocument("shared keyword content", "", "", "")
	}
	ix.Build()

	got := ix.Search("keyword", 3, nil)
	if len(got) != 3 {
		t.Fatalf("expected 3 results, got %d", len(got))
	}
}

func TestTokenizeKeepsStructuredTokens(t *testing.T) {
	got := Tokenize("See internal/engine/engine.go and mail user@example.com or @types/node-fetch")
	want := map[string]bool{
		"internal/engine/engine.go": true,
		"user@example.com":          true,
		"@types/node-fetch":         true,
	}
	found := 0
	for _, tok := range got {
		if want[tok] {
			found++
		}
	}
	if found != len(want) {
		t.Fatalf("structured tokens should survive tokenization: %v", got)
	}
}

func TestTiesBreakByInsertionOrder(t *testing.T) {
	ix := New()
	ix.AddDocument("identical words here", "", "first.md", "")
	ix.AddDocument("identical words here", "", "second.md", "")
	ix.Build()

	got := ix.Search("identical words", 10, nil)
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	if got[0].Path != "first.md" {
		t.Fatalf("ties must keep insertion order, got %q first", got[0].Path)
	}
}
