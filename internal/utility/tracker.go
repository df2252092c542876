// Package utility tracks empirical usefulness of recalled memory chunks.
// Every injection bumps a chunk's retrieval count; when a later agent
// response appears to reference an injected chunk's content, its citation
// count goes up too. The Bayesian-smoothed citation rate feeds back into
// ranking.
package utility

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hurttlocker/recall/internal/rank"
	"go.uber.org/zap"
)

const (
	// minObservations is the retrieval floor below which the score stays
	// at the neutral default: too few observations to trust the ratio.
	minObservations = 3

	// neutralScore is returned under the observation floor.
	neutralScore = 0.5

	// citationThreshold is the word-overlap ratio above which a response
	// counts as citing an injected chunk. Tunable heuristic, not
	// load-bearing.
	citationThreshold = 0.3

	// minWordLen filters stopword-sized tokens out of citation matching.
	minWordLen = 3

	// DefaultSaveDelay is the debounce window for persistence.
	DefaultSaveDelay = 5 * time.Second
)

// Record holds the observed counts for one chunk identity key.
type Record struct {
	Retrievals int `json:"retrievals"`
	Citations  int `json:"citations"`
}

type pendingChunk struct {
	key  string
	text string
}

// Tracker persists per-chunk retrieval and citation counts and computes
// Bayesian-smoothed utility scores. Saves are debounced: mutations set a
// dirty flag and arm a single timer; Close cancels the timer and flushes.
type Tracker struct {
	mu        sync.Mutex
	path      string
	records   map[string]*Record
	pending   map[string][]pendingChunk // session key -> injected chunks
	dirty     bool
	timer     *time.Timer
	saveDelay time.Duration
	closed    bool
	log       *zap.Logger
}

// NewTracker creates a tracker persisting to path. Counts are loaded
// lazily via Load; a missing file is an empty state, not an error.
func NewTracker(path string, log *zap.Logger) *Tracker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tracker{
		path:      path,
		records:   make(map[string]*Record),
		pending:   make(map[string][]pendingChunk),
		saveDelay: DefaultSaveDelay,
		log:       log,
	}
}

// Load populates in-memory state from the persisted JSON document.
// A missing file yields empty state with no error.
func (t *Tracker) Load() error {
	data, err := os.ReadFile(t.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading utility state: %w", err)
	}

	records := make(map[string]*Record)
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("parsing utility state: %w", err)
	}

	t.mu.Lock()
	t.records = records
	t.mu.Unlock()
	return nil
}

// RecordInjection bumps the retrieval count for every injected chunk and
// remembers the (key, text) pairs against the session so a later response
// can be correlated back. A newer injection for the same session replaces
// any pending one.
func (t *Tracker) RecordInjection(sessionKey string, chunks []rank.Chunk) {
	if sessionKey == "" || len(chunks) == 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	var injected []pendingChunk
	for _, c := range chunks {
		if c.Path == "" && c.Text == "" {
			continue
		}
		key := rank.IdentityKey(c)
		rec, ok := t.records[key]
		if !ok {
			rec = &Record{}
			t.records[key] = rec
		}
		rec.Retrievals++
		injected = append(injected, pendingChunk{key: key, text: c.Text})
	}
	if len(injected) == 0 {
		return
	}

	t.pending[sessionKey] = injected
	t.markDirtyLocked()
}

// RecordResponse consumes the pending injection list for a session and
// counts a citation for every chunk whose text overlaps the response by
// at least the citation threshold.
func (t *Tracker) RecordResponse(sessionKey, responseText string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	injected, ok := t.pending[sessionKey]
	if !ok {
		return
	}
	delete(t.pending, sessionKey)

	if responseText == "" {
		return
	}
	responseLower := strings.ToLower(responseText)

	for _, p := range injected {
		if cites(p.text, responseLower) {
			if rec, ok := t.records[p.key]; ok {
				rec.Citations++
			}
		}
	}
	t.markDirtyLocked()
}

// cites reports whether enough of the chunk's significant words appear in
// the lowercased response text.
func cites(chunkText, responseLower string) bool {
	words := significantWords(chunkText)
	if len(words) == 0 {
		return false
	}
	matched := 0
	for _, w := range words {
		if strings.Contains(responseLower, w) {
			matched++
		}
	}
	return float64(matched)/float64(len(words)) >= citationThreshold
}

func significantWords(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	var words []string
	for _, f := range fields {
		if len(f) > minWordLen {
			words = append(words, f)
		}
	}
	return words
}

// UtilityScore returns the Bayesian-smoothed usefulness estimate for a
// chunk identity key: (citations+1)/(retrievals+2) with a Beta(1,1)
// prior. Below the observation floor it returns the neutral 0.5.
func (t *Tracker) UtilityScore(key string) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[key]
	if !ok || rec.Retrievals < minObservations {
		return neutralScore
	}
	return float64(rec.Citations+1) / float64(rec.Retrievals+2)
}

// Snapshot returns a copy of all records, for stats reporting.
func (t *Tracker) Snapshot() map[string]Record {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]Record, len(t.records))
	for k, v := range t.records {
		out[k] = *v
	}
	return out
}

// Clear drops all records and pending injections and persists the empty
// state immediately.
func (t *Tracker) Clear() error {
	t.mu.Lock()
	t.records = make(map[string]*Record)
	t.pending = make(map[string][]pendingChunk)
	t.dirty = true
	t.mu.Unlock()
	return t.flush()
}

// Close cancels any armed save timer and flushes dirty state. The tracker
// must not be used after Close.
func (t *Tracker) Close() error {
	t.mu.Lock()
	t.closed = true
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.mu.Unlock()
	return t.flush()
}

// markDirtyLocked sets the dirty flag and arms the debounce timer if it
// is not already armed. Callers must hold t.mu.
func (t *Tracker) markDirtyLocked() {
	t.dirty = true
	if t.timer != nil || t.closed {
		return
	}
	t.timer = time.AfterFunc(t.saveDelay, func() {
		if err := t.flush(); err != nil {
			// Dirty flag stays set; the next mutation re-arms the timer.
			t.log.Warn("utility save failed", zap.Error(err))
		}
	})
}

// flush writes current state to disk if dirty and disarms the timer.
func (t *Tracker) flush() error {
	t.mu.Lock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	if !t.dirty {
		t.mu.Unlock()
		return nil
	}
	data, err := json.MarshalIndent(t.records, "", "  ")
	if err != nil {
		t.mu.Unlock()
		return fmt.Errorf("marshaling utility state: %w", err)
	}
	t.dirty = false
	path := t.path
	t.mu.Unlock()

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.setDirty()
			return fmt.Errorf("creating utility state directory: %w", err)
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		t.setDirty()
		return fmt.Errorf("writing utility state: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.setDirty()
		return fmt.Errorf("replacing utility state: %w", err)
	}
	return nil
}

func (t *Tracker) setDirty() {
	t.mu.Lock()
	t.dirty = true
	t.mu.Unlock()
}
