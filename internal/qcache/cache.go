// Package qcache provides an LRU query-result cache with TTL expiry and
// fuzzy lookup: a query that misses exactly can still hit an earlier,
// similar query by token-set Jaccard similarity.
package qcache

import (
	"container/list"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/hurttlocker/recall/internal/rank"
)

// Defaults for cache construction when a caller passes non-positive
// values.
const (
	DefaultMaxSize = 50
	DefaultTTL     = 5 * time.Minute

	// DefaultFuzzyThreshold is the minimum token-Jaccard similarity for a
	// fuzzy hit. A threshold >= 1.0 disables fuzzy matching.
	DefaultFuzzyThreshold = 0.8
)

var cacheTokenPattern = regexp.MustCompile(`[a-z0-9]+`)

type entry struct {
	key        string
	tokens     map[string]struct{}
	results    []rank.Chunk
	insertedAt time.Time
}

// Cache is a bounded LRU cache over prior query results. An empty result
// slice is a valid cached value ("searched, found nothing") and is
// distinguishable from a miss. Safe for concurrent use.
type Cache struct {
	mu             sync.Mutex
	entries        map[string]*list.Element // key -> element with *entry value
	order          *list.List               // front = most recently used
	maxSize        int
	ttl            time.Duration
	fuzzyThreshold float64
	now            func() time.Time // swapped in tests
}

// New creates a cache with the given capacity, entry TTL and fuzzy-match
// threshold. Non-positive maxSize or ttl fall back to defaults; a
// threshold outside (0, 1) disables fuzzy lookup.
func New(maxSize int, ttl time.Duration, fuzzyThreshold float64) *Cache {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		entries:        make(map[string]*list.Element),
		order:          list.New(),
		maxSize:        maxSize,
		ttl:            ttl,
		fuzzyThreshold: fuzzyThreshold,
		now:            time.Now,
	}
}

// Get looks up results for a query: first by exact (trimmed) key, then by
// fuzzy token-Jaccard similarity against every live entry. Either kind of
// hit refreshes the entry's LRU position. The second return value reports
// whether anything was found.
func (c *Cache) Get(key string) ([]rank.Chunk, bool) {
	key = strings.TrimSpace(key)

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()

	if el, ok := c.entries[key]; ok {
		e := el.Value.(*entry)
		if now.Sub(e.insertedAt) <= c.ttl {
			c.order.MoveToFront(el)
			return e.results, true
		}
		c.removeLocked(el)
	}

	if c.fuzzyThreshold >= 1.0 || c.fuzzyThreshold <= 0 {
		return nil, false
	}

	queryTokens := tokenSet(key)
	var best *list.Element
	bestSim := 0.0

	// Scan all live entries; lazily evict expired ones encountered on the
	// way. Greedy best-match, not a clustering guarantee.
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		e := el.Value.(*entry)
		if now.Sub(e.insertedAt) > c.ttl {
			c.removeLocked(el)
			el = next
			continue
		}
		if sim := rank.Jaccard(queryTokens, e.tokens); sim >= c.fuzzyThreshold && sim > bestSim {
			bestSim = sim
			best = el
		}
		el = next
	}

	if best == nil {
		return nil, false
	}
	c.order.MoveToFront(best)
	return best.Value.(*entry).results, true
}

// Set inserts or replaces the results for a query key, moving it to the
// most-recently-used position and evicting the least-recently-used entry
// when capacity is exceeded.
func (c *Cache) Set(key string, results []rank.Chunk) {
	key = strings.TrimSpace(key)

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		e := el.Value.(*entry)
		e.results = results
		e.insertedAt = c.now()
		c.order.MoveToFront(el)
		return
	}

	el := c.order.PushFront(&entry{
		key:        key,
		tokens:     tokenSet(key),
		results:    results,
		insertedAt: c.now(),
	})
	c.entries[key] = el

	if c.order.Len() > c.maxSize {
		if oldest := c.order.Back(); oldest != nil {
			c.removeLocked(oldest)
		}
	}
}

// Len returns the number of entries currently held, including any that
// have expired but not yet been lazily evicted.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Clear drops all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.order.Init()
}

func (c *Cache) removeLocked(el *list.Element) {
	e := el.Value.(*entry)
	delete(c.entries, e.key)
	c.order.Remove(el)
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range cacheTokenPattern.FindAllString(strings.ToLower(s), -1) {
		set[t] = struct{}{}
	}
	return set
}
