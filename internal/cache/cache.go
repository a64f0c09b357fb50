package cache

import (
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultCapacity bounds the number of entries held in memory.
	DefaultCapacity = 1000
	// DefaultTTL is how long an entry stays live for direct lookups.
	DefaultTTL = 72 * time.Hour
)

// Stats is a point-in-time view of cache occupancy plus cumulative
// lifetime counters.
type Stats struct {
	Size               int    `json:"size"`
	Capacity           int    `json:"capacity"`
	DistinctRequesters int    `json:"distinct_requesters"`
	DistinctSubjects   int    `json:"distinct_subjects"`
	Hits               uint64 `json:"hits"`
	Misses             uint64 `json:"misses"`
	Evictions          uint64 `json:"evictions"`
}

// Cache is a bounded in-memory store of audit results with secondary
// indices by requester and by audited subject. Eviction is strictly
// insertion-order (FIFO): reads never change an entry's eviction priority,
// and capacity eviction does not consult TTL liveness. Expired entries are
// filtered out at read time rather than purged eagerly.
//
// A single mutex guards the primary store and both indices, so an insert
// and its index updates are atomic with respect to every reader.
type Cache struct {
	mu sync.Mutex

	capacity int
	ttl      time.Duration

	entries     map[string]*Entry
	order       []string            // entry IDs, oldest inserted first
	byRequester map[string][]string // requester key -> entry IDs, insertion order
	bySubject   map[string][]string // subject key -> entry IDs, insertion order

	hits      uint64
	misses    uint64
	evictions uint64

	now func() time.Time
}

// New creates a Cache. Non-positive capacity or TTL fall back to the
// defaults.
func New(capacity int, ttl time.Duration) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		capacity:    capacity,
		ttl:         ttl,
		entries:     make(map[string]*Entry),
		byRequester: make(map[string][]string),
		bySubject:   make(map[string][]string),
		now:         time.Now,
	}
}

// NewEntry builds an Entry stamped with the cache's TTL. The entry is not
// stored until Put is called.
func (c *Cache) NewEntry(requester, subject, tier string, riskScore int, findings string, tokensUsed int, costSOL float64) *Entry {
	now := c.now()
	return &Entry{
		ID:         newEntryID(),
		Requester:  requester,
		Subject:    subject,
		CreatedAt:  now,
		ExpiresAt:  now.Add(c.ttl),
		Tier:       tier,
		RiskScore:  riskScore,
		Findings:   findings,
		TokensUsed: tokensUsed,
		CostSOL:    costSOL,
	}
}

// Put inserts the entry into the primary store and both indices. If the
// store then exceeds capacity, the single oldest-inserted entry is removed
// from the store and both indices in the same critical section.
func (c *Cache) Put(e *Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[e.ID] = e
	c.order = append(c.order, e.ID)
	c.byRequester[e.Requester] = append(c.byRequester[e.Requester], e.ID)
	c.bySubject[e.Subject] = append(c.bySubject[e.Subject], e.ID)

	if len(c.entries) > c.capacity {
		c.evictOldest()
	}
}

// evictOldest removes the first-inserted entry. Caller holds c.mu.
func (c *Cache) evictOldest() {
	oldestID := c.order[0]
	c.order = c.order[1:]

	victim, ok := c.entries[oldestID]
	if !ok {
		// Index/store divergence is structurally impossible; treat it as a
		// fatal invariant violation rather than limping on.
		panic("cache: eviction candidate missing from primary store")
	}
	delete(c.entries, oldestID)
	c.dropFromIndex(c.byRequester, victim.Requester, oldestID)
	c.dropFromIndex(c.bySubject, victim.Subject, oldestID)
	c.evictions++

	slog.Debug("cache: evicted oldest entry", "entry_id", oldestID, "size", len(c.entries))
}

func (c *Cache) dropFromIndex(index map[string][]string, key, id string) {
	ids := index[key]
	for i, candidate := range ids {
		if candidate == id {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(index, key)
	} else {
		index[key] = ids
	}
}

// FindRecent returns the most recent entry by this requester for this
// subject whose age is at most `within`, or nil. The dedup window is
// independent of the entry TTL: an entry can be live for Get yet too old to
// satisfy FindRecent.
func (c *Cache) FindRecent(requester, subject string, within time.Duration) *Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-within)
	ids := c.byRequester[requester]
	for i := len(ids) - 1; i >= 0; i-- {
		e, ok := c.entries[ids[i]]
		if !ok {
			panic("cache: requester index references missing entry")
		}
		if e.Subject == subject && e.CreatedAt.After(cutoff) {
			c.hits++
			return e
		}
	}
	c.misses++
	return nil
}

// Get returns the entry by ID if it exists and is still live.
func (c *Cache) Get(id string) *Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok || !e.Live(c.now()) {
		return nil
	}
	return e
}

// HistoryFor returns up to limit entries by this requester, newest first.
// Expired entries are skipped unless includeExpired is set.
func (c *Cache) HistoryFor(requester string, limit int, includeExpired bool) []*Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	ids := c.byRequester[requester]
	out := make([]*Entry, 0, min(limit, len(ids)))
	for i := len(ids) - 1; i >= 0 && len(out) < limit; i-- {
		e := c.entries[ids[i]]
		if !includeExpired && !e.Live(now) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// SubjectHistory returns up to limit entries for this subject across all
// requesters, newest first.
func (c *Cache) SubjectHistory(subject string, limit int) []*Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := c.bySubject[subject]
	out := make([]*Entry, 0, min(limit, len(ids)))
	for i := len(ids) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, c.entries[ids[i]])
	}
	return out
}

// Stats returns occupancy and lifetime counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Size:               len(c.entries),
		Capacity:           c.capacity,
		DistinctRequesters: len(c.byRequester),
		DistinctSubjects:   len(c.bySubject),
		Hits:               c.hits,
		Misses:             c.misses,
		Evictions:          c.evictions,
	}
}
