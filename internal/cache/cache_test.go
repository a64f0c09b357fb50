package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(capacity int, ttl time.Duration) (*Cache, *time.Time) {
	now := time.Date(2025, time.March, 15, 10, 0, 0, 0, time.UTC)
	c := New(capacity, ttl)
	c.now = func() time.Time { return now }
	return c, &now
}

func put(c *Cache, requester, subject string) *Entry {
	e := c.NewEntry(requester, subject, "free", 3, "findings", 0, 0)
	c.Put(e)
	return e
}

func TestFindRecent_MatchesSubjectAndRequester(t *testing.T) {
	c, _ := newTestCache(10, time.Hour)

	put(c, "alice", "contract-A")
	put(c, "alice", "contract-B")
	put(c, "bob", "contract-A")

	e := c.FindRecent("alice", "contract-A", 30*time.Minute)
	require.NotNil(t, e)
	assert.Equal(t, "alice", e.Requester)
	assert.Equal(t, "contract-A", e.Subject)

	assert.Nil(t, c.FindRecent("alice", "contract-C", 30*time.Minute))
	assert.Nil(t, c.FindRecent("carol", "contract-A", 30*time.Minute))
}

func TestFindRecent_ReturnsNewestMatch(t *testing.T) {
	c, now := newTestCache(10, 24*time.Hour)

	put(c, "alice", "contract-A")
	*now = now.Add(10 * time.Minute)
	second := put(c, "alice", "contract-A")
	*now = now.Add(time.Minute)

	e := c.FindRecent("alice", "contract-A", time.Hour)
	require.NotNil(t, e)
	assert.Equal(t, second.ID, e.ID)
}

func TestFindRecent_DedupWindowIndependentOfTTL(t *testing.T) {
	c, now := newTestCache(10, 72*time.Hour)

	e := put(c, "alice", "contract-A")
	*now = now.Add(time.Hour)

	// Still live for direct lookup...
	require.NotNil(t, c.Get(e.ID))
	// ...but too old for a 30-minute dedup window.
	assert.Nil(t, c.FindRecent("alice", "contract-A", 30*time.Minute))
}

func TestGet_ExpiredEntryInvisible(t *testing.T) {
	c, now := newTestCache(10, time.Hour)

	e := put(c, "alice", "contract-A")
	require.NotNil(t, c.Get(e.ID))

	*now = now.Add(2 * time.Hour)
	assert.Nil(t, c.Get(e.ID))
}

func TestPut_EvictsOldestInserted(t *testing.T) {
	c, _ := newTestCache(3, time.Hour)

	first := put(c, "alice", "contract-0")
	for i := 1; i <= 2; i++ {
		put(c, "alice", fmt.Sprintf("contract-%d", i))
	}

	// Reading the oldest entry must not protect it from eviction.
	require.NotNil(t, c.Get(first.ID))
	c.FindRecent("alice", "contract-0", time.Hour)

	put(c, "bob", "contract-3")

	assert.Nil(t, c.Get(first.ID))
	stats := c.Stats()
	assert.Equal(t, 3, stats.Size)
	assert.Equal(t, uint64(1), stats.Evictions)
}

func TestPut_EvictionCleansIndices(t *testing.T) {
	c, _ := newTestCache(1, time.Hour)

	put(c, "alice", "contract-A")
	put(c, "bob", "contract-B")

	assert.Empty(t, c.HistoryFor("alice", 10, true))
	assert.Empty(t, c.SubjectHistory("contract-A", 10))

	stats := c.Stats()
	assert.Equal(t, 1, stats.DistinctRequesters)
	assert.Equal(t, 1, stats.DistinctSubjects)
}

func TestHistoryFor_NewestFirstWithLimit(t *testing.T) {
	c, now := newTestCache(10, 24*time.Hour)

	var ids []string
	for i := 0; i < 5; i++ {
		e := put(c, "alice", fmt.Sprintf("contract-%d", i))
		ids = append(ids, e.ID)
		*now = now.Add(time.Minute)
	}

	history := c.HistoryFor("alice", 3, false)
	require.Len(t, history, 3)
	assert.Equal(t, ids[4], history[0].ID)
	assert.Equal(t, ids[3], history[1].ID)
	assert.Equal(t, ids[2], history[2].ID)
}

func TestHistoryFor_SkipsExpiredUnlessAsked(t *testing.T) {
	c, now := newTestCache(10, time.Hour)

	put(c, "alice", "contract-old")
	*now = now.Add(2 * time.Hour)
	put(c, "alice", "contract-new")

	live := c.HistoryFor("alice", 10, false)
	require.Len(t, live, 1)
	assert.Equal(t, "contract-new", live[0].Subject)

	all := c.HistoryFor("alice", 10, true)
	assert.Len(t, all, 2)
}

func TestSubjectHistory_AcrossRequesters(t *testing.T) {
	c, now := newTestCache(10, 24*time.Hour)

	put(c, "alice", "contract-A")
	*now = now.Add(time.Minute)
	put(c, "bob", "contract-A")
	*now = now.Add(time.Minute)
	put(c, "carol", "contract-B")

	history := c.SubjectHistory("contract-A", 10)
	require.Len(t, history, 2)
	assert.Equal(t, "bob", history[0].Requester)
	assert.Equal(t, "alice", history[1].Requester)
}

func TestStats_HitMissCounters(t *testing.T) {
	c, _ := newTestCache(10, time.Hour)

	put(c, "alice", "contract-A")
	c.FindRecent("alice", "contract-A", time.Hour)
	c.FindRecent("alice", "contract-B", time.Hour)
	c.FindRecent("bob", "contract-A", time.Hour)

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(2), stats.Misses)
}

func TestNew_DefaultsApplied(t *testing.T) {
	c := New(0, 0)
	stats := c.Stats()
	assert.Equal(t, DefaultCapacity, stats.Capacity)
	assert.Equal(t, DefaultTTL, c.ttl)
}
