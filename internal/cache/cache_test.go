package cache

import (
	"bytes"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *manualClock {
	return &manualClock{now: time.Date(2024, 9, 2, 8, 0, 0, 0, time.UTC)}
}

func (m *manualClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *manualClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

func TestGetSet(t *testing.T) {
	clock := newClock()
	c := New(4, WithClock(clock.Now))

	_, ok := c.Get("students:")
	require.False(t, ok)

	c.Set("students:", []string{"a"}, ClassSearch)
	v, ok := c.Get("students:")
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, v)

	clock.Advance(time.Second)
	_, ok = c.Get("students:")
	require.True(t, ok)

	e, ok := c.Entry("students:")
	require.True(t, ok)
	assert.Equal(t, 2, e.AccessCount)
	assert.Equal(t, clock.Now(), e.LastAccessedAt)
	assert.Equal(t, ClassSearch, e.Class)

	st := c.Stats()
	assert.Equal(t, uint64(2), st.Hits)
	assert.Equal(t, uint64(1), st.Misses)
}

func TestExpiryPerClass(t *testing.T) {
	clock := newClock()
	c := New(10, WithClock(clock.Now))

	c.Set("votes:", 1, ClassVotes)
	c.Set("candidates:", 2, ClassReference)
	c.Set("odd:", 3, DataClass("unknown"))

	clock.Advance(10 * time.Second)
	_, ok := c.Get("votes:")
	assert.True(t, ok, "age equal to the TTL is still a hit")

	clock.Advance(time.Millisecond)
	_, ok = c.Get("votes:")
	assert.False(t, ok)
	_, ok = c.Get("odd:")
	assert.False(t, ok, "unknown classes use the shortest TTL")
	_, ok = c.Get("candidates:")
	assert.True(t, ok)

	assert.Equal(t, 1, c.Len())
	assert.Equal(t, uint64(2), c.Stats().Expirations)
}

func TestWithTTLs(t *testing.T) {
	c := New(1, WithTTLs(TTLs{ClassVotes: 2 * time.Second, ClassStats: 0}))
	assert.Equal(t, 2*time.Second, c.TTL(ClassVotes))
	assert.Equal(t, 15*time.Second, c.TTL(ClassStats))
	assert.Equal(t, 2*time.Second, c.TTL("whatever"))
}

func TestLRUEviction(t *testing.T) {
	clock := newClock()
	const capacity = 3
	c := New(capacity, WithClock(clock.Now))

	for i := 0; i < capacity; i++ {
		c.Set(fmt.Sprintf("k%d", i), i, ClassRecords)
		clock.Advance(time.Second)
	}

	// touch k0 so k1 becomes the least recently accessed
	_, ok := c.Get("k0")
	require.True(t, ok)
	clock.Advance(time.Second)

	c.Set("k3", 3, ClassRecords)

	_, ok = c.Get("k1")
	assert.False(t, ok, "oldest lastAccessedAt is evicted")
	for _, k := range []string{"k0", "k2", "k3"} {
		_, ok := c.Get(k)
		assert.True(t, ok, k)
	}
	assert.Equal(t, capacity, c.Len())
	assert.Equal(t, uint64(1), c.Stats().Evictions)
}

func TestReplaceDoesNotEvict(t *testing.T) {
	c := New(2)
	c.Set("a", 1, ClassRecords)
	c.Set("b", 2, ClassRecords)
	c.Set("a", 3, ClassRecords)

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 3, v)
	_, ok = c.Get("b")
	assert.True(t, ok)
	assert.Zero(t, c.Stats().Evictions)
}

func TestInvalidate(t *testing.T) {
	c := New(10)
	c.Set(`students:course="4a"`, 1, ClassSearch)
	c.Set(`students:`, 2, ClassSearch)
	c.Set(`votes:`, 3, ClassVotes)

	assert.Equal(t, 2, c.Invalidate("students:"))
	_, ok := c.Get("students:")
	assert.False(t, ok)
	_, ok = c.Get("votes:")
	assert.True(t, ok)

	assert.Zero(t, c.Invalidate("sessions:"))

	c.Purge()
	assert.Zero(t, c.Len())
	assert.Equal(t, uint64(3), c.Stats().Invalidations)
}

func TestWritePrometheus(t *testing.T) {
	c := New(10)
	c.Set("a", 1, ClassSearch)
	c.Get("a")
	c.Get("b")

	var buf bytes.Buffer
	c.WritePrometheus(&buf)
	out := buf.String()
	assert.Contains(t, out, "ballotkeeper_cache_hits_total 1")
	assert.Contains(t, out, "ballotkeeper_cache_misses_total 1")
	assert.Contains(t, out, "ballotkeeper_cache_entries 1")
}

func TestConcurrentAccess(t *testing.T) {
	c := New(16)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				k := fmt.Sprintf("students:%d", i%32)
				c.Set(k, i, ClassSearch)
				c.Get(k)
				if i%50 == 0 {
					c.Invalidate("students:1")
				}
			}
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 16)
}
