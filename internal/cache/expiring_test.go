package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExpiringMapPutGet(t *testing.T) {
	m := NewExpiringMap[string, int](time.Minute, 0)

	m.Put("a", 1)
	v, ok := m.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = m.Get("missing")
	assert.False(t, ok)
}

func TestExpiringMapExpiry(t *testing.T) {
	m := NewExpiringMap[string, int](10*time.Millisecond, 0)

	m.Put("a", 1)
	time.Sleep(20 * time.Millisecond)

	_, ok := m.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len(), "expired entry should be removed on access")
}

func TestExpiringMapPutRefreshesTTL(t *testing.T) {
	m := NewExpiringMap[string, int](40*time.Millisecond, 0)

	m.Put("a", 1)
	time.Sleep(25 * time.Millisecond)
	m.Put("a", 2)
	time.Sleep(25 * time.Millisecond)

	v, ok := m.Get("a")
	assert.True(t, ok, "refreshed entry should outlive the original TTL")
	assert.Equal(t, 2, v)
}

func TestExpiringMapPutIfAbsent(t *testing.T) {
	m := NewExpiringMap[string, int](10*time.Millisecond, 0)

	assert.True(t, m.PutIfAbsent("a", 1))
	assert.False(t, m.PutIfAbsent("a", 2), "live entry must not be replaced")

	v, _ := m.Get("a")
	assert.Equal(t, 1, v)

	time.Sleep(20 * time.Millisecond)
	assert.True(t, m.PutIfAbsent("a", 3), "expired entry counts as absent")
}

func TestExpiringMapCapacityEvictsOldest(t *testing.T) {
	m := NewExpiringMap[string, int](time.Minute, 2)

	m.Put("first", 1)
	time.Sleep(2 * time.Millisecond)
	m.Put("second", 2)
	time.Sleep(2 * time.Millisecond)
	m.Put("third", 3)

	_, ok := m.Get("first")
	assert.False(t, ok, "oldest entry should have been evicted")
	_, ok = m.Get("second")
	assert.True(t, ok)
	_, ok = m.Get("third")
	assert.True(t, ok)
	assert.Equal(t, 2, m.Len())
}

func TestExpiringMapCapacityRefreshDoesNotEvict(t *testing.T) {
	m := NewExpiringMap[string, int](time.Minute, 2)

	m.Put("a", 1)
	m.Put("b", 2)
	m.Put("a", 10)

	assert.Equal(t, 2, m.Len())
	v, ok := m.Get("b")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestExpiringMapSweep(t *testing.T) {
	m := NewExpiringMap[string, int](10*time.Millisecond, 0)

	m.Put("a", 1)
	m.Put("b", 2)
	time.Sleep(20 * time.Millisecond)
	m.Put("c", 3)

	assert.Equal(t, 2, m.Sweep())
	assert.Equal(t, 1, m.Len())
}

func TestExpiringMapRangeSkipsExpired(t *testing.T) {
	m := NewExpiringMap[string, int](10*time.Millisecond, 0)

	m.Put("old", 1)
	time.Sleep(20 * time.Millisecond)
	m.Put("fresh", 2)

	var seen []string
	m.Range(func(k string, v int) bool {
		seen = append(seen, k)
		return true
	})
	assert.Equal(t, []string{"fresh"}, seen)
}
