package storage

import (
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced time source
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestStoredValue_ExpiredAt(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)

	tests := []struct {
		name string
		ttl  time.Duration
		at   time.Duration
		want bool
	}{
		{"No TTL never expires", 0, 100 * time.Hour, false},
		{"Before deadline", 100 * time.Millisecond, 99 * time.Millisecond, false},
		{"Exactly at deadline", 100 * time.Millisecond, 100 * time.Millisecond, true},
		{"After deadline", 100 * time.Millisecond, time.Second, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := StoredValue{Value: "v", InsertedAt: base, TTL: tt.ttl}
			assert.Equal(t, tt.want, v.ExpiredAt(base.Add(tt.at)))
		})
	}
}

func TestMapStorage_PutGetDelete(t *testing.T) {
	clock := newFakeClock()
	s := newMapStorage(new(atomic.Uint64), clock.Now)

	_, ok := s.GetIfPresent("missing")
	assert.False(t, ok)

	s.Put("k", "v1", 0)
	v, ok := s.GetIfPresent("k")
	require.True(t, ok)
	assert.Equal(t, "v1", v.Value)
	assert.Equal(t, clock.Now(), v.InsertedAt)
	assert.Zero(t, v.TTL)

	clock.Advance(time.Second)
	s.Put("k", "v2", 5*time.Second)
	v2, ok := s.GetIfPresent("k")
	require.True(t, ok)
	assert.Equal(t, "v2", v2.Value)
	assert.Equal(t, clock.Now(), v2.InsertedAt, "overwrite must restamp InsertedAt")
	assert.Equal(t, 5*time.Second, v2.TTL)
	assert.Greater(t, v2.Version, v.Version)

	assert.True(t, s.Delete("k"))
	assert.False(t, s.Delete("k"), "deleting an absent key is not an error")
	assert.Equal(t, 0, s.Len())
}

func TestMapStorage_GetIfPresentIgnoresExpiry(t *testing.T) {
	clock := newFakeClock()
	s := newMapStorage(new(atomic.Uint64), clock.Now)

	s.Put("k", "v", 10*time.Millisecond)
	clock.Advance(time.Hour)

	v, ok := s.GetIfPresent("k")
	require.True(t, ok, "storage must not evict on its own")
	assert.True(t, v.ExpiredAt(clock.Now()))
	assert.Equal(t, 1, s.Len())
}

func TestMapStorage_PutIf(t *testing.T) {
	s := NewMapStorage()

	absent := func(_ StoredValue, ok bool) bool { return !ok }

	assert.True(t, s.PutIf("k", "v1", 0, absent))
	assert.False(t, s.PutIf("k", "v2", 0, absent))

	v, _ := s.GetIfPresent("k")
	assert.Equal(t, "v1", v.Value)

	var seen StoredValue
	assert.True(t, s.PutIf("k", "v3", 0, func(cur StoredValue, ok bool) bool {
		seen = cur
		return ok
	}))
	assert.Equal(t, "v1", seen.Value, "condition must see the current entry")

	v, _ = s.GetIfPresent("k")
	assert.Equal(t, "v3", v.Value)
}

func TestMapStorage_DeleteVersion(t *testing.T) {
	s := NewMapStorage()

	s.Put("k", "old", time.Millisecond)
	old, _ := s.GetIfPresent("k")

	s.Put("k", "new", 0)

	assert.False(t, s.DeleteVersion("k", old.Version), "a newer write must survive eviction of the old one")
	v, ok := s.GetIfPresent("k")
	require.True(t, ok)
	assert.Equal(t, "new", v.Value)

	assert.True(t, s.DeleteVersion("k", v.Version))
	assert.False(t, s.DeleteVersion("k", v.Version))
}

func TestMapStorage_ConcurrentPutIf(t *testing.T) {
	s := NewMapStorage()
	const workers = 64

	var wins atomic.Int32
	var wg sync.WaitGroup
	wg.Add(workers)

	for i := 0; i < workers; i++ {
		go func(id int) {
			defer wg.Done()
			if s.PutIf("lock", fmt.Sprintf("owner-%d", id), 0, func(_ StoredValue, ok bool) bool { return !ok }) {
				wins.Add(1)
			}
		}(i)
	}

	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestMapStorage_Concurrency(t *testing.T) {
	s := NewMapStorage()
	const workers = 50
	const opsPerWorker = 10000

	var wg sync.WaitGroup
	wg.Add(workers)

	for i := 0; i < workers; i++ {
		go func(workerID int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

			for j := 0; j < opsPerWorker; j++ {
				key := fmt.Sprintf("key-%d", r.Intn(50))
				val := fmt.Sprintf("val-%d", j)

				switch r.Intn(4) {
				case 0:
					s.Put(key, val, 0)
				case 1:
					s.GetIfPresent(key)
				case 2:
					s.Delete(key)
				case 3:
					if v, ok := s.GetIfPresent(key); ok {
						s.DeleteVersion(key, v.Version)
					}
				}
			}
		}(i)
	}

	wg.Wait()
}

func FuzzMapStorage(f *testing.F) {
	s := NewMapStorage()

	f.Add("key1", "val1")
	f.Add("special", "!@#$%^&*()")
	f.Add("crlf", "a\r\nb")

	f.Fuzz(func(t *testing.T, key string, val string) {
		s.Put(key, val, 0)

		v, ok := s.GetIfPresent(key)
		if !ok || v.Value != val {
			t.Errorf("GetIfPresent failed after Put: key=%q, val=%q", key, val)
		}
	})
}
