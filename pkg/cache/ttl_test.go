package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

func TestGetSetExpiry(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewTTL[string, int](5*time.Minute, WithClock[string, int](clock.Now))

	if _, ok := c.Get("dallas, texas"); ok {
		t.Fatal("empty cache returned a value")
	}

	c.Set("dallas, texas", 101)
	if v, ok := c.Get("dallas, texas"); !ok || v != 101 {
		t.Fatalf("Get = (%d, %v), want (101, true)", v, ok)
	}

	clock.Advance(5*time.Minute - time.Second)
	if _, ok := c.Get("dallas, texas"); !ok {
		t.Fatal("entry expired before its ttl")
	}

	clock.Advance(time.Second)
	if _, ok := c.Get("dallas, texas"); ok {
		t.Fatal("entry still served at its expiry instant")
	}

	// Rewriting refreshes the expiry.
	c.Set("dallas, texas", 102)
	clock.Advance(time.Minute)
	if v, ok := c.Get("dallas, texas"); !ok || v != 102 {
		t.Fatalf("refreshed Get = (%d, %v)", v, ok)
	}
}

func TestDeleteAndPurge(t *testing.T) {
	c := NewTTL[string, string](time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")
	c.Delete("a")

	if _, ok := c.Get("a"); ok {
		t.Fatal("deleted key still present")
	}
	if c.Len() != 1 {
		t.Fatalf("Len = %d, want 1", c.Len())
	}

	c.Purge()
	if c.Len() != 0 {
		t.Fatalf("Len after purge = %d", c.Len())
	}
	if c.TTL() != time.Minute {
		t.Fatalf("TTL = %v", c.TTL())
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := NewTTL[string, int](time.Minute)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", i%10)
				c.Set(key, w)
				c.Get(key)
				if i%50 == 0 {
					c.Purge()
				}
			}
		}(w)
	}
	wg.Wait()

	if c.Len() > 10 {
		t.Fatalf("Len = %d, want at most 10 distinct keys", c.Len())
	}
}
