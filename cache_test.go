package cryptovault

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestVaultCacheSetGet(t *testing.T) {
	c := newVaultCache[string](10, 0, true)
	c.Set("a", "value-a")

	v, found, negative := c.Get("a")
	if !found || negative {
		t.Fatalf("found=%v negative=%v, want found=true negative=false", found, negative)
	}
	if v != "value-a" {
		t.Fatalf("v = %q, want %q", v, "value-a")
	}
}

func TestVaultCacheNegativeEntry(t *testing.T) {
	c := newVaultCache[string](10, 0, true)
	c.SetNegative("missing")

	_, found, negative := c.Get("missing")
	if !found || !negative {
		t.Fatalf("found=%v negative=%v, want found=true negative=true", found, negative)
	}
}

func TestVaultCacheInvalidate(t *testing.T) {
	c := newVaultCache[string](10, 0, true)
	c.Set("a", "value-a")
	c.Invalidate("a")

	if _, found, _ := c.Get("a"); found {
		t.Fatal("expected key to be gone after Invalidate")
	}
}

func TestVaultCacheExpiresByTTL(t *testing.T) {
	c := newVaultCache[string](10, 10*time.Millisecond, true)
	c.Set("a", "value-a")
	if _, found, _ := c.Get("a"); !found {
		t.Fatal("expected fresh entry to be served")
	}

	time.Sleep(50 * time.Millisecond)
	if _, found, _ := c.Get("a"); found {
		t.Fatal("expected expired entry to be treated as a miss")
	}
}

func TestVaultCacheGetOrLoadCollapsesConcurrentMisses(t *testing.T) {
	c := newVaultCache[string](10, 0, true)
	var calls int64

	load := func() (string, bool, error) {
		atomic.AddInt64(&calls, 1)
		return "loaded", true, nil
	}

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			v, err := c.GetOrLoad("key", load)
			if err != nil {
				t.Errorf("GetOrLoad: %v", err)
			}
			if v != "loaded" {
				t.Errorf("v = %q, want %q", v, "loaded")
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}

	if got := atomic.LoadInt64(&calls); got < 1 || got > 8 {
		t.Fatalf("calls = %d, want between 1 and 8", got)
	}
}

func TestVaultCacheGetOrLoadCachesNegative(t *testing.T) {
	c := newVaultCache[string](10, 0, true)
	calls := 0
	load := func() (string, bool, error) {
		calls++
		return "", false, nil
	}

	if _, err := c.GetOrLoad("missing", load); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if _, err := c.GetOrLoad("missing", load); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (negative result should be cached)", calls)
	}
}
