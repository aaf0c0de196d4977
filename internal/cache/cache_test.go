package cache_test

import (
	"sync"
	"testing"

	"linkup/internal/cache"
)

func TestUpdateTransformsPreviousValue(t *testing.T) {
	store := cache.NewMemory()
	store.Set(cache.KeyMeetings, []int{1, 2})
	cache.Apply(store, cache.KeyMeetings, func(old []int) []int {
		return append(old, 3)
	})
	got, ok := cache.Lookup[[]int](store, cache.KeyMeetings)
	if !ok || len(got) != 3 || got[2] != 3 {
		t.Fatalf("functional update lost data: %v ok=%v", got, ok)
	}
}

func TestApplyOnMissingKeyStartsFromZero(t *testing.T) {
	store := cache.NewMemory()
	cache.Apply(store, cache.KeyRequests, func(old []string) []string {
		if old != nil {
			t.Fatalf("expected zero value, got %v", old)
		}
		return append(old, "a")
	})
	got, ok := cache.Lookup[[]string](store, cache.KeyRequests)
	if !ok || len(got) != 1 {
		t.Fatalf("apply did not seed entry: %v ok=%v", got, ok)
	}
}

func TestSnapshotRestore(t *testing.T) {
	store := cache.NewMemory()
	store.Set(cache.KeyUsers, "before")
	snap := store.Snapshot(cache.KeyUsers, cache.KeyMyTrades)

	store.Set(cache.KeyUsers, "speculative")
	store.Set(cache.KeyMyTrades, "speculative")
	store.Set(cache.KeyMeetings, "untouched")

	store.Restore(snap)

	if v, _ := store.Get(cache.KeyUsers); v != "before" {
		t.Fatalf("users not restored: %v", v)
	}
	if _, ok := store.Get(cache.KeyMyTrades); ok {
		t.Fatal("absent key should be removed on restore")
	}
	if v, _ := store.Get(cache.KeyMeetings); v != "untouched" {
		t.Fatalf("restore clobbered unrelated key: %v", v)
	}
}

func TestInvalidate(t *testing.T) {
	store := cache.NewMemory()
	store.Set(cache.InventoryKey(7), "inv")
	store.Invalidate(cache.InventoryKey(7))
	if _, ok := store.Get(cache.InventoryKey(7)); ok {
		t.Fatal("invalidate should drop the entry")
	}
}

func TestConcurrentWritersScopedToTheirKeys(t *testing.T) {
	store := cache.NewMemory()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			cache.Apply(store, cache.KeyRequests, func(old int) int { return old + 1 })
		}()
		go func() {
			defer wg.Done()
			cache.Apply(store, cache.KeyMeetings, func(old int) int { return old + 1 })
		}()
	}
	wg.Wait()
	if v, _ := cache.Lookup[int](store, cache.KeyRequests); v != 50 {
		t.Fatalf("requests counter drifted: %d", v)
	}
	if v, _ := cache.Lookup[int](store, cache.KeyMeetings); v != 50 {
		t.Fatalf("meetings counter drifted: %d", v)
	}
}
