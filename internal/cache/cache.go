package cache

import (
	"fmt"
	"sync"
)

// Key identifies one cached query result.
type Key string

const (
	KeyParticipants Key = "participants"
	KeyRequests     Key = "requests"
	KeyMeetings     Key = "meetings"
	KeyUsers        Key = "users"
	KeyFriends      Key = "friends"
	KeyMyTrades     Key = "my-trades"
	KeyCatalogs     Key = "catalogs"
)

// InventoryKey scopes a user's inventory.
func InventoryKey(userID int64) Key {
	return Key(fmt.Sprintf("inventory/%d", userID))
}

// Store is a process-wide query cache shared by every view. Writers must
// go through Update so concurrent writes to other keys are never
// clobbered; whole-value Set is reserved for priming from a fetch.
type Store interface {
	Get(key Key) (any, bool)
	Set(key Key, value any)
	Update(key Key, fn func(old any) any)
	Invalidate(keys ...Key)
	Snapshot(keys ...Key) Snapshot
	Restore(snap Snapshot)
}

// Snapshot captures prior values of a set of keys so a speculative write
// can be unwound if its mutation is rejected.
type Snapshot map[Key]snapEntry

type snapEntry struct {
	value   any
	present bool
}

// Memory is the in-memory Store used by the client runtime.
type Memory struct {
	mu      sync.RWMutex
	entries map[Key]any
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[Key]any)}
}

func (m *Memory) Get(key Key) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[key]
	return v, ok
}

func (m *Memory) Set(key Key, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
}

// Update transforms the previous value under the lock. fn receives nil
// when the key is absent; returning nil removes the entry.
func (m *Memory) Update(key Key, fn func(old any) any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := fn(m.entries[key])
	if next == nil {
		delete(m.entries, key)
		return
	}
	m.entries[key] = next
}

func (m *Memory) Invalidate(keys ...Key) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.entries, key)
	}
}

func (m *Memory) Snapshot(keys ...Key) Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap := make(Snapshot, len(keys))
	for _, key := range keys {
		v, ok := m.entries[key]
		snap[key] = snapEntry{value: v, present: ok}
	}
	return snap
}

func (m *Memory) Restore(snap Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, entry := range snap {
		if entry.present {
			m.entries[key] = entry.value
		} else {
			delete(m.entries, key)
		}
	}
}

// Lookup reads a typed value; ok is false when the key is absent or holds
// a different type.
func Lookup[T any](s Store, key Key) (T, bool) {
	v, ok := s.Get(key)
	if !ok {
		var zero T
		return zero, false
	}
	typed, ok := v.(T)
	return typed, ok
}

// Apply runs a typed functional update. A missing or mistyped entry is
// presented to fn as the zero value.
func Apply[T any](s Store, key Key, fn func(T) T) {
	s.Update(key, func(old any) any {
		typed, _ := old.(T)
		return fn(typed)
	})
}
