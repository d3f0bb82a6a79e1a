package querycache

import (
	"context"
	"path"
	"sort"
	"sync"
	"time"
)

type memoryItem struct {
	entry   Entry
	expires time.Time
}

// MemoryBackend keeps entries in process. Entries not written for gcTime are dropped lazily.
type MemoryBackend struct {
	mu     sync.RWMutex
	items  map[string]memoryItem
	gcTime time.Duration
	now    func() time.Time
}

// NewMemoryBackend builds an in-process backend. A non-positive gcTime disables expiry.
func NewMemoryBackend(gcTime time.Duration) *MemoryBackend {
	return &MemoryBackend{items: make(map[string]memoryItem), gcTime: gcTime, now: time.Now}
}

func (b *MemoryBackend) Get(_ context.Context, key string) (Entry, bool, error) {
	b.mu.RLock()
	item, ok := b.items[key]
	b.mu.RUnlock()
	if !ok || b.expired(item) {
		return Entry{}, false, nil
	}
	return cloneEntry(item.entry), true, nil
}

func (b *MemoryBackend) Set(_ context.Context, key string, entry Entry) error {
	item := memoryItem{entry: cloneEntry(entry)}
	if b.gcTime > 0 {
		item.expires = b.now().Add(b.gcTime)
	}
	b.mu.Lock()
	b.items[key] = item
	b.mu.Unlock()
	return nil
}

func (b *MemoryBackend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	delete(b.items, key)
	b.mu.Unlock()
	return nil
}

// Keys matches pattern with Redis-style globs (*, ?, [...]).
func (b *MemoryBackend) Keys(_ context.Context, pattern string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var keys []string
	for key, item := range b.items {
		if b.expired(item) {
			continue
		}
		matched, err := path.Match(pattern, key)
		if err != nil {
			return nil, err
		}
		if matched {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Sweep removes expired entries and returns how many were dropped.
func (b *MemoryBackend) Sweep() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	removed := 0
	for key, item := range b.items {
		if b.expired(item) {
			delete(b.items, key)
			removed++
		}
	}
	return removed
}

func (b *MemoryBackend) expired(item memoryItem) bool {
	return !item.expires.IsZero() && b.now().After(item.expires)
}

func cloneEntry(e Entry) Entry {
	payload := make([]byte, len(e.Payload))
	copy(payload, e.Payload)
	e.Payload = payload
	return e
}
