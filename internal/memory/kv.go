package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/dukerupert/storefront/internal/domain"
)

type kvEntry struct {
	value   []byte
	expires time.Time
}

// KV is an in-memory domain.KeyValueStore with a sliding TTL per key.
type KV struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]kvEntry
}

var _ domain.KeyValueStore = (*KV)(nil)

// NewKV returns a store whose entries expire ttl after their last Put.
// A zero ttl disables expiry.
func NewKV(ttl time.Duration) *KV {
	return &KV{ttl: ttl, now: time.Now, entries: make(map[string]kvEntry)}
}

// WithClock replaces the time source. Tests use it to move time forward.
func (kv *KV) WithClock(now func() time.Time) *KV {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.now = now
	return kv
}

// Get implements domain.KeyValueStore. Expired entries are evicted lazily.
func (kv *KV) Get(ctx context.Context, key string) ([]byte, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	e, ok := kv.entries[key]
	if !ok {
		return nil, domain.ErrNotFoundInStore
	}
	if !e.expires.IsZero() && !kv.now().Before(e.expires) {
		delete(kv.entries, key)
		return nil, domain.ErrNotFoundInStore
	}
	return slices.Clone(e.value), nil
}

// Put implements domain.KeyValueStore.
func (kv *KV) Put(ctx context.Context, key string, value []byte) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	e := kvEntry{value: slices.Clone(value)}
	if kv.ttl > 0 {
		e.expires = kv.now().Add(kv.ttl)
	}
	kv.entries[key] = e
	return nil
}

// Delete implements domain.KeyValueStore.
func (kv *KV) Delete(ctx context.Context, key string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	delete(kv.entries, key)
	return nil
}
