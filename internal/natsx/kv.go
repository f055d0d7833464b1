package natsx

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/storefront/internal/domain"
	"github.com/nats-io/nats.go/jetstream"
)

// KV implements domain.KeyValueStore on a JetStream key-value bucket.
// The bucket's MaxAge is the entry TTL; since every Put writes a new
// revision, each write restarts the clock for that key.
type KV struct {
	kv jetstream.KeyValue
}

var _ domain.KeyValueStore = (*KV)(nil)

// OpenKV creates the bucket if needed and returns a store over it.
// A zero ttl keeps entries forever.
func OpenKV(ctx context.Context, js jetstream.JetStream, bucket string, ttl time.Duration) (*KV, error) {
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:  bucket,
		TTL:     ttl,
		History: 1,
		Storage: jetstream.FileStorage,
	})
	if err != nil {
		return nil, fmt.Errorf("open kv bucket %s: %w", bucket, err)
	}
	return NewKV(kv), nil
}

// NewKV wraps an existing bucket handle.
func NewKV(kv jetstream.KeyValue) *KV {
	return &KV{kv: kv}
}

// encodeKey maps arbitrary ids onto the bucket's restricted key alphabet.
func encodeKey(key string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(key))
}

// Get implements domain.KeyValueStore.
func (s *KV) Get(ctx context.Context, key string) ([]byte, error) {
	entry, err := s.kv.Get(ctx, encodeKey(key))
	if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted) {
		return nil, domain.ErrNotFoundInStore
	}
	if err != nil {
		return nil, fmt.Errorf("kv get: %w", err)
	}
	return entry.Value(), nil
}

// Put implements domain.KeyValueStore.
func (s *KV) Put(ctx context.Context, key string, value []byte) error {
	if _, err := s.kv.Put(ctx, encodeKey(key), value); err != nil {
		return fmt.Errorf("kv put: %w", err)
	}
	return nil
}

// Delete implements domain.KeyValueStore.
func (s *KV) Delete(ctx context.Context, key string) error {
	err := s.kv.Delete(ctx, encodeKey(key))
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("kv delete: %w", err)
	}
	return nil
}
