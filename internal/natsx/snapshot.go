package natsx

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dukerupert/storefront/internal/domain"
)

// Snapshots implements domain.SnapshotStore as one JSON document per
// monitor name in a key-value store without expiry.
type Snapshots struct {
	kv domain.KeyValueStore
}

var _ domain.SnapshotStore = (*Snapshots)(nil)

func NewSnapshots(kv domain.KeyValueStore) *Snapshots {
	return &Snapshots{kv: kv}
}

// Load implements domain.SnapshotStore.
func (s *Snapshots) Load(ctx context.Context, name string) (map[string]domain.ProductSnapshot, error) {
	raw, err := s.kv.Get(ctx, "snapshot."+name)
	if err != nil {
		return nil, err
	}
	var snap map[string]domain.ProductSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", name, err)
	}
	return snap, nil
}

// Save implements domain.SnapshotStore.
func (s *Snapshots) Save(ctx context.Context, name string, snap map[string]domain.ProductSnapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", name, err)
	}
	return s.kv.Put(ctx, "snapshot."+name, raw)
}
