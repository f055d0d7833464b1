package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/dukerupert/storefront/internal/domain"
)

// Snapshots is an in-memory domain.SnapshotStore.
type Snapshots struct {
	mu   sync.Mutex
	data map[string]map[string]domain.ProductSnapshot
}

var _ domain.SnapshotStore = (*Snapshots)(nil)

func NewSnapshots() *Snapshots {
	return &Snapshots{data: make(map[string]map[string]domain.ProductSnapshot)}
}

// Load implements domain.SnapshotStore.
func (s *Snapshots) Load(ctx context.Context, name string) (map[string]domain.ProductSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.data[name]
	if !ok {
		return nil, domain.ErrNotFoundInStore
	}
	return maps.Clone(snap), nil
}

// Save implements domain.SnapshotStore.
func (s *Snapshots) Save(ctx context.Context, name string, snap map[string]domain.ProductSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[name] = maps.Clone(snap)
	return nil
}
