package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/dukerupert/storefront/internal/domain"
)

// Wishlists is an in-memory domain.WishlistRepository.
type Wishlists struct {
	mu    sync.RWMutex
	items map[string]map[string]struct{} // shopper -> products
}

var _ domain.WishlistRepository = (*Wishlists)(nil)

func NewWishlists() *Wishlists {
	return &Wishlists{items: make(map[string]map[string]struct{})}
}

func (w *Wishlists) Add(ctx context.Context, shopperID, productID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	set, ok := w.items[shopperID]
	if !ok {
		set = make(map[string]struct{})
		w.items[shopperID] = set
	}
	set[productID] = struct{}{}
	return nil
}

func (w *Wishlists) Remove(ctx context.Context, shopperID, productID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	delete(w.items[shopperID], productID)
	return nil
}

func (w *Wishlists) List(ctx context.Context, shopperID string) ([]string, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]string, 0, len(w.items[shopperID]))
	for id := range w.items[shopperID] {
		out = append(out, id)
	}
	slices.Sort(out)
	return out, nil
}

func (w *Wishlists) Watchers(ctx context.Context, productIDs []string) (map[string][]string, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	want := make(map[string]struct{}, len(productIDs))
	for _, id := range productIDs {
		want[id] = struct{}{}
	}

	out := make(map[string][]string)
	for shopper, set := range w.items {
		for id := range set {
			if _, ok := want[id]; ok {
				out[id] = append(out[id], shopper)
			}
		}
	}
	for id := range out {
		slices.Sort(out[id])
	}
	return out, nil
}
