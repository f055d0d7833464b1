// Package jobs contains the periodic monitors run by the worker. Each
// monitor diffs the catalog against the snapshot it saved last cycle and
// notifies on the changes it cares about.
package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukerupert/storefront/internal/domain"
	"github.com/dukerupert/storefront/internal/telemetry"
	"github.com/rs/zerolog"
)

// Job type constants, also used as snapshot names.
const (
	JobTypeLowStock = "monitor:low_stock"
	JobTypeWishlist = "monitor:wishlist"
)

// cycle is the state both monitors start from: the current catalog and the
// snapshot saved by the previous run.
type cycle struct {
	products []domain.Product
	previous map[string]domain.ProductSnapshot
	// first is true when no snapshot existed, e.g. after a restart.
	first bool
}

func loadCycle(ctx context.Context, name string, products domain.ProductLister, snapshots domain.SnapshotStore) (*cycle, error) {
	all, err := products.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	prev, err := snapshots.Load(ctx, name)
	switch {
	case errors.Is(err, domain.ErrNotFoundInStore):
		return &cycle{products: all, first: true}, nil
	case err != nil:
		return nil, fmt.Errorf("failed to load snapshot %s: %w", name, err)
	}
	return &cycle{products: all, previous: prev}, nil
}

// save records the current catalog as the next cycle's baseline.
func (c *cycle) save(ctx context.Context, name string, snapshots domain.SnapshotStore) error {
	next := make(map[string]domain.ProductSnapshot, len(c.products))
	for _, p := range c.products {
		next[p.ID] = domain.ProductSnapshot{Price: p.Price, Stock: p.Stock}
	}
	if err := snapshots.Save(ctx, name, next); err != nil {
		return fmt.Errorf("failed to save snapshot %s: %w", name, err)
	}
	return nil
}

// notifier sends best-effort notices. Failures are logged and counted.
type notifier struct {
	dispatcher domain.NotificationDispatcher
	metrics    *telemetry.BusinessMetrics
	logger     zerolog.Logger
}

func (n notifier) send(ctx context.Context, shopperID string, kind domain.NotificationKind, payload map[string]any) bool {
	if err := n.dispatcher.Notify(ctx, shopperID, kind, payload); err != nil {
		n.metrics.NotificationFailed(string(kind))
		n.logger.Warn().Err(err).
			Str("shopper_id", shopperID).
			Str("kind", string(kind)).
			Msg("notification failed")
		return false
	}
	return true
}
