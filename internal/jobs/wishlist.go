package jobs

import (
	"context"
	"fmt"

	"github.com/dukerupert/storefront/internal/domain"
	"github.com/dukerupert/storefront/internal/telemetry"
	"github.com/rs/zerolog"
)

// WishlistMonitor notifies shoppers watching a product when its price drops
// or it comes back in stock.
type WishlistMonitor struct {
	products  domain.ProductLister
	snapshots domain.SnapshotStore
	wishlists domain.WishlistRepository
	notifier  notifier
	logger    zerolog.Logger
}

// NewWishlistMonitor creates a WishlistMonitor.
func NewWishlistMonitor(products domain.ProductLister, snapshots domain.SnapshotStore, wishlists domain.WishlistRepository, dispatcher domain.NotificationDispatcher, metrics *telemetry.BusinessMetrics, logger zerolog.Logger) *WishlistMonitor {
	logger = logger.With().Str("job", JobTypeWishlist).Logger()
	return &WishlistMonitor{
		products:  products,
		snapshots: snapshots,
		wishlists: wishlists,
		notifier:  notifier{dispatcher: dispatcher, metrics: metrics, logger: logger},
		logger:    logger,
	}
}

// Name implements worker.Job.
func (m *WishlistMonitor) Name() string { return JobTypeWishlist }

type productChange struct {
	kind    domain.NotificationKind
	payload map[string]any
}

// Run implements worker.Job.
func (m *WishlistMonitor) Run(ctx context.Context) error {
	c, err := loadCycle(ctx, JobTypeWishlist, m.products, m.snapshots)
	if err != nil {
		return err
	}
	if c.first {
		m.logger.Info().Int("products", len(c.products)).Msg("no previous snapshot, recording baseline")
		return c.save(ctx, JobTypeWishlist, m.snapshots)
	}

	changes := make(map[string][]productChange)
	for _, p := range c.products {
		before, seen := c.previous[p.ID]
		if !seen || !p.Active {
			continue
		}
		if p.Price.LessThan(before.Price) {
			changes[p.ID] = append(changes[p.ID], productChange{
				kind: domain.NotifyPriceDrop,
				payload: map[string]any{
					"productId": p.ID,
					"name":      p.Name,
					"oldPrice":  before.Price.StringFixed(2),
					"newPrice":  p.Price.StringFixed(2),
				},
			})
		}
		if before.Stock <= 0 && p.Stock > 0 {
			changes[p.ID] = append(changes[p.ID], productChange{
				kind: domain.NotifyBackInStock,
				payload: map[string]any{
					"productId": p.ID,
					"name":      p.Name,
					"stock":     p.Stock,
				},
			})
		}
	}

	if len(changes) > 0 {
		ids := make([]string, 0, len(changes))
		for id := range changes {
			ids = append(ids, id)
		}
		watchers, err := m.wishlists.Watchers(ctx, ids)
		if err != nil {
			return fmt.Errorf("failed to load wishlist watchers: %w", err)
		}

		sent := 0
		for id, list := range changes {
			for _, shopperID := range watchers[id] {
				for _, ch := range list {
					if m.notifier.send(ctx, shopperID, ch.kind, ch.payload) {
						sent++
					}
				}
			}
		}
		m.logger.Info().Int("changed", len(changes)).Int("notified", sent).Msg("wishlist notices sent")
	}

	return c.save(ctx, JobTypeWishlist, m.snapshots)
}
