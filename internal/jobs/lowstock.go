package jobs

import (
	"context"

	"github.com/dukerupert/storefront/internal/domain"
	"github.com/dukerupert/storefront/internal/telemetry"
	"github.com/rs/zerolog"
)

// LowStockMonitor tells an operator when a product drops to or below its
// low-stock threshold. It fires once per crossing, not on every cycle the
// product stays low.
type LowStockMonitor struct {
	products  domain.ProductLister
	snapshots domain.SnapshotStore
	notifier  notifier
	recipient string
	logger    zerolog.Logger
}

// NewLowStockMonitor creates a LowStockMonitor notifying recipient.
func NewLowStockMonitor(products domain.ProductLister, snapshots domain.SnapshotStore, dispatcher domain.NotificationDispatcher, recipient string, metrics *telemetry.BusinessMetrics, logger zerolog.Logger) *LowStockMonitor {
	logger = logger.With().Str("job", JobTypeLowStock).Logger()
	return &LowStockMonitor{
		products:  products,
		snapshots: snapshots,
		notifier:  notifier{dispatcher: dispatcher, metrics: metrics, logger: logger},
		recipient: recipient,
		logger:    logger,
	}
}

// Name implements worker.Job.
func (m *LowStockMonitor) Name() string { return JobTypeLowStock }

// Run implements worker.Job.
func (m *LowStockMonitor) Run(ctx context.Context) error {
	c, err := loadCycle(ctx, JobTypeLowStock, m.products, m.snapshots)
	if err != nil {
		return err
	}
	if c.first {
		m.logger.Info().Int("products", len(c.products)).Msg("no previous snapshot, recording baseline")
		return c.save(ctx, JobTypeLowStock, m.snapshots)
	}

	sent := 0
	for _, p := range c.products {
		before, seen := c.previous[p.ID]
		if !seen || !p.Active || !p.IsLowStock() || before.Stock <= p.LowStockThreshold {
			continue
		}
		ok := m.notifier.send(ctx, m.recipient, domain.NotifyLowStock, map[string]any{
			"productId": p.ID,
			"name":      p.Name,
			"stock":     p.Stock,
			"threshold": p.LowStockThreshold,
		})
		if ok {
			sent++
		}
	}

	m.logger.Debug().Int("products", len(c.products)).Int("notified", sent).Msg("low stock check complete")
	return c.save(ctx, JobTypeLowStock, m.snapshots)
}
