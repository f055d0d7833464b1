package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/storefront/internal"
	"github.com/dukerupert/storefront/internal/address"
	"github.com/dukerupert/storefront/internal/billing"
	"github.com/dukerupert/storefront/internal/handler/admin"
	"github.com/dukerupert/storefront/internal/handler/storefront"
	"github.com/dukerupert/storefront/internal/handler/webhook"
	"github.com/dukerupert/storefront/internal/jobs"
	"github.com/dukerupert/storefront/internal/middleware"
	"github.com/dukerupert/storefront/internal/natsx"
	"github.com/dukerupert/storefront/internal/postgres"
	"github.com/dukerupert/storefront/internal/routes"
	"github.com/dukerupert/storefront/internal/service"
	"github.com/dukerupert/storefront/internal/shipping"
	"github.com/dukerupert/storefront/internal/tax"
	"github.com/dukerupert/storefront/internal/telemetry"
	"github.com/dukerupert/storefront/internal/worker"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const metricsNamespace = "storefront"

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)
	zerolog.DefaultContextLogger = &logger

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	// Database
	logger.Info().Msg("Connecting to database...")
	pool, err := pgxpool.New(ctx, cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	logger.Info().Msg("Database connection established")

	if err := internal.RunMigrations(ctx, pool, logger); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	store := postgres.NewStore(pool, logger)

	// NATS: cart cache, monitor snapshots, notifications, cache invalidation
	nc, err := natsx.Connect(cfg.NatsURL, "storefront", logger)
	if err != nil {
		return fmt.Errorf("nats connection failed: %w", err)
	}
	defer nc.Drain()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("jetstream initialization failed: %w", err)
	}
	cartKV, err := natsx.OpenKV(ctx, js, cfg.Cart.Bucket, cfg.Cart.TTL)
	if err != nil {
		return err
	}
	snapshotKV, err := natsx.OpenKV(ctx, js, cfg.Monitor.SnapshotBucket, 0)
	if err != nil {
		return err
	}
	notifier := natsx.NewNotifier(nc)
	invalidator := natsx.NewInvalidator(nc)
	logger.Info().Str("url", nc.ConnectedUrl()).Msg("NATS connection established")

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	businessMetrics := telemetry.NewBusinessMetrics(reg, metricsNamespace)
	httpMetrics := middleware.NewMetrics(reg, reg, metricsNamespace)

	// Payment gateway
	gateway, err := newGateway(cfg, logger)
	if err != nil {
		return err
	}

	// Pricing
	taxCalc, err := tax.New(cfg.Pricing.TaxRate)
	if err != nil {
		return fmt.Errorf("tax calculator: %w", err)
	}
	shippingCalc, err := shipping.NewFlatRateCalculator(cfg.Pricing.ShippingFlat, cfg.Pricing.FreeShippingThreshold)
	if err != nil {
		return fmt.Errorf("shipping calculator: %w", err)
	}
	pricer := service.NewPricer(taxCalc, shippingCalc)

	// Services
	carts := service.NewCartService(cartKV, store.Catalog(), pricer, businessMetrics, logger)
	fulfillment := service.NewFulfillmentService(service.FulfillmentDeps{
		Store:    store,
		Carts:    carts,
		Pricer:   pricer,
		Address:  address.NewBasicValidator(),
		Notifier: notifier,
		Cache:    invalidator,
		Payments: gateway,
		Metrics:  businessMetrics,
		Logger:   logger,
	})
	reconciler := service.NewPaymentReconciler(store.Orders(), fulfillment, notifier, businessMetrics, logger)
	checkout := service.NewCheckoutService(carts, gateway, cfg.Pricing.Currency, businessMetrics, logger)
	wishlists := service.NewWishlistService(store.Wishlists(), store.Catalog(), logger)

	// Background monitors
	snapshots := natsx.NewSnapshots(snapshotKV)
	w := worker.NewWorker(worker.Config{Interval: cfg.Monitor.Interval}, businessMetrics, logger,
		jobs.NewLowStockMonitor(store.Catalog(), snapshots, notifier, cfg.Monitor.LowStockRecipient, businessMetrics, logger),
		jobs.NewWishlistMonitor(store.Catalog(), snapshots, store.Wishlists(), notifier, businessMetrics, logger),
	)
	workerDone := make(chan error, 1)
	go func() { workerDone <- w.Start(ctx) }()

	// HTTP
	e := routes.New(routes.Deps{
		Logger:  logger,
		Env:     cfg.Env,
		Metrics: httpMetrics,
		Health: map[string]routes.HealthCheck{
			"postgres": pool.Ping,
			"nats": func(context.Context) error {
				if s := nc.Status(); s != nats.CONNECTED {
					return fmt.Errorf("nats status %s", s)
				}
				return nil
			},
		},
		Storefront: routes.StorefrontDeps{
			CartHandler:     storefront.NewCartHandler(carts),
			CheckoutHandler: storefront.NewCheckoutHandler(checkout),
			OrderHandler:    storefront.NewOrderHandler(fulfillment),
			WishlistHandler: storefront.NewWishlistHandler(wishlists),
		},
		Admin: routes.AdminDeps{
			Handler: admin.NewHandler(fulfillment),
			APIKey:  cfg.AdminAPIKey,
		},
		Webhook: routes.WebhookDeps{
			StripeHandler: webhook.NewStripeHandler(gateway, reconciler, businessMetrics),
		},
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("address", srv.Addr).Str("env", cfg.Env).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		logger.Info().Msg("Shutting down...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP shutdown did not complete")
	}

	stop()
	if err := <-workerDone; err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("worker stopped with error")
	}
	logger.Info().Msg("Shutdown complete")
	return nil
}

// newGateway returns the Stripe provider, or the in-process mock in dev when
// no secret key is configured.
func newGateway(cfg *internal.Config, logger zerolog.Logger) (billing.Provider, error) {
	if cfg.Stripe.SecretKey == "" {
		logger.Warn().Msg("STRIPE_SECRET_KEY not set, using mock payment gateway")
		return billing.NewMockProvider(), nil
	}

	stripeConfig := billing.StripeConfig{
		APIKey:        cfg.Stripe.SecretKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
		Currency:      cfg.Pricing.Currency,
	}
	provider, err := billing.NewStripeProvider(stripeConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Stripe provider: %w", err)
	}
	logger.Info().Bool("test_mode", stripeConfig.IsTestMode()).Msg("Stripe billing provider initialized")
	return provider, nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("storefront exited")
	}
}
