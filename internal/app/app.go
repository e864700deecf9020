// Package app wires the backend together: database pool, object storage
// client, repositories, domain services and the probe server. The business
// operations are exposed as the Services struct; transport for them is
// deliberately left to the embedding process.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	"github.com/xeniko/shop-admin/internal/domain/category"
	"github.com/xeniko/shop-admin/internal/domain/order"
	"github.com/xeniko/shop-admin/internal/domain/payment"
	"github.com/xeniko/shop-admin/internal/domain/product"
	"github.com/xeniko/shop-admin/internal/storage/postgres"
	"github.com/xeniko/shop-admin/internal/storage/supastore"
	"github.com/xeniko/shop-admin/pkg/health"
)

// Services bundles the constructed domain services.
type Services struct {
	Orders     *order.Service
	Payments   *payment.Service
	Products   *product.Service
	Categories *category.Service
}

// Run creates all dependencies, starts the probe server, and handles
// graceful shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Object storage client for product images.
	images := supastore.New(supastore.Config{
		BaseURL:    cfg.Storage.BaseURL,
		ServiceKey: cfg.Storage.ServiceKey,
		Bucket:     cfg.Storage.Bucket,
	})

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthSvc.AddReadinessCheck("storage", 5*time.Second,
		health.HTTPReachableCheck(&http.Client{Timeout: 5 * time.Second}, cfg.Storage.BaseURL))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)

	// Repositories.
	orderRepo := postgres.NewOrderRepository(pool)
	productRepo := postgres.NewProductRepository(pool)
	categoryRepo := postgres.NewCategoryRepository(pool)
	paymentRepo := postgres.NewPaymentRepository(pool)
	auditlog := postgres.NewAuditRecorder(pool)

	// Domain services.
	svcs := Services{
		Orders:     order.NewService(orderRepo, auditlog),
		Payments:   payment.NewService(paymentRepo, orderRepo, auditlog),
		Products:   product.NewService(productRepo, categoryRepo, images, auditlog),
		Categories: category.NewService(categoryRepo, auditlog),
	}

	// Warm-up read: verifies the schema is usable before the service is
	// marked ready, and primes a pool connection.
	if _, err := svcs.Categories.List(ctx); err != nil {
		return errors.Wrap(err, "warm-up query")
	}
	healthSvc.SetReady(true)

	// Probe server. The business API is served by a separate gateway; this
	// process only exposes liveness/readiness.
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		Addr:              cfg.Addr,
		Handler:           mux,
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
