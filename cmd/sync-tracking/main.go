package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kundan-thakur61/mobilecoverBackend/internal/config"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/courier"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/courier/delhivery"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/courier/shiprocket"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/idempotency"
	idmemory "github.com/kundan-thakur61/mobilecoverBackend/internal/idempotency/memory"
	idredis "github.com/kundan-thakur61/mobilecoverBackend/internal/idempotency/redis"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/observability"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/repository/postgres"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/service"
)

// One-shot reconciliation sweep over all active shipments. Meant for cron or
// for catching up after webhook downtime; the server runs the same sweep on
// its own timer.
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	db, err := postgres.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	repos := postgres.NewRepositories(db, logger)

	// Without redis the dedupe window only spans this one run; the CAS write
	// path still keeps reapplied statuses harmless.
	var ledger idempotency.Ledger
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		ledger = idredis.NewStore(client, idempotency.DefaultTTL)
	} else {
		store := idmemory.NewStore(idempotency.DefaultTTL)
		defer store.Close()
		ledger = store
	}

	var provider courier.Provider
	switch cfg.ShippingProvider {
	case shiprocket.ProviderName:
		provider = shiprocket.NewClient(cfg.Shiprocket.BaseURL, cfg.Shiprocket.Email, cfg.Shiprocket.Password, cfg.Shiprocket.PickupLocation, logger)
	default:
		provider = delhivery.NewClient(cfg.Delhivery.BaseURL, cfg.Delhivery.APIKey, cfg.Delhivery.PickupLocation, logger)
	}

	metrics := observability.NewNopMetrics()
	notifier := service.NewNotifier(cfg.SubscriberWebhookURL, logger)
	reconciler := service.NewReconciler(repos, notifier, metrics, logger)
	tracking := service.NewTrackingSync(repos, provider, reconciler, ledger, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	start := time.Now()
	tracking.SweepOnce(ctx)
	logger.Info("Tracking sweep finished", zap.Duration("took", time.Since(start)))
}
