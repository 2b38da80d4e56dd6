package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kundan-thakur61/mobilecoverBackend/internal/api"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/config"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/courier"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/courier/delhivery"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/courier/shiprocket"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/idempotency"
	idmemory "github.com/kundan-thakur61/mobilecoverBackend/internal/idempotency/memory"
	idredis "github.com/kundan-thakur61/mobilecoverBackend/internal/idempotency/redis"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/locator"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/observability"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/payment/razorpay"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/repository/postgres"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	var logger *zap.Logger
	if cfg.Environment == "production" {
		logger, _ = zap.NewProduction()
	} else {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	logger.Info("Starting mobile cover store API",
		zap.String("port", cfg.Port),
		zap.String("environment", cfg.Environment),
		zap.String("shipping_provider", cfg.ShippingProvider),
	)

	// Initialize database
	db, err := postgres.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	repos := postgres.NewRepositories(db, logger)

	// Idempotency ledger: shared redis when configured, in-process otherwise.
	// Multi-instance deployments need redis or webhook retries dedupe only
	// per instance.
	var ledger idempotency.Ledger
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			logger.Fatal("Failed to connect to redis", zap.Error(err))
		}
		defer client.Close()
		ledger = idredis.NewStore(client, idempotency.DefaultTTL)
		logger.Info("Using redis idempotency ledger", zap.String("addr", cfg.Redis.Addr))
	} else {
		store := idmemory.NewStore(idempotency.DefaultTTL)
		defer store.Close()
		ledger = store
		logger.Warn("Using in-process idempotency ledger; duplicate webhooks dedupe per instance only")
	}

	var provider courier.Provider
	switch cfg.ShippingProvider {
	case shiprocket.ProviderName:
		provider = shiprocket.NewClient(cfg.Shiprocket.BaseURL, cfg.Shiprocket.Email, cfg.Shiprocket.Password, cfg.Shiprocket.PickupLocation, logger)
	default:
		provider = delhivery.NewClient(cfg.Delhivery.BaseURL, cfg.Delhivery.APIKey, cfg.Delhivery.PickupLocation, logger)
	}

	razorpayClient := razorpay.NewClient(cfg.Razorpay.BaseURL, cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret, logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	notifier := service.NewNotifier(cfg.SubscriberWebhookURL, logger)
	loc := locator.New(repos, logger)
	reconciler := service.NewReconciler(repos, notifier, metrics, logger)
	tracking := service.NewTrackingSync(repos, provider, reconciler, ledger, logger)

	svcs := &api.Services{
		Orders:     service.NewOrderService(repos, razorpayClient, logger),
		Shipments:  service.NewShipmentService(repos, provider, metrics, logger),
		Payments:   service.NewPaymentService(reconciler, loc, ledger, metrics, notifier, logger),
		Tracking:   tracking,
		Reconciler: reconciler,
		Locator:    loc,
		Ledger:     ledger,
		Metrics:    metrics,
		Registry:   registry,
	}

	router := api.NewRouter(cfg, svcs, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Tracking sweep: reconciles active shipments against the provider so
	// missed webhooks eventually converge.
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go tracking.RunSweepLoop(sweepCtx, cfg.TrackingSweepInterval)

	logger.Info("Server started successfully", zap.String("address", srv.Addr))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	stopSweep()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
