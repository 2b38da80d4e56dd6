package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kundan-thakur61/mobilecoverBackend/internal/api/handlers"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/api/middleware"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/config"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/idempotency"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/locator"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/observability"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/service"
)

// Services bundles everything the routes need.
type Services struct {
	Orders     *service.OrderService
	Shipments  *service.ShipmentService
	Payments   *service.PaymentService
	Tracking   *service.TrackingSync
	Reconciler *service.Reconciler
	Locator    *locator.Locator
	Ledger     idempotency.Ledger
	Metrics    *observability.Metrics
	Registry   *prometheus.Registry
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, svcs *Services, logger *zap.Logger) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Middleware
	router.Use(customRecovery(logger))
	router.Use(loggingMiddleware(logger))

	// Root: friendly response so GET / returns 200 instead of 404
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": "Mobile Cover Store API",
			"endpoints": []string{
				"GET /health",
				"POST /webhooks/shipping",
				"POST /webhooks/razorpay",
				"POST /api/orders",
				"GET /api/orders/:reference",
				"POST /api/shipping/create-shipment",
				"GET /api/shipping/track/:identifier",
				"GET /api/shipping/check-serviceability",
			},
		})
	})

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(svcs.Registry, promhttp.HandlerOpts{})))

	// Courier webhook, plus the provider-named alias some courier dashboards
	// insist on configuring.
	shippingWebhook := handlers.HandleShippingWebhook(cfg, svcs.Locator, svcs.Reconciler, svcs.Ledger, svcs.Metrics, logger)
	router.POST("/webhooks/shipping", shippingWebhook)
	router.POST("/api/"+cfg.ShippingProvider+"/webhook", shippingWebhook)

	// Payment webhook: signature over raw body, verified before parsing
	router.POST("/webhooks/razorpay", handlers.HandleRazorpayWebhook(cfg, svcs.Payments, svcs.Metrics, logger))

	api := router.Group("/api")
	{
		api.POST("/orders", handlers.HandleCheckout(svcs.Orders, logger))
		api.GET("/orders/:reference", handlers.HandleGetOrder(svcs.Locator, logger))

		shipping := api.Group("/shipping")
		{
			shipping.GET("/track/:identifier", handlers.HandleTrack(svcs.Locator, svcs.Tracking, logger))
			shipping.GET("/check-serviceability", handlers.HandleCheckServiceability(svcs.Shipments, logger))

			adminShipping := shipping.Group("")
			adminShipping.Use(middleware.AdminAuth(cfg, logger))
			{
				adminShipping.POST("/create-shipment", handlers.HandleCreateShipment(svcs.Shipments, logger))
				adminShipping.POST("/assign-courier", handlers.HandleAssignCourier(svcs.Shipments, logger))
				adminShipping.POST("/request-pickup", handlers.HandleRequestPickup(svcs.Shipments, logger))
				adminShipping.POST("/cancel-shipment", handlers.HandleCancelShipment(svcs.Shipments, logger))
				adminShipping.POST("/generate-labels", handlers.HandleGenerateLabels(svcs.Shipments, logger))
			}
		}
	}

	admin := router.Group("/admin")
	admin.Use(middleware.AdminAuth(cfg, logger))
	{
		admin.GET("/orders", handlers.HandleListOrders(svcs.Orders, logger))
		admin.GET("/orders/:orderType/:id", handlers.HandleGetOrderByID(svcs.Orders, logger))
		admin.POST("/orders/:orderType/:id/status", handlers.HandleOverrideStatus(svcs.Orders, logger))
	}

	return router
}

// customRecovery is a custom recovery middleware that logs panics
func customRecovery(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Error("Panic recovered",
			zap.Any("error", recovered),
			zap.String("path", c.Request.URL.Path),
			zap.String("method", c.Request.Method),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal server error",
			"details": fmt.Sprintf("%v", recovered),
		})
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		status := c.Writer.Status()
		logger.Info("HTTP request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
		)
	}
}
