package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kundan-thakur61/mobilecoverBackend/internal/config"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/observability"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/payment/razorpay"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/service"
)

const razorpayProvider = "razorpay"

// HandleRazorpayWebhook ingests payment events. The signature covers the
// raw body bytes, so the body is read and verified before any JSON parsing.
// 400 only for a bad signature; every other outcome, including internal
// processing failures, acknowledges 200.
func HandleRazorpayWebhook(cfg *config.Config, payments *service.PaymentService, metrics *observability.Metrics, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := io.ReadAll(c.Request.Body)
		if err != nil {
			metrics.WebhookRejected.WithLabelValues(razorpayProvider, "body").Inc()
			logger.Warn("Razorpay webhook: unreadable body", zap.Error(err))
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}

		signature := c.GetHeader("X-Razorpay-Signature")
		if !razorpay.VerifyWebhookSignature(raw, signature, cfg.Razorpay.WebhookSecret) {
			metrics.WebhookRejected.WithLabelValues(razorpayProvider, "signature").Inc()
			logger.Warn("Razorpay webhook rejected: bad signature", zap.String("remote", c.ClientIP()))
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
			return
		}

		var event razorpay.WebhookEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			metrics.SwallowedErrors.WithLabelValues(razorpayProvider).Inc()
			logger.Error("Razorpay webhook: unparseable verified payload", zap.Error(err))
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}

		if err := payments.HandleEvent(c.Request.Context(), &event); err != nil {
			metrics.SwallowedErrors.WithLabelValues(razorpayProvider).Inc()
			logger.Error("Razorpay webhook: processing failed",
				zap.String("event", event.Event),
				zap.String("event_id", event.ID),
				zap.Error(err),
			)
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
