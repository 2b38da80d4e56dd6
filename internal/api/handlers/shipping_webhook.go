package handlers

import (
	"crypto/hmac"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kundan-thakur61/mobilecoverBackend/internal/config"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/idempotency"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/locator"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/observability"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/service"
	"github.com/kundan-thakur61/mobilecoverBackend/pkg/errors"
)

// shippingWebhookBody is the courier's push payload. Providers vary in which
// fields they fill, so everything past the waybill and status is optional.
type shippingWebhookBody struct {
	Waybill       string `json:"waybill"`
	Order         string `json:"order"`
	Status        string `json:"status"`
	CurrentStatus string `json:"current_status"`
	Location      string `json:"location"`
	DeliveredDate string `json:"delivered_date"`
	Instructions  string `json:"instructions"`
}

func (b *shippingWebhookBody) rawStatus() string {
	if b.Status != "" {
		return b.Status
	}
	return b.CurrentStatus
}

// HandleShippingWebhook ingests courier status pushes. Pipeline:
// authenticate, dedupe against the ledger, locate the order, map and apply.
// After auth passes, internal failures are logged, counted and still
// acknowledged 200 so the provider has no reason to retry-storm a processing
// bug.
func HandleShippingWebhook(cfg *config.Config, loc *locator.Locator, reconciler *service.Reconciler, ledger idempotency.Ledger, metrics *observability.Metrics, logger *zap.Logger) gin.HandlerFunc {
	provider := cfg.ShippingProvider
	return func(c *gin.Context) {
		if !hmac.Equal([]byte(c.GetHeader("x-api-key")), []byte(cfg.ShippingWebhookKey)) {
			metrics.WebhookRejected.WithLabelValues(provider, "auth").Inc()
			logger.Warn("Shipping webhook rejected: bad api key", zap.String("remote", c.ClientIP()))
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "unauthorized"})
			return
		}
		metrics.WebhookReceived.WithLabelValues(provider).Inc()

		// Past auth, a bad payload is the provider's bug, not a reason to let
		// it retry-storm us: log, count, acknowledge.
		raw, err := io.ReadAll(c.Request.Body)
		if err != nil {
			metrics.WebhookRejected.WithLabelValues(provider, "body").Inc()
			logger.Warn("Shipping webhook: unreadable body", zap.Error(err))
			c.JSON(http.StatusOK, gin.H{"success": false, "message": "unreadable body"})
			return
		}
		var body shippingWebhookBody
		if err := json.Unmarshal(raw, &body); err != nil || body.rawStatus() == "" || (body.Waybill == "" && body.Order == "") {
			metrics.WebhookRejected.WithLabelValues(provider, "malformed").Inc()
			logger.Warn("Shipping webhook: malformed payload", zap.ByteString("body", raw))
			c.JSON(http.StatusOK, gin.H{"success": false, "message": "malformed payload"})
			return
		}

		ctx := c.Request.Context()
		rawStatus := body.rawStatus()
		entityID := body.Waybill
		if entityID == "" {
			entityID = body.Order
		}
		fresh, err := ledger.CheckAndMark(ctx, idempotency.EventKey(provider, rawStatus, entityID))
		if err != nil {
			metrics.SwallowedErrors.WithLabelValues(provider).Inc()
			logger.Error("Shipping webhook: ledger check failed", zap.Error(err))
			c.JSON(http.StatusOK, gin.H{"success": true, "message": "accepted"})
			return
		}
		if !fresh {
			metrics.WebhookDuplicate.WithLabelValues(provider).Inc()
			logger.Info("Shipping webhook: duplicate event skipped",
				zap.String("waybill", body.Waybill),
				zap.String("status", rawStatus),
			)
			c.JSON(http.StatusOK, gin.H{"success": true, "message": "already processed"})
			return
		}

		ref := body.Waybill
		if ref == "" {
			ref = body.Order
		}
		order, err := loc.Locate(ctx, ref)
		if err != nil {
			if _, notFound := err.(*errors.ErrNotFound); notFound {
				// Providers do not reliably retry 404s, so this log line is
				// the only trace of a webhook for an order we do not know.
				logger.Warn("Shipping webhook: no order for reference",
					zap.String("reference", ref),
					zap.String("status", rawStatus),
				)
				c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "order not found"})
				return
			}
			metrics.SwallowedErrors.WithLabelValues(provider).Inc()
			logger.Error("Shipping webhook: locate failed", zap.String("reference", ref), zap.Error(err))
			c.JSON(http.StatusOK, gin.H{"success": true, "message": "accepted"})
			return
		}

		ev := service.ShippingEvent{
			Provider:  provider,
			RawStatus: rawStatus,
			Location:  body.Location,
			Note:      body.Instructions,
			Payload:   json.RawMessage(raw),
		}
		if body.DeliveredDate != "" {
			if ts, perr := time.Parse(time.RFC3339, body.DeliveredDate); perr == nil {
				ev.Timestamp = ts
			}
		}

		result, err := reconciler.ApplyShippingEvent(ctx, order, ev)
		if err != nil {
			metrics.SwallowedErrors.WithLabelValues(provider).Inc()
			logger.Error("Shipping webhook: apply failed",
				zap.String("order_id", order.Core().ID.String()),
				zap.String("raw_status", rawStatus),
				zap.Error(err),
			)
			c.JSON(http.StatusOK, gin.H{"success": true, "message": "accepted"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "processed",
			"status":  result.Order.Core().Status,
		})
	}
}
