package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kundan-thakur61/mobilecoverBackend/internal/domain"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/idempotency"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/locator"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/observability"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/payment/razorpay"
	apperrors "github.com/kundan-thakur61/mobilecoverBackend/pkg/errors"
)

const paymentProvider = "razorpay"

// PaymentService reconciles Razorpay webhook events against order payment
// state. Events are deduplicated by provider event id and applied with the
// same no-regression discipline as shipping events: paid never goes back to
// pending, refunds only accumulate.
type PaymentService struct {
	reconciler *Reconciler
	loc        *locator.Locator
	ledger     idempotency.Ledger
	metrics    *observability.Metrics
	notifier   *Notifier
	logger     *zap.Logger
}

// NewPaymentService creates the payment reconciler.
func NewPaymentService(reconciler *Reconciler, loc *locator.Locator, ledger idempotency.Ledger, metrics *observability.Metrics, notifier *Notifier, logger *zap.Logger) *PaymentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentService{
		reconciler: reconciler,
		loc:        loc,
		ledger:     ledger,
		metrics:    metrics,
		notifier:   notifier,
		logger:     logger,
	}
}

// HandleEvent applies one verified webhook event. Returned errors are for the
// caller's logs only; the HTTP layer acknowledges 2xx regardless so Razorpay
// does not retry-storm on our bugs.
func (s *PaymentService) HandleEvent(ctx context.Context, event *razorpay.WebhookEvent) error {
	s.metrics.WebhookReceived.WithLabelValues(paymentProvider).Inc()

	key := event.ID
	if key == "" {
		key = idempotency.EventKey(paymentProvider, event.Event, event.Payload.Payment.Entity.ID)
	} else {
		key = idempotency.EventKey(paymentProvider, "event", key)
	}
	first, err := s.ledger.CheckAndMark(ctx, key)
	if err != nil {
		return err
	}
	if !first {
		s.metrics.WebhookDuplicate.WithLabelValues(paymentProvider).Inc()
		s.logger.Info("Duplicate payment event ignored", zap.String("event", event.Event), zap.String("key", key))
		return nil
	}

	switch event.Event {
	case "payment.captured", "order.paid":
		return s.applyCaptured(ctx, event)
	case "payment.failed":
		return s.applyFailed(ctx, event)
	case "refund.created":
		return s.applyRefund(ctx, event, domain.RefundStatusProcessing)
	case "refund.processed":
		return s.applyRefund(ctx, event, domain.RefundStatusCompleted)
	case "refund.failed":
		return s.applyRefund(ctx, event, domain.RefundStatusFailed)
	default:
		s.logger.Info("Unhandled payment event", zap.String("event", event.Event))
		return nil
	}
}

func (s *PaymentService) applyCaptured(ctx context.Context, event *razorpay.WebhookEvent) error {
	pay := event.Payload.Payment.Entity
	providerOrderID := pay.OrderID
	if providerOrderID == "" {
		providerOrderID = event.Payload.Order.Entity.ID
	}
	order, err := s.loc.LocateByPaymentOrderID(ctx, providerOrderID)
	if err != nil {
		return err
	}

	core := order.Core()
	if core.Payment.Status == domain.PaymentStatusPaid {
		// Duplicate capture after the ledger expired, or captured arriving
		// after order.paid. paidAt must not move.
		s.logger.Info("Payment already captured, no-op",
			zap.String("order_id", core.ID.String()),
			zap.String("payment_id", pay.ID),
		)
		return nil
	}

	statusChanged := false
	err = s.reconciler.applyWithRetry(ctx, order, func(o domain.Order) error {
		c := o.Core()
		statusChanged = false
		if c.Payment.Status == domain.PaymentStatusPaid {
			return nil
		}
		now := time.Now()
		c.Payment.Status = domain.PaymentStatusPaid
		c.Payment.PaidAt = &now
		if pay.ID != "" {
			c.Payment.ProviderPaymentID = pay.ID
		}
		if c.Status.CanAdvanceTo(domain.OrderStatusConfirmed) {
			c.Status = domain.OrderStatusConfirmed
			statusChanged = true
		}
		return nil
	})
	if err != nil {
		return err
	}
	if statusChanged {
		s.metrics.StatusApplied.WithLabelValues(string(domain.OrderStatusConfirmed)).Inc()
		go s.notifier.OrderStatusChanged(map[string]interface{}{
			"event":    "order_status",
			"order_id": core.ID.String(),
			"status":   domain.OrderStatusConfirmed,
			"provider": paymentProvider,
		})
	}
	s.logger.Info("Payment captured",
		zap.String("order_id", core.ID.String()),
		zap.String("provider_order_id", providerOrderID),
		zap.String("payment_id", pay.ID),
	)
	return nil
}

func (s *PaymentService) applyFailed(ctx context.Context, event *razorpay.WebhookEvent) error {
	pay := event.Payload.Payment.Entity
	order, err := s.loc.LocateByPaymentOrderID(ctx, pay.OrderID)
	if err != nil {
		return err
	}
	core := order.Core()
	if core.Payment.Status == domain.PaymentStatusPaid {
		// Failure event after a successful capture is provider replay noise.
		s.logger.Info("Payment failure after capture ignored", zap.String("order_id", core.ID.String()))
		return nil
	}
	return s.reconciler.applyWithRetry(ctx, order, func(o domain.Order) error {
		c := o.Core()
		if c.Payment.Status == domain.PaymentStatusPaid {
			return nil
		}
		c.Payment.Status = domain.PaymentStatusFailed
		if pay.ID != "" {
			c.Payment.ProviderPaymentID = pay.ID
		}
		// The order stays pending: the customer can retry checkout against
		// the same provider order.
		return nil
	})
}

func (s *PaymentService) applyRefund(ctx context.Context, event *razorpay.WebhookEvent, refundStatus domain.RefundStatus) error {
	refund := event.Payload.Refund.Entity
	if refund.PaymentID == "" {
		return &apperrors.ErrValidation{Message: "refund event missing payment_id"}
	}
	order, err := s.loc.Locate(ctx, refund.PaymentID)
	if err != nil {
		return err
	}
	amountINR := float64(refund.Amount) / 100

	return s.reconciler.applyWithRetry(ctx, order, func(o domain.Order) error {
		c := o.Core()
		c.RefundStatus = refundStatus
		if refundStatus != domain.RefundStatusCompleted {
			return nil
		}
		c.RefundAmount += amountINR
		if c.RefundAmount >= c.Amount {
			c.Payment.Status = domain.PaymentStatusRefunded
			if c.Status.CanAdvanceTo(domain.OrderStatusRefunded) {
				c.Status = domain.OrderStatusRefunded
			}
		} else {
			c.Payment.Status = domain.PaymentStatusPartiallyRefunded
		}
		return nil
	})
}
