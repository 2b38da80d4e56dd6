package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/kundan-thakur61/mobilecoverBackend/internal/domain"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/observability"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/repository"
	"github.com/kundan-thakur61/mobilecoverBackend/pkg/errors"
)

// maxApplyAttempts bounds compare-and-set retries. Conflicts mean another
// applier won the race for this order; reload and try again on fresh state.
const maxApplyAttempts = 3

// ShippingEvent is one provider status report, whether it arrived by webhook
// push or tracking pull. Both paths build this and funnel through the same
// apply, so they cannot diverge in behavior.
type ShippingEvent struct {
	Provider  string
	RawStatus string
	Location  string
	Note      string
	Timestamp time.Time
	Payload   json.RawMessage
}

// ApplyResult reports what one event application did.
type ApplyResult struct {
	Order         domain.Order
	MappedStatus  domain.OrderStatus
	StatusChanged bool
	Unknown       bool
	RTO           bool
}

// Reconciler applies provider status events to orders. Tolerant of
// out-of-order and duplicate delivery: history always appends, the canonical
// status only ever moves forward, and the whole mutation is one conditional
// write.
type Reconciler struct {
	repos    *repository.Repositories
	notifier *Notifier
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewReconciler creates the shared apply engine.
func NewReconciler(repos *repository.Repositories, notifier *Notifier, metrics *observability.Metrics, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{repos: repos, notifier: notifier, metrics: metrics, logger: logger}
}

// ApplyShippingEvent maps the event's raw status and applies it to the order.
// The order must carry a shipment. The passed order value is treated as a
// snapshot; on version conflict it is reloaded.
func (r *Reconciler) ApplyShippingEvent(ctx context.Context, order domain.Order, ev ShippingEvent) (*ApplyResult, error) {
	if order.Core().Shipment == nil {
		return nil, &errors.ErrPreconditionFailed{Message: "order has no shipment"}
	}

	mapped := domain.MapProviderStatus(ev.Provider, ev.RawStatus)
	result := &ApplyResult{
		MappedStatus: mapped.Status,
		Unknown:      !mapped.Known,
		RTO:          mapped.RTO,
	}
	if !mapped.Known {
		r.metrics.UnknownStatus.WithLabelValues(ev.Provider).Inc()
		r.logger.Warn("Unmapped provider status",
			zap.String("provider", ev.Provider),
			zap.String("raw_status", ev.RawStatus),
			zap.String("order_id", order.Core().ID.String()),
		)
	}

	err := r.applyWithRetry(ctx, order, func(o domain.Order) error {
		result.StatusChanged = r.mutate(o, ev, mapped)
		result.Order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.StatusChanged {
		r.metrics.StatusApplied.WithLabelValues(string(result.Order.Core().Status)).Inc()
		go r.notifier.OrderStatusChanged(map[string]interface{}{
			"event":      "order_status",
			"order_id":   result.Order.Core().ID.String(),
			"order_kind": result.Order.Kind(),
			"status":     result.Order.Core().Status,
			"raw_status": ev.RawStatus,
			"provider":   ev.Provider,
		})
	}
	return result, nil
}

// mutate applies one event to the in-memory order and reports whether the
// canonical status moved. Runs inside the CAS retry loop, possibly more than
// once against reloaded state, so it must stay free of side effects.
func (r *Reconciler) mutate(order domain.Order, ev ShippingEvent, mapped domain.MappedStatus) bool {
	core := order.Core()
	sh := core.Shipment
	now := time.Now()
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = now
	}

	// The raw provider string is always mirrored and history always appends,
	// even for unknown or out-of-order statuses. The audit trail must show
	// what the provider said, in receipt order.
	sh.Status = ev.RawStatus
	sh.TrackingHistory = append(sh.TrackingHistory, domain.TrackingEvent{
		Status:    ev.RawStatus,
		Timestamp: ts,
		Location:  ev.Location,
		Note:      ev.Note,
	})
	sh.WebhookLog = append(sh.WebhookLog, domain.WebhookLogEntry{
		RawStatus:    ev.RawStatus,
		MappedStatus: mapped.Status,
		Payload:      ev.Payload,
		ReceivedAt:   now,
	})
	sh.LastSyncedAt = &now

	if mapped.RTO {
		sh.RTOReason = ev.RawStatus
	}

	statusChanged := false
	if mapped.Known && !mapped.RTO && mapped.Status != domain.OrderStatusUnknown &&
		core.Status.CanAdvanceTo(mapped.Status) {
		core.Status = mapped.Status
		statusChanged = true
		if mapped.Status == domain.OrderStatusCancelled {
			sh.CancelledAt = &now
		}
	}

	// deliveredAt is stamped exactly once; later delivered webhooks only
	// append history.
	if mapped.Status == domain.OrderStatusDelivered && sh.DeliveredAt == nil &&
		(statusChanged || core.Status == domain.OrderStatusDelivered) {
		sh.DeliveredAt = &ts
	}
	return statusChanged
}

// applyWithRetry runs mutate against the order and persists it with a
// compare-and-set, reloading on conflict. Shared by the shipping and payment
// reconciliation paths.
func (r *Reconciler) applyWithRetry(ctx context.Context, order domain.Order, mutate func(domain.Order) error) error {
	repo := r.repos.ByKind(order.Kind())
	for attempt := 1; ; attempt++ {
		if err := mutate(order); err != nil {
			return err
		}
		err := repo.Update(ctx, order)
		if err == nil {
			return nil
		}
		if _, conflict := err.(*errors.ErrVersionConflict); !conflict || attempt == maxApplyAttempts {
			return err
		}
		fresh, getErr := repo.GetByID(ctx, order.Core().ID)
		if getErr != nil {
			return getErr
		}
		order = fresh
	}
}
