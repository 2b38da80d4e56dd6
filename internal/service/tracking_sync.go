package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kundan-thakur61/mobilecoverBackend/internal/courier"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/domain"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/idempotency"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/repository"
)

// sweepBatchSize caps how many orders each variant contributes per sweep.
const sweepBatchSize = 200

// SyncResult is one order's tracking refresh outcome.
type SyncResult struct {
	Order   domain.Order
	Stale   bool
	Applied bool
}

// TrackingSync pulls tracking state from the provider and feeds it through
// the same reconciler the webhook path uses. The ledger key is derived from
// (provider, raw status, tracking code), identical to the webhook derivation,
// so a status seen by push is a no-op when seen again by pull and vice versa.
type TrackingSync struct {
	repos      *repository.Repositories
	provider   courier.Provider
	reconciler *Reconciler
	ledger     idempotency.Ledger
	logger     *zap.Logger
}

// NewTrackingSync creates the pull-side reconciliation service.
func NewTrackingSync(repos *repository.Repositories, provider courier.Provider, reconciler *Reconciler, ledger idempotency.Ledger, logger *zap.Logger) *TrackingSync {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TrackingSync{
		repos:      repos,
		provider:   provider,
		reconciler: reconciler,
		ledger:     ledger,
		logger:     logger,
	}
}

// SyncOrder refreshes one order's tracking. A provider failure is not fatal:
// the last persisted state comes back flagged Stale so reads degrade instead
// of erroring. A successfully fetched status already applied through either
// path is skipped via the ledger.
func (t *TrackingSync) SyncOrder(ctx context.Context, order domain.Order) (*SyncResult, error) {
	sh := order.Core().Shipment
	if !sh.Active() || sh.TrackingCode == "" {
		return &SyncResult{Order: order}, nil
	}

	res, err := t.provider.Track(ctx, sh.TrackingCode)
	if err != nil {
		t.logger.Warn("Tracking fetch failed, serving last-known state",
			zap.String("order_id", order.Core().ID.String()),
			zap.String("tracking_code", sh.TrackingCode),
			zap.Error(err),
		)
		return &SyncResult{Order: order, Stale: true}, nil
	}

	key := idempotency.EventKey(t.provider.Name(), res.RawStatus, sh.TrackingCode)
	fresh, err := t.ledger.CheckAndMark(ctx, key)
	if err != nil {
		return nil, err
	}
	if !fresh {
		return &SyncResult{Order: order}, nil
	}

	applied, err := t.reconciler.ApplyShippingEvent(ctx, order, ShippingEvent{
		Provider:  t.provider.Name(),
		RawStatus: res.RawStatus,
		Location:  res.Location,
		Timestamp: res.Timestamp,
	})
	if err != nil {
		return nil, err
	}
	return &SyncResult{Order: applied.Order, Stale: false, Applied: true}, nil
}

// SweepOnce syncs every order with an active shipment across both variants.
// Per-order failures are logged and skipped so one bad shipment cannot stall
// the sweep.
func (t *TrackingSync) SweepOnce(ctx context.Context) {
	for kind, repo := range t.repos.All() {
		orders, err := repo.ListActiveShipments(ctx, sweepBatchSize)
		if err != nil {
			t.logger.Error("Failed to list active shipments",
				zap.String("order_kind", string(kind)),
				zap.Error(err),
			)
			continue
		}
		for _, order := range orders {
			if ctx.Err() != nil {
				return
			}
			if _, err := t.SyncOrder(ctx, order); err != nil {
				t.logger.Error("Tracking sync failed for order",
					zap.String("order_id", order.Core().ID.String()),
					zap.Error(err),
				)
			}
		}
	}
}

// RunSweepLoop periodically reconciles all active shipments until the
// context is cancelled. Run it in its own goroutine.
func (t *TrackingSync) RunSweepLoop(ctx context.Context, interval time.Duration) {
	t.logger.Info("Starting tracking sweep loop", zap.Duration("interval", interval))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			t.logger.Info("Tracking sweep loop stopped")
			return
		case <-ticker.C:
			t.SweepOnce(ctx)
		}
	}
}
