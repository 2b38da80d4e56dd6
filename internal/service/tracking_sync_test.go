package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kundan-thakur61/mobilecoverBackend/internal/courier"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/domain"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/idempotency/memory"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/repository"
)

func newTrackingFixture(t *testing.T, provider *fakeProvider) (*TrackingSync, *repository.Repositories) {
	t.Helper()
	rec, repos := newTestReconciler(t)
	ledger := memory.NewStore(time.Hour)
	t.Cleanup(ledger.Close)
	return NewTrackingSync(repos, provider, rec, ledger, nil), repos
}

func TestSyncOrderAppliesTrackingResult(t *testing.T) {
	provider := &fakeProvider{trackResult: &courier.TrackingResult{RawStatus: "Delivered", Location: "Home"}}
	sync, repos := newTrackingFixture(t, provider)
	order := seedShippedOrder(t, repos, domain.OrderStatusShipped)

	result, err := sync.SyncOrder(context.Background(), order)
	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.False(t, result.Stale)

	core := reload(t, repos, order.ID)
	assert.Equal(t, domain.OrderStatusDelivered, core.Status)
	require.Len(t, core.Shipment.TrackingHistory, 1)
	assert.Equal(t, "Home", core.Shipment.TrackingHistory[0].Location)
}

func TestSyncOrderProviderFailureReturnsStale(t *testing.T) {
	provider := &fakeProvider{trackErr: &courier.APIError{Provider: "delhivery", StatusCode: 503, Message: "unavailable"}}
	sync, repos := newTrackingFixture(t, provider)
	order := seedShippedOrder(t, repos, domain.OrderStatusShipped)

	result, err := sync.SyncOrder(context.Background(), order)
	require.NoError(t, err, "tracking failure must not fail the read path")
	assert.True(t, result.Stale)
	assert.False(t, result.Applied)

	core := reload(t, repos, order.ID)
	assert.Equal(t, domain.OrderStatusShipped, core.Status)
	assert.Empty(t, core.Shipment.TrackingHistory, "nothing applied on a failed fetch")
}

func TestSyncOrderDedupesAgainstWebhookPath(t *testing.T) {
	provider := &fakeProvider{trackResult: &courier.TrackingResult{RawStatus: "In Transit"}}
	sync, repos := newTrackingFixture(t, provider)
	order := seedShippedOrder(t, repos, domain.OrderStatusProcessing)
	ctx := context.Background()

	first, err := sync.SyncOrder(ctx, order)
	require.NoError(t, err)
	assert.True(t, first.Applied)

	// Same raw status fetched again: the ledger key matches, no re-apply.
	fresh, _ := repos.Regular.GetByID(ctx, order.ID)
	second, err := sync.SyncOrder(ctx, fresh)
	require.NoError(t, err)
	assert.False(t, second.Applied)

	core := reload(t, repos, order.ID)
	assert.Len(t, core.Shipment.TrackingHistory, 1, "duplicate status must not double-append")
}

func TestSyncOrderSkipsOrdersWithoutShipment(t *testing.T) {
	provider := &fakeProvider{}
	sync, repos := newTrackingFixture(t, provider)
	order := seedConfirmedOrder(t, repos)

	result, err := sync.SyncOrder(context.Background(), order)
	require.NoError(t, err)
	assert.False(t, result.Applied)
	assert.Equal(t, 0, provider.trackCalls)
}

func seedShippedOrderWithTracking(t *testing.T, repos *repository.Repositories, status domain.OrderStatus, trackingCode string) *domain.RegularOrder {
	t.Helper()
	order := &domain.RegularOrder{
		OrderCore: domain.OrderCore{
			ID:     uuid.New(),
			Status: status,
			Shipment: &domain.Shipment{
				Provider:     "delhivery",
				TrackingCode: trackingCode,
				Status:       "Manifested",
			},
		},
	}
	require.NoError(t, repos.Regular.Create(context.Background(), order))
	return order
}

func TestSweepOnceCoversActiveShipments(t *testing.T) {
	provider := &fakeProvider{trackResult: &courier.TrackingResult{RawStatus: "In Transit"}}
	sync, repos := newTrackingFixture(t, provider)

	seedShippedOrder(t, repos, domain.OrderStatusProcessing)
	// Delivered order: terminal status keeps it out of the sweep.
	delivered := seedShippedOrderWithTracking(t, repos, domain.OrderStatusDelivered, "WB900")

	sync.SweepOnce(context.Background())

	assert.Equal(t, 1, provider.trackCalls, "terminal orders are not swept")
	core := reload(t, repos, delivered.ID)
	assert.Empty(t, core.Shipment.TrackingHistory)
}
