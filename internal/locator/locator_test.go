package locator

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kundan-thakur61/mobilecoverBackend/internal/domain"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/repository"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/repository/memory"
	"github.com/kundan-thakur61/mobilecoverBackend/pkg/errors"
)

func seedOrders(t *testing.T) (*repository.Repositories, *domain.RegularOrder, *domain.CustomOrder) {
	t.Helper()
	repos := memory.NewRepositories()

	regular := &domain.RegularOrder{
		OrderCore: domain.OrderCore{
			ID:           uuid.New(),
			Status:       domain.OrderStatusShipped,
			CustomerName: "Asha",
			Payment: domain.Payment{
				ProviderOrderID:   "order_RegAAA111",
				ProviderPaymentID: "pay_RegBBB222",
				Status:            domain.PaymentStatusPaid,
			},
			Shipment: &domain.Shipment{
				Provider:     "delhivery",
				TrackingCode: "WB100",
			},
		},
		Items: []domain.OrderItem{{SKU: "CVR-IP15-01", Price: 299, Quantity: 1}},
	}
	require.NoError(t, repos.Regular.Create(context.Background(), regular))

	custom := &domain.CustomOrder{
		OrderCore: domain.OrderCore{
			ID:           uuid.New(),
			Status:       domain.OrderStatusProcessing,
			CustomerName: "Vikram",
			Payment: domain.Payment{
				ProviderOrderID: "order_CusCCC333",
				Status:          domain.PaymentStatusPaid,
			},
			Shipment: &domain.Shipment{
				Provider:     "delhivery",
				TrackingCode: "WB200",
			},
		},
		Design: domain.DesignSpec{PhoneModel: "Pixel 9", ImageURL: "https://cdn.example/d1.png"},
	}
	require.NoError(t, repos.Custom.Create(context.Background(), custom))

	return repos, regular, custom
}

func TestLocateByInternalID(t *testing.T) {
	repos, regular, custom := seedOrders(t)
	loc := New(repos, nil)

	got, err := loc.Locate(context.Background(), regular.ID.String())
	require.NoError(t, err)
	assert.Equal(t, regular.ID, got.Core().ID)
	assert.Equal(t, domain.OrderKindRegular, got.Kind())

	got, err = loc.Locate(context.Background(), custom.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.OrderKindCustom, got.Kind())
}

func TestLocateByPrefixedReference(t *testing.T) {
	repos, regular, custom := seedOrders(t)
	loc := New(repos, nil)

	got, err := loc.Locate(context.Background(), "ORD-"+regular.ID.String())
	require.NoError(t, err)
	assert.Equal(t, regular.ID, got.Core().ID)

	got, err = loc.Locate(context.Background(), "CUST-"+custom.ID.String())
	require.NoError(t, err)
	assert.Equal(t, custom.ID, got.Core().ID)

	// The prefix pins the variant: a CUST- reference never resolves against
	// the regular table even when the id exists there.
	_, err = loc.Locate(context.Background(), "CUST-"+regular.ID.String())
	assert.IsType(t, &errors.ErrNotFound{}, err)
}

func TestLocateByRazorpayReferences(t *testing.T) {
	repos, regular, custom := seedOrders(t)
	loc := New(repos, nil)

	got, err := loc.Locate(context.Background(), "order_RegAAA111")
	require.NoError(t, err)
	assert.Equal(t, regular.ID, got.Core().ID)

	got, err = loc.Locate(context.Background(), "pay_RegBBB222")
	require.NoError(t, err)
	assert.Equal(t, regular.ID, got.Core().ID)

	got, err = loc.Locate(context.Background(), "order_CusCCC333")
	require.NoError(t, err)
	assert.Equal(t, custom.ID, got.Core().ID)
}

func TestLocateByTrackingCode(t *testing.T) {
	repos, regular, custom := seedOrders(t)
	loc := New(repos, nil)

	got, err := loc.Locate(context.Background(), "WB100")
	require.NoError(t, err)
	assert.Equal(t, regular.ID, got.Core().ID)

	got, err = loc.Locate(context.Background(), "WB200")
	require.NoError(t, err)
	assert.Equal(t, custom.ID, got.Core().ID)
}

func TestLocateNotFound(t *testing.T) {
	repos, _, _ := seedOrders(t)
	loc := New(repos, nil)

	for _, ref := range []string{"", "WB999", uuid.NewString(), "order_missing", "pay_missing", "ORD-" + uuid.NewString()} {
		_, err := loc.Locate(context.Background(), ref)
		assert.IsType(t, &errors.ErrNotFound{}, err, ref)
	}
}

func TestLocateAmbiguousTrackingCode(t *testing.T) {
	// Same waybill on both variants. The sparse-unique index makes this
	// impossible in postgres; the locator still refuses to guess.
	repos := memory.NewRepositories()
	shared := func() *domain.Shipment { return &domain.Shipment{Provider: "delhivery", TrackingCode: "WB500"} }
	require.NoError(t, repos.Regular.Create(context.Background(), &domain.RegularOrder{
		OrderCore: domain.OrderCore{ID: uuid.New(), Shipment: shared()},
	}))
	require.NoError(t, repos.Custom.Create(context.Background(), &domain.CustomOrder{
		OrderCore: domain.OrderCore{ID: uuid.New(), Shipment: shared()},
	}))

	loc := New(repos, nil)
	_, err := loc.Locate(context.Background(), "WB500")
	require.Error(t, err)
	aerr, ok := err.(*errors.ErrAmbiguousReference)
	require.True(t, ok)
	assert.Equal(t, 2, aerr.Matches)
}

func TestLocatePrecedenceUUIDBeforeTracking(t *testing.T) {
	// A tracking code that happens to be a valid UUID must still resolve by
	// internal id first. Impossible with real waybills, but the precedence
	// is part of the contract.
	repos, regular, _ := seedOrders(t)
	loc := New(repos, nil)

	got, err := loc.Locate(context.Background(), regular.ID.String())
	require.NoError(t, err)
	assert.Equal(t, regular.ID, got.Core().ID)
}

func TestProviderRefRoundTrip(t *testing.T) {
	repos, regular, custom := seedOrders(t)
	loc := New(repos, nil)

	for _, order := range []domain.Order{regular, custom} {
		ref := ProviderRef(order)
		got, err := loc.Locate(context.Background(), ref)
		require.NoError(t, err)
		assert.Equal(t, order.Core().ID, got.Core().ID)
	}
}
