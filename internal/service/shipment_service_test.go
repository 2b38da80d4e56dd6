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
	"github.com/kundan-thakur61/mobilecoverBackend/internal/observability"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/repository"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/repository/memory"
	apperrors "github.com/kundan-thakur61/mobilecoverBackend/pkg/errors"
)

// fakeProvider records calls and serves scripted responses.
type fakeProvider struct {
	createCalls   int
	createErrs    []error // consumed per call; nil past the end
	lastCreateReq courier.CreateShipmentRequest
	trackCalls    int
	trackResult   *courier.TrackingResult
	trackErr      error
	cancelCalls   int
	pickupCalls   int
	labelCalls    int
}

func (f *fakeProvider) Name() string { return "delhivery" }

func (f *fakeProvider) CreateShipment(_ context.Context, req courier.CreateShipmentRequest) (*courier.CreateShipmentResult, error) {
	f.createCalls++
	f.lastCreateReq = req
	if f.createCalls <= len(f.createErrs) && f.createErrs[f.createCalls-1] != nil {
		return nil, f.createErrs[f.createCalls-1]
	}
	return &courier.CreateShipmentResult{
		ShipmentID:      "SHP-1",
		ProviderOrderID: req.OrderRef,
		TrackingCode:    "WB100",
		Status:          "Manifested",
	}, nil
}

func (f *fakeProvider) AssignCourier(_ context.Context, shipmentID string, courierID int) (*courier.AssignCourierResult, error) {
	return &courier.AssignCourierResult{CourierID: courierID, CourierName: "Bluedart", TrackingCode: "WB100"}, nil
}

func (f *fakeProvider) RequestPickup(_ context.Context, shipmentID string) error {
	f.pickupCalls++
	return nil
}

func (f *fakeProvider) CancelShipment(_ context.Context, shipmentID string) error {
	f.cancelCalls++
	return nil
}

func (f *fakeProvider) GenerateLabel(_ context.Context, shipmentIDs []string) (string, error) {
	f.labelCalls++
	return "https://cdn.example/labels/batch.pdf", nil
}

func (f *fakeProvider) Track(_ context.Context, trackingCode string) (*courier.TrackingResult, error) {
	f.trackCalls++
	if f.trackErr != nil {
		return nil, f.trackErr
	}
	if f.trackResult != nil {
		return f.trackResult, nil
	}
	return &courier.TrackingResult{RawStatus: "In Transit"}, nil
}

func (f *fakeProvider) CheckServiceability(_ context.Context, q courier.ServiceabilityQuery) (*courier.ServiceabilityResult, error) {
	return &courier.ServiceabilityResult{Serviceable: true, AvailableCouriers: 3}, nil
}

var _ courier.Provider = (*fakeProvider)(nil)

func seedConfirmedOrder(t *testing.T, repos *repository.Repositories) *domain.RegularOrder {
	t.Helper()
	order := &domain.RegularOrder{
		OrderCore: domain.OrderCore{
			ID:            uuid.New(),
			Status:        domain.OrderStatusConfirmed,
			CustomerName:  "Asha",
			CustomerPhone: "9876543210",
			Address: domain.Address{
				Line1:   "12 Main St",
				City:    "Bengaluru",
				State:   "Karnataka",
				Pincode: "560001",
				Country: "India",
			},
			Amount:  299,
			Payment: domain.Payment{Status: domain.PaymentStatusPaid},
		},
		Items: []domain.OrderItem{{SKU: "CVR-IP15-01", Price: 299, Quantity: 1}},
	}
	require.NoError(t, repos.Regular.Create(context.Background(), order))
	return order
}

func newShipmentService(repos *repository.Repositories, provider courier.Provider) *ShipmentService {
	return NewShipmentService(repos, provider, observability.NewNopMetrics(), nil)
}

func TestCreateShipment(t *testing.T) {
	repos := memory.NewRepositories()
	provider := &fakeProvider{}
	svc := newShipmentService(repos, provider)
	order := seedConfirmedOrder(t, repos)

	result, err := svc.CreateShipment(context.Background(), domain.OrderKindRegular, order.ID, CreateShipmentOptions{
		PickupLocation: "warehouse-blr",
	})
	require.NoError(t, err)
	assert.True(t, result.Created)
	assert.Equal(t, "WB100", result.Shipment.TrackingCode)
	assert.Equal(t, 1, provider.createCalls)
	assert.Equal(t, "ORD-"+order.ID.String(), provider.lastCreateReq.OrderRef)

	stored, err := repos.Regular.GetByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusProcessing, stored.Core().Status)
	assert.Equal(t, "WB100", stored.Core().Shipment.TrackingCode)
}

func TestCreateShipmentIdempotent(t *testing.T) {
	repos := memory.NewRepositories()
	provider := &fakeProvider{}
	svc := newShipmentService(repos, provider)
	order := seedConfirmedOrder(t, repos)
	ctx := context.Background()

	first, err := svc.CreateShipment(ctx, domain.OrderKindRegular, order.ID, CreateShipmentOptions{})
	require.NoError(t, err)
	require.True(t, first.Created)

	second, err := svc.CreateShipment(ctx, domain.OrderKindRegular, order.ID, CreateShipmentOptions{})
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, "WB100", second.Shipment.TrackingCode)
	assert.Equal(t, 1, provider.createCalls, "second call must not reach the provider")
}

func TestCreateShipmentInvalidAddress(t *testing.T) {
	repos := memory.NewRepositories()
	provider := &fakeProvider{}
	svc := newShipmentService(repos, provider)

	order := seedConfirmedOrder(t, repos)
	stored, _ := repos.Regular.GetByID(context.Background(), order.ID)
	stored.Core().Address.Line1 = "A"
	require.NoError(t, repos.Regular.Update(context.Background(), stored))

	_, err := svc.CreateShipment(context.Background(), domain.OrderKindRegular, order.ID, CreateShipmentOptions{})
	require.Error(t, err)
	verr, ok := err.(*apperrors.ErrValidation)
	require.True(t, ok)
	assert.Contains(t, verr.Fields, "address")
	assert.Equal(t, 0, provider.createCalls, "validation must fail before any provider call")
}

func TestCreateShipmentPickupSuggestionRetriesOnce(t *testing.T) {
	repos := memory.NewRepositories()
	rejection := &courier.APIError{
		Provider:         "delhivery",
		StatusCode:       400,
		Message:          "Wrong Pickup location entered",
		SuggestedPickups: []string{"warehouse-blr-2"},
	}
	provider := &fakeProvider{createErrs: []error{rejection}}
	svc := newShipmentService(repos, provider)
	order := seedConfirmedOrder(t, repos)

	result, err := svc.CreateShipment(context.Background(), domain.OrderKindRegular, order.ID, CreateShipmentOptions{
		PickupLocation: "warehouse-blr",
	})
	require.NoError(t, err)
	assert.True(t, result.Created)
	assert.Equal(t, 2, provider.createCalls, "exactly one corrected retry")
	assert.Equal(t, "warehouse-blr-2", provider.lastCreateReq.PickupLocation)
	assert.Equal(t, "warehouse-blr-2", result.Shipment.PickupLocation)

	core := reload(t, repos, order.ID)
	assert.Equal(t, "warehouse-blr-2", core.Shipment.PickupLocation, "healed location persisted, not the rejected one")
}

func TestCreateShipmentPickupSuggestionNotRecursive(t *testing.T) {
	repos := memory.NewRepositories()
	rejection := &courier.APIError{
		Provider:         "delhivery",
		StatusCode:       400,
		Message:          "Wrong Pickup location entered",
		SuggestedPickups: []string{"warehouse-blr-2"},
	}
	// The suggestion is rejected too. No third attempt.
	provider := &fakeProvider{createErrs: []error{rejection, rejection}}
	svc := newShipmentService(repos, provider)
	order := seedConfirmedOrder(t, repos)

	_, err := svc.CreateShipment(context.Background(), domain.OrderKindRegular, order.ID, CreateShipmentOptions{
		PickupLocation: "warehouse-blr",
	})
	require.Error(t, err)
	assert.Equal(t, 2, provider.createCalls)
}

func TestCreateShipmentTerminalOrderRejected(t *testing.T) {
	repos := memory.NewRepositories()
	provider := &fakeProvider{}
	svc := newShipmentService(repos, provider)

	order := seedConfirmedOrder(t, repos)
	stored, _ := repos.Regular.GetByID(context.Background(), order.ID)
	stored.Core().Status = domain.OrderStatusCancelled
	require.NoError(t, repos.Regular.Update(context.Background(), stored))

	_, err := svc.CreateShipment(context.Background(), domain.OrderKindRegular, order.ID, CreateShipmentOptions{})
	assert.IsType(t, &apperrors.ErrPreconditionFailed{}, err)
	assert.Equal(t, 0, provider.createCalls)
}

func TestCreateShipmentShippedOrderRejected(t *testing.T) {
	// Status shipped with only a cancelled shipment record means the package
	// already left; rebooking would put a second parcel in the network.
	repos := memory.NewRepositories()
	provider := &fakeProvider{}
	svc := newShipmentService(repos, provider)

	order := seedConfirmedOrder(t, repos)
	stored, _ := repos.Regular.GetByID(context.Background(), order.ID)
	now := time.Now()
	stored.Core().Status = domain.OrderStatusShipped
	stored.Core().Shipment = &domain.Shipment{
		Provider:     "delhivery",
		TrackingCode: "WB900",
		CancelledAt:  &now,
	}
	require.NoError(t, repos.Regular.Update(context.Background(), stored))

	_, err := svc.CreateShipment(context.Background(), domain.OrderKindRegular, order.ID, CreateShipmentOptions{})
	var shipped *apperrors.ErrAlreadyShipped
	require.ErrorAs(t, err, &shipped)
	assert.Equal(t, "WB900", shipped.TrackingCode)
	assert.Equal(t, 0, provider.createCalls)
}

func TestCancelShipmentFreesOrderForReshipment(t *testing.T) {
	repos := memory.NewRepositories()
	provider := &fakeProvider{}
	svc := newShipmentService(repos, provider)
	order := seedConfirmedOrder(t, repos)
	ctx := context.Background()

	_, err := svc.CreateShipment(ctx, domain.OrderKindRegular, order.ID, CreateShipmentOptions{})
	require.NoError(t, err)

	require.NoError(t, svc.CancelShipment(ctx, domain.OrderKindRegular, order.ID))
	assert.Equal(t, 1, provider.cancelCalls)

	stored, _ := repos.Regular.GetByID(ctx, order.ID)
	require.NotNil(t, stored.Core().Shipment.CancelledAt)

	// A cancelled shipment no longer blocks a new booking.
	result, err := svc.CreateShipment(ctx, domain.OrderKindRegular, order.ID, CreateShipmentOptions{})
	require.NoError(t, err)
	assert.True(t, result.Created)
	assert.Equal(t, 2, provider.createCalls)
}

func TestShipmentActionsRequireShipment(t *testing.T) {
	repos := memory.NewRepositories()
	provider := &fakeProvider{}
	svc := newShipmentService(repos, provider)
	order := seedConfirmedOrder(t, repos)
	ctx := context.Background()

	_, err := svc.AssignCourier(ctx, domain.OrderKindRegular, order.ID, 7)
	assert.IsType(t, &apperrors.ErrPreconditionFailed{}, err)

	err = svc.RequestPickup(ctx, domain.OrderKindRegular, order.ID)
	assert.IsType(t, &apperrors.ErrPreconditionFailed{}, err)

	err = svc.CancelShipment(ctx, domain.OrderKindRegular, order.ID)
	assert.IsType(t, &apperrors.ErrPreconditionFailed{}, err)
}

func TestAssignCourierPersistsResult(t *testing.T) {
	repos := memory.NewRepositories()
	provider := &fakeProvider{}
	svc := newShipmentService(repos, provider)
	order := seedConfirmedOrder(t, repos)
	ctx := context.Background()

	_, err := svc.CreateShipment(ctx, domain.OrderKindRegular, order.ID, CreateShipmentOptions{})
	require.NoError(t, err)

	shipment, err := svc.AssignCourier(ctx, domain.OrderKindRegular, order.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, shipment.CourierID)
	assert.Equal(t, "Bluedart", shipment.CourierName)

	stored, _ := repos.Regular.GetByID(ctx, order.ID)
	assert.Equal(t, "Bluedart", stored.Core().Shipment.CourierName)
}

func TestGenerateLabelsPartialSuccess(t *testing.T) {
	repos := memory.NewRepositories()
	provider := &fakeProvider{}
	svc := newShipmentService(repos, provider)
	order := seedConfirmedOrder(t, repos)
	ctx := context.Background()

	_, err := svc.CreateShipment(ctx, domain.OrderKindRegular, order.ID, CreateShipmentOptions{})
	require.NoError(t, err)

	results := svc.GenerateLabels(ctx, []OrderRef{
		{Kind: domain.OrderKindRegular, ID: order.ID},
		{Kind: domain.OrderKindRegular, ID: uuid.New()}, // unknown order
	})
	require.Len(t, results, 2)
	assert.True(t, results[0].Success)
	assert.NotEmpty(t, results[0].LabelURL)
	assert.False(t, results[1].Success)
	assert.NotEmpty(t, results[1].Error)
}
