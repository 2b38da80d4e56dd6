package courier

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/kundan-thakur61/mobilecoverBackend/internal/domain"
)

// Provider is the surface every courier integration exposes. The lifecycle
// manager and tracking sync only know this interface; Delhivery and
// Shiprocket quirks stay inside their clients.
type Provider interface {
	Name() string
	CreateShipment(ctx context.Context, req CreateShipmentRequest) (*CreateShipmentResult, error)
	AssignCourier(ctx context.Context, shipmentID string, courierID int) (*AssignCourierResult, error)
	RequestPickup(ctx context.Context, shipmentID string) error
	CancelShipment(ctx context.Context, shipmentID string) error
	GenerateLabel(ctx context.Context, shipmentIDs []string) (string, error)
	Track(ctx context.Context, trackingCode string) (*TrackingResult, error)
	CheckServiceability(ctx context.Context, q ServiceabilityQuery) (*ServiceabilityResult, error)
}

// Dimensions of the parcel in centimetres.
type Dimensions struct {
	Length  float64 `json:"length"`
	Breadth float64 `json:"breadth"`
	Height  float64 `json:"height"`
}

// CreateShipmentRequest carries everything a courier needs to book a parcel.
type CreateShipmentRequest struct {
	OrderRef       string // provider-facing reference, e.g. ORD-<id>
	CustomerName   string
	CustomerPhone  string
	CustomerEmail  string
	Address        domain.Address
	Amount         float64
	COD            bool
	Weight         float64 // kg
	Dimensions     *Dimensions
	PickupLocation string
	Items          []domain.OrderItem
}

// CreateShipmentResult is the provider's view of the booked shipment.
type CreateShipmentResult struct {
	ShipmentID      string
	ProviderOrderID string
	TrackingCode    string
	Status          string
}

// AssignCourierResult is returned when a courier is assigned to a shipment.
type AssignCourierResult struct {
	CourierID    int
	CourierName  string
	TrackingCode string
}

// TrackingResult is the provider's current view of a shipment.
type TrackingResult struct {
	RawStatus string
	Location  string
	Timestamp time.Time
	Events    []domain.TrackingEvent
}

// ServiceabilityQuery asks whether a lane is serviceable.
type ServiceabilityQuery struct {
	PickupPincode   string
	DeliveryPincode string
	Weight          float64
	COD             bool
}

// ServiceabilityResult reports lane serviceability.
type ServiceabilityResult struct {
	Serviceable       bool
	AvailableCouriers int
}

// ErrUnsupported is returned by providers that do not implement an operation.
var ErrUnsupported = errors.New("operation not supported by this courier")

// APIError is a structured provider rejection or failure. StatusCode 0 means
// the call never completed (network error, timeout).
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
	Body       string
	// SuggestedPickups holds pickup-location names parsed from a provider
	// error that rejected our pickup_location parameter. The lifecycle
	// manager retries once with the first suggestion.
	SuggestedPickups []string
	Cause            error
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s (status %d)", e.Provider, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s request failed (status %d)", e.Provider, e.StatusCode)
}

func (e *APIError) Unwrap() error { return e.Cause }

// Transient reports whether the failure class is worth retrying.
func (e *APIError) Transient() bool {
	if e.StatusCode == 0 {
		return true
	}
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// IsTransient classifies any error for the retry policy.
func IsTransient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Transient()
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
