package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Order is the sealed order variant. Regular (catalog cover) and custom
// (customer design) orders live in separate tables but share the whole
// reconciliation core, so everything downstream of the locator works against
// Core() and never branches on a kind string.
type Order interface {
	sealedOrder()
	Kind() OrderKind
	Core() *OrderCore
}

// OrderCore is the shared aggregate state of both order variants.
type OrderCore struct {
	ID            uuid.UUID
	Status        OrderStatus
	CustomerName  string
	CustomerPhone string
	CustomerEmail string
	Address       Address
	Amount        float64 // order total, INR
	Payment       Payment
	Shipment      *Shipment // nil until a shipment exists
	RefundAmount  float64
	RefundStatus  RefundStatus
	// Version guards concurrent appliers: every write is a compare-and-set
	// against the version read, bumped by one on success.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RegularOrder is an order for catalog products.
type RegularOrder struct {
	OrderCore
	Items []OrderItem
}

func (o *RegularOrder) sealedOrder()     {}
func (o *RegularOrder) Kind() OrderKind  { return OrderKindRegular }
func (o *RegularOrder) Core() *OrderCore { return &o.OrderCore }

// CustomOrder is an order for a customer-designed cover.
type CustomOrder struct {
	OrderCore
	Design DesignSpec
}

func (o *CustomOrder) sealedOrder()     {}
func (o *CustomOrder) Kind() OrderKind  { return OrderKindCustom }
func (o *CustomOrder) Core() *OrderCore { return &o.OrderCore }

// OrderItem is one catalog line item.
type OrderItem struct {
	SKU      string  `json:"sku"`
	Title    string  `json:"title"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// DesignSpec describes a custom cover design.
type DesignSpec struct {
	PhoneModel string `json:"phone_model"`
	ImageURL   string `json:"image_url"`
	CaseType   string `json:"case_type"`
	Notes      string `json:"notes,omitempty"`
}

// Address is the shipping address. Stored as JSONB on the order row.
type Address struct {
	Line1   string `json:"line1"`
	Line2   string `json:"line2,omitempty"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
	Country string `json:"country"`
	Phone   string `json:"phone,omitempty"`
}

// Payment is the payment sub-record. ProviderOrderID is assigned at checkout
// and is the join key for payment webhooks; unique across all orders.
type Payment struct {
	ProviderOrderID   string
	ProviderPaymentID string
	Status            PaymentStatus
	PaidAt            *time.Time
}

// Shipment is the courier sub-record. At most one non-cancelled shipment per
// order; TrackingCode is unique across orders once assigned.
type Shipment struct {
	Provider           string // "delhivery" | "shiprocket"
	ProviderShipmentID string
	ProviderOrderID    string
	TrackingCode       string // AWB / waybill
	CourierID          int
	CourierName        string
	PickupLocation     string
	Status             string // free-form mirror of the provider's last status
	RTOReason          string
	TrackingHistory    []TrackingEvent
	WebhookLog         []WebhookLogEntry
	LastSyncedAt       *time.Time
	DeliveredAt        *time.Time
	CancelledAt        *time.Time
}

// Active reports whether the shipment still counts against the
// one-active-shipment-per-order invariant.
func (s *Shipment) Active() bool {
	return s != nil && s.CancelledAt == nil
}

// TrackingEvent is one scan in the shipment's provider-facing history.
type TrackingEvent struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Location  string    `json:"location,omitempty"`
	Note      string    `json:"note,omitempty"`
}

// WebhookLogEntry is the append-only audit trail of inbound provider events.
// Never mutated or removed once appended; support replays it to answer
// "why is this order in this state".
type WebhookLogEntry struct {
	RawStatus    string          `json:"raw_status"`
	MappedStatus OrderStatus     `json:"mapped_status"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	ReceivedAt   time.Time       `json:"received_at"`
}
