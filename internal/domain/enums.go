package domain

// OrderStatus is the canonical, provider-agnostic order lifecycle status.
type OrderStatus string

const (
	// PENDING - checkout started, payment not yet captured
	OrderStatusPending OrderStatus = "pending"
	// CONFIRMED - payment captured
	OrderStatusConfirmed OrderStatus = "confirmed"
	// PROCESSING - shipment created, awaiting pickup
	OrderStatusProcessing OrderStatus = "processing"
	// SHIPPED - courier has the package
	OrderStatusShipped OrderStatus = "shipped"
	// DELIVERED - courier confirmed delivery
	OrderStatusDelivered OrderStatus = "delivered"
	// CANCELLED - cancelled by admin, customer or courier RTO
	OrderStatusCancelled OrderStatus = "cancelled"
	// REFUNDED - fully refunded
	OrderStatusRefunded OrderStatus = "refunded"
	// FAILED - payment or fulfilment failed terminally
	OrderStatusFailed OrderStatus = "failed"

	// OrderStatusUnknown is the mapper sentinel for unrecognized provider
	// strings. It is never persisted as an order's status.
	OrderStatusUnknown OrderStatus = "unknown"
)

// IsValid checks if the order status is valid
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending,
		OrderStatusConfirmed,
		OrderStatusProcessing,
		OrderStatusShipped,
		OrderStatusDelivered,
		OrderStatusCancelled,
		OrderStatusRefunded,
		OrderStatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no webhook-driven transition may leave s.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded, OrderStatusFailed:
		return true
	default:
		return false
	}
}

// rank orders the forward path. Terminal absorbing states sit above delivered
// so that nothing compares ahead of them.
func (s OrderStatus) rank() int {
	switch s {
	case OrderStatusPending:
		return 0
	case OrderStatusConfirmed:
		return 1
	case OrderStatusProcessing:
		return 2
	case OrderStatusShipped:
		return 3
	case OrderStatusDelivered:
		return 4
	case OrderStatusCancelled, OrderStatusRefunded, OrderStatusFailed:
		return 5
	default:
		return -1
	}
}

// CanAdvanceTo reports whether a provider event may move an order from s to
// newStatus. Forward-only: out-of-order "earlier" events never regress the
// status, and terminal states absorb everything.
func (s OrderStatus) CanAdvanceTo(newStatus OrderStatus) bool {
	if !newStatus.IsValid() || newStatus == s {
		return false
	}
	if s.IsTerminal() {
		return false
	}
	// Cancellation and failure are reachable from any non-terminal state.
	if newStatus == OrderStatusCancelled || newStatus == OrderStatusFailed || newStatus == OrderStatusRefunded {
		return true
	}
	return newStatus.rank() > s.rank()
}

// PaymentStatus tracks the payment sub-record lifecycle.
type PaymentStatus string

const (
	PaymentStatusPending           PaymentStatus = "pending"
	PaymentStatusPaid              PaymentStatus = "paid"
	PaymentStatusFailed            PaymentStatus = "failed"
	PaymentStatusPartiallyRefunded PaymentStatus = "partially_refunded"
	PaymentStatusRefunded          PaymentStatus = "refunded"
)

// RefundStatus tracks progress across possibly multiple partial refunds.
type RefundStatus string

const (
	RefundStatusNone       RefundStatus = "none"
	RefundStatusProcessing RefundStatus = "processing"
	RefundStatusCompleted  RefundStatus = "completed"
	RefundStatusFailed     RefundStatus = "failed"
)

// OrderKind discriminates the two order variants. It appears on the wire and
// in prefixed references (ORD- / CUST-), never as a branch inside domain logic.
type OrderKind string

const (
	OrderKindRegular OrderKind = "regular"
	OrderKindCustom  OrderKind = "custom"
)

// IsValid checks if the order kind is valid
func (k OrderKind) IsValid() bool {
	return k == OrderKindRegular || k == OrderKindCustom
}
