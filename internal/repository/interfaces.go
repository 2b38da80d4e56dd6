package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/kundan-thakur61/mobilecoverBackend/internal/domain"
)

// OrderRepository defines data access for one order variant. Both variants
// share the interface; each repository instance is bound to a single kind.
//
// Update is a compare-and-set against the Version the order was read at: the
// whole mutable state (status, payment, shipment incl. history) is written in
// one statement, so concurrent appliers serialize per order and a failed call
// never leaves half an update behind. On conflict it returns
// *errors.ErrVersionConflict and the caller reloads and retries.
type OrderRepository interface {
	Create(ctx context.Context, order domain.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (domain.Order, error)
	GetByTrackingCode(ctx context.Context, trackingCode string) (domain.Order, error)
	GetByPaymentOrderID(ctx context.Context, providerOrderID string) (domain.Order, error)
	GetByPaymentID(ctx context.Context, providerPaymentID string) (domain.Order, error)
	Update(ctx context.Context, order domain.Order) error
	List(ctx context.Context, limit, offset int) ([]domain.Order, error)
	// ListActiveShipments returns orders carrying a non-cancelled shipment
	// that is not yet delivered, for reconciliation sweeps.
	ListActiveShipments(ctx context.Context, limit int) ([]domain.Order, error)
}

// Repositories aggregates the per-variant repositories.
type Repositories struct {
	Regular OrderRepository
	Custom  OrderRepository
}

// ByKind returns the repository backing the given variant.
func (r *Repositories) ByKind(kind domain.OrderKind) OrderRepository {
	if kind == domain.OrderKindCustom {
		return r.Custom
	}
	return r.Regular
}

// All returns both repositories with their kinds, for lookups that must scan
// every variant (tracking codes and payment ids are unique across both).
func (r *Repositories) All() map[domain.OrderKind]OrderRepository {
	return map[domain.OrderKind]OrderRepository{
		domain.OrderKindRegular: r.Regular,
		domain.OrderKindCustom:  r.Custom,
	}
}
