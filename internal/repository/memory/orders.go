package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kundan-thakur61/mobilecoverBackend/internal/domain"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/repository"
	"github.com/kundan-thakur61/mobilecoverBackend/pkg/errors"
)

// OrderRepository is an in-memory repository used by tests. It mirrors the
// postgres repository's semantics: values are stored by copy, tracking code
// and payment id lookups are indexed fields, and Update is a compare-and-set
// on the version field.
type OrderRepository struct {
	mu     sync.Mutex
	kind   domain.OrderKind
	orders map[uuid.UUID]domain.Order
}

// NewOrderRepository creates an empty repository for the given variant.
func NewOrderRepository(kind domain.OrderKind) *OrderRepository {
	return &OrderRepository{kind: kind, orders: make(map[uuid.UUID]domain.Order)}
}

// NewRepositories builds an in-memory pair covering both variants.
func NewRepositories() *repository.Repositories {
	return &repository.Repositories{
		Regular: NewOrderRepository(domain.OrderKindRegular),
		Custom:  NewOrderRepository(domain.OrderKindCustom),
	}
}

func (r *OrderRepository) Create(_ context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	core := order.Core()
	now := time.Now()
	if core.ID == uuid.Nil {
		core.ID = uuid.New()
	}
	if core.CreatedAt.IsZero() {
		core.CreatedAt = now
	}
	if core.Status == "" {
		core.Status = domain.OrderStatusPending
	}
	if core.Payment.Status == "" {
		core.Payment.Status = domain.PaymentStatusPending
	}
	if core.RefundStatus == "" {
		core.RefundStatus = domain.RefundStatusNone
	}
	core.UpdatedAt = now
	r.orders[core.ID] = clone(order)
	return nil
}

func (r *OrderRepository) GetByID(_ context.Context, id uuid.UUID) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return nil, &errors.ErrNotFound{Resource: string(r.kind) + " order", ID: id.String()}
	}
	return clone(order), nil
}

func (r *OrderRepository) GetByTrackingCode(_ context.Context, trackingCode string) (domain.Order, error) {
	return r.findOne(trackingCode, func(c *domain.OrderCore) bool {
		return c.Shipment != nil && c.Shipment.TrackingCode == trackingCode
	})
}

func (r *OrderRepository) GetByPaymentOrderID(_ context.Context, providerOrderID string) (domain.Order, error) {
	return r.findOne(providerOrderID, func(c *domain.OrderCore) bool {
		return c.Payment.ProviderOrderID == providerOrderID
	})
}

func (r *OrderRepository) GetByPaymentID(_ context.Context, providerPaymentID string) (domain.Order, error) {
	return r.findOne(providerPaymentID, func(c *domain.OrderCore) bool {
		return c.Payment.ProviderPaymentID == providerPaymentID
	})
}

func (r *OrderRepository) Update(_ context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	core := order.Core()
	stored, ok := r.orders[core.ID]
	if !ok {
		return &errors.ErrNotFound{Resource: string(r.kind) + " order", ID: core.ID.String()}
	}
	if stored.Core().Version != core.Version {
		return &errors.ErrVersionConflict{OrderID: core.ID.String()}
	}
	core.Version++
	core.UpdatedAt = time.Now()
	r.orders[core.ID] = clone(order)
	return nil
}

func (r *OrderRepository) List(_ context.Context, limit, offset int) ([]domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]domain.Order, 0, len(r.orders))
	for _, o := range r.orders {
		all = append(all, clone(o))
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].Core().CreatedAt.After(all[j].Core().CreatedAt)
	})
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (r *OrderRepository) ListActiveShipments(_ context.Context, limit int) ([]domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Order
	for _, o := range r.orders {
		core := o.Core()
		if core.Shipment.Active() && core.Shipment.TrackingCode != "" && !core.Status.IsTerminal() {
			out = append(out, clone(o))
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *OrderRepository) findOne(ref string, match func(*domain.OrderCore) bool) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var found domain.Order
	matches := 0
	for _, o := range r.orders {
		if match(o.Core()) {
			found = o
			matches++
		}
	}
	switch matches {
	case 0:
		return nil, &errors.ErrNotFound{Resource: string(r.kind) + " order", ID: ref}
	case 1:
		return clone(found), nil
	default:
		return nil, &errors.ErrAmbiguousReference{Reference: ref, Matches: matches}
	}
}

// clone deep-copies through JSON so callers never share slices or pointers
// with the stored value, matching a round trip through the database.
func clone(order domain.Order) domain.Order {
	raw, err := json.Marshal(order)
	if err != nil {
		panic(err)
	}
	switch order.(type) {
	case *domain.CustomOrder:
		out := &domain.CustomOrder{}
		if err := json.Unmarshal(raw, out); err != nil {
			panic(err)
		}
		return out
	default:
		out := &domain.RegularOrder{}
		if err := json.Unmarshal(raw, out); err != nil {
			panic(err)
		}
		return out
	}
}

var _ repository.OrderRepository = (*OrderRepository)(nil)
