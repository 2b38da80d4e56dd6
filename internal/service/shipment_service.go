package service

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kundan-thakur61/mobilecoverBackend/internal/courier"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/domain"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/locator"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/observability"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/repository"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/retry"
	apperrors "github.com/kundan-thakur61/mobilecoverBackend/pkg/errors"
)

// CreateShipmentOptions are the caller-tunable booking parameters.
type CreateShipmentOptions struct {
	PickupLocation string
	Weight         float64
	Dimensions     *courier.Dimensions
	COD            bool
}

// CreateShipmentResult reports the shipment plus whether this call created it.
type CreateShipmentResult struct {
	Order    domain.Order
	Shipment *domain.Shipment
	Created  bool
}

// LabelResult is one order's outcome in a batch label generation.
type LabelResult struct {
	OrderID  uuid.UUID        `json:"order_id"`
	Kind     domain.OrderKind `json:"order_kind"`
	Success  bool             `json:"success"`
	LabelURL string           `json:"label_url,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// ShipmentService orchestrates courier operations against orders and keeps
// the provider-assigned identifiers persisted on the order. All mutations go
// through the version-CAS repository write.
type ShipmentService struct {
	repos    *repository.Repositories
	provider courier.Provider
	policy   retry.Policy
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewShipmentService creates the lifecycle manager for the active provider.
func NewShipmentService(repos *repository.Repositories, provider courier.Provider, metrics *observability.Metrics, logger *zap.Logger) *ShipmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ShipmentService{
		repos:    repos,
		provider: provider,
		policy:   retry.DefaultPolicy(),
		metrics:  metrics,
		logger:   logger,
	}
}

// CreateShipment books a shipment for the order. Idempotent: an order that
// already carries an active shipment gets it back unchanged with Created
// false and zero provider calls. Address validation (with best-effort repair)
// happens before the booking call; a rejected pickup location is healed by
// retrying exactly once with the provider's suggested alternative.
func (s *ShipmentService) CreateShipment(ctx context.Context, kind domain.OrderKind, orderID uuid.UUID, opts CreateShipmentOptions) (*CreateShipmentResult, error) {
	repo := s.repos.ByKind(kind)
	order, err := repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	core := order.Core()
	if core.Shipment.Active() {
		return &CreateShipmentResult{Order: order, Shipment: core.Shipment, Created: false}, nil
	}
	if core.Status.IsTerminal() {
		return nil, &apperrors.ErrPreconditionFailed{Message: "cannot ship a " + string(core.Status) + " order"}
	}
	if core.Status == domain.OrderStatusShipped {
		// The package already left, even though the shipment record was
		// cancelled or cleared afterwards. Rebooking would double-ship.
		e := &apperrors.ErrAlreadyShipped{OrderID: orderID.String()}
		if core.Shipment != nil {
			e.TrackingCode = core.Shipment.TrackingCode
		}
		return nil, e
	}

	addr, err := courier.NormalizeAddress(core.Address)
	if err != nil {
		return nil, err
	}

	weight := opts.Weight
	if weight <= 0 {
		weight = 0.2 // a cased cover in its mailer
	}
	req := courier.CreateShipmentRequest{
		OrderRef:       locator.ProviderRef(order),
		CustomerName:   core.CustomerName,
		CustomerPhone:  core.CustomerPhone,
		CustomerEmail:  core.CustomerEmail,
		Address:        addr,
		Amount:         core.Amount,
		COD:            opts.COD,
		Weight:         weight,
		Dimensions:     opts.Dimensions,
		PickupLocation: opts.PickupLocation,
	}
	if regular, ok := order.(*domain.RegularOrder); ok {
		req.Items = regular.Items
	}

	created, err := s.createWithPickupHealing(ctx, &req)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	shipment := &domain.Shipment{
		Provider:           s.provider.Name(),
		ProviderShipmentID: created.ShipmentID,
		ProviderOrderID:    created.ProviderOrderID,
		TrackingCode:       created.TrackingCode,
		PickupLocation:     req.PickupLocation,
		Status:             created.Status,
		LastSyncedAt:       &now,
	}

	result := &CreateShipmentResult{Shipment: shipment, Created: true}
	for attempt := 1; ; attempt++ {
		core = order.Core()
		if core.Shipment.Active() {
			// Lost a create race; the other shipment wins and ours is orphaned
			// at the provider. Report the persisted one.
			s.logger.Warn("Concurrent shipment creation detected",
				zap.String("order_id", orderID.String()),
				zap.String("orphaned_shipment", created.ShipmentID),
			)
			return &CreateShipmentResult{Order: order, Shipment: core.Shipment, Created: false}, nil
		}
		core.Shipment = shipment
		if core.Status.CanAdvanceTo(domain.OrderStatusProcessing) {
			core.Status = domain.OrderStatusProcessing
		}
		err = repo.Update(ctx, order)
		if err == nil {
			result.Order = order
			return result, nil
		}
		if _, conflict := err.(*apperrors.ErrVersionConflict); !conflict || attempt == maxApplyAttempts {
			return nil, err
		}
		if order, err = repo.GetByID(ctx, orderID); err != nil {
			return nil, err
		}
	}
}

// createWithPickupHealing calls the provider, and when the rejection names
// registered pickup locations, retries once with the first suggestion. One
// extra attempt only, never recursive. On a healed booking req.PickupLocation
// carries the location that actually worked, so the caller persists that one.
func (s *ShipmentService) createWithPickupHealing(ctx context.Context, req *courier.CreateShipmentRequest) (*courier.CreateShipmentResult, error) {
	created, err := s.createShipmentCall(ctx, *req)
	if err == nil {
		return created, nil
	}
	var apiErr *courier.APIError
	if stderrors.As(err, &apiErr) && len(apiErr.SuggestedPickups) > 0 && apiErr.SuggestedPickups[0] != req.PickupLocation {
		suggestion := apiErr.SuggestedPickups[0]
		s.logger.Info("Retrying shipment with suggested pickup location",
			zap.String("rejected", req.PickupLocation),
			zap.String("suggested", suggestion),
		)
		req.PickupLocation = suggestion
		return s.createShipmentCall(ctx, *req)
	}
	return nil, err
}

func (s *ShipmentService) createShipmentCall(ctx context.Context, req courier.CreateShipmentRequest) (*courier.CreateShipmentResult, error) {
	var created *courier.CreateShipmentResult
	err := retry.Do(ctx, s.policy, courier.IsTransient, func() error {
		var callErr error
		created, callErr = s.provider.CreateShipment(ctx, req)
		return callErr
	})
	s.countProviderCall("create_shipment", err)
	return created, err
}

// AssignCourier assigns a courier company to an existing shipment and
// persists the AWB it hands back.
func (s *ShipmentService) AssignCourier(ctx context.Context, kind domain.OrderKind, orderID uuid.UUID, courierID int) (*domain.Shipment, error) {
	order, shipment, err := s.requireShipment(ctx, kind, orderID)
	if err != nil {
		return nil, err
	}
	var assigned *courier.AssignCourierResult
	err = retry.Do(ctx, s.policy, courier.IsTransient, func() error {
		var callErr error
		assigned, callErr = s.provider.AssignCourier(ctx, shipment.ProviderShipmentID, courierID)
		return callErr
	})
	s.countProviderCall("assign_courier", err)
	if err != nil {
		return nil, err
	}

	repo := s.repos.ByKind(kind)
	err = s.updateShipment(ctx, repo, order, func(sh *domain.Shipment) {
		sh.CourierID = assigned.CourierID
		sh.CourierName = assigned.CourierName
		if assigned.TrackingCode != "" {
			sh.TrackingCode = assigned.TrackingCode
		}
	})
	if err != nil {
		return nil, err
	}
	return order.Core().Shipment, nil
}

// RequestPickup schedules the first-mile pickup for an existing shipment.
func (s *ShipmentService) RequestPickup(ctx context.Context, kind domain.OrderKind, orderID uuid.UUID) error {
	order, shipment, err := s.requireShipment(ctx, kind, orderID)
	if err != nil {
		return err
	}
	err = retry.Do(ctx, s.policy, courier.IsTransient, func() error {
		return s.provider.RequestPickup(ctx, shipment.ProviderShipmentID)
	})
	s.countProviderCall("request_pickup", err)
	if err != nil {
		return err
	}
	return s.updateShipment(ctx, s.repos.ByKind(kind), order, func(sh *domain.Shipment) {})
}

// CancelShipment cancels the shipment with the provider and marks it
// cancelled locally, freeing the order for a re-shipment.
func (s *ShipmentService) CancelShipment(ctx context.Context, kind domain.OrderKind, orderID uuid.UUID) error {
	order, shipment, err := s.requireShipment(ctx, kind, orderID)
	if err != nil {
		return err
	}
	err = retry.Do(ctx, s.policy, courier.IsTransient, func() error {
		return s.provider.CancelShipment(ctx, shipment.ProviderShipmentID)
	})
	s.countProviderCall("cancel_shipment", err)
	if err != nil {
		return err
	}
	now := time.Now()
	return s.updateShipment(ctx, s.repos.ByKind(kind), order, func(sh *domain.Shipment) {
		sh.CancelledAt = &now
		sh.Status = "Cancelled"
	})
}

// OrderRef identifies one order in a batch request.
type OrderRef struct {
	Kind domain.OrderKind `json:"order_kind"`
	ID   uuid.UUID        `json:"order_id"`
}

// GenerateLabels produces labels for a batch of orders. Partial success is
// expected: each order reports its own outcome and one bad id never fails
// the batch.
func (s *ShipmentService) GenerateLabels(ctx context.Context, refs []OrderRef) []LabelResult {
	results := make([]LabelResult, 0, len(refs))
	for _, ref := range refs {
		res := LabelResult{OrderID: ref.ID, Kind: ref.Kind}
		_, shipment, err := s.requireShipment(ctx, ref.Kind, ref.ID)
		if err != nil {
			res.Error = err.Error()
			results = append(results, res)
			continue
		}
		var labelURL string
		err = retry.Do(ctx, s.policy, courier.IsTransient, func() error {
			var callErr error
			labelURL, callErr = s.provider.GenerateLabel(ctx, []string{shipment.ProviderShipmentID})
			return callErr
		})
		s.countProviderCall("generate_label", err)
		if err != nil {
			res.Error = err.Error()
		} else {
			res.Success = true
			res.LabelURL = labelURL
		}
		results = append(results, res)
	}
	return results
}

// CheckServiceability asks the provider whether the lane is serviceable.
func (s *ShipmentService) CheckServiceability(ctx context.Context, q courier.ServiceabilityQuery) (*courier.ServiceabilityResult, error) {
	var result *courier.ServiceabilityResult
	err := retry.Do(ctx, s.policy, courier.IsTransient, func() error {
		var callErr error
		result, callErr = s.provider.CheckServiceability(ctx, q)
		return callErr
	})
	s.countProviderCall("serviceability", err)
	return result, err
}

func (s *ShipmentService) requireShipment(ctx context.Context, kind domain.OrderKind, orderID uuid.UUID) (domain.Order, *domain.Shipment, error) {
	order, err := s.repos.ByKind(kind).GetByID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	shipment := order.Core().Shipment
	if !shipment.Active() {
		return nil, nil, &apperrors.ErrPreconditionFailed{Message: "order has no active shipment"}
	}
	return order, shipment, nil
}

// updateShipment applies fn to the order's shipment and persists with CAS,
// always refreshing lastSyncedAt so staleness stays queryable.
func (s *ShipmentService) updateShipment(ctx context.Context, repo repository.OrderRepository, order domain.Order, fn func(*domain.Shipment)) error {
	for attempt := 1; ; attempt++ {
		sh := order.Core().Shipment
		if sh == nil {
			return &apperrors.ErrPreconditionFailed{Message: "order has no shipment"}
		}
		fn(sh)
		now := time.Now()
		sh.LastSyncedAt = &now
		err := repo.Update(ctx, order)
		if err == nil {
			return nil
		}
		if _, conflict := err.(*apperrors.ErrVersionConflict); !conflict || attempt == maxApplyAttempts {
			return err
		}
		fresh, getErr := repo.GetByID(ctx, order.Core().ID)
		if getErr != nil {
			return getErr
		}
		order = fresh
	}
}

func (s *ShipmentService) countProviderCall(operation string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	s.metrics.ProviderRequests.WithLabelValues(s.provider.Name(), operation, outcome).Inc()
}
