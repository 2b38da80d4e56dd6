package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kundan-thakur61/mobilecoverBackend/internal/domain"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/payment/razorpay"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/repository"
	apperrors "github.com/kundan-thakur61/mobilecoverBackend/pkg/errors"
)

// CheckoutRequest creates an order awaiting payment. Exactly one of Items or
// Design must be set, which also fixes the variant.
type CheckoutRequest struct {
	CustomerName  string             `json:"customer_name"`
	CustomerPhone string             `json:"customer_phone"`
	CustomerEmail string             `json:"customer_email"`
	Address       domain.Address     `json:"address"`
	Items         []domain.OrderItem `json:"items,omitempty"`
	Design        *domain.DesignSpec `json:"design,omitempty"`
}

// CheckoutResult pairs the pending order with the provider-side checkout the
// storefront hands to the payment widget.
type CheckoutResult struct {
	Order         domain.Order
	RazorpayOrder *razorpay.Order
}

// OrderService covers checkout and the read/admin surface of orders.
type OrderService struct {
	repos   *repository.Repositories
	payment *razorpay.Client
	logger  *zap.Logger
}

// NewOrderService creates the order service.
func NewOrderService(repos *repository.Repositories, payment *razorpay.Client, logger *zap.Logger) *OrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderService{repos: repos, payment: payment, logger: logger}
}

// Checkout validates the request, registers the amount with Razorpay and
// persists a pending order holding the provider order id. Payment capture
// arrives later by webhook.
func (s *OrderService) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	if err := validateCheckout(req); err != nil {
		return nil, err
	}

	id := uuid.New()
	now := time.Now()
	core := domain.OrderCore{
		ID:            id,
		Status:        domain.OrderStatusPending,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		CustomerEmail: req.CustomerEmail,
		Address:       req.Address,
		Payment:       domain.Payment{Status: domain.PaymentStatusPending},
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	var order domain.Order
	if req.Design != nil {
		core.Amount = customCoverPrice
		order = &domain.CustomOrder{OrderCore: core, Design: *req.Design}
	} else {
		for _, item := range req.Items {
			core.Amount += item.Price * float64(item.Quantity)
		}
		order = &domain.RegularOrder{OrderCore: core, Items: req.Items}
	}

	providerOrder, err := s.payment.CreateOrder(ctx, order.Core().Amount, id.String())
	if err != nil {
		return nil, err
	}
	order.Core().Payment.ProviderOrderID = providerOrder.ID

	if err := s.repos.ByKind(order.Kind()).Create(ctx, order); err != nil {
		return nil, err
	}
	s.logger.Info("Order created",
		zap.String("order_id", id.String()),
		zap.String("order_kind", string(order.Kind())),
		zap.String("razorpay_order_id", providerOrder.ID),
		zap.Float64("amount", order.Core().Amount),
	)
	return &CheckoutResult{Order: order, RazorpayOrder: providerOrder}, nil
}

// customCoverPrice is the flat price of a customer-designed cover, INR.
const customCoverPrice = 499

// Get loads one order by kind and id.
func (s *OrderService) Get(ctx context.Context, kind domain.OrderKind, id uuid.UUID) (domain.Order, error) {
	return s.repos.ByKind(kind).GetByID(ctx, id)
}

// List pages through one variant's orders for the admin surface.
func (s *OrderService) List(ctx context.Context, kind domain.OrderKind, limit, offset int) ([]domain.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.repos.ByKind(kind).List(ctx, limit, offset)
}

// OverrideStatus force-sets the order status. Unlike webhook-driven
// transitions it may move in any direction, including out of terminal
// states; that escape hatch is why the route sits behind admin auth.
func (s *OrderService) OverrideStatus(ctx context.Context, kind domain.OrderKind, id uuid.UUID, status domain.OrderStatus, reason string) (domain.Order, error) {
	if !status.IsValid() {
		return nil, &apperrors.ErrValidation{
			Message: "invalid order status",
			Fields:  map[string]string{"status": "must be a known order status"},
		}
	}
	repo := s.repos.ByKind(kind)
	order, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	for attempt := 1; ; attempt++ {
		previous := order.Core().Status
		order.Core().Status = status
		err = repo.Update(ctx, order)
		if err == nil {
			s.logger.Warn("Order status overridden",
				zap.String("order_id", id.String()),
				zap.String("from", string(previous)),
				zap.String("to", string(status)),
				zap.String("reason", reason),
			)
			return order, nil
		}
		if _, conflict := err.(*apperrors.ErrVersionConflict); !conflict || attempt == maxApplyAttempts {
			return nil, err
		}
		if order, err = repo.GetByID(ctx, id); err != nil {
			return nil, err
		}
	}
}

func validateCheckout(req CheckoutRequest) error {
	fields := map[string]string{}
	if req.CustomerName == "" {
		fields["customer_name"] = "required"
	}
	if req.CustomerPhone == "" {
		fields["customer_phone"] = "required"
	}
	hasItems := len(req.Items) > 0
	hasDesign := req.Design != nil
	switch {
	case !hasItems && !hasDesign:
		fields["items"] = "either items or design is required"
	case hasItems && hasDesign:
		fields["items"] = "items and design are mutually exclusive"
	}
	if hasDesign {
		if req.Design.PhoneModel == "" {
			fields["design.phone_model"] = "required"
		}
		if req.Design.ImageURL == "" {
			fields["design.image_url"] = "required"
		}
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 || item.Price < 0 {
			fields["items"] = "item quantities must be positive and prices non-negative"
			break
		}
	}
	if len(fields) > 0 {
		return &apperrors.ErrValidation{Message: "invalid checkout request", Fields: fields}
	}
	return nil
}
