package locator

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kundan-thakur61/mobilecoverBackend/internal/domain"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/repository"
	"github.com/kundan-thakur61/mobilecoverBackend/pkg/errors"
)

// Reference prefixes used on provider-facing order references.
const (
	RegularPrefix = "ORD-"
	CustomPrefix  = "CUST-"
)

// Locator resolves an external reference to exactly one internal order.
// Strategies are tried in a fixed precedence order and the first match wins:
//
//  1. canonical internal ID (strict UUID format)
//  2. prefixed reference (ORD-<id> / CUST-<id>), which also pins the variant
//  3. Razorpay references (order_* / pay_*) against the payment join fields
//  4. courier tracking code against the indexed waybill field
//
// Internal IDs are UUIDs and provider references never are, so strategy 1
// cannot false-positive on a tracking code or payment id.
type Locator struct {
	repos  *repository.Repositories
	logger *zap.Logger
}

// New creates a locator over both order variants.
func New(repos *repository.Repositories, logger *zap.Logger) *Locator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Locator{repos: repos, logger: logger}
}

// Locate resolves ref or returns *errors.ErrNotFound. A reference matching
// more than one order surfaces *errors.ErrAmbiguousReference, never a
// silently picked first match.
func (l *Locator) Locate(ctx context.Context, ref string) (domain.Order, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, &errors.ErrNotFound{Resource: "order", ID: ref}
	}

	// Strategy 1: strict internal ID. uuid.Parse also accepts urn: and
	// braced forms, so the length guard keeps this to the canonical format.
	if len(ref) == 36 {
		if id, err := uuid.Parse(ref); err == nil {
			return l.byID(ctx, id, ref)
		}
	}

	// Strategy 2: prefix convention pins the variant.
	upper := strings.ToUpper(ref)
	if strings.HasPrefix(upper, RegularPrefix) {
		return l.byPrefixedID(ctx, l.repos.Regular, ref, ref[len(RegularPrefix):])
	}
	if strings.HasPrefix(upper, CustomPrefix) {
		return l.byPrefixedID(ctx, l.repos.Custom, ref, ref[len(CustomPrefix):])
	}

	// Strategy 3: Razorpay ids carry their own unambiguous prefixes.
	if strings.HasPrefix(ref, "order_") {
		return l.searchBoth(ctx, ref, func(repo repository.OrderRepository) (domain.Order, error) {
			return repo.GetByPaymentOrderID(ctx, ref)
		})
	}
	if strings.HasPrefix(ref, "pay_") {
		return l.searchBoth(ctx, ref, func(repo repository.OrderRepository) (domain.Order, error) {
			return repo.GetByPaymentID(ctx, ref)
		})
	}

	// Strategy 4: courier waybill.
	return l.searchBoth(ctx, ref, func(repo repository.OrderRepository) (domain.Order, error) {
		return repo.GetByTrackingCode(ctx, ref)
	})
}

// LocateByPaymentOrderID resolves the Razorpay order id join key directly,
// for payment webhooks that already know what their reference means.
func (l *Locator) LocateByPaymentOrderID(ctx context.Context, providerOrderID string) (domain.Order, error) {
	return l.searchBoth(ctx, providerOrderID, func(repo repository.OrderRepository) (domain.Order, error) {
		return repo.GetByPaymentOrderID(ctx, providerOrderID)
	})
}

// LocateByTrackingCode resolves a courier waybill directly.
func (l *Locator) LocateByTrackingCode(ctx context.Context, trackingCode string) (domain.Order, error) {
	return l.searchBoth(ctx, trackingCode, func(repo repository.OrderRepository) (domain.Order, error) {
		return repo.GetByTrackingCode(ctx, trackingCode)
	})
}

// ProviderRef builds the provider-facing reference for an order, the inverse
// of strategy 2.
func ProviderRef(order domain.Order) string {
	if order.Kind() == domain.OrderKindCustom {
		return CustomPrefix + order.Core().ID.String()
	}
	return RegularPrefix + order.Core().ID.String()
}

func (l *Locator) byID(ctx context.Context, id uuid.UUID, ref string) (domain.Order, error) {
	var found []domain.Order
	for _, repo := range l.repos.All() {
		order, err := repo.GetByID(ctx, id)
		if err != nil {
			if _, ok := err.(*errors.ErrNotFound); ok {
				continue
			}
			return nil, err
		}
		found = append(found, order)
	}
	switch len(found) {
	case 0:
		return nil, &errors.ErrNotFound{Resource: "order", ID: ref}
	case 1:
		return found[0], nil
	default:
		l.logger.Warn("Reference matched orders of both kinds", zap.String("ref", ref))
		return nil, &errors.ErrAmbiguousReference{Reference: ref, Matches: len(found)}
	}
}

func (l *Locator) byPrefixedID(ctx context.Context, repo repository.OrderRepository, ref, rest string) (domain.Order, error) {
	id, err := uuid.Parse(strings.TrimSpace(rest))
	if err != nil {
		return nil, &errors.ErrNotFound{Resource: "order", ID: ref}
	}
	return repo.GetByID(ctx, id)
}

func (l *Locator) searchBoth(ctx context.Context, ref string, lookup func(repository.OrderRepository) (domain.Order, error)) (domain.Order, error) {
	var found []domain.Order
	for _, repo := range l.repos.All() {
		order, err := lookup(repo)
		if err != nil {
			switch err.(type) {
			case *errors.ErrNotFound:
				continue
			case *errors.ErrAmbiguousReference:
				return nil, err
			default:
				return nil, err
			}
		}
		found = append(found, order)
	}
	switch len(found) {
	case 0:
		return nil, &errors.ErrNotFound{Resource: "order", ID: ref}
	case 1:
		return found[0], nil
	default:
		return nil, &errors.ErrAmbiguousReference{Reference: ref, Matches: len(found)}
	}
}
