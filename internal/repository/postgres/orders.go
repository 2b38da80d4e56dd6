package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kundan-thakur61/mobilecoverBackend/internal/domain"
	"github.com/kundan-thakur61/mobilecoverBackend/pkg/errors"
)

// orderRepository serves one order variant. Both variants share the schema
// shape; the variant payload (catalog items vs. design spec) lives in the
// detail column and the table/kind binding decides which struct comes back.
type orderRepository struct {
	db     *sql.DB
	logger *zap.Logger
	table  string
	kind   domain.OrderKind
}

// NewRegularOrderRepository creates the repository for catalog orders.
func NewRegularOrderRepository(db *sql.DB, logger *zap.Logger) *orderRepository {
	return &orderRepository{db: db, logger: logger, table: "orders", kind: domain.OrderKindRegular}
}

// NewCustomOrderRepository creates the repository for custom design orders.
func NewCustomOrderRepository(db *sql.DB, logger *zap.Logger) *orderRepository {
	return &orderRepository{db: db, logger: logger, table: "custom_orders", kind: domain.OrderKindCustom}
}

const orderColumns = `id, status, customer_name, customer_phone, customer_email,
	address, amount, detail,
	payment_provider_order_id, payment_provider_payment_id, payment_status, paid_at,
	shipment, tracking_code, refund_amount, refund_status,
	version, created_at, updated_at`

func (r *orderRepository) Create(ctx context.Context, order domain.Order) error {
	core := order.Core()
	now := time.Now()
	if core.ID == uuid.Nil {
		core.ID = uuid.New()
	}
	if core.CreatedAt.IsZero() {
		core.CreatedAt = now
	}
	if core.UpdatedAt.IsZero() {
		core.UpdatedAt = now
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

	addressJSON, err := json.Marshal(core.Address)
	if err != nil {
		return err
	}
	detailJSON, err := marshalDetail(order)
	if err != nil {
		return err
	}
	shipmentJSON, trackingCode, err := marshalShipment(core.Shipment)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`, r.table, orderColumns)

	_, err = r.db.ExecContext(ctx, query,
		core.ID,
		core.Status,
		core.CustomerName,
		core.CustomerPhone,
		core.CustomerEmail,
		addressJSON,
		core.Amount,
		detailJSON,
		nullString(core.Payment.ProviderOrderID),
		nullString(core.Payment.ProviderPaymentID),
		core.Payment.Status,
		core.Payment.PaidAt,
		shipmentJSON,
		trackingCode,
		core.RefundAmount,
		core.RefundStatus,
		core.Version,
		core.CreatedAt,
		core.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create order", zap.String("table", r.table), zap.Error(err))
		return err
	}
	return nil
}

func (r *orderRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, orderColumns, r.table)
	return r.scanOne(ctx, query, id.String(), id)
}

func (r *orderRepository) GetByTrackingCode(ctx context.Context, trackingCode string) (domain.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE tracking_code = $1`, orderColumns, r.table)
	return r.scanOne(ctx, query, trackingCode, trackingCode)
}

func (r *orderRepository) GetByPaymentOrderID(ctx context.Context, providerOrderID string) (domain.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE payment_provider_order_id = $1`, orderColumns, r.table)
	return r.scanOne(ctx, query, providerOrderID, providerOrderID)
}

func (r *orderRepository) GetByPaymentID(ctx context.Context, providerPaymentID string) (domain.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE payment_provider_payment_id = $1`, orderColumns, r.table)
	return r.scanOne(ctx, query, providerPaymentID, providerPaymentID)
}

// Update writes the order's whole mutable state in one statement, conditioned
// on the version the caller read. Zero rows affected means either the order
// vanished or a concurrent writer got there first.
func (r *orderRepository) Update(ctx context.Context, order domain.Order) error {
	core := order.Core()
	detailJSON, err := marshalDetail(order)
	if err != nil {
		return err
	}
	shipmentJSON, trackingCode, err := marshalShipment(core.Shipment)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		UPDATE %s SET
			status = $2,
			detail = $3,
			payment_provider_order_id = $4,
			payment_provider_payment_id = $5,
			payment_status = $6,
			paid_at = $7,
			shipment = $8,
			tracking_code = $9,
			refund_amount = $10,
			refund_status = $11,
			version = version + 1,
			updated_at = $12
		WHERE id = $1 AND version = $13
	`, r.table)

	now := time.Now()
	res, err := r.db.ExecContext(ctx, query,
		core.ID,
		core.Status,
		detailJSON,
		nullString(core.Payment.ProviderOrderID),
		nullString(core.Payment.ProviderPaymentID),
		core.Payment.Status,
		core.Payment.PaidAt,
		shipmentJSON,
		trackingCode,
		core.RefundAmount,
		core.RefundStatus,
		now,
		core.Version,
	)
	if err != nil {
		r.logger.Error("Failed to update order", zap.String("table", r.table), zap.String("id", core.ID.String()), zap.Error(err))
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		if _, getErr := r.GetByID(ctx, core.ID); getErr != nil {
			return getErr
		}
		return &errors.ErrVersionConflict{OrderID: core.ID.String()}
	}
	core.Version++
	core.UpdatedAt = now
	return nil
}

func (r *orderRepository) List(ctx context.Context, limit, offset int) ([]domain.Order, error) {
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY created_at DESC LIMIT $1 OFFSET $2`, orderColumns, r.table)
	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list orders", zap.String("table", r.table), zap.Error(err))
		return nil, err
	}
	defer rows.Close()
	return r.scanRows(rows)
}

func (r *orderRepository) ListActiveShipments(ctx context.Context, limit int) ([]domain.Order, error) {
	if limit <= 0 {
		limit = 200
	}
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE tracking_code IS NOT NULL
		  AND status NOT IN ('delivered', 'cancelled', 'refunded', 'failed')
		ORDER BY updated_at ASC
		LIMIT $1
	`, orderColumns, r.table)
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		r.logger.Error("Failed to list active shipments", zap.String("table", r.table), zap.Error(err))
		return nil, err
	}
	defer rows.Close()
	return r.scanRows(rows)
}

func (r *orderRepository) scanOne(ctx context.Context, query, ref string, arg interface{}) (domain.Order, error) {
	row := r.db.QueryRowContext(ctx, query, arg)
	order, err := r.scan(row.Scan)
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: string(r.kind) + " order", ID: ref}
	}
	if err != nil {
		r.logger.Error("Failed to get order", zap.String("table", r.table), zap.String("ref", ref), zap.Error(err))
		return nil, err
	}
	return order, nil
}

func (r *orderRepository) scanRows(rows *sql.Rows) ([]domain.Order, error) {
	var orders []domain.Order
	for rows.Next() {
		order, err := r.scan(rows.Scan)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

func (r *orderRepository) scan(scan func(...interface{}) error) (domain.Order, error) {
	var core domain.OrderCore
	var addressJSON, detailJSON []byte
	var shipmentJSON []byte
	var providerOrderID, providerPaymentID, trackingCode sql.NullString
	var paidAt sql.NullTime

	err := scan(
		&core.ID,
		&core.Status,
		&core.CustomerName,
		&core.CustomerPhone,
		&core.CustomerEmail,
		&addressJSON,
		&core.Amount,
		&detailJSON,
		&providerOrderID,
		&providerPaymentID,
		&core.Payment.Status,
		&paidAt,
		&shipmentJSON,
		&trackingCode,
		&core.RefundAmount,
		&core.RefundStatus,
		&core.Version,
		&core.CreatedAt,
		&core.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	core.Payment.ProviderOrderID = providerOrderID.String
	core.Payment.ProviderPaymentID = providerPaymentID.String
	if paidAt.Valid {
		t := paidAt.Time
		core.Payment.PaidAt = &t
	}
	if len(addressJSON) > 0 {
		if err := json.Unmarshal(addressJSON, &core.Address); err != nil {
			return nil, err
		}
	}
	if len(shipmentJSON) > 0 {
		var sh domain.Shipment
		if err := json.Unmarshal(shipmentJSON, &sh); err != nil {
			return nil, err
		}
		core.Shipment = &sh
	}

	if r.kind == domain.OrderKindCustom {
		order := &domain.CustomOrder{OrderCore: core}
		if len(detailJSON) > 0 {
			if err := json.Unmarshal(detailJSON, &order.Design); err != nil {
				return nil, err
			}
		}
		return order, nil
	}
	order := &domain.RegularOrder{OrderCore: core}
	if len(detailJSON) > 0 {
		if err := json.Unmarshal(detailJSON, &order.Items); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func marshalDetail(order domain.Order) ([]byte, error) {
	switch o := order.(type) {
	case *domain.RegularOrder:
		return json.Marshal(o.Items)
	case *domain.CustomOrder:
		return json.Marshal(o.Design)
	default:
		return nil, fmt.Errorf("unknown order variant %T", order)
	}
}

func marshalShipment(sh *domain.Shipment) ([]byte, sql.NullString, error) {
	if sh == nil {
		return nil, sql.NullString{}, nil
	}
	raw, err := json.Marshal(sh)
	if err != nil {
		return nil, sql.NullString{}, err
	}
	return raw, nullString(sh.TrackingCode), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
