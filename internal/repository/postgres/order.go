package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/kryzelc/poybash-furniture-sub001/internal/domain"
	"github.com/kryzelc/poybash-furniture-sub001/internal/repository"
	"github.com/kryzelc/poybash-furniture-sub001/pkg/database"
	apperrors "github.com/kryzelc/poybash-furniture-sub001/pkg/errors"
	"github.com/kryzelc/poybash-furniture-sub001/pkg/pagination"
)

const orderColumns = `id, user_id, items, subtotal, coupon_discount, delivery_fee, total,
	is_reservation, reservation_percentage, reservation_fee, fulfillment_method, payment_method,
	payment_reference, payment_proof, status, previous_status, canceled_by, refund, status_history,
	version, created_at, updated_at`

// orderSelectColumns reads the percentage as text so it parses losslessly
// into a decimal.
var orderSelectColumns = strings.Replace(orderColumns, "reservation_percentage", "reservation_percentage::text", 1)

// OrderRepository implements repository.OrderRepository using PostgreSQL.
// Items, refund details and the status history are JSONB documents on the
// order row so a whole order is written in one statement.
type OrderRepository struct {
	pool database.DBTX
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool database.DBTX) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// db returns the transaction bound to ctx by a Transactor, or the pool.
func (r *OrderRepository) db(ctx context.Context) database.DBTX {
	return database.Conn(ctx, r.pool)
}

type orderJSON struct {
	items   []byte
	refund  []byte
	history []byte
}

func marshalOrder(o *domain.Order) (orderJSON, error) {
	var (
		out orderJSON
		err error
	)
	if out.items, err = json.Marshal(o.Items); err != nil {
		return out, fmt.Errorf("marshal order items: %w", err)
	}
	if o.Refund != nil {
		if out.refund, err = json.Marshal(o.Refund); err != nil {
			return out, fmt.Errorf("marshal refund details: %w", err)
		}
	}
	history := o.StatusHistory
	if history == nil {
		history = []domain.StatusChange{}
	}
	if out.history, err = json.Marshal(history); err != nil {
		return out, fmt.Errorf("marshal status history: %w", err)
	}
	return out, nil
}

func scanOrder(row pgx.Row, extra ...any) (*domain.Order, error) {
	var (
		o                                       domain.Order
		pct                                     string
		fulfillment, status, previous, canceled string
		itemsJSON, refundJSON, historyJSON      []byte
	)
	dest := []any{
		&o.ID, &o.UserID, &itemsJSON, &o.Subtotal, &o.CouponDiscount, &o.DeliveryFee, &o.Total,
		&o.IsReservation, &pct, &o.ReservationFee, &fulfillment, &o.PaymentMethod,
		&o.PaymentReference, &o.PaymentProof, &status, &previous, &canceled, &refundJSON, &historyJSON,
		&o.Version, &o.CreatedAt, &o.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	var err error
	if o.ReservationPercentage, err = decimal.NewFromString(pct); err != nil {
		return nil, fmt.Errorf("parse reservation percentage: %w", err)
	}
	o.FulfillmentMethod = domain.FulfillmentMethod(fulfillment)
	o.Status = domain.OrderStatus(status)
	o.PreviousStatus = domain.OrderStatus(previous)
	o.CanceledBy = domain.CanceledBy(canceled)

	o.Items = []domain.OrderItem{}
	if len(itemsJSON) > 0 {
		if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
			return nil, fmt.Errorf("unmarshal order items: %w", err)
		}
	}
	if len(refundJSON) > 0 && string(refundJSON) != "null" {
		var refund domain.RefundDetails
		if err := json.Unmarshal(refundJSON, &refund); err != nil {
			return nil, fmt.Errorf("unmarshal refund details: %w", err)
		}
		o.Refund = &refund
	}
	o.StatusHistory = []domain.StatusChange{}
	if len(historyJSON) > 0 {
		if err := json.Unmarshal(historyJSON, &o.StatusHistory); err != nil {
			return nil, fmt.Errorf("unmarshal status history: %w", err)
		}
	}
	return &o, nil
}

// NextOrderNumber draws from order_number_seq.
func (r *OrderRepository) NextOrderNumber(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db(ctx).QueryRow(ctx, `SELECT nextval('order_number_seq')`).Scan(&n); err != nil {
		return 0, fmt.Errorf("next order number: %w", err)
	}
	return n, nil
}

// Create inserts a new order at version 1.
func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) (err error) {
	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)`

	ctx, end := database.TraceQuery(ctx, "CreateOrder", query)
	defer func() { end(err) }()

	js, err := marshalOrder(o)
	if err != nil {
		return err
	}
	o.Version = 1

	_, err = r.db(ctx).Exec(ctx, query,
		o.ID, o.UserID, js.items, o.Subtotal, o.CouponDiscount, o.DeliveryFee, o.Total,
		o.IsReservation, o.ReservationPercentage.String(), o.ReservationFee, string(o.FulfillmentMethod), o.PaymentMethod,
		o.PaymentReference, o.PaymentProof, string(o.Status), string(o.PreviousStatus), string(o.CanceledBy), js.refund, js.history,
		o.Version, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// GetByID retrieves an order.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	query := `SELECT ` + orderSelectColumns + ` FROM orders WHERE id = $1`

	o, err := scanOrder(r.db(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

// List returns orders matching filter, newest first, with the total count.
func (r *OrderRepository) List(ctx context.Context, filter repository.OrderFilter) ([]domain.Order, int, error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if filter.UserID != nil {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", argIndex))
		args = append(args, *filter.UserID)
		argIndex++
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, string(*filter.Status))
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total_count
		FROM orders
		%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d`,
		orderSelectColumns, whereClause, argIndex, argIndex+1,
	)

	params := pagination.Normalize(filter.Page, filter.PerPage)
	args = append(args, params.PerPage, params.Offset())

	rows, err := r.db(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var totalCount int
	orders := make([]domain.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows, &totalCount)
		if err != nil {
			return nil, 0, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate order rows: %w", err)
	}
	return orders, totalCount, nil
}

// Update locks the order row, applies fn and writes every mutable column
// back, incrementing version.
func (r *OrderRepository) Update(ctx context.Context, id string, fn func(o *domain.Order) error) (result *domain.Order, err error) {
	lockQuery := `SELECT ` + orderSelectColumns + ` FROM orders WHERE id = $1 FOR UPDATE`

	ctx, end := database.TraceQuery(ctx, "UpdateOrder", lockQuery)
	defer func() { end(err) }()

	err = database.WithTx(ctx, r.db(ctx), func(tx pgx.Tx) error {
		o, err := scanOrder(tx.QueryRow(ctx, lockQuery, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.ErrNotFound
			}
			return fmt.Errorf("lock order: %w", err)
		}

		if err := fn(o); err != nil {
			return err
		}
		if o.UpdatedAt.IsZero() {
			o.UpdatedAt = time.Now().UTC()
		}
		js, err := marshalOrder(o)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE orders
			SET items = $2, status = $3, previous_status = $4, canceled_by = $5, refund = $6,
				status_history = $7, version = version + 1, updated_at = $8
			WHERE id = $1`,
			id, js.items, string(o.Status), string(o.PreviousStatus), string(o.CanceledBy), js.refund,
			js.history, o.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("update order: %w", err)
		}

		o.Version++
		result = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
