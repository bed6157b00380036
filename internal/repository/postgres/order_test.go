package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kryzelc/poybash-furniture-sub001/internal/domain"
	"github.com/kryzelc/poybash-furniture-sub001/internal/repository"
	apperrors "github.com/kryzelc/poybash-furniture-sub001/pkg/errors"
)

var orderCols = []string{
	"id", "user_id", "items", "subtotal", "coupon_discount", "delivery_fee", "total",
	"is_reservation", "reservation_percentage", "reservation_fee", "fulfillment_method", "payment_method",
	"payment_reference", "payment_proof", "status", "previous_status", "canceled_by", "refund", "status_history",
	"version", "created_at", "updated_at",
}

func sampleOrder() *domain.Order {
	user := "user-001"
	return &domain.Order{
		ID:     "ORD-000001",
		UserID: &user,
		Items: []domain.OrderItem{
			{ProductID: 1, VariantID: "one-size_oak", Name: "Chair", Quantity: 2, UnitPrice: 5000,
				Warehouse: domain.WarehouseLorenzo, StockState: domain.StockReserved},
		},
		Subtotal:              10000,
		DeliveryFee:           500,
		Total:                 10500,
		IsReservation:         true,
		ReservationPercentage: decimal.RequireFromString("0.3"),
		ReservationFee:        3150,
		FulfillmentMethod:     domain.FulfillmentDelivery,
		PaymentMethod:         "gcash",
		Status:                domain.OrderStatusReserved,
		StatusHistory:         []domain.StatusChange{},
		CreatedAt:             fixedTime,
		UpdatedAt:             fixedTime,
	}
}

func orderRow(o *domain.Order) []any {
	items, _ := json.Marshal(o.Items)
	history, _ := json.Marshal(o.StatusHistory)
	var refund []byte
	if o.Refund != nil {
		refund, _ = json.Marshal(o.Refund)
	}
	return []any{
		o.ID, o.UserID, items, o.Subtotal, o.CouponDiscount, o.DeliveryFee, o.Total,
		o.IsReservation, o.ReservationPercentage.String(), o.ReservationFee, string(o.FulfillmentMethod), o.PaymentMethod,
		o.PaymentReference, o.PaymentProof, string(o.Status), string(o.PreviousStatus), string(o.CanceledBy), refund, history,
		o.Version, o.CreatedAt, o.UpdatedAt,
	}
}

func TestOrderRepository_NextOrderNumber(t *testing.T) {
	mock := newMock(t)
	repo := NewOrderRepository(mock)

	mock.ExpectQuery("SELECT nextval").
		WillReturnRows(pgxmock.NewRows([]string{"nextval"}).AddRow(int64(7)))

	n, err := repo.NextOrderNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_Create(t *testing.T) {
	mock := newMock(t)
	repo := NewOrderRepository(mock)
	o := sampleOrder()

	mock.ExpectExec("INSERT INTO orders").
		WithArgs(o.ID, o.UserID, pgxmock.AnyArg(), o.Subtotal, o.CouponDiscount, o.DeliveryFee, o.Total,
			true, "0.3", o.ReservationFee, "delivery", "gcash",
			"", "", "reserved", "", "", pgxmock.AnyArg(), pgxmock.AnyArg(),
			1, fixedTime, fixedTime).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), o))
	assert.Equal(t, 1, o.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_GetByID(t *testing.T) {
	mock := newMock(t)
	repo := NewOrderRepository(mock)
	o := sampleOrder()
	o.Version = 1

	mock.ExpectQuery("SELECT .+ FROM orders WHERE id").
		WithArgs(o.ID).
		WillReturnRows(pgxmock.NewRows(orderCols).AddRow(orderRow(o)...))

	got, err := repo.GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusReserved, got.Status)
	assert.True(t, got.ReservationPercentage.Equal(decimal.RequireFromString("0.3")))
	require.Len(t, got.Items, 1)
	assert.Equal(t, domain.WarehouseLorenzo, got.Items[0].Warehouse)
	assert.Nil(t, got.Refund)
	assert.Equal(t, "user-001", *got.UserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_GetByID_NotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewOrderRepository(mock)

	mock.ExpectQuery("SELECT .+ FROM orders WHERE id").
		WithArgs("ORD-999999").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "ORD-999999")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_List_ByUser(t *testing.T) {
	mock := newMock(t)
	repo := NewOrderRepository(mock)
	o := sampleOrder()
	user := *o.UserID

	mock.ExpectQuery("SELECT .+ FROM orders WHERE user_id = \\$1 ORDER BY created_at DESC").
		WithArgs(user, 20, 0).
		WillReturnRows(pgxmock.NewRows(append(append([]string{}, orderCols...), "total_count")).
			AddRow(append(orderRow(o), 1)...))

	got, total, err := repo.List(context.Background(), repository.OrderFilter{UserID: &user})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, got, 1)
	assert.Equal(t, o.ID, got[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_Update_LocksAndWrites(t *testing.T) {
	mock := newMock(t)
	repo := NewOrderRepository(mock)
	o := sampleOrder()
	o.Version = 1

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM orders WHERE id = \\$1 FOR UPDATE").
		WithArgs(o.ID).
		WillReturnRows(pgxmock.NewRows(orderCols).AddRow(orderRow(o)...))
	mock.ExpectExec("UPDATE orders").
		WithArgs(o.ID, pgxmock.AnyArg(), "processing", "", "", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	got, err := repo.Update(context.Background(), o.ID, func(o *domain.Order) error {
		o.RecordTransition(domain.OrderStatusProcessing, domain.Actor{UserID: "s1", Role: domain.RoleStaff}, "", fixedTime)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusProcessing, got.Status)
	assert.Equal(t, 2, got.Version)
	assert.Len(t, got.StatusHistory, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_Update_FnErrorRollsBack(t *testing.T) {
	mock := newMock(t)
	repo := NewOrderRepository(mock)
	o := sampleOrder()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM orders WHERE id = \\$1 FOR UPDATE").
		WithArgs(o.ID).
		WillReturnRows(pgxmock.NewRows(orderCols).AddRow(orderRow(o)...))
	mock.ExpectRollback()

	boom := errors.New("transition rejected")
	_, err := repo.Update(context.Background(), o.ID, func(o *domain.Order) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}
