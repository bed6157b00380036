package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kryzelc/poybash-furniture-sub001/internal/domain"
	"github.com/kryzelc/poybash-furniture-sub001/internal/event"
	"github.com/kryzelc/poybash-furniture-sub001/internal/repository"
	"github.com/kryzelc/poybash-furniture-sub001/internal/repository/memory"
	apperrors "github.com/kryzelc/poybash-furniture-sub001/pkg/errors"
)

// --- Mock Repository ---

type mockOrderRepository struct {
	mock.Mock
}

func (m *mockOrderRepository) NextOrderNumber(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockOrderRepository) Create(ctx context.Context, o *domain.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *mockOrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderRepository) List(ctx context.Context, filter repository.OrderFilter) ([]domain.Order, int, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.Order), args.Int(1), args.Error(2)
}

func (m *mockOrderRepository) Update(ctx context.Context, id string, fn func(o *domain.Order) error) (*domain.Order, error) {
	args := m.Called(ctx, id, fn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

// saveFailingOrders runs the caller's update and then fails the save, as a
// dropped connection at commit time would, for the next `failures` updates.
type saveFailingOrders struct {
	repository.OrderRepository
	failures int
}

func (r *saveFailingOrders) Update(ctx context.Context, id string, fn func(o *domain.Order) error) (*domain.Order, error) {
	if r.failures == 0 {
		return r.OrderRepository.Update(ctx, id, fn)
	}
	r.failures--
	return r.OrderRepository.Update(ctx, id, func(o *domain.Order) error {
		if err := fn(o); err != nil {
			return err
		}
		return errors.New("commit transaction: connection reset")
	})
}

// --- Test Helpers ---

func (f *fixture) place(t *testing.T, actor domain.Actor, lines ...OrderLineInput) *domain.Order {
	t.Helper()
	o, err := f.orders.CreateOrder(context.Background(), actor, pickupOrder(lines...))
	require.NoError(t, err)
	return o
}

func (f *fixture) advance(t *testing.T, actor domain.Actor, id string, statuses ...domain.OrderStatus) *domain.Order {
	t.Helper()
	var (
		o   *domain.Order
		err error
	)
	for _, s := range statuses {
		o, err = f.orders.TransitionStatus(context.Background(), actor, id, s, "")
		require.NoError(t, err, "move to %s", s)
	}
	return o
}

func (f *fixture) available(t *testing.T, productID int64, variantID string) int {
	t.Helper()
	n, err := f.ledger.Available(context.Background(), domain.VariantRef{ProductID: productID, VariantID: variantID}, nil)
	require.NoError(t, err)
	return n
}

// --- Tests ---

func TestCreateOrder_Success(t *testing.T) {
	f := newFixture(t)
	p := f.createChair(t)
	f.setStock(t, p.ID, oakVariant, domain.WarehouseLorenzo, 2, 0)
	f.setStock(t, p.ID, oakVariant, domain.WarehouseOroquieta, 5, 0)
	f.setStock(t, p.ID, walnutVariant, domain.WarehouseLorenzo, 5, 0)

	o, err := f.orders.CreateOrder(context.Background(), customer, CreateOrderInput{
		UserID:            strPtr("someone-else"),
		Items:             []OrderLineInput{line(p.ID, oakVariant, 3), line(p.ID, walnutVariant, 1)},
		DeliveryFee:       20000,
		FulfillmentMethod: domain.FulfillmentDelivery,
		PaymentMethod:     "gcash",
	})
	require.NoError(t, err)

	assert.Equal(t, "ORD-000001", o.ID)
	require.NotNil(t, o.UserID)
	assert.Equal(t, customer.UserID, *o.UserID, "customers always order for themselves")
	assert.Equal(t, domain.OrderStatusPending, o.Status)
	assert.Equal(t, int64(3*300000+350000), o.Subtotal)
	assert.Equal(t, o.Subtotal+20000, o.Total)
	assert.Zero(t, o.ReservationFee)

	require.Len(t, o.Items, 2)
	assert.Equal(t, domain.WarehouseOroquieta, o.Items[0].Warehouse, "single warehouse preferred")
	assert.Equal(t, 3, o.Items[0].Quantity)
	assert.Equal(t, domain.StockReserved, o.Items[0].StockState)
	assert.Equal(t, "Natural Oak", o.Items[0].Color)
	assert.Equal(t, domain.OneSize, o.Items[0].Size)

	assert.Equal(t, 3, f.stock(t, p.ID, oakVariant, domain.WarehouseOroquieta).Reserved)
	require.Len(t, o.StatusHistory, 1)
	assert.Equal(t, domain.OrderStatusPending, o.StatusHistory[0].To)
	assert.Len(t, f.pub.Events(event.TopicOrderCreated), 1)
}

func TestCreateOrder_ReservationStartsReserved(t *testing.T) {
	f := newFixture(t)
	p := f.createChair(t)
	f.setStock(t, p.ID, walnutVariant, domain.WarehouseLorenzo, 5, 0)

	in := pickupOrder(line(p.ID, walnutVariant, 1))
	in.IsReservation = true
	in.ReservationPercentage = decimal.RequireFromString("0.3")
	o, err := f.orders.CreateOrder(context.Background(), customer, in)
	require.NoError(t, err)

	assert.Equal(t, domain.OrderStatusReserved, o.Status)
	assert.Equal(t, int64(105000), o.ReservationFee)

	in.ReservationPercentage = decimal.NewFromInt(1)
	o, err = f.orders.CreateOrder(context.Background(), customer, in)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, o.Status, "full upfront payment is a plain order")
}

func TestCreateOrder_Validation(t *testing.T) {
	f := newFixture(t)
	p := f.createChair(t)
	f.setStock(t, p.ID, oakVariant, domain.WarehouseLorenzo, 5, 0)
	ctx := context.Background()

	tests := []struct {
		name  string
		input func() CreateOrderInput
		field string
	}{
		{"no items", func() CreateOrderInput { return pickupOrder() }, "items"},
		{"pickup with delivery fee", func() CreateOrderInput {
			in := pickupOrder(line(p.ID, oakVariant, 1))
			in.DeliveryFee = 100
			return in
		}, "delivery_fee"},
		{"missing payment method", func() CreateOrderInput {
			in := pickupOrder(line(p.ID, oakVariant, 1))
			in.PaymentMethod = " "
			return in
		}, "payment_method"},
		{"reservation above 100%", func() CreateOrderInput {
			in := pickupOrder(line(p.ID, oakVariant, 1))
			in.IsReservation = true
			in.ReservationPercentage = decimal.RequireFromString("1.5")
			return in
		}, "reservation_percentage"},
		{"coupon above total", func() CreateOrderInput {
			in := pickupOrder(line(p.ID, oakVariant, 1))
			in.CouponDiscount = 300001
			return in
		}, "coupon_discount"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.orders.CreateOrder(ctx, staff, tt.input())
			var ve *domain.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}

	assert.Zero(t, f.stock(t, p.ID, oakVariant, domain.WarehouseLorenzo).Reserved)

	_, err := f.orders.CreateOrder(ctx, clerk, pickupOrder(line(p.ID, oakVariant, 1)))
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
}

func TestCreateOrder_DiscountNeedsStaff(t *testing.T) {
	f := newFixture(t)
	p := f.createChair(t)
	f.setStock(t, p.ID, oakVariant, domain.WarehouseLorenzo, 5, 0)
	ctx := context.Background()

	in := pickupOrder(line(p.ID, oakVariant, 1))
	in.CouponDiscount = 300000
	_, err := f.orders.CreateOrder(ctx, customer, in)
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
	assert.Zero(t, f.stock(t, p.ID, oakVariant, domain.WarehouseLorenzo).Reserved)
	assert.Empty(t, f.pub.Events(event.TopicOrderCreated))

	in.CouponDiscount = 50000
	o, err := f.orders.CreateOrder(ctx, staff, in)
	require.NoError(t, err)
	assert.Equal(t, int64(50000), o.CouponDiscount)
	assert.Equal(t, int64(250000), o.Total)
}

func TestCancelOrder_FailedSaveUndoesRelease(t *testing.T) {
	repo := &saveFailingOrders{OrderRepository: memory.NewOrderRepository()}
	f := newFixtureWithOrders(t, repo)
	p := f.createChair(t)
	f.setStock(t, p.ID, oakVariant, domain.WarehouseLorenzo, 5, 0)
	ctx := context.Background()

	first := f.place(t, customer, line(p.ID, oakVariant, 2))
	second := f.place(t, stranger, line(p.ID, oakVariant, 2))
	stockEvents := len(f.pub.Events(event.TopicInventoryUpdated))

	repo.failures = 1
	_, err := f.orders.CancelOrder(ctx, customer, first.ID, "changed my mind")
	require.Error(t, err)

	assert.Equal(t, 4, f.stock(t, p.ID, oakVariant, domain.WarehouseLorenzo).Reserved)
	stored, err := f.orders.GetOrder(ctx, customer, first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, stored.Status)
	assert.Equal(t, domain.StockReserved, stored.Items[0].StockState)
	assert.Len(t, f.pub.Events(event.TopicInventoryUpdated), stockEvents, "no stock event for an undone release")

	_, err = f.orders.CancelOrder(ctx, customer, first.ID, "changed my mind")
	require.NoError(t, err)

	s := f.stock(t, p.ID, oakVariant, domain.WarehouseLorenzo)
	assert.Equal(t, 5, s.Quantity)
	assert.Equal(t, 2, s.Reserved, "the other order keeps its reservation")

	other, err := f.orders.GetOrder(ctx, stranger, second.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, other.Status)
}

func TestTransitionStatus_FailedSaveUndoesCommit(t *testing.T) {
	repo := &saveFailingOrders{OrderRepository: memory.NewOrderRepository()}
	f := newFixtureWithOrders(t, repo)
	p := f.createChair(t)
	f.setStock(t, p.ID, oakVariant, domain.WarehouseLorenzo, 5, 0)
	ctx := context.Background()

	o := f.place(t, customer, line(p.ID, oakVariant, 2))
	o = f.advance(t, staff, o.ID, domain.OrderStatusProcessing, domain.OrderStatusReadyForPickup)

	repo.failures = 1
	_, err := f.orders.TransitionStatus(ctx, staff, o.ID, domain.OrderStatusCompleted, "")
	require.Error(t, err)
	s := f.stock(t, p.ID, oakVariant, domain.WarehouseLorenzo)
	assert.Equal(t, 5, s.Quantity)
	assert.Equal(t, 2, s.Reserved)

	o, err = f.orders.TransitionStatus(ctx, staff, o.ID, domain.OrderStatusCompleted, "")
	require.NoError(t, err)
	assert.Equal(t, domain.StockCommitted, o.Items[0].StockState)
	s = f.stock(t, p.ID, oakVariant, domain.WarehouseLorenzo)
	assert.Equal(t, 3, s.Quantity)
	assert.Zero(t, s.Reserved)
}

func TestCreateOrder_ReleasesStockWhenSaveFails(t *testing.T) {
	repo := new(mockOrderRepository)
	f := newFixtureWithOrders(t, repo)
	p := f.createChair(t)
	f.setStock(t, p.ID, oakVariant, domain.WarehouseLorenzo, 5, 0)
	ctx := context.Background()

	repo.On("NextOrderNumber", ctx).Return(int64(42), nil)
	repo.On("Create", ctx, mock.AnythingOfType("*domain.Order")).Return(errors.New("connection reset"))

	_, err := f.orders.CreateOrder(ctx, staff, pickupOrder(line(p.ID, oakVariant, 2)))
	require.Error(t, err)
	assert.Equal(t, 5, f.available(t, p.ID, oakVariant))
	repo.AssertExpectations(t)
}

// A customer cancelling a pending order returns its units to availability.
func TestCancelOrder_CustomerReleasesStock(t *testing.T) {
	f := newFixture(t)
	p := f.createChair(t)
	f.setStock(t, p.ID, oakVariant, domain.WarehouseLorenzo, 5, 0)
	ctx := context.Background()

	before := f.available(t, p.ID, oakVariant)
	o := f.place(t, customer, line(p.ID, oakVariant, 3))
	assert.Equal(t, before-3, f.available(t, p.ID, oakVariant))

	o, err := f.orders.CancelOrder(ctx, customer, o.ID, "changed my mind")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, o.Status)
	assert.Equal(t, domain.CanceledByCustomer, o.CanceledBy)
	assert.Equal(t, domain.StockReleased, o.Items[0].StockState)
	assert.Equal(t, before, f.available(t, p.ID, oakVariant))
	assert.Len(t, f.pub.Events(event.TopicOrderStatusChanged), 1)
}

func TestCancelOrder_Idempotent(t *testing.T) {
	f := newFixture(t)
	p := f.createChair(t)
	f.setStock(t, p.ID, oakVariant, domain.WarehouseLorenzo, 5, 0)
	ctx := context.Background()

	first := f.place(t, customer, line(p.ID, oakVariant, 2))
	f.place(t, stranger, line(p.ID, oakVariant, 2))

	_, err := f.orders.CancelOrder(ctx, customer, first.ID, "")
	require.NoError(t, err)
	again, err := f.orders.CancelOrder(ctx, customer, first.ID, "")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, again.Status)

	_, err = f.orders.TransitionStatus(ctx, staff, first.ID, domain.OrderStatusCancelled, "")
	require.NoError(t, err)

	assert.Equal(t, 2, f.stock(t, p.ID, oakVariant, domain.WarehouseLorenzo).Reserved, "other order keeps its reservation")
	assert.Len(t, f.pub.Events(event.TopicOrderStatusChanged), 1)
}

func TestCancelOrder_CustomerRestrictions(t *testing.T) {
	f := newFixture(t)
	p := f.createChair(t)
	f.setStock(t, p.ID, oakVariant, domain.WarehouseLorenzo, 5, 0)
	ctx := context.Background()

	o := f.place(t, customer, line(p.ID, oakVariant, 1))

	_, err := f.orders.CancelOrder(ctx, stranger, o.ID, "")
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	f.advance(t, staff, o.ID, domain.OrderStatusProcessing)
	_, err = f.orders.CancelOrder(ctx, customer, o.ID, "")
	var transErr *domain.InvalidStateTransitionError
	require.ErrorAs(t, err, &transErr)
	assert.Equal(t, domain.OrderStatusProcessing, transErr.Current)

	o, err = f.orders.CancelOrder(ctx, staff, o.ID, "out of stock at pickup")
	require.NoError(t, err)
	assert.Equal(t, domain.CanceledByAdmin, o.CanceledBy)

	_, err = f.orders.CancelOrder(ctx, customer, "ORD-999999", "")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

// Staff cannot step an order back; admin can.
func TestTransitionStatus_BackwardNeedsOverride(t *testing.T) {
	f := newFixture(t)
	p := f.createChair(t)
	f.setStock(t, p.ID, oakVariant, domain.WarehouseLorenzo, 5, 0)
	ctx := context.Background()

	o := f.place(t, customer, line(p.ID, oakVariant, 1))
	f.advance(t, staff, o.ID, domain.OrderStatusProcessing, domain.OrderStatusReadyForPickup)

	_, err := f.orders.TransitionStatus(ctx, staff, o.ID, domain.OrderStatusProcessing, "")
	var transErr *domain.InvalidStateTransitionError
	require.ErrorAs(t, err, &transErr)
	assert.Equal(t, domain.OrderStatusReadyForPickup, transErr.Current)
	assert.Equal(t, []domain.OrderStatus{domain.OrderStatusCancelled, domain.OrderStatusCompleted}, transErr.Allowed)

	o, err = f.orders.TransitionStatus(ctx, admin, o.ID, domain.OrderStatusProcessing, "wrong order marked ready")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusProcessing, o.Status)

	// One step back from processing lands on the entry state only.
	_, err = f.orders.TransitionStatus(ctx, admin, o.ID, domain.OrderStatusReserved, "")
	require.ErrorAs(t, err, &transErr)
	o, err = f.orders.TransitionStatus(ctx, admin, o.ID, domain.OrderStatusPending, "")
	require.NoError(t, err)
	assert.Equal(t, domain.StockReserved, o.Items[0].StockState, "stepping back keeps the reservation")

	last := o.StatusHistory[len(o.StatusHistory)-1]
	assert.Equal(t, domain.OrderStatusProcessing, last.From)
	assert.Equal(t, domain.OrderStatusPending, last.To)
	assert.Equal(t, admin.UserID, last.By)

	_, err = f.orders.TransitionStatus(ctx, customer, o.ID, domain.OrderStatusProcessing, "")
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
}

func TestTransitionStatus_CompleteCommitsStock(t *testing.T) {
	f := newFixture(t)
	p := f.createChair(t)
	f.setStock(t, p.ID, oakVariant, domain.WarehouseLorenzo, 5, 0)
	ctx := context.Background()

	o := f.place(t, customer, line(p.ID, oakVariant, 2))
	o = f.advance(t, clerk, o.ID,
		domain.OrderStatusProcessing, domain.OrderStatusReadyForPickup, domain.OrderStatusCompleted)

	assert.Equal(t, domain.StockCommitted, o.Items[0].StockState)
	s := f.stock(t, p.ID, oakVariant, domain.WarehouseLorenzo)
	assert.Equal(t, 3, s.Quantity)
	assert.Zero(t, s.Reserved)

	allowed, err := f.orders.AllowedTransitions(ctx, owner, o.ID)
	require.NoError(t, err)
	assert.Empty(t, allowed, "completed is locked even for owners")

	_, err = f.orders.TransitionStatus(ctx, owner, o.ID, domain.OrderStatusProcessing, "")
	var transErr *domain.InvalidStateTransitionError
	assert.ErrorAs(t, err, &transErr)
}

func TestTransitionStatus_ReopenReservesAgain(t *testing.T) {
	f := newFixture(t)
	p := f.createChair(t)
	f.setStock(t, p.ID, oakVariant, domain.WarehouseLorenzo, 3, 0)
	ctx := context.Background()

	o := f.place(t, customer, line(p.ID, oakVariant, 2))
	f.advance(t, staff, o.ID, domain.OrderStatusCancelled)

	_, err := f.orders.TransitionStatus(ctx, staff, o.ID, domain.OrderStatusPending, "")
	var transErr *domain.InvalidStateTransitionError
	require.ErrorAs(t, err, &transErr)

	o, err = f.orders.TransitionStatus(ctx, admin, o.ID, domain.OrderStatusPending, "customer paid after all")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, o.Status)
	assert.Empty(t, o.CanceledBy)
	assert.Equal(t, domain.StockReserved, o.Items[0].StockState)
	assert.Equal(t, 2, f.stock(t, p.ID, oakVariant, domain.WarehouseLorenzo).Reserved)
}

func TestTransitionStatus_ReopenFailsWithoutStock(t *testing.T) {
	f := newFixture(t)
	p := f.createChair(t)
	f.setStock(t, p.ID, oakVariant, domain.WarehouseLorenzo, 2, 0)
	ctx := context.Background()

	o := f.place(t, customer, line(p.ID, oakVariant, 2))
	f.advance(t, admin, o.ID, domain.OrderStatusCancelled)
	f.place(t, stranger, line(p.ID, oakVariant, 1))

	_, err := f.orders.TransitionStatus(ctx, admin, o.ID, domain.OrderStatusPending, "")
	shortage, ok := domain.IsInsufficientStock(err)
	require.True(t, ok)
	assert.Equal(t, 1, shortage.Available)

	got, err := f.orders.GetOrder(ctx, admin, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, got.Status)
	assert.Equal(t, domain.StockReleased, got.Items[0].StockState)
	assert.Equal(t, 1, f.stock(t, p.ID, oakVariant, domain.WarehouseLorenzo).Reserved)
}

func TestRequestRefund(t *testing.T) {
	f := newFixture(t)
	p := f.createChair(t)
	f.setStock(t, p.ID, oakVariant, domain.WarehouseLorenzo, 5, 0)
	f.setStock(t, p.ID, walnutVariant, domain.WarehouseLorenzo, 5, 0)
	ctx := context.Background()

	t.Run("processing order moves to refund-requested", func(t *testing.T) {
		o := f.place(t, customer, line(p.ID, oakVariant, 1))
		f.advance(t, staff, o.ID, domain.OrderStatusProcessing)

		o, err := f.orders.RequestRefund(ctx, customer, o.ID, []int{0}, "wrong color")
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusRefundRequested, o.Status)
		assert.Equal(t, domain.OrderStatusProcessing, o.PreviousStatus)
		assert.Equal(t, domain.RefundRequested, o.Items[0].RefundStatus)

		allowed, err := f.orders.AllowedTransitions(ctx, admin, o.ID)
		require.NoError(t, err)
		assert.Empty(t, allowed)
	})

	t.Run("completed order keeps status", func(t *testing.T) {
		o := f.place(t, customer, line(p.ID, oakVariant, 1), line(p.ID, walnutVariant, 1))
		f.advance(t, staff, o.ID,
			domain.OrderStatusProcessing, domain.OrderStatusReadyForPickup, domain.OrderStatusCompleted)

		o, err := f.orders.RequestRefund(ctx, customer, o.ID, []int{1}, "scratched")
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusCompleted, o.Status)
		assert.Equal(t, domain.RefundRequested, o.Items[1].RefundStatus)

		_, err = f.orders.RequestRefund(ctx, customer, o.ID, []int{1}, "again")
		var ve *domain.ValidationError
		assert.ErrorAs(t, err, &ve)

		// Other items stay open for their own requests.
		_, err = f.orders.RequestRefund(ctx, customer, o.ID, []int{0}, "also scratched")
		assert.NoError(t, err)
	})

	t.Run("rejections", func(t *testing.T) {
		o := f.place(t, customer, line(p.ID, oakVariant, 1))

		_, err := f.orders.RequestRefund(ctx, stranger, o.ID, []int{0}, "mine now")
		assert.ErrorIs(t, err, domain.ErrPermissionDenied)

		_, err = f.orders.RequestRefund(ctx, customer, o.ID, []int{0}, "too early")
		var transErr *domain.InvalidStateTransitionError
		assert.ErrorAs(t, err, &transErr)

		_, err = f.orders.RequestRefund(ctx, customer, o.ID, []int{3}, "bad index")
		var ve *domain.ValidationError
		assert.ErrorAs(t, err, &ve)
	})
}

func TestGetAndListOrders_Visibility(t *testing.T) {
	f := newFixture(t)
	p := f.createChair(t)
	f.setStock(t, p.ID, oakVariant, domain.WarehouseLorenzo, 5, 0)
	ctx := context.Background()

	mine := f.place(t, customer, line(p.ID, oakVariant, 1))
	f.place(t, stranger, line(p.ID, oakVariant, 1))

	_, err := f.orders.GetOrder(ctx, stranger, mine.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	orders, total, err := f.orders.ListOrders(ctx, customer, repository.OrderFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, mine.ID, orders[0].ID)

	_, total, err = f.orders.ListOrders(ctx, staff, repository.OrderFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestCheckoutCart(t *testing.T) {
	f := newFixture(t)
	p := f.createChair(t)
	f.setStock(t, p.ID, oakVariant, domain.WarehouseLorenzo, 5, 0)
	ctx := context.Background()

	_, err := f.orders.CheckoutCart(ctx, customer, CheckoutInput{FulfillmentMethod: domain.FulfillmentPickup, PaymentMethod: "cash"})
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)

	_, err = f.carts.AddLine(ctx, customer.UserID, AddLineInput{ProductID: p.ID, VariantID: oakVariant, Quantity: 2})
	require.NoError(t, err)
	_, err = f.carts.ApplyDiscount(ctx, customer, customer.UserID, 10000)
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
	_, err = f.catalog.UpsertVariant(ctx, admin, p.ID, VariantInput{Color: "Natural Oak", Price: 999999})
	require.NoError(t, err)

	o, err := f.orders.CheckoutCart(ctx, customer, CheckoutInput{FulfillmentMethod: domain.FulfillmentPickup, PaymentMethod: "cash"})
	require.NoError(t, err)
	assert.Equal(t, int64(300000), o.Items[0].UnitPrice, "cart snapshot price is charged")
	assert.Equal(t, int64(600000), o.Total)
	assert.Equal(t, 2, f.stock(t, p.ID, oakVariant, domain.WarehouseLorenzo).Reserved)

	cart, err := f.carts.GetCart(ctx, customer.UserID)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
}

func TestCheckoutCart_HonoursStaffDiscount(t *testing.T) {
	f := newFixture(t)
	p := f.createChair(t)
	f.setStock(t, p.ID, oakVariant, domain.WarehouseLorenzo, 5, 0)
	ctx := context.Background()

	_, err := f.carts.AddLine(ctx, customer.UserID, AddLineInput{ProductID: p.ID, VariantID: oakVariant, Quantity: 2})
	require.NoError(t, err)
	_, err = f.carts.ApplyDiscount(ctx, staff, customer.UserID, 10000)
	require.NoError(t, err)

	o, err := f.orders.CheckoutCart(ctx, customer, CheckoutInput{FulfillmentMethod: domain.FulfillmentPickup, PaymentMethod: "cash"})
	require.NoError(t, err)
	assert.Equal(t, int64(10000), o.CouponDiscount)
	assert.Equal(t, int64(590000), o.Total)
}
