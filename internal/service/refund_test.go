package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kryzelc/poybash-furniture-sub001/internal/domain"
	"github.com/kryzelc/poybash-furniture-sub001/internal/event"
)

// completedOrder places and completes an order with one oak and one walnut
// item, 650000 centavos in total.
func completedOrder(t *testing.T, f *fixture) (*domain.Product, *domain.Order) {
	t.Helper()
	p := f.createChair(t)
	f.setStock(t, p.ID, oakVariant, domain.WarehouseLorenzo, 5, 0)
	f.setStock(t, p.ID, walnutVariant, domain.WarehouseLorenzo, 5, 0)
	o := f.place(t, customer, line(p.ID, oakVariant, 1), line(p.ID, walnutVariant, 1))
	o = f.advance(t, staff, o.ID,
		domain.OrderStatusProcessing, domain.OrderStatusReadyForPickup, domain.OrderStatusCompleted)
	require.Equal(t, int64(650000), o.Total)
	return p, o
}

// A partial refund on a completed order locks it; a second refund is rejected.
func TestProcessRefund_PartialOnCompleted(t *testing.T) {
	f := newFixture(t)
	p, o := completedOrder(t, f)
	ctx := context.Background()

	got, err := f.refunds.ProcessRefund(ctx, admin, o.ID, RefundInput{
		Method:        "gcash",
		Amount:        30000,
		Reason:        "armrest scratched",
		ItemsRefunded: []int{1},
	})
	require.NoError(t, err)

	require.NotNil(t, got.Refund)
	assert.Equal(t, int64(30000), got.Refund.RefundAmount)
	assert.Equal(t, []int{1}, got.Refund.ItemsRefunded)
	assert.Equal(t, admin.UserID, got.Refund.ProcessedBy.UserID)
	assert.Equal(t, admin.Name, got.Refund.ProcessedBy.Name)
	assert.False(t, got.Refund.ProcessedAt.IsZero())
	assert.Equal(t, domain.OrderStatusCompleted, got.Status)
	assert.Equal(t, domain.RefundRefunded, got.Items[1].RefundStatus)
	assert.Equal(t, domain.RefundNone, got.Items[0].RefundStatus)

	_, err = f.refunds.ProcessRefund(ctx, admin, o.ID, RefundInput{Method: "gcash", Amount: 100, Reason: "again"})
	assert.ErrorIs(t, err, domain.ErrAlreadyRefunded)

	// Refunds never restock.
	assert.Equal(t, 4, f.stock(t, p.ID, walnutVariant, domain.WarehouseLorenzo).Quantity)
	assert.Len(t, f.pub.Events(event.TopicOrderRefunded), 1)
}

func TestProcessRefund_FullOnCancelled(t *testing.T) {
	f := newFixture(t)
	p := f.createChair(t)
	f.setStock(t, p.ID, oakVariant, domain.WarehouseLorenzo, 5, 0)
	ctx := context.Background()

	o := f.place(t, customer, line(p.ID, oakVariant, 1))
	_, err := f.orders.CancelOrder(ctx, customer, o.ID, "")
	require.NoError(t, err)

	got, err := f.refunds.ProcessRefund(ctx, owner, o.ID, RefundInput{Method: "bank", Amount: o.Total, Reason: "prepaid order cancelled"})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusRefunded, got.Status)
	assert.True(t, got.Refund.IsFull())
	assert.Equal(t, domain.RefundRefunded, got.Items[0].RefundStatus)

	allowed, err := f.orders.AllowedTransitions(ctx, owner, o.ID)
	require.NoError(t, err)
	assert.Empty(t, allowed)
}

func TestProcessRefund_PartialReturnsToPreviousStatus(t *testing.T) {
	f := newFixture(t)
	p := f.createChair(t)
	f.setStock(t, p.ID, oakVariant, domain.WarehouseLorenzo, 5, 0)
	ctx := context.Background()

	o := f.place(t, customer, line(p.ID, oakVariant, 2))
	f.advance(t, staff, o.ID, domain.OrderStatusProcessing, domain.OrderStatusReadyForPickup)
	_, err := f.orders.RequestRefund(ctx, customer, o.ID, []int{0}, "one leg shorter")
	require.NoError(t, err)

	got, err := f.refunds.ProcessRefund(ctx, admin, o.ID, RefundInput{Method: "cash", Amount: 50000, Reason: "goodwill", ItemsRefunded: []int{0}})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusReadyForPickup, got.Status)
	assert.Empty(t, got.PreviousStatus)
	assert.Equal(t, domain.RefundRefunded, got.Items[0].RefundStatus)
}

func TestProcessRefund_Rejections(t *testing.T) {
	f := newFixture(t)
	p, o := completedOrder(t, f)
	ctx := context.Background()

	_, err := f.refunds.ProcessRefund(ctx, staff, o.ID, RefundInput{Method: "gcash", Amount: 1, Reason: "x"})
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	tests := []struct {
		name string
		in   RefundInput
		max  int64
	}{
		{"zero amount", RefundInput{Method: "gcash", Amount: 0, Reason: "x"}, 650000},
		{"above total", RefundInput{Method: "gcash", Amount: 650001, Reason: "x"}, 650000},
		{"above named items", RefundInput{Method: "gcash", Amount: 300001, Reason: "x", ItemsRefunded: []int{0}}, 300000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.refunds.ProcessRefund(ctx, admin, o.ID, tt.in)
			var amtErr *domain.InvalidAmountError
			require.ErrorAs(t, err, &amtErr)
			assert.Equal(t, tt.max, amtErr.Max)
		})
	}

	_, err = f.refunds.ProcessRefund(ctx, admin, o.ID, RefundInput{Method: "gcash", Amount: 1, Reason: "x", ItemsRefunded: []int{0, 0}})
	var ve *domain.ValidationError
	assert.ErrorAs(t, err, &ve)

	pending := f.place(t, customer, line(p.ID, oakVariant, 1))
	_, err = f.refunds.ProcessRefund(ctx, admin, pending.ID, RefundInput{Method: "gcash", Amount: 1, Reason: "x"})
	var transErr *domain.InvalidStateTransitionError
	require.ErrorAs(t, err, &transErr)
	assert.Equal(t, domain.OrderStatusPending, transErr.Current)

	got, err := f.orders.GetOrder(ctx, admin, o.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Refund, "failed attempts leave no refund behind")
}
