package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func orderIn(status OrderStatus, reservation bool) *Order {
	pct := decimal.NewFromInt(1)
	if reservation {
		pct = decimal.NewFromFloat(0.3)
	}
	return &Order{Status: status, IsReservation: reservation, ReservationPercentage: pct}
}

func TestAllowedTransitions_EveryRoleAndStatus(t *testing.T) {
	forward := map[OrderStatus][]OrderStatus{
		OrderStatusPending:        {OrderStatusCancelled, OrderStatusProcessing},
		OrderStatusReserved:       {OrderStatusCancelled, OrderStatusProcessing},
		OrderStatusProcessing:     {OrderStatusCancelled, OrderStatusReadyForPickup},
		OrderStatusReadyForPickup: {OrderStatusCancelled, OrderStatusCompleted},
	}
	privileged := map[OrderStatus][]OrderStatus{
		OrderStatusPending:        {OrderStatusCancelled, OrderStatusProcessing},
		OrderStatusReserved:       {OrderStatusCancelled, OrderStatusProcessing},
		OrderStatusProcessing:     {OrderStatusCancelled, OrderStatusPending, OrderStatusReadyForPickup},
		OrderStatusReadyForPickup: {OrderStatusCancelled, OrderStatusCompleted, OrderStatusProcessing},
		OrderStatusCancelled:      {OrderStatusPending},
	}
	expected := map[Role]map[OrderStatus][]OrderStatus{
		RoleCustomer:       {},
		RoleStaff:          forward,
		RoleInventoryClerk: forward,
		RoleAdmin:          privileged,
		RoleOwner:          privileged,
	}

	for _, role := range ValidRoles() {
		for _, status := range ValidOrderStatuses() {
			want := expected[role][status]
			if want == nil {
				want = []OrderStatus{}
			}
			got := AllowedTransitions(orderIn(status, false), role)
			assert.Equal(t, want, got, "role=%s status=%s", role, status)
		}
	}
}

func TestAllowedTransitions_BackwardFollowsEntryState(t *testing.T) {
	got := AllowedTransitions(orderIn(OrderStatusProcessing, true), RoleAdmin)
	assert.Contains(t, got, OrderStatusReserved)
	assert.NotContains(t, got, OrderStatusPending)

	// A reservation paid in full enters pending.
	full := &Order{Status: OrderStatusProcessing, IsReservation: true, ReservationPercentage: decimal.NewFromInt(1)}
	assert.Contains(t, AllowedTransitions(full, RoleOwner), OrderStatusPending)
}

func TestAllowedTransitions_RefundedOrderIsLocked(t *testing.T) {
	o := orderIn(OrderStatusCompleted, false)
	o.Refund = &RefundDetails{RefundAmount: 100}
	assert.Empty(t, AllowedTransitions(o, RoleOwner))

	o = orderIn(OrderStatusCancelled, false)
	o.Refund = &RefundDetails{RefundAmount: 100}
	assert.False(t, CanTransition(o, RoleAdmin, OrderStatusPending))
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(orderIn(OrderStatusPending, false), RoleStaff, OrderStatusProcessing))
	assert.False(t, CanTransition(orderIn(OrderStatusPending, false), RoleStaff, OrderStatusCompleted))
	assert.False(t, CanTransition(orderIn(OrderStatusReadyForPickup, false), RoleStaff, OrderStatusProcessing))
	assert.True(t, CanTransition(orderIn(OrderStatusReadyForPickup, false), RoleAdmin, OrderStatusProcessing))
	assert.False(t, CanTransition(orderIn(OrderStatusPending, false), RoleCustomer, OrderStatusCancelled))
	assert.False(t, CanTransition(orderIn(OrderStatusPending, false), Role("guest"), OrderStatusProcessing))
}
