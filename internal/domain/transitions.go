package domain

import "sort"

type transitionKey struct {
	From OrderStatus
	Role Role
}

type edge struct {
	From, To OrderStatus
}

// forwardEdges are available to every role holding update:order_status.
var forwardEdges = []edge{
	{OrderStatusPending, OrderStatusProcessing},
	{OrderStatusReserved, OrderStatusProcessing},
	{OrderStatusProcessing, OrderStatusReadyForPickup},
	{OrderStatusReadyForPickup, OrderStatusCompleted},
	{OrderStatusPending, OrderStatusCancelled},
	{OrderStatusReserved, OrderStatusCancelled},
	{OrderStatusProcessing, OrderStatusCancelled},
	{OrderStatusReadyForPickup, OrderStatusCancelled},
}

// correctionEdges are one step back, plus reopening a cancelled order. Only
// roles holding override:order_status get them. processing lists both entry
// states; AllowedTransitions keeps the one matching the order.
var correctionEdges = []edge{
	{OrderStatusReadyForPickup, OrderStatusProcessing},
	{OrderStatusProcessing, OrderStatusPending},
	{OrderStatusProcessing, OrderStatusReserved},
	{OrderStatusCancelled, OrderStatusPending},
}

// transitionTable is the single source of allowed status moves, keyed by
// (current status, role). completed, refunded and refund-requested have no
// entries, nor does any customer.
var transitionTable = buildTransitionTable()

func buildTransitionTable() map[transitionKey]map[OrderStatus]struct{} {
	table := make(map[transitionKey]map[OrderStatus]struct{})
	add := func(role Role, e edge) {
		k := transitionKey{From: e.From, Role: role}
		if table[k] == nil {
			table[k] = make(map[OrderStatus]struct{})
		}
		table[k][e.To] = struct{}{}
	}

	for _, role := range ValidRoles() {
		if !HasPermission(role, PermUpdateOrderStatus) {
			continue
		}
		for _, e := range forwardEdges {
			add(role, e)
		}
		if (Actor{Role: role}).IsPrivileged() {
			for _, e := range correctionEdges {
				add(role, e)
			}
		}
	}
	return table
}

// AllowedTransitions returns the sorted set of statuses role may move order
// to. Orders with refund details attached are locked.
func AllowedTransitions(order *Order, role Role) []OrderStatus {
	if order.Refund != nil {
		return []OrderStatus{}
	}

	next := transitionTable[transitionKey{From: order.Status, Role: role}]
	out := make([]OrderStatus, 0, len(next))
	entry := order.EntryStatus()
	for s := range next {
		// One step back from processing lands on the state the order entered with.
		if order.Status == OrderStatusProcessing && (s == OrderStatusPending || s == OrderStatusReserved) && s != entry {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// CanTransition reports whether role may move order to `to`.
func CanTransition(order *Order, role Role, to OrderStatus) bool {
	for _, s := range AllowedTransitions(order, role) {
		if s == to {
			return true
		}
	}
	return false
}
