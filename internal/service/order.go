package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kryzelc/poybash-furniture-sub001/internal/domain"
	"github.com/kryzelc/poybash-furniture-sub001/internal/event"
	"github.com/kryzelc/poybash-furniture-sub001/internal/repository"
	apperrors "github.com/kryzelc/poybash-furniture-sub001/pkg/errors"
)

// errUnchanged aborts an order update that turned out to be a no-op.
var errUnchanged = errors.New("order unchanged")

// OrderLineInput is one requested line of a new order. UnitPrice is only
// set from a cart snapshot; otherwise the current catalog price is used.
type OrderLineInput struct {
	ProductID int64
	VariantID string
	Quantity  int
	UnitPrice *int64
}

// CreateOrderInput holds everything needed to place an order.
type CreateOrderInput struct {
	UserID                *string
	Items                 []OrderLineInput
	CouponDiscount        int64
	DeliveryFee           int64
	IsReservation         bool
	ReservationPercentage decimal.Decimal
	FulfillmentMethod     domain.FulfillmentMethod
	PaymentMethod         string
	PaymentReference      string
	PaymentProof          string
}

// CheckoutInput holds the order fields that do not come from the cart.
type CheckoutInput struct {
	DeliveryFee           int64
	IsReservation         bool
	ReservationPercentage decimal.Decimal
	FulfillmentMethod     domain.FulfillmentMethod
	PaymentMethod         string
	PaymentReference      string
	PaymentProof          string
}

// OrderService drives the order lifecycle. Status changes go through the
// transition table and keep the ledger in step: cancelling releases,
// completing commits, reopening reserves again.
type OrderService struct {
	orders   repository.OrderRepository
	carts    repository.CartRepository
	catalog  *CatalogService
	planner  *AllocationPlanner
	ledger   *Ledger
	tx       repository.Transactor
	producer *event.Producer
	logger   *slog.Logger
}

// NewOrderService creates a new order service.
func NewOrderService(
	orders repository.OrderRepository,
	carts repository.CartRepository,
	catalog *CatalogService,
	planner *AllocationPlanner,
	ledger *Ledger,
	tx repository.Transactor,
	producer *event.Producer,
	logger *slog.Logger,
) *OrderService {
	return &OrderService{
		orders:   orders,
		carts:    carts,
		catalog:  catalog,
		planner:  planner,
		ledger:   ledger,
		tx:       tx,
		producer: producer,
		logger:   logger,
	}
}

func orderLookupError(err error, id string) error {
	if errors.Is(err, apperrors.ErrNotFound) {
		return apperrors.NotFound("order", id)
	}
	return fmt.Errorf("order %s: %w", id, err)
}

func validateCreateInput(in *CreateOrderInput) error {
	if len(in.Items) == 0 {
		return domain.NewValidationError("items", "must not be empty")
	}
	if in.CouponDiscount < 0 {
		return domain.NewValidationError("coupon_discount", "must not be negative")
	}
	if in.DeliveryFee < 0 {
		return domain.NewValidationError("delivery_fee", "must not be negative")
	}
	switch in.FulfillmentMethod {
	case domain.FulfillmentPickup:
		if in.DeliveryFee != 0 {
			return domain.NewValidationError("delivery_fee", "must be 0 for pickup orders")
		}
	case domain.FulfillmentDelivery:
	default:
		return domain.NewValidationError("fulfillment_method", "must be pickup or delivery")
	}
	if strings.TrimSpace(in.PaymentMethod) == "" {
		return domain.NewValidationError("payment_method", "is required")
	}
	if in.IsReservation {
		pct := in.ReservationPercentage
		if !pct.IsPositive() || pct.GreaterThan(decimal.NewFromInt(1)) {
			return domain.NewValidationError("reservation_percentage", "must be greater than 0 and at most 1")
		}
	}
	for i, line := range in.Items {
		if line.Quantity <= 0 {
			return domain.NewValidationError(fmt.Sprintf("items[%d].quantity", i), "must be greater than 0")
		}
		if line.UnitPrice != nil && *line.UnitPrice < 0 {
			return domain.NewValidationError(fmt.Sprintf("items[%d].unit_price", i), "must not be negative")
		}
	}
	return nil
}

// resolvedLine is a line with its catalog snapshot taken.
type resolvedLine struct {
	name      string
	color     string
	size      string
	unitPrice int64
}

// CreateOrder validates the input, reserves stock for every line through
// the allocation planner and stores the order. If storing fails the
// reservations are released again. A coupon discount needs
// PermApplyDiscounts.
func (s *OrderService) CreateOrder(ctx context.Context, actor domain.Actor, in CreateOrderInput) (*domain.Order, error) {
	if in.CouponDiscount > 0 && !actor.Can(domain.PermApplyDiscounts) {
		return nil, domain.ErrPermissionDenied
	}
	return s.placeOrder(ctx, actor, in)
}

func (s *OrderService) placeOrder(ctx context.Context, actor domain.Actor, in CreateOrderInput) (*domain.Order, error) {
	manual := actor.Can(domain.PermCreateManualOrders)
	if !manual && !actor.Can(domain.PermPlaceOrders) {
		return nil, domain.ErrPermissionDenied
	}
	if !manual {
		uid := actor.UserID
		in.UserID = &uid
	}
	if err := validateCreateInput(&in); err != nil {
		return nil, err
	}

	lines := make([]resolvedLine, len(in.Items))
	requests := make([]AllocationRequest, len(in.Items))
	var subtotal int64
	for i, item := range in.Items {
		product, variant, err := s.catalog.sellableVariant(ctx, item.ProductID, item.VariantID)
		if err != nil {
			return nil, err
		}
		price := product.PriceOf(variant)
		if item.UnitPrice != nil {
			price = *item.UnitPrice
		}
		lines[i] = resolvedLine{
			name:      product.Name,
			color:     variant.Color,
			size:      variant.SizeLabel(),
			unitPrice: price,
		}
		requests[i] = AllocationRequest{ProductID: product.ID, VariantID: variant.ID, Quantity: item.Quantity}
		subtotal += price * int64(item.Quantity)
	}

	total := domain.ComputeTotal(subtotal, in.CouponDiscount, in.DeliveryFee)
	if total < 0 {
		return nil, domain.NewValidationError("coupon_discount", "must not exceed subtotal plus delivery fee")
	}

	seq, err := s.orders.NextOrderNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("next order number: %w", err)
	}

	allocation, err := s.planner.Allocate(ctx, requests)
	if err != nil {
		return nil, err
	}

	items := make([]domain.OrderItem, 0, len(allocation.Items))
	for _, a := range allocation.Items {
		line := lines[a.Line]
		items = append(items, domain.OrderItem{
			ProductID:  a.ProductID,
			VariantID:  a.VariantID,
			Name:       line.name,
			Color:      line.color,
			Size:       line.size,
			Quantity:   a.Quantity,
			UnitPrice:  line.unitPrice,
			Warehouse:  a.Warehouse,
			StockState: domain.StockReserved,
		})
	}

	now := time.Now().UTC()
	pct := decimal.Zero
	var fee int64
	if in.IsReservation {
		pct = in.ReservationPercentage
		fee = domain.ComputeReservationFee(total, pct)
	}
	status := domain.InitialStatus(in.IsReservation, pct)

	order := &domain.Order{
		ID:                    domain.FormatOrderID(seq),
		UserID:                in.UserID,
		Items:                 items,
		Subtotal:              subtotal,
		CouponDiscount:        in.CouponDiscount,
		DeliveryFee:           in.DeliveryFee,
		Total:                 total,
		IsReservation:         in.IsReservation,
		ReservationPercentage: pct,
		ReservationFee:        fee,
		FulfillmentMethod:     in.FulfillmentMethod,
		PaymentMethod:         strings.TrimSpace(in.PaymentMethod),
		PaymentReference:      strings.TrimSpace(in.PaymentReference),
		PaymentProof:          in.PaymentProof,
		Status:                status,
		StatusHistory: []domain.StatusChange{{
			To:   status,
			By:   actor.UserID,
			Role: actor.Role,
			At:   now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.orders.Create(ctx, order); err != nil {
		s.planner.ReleaseAllocation(ctx, allocation)
		return nil, fmt.Errorf("create order: %w", err)
	}

	if err := s.producer.PublishOrderCreated(ctx, order); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.created event",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "order created",
		slog.String("order_id", order.ID),
		slog.String("status", string(order.Status)),
		slog.Int64("total", order.Total),
		slog.Int("items", len(order.Items)),
	)
	return order, nil
}

// CheckoutCart places an order for the caller's cart using the cart's price
// snapshots and discount, then clears the cart.
func (s *OrderService) CheckoutCart(ctx context.Context, actor domain.Actor, in CheckoutInput) (*domain.Order, error) {
	if err := actor.Require(domain.PermPlaceOrders); err != nil {
		return nil, err
	}
	cart, err := s.carts.Get(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	if len(cart.Items) == 0 {
		return nil, domain.NewValidationError("cart", "is empty")
	}

	items := make([]OrderLineInput, len(cart.Items))
	for i, it := range cart.Items {
		price := it.UnitPrice
		items[i] = OrderLineInput{
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			Quantity:  it.Quantity,
			UnitPrice: &price,
		}
	}

	// The cart discount was authorised when it was applied.
	order, err := s.placeOrder(ctx, actor, CreateOrderInput{
		Items:                 items,
		CouponDiscount:        min(cart.Discount, cart.Subtotal()),
		DeliveryFee:           in.DeliveryFee,
		IsReservation:         in.IsReservation,
		ReservationPercentage: in.ReservationPercentage,
		FulfillmentMethod:     in.FulfillmentMethod,
		PaymentMethod:         in.PaymentMethod,
		PaymentReference:      in.PaymentReference,
		PaymentProof:          in.PaymentProof,
	})
	if err != nil {
		return nil, err
	}

	if err := s.carts.Delete(ctx, actor.UserID); err != nil {
		s.logger.ErrorContext(ctx, "failed to clear cart after checkout",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}
	return order, nil
}

// releaseItems releases every item still holding a reservation. Items are
// marked as they go, so a failure part way keeps the progress made.
func (s *OrderService) releaseItems(ctx context.Context, o *domain.Order) error {
	for i := range o.Items {
		item := &o.Items[i]
		if item.StockState != domain.StockReserved {
			continue
		}
		if err := s.ledger.Release(ctx, item.StockKey(), item.Quantity); err != nil {
			return err
		}
		item.StockState = domain.StockReleased
	}
	return nil
}

func (s *OrderService) commitItems(ctx context.Context, o *domain.Order) error {
	for i := range o.Items {
		item := &o.Items[i]
		if item.StockState != domain.StockReserved {
			continue
		}
		if err := s.ledger.Commit(ctx, item.StockKey(), item.Quantity); err != nil {
			return err
		}
		item.StockState = domain.StockCommitted
	}
	return nil
}

// reserveItems reserves every released item again, all or nothing.
func (s *OrderService) reserveItems(ctx context.Context, o *domain.Order) error {
	var done []int
	for i := range o.Items {
		item := o.Items[i]
		if item.StockState != domain.StockReleased {
			continue
		}
		if err := s.ledger.Reserve(ctx, item.StockKey(), item.Quantity); err != nil {
			for _, j := range done {
				if rerr := s.ledger.Release(ctx, o.Items[j].StockKey(), o.Items[j].Quantity); rerr != nil {
					s.logger.ErrorContext(ctx, "failed to roll back reopen reservation",
						slog.String("order_id", o.ID),
						slog.String("stock_key", o.Items[j].StockKey().String()),
						slog.String("error", rerr.Error()),
					)
				}
			}
			return err
		}
		done = append(done, i)
	}
	for _, i := range done {
		o.Items[i].StockState = domain.StockReserved
	}
	return nil
}

// updateWithStock runs an order update and the ledger writes fn makes as one
// unit of work. If the order cannot be saved the ledger writes are undone,
// so item stock states and the ledger never drift apart.
func (s *OrderService) updateWithStock(ctx context.Context, orderID string, fn func(ctx context.Context, o *domain.Order) error) (*domain.Order, error) {
	var order *domain.Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.orders.Update(ctx, orderID, func(o *domain.Order) error {
			return fn(ctx, o)
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// moveTo applies the ledger side effects of entering `to` and then records
// the transition. On a ledger failure the status is left unchanged; items
// already released or committed stay marked so a retry skips them.
func (s *OrderService) moveTo(ctx context.Context, o *domain.Order, to domain.OrderStatus, actor domain.Actor, reason string) error {
	var err error
	switch {
	case to == domain.OrderStatusCancelled:
		err = s.releaseItems(ctx, o)
	case to == domain.OrderStatusCompleted:
		err = s.commitItems(ctx, o)
	case o.Status == domain.OrderStatusCancelled:
		if err = s.reserveItems(ctx, o); err == nil {
			o.CanceledBy = ""
		}
	}
	if err != nil {
		return err
	}
	o.RecordTransition(to, actor, reason, time.Now().UTC())
	return nil
}

func (s *OrderService) afterTransition(ctx context.Context, o *domain.Order, from domain.OrderStatus, actor domain.Actor) {
	orderTransitions.WithLabelValues(string(from), string(o.Status)).Inc()
	if err := s.producer.PublishOrderStatusChanged(ctx, o, from, actor); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.status_changed event",
			slog.String("order_id", o.ID),
			slog.String("error", err.Error()),
		)
	}
	s.logger.InfoContext(ctx, "order status changed",
		slog.String("order_id", o.ID),
		slog.String("from", string(from)),
		slog.String("to", string(o.Status)),
		slog.String("by", actor.UserID),
		slog.String("role", string(actor.Role)),
	)
}

// TransitionStatus moves an order to `to` if the transition table allows it
// for the actor's role.
func (s *OrderService) TransitionStatus(ctx context.Context, actor domain.Actor, orderID string, to domain.OrderStatus, reason string) (*domain.Order, error) {
	if err := actor.Require(domain.PermUpdateOrderStatus); err != nil {
		return nil, err
	}
	if !domain.IsValidOrderStatus(string(to)) {
		return nil, domain.NewValidationError("status", "unknown status %q", to)
	}

	var (
		from     domain.OrderStatus
		stockErr error
	)
	order, err := s.updateWithStock(ctx, orderID, func(ctx context.Context, o *domain.Order) error {
		from = o.Status
		if o.Status == domain.OrderStatusCancelled && to == domain.OrderStatusCancelled {
			return errUnchanged
		}
		if !domain.CanTransition(o, actor.Role, to) {
			return &domain.InvalidStateTransitionError{
				Current:   o.Status,
				Requested: to,
				Allowed:   domain.AllowedTransitions(o, actor.Role),
			}
		}

		if stockErr = s.moveTo(ctx, o, to, actor, reason); stockErr == nil && to == domain.OrderStatusCancelled {
			o.CanceledBy = domain.CanceledByAdmin
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errUnchanged) {
			return s.loadOrder(ctx, orderID)
		}
		return nil, orderLookupError(err, orderID)
	}
	if stockErr != nil {
		return nil, fmt.Errorf("transition order %s: %w", orderID, stockErr)
	}

	s.afterTransition(ctx, order, from, actor)
	return order, nil
}

// CancelOrder cancels an order and releases its reservations. Cancelling an
// already cancelled order returns it unchanged. Customers may only cancel
// their own pending or reserved orders.
func (s *OrderService) CancelOrder(ctx context.Context, actor domain.Actor, orderID, reason string) (*domain.Order, error) {
	staff := actor.Can(domain.PermCancelOrders)
	if !staff && !actor.Can(domain.PermCancelOwnOrders) {
		return nil, domain.ErrPermissionDenied
	}

	var (
		from     domain.OrderStatus
		stockErr error
	)
	order, err := s.updateWithStock(ctx, orderID, func(ctx context.Context, o *domain.Order) error {
		from = o.Status
		if !staff && !o.IsOwnedBy(actor.UserID) {
			return domain.ErrPermissionDenied
		}
		if o.Status == domain.OrderStatusCancelled {
			return errUnchanged
		}

		canceledBy := domain.CanceledByAdmin
		if staff {
			if !domain.CanTransition(o, actor.Role, domain.OrderStatusCancelled) {
				return &domain.InvalidStateTransitionError{
					Current:   o.Status,
					Requested: domain.OrderStatusCancelled,
					Allowed:   domain.AllowedTransitions(o, actor.Role),
				}
			}
		} else {
			canceledBy = domain.CanceledByCustomer
			if o.Status != domain.OrderStatusPending && o.Status != domain.OrderStatusReserved {
				return &domain.InvalidStateTransitionError{
					Current:   o.Status,
					Requested: domain.OrderStatusCancelled,
					Allowed:   []domain.OrderStatus{},
				}
			}
		}

		if stockErr = s.moveTo(ctx, o, domain.OrderStatusCancelled, actor, reason); stockErr == nil {
			o.CanceledBy = canceledBy
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errUnchanged) {
			return s.loadOrder(ctx, orderID)
		}
		return nil, orderLookupError(err, orderID)
	}
	if stockErr != nil {
		return nil, fmt.Errorf("cancel order %s: %w", orderID, stockErr)
	}

	s.afterTransition(ctx, order, from, actor)
	return order, nil
}

// RequestRefund flags items of the caller's order for refund. Completed
// orders keep their status; processing and ready-for-pickup orders move to
// refund-requested and remember where they were.
func (s *OrderService) RequestRefund(ctx context.Context, actor domain.Actor, orderID string, itemIndices []int, reason string) (*domain.Order, error) {
	if err := actor.Require(domain.PermRequestRefunds); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, domain.NewValidationError("reason", "is required")
	}
	if len(itemIndices) == 0 {
		return nil, domain.NewValidationError("items", "must not be empty")
	}

	var from domain.OrderStatus
	order, err := s.orders.Update(ctx, orderID, func(o *domain.Order) error {
		from = o.Status
		if !o.IsOwnedBy(actor.UserID) {
			return domain.ErrPermissionDenied
		}
		if o.IsRefunded() {
			return domain.ErrAlreadyRefunded
		}
		if err := validateItemIndices(o, itemIndices); err != nil {
			return err
		}
		for _, idx := range itemIndices {
			if o.Items[idx].RefundStatus != domain.RefundNone {
				return domain.NewValidationError(fmt.Sprintf("items[%d]", idx), "refund already %s", o.Items[idx].RefundStatus)
			}
		}

		now := time.Now().UTC()
		switch o.Status {
		case domain.OrderStatusCompleted, domain.OrderStatusRefundRequested:
			o.UpdatedAt = now
		case domain.OrderStatusProcessing, domain.OrderStatusReadyForPickup:
			o.PreviousStatus = o.Status
			o.RecordTransition(domain.OrderStatusRefundRequested, actor, reason, now)
		default:
			return &domain.InvalidStateTransitionError{
				Current:   o.Status,
				Requested: domain.OrderStatusRefundRequested,
				Allowed:   []domain.OrderStatus{},
			}
		}
		for _, idx := range itemIndices {
			o.Items[idx].RefundStatus = domain.RefundRequested
			o.Items[idx].RefundReason = reason
		}
		return nil
	})
	if err != nil {
		return nil, orderLookupError(err, orderID)
	}

	if order.Status != from {
		s.afterTransition(ctx, order, from, actor)
	} else {
		s.logger.InfoContext(ctx, "refund requested",
			slog.String("order_id", order.ID),
			slog.Int("items", len(itemIndices)),
		)
	}
	return order, nil
}

// validateItemIndices rejects out of range and repeated item indices.
func validateItemIndices(o *domain.Order, indices []int) error {
	seen := make(map[int]struct{}, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= len(o.Items) {
			return domain.NewValidationError("items", "item index %d out of range", idx)
		}
		if _, dup := seen[idx]; dup {
			return domain.NewValidationError("items", "item index %d listed twice", idx)
		}
		seen[idx] = struct{}{}
	}
	return nil
}

func (s *OrderService) loadOrder(ctx context.Context, id string) (*domain.Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, orderLookupError(err, id)
	}
	return o, nil
}

// canView reports whether actor may read o. Other customers' orders are
// reported as not found.
func canView(actor domain.Actor, o *domain.Order) bool {
	if actor.Can(domain.PermViewOrders) {
		return true
	}
	return actor.Can(domain.PermViewOwnOrders) && o.IsOwnedBy(actor.UserID)
}

// GetOrder returns one order the actor may see.
func (s *OrderService) GetOrder(ctx context.Context, actor domain.Actor, id string) (*domain.Order, error) {
	o, err := s.loadOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(actor, o) {
		return nil, apperrors.NotFound("order", id)
	}
	return o, nil
}

// AllowedTransitions returns the statuses the actor may move the order to.
func (s *OrderService) AllowedTransitions(ctx context.Context, actor domain.Actor, id string) ([]domain.OrderStatus, error) {
	o, err := s.GetOrder(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return domain.AllowedTransitions(o, actor.Role), nil
}

// ListOrders returns one page of orders. Callers without view:orders only
// ever see their own.
func (s *OrderService) ListOrders(ctx context.Context, actor domain.Actor, filter repository.OrderFilter) ([]domain.Order, int, error) {
	if !actor.Can(domain.PermViewOrders) {
		if !actor.Can(domain.PermViewOwnOrders) {
			return nil, 0, domain.ErrPermissionDenied
		}
		uid := actor.UserID
		filter.UserID = &uid
	}
	if filter.Status != nil && !domain.IsValidOrderStatus(string(*filter.Status)) {
		return nil, 0, domain.NewValidationError("status", "unknown status %q", *filter.Status)
	}

	orders, total, err := s.orders.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	return orders, total, nil
}
