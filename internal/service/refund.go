package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/kryzelc/poybash-furniture-sub001/internal/domain"
	"github.com/kryzelc/poybash-furniture-sub001/internal/event"
	"github.com/kryzelc/poybash-furniture-sub001/internal/repository"
)

// RefundInput describes a refund. An empty ItemsRefunded refunds the
// whole order.
type RefundInput struct {
	Method        string
	Amount        int64
	Reason        string
	Proof         string
	AdminNotes    string
	ItemsRefunded []int
}

// RefundService attaches refund details to orders. It never touches
// inventory; restocking returned goods is a separate stock adjustment.
type RefundService struct {
	orders   repository.OrderRepository
	producer *event.Producer
	logger   *slog.Logger
}

// NewRefundService creates a new refund service.
func NewRefundService(orders repository.OrderRepository, producer *event.Producer, logger *slog.Logger) *RefundService {
	return &RefundService{orders: orders, producer: producer, logger: logger}
}

// refundable reports whether refunds may be processed in status s.
func refundable(s domain.OrderStatus) bool {
	switch s {
	case domain.OrderStatusCompleted, domain.OrderStatusCancelled, domain.OrderStatusRefundRequested:
		return true
	}
	return false
}

// ProcessRefund records a full or partial refund on an order. A full refund
// moves the order to refunded, except completed orders which keep their
// status and carry the refund as an overlay. A partial refund only marks the
// named items and returns a refund-requested order to its previous status.
func (s *RefundService) ProcessRefund(ctx context.Context, actor domain.Actor, orderID string, in RefundInput) (*domain.Order, error) {
	if err := actor.Require(domain.PermProcessRefunds); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Method) == "" {
		return nil, domain.NewValidationError("refund_method", "is required")
	}
	if strings.TrimSpace(in.Reason) == "" {
		return nil, domain.NewValidationError("refund_reason", "is required")
	}

	var from domain.OrderStatus
	order, err := s.orders.Update(ctx, orderID, func(o *domain.Order) error {
		from = o.Status
		if o.IsRefunded() {
			return domain.ErrAlreadyRefunded
		}
		if !refundable(o.Status) {
			return &domain.InvalidStateTransitionError{
				Current:   o.Status,
				Requested: domain.OrderStatusRefunded,
				Allowed:   domain.AllowedTransitions(o, actor.Role),
			}
		}

		limit := o.Total
		if len(in.ItemsRefunded) > 0 {
			if err := validateItemIndices(o, in.ItemsRefunded); err != nil {
				return err
			}
			var sum int64
			for _, idx := range in.ItemsRefunded {
				sum += o.Items[idx].LineTotal()
			}
			limit = min(sum, o.Total)
		}
		if in.Amount <= 0 || in.Amount > limit {
			return &domain.InvalidAmountError{Amount: in.Amount, Max: limit}
		}

		now := time.Now().UTC()
		o.Refund = &domain.RefundDetails{
			RefundAmount:  in.Amount,
			RefundMethod:  strings.TrimSpace(in.Method),
			RefundReason:  strings.TrimSpace(in.Reason),
			RefundProof:   in.Proof,
			AdminNotes:    in.AdminNotes,
			ProcessedBy:   domain.ProcessedBy{UserID: actor.UserID, Name: actor.Name},
			ProcessedAt:   now,
			ItemsRefunded: append([]int(nil), in.ItemsRefunded...),
		}

		if o.Refund.IsFull() {
			for i := range o.Items {
				o.Items[i].RefundStatus = domain.RefundRefunded
			}
			if o.Status != domain.OrderStatusCompleted {
				o.PreviousStatus = ""
				o.RecordTransition(domain.OrderStatusRefunded, actor, o.Refund.RefundReason, now)
			}
		} else {
			for _, idx := range in.ItemsRefunded {
				o.Items[idx].RefundStatus = domain.RefundRefunded
			}
			if o.Status == domain.OrderStatusRefundRequested && o.PreviousStatus != "" {
				prev := o.PreviousStatus
				o.PreviousStatus = ""
				o.RecordTransition(prev, actor, o.Refund.RefundReason, now)
			}
		}
		o.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, orderLookupError(err, orderID)
	}

	kind := "partial"
	if order.Refund.IsFull() {
		kind = "full"
	}
	refundsProcessed.WithLabelValues(kind).Inc()
	refundedAmount.Add(float64(order.Refund.RefundAmount))

	if err := s.producer.PublishOrderRefunded(ctx, order); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.refunded event",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}
	if order.Status != from {
		orderTransitions.WithLabelValues(string(from), string(order.Status)).Inc()
		if err := s.producer.PublishOrderStatusChanged(ctx, order, from, actor); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish order.status_changed event",
				slog.String("order_id", order.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "refund processed",
		slog.String("order_id", order.ID),
		slog.String("kind", kind),
		slog.Int64("amount", order.Refund.RefundAmount),
		slog.String("processed_by", actor.UserID),
	)
	return order, nil
}
