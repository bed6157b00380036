package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kryzelc/poybash-furniture-sub001/internal/domain"
)

// AllocationRequest asks for quantity units of one variant.
type AllocationRequest struct {
	ProductID int64
	VariantID string
	Quantity  int
}

// AllocatedItem is the share of request Line served by one warehouse.
type AllocatedItem struct {
	Line      int              `json:"line"`
	ProductID int64            `json:"product_id"`
	VariantID string           `json:"variant_id"`
	Warehouse domain.Warehouse `json:"warehouse"`
	Quantity  int              `json:"quantity"`
}

// Key returns the ledger record the item was reserved against.
func (a AllocatedItem) Key() domain.StockKey {
	return domain.StockKey{ProductID: a.ProductID, VariantID: a.VariantID, Warehouse: a.Warehouse}
}

// Allocation is a set of reservations held in the ledger.
type Allocation struct {
	Items []AllocatedItem `json:"items"`
}

// AllocationPlanner turns checkout lines into warehouse reservations. It is
// all-or-nothing: either every line is reserved or the ledger is left as it
// was.
type AllocationPlanner struct {
	ledger *Ledger
	logger *slog.Logger
}

// NewAllocationPlanner creates a new allocation planner.
func NewAllocationPlanner(ledger *Ledger, logger *slog.Logger) *AllocationPlanner {
	return &AllocationPlanner{ledger: ledger, logger: logger}
}

// planLine picks warehouses for one line. A single warehouse that covers
// the full quantity wins, in priority order; otherwise the quantity is split
// across warehouses in priority order.
func planLine(line int, ref domain.VariantRef, qty int, available map[domain.Warehouse]int) []AllocatedItem {
	for _, w := range domain.Warehouses() {
		if available[w] >= qty {
			return []AllocatedItem{{Line: line, ProductID: ref.ProductID, VariantID: ref.VariantID, Warehouse: w, Quantity: qty}}
		}
	}

	var items []AllocatedItem
	remaining := qty
	for _, w := range domain.Warehouses() {
		if remaining == 0 {
			break
		}
		take := min(available[w], remaining)
		if take <= 0 {
			continue
		}
		items = append(items, AllocatedItem{Line: line, ProductID: ref.ProductID, VariantID: ref.VariantID, Warehouse: w, Quantity: take})
		remaining -= take
	}
	return items
}

// Allocate dry-runs every line against current availability, then reserves
// the plan. Shortfalls are reported together as an AllocationError without
// touching the ledger. A reservation lost to a concurrent checkout releases
// everything reserved so far and returns ErrConcurrentStockChange.
func (p *AllocationPlanner) Allocate(ctx context.Context, requests []AllocationRequest) (*Allocation, error) {
	if len(requests) == 0 {
		return nil, domain.NewValidationError("items", "must not be empty")
	}

	earmarked := make(map[domain.StockKey]int)
	var (
		planned  []AllocatedItem
		failures []domain.InsufficientStockError
	)
	for i, req := range requests {
		ref := domain.VariantRef{ProductID: req.ProductID, VariantID: req.VariantID}
		if err := validateRef(ref); err != nil {
			return nil, err
		}
		if err := validateQuantity(req.Quantity); err != nil {
			return nil, err
		}

		stocks, err := p.ledger.ListVariantStock(ctx, ref)
		if err != nil {
			return nil, err
		}
		available := make(map[domain.Warehouse]int, len(stocks))
		total := 0
		for _, s := range stocks {
			a := max(s.Available()-earmarked[s.StockKey], 0)
			available[s.Warehouse] = a
			total += a
		}

		if total < req.Quantity {
			failures = append(failures, domain.InsufficientStockError{
				ProductID: ref.ProductID,
				VariantID: ref.VariantID,
				Requested: req.Quantity,
				Available: total,
			})
			continue
		}

		for _, item := range planLine(i, ref, req.Quantity, available) {
			earmarked[item.Key()] += item.Quantity
			planned = append(planned, item)
		}
	}

	if len(failures) > 0 {
		checkoutResults.WithLabelValues("insufficient_stock").Inc()
		return nil, &domain.AllocationError{Lines: failures}
	}

	reserved := make([]AllocatedItem, 0, len(planned))
	for _, item := range planned {
		if err := p.ledger.Reserve(ctx, item.Key(), item.Quantity); err != nil {
			p.release(ctx, reserved)
			if _, ok := domain.IsInsufficientStock(err); ok {
				checkoutResults.WithLabelValues("concurrent_change").Inc()
				p.logger.WarnContext(ctx, "reservation lost to concurrent checkout",
					slog.String("stock_key", item.Key().String()),
					slog.Int("quantity", item.Quantity),
				)
				return nil, domain.ErrConcurrentStockChange
			}
			checkoutResults.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("allocate: %w", err)
		}
		reserved = append(reserved, item)
	}

	checkoutResults.WithLabelValues("allocated").Inc()
	return &Allocation{Items: reserved}, nil
}

// ReleaseAllocation returns every reservation of a to the ledger.
func (p *AllocationPlanner) ReleaseAllocation(ctx context.Context, a *Allocation) {
	if a == nil {
		return
	}
	p.release(ctx, a.Items)
}

func (p *AllocationPlanner) release(ctx context.Context, items []AllocatedItem) {
	for _, item := range items {
		if err := p.ledger.Release(ctx, item.Key(), item.Quantity); err != nil {
			p.logger.ErrorContext(ctx, "failed to release reservation",
				slog.String("stock_key", item.Key().String()),
				slog.Int("quantity", item.Quantity),
				slog.String("error", err.Error()),
			)
		}
	}
}
