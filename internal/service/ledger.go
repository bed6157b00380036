package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kryzelc/poybash-furniture-sub001/internal/domain"
	"github.com/kryzelc/poybash-furniture-sub001/internal/event"
	"github.com/kryzelc/poybash-furniture-sub001/internal/repository"
	apperrors "github.com/kryzelc/poybash-furniture-sub001/pkg/errors"
)

// Ledger operation names used in events and metrics.
const (
	opAdjust  = "adjust"
	opReserve = "reserve"
	opRelease = "release"
	opCommit  = "commit"
)

// Ledger owns per-variant, per-warehouse stock. Every mutation goes through
// StockRepository.Update, which serialises writers per key.
type Ledger struct {
	stocks   repository.StockRepository
	producer *event.Producer
	logger   *slog.Logger
	batchSeq atomic.Uint64
}

// NewLedger creates a new inventory ledger.
func NewLedger(stocks repository.StockRepository, producer *event.Producer, logger *slog.Logger) *Ledger {
	return &Ledger{
		stocks:   stocks,
		producer: producer,
		logger:   logger,
	}
}

func validateRef(ref domain.VariantRef) error {
	if ref.ProductID <= 0 {
		return domain.NewValidationError("product_id", "must be positive")
	}
	if strings.TrimSpace(ref.VariantID) == "" {
		return domain.NewValidationError("variant_id", "is required")
	}
	return nil
}

func validateKey(key domain.StockKey) error {
	if err := validateRef(key.Ref()); err != nil {
		return err
	}
	if !domain.IsValidWarehouse(string(key.Warehouse)) {
		return domain.NewValidationError("warehouse", "unknown warehouse %q", key.Warehouse)
	}
	return nil
}

func validateQuantity(qty int) error {
	if qty <= 0 {
		return domain.NewValidationError("quantity", "must be greater than 0")
	}
	return nil
}

func (l *Ledger) nextBatchID(at time.Time) string {
	return fmt.Sprintf("BATCH-%s-%d", at.Format("20060102150405"), l.batchSeq.Add(1))
}

func batchNotes(delta int, extra string) string {
	var base string
	switch {
	case delta > 0:
		base = fmt.Sprintf("added %d units", delta)
	case delta < 0:
		base = fmt.Sprintf("removed %d units", -delta)
	default:
		base = "quantity unchanged"
	}
	if extra = strings.TrimSpace(extra); extra != "" {
		return base + ": " + extra
	}
	return base
}

// recordMutation counts and publishes a stock change once the enclosing
// unit of work, if any, has committed.
func (l *Ledger) recordMutation(ctx context.Context, stock *domain.WarehouseStock, operation string, delta int) {
	repository.AfterCommit(ctx, func() {
		stockOperations.WithLabelValues(operation, string(stock.Warehouse)).Inc()
		if err := l.producer.PublishStockUpdated(ctx, stock, operation, delta); err != nil {
			l.logger.ErrorContext(ctx, "failed to publish inventory.updated event",
				slog.String("stock_key", stock.StockKey.String()),
				slog.String("operation", operation),
				slog.String("error", err.Error()),
			)
		}
	})
}

// EnsureVariant creates a zero stock record at every warehouse for ref.
func (l *Ledger) EnsureVariant(ctx context.Context, ref domain.VariantRef) error {
	for _, w := range domain.Warehouses() {
		if err := l.stocks.Ensure(ctx, domain.KeyFor(ref, w)); err != nil {
			return fmt.Errorf("ensure stock for %s: %w", ref, err)
		}
	}
	return nil
}

// Available returns quantity - reserved summed over one warehouse or, when
// warehouse is nil, all of them.
func (l *Ledger) Available(ctx context.Context, ref domain.VariantRef, warehouse *domain.Warehouse) (int, error) {
	if warehouse != nil {
		stock, err := l.stocks.Get(ctx, domain.KeyFor(ref, *warehouse))
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return 0, nil
			}
			return 0, fmt.Errorf("get available: %w", err)
		}
		return stock.Available(), nil
	}

	stocks, err := l.stocks.ListByVariant(ctx, ref)
	if err != nil {
		return 0, fmt.Errorf("get available: %w", err)
	}
	return domain.TotalAvailable(stocks), nil
}

// AdjustStock overwrites quantity and reserved for key and appends a batch
// sized to the quantity delta.
func (l *Ledger) AdjustStock(ctx context.Context, actor domain.Actor, key domain.StockKey, newQuantity, newReserved int, notes string) (*domain.WarehouseStock, error) {
	if err := actor.Require(domain.PermAdjustInventory); err != nil {
		return nil, err
	}
	if err := validateKey(key); err != nil {
		return nil, err
	}
	if newQuantity < 0 || newReserved < 0 || newReserved > newQuantity {
		return nil, &domain.InvalidAdjustmentError{Quantity: newQuantity, Reserved: newReserved}
	}

	var delta int
	stock, err := l.stocks.Update(ctx, key, func(s *domain.WarehouseStock) (*domain.InventoryBatch, error) {
		delta = newQuantity - s.Quantity
		s.Quantity = newQuantity
		s.Reserved = newReserved

		now := time.Now().UTC()
		return &domain.InventoryBatch{
			ID:         l.nextBatchID(now),
			ReceivedAt: now,
			Quantity:   delta,
			Reserved:   newReserved,
			Notes:      batchNotes(delta, notes),
		}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("adjust stock %s: %w", key, err)
	}

	l.recordMutation(ctx, stock, opAdjust, delta)
	l.logger.InfoContext(ctx, "stock adjusted",
		slog.String("stock_key", key.String()),
		slog.Int("delta", delta),
		slog.Int("quantity", stock.Quantity),
		slog.Int("reserved", stock.Reserved),
		slog.String("adjusted_by", actor.UserID),
	)
	return stock, nil
}

// Reserve holds qty units at key if that many are available. On failure
// nothing changes and the error carries the available count.
func (l *Ledger) Reserve(ctx context.Context, key domain.StockKey, qty int) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := validateQuantity(qty); err != nil {
		return err
	}

	stock, err := l.stocks.Update(ctx, key, func(s *domain.WarehouseStock) (*domain.InventoryBatch, error) {
		if available := s.Available(); qty > available {
			return nil, &domain.InsufficientStockError{
				ProductID: key.ProductID,
				VariantID: key.VariantID,
				Warehouse: key.Warehouse,
				Requested: qty,
				Available: available,
			}
		}
		s.Reserved += qty
		return nil, nil
	})
	if err != nil {
		if _, ok := domain.IsInsufficientStock(err); ok {
			stockRejections.WithLabelValues(string(key.Warehouse)).Inc()
			return err
		}
		return fmt.Errorf("reserve %s: %w", key, err)
	}

	l.recordMutation(ctx, stock, opReserve, qty)
	return nil
}

// Release returns qty reserved units at key. Reserved is floored at zero so
// a repeated release cannot go negative.
func (l *Ledger) Release(ctx context.Context, key domain.StockKey, qty int) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := validateQuantity(qty); err != nil {
		return err
	}

	stock, err := l.stocks.Update(ctx, key, func(s *domain.WarehouseStock) (*domain.InventoryBatch, error) {
		s.Reserved = max(s.Reserved-qty, 0)
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("release %s: %w", key, err)
	}

	l.recordMutation(ctx, stock, opRelease, qty)
	return nil
}

// Commit converts qty reserved units at key into a permanent deduction.
func (l *Ledger) Commit(ctx context.Context, key domain.StockKey, qty int) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := validateQuantity(qty); err != nil {
		return err
	}

	stock, err := l.stocks.Update(ctx, key, func(s *domain.WarehouseStock) (*domain.InventoryBatch, error) {
		s.Quantity = max(s.Quantity-qty, 0)
		s.Reserved = min(max(s.Reserved-qty, 0), s.Quantity)
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("commit %s: %w", key, err)
	}

	l.recordMutation(ctx, stock, opCommit, qty)
	return nil
}

// GetStock returns the record for key.
func (l *Ledger) GetStock(ctx context.Context, key domain.StockKey) (*domain.WarehouseStock, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	stock, err := l.stocks.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get stock: %w", err)
	}
	return stock, nil
}

// ListVariantStock returns every warehouse record of ref in priority order.
func (l *Ledger) ListVariantStock(ctx context.Context, ref domain.VariantRef) ([]domain.WarehouseStock, error) {
	if err := validateRef(ref); err != nil {
		return nil, err
	}
	stocks, err := l.stocks.ListByVariant(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("list variant stock: %w", err)
	}
	return stocks, nil
}

// ListBatches returns the provenance of key, oldest first.
func (l *Ledger) ListBatches(ctx context.Context, key domain.StockKey) ([]domain.InventoryBatch, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	batches, err := l.stocks.ListBatches(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	return batches, nil
}
