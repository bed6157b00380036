package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/kryzelc/poybash-furniture-sub001/internal/domain"
	"github.com/kryzelc/poybash-furniture-sub001/internal/repository"
	apperrors "github.com/kryzelc/poybash-furniture-sub001/pkg/errors"
)

type stockRecord struct {
	mu      sync.Mutex
	stock   domain.WarehouseStock
	batches []domain.InventoryBatch
}

// StockRepository is an in-process ledger store. Each key has its own lock,
// so updates to different variants never contend.
type StockRepository struct {
	mu      sync.RWMutex
	records map[domain.StockKey]*stockRecord
}

// NewStockRepository creates an empty in-memory stock store.
func NewStockRepository() *StockRepository {
	return &StockRepository{records: make(map[domain.StockKey]*stockRecord)}
}

func (r *StockRepository) record(key domain.StockKey, create bool) *stockRecord {
	r.mu.RLock()
	rec, ok := r.records[key]
	r.mu.RUnlock()
	if ok || !create {
		return rec
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok = r.records[key]; ok {
		return rec
	}
	rec = &stockRecord{stock: domain.WarehouseStock{StockKey: key, UpdatedAt: time.Now().UTC()}}
	r.records[key] = rec
	return rec
}

func snapshot(rec *stockRecord) domain.WarehouseStock {
	s := rec.stock
	s.Batches = nil
	return s
}

func (r *StockRepository) Get(_ context.Context, key domain.StockKey) (*domain.WarehouseStock, error) {
	rec := r.record(key, false)
	if rec == nil {
		return nil, apperrors.ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	s := snapshot(rec)
	return &s, nil
}

func (r *StockRepository) ListByVariant(_ context.Context, ref domain.VariantRef) ([]domain.WarehouseStock, error) {
	r.mu.RLock()
	recs := make([]*stockRecord, 0, len(domain.Warehouses()))
	for key, rec := range r.records {
		if key.Ref() == ref {
			recs = append(recs, rec)
		}
	}
	r.mu.RUnlock()

	out := make([]domain.WarehouseStock, 0, len(recs))
	for _, rec := range recs {
		rec.mu.Lock()
		out = append(out, snapshot(rec))
		rec.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Warehouse.Priority() < out[j].Warehouse.Priority()
	})
	return out, nil
}

func (r *StockRepository) Ensure(_ context.Context, key domain.StockKey) error {
	r.record(key, true)
	return nil
}

// Update holds the key's lock for the whole read-modify-write. The record
// is only replaced when fn succeeds.
func (r *StockRepository) Update(ctx context.Context, key domain.StockKey, fn repository.StockMutation) (*domain.WarehouseStock, error) {
	rec := r.record(key, false)
	if rec == nil {
		return nil, apperrors.ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	prev := rec.stock
	working := snapshot(rec)
	batch, err := fn(&working)
	if err != nil {
		return nil, err
	}
	working.StockKey = key
	rec.stock = working
	batchID := ""
	if batch != nil {
		batch.StockKey = key
		batchID = batch.ID
		rec.batches = append(rec.batches, *batch)
	}

	dq, dr := working.Quantity-prev.Quantity, working.Reserved-prev.Reserved
	onRollback(ctx, func() {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		rec.stock.Quantity -= dq
		rec.stock.Reserved -= dr
		rec.stock.UpdatedAt = time.Now().UTC()
		if batchID != "" {
			rec.batches = slices.DeleteFunc(rec.batches, func(b domain.InventoryBatch) bool { return b.ID == batchID })
		}
	})

	out := snapshot(rec)
	return &out, nil
}

func (r *StockRepository) ListBatches(_ context.Context, key domain.StockKey) ([]domain.InventoryBatch, error) {
	rec := r.record(key, false)
	if rec == nil {
		return []domain.InventoryBatch{}, nil
	}
	rec.mu.Lock()
	out := make([]domain.InventoryBatch, len(rec.batches))
	copy(out, rec.batches)
	rec.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].ReceivedAt.Before(out[j].ReceivedAt) })
	return out, nil
}
