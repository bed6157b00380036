package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kryzelc/poybash-furniture-sub001/internal/domain"
	"github.com/kryzelc/poybash-furniture-sub001/internal/repository"
	"github.com/kryzelc/poybash-furniture-sub001/pkg/database"
	apperrors "github.com/kryzelc/poybash-furniture-sub001/pkg/errors"
)

const (
	stockColumns = `product_id, variant_id, warehouse, quantity, reserved, updated_at`

	selectStockForUpdate = `
		SELECT ` + stockColumns + `
		FROM warehouse_stock
		WHERE product_id = $1 AND variant_id = $2 AND warehouse = $3
		FOR UPDATE`
)

// StockRepository implements repository.StockRepository using PostgreSQL.
// Row locks taken with SELECT ... FOR UPDATE serialise writers per key.
type StockRepository struct {
	pool database.DBTX
}

// NewStockRepository creates a new PostgreSQL-backed stock repository.
func NewStockRepository(pool database.DBTX) *StockRepository {
	return &StockRepository{pool: pool}
}

// db returns the transaction bound to ctx by a Transactor, or the pool.
func (r *StockRepository) db(ctx context.Context) database.DBTX {
	return database.Conn(ctx, r.pool)
}

func scanStock(row pgx.Row) (*domain.WarehouseStock, error) {
	var (
		s         domain.WarehouseStock
		warehouse string
	)
	if err := row.Scan(&s.ProductID, &s.VariantID, &warehouse, &s.Quantity, &s.Reserved, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.Warehouse = domain.Warehouse(warehouse)
	return &s, nil
}

// Get retrieves the stock record for key.
func (r *StockRepository) Get(ctx context.Context, key domain.StockKey) (*domain.WarehouseStock, error) {
	query := `
		SELECT ` + stockColumns + `
		FROM warehouse_stock
		WHERE product_id = $1 AND variant_id = $2 AND warehouse = $3`

	s, err := scanStock(r.db(ctx).QueryRow(ctx, query, key.ProductID, key.VariantID, string(key.Warehouse)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get stock: %w", err)
	}
	return s, nil
}

// ListByVariant returns every warehouse record of ref in priority order.
func (r *StockRepository) ListByVariant(ctx context.Context, ref domain.VariantRef) ([]domain.WarehouseStock, error) {
	query := `
		SELECT ` + stockColumns + `
		FROM warehouse_stock
		WHERE product_id = $1 AND variant_id = $2`

	rows, err := r.db(ctx).Query(ctx, query, ref.ProductID, ref.VariantID)
	if err != nil {
		return nil, fmt.Errorf("list variant stock: %w", err)
	}
	defer rows.Close()

	stocks := make([]domain.WarehouseStock, 0, len(domain.Warehouses()))
	for rows.Next() {
		s, err := scanStock(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stock row: %w", err)
		}
		stocks = append(stocks, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stock rows: %w", err)
	}

	sort.Slice(stocks, func(i, j int) bool {
		return stocks[i].Warehouse.Priority() < stocks[j].Warehouse.Priority()
	})
	return stocks, nil
}

// Ensure creates a zero record for key if none exists.
func (r *StockRepository) Ensure(ctx context.Context, key domain.StockKey) error {
	query := `
		INSERT INTO warehouse_stock (product_id, variant_id, warehouse, quantity, reserved, updated_at)
		VALUES ($1, $2, $3, 0, 0, NOW())
		ON CONFLICT (product_id, variant_id, warehouse) DO NOTHING`

	if _, err := r.db(ctx).Exec(ctx, query, key.ProductID, key.VariantID, string(key.Warehouse)); err != nil {
		return fmt.Errorf("ensure stock: %w", err)
	}
	return nil
}

// Update locks the row, applies fn and writes the result together with the
// optional batch in one transaction.
func (r *StockRepository) Update(ctx context.Context, key domain.StockKey, fn repository.StockMutation) (result *domain.WarehouseStock, err error) {
	ctx, end := database.TraceQuery(ctx, "UpdateStock", selectStockForUpdate)
	defer func() { end(err) }()

	err = database.WithTx(ctx, r.db(ctx), func(tx pgx.Tx) error {
		s, err := scanStock(tx.QueryRow(ctx, selectStockForUpdate, key.ProductID, key.VariantID, string(key.Warehouse)))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.ErrNotFound
			}
			return fmt.Errorf("lock stock: %w", err)
		}

		batch, err := fn(s)
		if err != nil {
			return err
		}
		s.StockKey = key
		s.UpdatedAt = time.Now().UTC()

		_, err = tx.Exec(ctx, `
			UPDATE warehouse_stock
			SET quantity = $4, reserved = $5, updated_at = $6
			WHERE product_id = $1 AND variant_id = $2 AND warehouse = $3`,
			key.ProductID, key.VariantID, string(key.Warehouse), s.Quantity, s.Reserved, s.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("update stock: %w", err)
		}

		if batch != nil {
			batch.StockKey = key
			_, err = tx.Exec(ctx, `
				INSERT INTO inventory_batches (id, product_id, variant_id, warehouse, received_at, quantity, reserved, notes)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				batch.ID, key.ProductID, key.VariantID, string(key.Warehouse),
				batch.ReceivedAt, batch.Quantity, batch.Reserved, batch.Notes,
			)
			if err != nil {
				return fmt.Errorf("insert inventory batch: %w", err)
			}
		}

		result = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListBatches returns the batches of key, oldest first.
func (r *StockRepository) ListBatches(ctx context.Context, key domain.StockKey) ([]domain.InventoryBatch, error) {
	query := `
		SELECT id, received_at, quantity, reserved, notes
		FROM inventory_batches
		WHERE product_id = $1 AND variant_id = $2 AND warehouse = $3
		ORDER BY received_at ASC, id ASC`

	rows, err := r.db(ctx).Query(ctx, query, key.ProductID, key.VariantID, string(key.Warehouse))
	if err != nil {
		return nil, fmt.Errorf("list inventory batches: %w", err)
	}
	defer rows.Close()

	batches := make([]domain.InventoryBatch, 0)
	for rows.Next() {
		b := domain.InventoryBatch{StockKey: key}
		if err := rows.Scan(&b.ID, &b.ReceivedAt, &b.Quantity, &b.Reserved, &b.Notes); err != nil {
			return nil, fmt.Errorf("scan inventory batch: %w", err)
		}
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate inventory batches: %w", err)
	}
	return batches, nil
}
