package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/kryzelc/poybash-furniture-sub001/internal/repository"
	"github.com/kryzelc/poybash-furniture-sub001/pkg/database"
)

// Transactor implements repository.Transactor with one PostgreSQL
// transaction. Repositories pick it up from the context, so the order row
// and the stock rows it touches share a connection and commit together.
type Transactor struct {
	pool database.DBTX
}

// NewTransactor creates a transactor over pool.
func NewTransactor(pool database.DBTX) *Transactor {
	return &Transactor{pool: pool}
}

func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if repository.InUnitOfWork(ctx) {
		return fn(ctx)
	}

	ctx, finish := repository.TrackCommit(ctx)
	err := database.WithTx(ctx, t.pool, func(tx pgx.Tx) error {
		return fn(database.ContextWithTx(ctx, tx))
	})
	finish(err == nil)
	return err
}
