package memory

import (
	"context"

	"github.com/kryzelc/poybash-furniture-sub001/internal/repository"
)

type journalKey struct{}

type journal struct {
	undo []func()
}

// onRollback registers undo for the unit of work carried by ctx. Outside
// one, writes are final and undo is dropped.
func onRollback(ctx context.Context, undo func()) {
	if j, ok := ctx.Value(journalKey{}).(*journal); ok {
		j.undo = append(j.undo, undo)
	}
}

// Transactor implements repository.Transactor for the memory store. Writes
// apply immediately and are compensated in reverse order when fn fails.
// Stock is compensated by delta, so concurrent writers to the same key keep
// their changes.
type Transactor struct{}

// NewTransactor creates a memory transactor.
func NewTransactor() *Transactor {
	return &Transactor{}
}

func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if repository.InUnitOfWork(ctx) {
		return fn(ctx)
	}

	ctx, finish := repository.TrackCommit(ctx)
	j := &journal{}
	err := fn(context.WithValue(ctx, journalKey{}, j))
	if err != nil {
		for i := len(j.undo) - 1; i >= 0; i-- {
			j.undo[i]()
		}
	}
	finish(err == nil)
	return err
}
