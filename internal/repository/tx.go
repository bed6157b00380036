package repository

import "context"

// Transactor runs fn as one unit of work. Stock and order writes made with
// the ctx handed to fn are kept together or discarded together. A call
// nested inside fn joins the running unit.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type commitHooksKey struct{}

type commitHooks struct {
	fns []func()
}

// TrackCommit opens a hook list on ctx for a new unit of work. finish runs
// the hooks in registration order when committed is true and drops them
// otherwise.
func TrackCommit(ctx context.Context) (context.Context, func(committed bool)) {
	h := &commitHooks{}
	return context.WithValue(ctx, commitHooksKey{}, h), func(committed bool) {
		if !committed {
			return
		}
		for _, fn := range h.fns {
			fn()
		}
	}
}

// InUnitOfWork reports whether ctx belongs to a running Transactor call.
func InUnitOfWork(ctx context.Context) bool {
	_, ok := ctx.Value(commitHooksKey{}).(*commitHooks)
	return ok
}

// AfterCommit runs fn once the unit of work carried by ctx commits. Outside
// a unit of work fn runs immediately.
func AfterCommit(ctx context.Context, fn func()) {
	if h, ok := ctx.Value(commitHooksKey{}).(*commitHooks); ok {
		h.fns = append(h.fns, fn)
		return
	}
	fn()
}
