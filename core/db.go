package core

import (
	"context"
	"sync"
)

type (
	// Transactor runs a unit of work atomically.
	// fn receives a context carrying the transaction; repositories called with that context join it.
	// The unit is committed when fn returns nil and rolled back on error or panic.
	// Calling WithTransaction with a context that already carries a transaction joins it.
	Transactor interface {
		WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	}
)

type (
	commitHooksKey struct{}

	commitHooks struct {
		mu  sync.Mutex
		fns []func(ctx context.Context)
	}
)

// AfterCommit runs fn once the transaction carried by ctx has committed, or right away when ctx
// carries none. fn is dropped if the transaction rolls back.
// fn receives a context free of the transaction, so it may use repositories.
func AfterCommit(ctx context.Context, fn func(ctx context.Context)) {
	if h, ok := ctx.Value(commitHooksKey{}).(*commitHooks); ok {
		h.mu.Lock()
		h.fns = append(h.fns, fn)
		h.mu.Unlock()
		return
	}
	fn(ctx)
}

// WithCommitHooks is called by a Transactor opening an outermost transaction: the transaction runs
// with the returned context. Once it has committed, the returned func runs the hooks registered
// through AfterCommit, given the context the transaction was opened with.
func WithCommitHooks(ctx context.Context) (context.Context, func(ctx context.Context)) {
	h := &commitHooks{}
	return context.WithValue(ctx, commitHooksKey{}, h), h.run
}

func (h *commitHooks) run(ctx context.Context) {
	h.mu.Lock()
	fns := h.fns
	h.fns = nil
	h.mu.Unlock()
	for _, fn := range fns {
		fn(ctx)
	}
}

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}
