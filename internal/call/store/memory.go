package store

import (
	"context"
	"sync"
)

// MemoryTransactor serializes units of work on a single mutex. It backs
// the in-memory stores where there is nothing to roll back: services
// check guards before mutating, so a failed unit of work has written
// nothing. Exactly one writer runs at a time, which is the same
// observable guarantee the postgres transactor provides per call.
type MemoryTransactor struct {
	mu sync.Mutex
}

// NewMemoryTransactor builds the in-memory unit-of-work runner.
func NewMemoryTransactor() *MemoryTransactor {
	return &MemoryTransactor{}
}

func (t *MemoryTransactor) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(ctx)
}
