package service

import (
	"context"
	"sync"
)

// StoreTx provides the transactional boundary around approve: the request
// flip and the session creation must be observed together. Implementations
// may wrap a database transaction or, in-memory, a coarse lock.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// inMemoryStoreTx serializes approvals with a single mutex. With one
// process and in-memory tables this is all the atomicity the
// approve-then-create step needs; a distributed deployment would replace
// it with a real transaction or a single writer per partition.
//
// Only mutators take this lock. A reader going straight to the request
// table can observe the approved request a moment before the session row
// lands; the invariant held here is that both writes commit or neither
// does, not that list reads are snapshot-isolated against the pair.
type inMemoryStoreTx struct {
	mu sync.Mutex
}

func newInMemoryStoreTx() *inMemoryStoreTx {
	return &inMemoryStoreTx{}
}

func (t *inMemoryStoreTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(ctx)
}
