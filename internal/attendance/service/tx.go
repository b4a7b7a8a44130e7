package service

import (
	"context"
	"sync"
	"time"

	dErrors "ledger/pkg/domain-errors"
)

// StoreTx provides the transactional boundary for ledger writes. The
// callback receives stores bound to the transaction and a context carrying
// it; returning an error discards every write made through them.
//
// RunReadOnly runs fn against committed state only: it never observes the
// writes of a transaction that is still running.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, stores Stores) error) error
	RunReadOnly(ctx context.Context, fn func(ctx context.Context, stores Stores) error) error
}

// Snapshotter captures state that a failed in-memory transaction restores.
type Snapshotter interface {
	Snapshot() (restore func())
}

const defaultTxTimeout = 5 * time.Second

// inMemoryTx serializes writers on one lock, lets readers share it, and
// undoes a failed callback by restoring snapshots taken before it ran.
type inMemoryTx struct {
	mu        sync.RWMutex
	stores    Stores
	snapshots []Snapshotter
	timeout   time.Duration
}

// NewInMemoryTx returns a StoreTx for the in-memory stores. Every snapshotter
// is captured before the callback and restored if it fails.
func NewInMemoryTx(stores Stores, snapshots ...Snapshotter) StoreTx {
	return &inMemoryTx{stores: stores, snapshots: snapshots, timeout: defaultTxTimeout}
}

func (t *inMemoryTx) RunInTx(ctx context.Context, fn func(ctx context.Context, stores Stores) error) error {
	ctx, cancel, err := t.begin(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	t.mu.Lock()
	defer t.mu.Unlock()

	// Check again after acquiring lock
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	restores := make([]func(), len(t.snapshots))
	for i, snap := range t.snapshots {
		restores[i] = snap.Snapshot()
	}
	if err := fn(ctx, t.stores); err != nil {
		for _, restore := range restores {
			restore()
		}
		return err
	}
	return nil
}

func (t *inMemoryTx) RunReadOnly(ctx context.Context, fn func(ctx context.Context, stores Stores) error) error {
	ctx, cancel, err := t.begin(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	t.mu.RLock()
	defer t.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return fn(ctx, t.stores)
}

// begin rejects a cancelled context and applies the default timeout when
// the caller set no deadline.
func (t *inMemoryTx) begin(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if err := ctx.Err(); err != nil {
		return ctx, func() {}, dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	return ctx, cancel, nil
}
