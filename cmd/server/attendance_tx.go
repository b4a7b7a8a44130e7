package main

import (
	"context"
	"database/sql"
	"time"

	"ledger/internal/attendance/service"
	"ledger/internal/attendance/store/directory"
	"ledger/internal/attendance/store/record"
	dErrors "ledger/pkg/domain-errors"
	txcontext "ledger/pkg/platform/tx"
)

const defaultAttendanceTxTimeout = 5 * time.Second

// attendancePostgresTx runs ledger writes in one database transaction. The
// transaction also rides on the context so the audit outbox insert joins it.
type attendancePostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newAttendancePostgresTx(db *sql.DB, timeout time.Duration) *attendancePostgresTx {
	return &attendancePostgresTx{db: db, timeout: timeout}
}

func (t *attendancePostgresTx) RunInTx(ctx context.Context, fn func(ctx context.Context, stores service.Stores) error) error {
	return t.run(ctx, nil, fn)
}

// RunReadOnly reads inside a READ ONLY transaction; postgres never exposes
// uncommitted rows of concurrent writers to it.
func (t *attendancePostgresTx) RunReadOnly(ctx context.Context, fn func(ctx context.Context, stores service.Stores) error) error {
	return t.run(ctx, &sql.TxOptions{ReadOnly: true}, fn)
}

func (t *attendancePostgresTx) run(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context, stores service.Stores) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultAttendanceTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, opts)
	if err != nil {
		if ctx.Err() != nil {
			return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
		}
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stores := service.Stores{
		Records:  record.NewPostgresTx(tx),
		Entities: directory.NewPostgresTx(tx),
	}
	if err := fn(txcontext.WithTx(ctx, tx), stores); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	return nil
}
