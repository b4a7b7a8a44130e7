// Package relay publishes committed outbox rows to the audit topic.
package relay

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"ledger/pkg/platform/audit/store/postgres"
	"ledger/pkg/platform/circuit"
)

// Source hands out batches of unpublished outbox entries.
type Source interface {
	Claim(ctx context.Context, limit int, publish func(context.Context, []postgres.Entry) error) (int, error)
}

// Producer delivers entries to the broker. It returns only after every
// entry is acknowledged.
type Producer interface {
	Publish(ctx context.Context, entries []postgres.Entry) error
}

// Relay polls the outbox and publishes what it finds. While the producer is
// failing the breaker stays open and the relay polls at the backoff interval.
type Relay struct {
	source    Source
	producer  Producer
	breaker   *circuit.Breaker
	logger    *slog.Logger
	interval  time.Duration
	backoff   time.Duration
	batchSize int
}

type Option func(*Relay)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		r.logger = logger
	}
}

func WithInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithBackoff(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.backoff = d
		}
	}
}

func New(source Source, producer Producer, opts ...Option) *Relay {
	r := &Relay{
		source:    source,
		producer:  producer,
		breaker:   circuit.New("audit-relay", circuit.WithFailureThreshold(3), circuit.WithSuccessThreshold(1)),
		logger:    slog.Default(),
		interval:  time.Second,
		backoff:   30 * time.Second,
		batchSize: 100,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run polls until ctx is cancelled. A full batch is followed immediately by
// another pass so a backlog drains without waiting for the ticker.
func (r *Relay) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "audit relay started", "interval", r.interval, "batch_size", r.batchSize)
	wait := time.Duration(0)
	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "audit relay stopped")
			return nil
		case <-time.After(wait):
		}

		n, err := r.RelayOnce(ctx)
		switch {
		case err != nil && errors.Is(err, context.Canceled):
			return nil
		case r.breaker.IsOpen():
			wait = r.backoff
		case n == r.batchSize:
			wait = 0
		default:
			wait = r.interval
		}
	}
}

// RelayOnce publishes at most one batch and reports how many entries were
// published.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	n, err := r.source.Claim(ctx, r.batchSize, r.producer.Publish)
	if err != nil {
		if _, change := r.breaker.RecordFailure(); change.Opened {
			r.logger.ErrorContext(ctx, "audit relay circuit opened", "error", err)
		} else {
			r.logger.WarnContext(ctx, "failed to relay outbox entries", "error", err)
		}
		return 0, err
	}
	if _, change := r.breaker.RecordSuccess(); change.Closed {
		r.logger.InfoContext(ctx, "audit relay circuit closed")
	}
	if n > 0 {
		r.logger.DebugContext(ctx, "relayed outbox entries", "count", n)
	}
	return n, nil
}
