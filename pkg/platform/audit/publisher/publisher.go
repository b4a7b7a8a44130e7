// Package publisher enriches audit events with request metadata before
// handing them to a store.
package publisher

import (
	"context"
	"fmt"

	audit "ledger/pkg/platform/audit"
	"ledger/pkg/platform/middleware/metadata"
	"ledger/pkg/requestcontext"
)

type Publisher struct {
	store audit.Store
}

func NewPublisher(store audit.Store) *Publisher {
	return &Publisher{store: store}
}

// Emit fills timestamp, category and request metadata, then appends the
// event synchronously so it commits or rolls back with the caller's
// transaction.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	event.Category = audit.AuditEvent(event.Action).Category()
	if event.ActorID == "" {
		event.ActorID = requestcontext.ActorID(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.ClientIP == "" {
		event.ClientIP = requestcontext.ClientIP(ctx)
	}
	if event.Device == "" {
		event.Device = metadata.Device(ctx)
	}
	if err := p.store.Append(ctx, event); err != nil {
		return fmt.Errorf("append audit event %s: %w", event.Action, err)
	}
	return nil
}
