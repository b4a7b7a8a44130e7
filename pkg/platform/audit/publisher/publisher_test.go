package publisher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "ledger/pkg/platform/audit"
	"ledger/pkg/platform/audit/store/memory"
	"ledger/pkg/requestcontext"
	"ledger/pkg/testutil"
)

type failingStore struct{ err error }

func (f failingStore) Append(context.Context, audit.Event) error { return f.err }

func TestPublisher_EnrichesFromContext(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)

	now := time.Date(2024, 7, 30, 8, 15, 0, 0, time.UTC)
	ctx := testutil.RequestContext("coordinator-7", "req-123", now)
	ctx = requestcontext.WithClientMetadata(ctx, "192.0.2.10", "")

	err := pub.Emit(ctx, audit.Event{Action: string(audit.EventAttendanceDeleted), RecordID: 4})
	require.NoError(t, err)

	events, err := store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	got := events[0]
	assert.Equal(t, now, got.Timestamp)
	assert.Equal(t, audit.CategoryCompliance, got.Category)
	assert.Equal(t, "coordinator-7", got.ActorID)
	assert.Equal(t, "req-123", got.RequestID)
	assert.Equal(t, "192.0.2.10", got.ClientIP)
	assert.Empty(t, got.Device)
}

func TestPublisher_KeepsExplicitFields(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	ctx := requestcontext.WithActorID(context.Background(), "from-context")

	err := pub.Emit(ctx, audit.Event{Action: string(audit.EventAttendanceRegistered), ActorID: "explicit"})
	require.NoError(t, err)

	events, _ := store.ListAll(ctx)
	require.Len(t, events, 1)
	assert.Equal(t, "explicit", events[0].ActorID)
	assert.Equal(t, audit.CategoryOperations, events[0].Category)
}

func TestPublisher_PropagatesStoreErrors(t *testing.T) {
	boom := errors.New("outbox unavailable")
	pub := NewPublisher(failingStore{err: boom})

	err := pub.Emit(context.Background(), audit.Event{Action: string(audit.EventAttendanceUpdated)})
	assert.ErrorIs(t, err, boom)
}
