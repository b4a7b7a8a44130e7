package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose so sinks
// can apply different retention.
type EventCategory string

const (
	// CategoryCompliance covers destructive or policy-relevant changes.
	CategoryCompliance EventCategory = "compliance"
	// CategoryOperations covers routine writes.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category   EventCategory
	Timestamp  time.Time
	Action     string
	RecordID   int64
	SubjectID  int64
	ActivityID int64
	Status     string
	RecordDate string

	// Batch counters, set on batch events only.
	Received int
	Upserted int
	Failed   int
	Coerced  int

	// Enrichment from the request context.
	ActorID   string
	RequestID string
	ClientIP  string
	Device    string
}

type AuditEvent string

const (
	EventAttendanceRegistered AuditEvent = "attendance_registered"
	EventBatchReconciled      AuditEvent = "attendance_batch_reconciled"
	EventAttendanceUpdated    AuditEvent = "attendance_updated"
	EventAttendanceDeleted    AuditEvent = "attendance_deleted"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventAttendanceRegistered: CategoryOperations,
	EventBatchReconciled:      CategoryOperations,
	EventAttendanceUpdated:    CategoryOperations,
	EventAttendanceDeleted:    CategoryCompliance,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events. The postgres implementation joins the
// transaction carried by ctx.
type Store interface {
	Append(ctx context.Context, event Event) error
}
