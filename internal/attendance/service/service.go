package service

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"ledger/internal/attendance/metrics"
	"ledger/internal/attendance/models"
	audit "ledger/pkg/platform/audit"
)

// RecordStore persists attendance records. Implementations return
// sentinel.ErrNotFound and sentinel.ErrConflict.
type RecordStore interface {
	FindByID(ctx context.Context, id int64) (*models.Record, error)
	FindByKey(ctx context.Context, key models.Key) (*models.Record, error)
	Insert(ctx context.Context, r *models.Record) (*models.Record, error)
	UpsertByKey(ctx context.Context, reg models.Registration, now time.Time) (*models.Record, error)
	Update(ctx context.Context, r *models.Record) (*models.Record, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, f models.Filter) ([]*models.Record, error)
}

// EntityStore resolves the subjects and activities records refer to.
type EntityStore interface {
	FindSubject(ctx context.Context, id int64) (*models.Subject, error)
	FindActivity(ctx context.Context, id int64) (*models.Activity, error)
	SubjectNames(ctx context.Context, ids []int64) (map[int64]string, error)
}

// Stores is the set of stores bound to one transaction.
type Stores struct {
	Records  RecordStore
	Entities EntityStore
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service implements the attendance ledger: registration, batch
// reconciliation, updates and queries.
type Service struct {
	records        RecordStore
	entities       EntityStore
	tx             StoreTx
	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditPublisher AuditPublisher
	tracer         trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithAuditPublisher emits audit events inside each write transaction.
func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

// WithTx overrides the transaction boundary. Without it the service uses an
// in-memory transaction over its own stores.
func WithTx(tx StoreTx) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

func New(records RecordStore, entities EntityStore, opts ...Option) *Service {
	s := &Service{
		records:  records,
		entities: entities,
		logger:   slog.Default(),
		tracer:   otel.Tracer("ledger/attendance"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		stores := Stores{Records: records, Entities: entities}
		if snap, ok := records.(Snapshotter); ok {
			s.tx = NewInMemoryTx(stores, snap)
		} else {
			s.tx = NewInMemoryTx(stores)
		}
	}
	return s
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// endSpan records err on the span before ending it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *Service) emit(ctx context.Context, event audit.Event) error {
	if s.auditPublisher == nil {
		return nil
	}
	return s.auditPublisher.Emit(ctx, event)
}

func recordEvent(action audit.AuditEvent, r *models.Record) audit.Event {
	return audit.Event{
		Action:     string(action),
		RecordID:   r.ID,
		SubjectID:  r.SubjectID,
		ActivityID: r.ActivityID,
		Status:     string(r.Status),
		RecordDate: models.FormatDate(r.RecordDate),
	}
}
