package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registration outcomes.
const (
	OutcomeCreated  = "created"
	OutcomeExisting = "existing"
	OutcomeNotFound = "not_found"
	OutcomeConflict = "conflict"
	OutcomeFailed   = "failed"
)

// Batch item outcomes.
const (
	ItemUpserted  = "upserted"
	ItemDuplicate = "duplicate"
	ItemMissing   = "missing_entity"
)

var durationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

// Metrics provides observability for the attendance ledger.
type Metrics struct {
	Registrations    *prometheus.CounterVec
	BatchItems       *prometheus.CounterVec
	CoercedStatuses  prometheus.Counter
	UpdateConflicts  prometheus.Counter
	Deletions        prometheus.Counter
	RegisterDuration prometheus.Histogram
	BatchDuration    prometheus.Histogram
	BatchSize        prometheus.Histogram
}

// New registers the attendance metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Registrations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_attendance_registrations_total",
			Help: "Single registrations by outcome",
		}, []string{"outcome"}),
		BatchItems: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_attendance_batch_items_total",
			Help: "Batch items by outcome",
		}, []string{"outcome"}),
		CoercedStatuses: factory.NewCounter(prometheus.CounterOpts{
			Name: "ledger_attendance_coerced_statuses_total",
			Help: "Unknown batch statuses replaced with the default status",
		}),
		UpdateConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "ledger_attendance_update_conflicts_total",
			Help: "Updates rejected because the target triple was taken",
		}),
		Deletions: factory.NewCounter(prometheus.CounterOpts{
			Name: "ledger_attendance_deletions_total",
			Help: "Attendance records deleted",
		}),
		RegisterDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ledger_attendance_register_duration_seconds",
			Help:    "Duration of single registrations",
			Buckets: durationBuckets,
		}),
		BatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ledger_attendance_batch_duration_seconds",
			Help:    "Duration of batch reconciliations",
			Buckets: durationBuckets,
		}),
		BatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ledger_attendance_batch_size",
			Help:    "Items received per batch",
			Buckets: prometheus.ExponentialBuckets(1, 4, 6),
		}),
	}
}

func (m *Metrics) IncrementRegistration(outcome string) {
	m.Registrations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) AddBatchItems(outcome string, n int) {
	if n > 0 {
		m.BatchItems.WithLabelValues(outcome).Add(float64(n))
	}
}

func (m *Metrics) AddCoercedStatuses(n int) {
	if n > 0 {
		m.CoercedStatuses.Add(float64(n))
	}
}

func (m *Metrics) IncrementUpdateConflict() {
	m.UpdateConflicts.Inc()
}

func (m *Metrics) IncrementDeletion() {
	m.Deletions.Inc()
}

// ObserveRegister records the duration of a Register call.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveRegister(start time.Time) {
	m.RegisterDuration.Observe(time.Since(start).Seconds())
}

// ObserveBatch records the duration and size of a RegisterBatch call.
func (m *Metrics) ObserveBatch(start time.Time, received int) {
	m.BatchDuration.Observe(time.Since(start).Seconds())
	m.BatchSize.Observe(float64(received))
}
