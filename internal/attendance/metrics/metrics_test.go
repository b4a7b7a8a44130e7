package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncrementRegistration(OutcomeCreated)
	m.IncrementRegistration(OutcomeCreated)
	m.IncrementRegistration(OutcomeExisting)
	m.AddBatchItems(ItemUpserted, 3)
	m.AddBatchItems(ItemMissing, 0)
	m.AddCoercedStatuses(2)
	m.IncrementUpdateConflict()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Registrations.WithLabelValues(OutcomeCreated)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Registrations.WithLabelValues(OutcomeExisting)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.BatchItems.WithLabelValues(ItemUpserted)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.BatchItems.WithLabelValues(ItemMissing)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CoercedStatuses))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpdateConflicts))
}

func TestObserveBatch(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveBatch(time.Now(), 12)

	assert.Equal(t, 1, testutil.CollectAndCount(m.BatchSize))
	count, err := testutil.GatherAndCount(reg, "ledger_attendance_batch_duration_seconds")
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
}
