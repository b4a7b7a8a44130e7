package record

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"ledger/internal/attendance/models"
	"ledger/pkg/platform/sentinel"
)

type RecordStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
	now   time.Time
}

func TestRecordStoreSuite(t *testing.T) {
	suite.Run(t, new(RecordStoreSuite))
}

func (s *RecordStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.now = time.Date(2024, 7, 30, 9, 0, 0, 0, time.UTC)
}

func day(d int) time.Time {
	return time.Date(2024, 7, d, 0, 0, 0, 0, time.UTC)
}

func (s *RecordStoreSuite) newRecord(subject, activity int64, d int) *models.Record {
	return &models.Record{
		SubjectID:  subject,
		ActivityID: activity,
		Status:     models.StatusPresent,
		RecordDate: day(d),
		CreatedAt:  s.now,
		UpdatedAt:  s.now,
	}
}

// TestInsertAndLookups verifies IDs are assigned and both lookups resolve.
func (s *RecordStoreSuite) TestInsertAndLookups() {
	s.Run("assigns increasing ids", func() {
		a, err := s.store.Insert(s.ctx, s.newRecord(1, 1, 30))
		s.Require().NoError(err)
		b, err := s.store.Insert(s.ctx, s.newRecord(2, 1, 30))
		s.Require().NoError(err)
		s.Greater(b.ID, a.ID)

		found, err := s.store.FindByID(s.ctx, a.ID)
		s.Require().NoError(err)
		s.Equal(a, found)

		found, err = s.store.FindByKey(s.ctx, models.NewKey(2, 1, day(30)))
		s.Require().NoError(err)
		s.Equal(b.ID, found.ID)
	})

	s.Run("unknown id and key return ErrNotFound", func() {
		_, err := s.store.FindByID(s.ctx, 9999)
		s.ErrorIs(err, sentinel.ErrNotFound)
		_, err = s.store.FindByKey(s.ctx, models.NewKey(9, 9, day(1)))
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

// TestKeyUniqueness verifies the one-record-per-triple invariant.
func (s *RecordStoreSuite) TestKeyUniqueness() {
	_, err := s.store.Insert(s.ctx, s.newRecord(1, 1, 30))
	s.Require().NoError(err)

	_, err = s.store.Insert(s.ctx, s.newRecord(1, 1, 30))
	s.ErrorIs(err, sentinel.ErrConflict)
}

// TestUpsertByKey verifies insert-or-overwrite semantics.
func (s *RecordStoreSuite) TestUpsertByKey() {
	key := models.NewKey(1, 1, day(30))

	first, err := s.store.UpsertByKey(s.ctx, models.Registration{Key: key, Status: models.StatusAbsent, Note: "sick"}, s.now)
	s.Require().NoError(err)

	later := s.now.Add(time.Hour)
	second, err := s.store.UpsertByKey(s.ctx, models.Registration{Key: key, Status: models.StatusLate}, later)
	s.Require().NoError(err)

	s.Equal(first.ID, second.ID)
	s.Equal(models.StatusLate, second.Status)
	s.Empty(second.Note)
	s.Equal(s.now, second.CreatedAt)
	s.Equal(later, second.UpdatedAt)
}

// TestUpdate verifies re-indexing and collision detection when the date moves.
func (s *RecordStoreSuite) TestUpdate() {
	a, err := s.store.Insert(s.ctx, s.newRecord(1, 1, 30))
	s.Require().NoError(err)
	b, err := s.store.Insert(s.ctx, s.newRecord(1, 1, 31))
	s.Require().NoError(err)

	s.Run("rejects moving onto a taken key", func() {
		moved := b.Clone()
		moved.RecordDate = day(30)
		_, err := s.store.Update(s.ctx, moved)
		s.ErrorIs(err, sentinel.ErrConflict)

		current, err := s.store.FindByID(s.ctx, b.ID)
		s.Require().NoError(err)
		s.Equal(day(31), current.RecordDate)
	})

	s.Run("moves and re-indexes", func() {
		moved := a.Clone()
		moved.RecordDate = day(29)
		_, err := s.store.Update(s.ctx, moved)
		s.Require().NoError(err)

		_, err = s.store.FindByKey(s.ctx, models.NewKey(1, 1, day(30)))
		s.ErrorIs(err, sentinel.ErrNotFound)
		found, err := s.store.FindByKey(s.ctx, models.NewKey(1, 1, day(29)))
		s.Require().NoError(err)
		s.Equal(a.ID, found.ID)
	})

	s.Run("unknown id", func() {
		_, err := s.store.Update(s.ctx, &models.Record{ID: 404})
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *RecordStoreSuite) TestDelete() {
	a, err := s.store.Insert(s.ctx, s.newRecord(1, 1, 30))
	s.Require().NoError(err)

	s.Require().NoError(s.store.Delete(s.ctx, a.ID))
	s.ErrorIs(s.store.Delete(s.ctx, a.ID), sentinel.ErrNotFound)

	// the key is free again
	_, err = s.store.Insert(s.ctx, s.newRecord(1, 1, 30))
	s.NoError(err)
}

// TestListOrdering verifies filtering and newest-first ordering.
func (s *RecordStoreSuite) TestListOrdering() {
	for _, d := range []int{3, 20, 11} {
		_, err := s.store.Insert(s.ctx, s.newRecord(1, 1, d))
		s.Require().NoError(err)
	}
	_, err := s.store.Insert(s.ctx, s.newRecord(2, 1, 15))
	s.Require().NoError(err)

	subject := int64(1)
	records, err := s.store.List(s.ctx, models.Filter{SubjectID: &subject})
	s.Require().NoError(err)
	s.Require().Len(records, 3)
	s.Equal(day(20), records[0].RecordDate)
	s.Equal(day(11), records[1].RecordDate)
	s.Equal(day(3), records[2].RecordDate)
}

// TestSnapshotRestore verifies a restore discards writes made after the snapshot.
func (s *RecordStoreSuite) TestSnapshotRestore() {
	kept, err := s.store.Insert(s.ctx, s.newRecord(1, 1, 1))
	s.Require().NoError(err)

	restore := s.store.Snapshot()
	_, err = s.store.Insert(s.ctx, s.newRecord(1, 1, 2))
	s.Require().NoError(err)
	_, err = s.store.UpsertByKey(s.ctx, models.Registration{Key: kept.Key(), Status: models.StatusAbsent}, s.now)
	s.Require().NoError(err)
	restore()

	all, err := s.store.List(s.ctx, models.Filter{})
	s.Require().NoError(err)
	s.Require().Len(all, 1)
	s.Equal(models.StatusPresent, all[0].Status)

	// the id sequence rewinds with the restore
	again, err := s.store.Insert(s.ctx, s.newRecord(1, 1, 2))
	s.Require().NoError(err)
	s.Equal(kept.ID+1, again.ID)
}
