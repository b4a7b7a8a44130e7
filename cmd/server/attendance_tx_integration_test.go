//go:build integration

package main

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"ledger/internal/attendance/models"
	"ledger/internal/attendance/service"
	"ledger/internal/attendance/store/directory"
	"ledger/internal/attendance/store/record"
	"ledger/internal/platform/logger"
	"ledger/pkg/platform/audit/publisher"
	auditpostgres "ledger/pkg/platform/audit/store/postgres"
	dErrors "ledger/pkg/domain-errors"
	"ledger/pkg/requestcontext"
	"ledger/pkg/testutil/containers"
)

// AttendancePostgresSuite drives the service through the postgres
// transaction adapter so records and outbox rows commit together.
type AttendancePostgresSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	outbox   *auditpostgres.Store
	service  *service.Service
	ctx      context.Context
}

func TestAttendancePostgresSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(AttendancePostgresSuite))
}

func (s *AttendancePostgresSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	db := s.postgres.DB
	s.outbox = auditpostgres.New(db)
	s.service = service.New(record.NewPostgres(db), directory.NewPostgres(db),
		service.WithLogger(logger.Discard()),
		service.WithAuditPublisher(publisher.NewPublisher(s.outbox)),
		service.WithTx(newAttendancePostgresTx(db, 5*time.Second)),
	)
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2024, 7, 30, 9, 0, 0, 0, time.UTC))
}

func (s *AttendancePostgresSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(s.ctx, "attendance_records", "outbox", "subjects", "activities"))
	_, err := s.postgres.DB.ExecContext(s.ctx, `INSERT INTO subjects (id, display_name) VALUES (1, 'Ada'), (2, 'Alan')`)
	s.Require().NoError(err)
	_, err = s.postgres.DB.ExecContext(s.ctx, `INSERT INTO activities (id, title) VALUES (10, 'Chemistry')`)
	s.Require().NoError(err)
}

func (s *AttendancePostgresSuite) pending() int {
	n, err := s.outbox.Pending(s.ctx)
	s.Require().NoError(err)
	return n
}

func (s *AttendancePostgresSuite) TestRegisterWritesRecordAndOutbox() {
	r, created, err := s.service.Register(s.ctx, models.RegistrationRequest{SubjectID: 1, ActivityID: 10, Status: "late"})
	s.Require().NoError(err)
	s.True(created)
	s.Equal("2024-07-30", models.FormatDate(r.RecordDate))
	s.Equal(1, s.pending())

	again, created, err := s.service.Register(s.ctx, models.RegistrationRequest{SubjectID: 1, ActivityID: 10, Status: "late"})
	s.Require().NoError(err)
	s.False(created)
	s.Equal(r.ID, again.ID)
	s.Equal(1, s.pending())
}

func (s *AttendancePostgresSuite) TestMissingEntityWritesNothing() {
	_, _, err := s.service.Register(s.ctx, models.RegistrationRequest{SubjectID: 99, ActivityID: 10})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.Equal(models.EntitySubject, dErrors.EntityOf(err))
	s.Zero(s.pending())
}

func (s *AttendancePostgresSuite) TestConcurrentRegistrationsOfOneTriple() {
	const writers = 50
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		existing  int
		conflicts int
	)
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, c, err := s.service.Register(s.ctx, models.RegistrationRequest{SubjectID: 2, ActivityID: 10})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil && c:
				created++
			case err == nil:
				existing++
			case dErrors.HasCode(err, dErrors.CodeConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()

	s.Equal(1, created)
	s.Equal(writers-1, existing+conflicts)

	records, err := s.service.ListAll(s.ctx, models.Filter{})
	s.Require().NoError(err)
	s.Len(records, 1)
	s.Equal(1, s.pending())
}

func (s *AttendancePostgresSuite) TestBatchUpsertsAndReportsMissing() {
	_, _, err := s.service.Register(s.ctx, models.RegistrationRequest{SubjectID: 1, ActivityID: 10, Status: "absent"})
	s.Require().NoError(err)

	results, err := s.service.RegisterBatch(s.ctx, []models.RegistrationRequest{
		{SubjectID: 1, ActivityID: 10, Status: "present"},
		{SubjectID: 2, ActivityID: 10, Status: "late"},
		{SubjectID: 1, ActivityID: 10, Status: "excused_absence"},
		{SubjectID: 2, ActivityID: 11},
	})
	s.Require().NoError(err)
	s.Require().Len(results, 3)
	s.Equal(models.StatusExcusedAbsence, results[0].Record.Status)
	s.Equal(models.StatusLate, results[1].Record.Status)
	s.Equal(models.EntityActivity, results[2].FailureReason)

	roster, err := s.service.ListByActivity(s.ctx, 10, nil)
	s.Require().NoError(err)
	s.Require().Len(roster.Entries, 2)
	s.Equal("Ada", roster.Entries[0].SubjectName)
	s.Equal("Alan", roster.Entries[1].SubjectName)

	// one registration event plus one batch event
	s.Equal(2, s.pending())
}

func (s *AttendancePostgresSuite) TestUpdateCollisionLeavesRecordUntouched() {
	d29 := time.Date(2024, 7, 29, 0, 0, 0, 0, time.UTC)
	_, _, err := s.service.Register(s.ctx, models.RegistrationRequest{SubjectID: 1, ActivityID: 10, RecordDate: &d29})
	s.Require().NoError(err)
	moving, _, err := s.service.Register(s.ctx, models.RegistrationRequest{SubjectID: 1, ActivityID: 10})
	s.Require().NoError(err)

	status := "late"
	_, err = s.service.Update(s.ctx, moving.ID, models.UpdateRequest{Status: &status, RecordDate: &d29})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	got, err := s.service.GetByID(s.ctx, moving.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusPresent, got.Status)
	s.Equal("2024-07-30", models.FormatDate(got.RecordDate))
}

func (s *AttendancePostgresSuite) TestDelete() {
	r, _, err := s.service.Register(s.ctx, models.RegistrationRequest{SubjectID: 1, ActivityID: 10})
	s.Require().NoError(err)

	s.Require().NoError(s.service.Delete(s.ctx, r.ID))
	err = s.service.Delete(s.ctx, r.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.Equal(2, s.pending())
}
