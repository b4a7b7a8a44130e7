package directory

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"ledger/internal/attendance/models"
	"ledger/pkg/platform/sentinel"
)

func TestInMemory(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()
	store.PutSubject(models.Subject{ID: 1, DisplayName: "Ana"})
	store.PutSubject(models.Subject{ID: 2, DisplayName: "Bruno"})
	store.PutActivity(models.Activity{ID: 10, Title: "Choir"})

	t.Run("finds known entities", func(t *testing.T) {
		subject, err := store.FindSubject(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "Ana", subject.DisplayName)

		activity, err := store.FindActivity(ctx, 10)
		require.NoError(t, err)
		assert.Equal(t, "Choir", activity.Title)
	})

	t.Run("unknown ids are not found", func(t *testing.T) {
		_, err := store.FindSubject(ctx, 99)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)

		_, err = store.FindActivity(ctx, 99)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("subject names skip unknown ids", func(t *testing.T) {
		names, err := store.SubjectNames(ctx, []int64{1, 2, 99})
		require.NoError(t, err)
		assert.Equal(t, map[int64]string{1: "Ana", 2: "Bruno"}, names)
	})
}

type PostgresUnitSuite struct {
	suite.Suite
	db    *sql.DB
	mock  sqlmock.Sqlmock
	store *PostgresStore
	ctx   context.Context
}

func TestPostgresUnitSuite(t *testing.T) {
	suite.Run(t, new(PostgresUnitSuite))
}

func (s *PostgresUnitSuite) SetupTest() {
	db, mock, err := sqlmock.New()
	s.Require().NoError(err)
	s.db, s.mock = db, mock
	s.store = NewPostgres(db)
	s.ctx = context.Background()
}

func (s *PostgresUnitSuite) TearDownTest() {
	s.NoError(s.mock.ExpectationsWereMet())
	s.db.Close()
}

func (s *PostgresUnitSuite) TestFindSubject() {
	s.mock.ExpectQuery(regexp.QuoteMeta("SELECT id, display_name FROM subjects WHERE id = $1")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "display_name"}).AddRow(int64(1), "Ana"))

	subject, err := s.store.FindSubject(s.ctx, 1)
	s.Require().NoError(err)
	s.Equal(models.Subject{ID: 1, DisplayName: "Ana"}, *subject)
}

func (s *PostgresUnitSuite) TestFindActivityNotFound() {
	s.mock.ExpectQuery(regexp.QuoteMeta("SELECT id, title FROM activities WHERE id = $1")).
		WithArgs(int64(999)).
		WillReturnError(sql.ErrNoRows)

	_, err := s.store.FindActivity(s.ctx, 999)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresUnitSuite) TestFindActivityStoreFault() {
	boom := errors.New("connection reset")
	s.mock.ExpectQuery(regexp.QuoteMeta("FROM activities")).WillReturnError(boom)

	_, err := s.store.FindActivity(s.ctx, 1)
	s.ErrorIs(err, boom)
	s.NotErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresUnitSuite) TestSubjectNamesUsesArrayParameter() {
	s.mock.ExpectQuery(regexp.QuoteMeta("WHERE id = ANY($1)")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "display_name"}).
			AddRow(int64(1), "Ana").
			AddRow(int64(2), "Bruno"))

	names, err := s.store.SubjectNames(s.ctx, []int64{1, 2})
	s.Require().NoError(err)
	s.Equal(map[int64]string{1: "Ana", 2: "Bruno"}, names)
}

func (s *PostgresUnitSuite) TestSubjectNamesEmptySkipsQuery() {
	names, err := s.store.SubjectNames(s.ctx, nil)
	s.Require().NoError(err)
	s.Empty(names)
}
