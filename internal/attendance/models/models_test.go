package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	dErrors "ledger/pkg/domain-errors"
)

type ModelsSuite struct {
	suite.Suite
	today time.Time
}

func TestModelsSuite(t *testing.T) {
	suite.Run(t, new(ModelsSuite))
}

func (s *ModelsSuite) SetupTest() {
	s.today = time.Date(2024, 7, 30, 18, 45, 0, 0, time.UTC)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (s *ModelsSuite) TestParseStatus() {
	s.Run("empty defaults to present", func() {
		st, err := ParseStatus("")
		s.Require().NoError(err)
		s.Equal(StatusPresent, st)
	})

	s.Run("case and whitespace are ignored", func() {
		st, err := ParseStatus("  Excused_Absence ")
		s.Require().NoError(err)
		s.Equal(StatusExcusedAbsence, st)
	})

	s.Run("unknown value is a validation error", func() {
		_, err := ParseStatus("sleeping")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ModelsSuite) TestCoerceStatus() {
	st, coerced := CoerceStatus("sleeping")
	s.Equal(StatusPresent, st)
	s.True(coerced)

	st, coerced = CoerceStatus("late")
	s.Equal(StatusLate, st)
	s.False(coerced)

	st, coerced = CoerceStatus("")
	s.Equal(StatusPresent, st)
	s.False(coerced)
}

func (s *ModelsSuite) TestRegistrationNormalize() {
	s.Run("defaults date to today and status to present", func() {
		reg, err := RegistrationRequest{SubjectID: 1, ActivityID: 2}.Normalize(s.today)
		s.Require().NoError(err)
		s.Equal(date(2024, 7, 30), reg.Key.Date)
		s.Equal(StatusPresent, reg.Status)
	})

	s.Run("truncates supplied date to the calendar day", func() {
		d := time.Date(2024, 7, 1, 23, 59, 0, 0, time.UTC)
		reg, err := RegistrationRequest{SubjectID: 1, ActivityID: 2, RecordDate: &d}.Normalize(s.today)
		s.Require().NoError(err)
		s.Equal(NewKey(1, 2, date(2024, 7, 1)), reg.Key)
	})

	s.Run("rejects missing ids", func() {
		_, err := RegistrationRequest{ActivityID: 2}.Normalize(s.today)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		_, err = RegistrationRequest{SubjectID: 1}.Normalize(s.today)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects oversized note", func() {
		_, err := RegistrationRequest{SubjectID: 1, ActivityID: 2, Note: strings.Repeat("é", MaxNoteLength+1)}.Normalize(s.today)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("accepts note at the limit counted in characters", func() {
		reg, err := RegistrationRequest{SubjectID: 1, ActivityID: 2, Note: strings.Repeat("é", MaxNoteLength)}.Normalize(s.today)
		s.Require().NoError(err)
		s.Len([]rune(reg.Note), MaxNoteLength)
	})

	s.Run("lenient mode coerces unknown status and keeps ids", func() {
		reg, coerced, err := RegistrationRequest{SubjectID: 0, ActivityID: 9, Status: "??"}.NormalizeLenient(s.today)
		s.Require().NoError(err)
		s.True(coerced)
		s.Equal(StatusPresent, reg.Status)
		s.Equal(int64(0), reg.Key.SubjectID)
	})
}

func (s *ModelsSuite) TestUpdateNormalize() {
	s.Run("empty status is rejected", func() {
		blank := " "
		_, err := UpdateRequest{Status: &blank}.Normalize()
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("apply only touches supplied fields", func() {
		note := "  arrived with guardian "
		c, err := UpdateRequest{Note: &note}.Normalize()
		s.Require().NoError(err)

		r := &Record{Status: StatusLate, RecordDate: date(2024, 7, 30)}
		c.Apply(r, s.today)
		s.Equal(StatusLate, r.Status)
		s.Equal("arrived with guardian", r.Note)
		s.Equal(s.today, r.UpdatedAt)
	})

	s.Run("no fields is empty", func() {
		c, err := UpdateRequest{}.Normalize()
		s.Require().NoError(err)
		s.True(c.IsEmpty())
	})
}

func TestFilterMatches(t *testing.T) {
	subject := int64(1)
	from, to := date(2024, 7, 1), date(2024, 7, 31)
	f, err := Filter{SubjectID: &subject, DateFrom: &from, DateTo: &to, Statuses: []Status{StatusAbsent}}.Normalize()
	require.NoError(t, err)

	assert.True(t, f.Matches(&Record{SubjectID: 1, RecordDate: from, Status: StatusAbsent}))
	assert.True(t, f.Matches(&Record{SubjectID: 1, RecordDate: to, Status: StatusAbsent}))
	assert.False(t, f.Matches(&Record{SubjectID: 1, RecordDate: date(2024, 8, 1), Status: StatusAbsent}))
	assert.False(t, f.Matches(&Record{SubjectID: 2, RecordDate: from, Status: StatusAbsent}))
	assert.False(t, f.Matches(&Record{SubjectID: 1, RecordDate: from, Status: StatusPresent}))
}

func TestFilterRejectsInvertedRange(t *testing.T) {
	from, to := date(2024, 7, 31), date(2024, 7, 1)
	_, err := Filter{DateFrom: &from, DateTo: &to}.Normalize()
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}
