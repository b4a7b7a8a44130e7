package models

import (
	"fmt"
	"time"

	dErrors "ledger/pkg/domain-errors"
)

const (
	// DateLayout is the wire and storage format of a record date.
	DateLayout = "2006-01-02"

	MaxNoteLength = 500
)

// Record is one attendance entry. At most one Record exists per Key.
type Record struct {
	ID         int64
	SubjectID  int64
	ActivityID int64
	Status     Status
	RecordDate time.Time
	Note       string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Key returns the uniqueness triple of the record.
func (r *Record) Key() Key {
	return Key{SubjectID: r.SubjectID, ActivityID: r.ActivityID, Date: r.RecordDate}
}

// Clone returns a copy so stores never hand out their internal pointers.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

// Key is the (subject, activity, date) triple that identifies a record.
// Date must already be normalized with NormalizeDate.
type Key struct {
	SubjectID  int64
	ActivityID int64
	Date       time.Time
}

func NewKey(subjectID, activityID int64, date time.Time) Key {
	return Key{SubjectID: subjectID, ActivityID: activityID, Date: NormalizeDate(date)}
}

func (k Key) String() string {
	return fmt.Sprintf("%d/%d/%s", k.SubjectID, k.ActivityID, k.Date.Format(DateLayout))
}

// NormalizeDate truncates t to its calendar date at UTC midnight, keeping the
// wall-clock date of t's own location.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD value.
func ParseDate(raw string) (time.Time, error) {
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return time.Time{}, dErrors.New(dErrors.CodeValidation, "date must use the YYYY-MM-DD format")
	}
	return t, nil
}

// FormatDate renders a record date in DateLayout.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
