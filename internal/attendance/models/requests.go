package models

import (
	"strings"
	"time"
	"unicode/utf8"

	dErrors "ledger/pkg/domain-errors"
)

// RegistrationRequest is the caller-facing shape of a single or batched
// registration. Zero values mean "not supplied".
type RegistrationRequest struct {
	SubjectID  int64
	ActivityID int64
	Status     string
	RecordDate *time.Time
	Note       string
}

// Registration is a normalized RegistrationRequest ready for the store.
type Registration struct {
	Key    Key
	Status Status
	Note   string
}

// Normalize resolves defaults and validates strictly: an unknown status is
// a validation error. today supplies the default record date.
// Follows validation order: Size -> Required -> Syntax.
func (r RegistrationRequest) Normalize(today time.Time) (Registration, error) {
	note, err := normalizeNote(r.Note)
	if err != nil {
		return Registration{}, err
	}
	if r.SubjectID <= 0 {
		return Registration{}, dErrors.New(dErrors.CodeValidation, "subject_id is required")
	}
	if r.ActivityID <= 0 {
		return Registration{}, dErrors.New(dErrors.CodeValidation, "activity_id is required")
	}
	status, err := ParseStatus(r.Status)
	if err != nil {
		return Registration{}, err
	}
	return Registration{Key: r.key(today), Status: status, Note: note}, nil
}

// NormalizeLenient resolves defaults the way batch reconciliation does:
// unknown statuses fall back to DefaultStatus (reported by coerced) and ids
// are passed through untouched so the existence check reports them.
func (r RegistrationRequest) NormalizeLenient(today time.Time) (reg Registration, coerced bool, err error) {
	note, err := normalizeNote(r.Note)
	if err != nil {
		return Registration{}, false, err
	}
	status, coerced := CoerceStatus(r.Status)
	return Registration{Key: r.key(today), Status: status, Note: note}, coerced, nil
}

func (r RegistrationRequest) key(today time.Time) Key {
	date := today
	if r.RecordDate != nil && !r.RecordDate.IsZero() {
		date = *r.RecordDate
	}
	return NewKey(r.SubjectID, r.ActivityID, date)
}

func normalizeNote(raw string) (string, error) {
	note := strings.TrimSpace(raw)
	if utf8.RuneCountInString(note) > MaxNoteLength {
		return "", dErrors.New(dErrors.CodeValidation, "note must be 500 characters or less")
	}
	return note, nil
}

// UpdateRequest carries a partial update. Nil fields are left unchanged.
type UpdateRequest struct {
	Status     *string
	RecordDate *time.Time
	Note       *string
}

// Changes is a validated UpdateRequest.
type Changes struct {
	Status     *Status
	RecordDate *time.Time
	Note       *string
}

// Normalize validates every supplied field.
func (r UpdateRequest) Normalize() (Changes, error) {
	var c Changes
	if r.Note != nil {
		note, err := normalizeNote(*r.Note)
		if err != nil {
			return Changes{}, err
		}
		c.Note = &note
	}
	if r.Status != nil {
		if strings.TrimSpace(*r.Status) == "" {
			return Changes{}, dErrors.New(dErrors.CodeValidation, "status must not be empty")
		}
		status, err := ParseStatus(*r.Status)
		if err != nil {
			return Changes{}, err
		}
		c.Status = &status
	}
	if r.RecordDate != nil {
		if r.RecordDate.IsZero() {
			return Changes{}, dErrors.New(dErrors.CodeValidation, "record_date must not be empty")
		}
		d := NormalizeDate(*r.RecordDate)
		c.RecordDate = &d
	}
	return c, nil
}

// IsEmpty reports whether no field was supplied.
func (c Changes) IsEmpty() bool {
	return c.Status == nil && c.RecordDate == nil && c.Note == nil
}

// Apply writes the changes onto r.
func (c Changes) Apply(r *Record, now time.Time) {
	if c.Status != nil {
		r.Status = *c.Status
	}
	if c.RecordDate != nil {
		r.RecordDate = *c.RecordDate
	}
	if c.Note != nil {
		r.Note = *c.Note
	}
	r.UpdatedAt = now
}

// Filter narrows ListAll. Every field is optional and fields combine with AND.
// DateFrom and DateTo are inclusive.
type Filter struct {
	SubjectID  *int64
	ActivityID *int64
	DateFrom   *time.Time
	DateTo     *time.Time
	Statuses   []Status
}

// Normalize truncates dates and checks the range.
func (f Filter) Normalize() (Filter, error) {
	if f.DateFrom != nil {
		d := NormalizeDate(*f.DateFrom)
		f.DateFrom = &d
	}
	if f.DateTo != nil {
		d := NormalizeDate(*f.DateTo)
		f.DateTo = &d
	}
	if f.DateFrom != nil && f.DateTo != nil && f.DateFrom.After(*f.DateTo) {
		return Filter{}, dErrors.New(dErrors.CodeValidation, "date_from must not be after date_to")
	}
	for _, s := range f.Statuses {
		if !s.IsValid() {
			return Filter{}, dErrors.New(dErrors.CodeValidation, "unknown status filter: "+string(s))
		}
	}
	return f, nil
}

// Matches reports whether r satisfies every supplied criterion.
func (f Filter) Matches(r *Record) bool {
	if f.SubjectID != nil && r.SubjectID != *f.SubjectID {
		return false
	}
	if f.ActivityID != nil && r.ActivityID != *f.ActivityID {
		return false
	}
	if f.DateFrom != nil && r.RecordDate.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && r.RecordDate.After(*f.DateTo) {
		return false
	}
	if len(f.Statuses) > 0 {
		for _, s := range f.Statuses {
			if r.Status == s {
				return true
			}
		}
		return false
	}
	return true
}
