package models

import (
	"strings"

	dErrors "ledger/pkg/domain-errors"
)

// Status is the attendance outcome recorded for a subject on a date.
type Status string

const (
	StatusPresent        Status = "present"
	StatusAbsent         Status = "absent"
	StatusLate           Status = "late"
	StatusExcusedAbsence Status = "excused_absence"
)

// DefaultStatus is used when a registration omits the status.
const DefaultStatus = StatusPresent

var validStatuses = map[Status]struct{}{
	StatusPresent:        {},
	StatusAbsent:         {},
	StatusLate:           {},
	StatusExcusedAbsence: {},
}

func (s Status) IsValid() bool {
	_, ok := validStatuses[s]
	return ok
}

func (s Status) String() string {
	return string(s)
}

// ParseStatus parses a status strictly. An empty value yields DefaultStatus.
func ParseStatus(raw string) (Status, error) {
	v := Status(strings.ToLower(strings.TrimSpace(raw)))
	if v == "" {
		return DefaultStatus, nil
	}
	if !v.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation,
			"status must be one of present, absent, late, excused_absence")
	}
	return v, nil
}

// CoerceStatus parses a status leniently: unknown values become
// DefaultStatus. The second return reports whether a non-empty value was
// replaced.
func CoerceStatus(raw string) (Status, bool) {
	v, err := ParseStatus(raw)
	if err != nil {
		return DefaultStatus, true
	}
	return v, false
}
