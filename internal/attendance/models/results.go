package models

import dErrors "ledger/pkg/domain-errors"

// ItemResult is the outcome of one deduplicated batch item: either Record is
// set, or FailureReason names the missing entity.
type ItemResult struct {
	Record        *Record
	FailureReason dErrors.Entity
}

func (r ItemResult) Succeeded() bool {
	return r.Record != nil
}

// BatchSummary counts batch outcomes for logging, metrics and audit.
type BatchSummary struct {
	Received   int
	Duplicates int
	Coerced    int
	Upserted   int
	Failed     int
}

// ActivityRoster is the attendance of one activity, ordered by subject name.
type ActivityRoster struct {
	Activity *Activity
	Entries  []RosterEntry
}

// RosterEntry pairs a record with its subject's display name.
type RosterEntry struct {
	Record      *Record
	SubjectName string
}

// SubjectHistory is the attendance of one subject, newest first.
type SubjectHistory struct {
	Subject *Subject
	Records []*Record
}
