package models

import dErrors "ledger/pkg/domain-errors"

// Entity kinds reported by existence checks and NotFound errors.
const (
	EntitySubject  dErrors.Entity = "Subject"
	EntityActivity dErrors.Entity = "Activity"
	EntityRecord   dErrors.Entity = "AttendanceRecord"
)

// Subject is the tracked person. The ledger only reads it.
type Subject struct {
	ID          int64
	DisplayName string
}

// Activity is the attended occurrence. The ledger only reads it.
type Activity struct {
	ID    int64
	Title string
}
