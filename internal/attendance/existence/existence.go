// Package existence confirms that the subject and activity an attendance
// operation references are live before anything is written.
package existence

import (
	"context"
	"errors"
	"fmt"

	"ledger/internal/attendance/models"
	dErrors "ledger/pkg/domain-errors"
	"ledger/pkg/platform/sentinel"
)

// Lookup resolves the referenced entities. Implementations return
// sentinel.ErrNotFound for ids that do not resolve.
type Lookup interface {
	FindSubject(ctx context.Context, id int64) (*models.Subject, error)
	FindActivity(ctx context.Context, id int64) (*models.Activity, error)
}

type Validator struct {
	lookup Lookup
}

func New(lookup Lookup) *Validator {
	return &Validator{lookup: lookup}
}

// Check returns the kind of the first missing entity, subject before
// activity, or "" when both resolve. Errors are store faults only.
func (v *Validator) Check(ctx context.Context, subjectID, activityID int64) (dErrors.Entity, error) {
	if _, err := v.CheckSubject(ctx, subjectID); err != nil {
		return missing(err, models.EntitySubject)
	}
	if _, err := v.CheckActivity(ctx, activityID); err != nil {
		return missing(err, models.EntityActivity)
	}
	return "", nil
}

// CheckSubject loads the subject, mapping absence to NotFound(Subject).
func (v *Validator) CheckSubject(ctx context.Context, id int64) (*models.Subject, error) {
	if id <= 0 {
		return nil, dErrors.NotFound(models.EntitySubject)
	}
	subject, err := v.lookup.FindSubject(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.NotFound(models.EntitySubject)
		}
		return nil, fmt.Errorf("find subject %d: %w", id, err)
	}
	return subject, nil
}

// CheckActivity loads the activity, mapping absence to NotFound(Activity).
func (v *Validator) CheckActivity(ctx context.Context, id int64) (*models.Activity, error) {
	if id <= 0 {
		return nil, dErrors.NotFound(models.EntityActivity)
	}
	activity, err := v.lookup.FindActivity(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.NotFound(models.EntityActivity)
		}
		return nil, fmt.Errorf("find activity %d: %w", id, err)
	}
	return activity, nil
}

func missing(err error, entity dErrors.Entity) (dErrors.Entity, error) {
	if dErrors.HasCode(err, dErrors.CodeNotFound) {
		return entity, nil
	}
	return "", err
}
