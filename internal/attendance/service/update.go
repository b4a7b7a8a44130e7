package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	"ledger/internal/attendance/models"
	dErrors "ledger/pkg/domain-errors"
	audit "ledger/pkg/platform/audit"
	"ledger/pkg/platform/sentinel"
	"ledger/pkg/requestcontext"
)

const conflictMessage = "another attendance record exists for this subject, activity and date"

// Update applies a partial change to a record. Moving a record onto a date
// already taken by another record of the same subject and activity is a
// conflict and leaves the record untouched.
func (s *Service) Update(ctx context.Context, id int64, req models.UpdateRequest) (record *models.Record, err error) {
	ctx, span := s.startSpan(ctx, "attendance.Update", attribute.Int64("record_id", id))
	defer func() { endSpan(span, err) }()

	changes, err := req.Normalize()
	if err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context, stores Stores) error {
		current, err := stores.Records.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.NotFound(models.EntityRecord)
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load attendance record")
		}
		if changes.IsEmpty() {
			record = current
			return nil
		}

		updated := current.Clone()
		changes.Apply(updated, requestcontext.Now(ctx))

		if newKey := updated.Key(); newKey != current.Key() {
			other, err := stores.Records.FindByKey(ctx, newKey)
			switch {
			case err == nil && other.ID != id:
				return dErrors.New(dErrors.CodeConflict, conflictMessage)
			case err != nil && !errors.Is(err, sentinel.ErrNotFound):
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check attendance collision")
			}
		}

		stored, err := stores.Records.Update(ctx, updated)
		if err != nil {
			switch {
			case errors.Is(err, sentinel.ErrConflict):
				return dErrors.Wrap(err, dErrors.CodeConflict, conflictMessage)
			case errors.Is(err, sentinel.ErrNotFound):
				return dErrors.NotFound(models.EntityRecord)
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update attendance record")
		}
		record = stored

		if err := s.emit(ctx, recordEvent(audit.EventAttendanceUpdated, stored)); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
		}
		return nil
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeConflict) && s.metrics != nil {
			s.metrics.IncrementUpdateConflict()
		}
		if dErrors.HasCode(err, dErrors.CodeInternal) {
			s.logger.ErrorContext(ctx, "failed to update attendance",
				"request_id", requestcontext.RequestID(ctx),
				"record_id", id,
				"error", err,
			)
		}
		return nil, err
	}

	s.logger.InfoContext(ctx, "attendance updated",
		"request_id", requestcontext.RequestID(ctx),
		"record_id", id,
	)
	return record, nil
}

// Delete removes a record.
func (s *Service) Delete(ctx context.Context, id int64) (err error) {
	ctx, span := s.startSpan(ctx, "attendance.Delete", attribute.Int64("record_id", id))
	defer func() { endSpan(span, err) }()

	err = s.tx.RunInTx(ctx, func(ctx context.Context, stores Stores) error {
		current, err := stores.Records.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.NotFound(models.EntityRecord)
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load attendance record")
		}
		if err := stores.Records.Delete(ctx, id); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.NotFound(models.EntityRecord)
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete attendance record")
		}
		if err := s.emit(ctx, recordEvent(audit.EventAttendanceDeleted, current)); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.IncrementDeletion()
	}
	s.logger.InfoContext(ctx, "attendance deleted",
		"request_id", requestcontext.RequestID(ctx),
		"record_id", id,
	)
	return nil
}
