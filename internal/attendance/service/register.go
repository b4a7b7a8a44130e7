package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"ledger/internal/attendance/existence"
	"ledger/internal/attendance/metrics"
	"ledger/internal/attendance/models"
	dErrors "ledger/pkg/domain-errors"
	audit "ledger/pkg/platform/audit"
	"ledger/pkg/platform/sentinel"
	"ledger/pkg/requestcontext"
)

// Register records attendance for one triple. Re-registering an identical
// record returns the stored one with created=false; a different status or
// note for an existing triple is a conflict.
func (s *Service) Register(ctx context.Context, req models.RegistrationRequest) (record *models.Record, created bool, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "attendance.Register",
		attribute.Int64("subject_id", req.SubjectID),
		attribute.Int64("activity_id", req.ActivityID),
	)
	defer func() {
		endSpan(span, err)
		s.observeRegister(start, created, err)
	}()

	reg, err := req.Normalize(requestcontext.Now(ctx))
	if err != nil {
		return nil, false, err
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context, stores Stores) error {
		missing, err := existence.New(stores.Entities).Check(ctx, reg.Key.SubjectID, reg.Key.ActivityID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check referenced entities")
		}
		if missing != "" {
			return dErrors.NotFound(missing)
		}

		existing, err := stores.Records.FindByKey(ctx, reg.Key)
		switch {
		case err == nil:
			if existing.Status != reg.Status || existing.Note != reg.Note {
				return dErrors.New(dErrors.CodeConflict,
					"attendance already registered for this subject, activity and date with different values")
			}
			record = existing
			return nil
		case !errors.Is(err, sentinel.ErrNotFound):
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load attendance record")
		}

		now := requestcontext.Now(ctx)
		inserted, err := stores.Records.Insert(ctx, &models.Record{
			SubjectID:  reg.Key.SubjectID,
			ActivityID: reg.Key.ActivityID,
			Status:     reg.Status,
			RecordDate: reg.Key.Date,
			Note:       reg.Note,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
		if err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.Wrap(err, dErrors.CodeConflict, "attendance already registered for this subject, activity and date")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to insert attendance record")
		}
		record, created = inserted, true

		if err := s.emit(ctx, recordEvent(audit.EventAttendanceRegistered, inserted)); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
		}
		return nil
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInternal) {
			s.logger.ErrorContext(ctx, "failed to register attendance",
				"request_id", requestcontext.RequestID(ctx),
				"key", reg.Key.String(),
				"error", err,
			)
		}
		return nil, false, err
	}

	s.logger.InfoContext(ctx, "attendance registered",
		"request_id", requestcontext.RequestID(ctx),
		"record_id", record.ID,
		"created", created,
	)
	return record, created, nil
}

func (s *Service) observeRegister(start time.Time, created bool, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveRegister(start)
	switch {
	case err == nil && created:
		s.metrics.IncrementRegistration(metrics.OutcomeCreated)
	case err == nil:
		s.metrics.IncrementRegistration(metrics.OutcomeExisting)
	case dErrors.HasCode(err, dErrors.CodeNotFound):
		s.metrics.IncrementRegistration(metrics.OutcomeNotFound)
	case dErrors.HasCode(err, dErrors.CodeConflict):
		s.metrics.IncrementRegistration(metrics.OutcomeConflict)
	default:
		s.metrics.IncrementRegistration(metrics.OutcomeFailed)
	}
}
