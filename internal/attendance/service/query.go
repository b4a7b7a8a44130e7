package service

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"ledger/internal/attendance/existence"
	"ledger/internal/attendance/models"
	dErrors "ledger/pkg/domain-errors"
	"ledger/pkg/platform/sentinel"
)

// ListAll returns records matching every supplied filter field, newest
// date first.
func (s *Service) ListAll(ctx context.Context, filter models.Filter) (records []*models.Record, err error) {
	ctx, span := s.startSpan(ctx, "attendance.ListAll")
	defer func() { endSpan(span, err) }()

	filter, err = filter.Normalize()
	if err != nil {
		return nil, err
	}
	err = s.tx.RunReadOnly(ctx, func(ctx context.Context, stores Stores) error {
		records, err = stores.Records.List(ctx, filter)
		return err
	})
	if err != nil {
		return nil, readFailure(err, "failed to list attendance records")
	}
	return records, nil
}

// GetByID returns one record.
func (s *Service) GetByID(ctx context.Context, id int64) (*models.Record, error) {
	var record *models.Record
	err := s.tx.RunReadOnly(ctx, func(ctx context.Context, stores Stores) error {
		var err error
		record, err = stores.Records.FindByID(ctx, id)
		return err
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.NotFound(models.EntityRecord)
		}
		return nil, readFailure(err, "failed to load attendance record")
	}
	return record, nil
}

// ListByActivity returns the roster of an activity, optionally narrowed to
// one date, ordered by subject display name.
func (s *Service) ListByActivity(ctx context.Context, activityID int64, date *time.Time) (roster *models.ActivityRoster, err error) {
	ctx, span := s.startSpan(ctx, "attendance.ListByActivity", attribute.Int64("activity_id", activityID))
	defer func() { endSpan(span, err) }()

	filter := models.Filter{ActivityID: &activityID}
	if date != nil {
		d := models.NormalizeDate(*date)
		filter.DateFrom, filter.DateTo = &d, &d
	}

	err = s.tx.RunReadOnly(ctx, func(ctx context.Context, stores Stores) error {
		activity, err := existence.New(stores.Entities).CheckActivity(ctx, activityID)
		if err != nil {
			return translateLookup(err)
		}
		records, err := stores.Records.List(ctx, filter)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list activity roster")
		}

		ids := make([]int64, 0, len(records))
		for _, r := range records {
			ids = append(ids, r.SubjectID)
		}
		slices.Sort(ids)
		names, err := stores.Entities.SubjectNames(ctx, slices.Compact(ids))
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load subject names")
		}

		entries := make([]models.RosterEntry, len(records))
		for i, r := range records {
			entries[i] = models.RosterEntry{Record: r, SubjectName: names[r.SubjectID]}
		}
		slices.SortStableFunc(entries, compareRosterEntries)
		roster = &models.ActivityRoster{Activity: activity, Entries: entries}
		return nil
	})
	if err != nil {
		return nil, readFailure(err, "failed to list activity roster")
	}
	return roster, nil
}

func compareRosterEntries(a, b models.RosterEntry) int {
	if c := strings.Compare(strings.ToLower(a.SubjectName), strings.ToLower(b.SubjectName)); c != 0 {
		return c
	}
	if a.Record.SubjectID != b.Record.SubjectID {
		if a.Record.SubjectID < b.Record.SubjectID {
			return -1
		}
		return 1
	}
	return a.Record.RecordDate.Compare(b.Record.RecordDate)
}

// ListBySubject returns a subject's records in the inclusive range, newest
// date first.
func (s *Service) ListBySubject(ctx context.Context, subjectID int64, from, to *time.Time) (history *models.SubjectHistory, err error) {
	ctx, span := s.startSpan(ctx, "attendance.ListBySubject", attribute.Int64("subject_id", subjectID))
	defer func() { endSpan(span, err) }()

	filter, err := models.Filter{SubjectID: &subjectID, DateFrom: from, DateTo: to}.Normalize()
	if err != nil {
		return nil, err
	}

	err = s.tx.RunReadOnly(ctx, func(ctx context.Context, stores Stores) error {
		subject, err := existence.New(stores.Entities).CheckSubject(ctx, subjectID)
		if err != nil {
			return translateLookup(err)
		}
		records, err := stores.Records.List(ctx, filter)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list subject history")
		}
		history = &models.SubjectHistory{Subject: subject, Records: records}
		return nil
	})
	if err != nil {
		return nil, readFailure(err, "failed to list subject history")
	}
	return history, nil
}

// translateLookup keeps NotFound errors and wraps store faults.
func translateLookup(err error) error {
	if dErrors.HasCode(err, dErrors.CodeNotFound) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve referenced entity")
}

// readFailure keeps coded errors (not found, timeout) and wraps the rest.
func readFailure(err error, msg string) error {
	var coded *dErrors.Error
	if errors.As(err, &coded) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
