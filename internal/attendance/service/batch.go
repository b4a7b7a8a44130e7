package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"ledger/internal/attendance/existence"
	"ledger/internal/attendance/metrics"
	"ledger/internal/attendance/models"
	dErrors "ledger/pkg/domain-errors"
	audit "ledger/pkg/platform/audit"
	"ledger/pkg/requestcontext"
)

// MaxBatchSize bounds the number of items accepted by RegisterBatch.
const MaxBatchSize = 1000

// RegisterBatch reconciles a roster of registrations in one transaction.
//
// Items are normalized leniently (unknown statuses become present), then
// deduplicated by key with the last occurrence winning. Each surviving item
// whose subject or activity is missing yields a failure result and is
// skipped; every other item is upserted. A store fault rolls back the whole
// batch. Results follow the order of first occurrence of each key.
func (s *Service) RegisterBatch(ctx context.Context, items []models.RegistrationRequest) (results []models.ItemResult, err error) {
	if len(items) == 0 {
		return []models.ItemResult{}, nil
	}
	if len(items) > MaxBatchSize {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("batch must contain at most %d items", MaxBatchSize))
	}

	start := time.Now()
	ctx, span := s.startSpan(ctx, "attendance.RegisterBatch", attribute.Int("items", len(items)))
	defer func() { endSpan(span, err) }()

	regs, summary, err := normalizeBatch(items, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if summary.Coerced > 0 {
		s.logger.WarnContext(ctx, "unknown attendance statuses defaulted to present",
			"request_id", requestcontext.RequestID(ctx),
			"coerced", summary.Coerced,
		)
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context, stores Stores) error {
		validator := existence.New(stores.Entities)
		now := requestcontext.Now(ctx)
		out := make([]models.ItemResult, 0, len(regs))
		for _, reg := range regs {
			missing, err := validator.Check(ctx, reg.Key.SubjectID, reg.Key.ActivityID)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check referenced entities")
			}
			if missing != "" {
				out = append(out, models.ItemResult{FailureReason: missing})
				continue
			}
			record, err := stores.Records.UpsertByKey(ctx, reg, now)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to upsert attendance record "+reg.Key.String())
			}
			out = append(out, models.ItemResult{Record: record})
		}

		summary.Upserted, summary.Failed = countOutcomes(out)
		results = out
		return s.emitBatch(ctx, summary)
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "batch reconciliation rolled back",
			"request_id", requestcontext.RequestID(ctx),
			"received", summary.Received,
			"error", err,
		)
		return nil, err
	}

	s.observeBatch(start, summary)
	s.logger.InfoContext(ctx, "attendance batch reconciled",
		"request_id", requestcontext.RequestID(ctx),
		"received", summary.Received,
		"duplicates", summary.Duplicates,
		"upserted", summary.Upserted,
		"failed", summary.Failed,
	)
	return results, nil
}

// normalizeBatch normalizes every item and collapses duplicate keys. The
// surviving registration for a key carries the values of its last
// occurrence and sits at the position of its first.
func normalizeBatch(items []models.RegistrationRequest, today time.Time) ([]models.Registration, models.BatchSummary, error) {
	summary := models.BatchSummary{Received: len(items)}
	regs := make([]models.Registration, 0, len(items))
	position := make(map[models.Key]int, len(items))

	for i, item := range items {
		reg, coerced, err := item.NormalizeLenient(today)
		if err != nil {
			return nil, summary, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("item %d: %s", i, messageOf(err)))
		}
		if coerced {
			summary.Coerced++
		}
		if at, seen := position[reg.Key]; seen {
			regs[at] = reg
			summary.Duplicates++
			continue
		}
		position[reg.Key] = len(regs)
		regs = append(regs, reg)
	}
	return regs, summary, nil
}

func messageOf(err error) string {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}

func countOutcomes(results []models.ItemResult) (upserted, failed int) {
	for _, r := range results {
		if r.Succeeded() {
			upserted++
		} else {
			failed++
		}
	}
	return upserted, failed
}

func (s *Service) emitBatch(ctx context.Context, summary models.BatchSummary) error {
	err := s.emit(ctx, audit.Event{
		Action:   string(audit.EventBatchReconciled),
		Received: summary.Received,
		Upserted: summary.Upserted,
		Failed:   summary.Failed,
		Coerced:  summary.Coerced,
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
	}
	return nil
}

func (s *Service) observeBatch(start time.Time, summary models.BatchSummary) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveBatch(start, summary.Received)
	s.metrics.AddBatchItems(metrics.ItemUpserted, summary.Upserted)
	s.metrics.AddBatchItems(metrics.ItemMissing, summary.Failed)
	s.metrics.AddBatchItems(metrics.ItemDuplicate, summary.Duplicates)
	s.metrics.AddCoercedStatuses(summary.Coerced)
}
