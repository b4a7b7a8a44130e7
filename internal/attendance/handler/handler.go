package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"ledger/internal/attendance/models"
	dErrors "ledger/pkg/domain-errors"
	"ledger/pkg/platform/httputil"
	pstrings "ledger/pkg/platform/strings"
	"ledger/pkg/requestcontext"
)

// Service defines the attendance operations exposed over HTTP.
type Service interface {
	Register(ctx context.Context, req models.RegistrationRequest) (*models.Record, bool, error)
	RegisterBatch(ctx context.Context, items []models.RegistrationRequest) ([]models.ItemResult, error)
	Update(ctx context.Context, id int64, req models.UpdateRequest) (*models.Record, error)
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*models.Record, error)
	ListAll(ctx context.Context, filter models.Filter) ([]*models.Record, error)
	ListByActivity(ctx context.Context, activityID int64, date *time.Time) (*models.ActivityRoster, error)
	ListBySubject(ctx context.Context, subjectID int64, from, to *time.Time) (*models.SubjectHistory, error)
}

// Handler wires attendance endpoints to the attendance service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts attendance endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/attendance", h.HandleRegister)
	r.Post("/attendance/batch", h.HandleRegisterBatch)
	r.Get("/attendance", h.HandleList)
	r.Get("/attendance/{id}", h.HandleGet)
	r.Patch("/attendance/{id}", h.HandleUpdate)
	r.Delete("/attendance/{id}", h.HandleDelete)
	r.Get("/activities/{activityID}/attendance", h.HandleListByActivity)
	r.Get("/subjects/{subjectID}/attendance", h.HandleListBySubject)
}

// HandleRegister handles POST /attendance. A new record answers 201, an
// identical existing one answers 200.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[RegisterRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	record, created, err := h.service.Register(ctx, req.ToModel())
	if err != nil {
		h.logFailure(ctx, "attendance registration failed", err,
			"request_id", requestID,
			"subject_id", req.SubjectID,
			"activity_id", req.ActivityID,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "attendance registered",
		"request_id", requestID,
		"record_id", record.ID,
		"created", created,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	httputil.WriteJSON(w, status, RegisterResponse{RecordResponse: toRecordResponse(record), Created: created})
}

// HandleRegisterBatch handles POST /attendance/batch.
func (h *Handler) HandleRegisterBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[BatchRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	results, err := h.service.RegisterBatch(ctx, req.ToModel())
	if err != nil {
		h.logFailure(ctx, "attendance batch failed", err,
			"request_id", requestID,
			"items", len(*req),
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "attendance batch reconciled",
		"request_id", requestID,
		"items", len(*req),
		"results", len(results),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, toBatchResponse(results))
}

// HandleList handles GET /attendance with optional subject_id, activity_id,
// date_from, date_to and status filters.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	filter, err := parseFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	records, err := h.service.ListAll(ctx, filter)
	if err != nil {
		h.logFailure(ctx, "failed to list attendance", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ListResponse{Records: toRecordResponses(records)})
}

// HandleGet handles GET /attendance/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	id, err := parseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	record, err := h.service.GetByID(ctx, id)
	if err != nil {
		h.logFailure(ctx, "failed to get attendance record", err,
			"request_id", requestID,
			"record_id", id,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRecordResponse(record))
}

// HandleUpdate handles PATCH /attendance/{id}.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	id, err := parseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[UpdateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	record, err := h.service.Update(ctx, id, req.ToModel())
	if err != nil {
		h.logFailure(ctx, "attendance update failed", err,
			"request_id", requestID,
			"record_id", id,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "attendance updated",
		"request_id", requestID,
		"record_id", id,
	)
	httputil.WriteJSON(w, http.StatusOK, toRecordResponse(record))
}

// HandleDelete handles DELETE /attendance/{id}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	id, err := parseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.Delete(ctx, id); err != nil {
		h.logFailure(ctx, "attendance delete failed", err,
			"request_id", requestID,
			"record_id", id,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "attendance deleted",
		"request_id", requestID,
		"record_id", id,
	)
	w.WriteHeader(http.StatusNoContent)
}

// HandleListByActivity handles GET /activities/{activityID}/attendance?date=.
func (h *Handler) HandleListByActivity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	activityID, err := parseID(chi.URLParam(r, "activityID"), "activity_id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	date, err := parseOptionalDate(r.URL.Query().Get("date"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	roster, err := h.service.ListByActivity(ctx, activityID, date)
	if err != nil {
		h.logFailure(ctx, "failed to list activity attendance", err,
			"request_id", requestID,
			"activity_id", activityID,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRosterResponse(roster))
}

// HandleListBySubject handles GET /subjects/{subjectID}/attendance.
func (h *Handler) HandleListBySubject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	subjectID, err := parseID(chi.URLParam(r, "subjectID"), "subject_id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	q := r.URL.Query()
	from, err := parseOptionalDate(q.Get("date_from"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	to, err := parseOptionalDate(q.Get("date_to"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	history, err := h.service.ListBySubject(ctx, subjectID, from, to)
	if err != nil {
		h.logFailure(ctx, "failed to list subject attendance", err,
			"request_id", requestID,
			"subject_id", subjectID,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toHistoryResponse(history))
}

// logFailure logs client errors at info and everything else at error.
func (h *Handler) logFailure(ctx context.Context, msg string, err error, args ...any) {
	args = append(args, "error", err)
	if httputil.StatusFor(dErrors.CodeOf(err)) < http.StatusInternalServerError {
		h.logger.InfoContext(ctx, msg, args...)
		return
	}
	h.logger.ErrorContext(ctx, msg, args...)
}

func parseID(raw, name string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, dErrors.New(dErrors.CodeBadRequest, name+" must be a positive integer")
	}
	return id, nil
}

func parseOptionalID(raw, name string) (*int64, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := parseID(raw, name)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func parseFilter(r *http.Request) (models.Filter, error) {
	q := r.URL.Query()
	var (
		f   models.Filter
		err error
	)
	if f.SubjectID, err = parseOptionalID(q.Get("subject_id"), "subject_id"); err != nil {
		return models.Filter{}, err
	}
	if f.ActivityID, err = parseOptionalID(q.Get("activity_id"), "activity_id"); err != nil {
		return models.Filter{}, err
	}
	if f.DateFrom, err = parseOptionalDate(q.Get("date_from")); err != nil {
		return models.Filter{}, err
	}
	if f.DateTo, err = parseOptionalDate(q.Get("date_to")); err != nil {
		return models.Filter{}, err
	}
	for _, raw := range pstrings.SplitList(q.Get("status")) {
		status, err := models.ParseStatus(raw)
		if err != nil {
			return models.Filter{}, err
		}
		f.Statuses = append(f.Statuses, status)
	}
	return f, nil
}
