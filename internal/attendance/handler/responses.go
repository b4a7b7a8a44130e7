package handler

import (
	"time"

	"ledger/internal/attendance/models"
)

type RecordResponse struct {
	ID         int64     `json:"id"`
	SubjectID  int64     `json:"subject_id"`
	ActivityID int64     `json:"activity_id"`
	Status     string    `json:"status"`
	RecordDate string    `json:"record_date"`
	Note       string    `json:"note"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func toRecordResponse(r *models.Record) RecordResponse {
	return RecordResponse{
		ID:         r.ID,
		SubjectID:  r.SubjectID,
		ActivityID: r.ActivityID,
		Status:     string(r.Status),
		RecordDate: models.FormatDate(r.RecordDate),
		Note:       r.Note,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

func toRecordResponses(records []*models.Record) []RecordResponse {
	out := make([]RecordResponse, len(records))
	for i, r := range records {
		out[i] = toRecordResponse(r)
	}
	return out
}

// RegisterResponse is the record plus whether this call created it.
type RegisterResponse struct {
	RecordResponse
	Created bool `json:"created"`
}

// ItemResultResponse carries either record or failure_reason.
type ItemResultResponse struct {
	Record        *RecordResponse `json:"record,omitempty"`
	FailureReason string          `json:"failure_reason,omitempty"`
}

type BatchResponse struct {
	Results []ItemResultResponse `json:"results"`
}

func toBatchResponse(results []models.ItemResult) BatchResponse {
	out := make([]ItemResultResponse, len(results))
	for i, r := range results {
		if r.Succeeded() {
			rec := toRecordResponse(r.Record)
			out[i] = ItemResultResponse{Record: &rec}
			continue
		}
		out[i] = ItemResultResponse{FailureReason: string(r.FailureReason)}
	}
	return BatchResponse{Results: out}
}

type ListResponse struct {
	Records []RecordResponse `json:"records"`
}

type ActivityResponse struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

type RosterEntryResponse struct {
	RecordResponse
	SubjectName string `json:"subject_name"`
}

type RosterResponse struct {
	Activity ActivityResponse      `json:"activity"`
	Records  []RosterEntryResponse `json:"records"`
}

func toRosterResponse(roster *models.ActivityRoster) RosterResponse {
	entries := make([]RosterEntryResponse, len(roster.Entries))
	for i, e := range roster.Entries {
		entries[i] = RosterEntryResponse{RecordResponse: toRecordResponse(e.Record), SubjectName: e.SubjectName}
	}
	return RosterResponse{
		Activity: ActivityResponse{ID: roster.Activity.ID, Title: roster.Activity.Title},
		Records:  entries,
	}
}

type SubjectResponse struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
}

type HistoryResponse struct {
	Subject SubjectResponse  `json:"subject"`
	Records []RecordResponse `json:"records"`
}

func toHistoryResponse(history *models.SubjectHistory) HistoryResponse {
	return HistoryResponse{
		Subject: SubjectResponse{ID: history.Subject.ID, DisplayName: history.Subject.DisplayName},
		Records: toRecordResponses(history.Records),
	}
}
