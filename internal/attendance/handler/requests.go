package handler

import (
	"errors"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"ledger/internal/attendance/models"
	dErrors "ledger/pkg/domain-errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationError turns the first failed validator rule into a coded error.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid request")
	}
	fe := verrs[0]
	field := fe.Field()
	var msg string
	switch fe.Tag() {
	case "required":
		msg = field + " is required"
	case "gt":
		msg = field + " must be a positive integer"
	case "max":
		msg = field + " must be " + fe.Param() + " characters or less"
	case "oneof":
		msg = field + " must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "datetime":
		msg = field + " must use the YYYY-MM-DD format"
	default:
		msg = field + " is invalid"
	}
	return dErrors.New(dErrors.CodeValidation, msg)
}

func parseOptionalDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := models.ParseDate(raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// RegisterRequest is the body of POST /attendance.
type RegisterRequest struct {
	SubjectID  int64  `json:"subject_id" validate:"required,gt=0"`
	ActivityID int64  `json:"activity_id" validate:"required,gt=0"`
	Status     string `json:"status" validate:"omitempty,oneof=present absent late excused_absence"`
	RecordDate string `json:"record_date" validate:"omitempty,datetime=2006-01-02"`
	Note       string `json:"note" validate:"max=500"`
}

func (r *RegisterRequest) Normalize() {
	r.Status = strings.ToLower(strings.TrimSpace(r.Status))
	r.RecordDate = strings.TrimSpace(r.RecordDate)
	r.Note = strings.TrimSpace(r.Note)
}

func (r *RegisterRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return validationError(err)
	}
	return nil
}

// ToModel converts a validated request.
func (r *RegisterRequest) ToModel() models.RegistrationRequest {
	date, _ := parseOptionalDate(r.RecordDate)
	return models.RegistrationRequest{
		SubjectID:  r.SubjectID,
		ActivityID: r.ActivityID,
		Status:     r.Status,
		RecordDate: date,
		Note:       r.Note,
	}
}

// BatchItem is one element of a batch. Ids and status are not validated
// here: missing entities are reported per item and unknown statuses default
// to present.
type BatchItem struct {
	SubjectID  int64  `json:"subject_id"`
	ActivityID int64  `json:"activity_id"`
	Status     string `json:"status"`
	RecordDate string `json:"record_date" validate:"omitempty,datetime=2006-01-02"`
	Note       string `json:"note" validate:"max=500"`
}

// BatchRequest is the body of POST /attendance/batch: a JSON array.
type BatchRequest []BatchItem

func (b *BatchRequest) Normalize() {
	for i := range *b {
		item := &(*b)[i]
		item.RecordDate = strings.TrimSpace(item.RecordDate)
		item.Note = strings.TrimSpace(item.Note)
	}
}

func (b *BatchRequest) Validate() error {
	for i := range *b {
		if err := validate.Struct(&(*b)[i]); err != nil {
			verr := validationError(err)
			var de *dErrors.Error
			if errors.As(verr, &de) {
				return dErrors.New(de.Code, "item "+strconv.Itoa(i)+": "+de.Message)
			}
			return verr
		}
	}
	return nil
}

func (b *BatchRequest) ToModel() []models.RegistrationRequest {
	out := make([]models.RegistrationRequest, len(*b))
	for i, item := range *b {
		date, _ := parseOptionalDate(item.RecordDate)
		out[i] = models.RegistrationRequest{
			SubjectID:  item.SubjectID,
			ActivityID: item.ActivityID,
			Status:     item.Status,
			RecordDate: date,
			Note:       item.Note,
		}
	}
	return out
}

// UpdateRequest is the body of PATCH /attendance/{id}. Absent fields are
// left unchanged.
type UpdateRequest struct {
	Status     *string `json:"status" validate:"omitempty,oneof=present absent late excused_absence"`
	RecordDate *string `json:"record_date" validate:"omitempty,datetime=2006-01-02"`
	Note       *string `json:"note" validate:"omitempty,max=500"`
}

func (r *UpdateRequest) Normalize() {
	if r.Status != nil {
		v := strings.ToLower(strings.TrimSpace(*r.Status))
		r.Status = &v
	}
	if r.RecordDate != nil {
		v := strings.TrimSpace(*r.RecordDate)
		r.RecordDate = &v
	}
	if r.Note != nil {
		v := strings.TrimSpace(*r.Note)
		r.Note = &v
	}
}

func (r *UpdateRequest) Validate() error {
	if r.Status != nil && *r.Status == "" {
		return dErrors.New(dErrors.CodeValidation, "status must not be empty")
	}
	if r.RecordDate != nil && *r.RecordDate == "" {
		return dErrors.New(dErrors.CodeValidation, "record_date must not be empty")
	}
	if err := validate.Struct(r); err != nil {
		return validationError(err)
	}
	return nil
}

func (r *UpdateRequest) ToModel() models.UpdateRequest {
	out := models.UpdateRequest{Status: r.Status, Note: r.Note}
	if r.RecordDate != nil {
		out.RecordDate, _ = parseOptionalDate(*r.RecordDate)
	}
	return out
}
