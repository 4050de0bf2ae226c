package audit

import (
	"encoding/json"

	errors "github.com/frahmantamala/church-cms/internal"
	"github.com/frahmantamala/church-cms/internal/core/common/validation"
)

// RecordLogDTO is the body of POST /logs. The actor comes from the token.
type RecordLogDTO struct {
	Action        string          `json:"action"`
	ResourceType  string          `json:"resource_type"`
	ResourceID    *string         `json:"resource_id,omitempty"`
	ResourceTitle *string         `json:"resource_title,omitempty"`
	Details       json.RawMessage `json:"details,omitempty"`
}

func (d RecordLogDTO) Validate() *errors.AppError {
	validator := validation.NewValidator()
	validator.Field("action", d.Action).Required().MaxLength(100)
	validator.Field("resource_type", d.ResourceType).Required().MaxLength(50)
	validator.Field("details", d.Details).Custom(func(v interface{}) *errors.AppError {
		raw, _ := v.(json.RawMessage)
		if len(raw) > 0 && !json.Valid(raw) {
			return errors.NewValidationFieldError("details", "details must be valid JSON", errors.ErrCodeValidationFailed)
		}
		return nil
	})
	return validator.Validate()
}

// QueryDTO carries the raw query string of GET /audit-logs.
type QueryDTO struct {
	Action    string
	UserID    string
	StartDate string
	EndDate   string
	Page      int
	Limit     int
}

type LogsResponse struct {
	Logs  []*Log `json:"logs"`
	Total int64  `json:"total"`
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Stats Stats  `json:"stats"`
}

// ExportFile is a rendered report ready to be written as an attachment.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
	Rows        int
}
