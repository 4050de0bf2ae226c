package widget

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/frahmantamala/church-cms/internal"
	"github.com/frahmantamala/church-cms/internal/core/common/validation"
)

type CreateWidgetDTO struct {
	Type           string          `json:"type"`
	Title          string          `json:"title"`
	Settings       json.RawMessage `json:"settings,omitempty"`
	DisplayOptions json.RawMessage `json:"display_options,omitempty"`
	ColumnPosition int             `json:"column_position"`
	Order          *int            `json:"order,omitempty"`
	Width          int             `json:"width"`
	Height         int             `json:"height"`
	PageID         *string         `json:"page_id,omitempty"`
	IsActive       *bool           `json:"is_active,omitempty"`
}

// Validate checks the fields and decodes the settings for the given type.
func (d CreateWidgetDTO) Validate() (Settings, *internal.AppError) {
	validator := validation.NewValidator()
	validator.Field("type", d.Type).Required().OneOf(Types...)
	validator.Field("title", d.Title).MaxLength(200)
	validator.Field("column_position", d.ColumnPosition).MinInt(0, internal.ErrCodeValidationFailed)
	validator.Field("width", d.Width).MinInt(0, internal.ErrCodeValidationFailed)
	validator.Field("height", d.Height).MinInt(0, internal.ErrCodeValidationFailed)
	if d.Order != nil {
		validator.Field("order", *d.Order).MinInt(0, internal.ErrCodeValidationFailed)
	}
	if verr := validator.Validate(); verr != nil {
		return nil, verr
	}
	return validateSettings(d.Type, d.Settings)
}

type UpdateWidgetDTO struct {
	Title          *string         `json:"title,omitempty"`
	Settings       json.RawMessage `json:"settings,omitempty"`
	DisplayOptions json.RawMessage `json:"display_options,omitempty"`
	ColumnPosition *int            `json:"column_position,omitempty"`
	Order          *int            `json:"order,omitempty"`
	Width          *int            `json:"width,omitempty"`
	Height         *int            `json:"height,omitempty"`
	IsActive       *bool           `json:"is_active,omitempty"`
}

func (d UpdateWidgetDTO) Validate() *internal.AppError {
	validator := validation.NewValidator()
	if d.Title != nil {
		validator.Field("title", *d.Title).MaxLength(200)
	}
	ints := []struct {
		name  string
		value *int
	}{
		{"column_position", d.ColumnPosition},
		{"order", d.Order},
		{"width", d.Width},
		{"height", d.Height},
	}
	for _, f := range ints {
		if f.value != nil {
			validator.Field(f.name, *f.value).MinInt(0, internal.ErrCodeValidationFailed)
		}
	}
	return validator.Validate()
}

type ReorderItem struct {
	ID             string `json:"id"`
	Order          int    `json:"order"`
	ColumnPosition *int   `json:"column_position,omitempty"`
}

type ReorderWidgetsDTO struct {
	Items []ReorderItem `json:"items"`
}

func (d ReorderWidgetsDTO) Validate() *internal.AppError {
	if len(d.Items) == 0 {
		return internal.NewValidationFieldError("items", "items is required", internal.ErrCodeValidationFailed)
	}
	seen := make(map[string]struct{}, len(d.Items))
	validator := validation.NewValidator()
	for i, item := range d.Items {
		field := fmt.Sprintf("items[%d]", i)
		validator.Field(field+".id", item.ID).Required()
		validator.Field(field+".order", item.Order).MinInt(0, internal.ErrCodeValidationFailed)
		if _, dup := seen[item.ID]; dup && item.ID != "" {
			validator.Field(field+".id", item.ID).Custom(func(interface{}) *internal.AppError {
				return internal.NewValidationFieldError(field+".id", "widget listed twice", internal.ErrCodeValidationFailed)
			})
		}
		seen[item.ID] = struct{}{}
	}
	return validator.Validate()
}

type WidgetsResponse struct {
	Widgets []*Widget `json:"widgets"`
}

// validateSettings decodes raw for widgetType and checks what each kind
// needs to render.
func validateSettings(widgetType string, raw json.RawMessage) (Settings, *internal.AppError) {
	settings, err := DecodeSettings(widgetType, raw)
	if err != nil {
		var unknown ErrUnknownType
		if errors.As(err, &unknown) {
			return nil, internal.NewValidationFieldError("type", unknown.Error(), internal.ErrCodeInvalidWidgetType)
		}
		return nil, internal.NewValidationFieldError("settings", "settings do not match the widget type", internal.ErrCodeInvalidWidgetConfig)
	}

	switch s := settings.(type) {
	case *BoardSettings:
		if strings.TrimSpace(s.BoardID) == "" {
			return nil, internal.NewValidationFieldError("settings.board_id", "settings.board_id is required", internal.ErrCodeInvalidWidgetConfig)
		}
	case *GallerySettings:
		if strings.TrimSpace(s.BoardID) == "" {
			return nil, internal.NewValidationFieldError("settings.board_id", "settings.board_id is required", internal.ErrCodeInvalidWidgetConfig)
		}
	case *BannerSettings:
		for i, slide := range s.Slides {
			if strings.TrimSpace(slide.ImageURL) == "" {
				return nil, internal.NewValidationFieldError(fmt.Sprintf("settings.slides[%d].image_url", i), "slide image_url is required", internal.ErrCodeInvalidWidgetConfig)
			}
		}
	}
	return settings, nil
}
