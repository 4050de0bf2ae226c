package widget

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/frahmantamala/church-cms/internal/board"
	widgetDatamodel "github.com/frahmantamala/church-cms/internal/core/datamodel/widget"
)

const (
	TypeBanner    = "banner"
	TypeGallery   = "gallery"
	TypeBoard     = "board"
	TypeContainer = "container"
	TypeHTML      = "html"

	// DefaultPostLimit is how many posts a board or gallery widget shows
	// when its settings do not say.
	DefaultPostLimit = 5
)

var Types = []string{TypeBanner, TypeGallery, TypeBoard, TypeContainer, TypeHTML}

// Settings is the typed configuration of one widget kind.
type Settings interface {
	WidgetType() string
}

type BannerSlide struct {
	ImageURL string `json:"image_url"`
	LinkURL  string `json:"link_url,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

type BannerSettings struct {
	Slides     []BannerSlide `json:"slides"`
	IntervalMS int           `json:"interval_ms,omitempty"`
}

func (BannerSettings) WidgetType() string { return TypeBanner }

type GallerySettings struct {
	BoardID string `json:"board_id"`
	Limit   int    `json:"limit,omitempty"`
	Columns int    `json:"columns,omitempty"`
}

func (GallerySettings) WidgetType() string { return TypeGallery }

type BoardSettings struct {
	BoardID      string `json:"board_id"`
	Limit        int    `json:"limit,omitempty"`
	ShowAuthor   bool   `json:"show_author,omitempty"`
	ShowSummary  bool   `json:"show_summary,omitempty"`
	MoreLinkText string `json:"more_link_text,omitempty"`
}

func (BoardSettings) WidgetType() string { return TypeBoard }

type ContainerSettings struct {
	Columns    int    `json:"columns,omitempty"`
	Background string `json:"background,omitempty"`
	FullWidth  bool   `json:"full_width,omitempty"`
}

func (ContainerSettings) WidgetType() string { return TypeContainer }

type HTMLSettings struct {
	HTML string `json:"html"`
}

func (HTMLSettings) WidgetType() string { return TypeHTML }

// EmptySettings stands in for settings that could not be decoded.
type EmptySettings struct{}

func (EmptySettings) WidgetType() string { return "" }

// ErrUnknownType is returned by DecodeSettings for a type outside Types.
type ErrUnknownType string

func (e ErrUnknownType) Error() string {
	return fmt.Sprintf("unknown widget type %q", string(e))
}

// DecodeSettings parses raw into the settings struct of widgetType. Empty
// input yields the zero settings of that type.
func DecodeSettings(widgetType string, raw []byte) (Settings, error) {
	var target Settings
	switch widgetType {
	case TypeBanner:
		target = &BannerSettings{}
	case TypeGallery:
		target = &GallerySettings{}
	case TypeBoard:
		target = &BoardSettings{}
	case TypeContainer:
		target = &ContainerSettings{}
	case TypeHTML:
		target = &HTMLSettings{}
	default:
		return EmptySettings{}, ErrUnknownType(widgetType)
	}

	trimmed := strings.TrimSpace(string(raw))
	if trimmed != "" && trimmed != "null" {
		if err := json.Unmarshal([]byte(trimmed), target); err != nil {
			return EmptySettings{}, err
		}
	}
	return target, nil
}

// PostSource returns the board a widget lists posts from and whether it
// should list only posts with a thumbnail.
func PostSource(s Settings) (boardID string, limit int, gallery bool) {
	switch v := s.(type) {
	case *BoardSettings:
		boardID, limit = v.BoardID, v.Limit
	case *GallerySettings:
		boardID, limit, gallery = v.BoardID, v.Limit, true
	default:
		return "", 0, false
	}
	if limit < 1 {
		limit = DefaultPostLimit
	}
	if limit > board.MaxListLimit {
		limit = board.MaxListLimit
	}
	return strings.TrimSpace(boardID), limit, gallery
}

type Widget struct {
	ID             string          `json:"id"`
	Type           string          `json:"type"`
	Title          string          `json:"title"`
	Settings       Settings        `json:"settings"`
	DisplayOptions json.RawMessage `json:"display_options"`
	ColumnPosition int             `json:"column_position"`
	Order          int             `json:"order"`
	Width          int             `json:"width"`
	Height         int             `json:"height"`
	PageID         *string         `json:"page_id"`
	IsActive       bool            `json:"is_active"`
	Posts          []*board.Post   `json:"posts,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func ToDataModel(w *Widget) *widgetDatamodel.Widget {
	dm := &widgetDatamodel.Widget{
		ID:             w.ID,
		Type:           w.Type,
		Title:          w.Title,
		ColumnPosition: w.ColumnPosition,
		Order:          w.Order,
		Width:          w.Width,
		Height:         w.Height,
		PageID:         w.PageID,
		IsActive:       w.IsActive,
		CreatedAt:      w.CreatedAt,
		UpdatedAt:      w.UpdatedAt,
	}
	if w.Settings != nil {
		raw, _ := json.Marshal(w.Settings)
		dm.Settings = string(raw)
	}
	if len(w.DisplayOptions) > 0 {
		dm.DisplayOptions = string(w.DisplayOptions)
	}
	return dm
}

// FromDataModel maps a row without decoding its settings.
func FromDataModel(dm *widgetDatamodel.Widget) *Widget {
	w := &Widget{
		ID:             dm.ID,
		Type:           dm.Type,
		Title:          dm.Title,
		Settings:       EmptySettings{},
		DisplayOptions: json.RawMessage("{}"),
		ColumnPosition: dm.ColumnPosition,
		Order:          dm.Order,
		Width:          dm.Width,
		Height:         dm.Height,
		PageID:         dm.PageID,
		IsActive:       dm.IsActive,
		CreatedAt:      dm.CreatedAt,
		UpdatedAt:      dm.UpdatedAt,
	}
	if opts := strings.TrimSpace(dm.DisplayOptions); opts != "" && json.Valid([]byte(opts)) {
		w.DisplayOptions = json.RawMessage(opts)
	}
	return w
}
