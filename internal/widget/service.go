package widget

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/frahmantamala/church-cms/internal"
	"github.com/frahmantamala/church-cms/internal/board"
	widgetDatamodel "github.com/frahmantamala/church-cms/internal/core/datamodel/widget"
	"github.com/frahmantamala/church-cms/internal/core/events"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
)

// maxEnrichers bounds the concurrent board lookups of one page.
const maxEnrichers = 4

type RepositoryAPI interface {
	// ListActive returns the active widgets of pageID, or of the homepage
	// when pageID is nil, by order then id.
	ListActive(ctx context.Context, pageID *string) ([]*widgetDatamodel.Widget, error)
	// GetByID returns nil, nil when the widget does not exist.
	GetByID(ctx context.Context, id string) (*widgetDatamodel.Widget, error)
	// NextOrder returns one past the highest order used on the page.
	NextOrder(ctx context.Context, pageID *string) (int, error)
	Create(ctx context.Context, w *widgetDatamodel.Widget) error
	Update(ctx context.Context, w *widgetDatamodel.Widget) error
	// Delete reports whether a row was removed.
	Delete(ctx context.Context, id string) (bool, error)
	// Reorder applies every item or none; an unknown id fails with
	// internal.ErrWidgetNotFound.
	Reorder(ctx context.Context, items []ReorderItem) error
}

// PostsAPI lists the published posts a board or gallery widget shows.
type PostsAPI interface {
	ListPosts(ctx context.Context, q board.ListQuery) ([]*board.Post, error)
}

type Service struct {
	repo   RepositoryAPI
	posts  PostsAPI
	events events.Publisher
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo RepositoryAPI, posts PostsAPI, publisher events.Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		posts:  posts,
		events: publisher,
		logger: logger,
		now:    time.Now,
	}
}

// ResolveWidgets returns the render-ready widgets of a page. A nil or blank
// pageID selects the homepage.
func (s *Service) ResolveWidgets(ctx context.Context, pageID *string) ([]*Widget, error) {
	pageID = normalizePage(pageID)

	rows, err := s.repo.ListActive(ctx, pageID)
	if err != nil {
		s.logger.Error("failed to list widgets", "error", err, "page_id", pageLabel(pageID))
		return nil, err
	}

	widgets := make([]*Widget, 0, len(rows))
	for _, row := range rows {
		widgets = append(widgets, s.decode(row))
	}
	s.attachPosts(ctx, widgets)
	return widgets, nil
}

// attachPosts loads the posts of board and gallery widgets concurrently. A
// failing board leaves its widget with no posts instead of failing the page.
func (s *Service) attachPosts(ctx context.Context, widgets []*Widget) {
	if s.posts == nil {
		return
	}
	p := pool.New().WithMaxGoroutines(maxEnrichers)
	for _, w := range widgets {
		boardID, limit, gallery := PostSource(w.Settings)
		if boardID == "" {
			continue
		}
		w := w
		q := board.ListQuery{PageID: boardID, Limit: limit}
		if gallery {
			q.Type = board.TypeGallery
		}
		p.Go(func() {
			posts, err := s.posts.ListPosts(ctx, q)
			if err != nil {
				s.logger.Warn("failed to load widget posts", "error", err, "widget_id", w.ID, "board_id", boardID)
				posts = []*board.Post{}
			}
			w.Posts = posts
		})
	}
	p.Wait()
}

func (s *Service) CreateWidget(ctx context.Context, actorID string, dto CreateWidgetDTO) (*Widget, error) {
	settings, verr := dto.Validate()
	if verr != nil {
		return nil, verr
	}

	pageID := normalizePage(dto.PageID)
	order := 0
	if dto.Order != nil {
		order = *dto.Order
	} else {
		next, err := s.repo.NextOrder(ctx, pageID)
		if err != nil {
			s.logger.Error("failed to compute widget order", "error", err, "page_id", pageLabel(pageID))
			return nil, err
		}
		order = next
	}

	now := s.now().UTC()
	w := &Widget{
		ID:             uuid.New().String(),
		Type:           dto.Type,
		Title:          strings.TrimSpace(dto.Title),
		Settings:       settings,
		DisplayOptions: displayOptions(dto.DisplayOptions),
		ColumnPosition: dto.ColumnPosition,
		Order:          order,
		Width:          dto.Width,
		Height:         dto.Height,
		PageID:         pageID,
		IsActive:       dto.IsActive == nil || *dto.IsActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Create(ctx, ToDataModel(w)); err != nil {
		s.logger.Error("failed to create widget", "error", err, "type", w.Type)
		return nil, err
	}

	s.logger.Info("widget created", "widget_id", w.ID, "type", w.Type, "user_id", actorID)
	s.changed(ctx, actorID, "widget.create", w)
	return w, nil
}

func (s *Service) UpdateWidget(ctx context.Context, actorID, id string, dto UpdateWidgetDTO) (*Widget, error) {
	if verr := dto.Validate(); verr != nil {
		return nil, verr
	}

	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("failed to get widget", "error", err, "widget_id", id)
		return nil, err
	}
	if row == nil {
		return nil, internal.ErrWidgetNotFound
	}

	w := s.decode(row)
	if len(dto.Settings) > 0 {
		settings, verr := validateSettings(w.Type, dto.Settings)
		if verr != nil {
			return nil, verr
		}
		w.Settings = settings
	}
	if dto.Title != nil {
		w.Title = strings.TrimSpace(*dto.Title)
	}
	if len(dto.DisplayOptions) > 0 {
		w.DisplayOptions = displayOptions(dto.DisplayOptions)
	}
	if dto.ColumnPosition != nil {
		w.ColumnPosition = *dto.ColumnPosition
	}
	if dto.Order != nil {
		w.Order = *dto.Order
	}
	if dto.Width != nil {
		w.Width = *dto.Width
	}
	if dto.Height != nil {
		w.Height = *dto.Height
	}
	if dto.IsActive != nil {
		w.IsActive = *dto.IsActive
	}
	w.UpdatedAt = s.now().UTC()

	dm := ToDataModel(w)
	if len(dto.Settings) == 0 {
		// decoded settings drop unknown keys, so untouched settings go back as stored
		dm.Settings = row.Settings
	}
	if err := s.repo.Update(ctx, dm); err != nil {
		s.logger.Error("failed to update widget", "error", err, "widget_id", id)
		return nil, err
	}

	s.logger.Info("widget updated", "widget_id", id, "user_id", actorID)
	s.changed(ctx, actorID, "widget.update", w)
	return w, nil
}

func (s *Service) DeleteWidget(ctx context.Context, actorID, id string) error {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("failed to get widget", "error", err, "widget_id", id)
		return err
	}
	if row == nil {
		return internal.ErrWidgetNotFound
	}

	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		s.logger.Error("failed to delete widget", "error", err, "widget_id", id)
		return err
	}
	if !deleted {
		return internal.ErrWidgetNotFound
	}

	s.logger.Info("widget deleted", "widget_id", id, "user_id", actorID)
	s.changed(ctx, actorID, "widget.delete", FromDataModel(row))
	return nil
}

// ReorderWidgets moves several widgets at once. Either all moves apply or none.
func (s *Service) ReorderWidgets(ctx context.Context, actorID string, dto ReorderWidgetsDTO) error {
	if verr := dto.Validate(); verr != nil {
		return verr
	}
	if err := s.repo.Reorder(ctx, dto.Items); err != nil {
		if _, ok := internal.IsAppError(err); !ok {
			s.logger.Error("failed to reorder widgets", "error", err, "count", len(dto.Items))
		}
		return err
	}

	ids := make([]string, 0, len(dto.Items))
	for _, item := range dto.Items {
		ids = append(ids, item.ID)
	}
	s.logger.Info("widgets reordered", "count", len(ids), "user_id", actorID)
	s.publish(ctx, events.NewDomainEvent(events.EventTypeWidgetChanged, actorID, "widget.reorder", "widget", "", "",
		map[string]interface{}{"widget_ids": ids}))
	return nil
}

// decode maps a row and its settings. Rows of an unknown type or with
// malformed settings are served with empty settings.
func (s *Service) decode(row *widgetDatamodel.Widget) *Widget {
	w := FromDataModel(row)
	settings, err := DecodeSettings(row.Type, []byte(row.Settings))
	if err != nil {
		s.logger.Warn("ignoring widget settings", "error", err, "widget_id", row.ID, "type", row.Type)
		return w
	}
	w.Settings = settings
	return w
}

func (s *Service) changed(ctx context.Context, actorID, action string, w *Widget) {
	s.publish(ctx, events.NewDomainEvent(events.EventTypeWidgetChanged, actorID, action, "widget", w.ID, w.Title,
		map[string]interface{}{"type": w.Type, "page_id": w.PageID}))
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish event", "event_type", event.EventType(), "error", err)
	}
}

func normalizePage(pageID *string) *string {
	if pageID == nil {
		return nil
	}
	v := strings.TrimSpace(*pageID)
	if v == "" || v == "null" {
		return nil
	}
	return &v
}

func pageLabel(pageID *string) string {
	if pageID == nil {
		return "homepage"
	}
	return *pageID
}

func displayOptions(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || !json.Valid(raw) {
		return json.RawMessage("{}")
	}
	return raw
}
