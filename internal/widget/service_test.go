package widget_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/frahmantamala/church-cms/internal"
	"github.com/frahmantamala/church-cms/internal/board"
	widgetDatamodel "github.com/frahmantamala/church-cms/internal/core/datamodel/widget"
	"github.com/frahmantamala/church-cms/internal/core/events"
	"github.com/frahmantamala/church-cms/internal/core/retry"
	"github.com/frahmantamala/church-cms/internal/widget"
	widgetPostgres "github.com/frahmantamala/church-cms/internal/widget/postgres"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestWidget(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Widget Suite")
}

type fakePosts struct {
	mu      sync.Mutex
	queries []board.ListQuery
	failOn  string
}

func (f *fakePosts) ListPosts(ctx context.Context, q board.ListQuery) ([]*board.Post, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()
	if q.PageID == f.failOn {
		return nil, errors.New("board unavailable")
	}
	return []*board.Post{{ID: q.PageID + "-post", Title: "latest"}}, nil
}

type capturePublisher struct {
	mu     sync.Mutex
	events []*events.DomainEvent
}

func (c *capturePublisher) Publish(ctx context.Context, e events.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e.(*events.DomainEvent))
	return nil
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
func boolPtr(b bool) *bool    { return &b }

func openWidgetDB() *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	Expect(err).NotTo(HaveOccurred())
	sqlDB, err := db.DB()
	Expect(err).NotTo(HaveOccurred())
	sqlDB.SetMaxOpenConns(1)
	Expect(db.AutoMigrate(&widgetDatamodel.Widget{})).To(Succeed())
	return db
}

func newRepo(db *gorm.DB) widget.RepositoryAPI {
	policy := retry.NewPolicy(internal.PersistenceConfig{MaxAttempts: 1, BaseDelay: time.Millisecond, AttemptTimeout: time.Second},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	return widgetPostgres.NewWidgetRepository(db, policy)
}

func ids(widgets []*widget.Widget) []string {
	out := make([]string, 0, len(widgets))
	for _, w := range widgets {
		out = append(out, w.ID)
	}
	return out
}

var _ = Describe("Widget Service", func() {
	var (
		ctx       context.Context
		db        *gorm.DB
		posts     *fakePosts
		publisher *capturePublisher
		service   *widget.Service
	)

	BeforeEach(func() {
		ctx = context.Background()
		db = openWidgetDB()
		posts = &fakePosts{}
		publisher = &capturePublisher{}
		service = widget.NewService(newRepo(db), posts, publisher, slog.New(slog.NewTextHandler(io.Discard, nil)))

		Expect(db.Create([]*widgetDatamodel.Widget{
			{ID: "w-banner", Type: widget.TypeBanner, Order: 2, IsActive: true,
				Settings: `{"slides":[{"image_url":"/files/a.jpg","caption":"Easter"}]}`},
			{ID: "w-board", Type: widget.TypeBoard, Order: 1, IsActive: true, Settings: `{"board_id":"news","limit":3}`},
			{ID: "w-gallery", Type: widget.TypeGallery, Order: 1, IsActive: true, Settings: `{"board_id":"photos"}`},
			{ID: "w-broken", Type: widget.TypeHTML, Order: 3, IsActive: true, Settings: `{"html":`},
			{ID: "w-legacy", Type: "carousel", Order: 4, IsActive: true, Settings: `{}`},
			{ID: "w-off", Type: widget.TypeHTML, Order: 0, IsActive: false},
			{ID: "w-about", Type: widget.TypeHTML, Order: 0, IsActive: true, PageID: strPtr("about"), Settings: `{"html":"<p>hi</p>"}`},
		}).Error).To(Succeed())
	})

	Describe("ResolveWidgets", func() {
		It("returns only active homepage widgets by order then id", func() {
			widgets, err := service.ResolveWidgets(ctx, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(widgets)).To(Equal([]string{"w-board", "w-gallery", "w-banner", "w-broken", "w-legacy"}))
		})

		It("treats a blank page id as the homepage", func() {
			widgets, err := service.ResolveWidgets(ctx, strPtr(" "))
			Expect(err).NotTo(HaveOccurred())
			Expect(widgets).To(HaveLen(5))
		})

		It("scopes to the requested page", func() {
			widgets, err := service.ResolveWidgets(ctx, strPtr("about"))
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(widgets)).To(Equal([]string{"w-about"}))
			Expect(widgets[0].Settings).To(Equal(&widget.HTMLSettings{HTML: "<p>hi</p>"}))
			Expect(posts.queries).To(BeEmpty())
		})

		It("decodes typed settings and serves unreadable ones empty", func() {
			widgets, err := service.ResolveWidgets(ctx, nil)
			Expect(err).NotTo(HaveOccurred())
			byID := map[string]*widget.Widget{}
			for _, w := range widgets {
				byID[w.ID] = w
			}
			banner, ok := byID["w-banner"].Settings.(*widget.BannerSettings)
			Expect(ok).To(BeTrue())
			Expect(banner.Slides[0].Caption).To(Equal("Easter"))

			Expect(byID["w-broken"].Settings).To(Equal(widget.EmptySettings{}))
			Expect(byID["w-legacy"].Settings).To(Equal(widget.EmptySettings{}))

			raw, err := json.Marshal(byID["w-legacy"])
			Expect(err).NotTo(HaveOccurred())
			Expect(string(raw)).To(ContainSubstring(`"settings":{}`))
		})

		It("attaches posts to board and gallery widgets", func() {
			widgets, err := service.ResolveWidgets(ctx, nil)
			Expect(err).NotTo(HaveOccurred())

			Expect(posts.queries).To(ConsistOf(
				board.ListQuery{PageID: "news", Limit: 3},
				board.ListQuery{PageID: "photos", Limit: widget.DefaultPostLimit, Type: board.TypeGallery},
			))
			Expect(widgets[0].Posts[0].ID).To(Equal("news-post"))
			Expect(widgets[1].Posts[0].ID).To(Equal("photos-post"))
			Expect(widgets[2].Posts).To(BeNil())
		})

		It("keeps the page when one board fails", func() {
			posts.failOn = "news"
			widgets, err := service.ResolveWidgets(ctx, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(widgets[0].Posts).To(BeEmpty())
			Expect(widgets[1].Posts).To(HaveLen(1))
		})
	})

	Describe("CreateWidget", func() {
		It("appends after the last widget of the page", func() {
			w, err := service.CreateWidget(ctx, "admin-1", widget.CreateWidgetDTO{
				Type:     widget.TypeBoard,
				Title:    " Notices ",
				Settings: json.RawMessage(`{"board_id":"notices"}`),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(w.Title).To(Equal("Notices"))
			Expect(w.Order).To(Equal(5))
			Expect(w.IsActive).To(BeTrue())
			Expect(w.PageID).To(BeNil())

			Expect(publisher.events).To(HaveLen(1))
			Expect(publisher.events[0].EventType()).To(Equal(events.EventTypeWidgetChanged))
			Expect(publisher.events[0].Action).To(Equal("widget.create"))
		})

		It("starts at zero on an empty page", func() {
			w, err := service.CreateWidget(ctx, "admin-1", widget.CreateWidgetDTO{Type: widget.TypeContainer, PageID: strPtr("events")})
			Expect(err).NotTo(HaveOccurred())
			Expect(w.Order).To(BeZero())
			Expect(*w.PageID).To(Equal("events"))
		})

		It("rejects an unknown type", func() {
			_, err := service.CreateWidget(ctx, "admin-1", widget.CreateWidgetDTO{Type: "carousel"})
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.StatusCode).To(Equal(400))
		})

		It("requires a board for board widgets", func() {
			_, err := service.CreateWidget(ctx, "admin-1", widget.CreateWidgetDTO{Type: widget.TypeGallery, Settings: json.RawMessage(`{}`)})
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			details := appErr.Details.(internal.ValidationErrors)
			Expect(details.Errors[0].Field).To(Equal("settings.board_id"))
			Expect(details.Errors[0].Code).To(Equal(string(internal.ErrCodeInvalidWidgetConfig)))
		})

		It("rejects settings of the wrong shape", func() {
			_, err := service.CreateWidget(ctx, "admin-1", widget.CreateWidgetDTO{Type: widget.TypeBanner, Settings: json.RawMessage(`{"slides":"nope"}`)})
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.StatusCode).To(Equal(400))
		})
	})

	Describe("UpdateWidget", func() {
		It("changes only the given fields", func() {
			w, err := service.UpdateWidget(ctx, "admin-1", "w-board", widget.UpdateWidgetDTO{
				Settings: json.RawMessage(`{"board_id":"youth","limit":8}`),
				IsActive: boolPtr(false),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(w.Settings).To(Equal(&widget.BoardSettings{BoardID: "youth", Limit: 8}))
			Expect(w.Order).To(Equal(1))

			var stored widgetDatamodel.Widget
			Expect(db.First(&stored, "id = ?", "w-board").Error).To(Succeed())
			Expect(stored.IsActive).To(BeFalse())
			Expect(stored.Settings).To(MatchJSON(`{"board_id":"youth","limit":8}`))
		})

		It("keeps stored settings untouched on a title-only edit", func() {
			Expect(db.Create([]*widgetDatamodel.Widget{
				{ID: "w-odd", Type: widget.TypeBoard, IsActive: true, Settings: `{"board_id":"news","limit":"5"}`},
				{ID: "w-extra", Type: widget.TypeBoard, IsActive: true, Settings: `{"board_id":"news","theme":"dark"}`},
			}).Error).To(Succeed())

			for id, want := range map[string]string{
				"w-odd":   `{"board_id":"news","limit":"5"}`,
				"w-extra": `{"board_id":"news","theme":"dark"}`,
			} {
				w, err := service.UpdateWidget(ctx, "admin-1", id, widget.UpdateWidgetDTO{Title: strPtr("Notices")})
				Expect(err).NotTo(HaveOccurred())
				Expect(w.Title).To(Equal("Notices"))

				var stored widgetDatamodel.Widget
				Expect(db.First(&stored, "id = ?", id).Error).To(Succeed())
				Expect(stored.Title).To(Equal("Notices"))
				Expect(stored.Settings).To(MatchJSON(want), id)
			}
		})

		It("returns 404 for an unknown widget", func() {
			_, err := service.UpdateWidget(ctx, "admin-1", "missing", widget.UpdateWidgetDTO{Title: strPtr("x")})
			Expect(errors.Is(err, internal.ErrWidgetNotFound)).To(BeTrue())
		})
	})

	Describe("DeleteWidget", func() {
		It("removes the widget", func() {
			Expect(service.DeleteWidget(ctx, "admin-1", "w-banner")).To(Succeed())
			var count int64
			db.Model(&widgetDatamodel.Widget{}).Where("id = ?", "w-banner").Count(&count)
			Expect(count).To(BeZero())
			Expect(publisher.events[0].Action).To(Equal("widget.delete"))
		})

		It("returns 404 for an unknown widget", func() {
			Expect(errors.Is(service.DeleteWidget(ctx, "admin-1", "missing"), internal.ErrWidgetNotFound)).To(BeTrue())
		})
	})

	Describe("ReorderWidgets", func() {
		It("applies every move", func() {
			err := service.ReorderWidgets(ctx, "admin-1", widget.ReorderWidgetsDTO{Items: []widget.ReorderItem{
				{ID: "w-banner", Order: 0},
				{ID: "w-board", Order: 9, ColumnPosition: intPtr(1)},
			}})
			Expect(err).NotTo(HaveOccurred())

			widgets, err := service.ResolveWidgets(ctx, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(widgets)).To(Equal([]string{"w-banner", "w-gallery", "w-broken", "w-legacy", "w-board"}))
			Expect(widgets[4].ColumnPosition).To(Equal(1))
		})

		It("applies nothing when one widget is unknown", func() {
			err := service.ReorderWidgets(ctx, "admin-1", widget.ReorderWidgetsDTO{Items: []widget.ReorderItem{
				{ID: "w-banner", Order: 0},
				{ID: "missing", Order: 1},
			}})
			Expect(errors.Is(err, internal.ErrWidgetNotFound)).To(BeTrue())

			var stored widgetDatamodel.Widget
			Expect(db.First(&stored, "id = ?", "w-banner").Error).To(Succeed())
			Expect(stored.Order).To(Equal(2))
			Expect(publisher.events).To(BeEmpty())
		})

		It("rejects duplicates and empty requests", func() {
			Expect(service.ReorderWidgets(ctx, "admin-1", widget.ReorderWidgetsDTO{})).To(HaveOccurred())
			err := service.ReorderWidgets(ctx, "admin-1", widget.ReorderWidgetsDTO{Items: []widget.ReorderItem{
				{ID: "w-banner", Order: 0}, {ID: "w-banner", Order: 1},
			}})
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.GetDetailedMessage()).To(ContainSubstring("widget listed twice"))
		})
	})
})

var _ = Describe("DecodeSettings", func() {
	It("returns zero settings for empty input", func() {
		s, err := widget.DecodeSettings(widget.TypeContainer, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(s).To(Equal(&widget.ContainerSettings{}))
	})

	It("names the unknown type", func() {
		_, err := widget.DecodeSettings("slider", []byte(`{}`))
		Expect(err).To(MatchError(`unknown widget type "slider"`))
	})

	It("caps and defaults post limits", func() {
		_, limit, gallery := widget.PostSource(&widget.GallerySettings{BoardID: "p", Limit: 1000})
		Expect(limit).To(Equal(board.MaxListLimit))
		Expect(gallery).To(BeTrue())

		id, _, _ := widget.PostSource(&widget.HTMLSettings{})
		Expect(id).To(BeEmpty())
	})
})
