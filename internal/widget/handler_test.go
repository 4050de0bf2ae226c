package widget_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/frahmantamala/church-cms/internal"
	widgetDatamodel "github.com/frahmantamala/church-cms/internal/core/datamodel/widget"
	"github.com/frahmantamala/church-cms/internal/transport"
	"github.com/frahmantamala/church-cms/internal/transport/openapi"
	"github.com/frahmantamala/church-cms/internal/widget"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Widget Handler", func() {
	var router chi.Router

	BeforeEach(func() {
		lg := slog.New(slog.NewTextHandler(io.Discard, nil))
		db := openWidgetDB()
		Expect(db.Create([]*widgetDatamodel.Widget{
			{ID: "home-1", Type: widget.TypeHTML, IsActive: true, Settings: `{"html":"<b>welcome</b>"}`},
			{ID: "page-1", Type: widget.TypeHTML, IsActive: true, PageID: strPtr("about")},
		}).Error).To(Succeed())

		schemas, err := openapi.NewValidator()
		Expect(err).NotTo(HaveOccurred())
		svc := widget.NewService(newRepo(db), &fakePosts{}, nil, lg)
		handler := widget.NewHandler(transport.NewBaseHandler(lg, schemas), svc)

		router = chi.NewRouter()
		router.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				ctx := internal.ContextWithUser(r.Context(), &internal.User{ID: "admin-1", Roles: []string{"admin"}})
				next.ServeHTTP(w, r.WithContext(ctx))
			})
		})
		router.Get("/widgets", handler.ListWidgets)
		router.Post("/widgets", handler.CreateWidget)
		router.Put("/widgets/reorder", handler.ReorderWidgets)
		router.Put("/widgets/{id}", handler.UpdateWidget)
		router.Delete("/widgets/{id}", handler.DeleteWidget)
	})

	do := func(method, target, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	decode := func(w *httptest.ResponseRecorder) []map[string]interface{} {
		var resp struct {
			Widgets []map[string]interface{} `json:"widgets"`
		}
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		return resp.Widgets
	}

	It("serves the homepage when pageId is absent or null", func() {
		for _, target := range []string{"/widgets", "/widgets?pageId=null", "/widgets?pageId="} {
			w := do(http.MethodGet, target, "")
			Expect(w.Code).To(Equal(http.StatusOK))
			widgets := decode(w)
			Expect(widgets).To(HaveLen(1), target)
			Expect(widgets[0]["id"]).To(Equal("home-1"))
			Expect(widgets[0]["settings"]).To(Equal(map[string]interface{}{"html": "<b>welcome</b>"}))
		}
	})

	It("serves a page's widgets", func() {
		widgets := decode(do(http.MethodGet, "/widgets?pageId=about", ""))
		Expect(widgets).To(HaveLen(1))
		Expect(widgets[0]["id"]).To(Equal("page-1"))
	})

	It("creates, updates, reorders and deletes", func() {
		w := do(http.MethodPost, "/widgets", `{"type":"container","title":"Row","settings":{"columns":2}}`)
		Expect(w.Code).To(Equal(http.StatusCreated))
		var created map[string]interface{}
		Expect(json.Unmarshal(w.Body.Bytes(), &created)).To(Succeed())
		id := created["id"].(string)

		Expect(do(http.MethodPut, "/widgets/"+id, `{"title":"Row 2"}`).Code).To(Equal(http.StatusOK))
		Expect(do(http.MethodPut, "/widgets/reorder", `{"items":[{"id":"`+id+`","order":0},{"id":"home-1","order":1}]}`).Code).To(Equal(http.StatusOK))

		widgets := decode(do(http.MethodGet, "/widgets", ""))
		Expect(widgets[0]["title"]).To(Equal("Row 2"))

		Expect(do(http.MethodDelete, "/widgets/"+id, "").Code).To(Equal(http.StatusOK))
		Expect(do(http.MethodDelete, "/widgets/"+id, "").Code).To(Equal(http.StatusNotFound))
	})

	It("rejects a body without a type", func() {
		w := do(http.MethodPost, "/widgets", `{"title":"x"}`)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("rejects an unknown widget type", func() {
		w := do(http.MethodPost, "/widgets", `{"type":"slider"}`)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})
})
