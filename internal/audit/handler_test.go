package audit

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/frahmantamala/church-cms/internal"
	auditDatamodel "github.com/frahmantamala/church-cms/internal/core/datamodel/audit"
	"github.com/frahmantamala/church-cms/internal/transport"
	"github.com/frahmantamala/church-cms/internal/transport/openapi"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Audit Handler", func() {
	var (
		repo   *MockRepository
		router chi.Router
	)

	withPrincipal := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id := r.Header.Get("X-Test-User"); id != "" {
				r = r.WithContext(internal.ContextWithUser(r.Context(), &internal.User{ID: id}))
			}
			next.ServeHTTP(w, r)
		})
	}

	BeforeEach(func() {
		lg := slog.New(slog.NewTextHandler(io.Discard, nil))
		schemas, err := openapi.NewValidator()
		Expect(err).NotTo(HaveOccurred())

		repo = &MockRepository{}
		svc := NewService(repo, internal.AuditConfig{}, lg)
		handler := NewHandler(transport.NewBaseHandler(lg, schemas), svc)

		router = chi.NewRouter()
		router.Use(withPrincipal)
		router.Post("/logs", handler.RecordLog)
		router.Get("/audit-logs", handler.ListLogs)
		router.Get("/audit-logs/export", handler.ExportLogs)
	})

	do := func(method, target, body, user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
		req.Header.Set("User-Agent", "handler-test")
		if user != "" {
			req.Header.Set("X-Test-User", user)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	Describe("POST /logs", func() {
		It("records the entry for the authenticated actor", func() {
			w := do(http.MethodPost, "/logs", `{"action":"menu.update","resource_type":"menu","resource_id":"m1","details":{"from":1,"to":2}}`, "user-42")
			Expect(w.Code).To(Equal(http.StatusCreated))

			Expect(repo.inserted).To(HaveLen(1))
			row := repo.inserted[0]
			Expect(*row.UserID).To(Equal("user-42"))
			Expect(*row.IPAddress).To(Equal("203.0.113.5"))
			Expect(*row.UserAgent).To(Equal("handler-test"))
			Expect(*row.Details).To(MatchJSON(`{"from":1,"to":2}`))
		})

		It("ignores a user id smuggled in the body", func() {
			w := do(http.MethodPost, "/logs", `{"action":"a","resource_type":"page","user_id":"someone-else"}`, "user-42")
			Expect(w.Code).To(Equal(http.StatusCreated))
			Expect(*repo.inserted[0].UserID).To(Equal("user-42"))
		})

		It("requires a principal", func() {
			w := do(http.MethodPost, "/logs", `{"action":"a","resource_type":"page"}`, "")
			Expect(w.Code).To(Equal(http.StatusUnauthorized))
			Expect(repo.inserted).To(BeEmpty())
		})

		It("validates the body against the schema", func() {
			w := do(http.MethodPost, "/logs", `{"resource_type":"page"}`, "user-42")
			Expect(w.Code).To(Equal(http.StatusBadRequest))

			var body internal.Response
			Expect(json.Unmarshal(w.Body.Bytes(), &body)).To(Succeed())
			Expect(body.Code).To(Equal(internal.ErrCodeValidationFailed))
		})
	})

	Describe("GET /audit-logs", func() {
		It("returns logs with paging and stats", func() {
			repo.rows = []auditDatamodel.ActivityLog{{ID: "l1", Action: "role.create", ResourceType: "role", CreatedAt: time.Now()}}
			repo.total = 41
			repo.stats = &auditDatamodel.ActivityStats{Total: 3, PermissionChanges: 1}

			w := do(http.MethodGet, "/audit-logs?page=2&limit=10&action=role.create", "", "admin")
			Expect(w.Code).To(Equal(http.StatusOK))

			var resp LogsResponse
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.Total).To(Equal(int64(41)))
			Expect(resp.Page).To(Equal(2))
			Expect(resp.Limit).To(Equal(10))
			Expect(resp.Stats.PermissionChanges).To(Equal(int64(1)))
			Expect(resp.Logs).To(HaveLen(1))
			Expect(repo.lastFilter.Offset).To(Equal(10))
		})

		It("returns 400 for a bad date", func() {
			w := do(http.MethodGet, "/audit-logs?startDate=05/01/2024", "", "admin")
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("GET /audit-logs/export", func() {
		It("streams a CSV attachment", func() {
			w := do(http.MethodGet, "/audit-logs/export?days=7", "", "admin")
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Header().Get("Content-Type")).To(HavePrefix("text/csv"))
			Expect(w.Header().Get("Content-Disposition")).To(MatchRegexp(`attachment; filename="audit-report-\d{4}-\d{2}-\d{2}\.csv"`))
			Expect(strings.HasPrefix(w.Body.String(), "\ufeff\"ID\"")).To(BeTrue())
		})

		It("rejects a non-numeric window", func() {
			w := do(http.MethodGet, "/audit-logs/export?days=week", "", "admin")
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})
})
