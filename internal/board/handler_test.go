package board_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/frahmantamala/church-cms/internal"
	"github.com/frahmantamala/church-cms/internal/auth"
	"github.com/frahmantamala/church-cms/internal/board"
	boardPostgres "github.com/frahmantamala/church-cms/internal/board/postgres"
	boardDatamodel "github.com/frahmantamala/church-cms/internal/core/datamodel/board"
	"github.com/frahmantamala/church-cms/internal/core/retry"
	"github.com/frahmantamala/church-cms/internal/transport"
	"github.com/frahmantamala/church-cms/internal/transport/openapi"
	"github.com/frahmantamala/church-cms/internal/user"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Board Handler", func() {
	var router chi.Router

	withPrincipal := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Header.Get("X-Test-User") {
			case "manager":
				r = r.WithContext(internal.ContextWithUser(r.Context(), &internal.User{ID: "mgr", Permissions: []string{auth.PermBoardManage}}))
			case "member":
				r = r.WithContext(internal.ContextWithUser(r.Context(), &internal.User{ID: "u-name", Roles: []string{"member"}}))
			}
			next.ServeHTTP(w, r)
		})
	}

	BeforeEach(func() {
		lg := slog.New(slog.NewTextHandler(io.Discard, nil))
		db := openBoardDB()
		policy := retry.NewPolicy(internal.PersistenceConfig{MaxAttempts: 1, BaseDelay: time.Millisecond, AttemptTimeout: time.Second}, lg)
		svc := board.NewService(boardPostgres.NewBoardRepository(db, policy),
			&fakeAuthors{users: map[string]*user.User{"u-name": {ID: "u-name", Username: "lee"}}},
			&fakeMenus{urls: map[string]string{}}, &fakePromoter{}, nil, lg)

		schemas, err := openapi.NewValidator()
		Expect(err).NotTo(HaveOccurred())
		handler := board.NewHandler(transport.NewBaseHandler(lg, schemas), svc)

		Expect(db.Create([]*boardDatamodel.Post{
			{ID: "p1", Title: "Hello", PageID: strPtr("news"), UserID: "u-name", Status: board.StatusPublished, PublishedAt: timePtr(base), CreatedAt: base},
			{ID: "d1", Title: "Hidden", PageID: strPtr("news"), UserID: "u-name", Status: board.StatusDraft, CreatedAt: base},
		}).Error).To(Succeed())

		router = chi.NewRouter()
		router.Use(withPrincipal)
		router.Get("/board-posts", handler.ListPosts)
		router.Post("/board-posts", handler.CreatePost)
		router.Get("/board-posts/{id}", handler.GetPostDetail)
		router.Post("/board-posts/{id}/publish", handler.PublishPost)
		router.Get("/board-posts/{id}/comments", handler.ListComments)
		router.Post("/board-posts/{id}/comments", handler.CreateComment)
	})

	do := func(method, target, body, as string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if as != "" {
			req.Header.Set("X-Test-User", as)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	It("lists posts by boardId as an alias of pageId", func() {
		w := do(http.MethodGet, "/board-posts?boardId=news", "", "")
		Expect(w.Code).To(Equal(http.StatusOK))

		var resp struct {
			Posts []map[string]interface{} `json:"posts"`
		}
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.Posts).To(HaveLen(1))
		Expect(resp.Posts[0]["author"]).To(Equal("lee"))
		Expect(resp.Posts[0]["attachments"]).To(BeEmpty())
	})

	It("rejects a listing without a page", func() {
		w := do(http.MethodGet, "/board-posts", "", "")
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("serves drafts to managers only", func() {
		Expect(do(http.MethodGet, "/board-posts/d1", "", "").Code).To(Equal(http.StatusNotFound))
		Expect(do(http.MethodGet, "/board-posts/d1", "", "member").Code).To(Equal(http.StatusNotFound))
		Expect(do(http.MethodGet, "/board-posts/d1", "", "manager").Code).To(Equal(http.StatusOK))
	})

	It("creates and then publishes a post", func() {
		w := do(http.MethodPost, "/board-posts", `{"title":"Notice","board_id":"news"}`, "manager")
		Expect(w.Code).To(Equal(http.StatusCreated))
		var created map[string]interface{}
		Expect(json.Unmarshal(w.Body.Bytes(), &created)).To(Succeed())
		Expect(created["status"]).To(Equal(board.StatusDraft))

		id := created["id"].(string)
		w = do(http.MethodPost, "/board-posts/"+id+"/publish", "", "manager")
		Expect(w.Code).To(Equal(http.StatusOK))

		w = do(http.MethodPost, "/board-posts/"+id+"/publish", "", "manager")
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("rejects a post without a title", func() {
		w := do(http.MethodPost, "/board-posts", `{"page_id":"news"}`, "manager")
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("adds comments for signed-in users", func() {
		Expect(do(http.MethodPost, "/board-posts/p1/comments", `{"content":"amen"}`, "").Code).To(Equal(http.StatusUnauthorized))

		w := do(http.MethodPost, "/board-posts/p1/comments", `{"content":"amen"}`, "member")
		Expect(w.Code).To(Equal(http.StatusCreated))

		w = do(http.MethodGet, "/board-posts/p1/comments", "", "")
		Expect(w.Code).To(Equal(http.StatusOK))
		var resp board.CommentsResponse
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.Total).To(Equal(1))
		Expect(resp.Comments[0].Author).To(Equal("lee"))
	})
})
