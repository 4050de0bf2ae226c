package user_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/frahmantamala/church-cms/internal"
	userDatamodel "github.com/frahmantamala/church-cms/internal/core/datamodel/user"
	"github.com/frahmantamala/church-cms/internal/transport"
	"github.com/frahmantamala/church-cms/internal/transport/openapi"
	"github.com/frahmantamala/church-cms/internal/user"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("User Handler", func() {
	var (
		repo   *MockRepository
		router chi.Router
	)

	BeforeEach(func() {
		slogger := slog.New(slog.NewTextHandler(io.Discard, nil))
		repo = NewMockRepository()
		repo.users["u1"] = &userDatamodel.User{ID: "u1", Username: "kim", Email: "kim@example.com", Role: "member", IsActive: true}
		repo.roles["u1"] = []string{"member"}

		schemas, err := openapi.NewValidator()
		Expect(err).NotTo(HaveOccurred())

		service := user.NewService(repo, knownRoles{"member": true, "staff": true}, nil, slogger)
		handler := user.NewHandler(transport.NewBaseHandler(slogger, schemas), service)

		router = chi.NewRouter()
		router.Get("/users/me", handler.GetCurrentUser)
		router.Put("/users/{id}/role", handler.ChangeRole)
		router.Get("/users/{id}/roles", handler.GetUserRoles)
		router.Put("/users/{id}/roles", handler.ReplaceUserRoles)
		router.Post("/users/{id}/roles", handler.AddUserRole)
		router.Delete("/users/{id}/roles", handler.RemoveUserRole)
		router.Get("/users/{id}/role-history", handler.GetRoleHistory)
	})

	do := func(method, target, body string) *httptest.ResponseRecorder {
		var reader io.Reader
		if body != "" {
			reader = strings.NewReader(body)
		}
		req := httptest.NewRequest(method, target, reader)
		req = req.WithContext(internal.ContextWithUser(req.Context(), &internal.User{
			ID: "u1", Roles: []string{"admin"}, Permissions: []string{"users.manage"},
		}))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	decodeRoles := func(w *httptest.ResponseRecorder) user.UserRolesResponse {
		var resp user.UserRolesResponse
		Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
		return resp
	}

	It("walks the add/remove scenario", func() {
		w := do(http.MethodPost, "/users/u1/roles", `{"role":"staff"}`)
		Expect(w.Code).To(Equal(http.StatusOK))

		w = do(http.MethodGet, "/users/u1/roles", "")
		Expect(decodeRoles(w).Roles).To(Equal([]string{"member", "staff"}))

		w = do(http.MethodDelete, "/users/u1/roles?role=member", "")
		Expect(w.Code).To(Equal(http.StatusOK))
		resp := decodeRoles(w)
		Expect(resp.Roles).To(Equal([]string{"staff"}))
		Expect(resp.Role).To(Equal("staff"))
	})

	It("accepts role_ids as an alias of roles", func() {
		w := do(http.MethodPut, "/users/u1/roles", `{"role_ids":["staff","member"]}`)
		Expect(w.Code).To(Equal(http.StatusOK))
		resp := decodeRoles(w)
		Expect(resp.Roles).To(Equal([]string{"staff", "member"}))
		Expect(resp.Role).To(Equal("staff"))
	})

	It("requires roles or role_ids", func() {
		w := do(http.MethodPut, "/users/u1/roles", `{"reason":"x"}`)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("rejects unknown roles", func() {
		w := do(http.MethodPut, "/users/u1/roles", `{"roles":["wizard"]}`)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("changes the primary role and records history", func() {
		w := do(http.MethodPut, "/users/u1/role", `{"role":"staff","reason":"ordained"}`)
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(decodeRoles(w).Role).To(Equal("staff"))

		w = do(http.MethodGet, "/users/u1/role-history", "")
		Expect(w.Code).To(Equal(http.StatusOK))
		var resp user.RoleHistoryResponse
		Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
		Expect(resp.History).To(HaveLen(1))
		Expect(resp.History[0].OldRole).To(Equal("member"))
	})

	It("returns 404 for an unknown user", func() {
		w := do(http.MethodGet, "/users/ghost/roles", "")
		Expect(w.Code).To(Equal(http.StatusNotFound))
	})

	It("returns the current user with permissions", func() {
		w := do(http.MethodGet, "/users/me", "")
		Expect(w.Code).To(Equal(http.StatusOK))

		var me user.User
		Expect(json.NewDecoder(w.Body).Decode(&me)).To(Succeed())
		Expect(me.Username).To(Equal("kim"))
		Expect(me.Permissions).To(ContainElement("users.manage"))
	})

	It("rejects /users/me without a principal", func() {
		req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		Expect(w.Code).To(Equal(http.StatusUnauthorized))
	})
})
