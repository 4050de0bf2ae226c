package role_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"time"

	"github.com/frahmantamala/church-cms/internal"
	roleDatamodel "github.com/frahmantamala/church-cms/internal/core/datamodel/role"
	userDatamodel "github.com/frahmantamala/church-cms/internal/core/datamodel/user"
	"github.com/frahmantamala/church-cms/internal/core/retry"
	"github.com/frahmantamala/church-cms/internal/role"
	rolePostgres "github.com/frahmantamala/church-cms/internal/role/postgres"
	"github.com/frahmantamala/church-cms/internal/transport"
	"github.com/frahmantamala/church-cms/internal/transport/openapi"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var _ = Describe("Role Handler Integration", func() {
	var (
		db      *gorm.DB
		router  chi.Router
		staffID int64
	)

	BeforeEach(func() {
		var err error
		slogger := slog.New(slog.NewTextHandler(io.Discard, nil))

		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		Expect(err).NotTo(HaveOccurred())
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		sqlDB.SetMaxOpenConns(1)
		Expect(db.AutoMigrate(
			&roleDatamodel.Role{}, &roleDatamodel.Permission{}, &roleDatamodel.RolePermission{},
			&userDatamodel.User{}, &userDatamodel.UserRole{},
		)).To(Succeed())

		policy := retry.NewPolicy(internal.PersistenceConfig{
			MaxAttempts: 1, BaseDelay: time.Millisecond, AttemptTimeout: time.Second,
		}, slogger)
		repo := rolePostgres.NewRoleRepository(db, policy)

		for _, r := range []*roleDatamodel.Role{
			{Name: "admin", DisplayName: "Admin", Level: 100, IsSystem: true, IsActive: true},
			{Name: "staff", DisplayName: "Staff", Level: 50, IsSystem: true, IsActive: true},
			{Name: "member", DisplayName: "Member", Level: 10, IsSystem: true, IsActive: true},
		} {
			Expect(repo.Create(context.Background(), r)).To(Succeed())
			if r.Name == "staff" {
				staffID = r.ID
			}
		}
		for _, p := range []*roleDatamodel.Permission{
			{ID: 1, Name: "roles.read", DisplayName: "View roles", Category: "roles"},
			{ID: 2, Name: "audit.read", DisplayName: "View audit log", Category: "audit"},
		} {
			Expect(db.Create(p).Error).To(Succeed())
		}

		schemas, err := openapi.NewValidator()
		Expect(err).NotTo(HaveOccurred())

		service := role.NewService(repo, role.NewCatalog(internal.RBACConfig{}), nil, nil, slogger)
		handler := role.NewHandler(transport.NewBaseHandler(slogger, schemas), service)

		router = chi.NewRouter()
		router.Get("/roles", handler.ListRoles)
		router.Post("/roles", handler.CreateRole)
		router.Put("/roles", handler.UpdateRoleByBody)
		router.Delete("/roles", handler.DeleteRoleByQuery)
		router.Get("/roles/{id}", handler.GetRole)
		router.Get("/roles/{id}/permissions", handler.GetRolePermissions)
		router.Put("/roles/{id}/permissions", handler.SetRolePermissions)
		router.Get("/permissions", handler.ListPermissions)
	})

	do := func(method, target, body string) *httptest.ResponseRecorder {
		var reader io.Reader
		if body != "" {
			reader = strings.NewReader(body)
		}
		req := httptest.NewRequest(method, target, reader)
		req.Header.Set("Content-Type", "application/json")
		req = req.WithContext(internal.ContextWithUserID(req.Context(), "admin-user"))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	errorBody := func(w *httptest.ResponseRecorder) internal.Response {
		var resp internal.Response
		Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
		return resp
	}

	It("lists roles highest level first", func() {
		w := do(http.MethodGet, "/roles", "")
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Header().Get("Content-Type")).To(ContainSubstring("application/json"))

		var resp role.RolesResponse
		Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
		Expect(resp.Roles).To(HaveLen(3))
		Expect(resp.Roles[0].Name).To(Equal("admin"))
	})

	It("creates a custom role", func() {
		w := do(http.MethodPost, "/roles", `{"name":"editor","display_name":"Editor","level":5}`)
		Expect(w.Code).To(Equal(http.StatusCreated))

		var created role.Role
		Expect(json.NewDecoder(w.Body).Decode(&created)).To(Succeed())
		Expect(created.Name).To(Equal("editor"))
		Expect(created.IsSystem).To(BeFalse())
	})

	It("rejects a body missing required fields", func() {
		w := do(http.MethodPost, "/roles", `{"name":"editor"}`)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(errorBody(w).Code).To(Equal(internal.ErrCodeValidationFailed))
	})

	It("rejects an empty body", func() {
		w := do(http.MethodPost, "/roles", "")
		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(errorBody(w).Code).To(Equal(internal.ErrCodeInvalidBody))
	})

	It("returns 409 for a duplicate name", func() {
		w := do(http.MethodPost, "/roles", `{"name":"staff","display_name":"Dup","level":5}`)
		Expect(w.Code).To(Equal(http.StatusConflict))
		Expect(errorBody(w).Code).To(Equal(internal.ErrCodeRoleNameTaken))
	})

	It("returns 403 when editing a system role", func() {
		w := do(http.MethodPut, "/roles", `{"id":1,"display_name":"Boss"}`)
		Expect(w.Code).To(Equal(http.StatusForbidden))
		Expect(errorBody(w).Code).To(Equal(internal.ErrCodeSystemRole))
	})

	It("requires an id on the collection update", func() {
		w := do(http.MethodPut, "/roles", `{"display_name":"Boss"}`)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("returns 403 when deleting a system role", func() {
		w := do(http.MethodDelete, "/roles?id=1", "")
		Expect(w.Code).To(Equal(http.StatusForbidden))
	})

	It("returns 400 for a malformed id", func() {
		w := do(http.MethodGet, "/roles/abc", "")
		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(errorBody(w).Code).To(Equal(internal.ErrCodeValidationFailed))
	})

	It("returns 404 for an unknown role", func() {
		w := do(http.MethodGet, "/roles/999", "")
		Expect(w.Code).To(Equal(http.StatusNotFound))
		Expect(errorBody(w).Code).To(Equal(internal.ErrCodeRoleNotFound))
	})

	It("deletes a custom role", func() {
		w := do(http.MethodPost, "/roles", `{"name":"editor","display_name":"Editor","level":5}`)
		var created role.Role
		Expect(json.NewDecoder(w.Body).Decode(&created)).To(Succeed())

		w = do(http.MethodDelete, "/roles?id="+itoa(created.ID), "")
		Expect(w.Code).To(Equal(http.StatusOK))

		var resp map[string]interface{}
		Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
		Expect(resp["success"]).To(BeTrue())
	})

	It("replaces and reads back role permissions", func() {
		w := do(http.MethodPut, "/roles/"+itoa(staffID)+"/permissions", `{"permission_ids":[2,1,2]}`)
		Expect(w.Code).To(Equal(http.StatusOK))

		w = do(http.MethodGet, "/roles/"+itoa(staffID)+"/permissions", "")
		Expect(w.Code).To(Equal(http.StatusOK))
		var resp role.RolePermissionsResponse
		Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
		Expect(resp.PermissionIDs).To(ConsistOf(int64(1), int64(2)))
	})

	It("returns an empty permission list after clearing", func() {
		w := do(http.MethodPut, "/roles/"+itoa(staffID)+"/permissions", `{"permission_ids":[]}`)
		Expect(w.Code).To(Equal(http.StatusOK))

		var resp role.RolePermissionsResponse
		Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
		Expect(resp.PermissionIDs).To(BeEmpty())
		Expect(resp.Permissions).NotTo(BeNil())
	})

	It("rejects unknown permission ids", func() {
		w := do(http.MethodPut, "/roles/"+itoa(staffID)+"/permissions", `{"permission_ids":[1,99]}`)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("groups the permission catalog by category", func() {
		w := do(http.MethodGet, "/permissions", "")
		Expect(w.Code).To(Equal(http.StatusOK))

		var resp role.PermissionsResponse
		Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
		Expect(resp.Categories).To(HaveLen(2))
		Expect(resp.Categories[0].Category).To(Equal("roles"))
	})
})

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
