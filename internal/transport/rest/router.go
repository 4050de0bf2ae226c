package rest

import (
	"net/http"

	"github.com/frahmantamala/church-cms/internal/audit"
	"github.com/frahmantamala/church-cms/internal/auth"
	"github.com/frahmantamala/church-cms/internal/board"
	"github.com/frahmantamala/church-cms/internal/category"
	"github.com/frahmantamala/church-cms/internal/role"
	"github.com/frahmantamala/church-cms/internal/transport/middleware"
	"github.com/frahmantamala/church-cms/internal/transport/openapi"
	"github.com/frahmantamala/church-cms/internal/transport/swagger"
	"github.com/frahmantamala/church-cms/internal/user"
	"github.com/frahmantamala/church-cms/internal/widget"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
)

// Handlers groups every HTTP handler mounted by RegisterAllRoutes. A nil
// handler leaves its routes out.
type Handlers struct {
	Auth     *auth.Handler
	RBAC     *auth.RBACAuthorization
	Role     *role.Handler
	User     *user.Handler
	Audit    *audit.Handler
	Widget   *widget.Handler
	Board    *board.Handler
	Category *category.Handler
}

func RegisterAllRoutes(router *chi.Mux, health *HealthHandler, h Handlers, allowedOrigins string) {
	router.Use(middleware.CORS(allowedOrigins))
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.Trace)
	router.Use(middleware.Logging)
	router.Use(middleware.Recovery)

	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(openapi.Document)
	})
	router.Handle("/swagger/*", swagger.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", health.healthCheckHandler)
		r.Get("/ping", health.pingHandler)

		if h.Auth == nil {
			return
		}
		rbac := h.RBAC
		if rbac == nil {
			rbac = auth.NewRBACAuthorization(nil, h.Auth.Logger)
		}

		r.Post("/auth/login", h.Auth.Login)

		// Public reads. A token, when sent, lets managers see drafts.
		r.Group(func(pub chi.Router) {
			pub.Use(h.Auth.OptionalAuth)

			if h.Widget != nil {
				pub.Get("/widgets", h.Widget.ListWidgets)
			}
			if h.Board != nil {
				pub.Get("/board-posts", h.Board.ListPosts)
				pub.Get("/posts/{id}/detail", h.Board.GetPostDetail)
				pub.Get("/posts/{id}/comments", h.Board.ListComments)
			}
			if h.Category != nil {
				pub.Get("/board-categories", h.Category.ListCategories)
			}
		})

		r.Group(func(pr chi.Router) {
			pr.Use(h.Auth.AuthMiddleware)

			if h.User != nil {
				pr.Get("/users/me", h.User.GetCurrentUser)
				registerUserRoutes(pr, h.User, rbac)
			}
			if h.Role != nil {
				registerRoleRoutes(pr, h.Role, rbac)
			}
			if h.Audit != nil {
				pr.Post("/logs", h.Audit.RecordLog)
				pr.Group(func(ar chi.Router) {
					ar.Use(rbac.Require(auth.PermAuditRead))
					ar.Get("/audit-logs", h.Audit.ListLogs)
					ar.Get("/audit-logs/export", h.Audit.ExportLogs)
				})
			}
			if h.Widget != nil {
				pr.Group(func(wr chi.Router) {
					wr.Use(rbac.Require(auth.PermCMSManage))
					wr.Post("/widgets", h.Widget.CreateWidget)
					wr.Put("/widgets/reorder", h.Widget.ReorderWidgets)
					wr.Put("/widgets/{id}", h.Widget.UpdateWidget)
					wr.Delete("/widgets/{id}", h.Widget.DeleteWidget)
				})
			}
			if h.Board != nil {
				pr.Post("/posts/{id}/comments", h.Board.CreateComment)
				pr.With(rbac.RequireAny(auth.PermBoardWrite, auth.PermBoardManage)).Post("/posts", h.Board.CreatePost)
				pr.With(rbac.Require(auth.PermBoardManage)).Post("/posts/{id}/publish", h.Board.PublishPost)
			}
		})
	})
}

func registerRoleRoutes(r chi.Router, h *role.Handler, rbac *auth.RBACAuthorization) {
	r.Group(func(rr chi.Router) {
		rr.Use(rbac.RequireAny(auth.PermRolesRead, auth.PermRolesManage))
		rr.Get("/roles", h.ListRoles)
		rr.Get("/roles/{id}", h.GetRole)
		rr.Get("/roles/{id}/permissions", h.GetRolePermissions)
		rr.Get("/permissions", h.ListPermissions)
	})
	r.Group(func(rw chi.Router) {
		rw.Use(rbac.Require(auth.PermRolesManage))
		rw.Post("/roles", h.CreateRole)
		rw.Put("/roles", h.UpdateRoleByBody)
		rw.Delete("/roles", h.DeleteRoleByQuery)
		rw.Put("/roles/{id}", h.UpdateRole)
		rw.Delete("/roles/{id}", h.DeleteRole)
		rw.Put("/roles/{id}/permissions", h.SetRolePermissions)
	})
}

func registerUserRoutes(r chi.Router, h *user.Handler, rbac *auth.RBACAuthorization) {
	r.Group(func(ur chi.Router) {
		ur.Use(rbac.RequireAny(auth.PermUsersRead, auth.PermUsersManage))
		ur.Get("/users/{id}/roles", h.GetUserRoles)
		ur.Get("/users/{id}/role-history", h.GetRoleHistory)
	})
	r.Group(func(uw chi.Router) {
		uw.Use(rbac.Require(auth.PermUsersManage))
		uw.Put("/users/{id}/role", h.ChangeRole)
		uw.Put("/users/{id}/roles", h.ReplaceUserRoles)
		uw.Post("/users/{id}/roles", h.AddUserRole)
		uw.Delete("/users/{id}/roles", h.RemoveUserRole)
	})
}
