package auth

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/church-cms/internal"
	"github.com/frahmantamala/church-cms/internal/transport"
)

type RBACAuthorization struct {
	*transport.BaseHandler
	authorizer PermissionAuthorizer
}

func NewRBACAuthorization(authorizer PermissionAuthorizer, logger *slog.Logger) *RBACAuthorization {
	if authorizer == nil {
		authorizer = NewPermissionChecker()
	}
	return &RBACAuthorization{
		BaseHandler: transport.NewBaseHandler(logger, nil),
		authorizer:  authorizer,
	}
}

// Require lets the request through only when the principal holds permission.
func (ra *RBACAuthorization) Require(permission string) func(http.Handler) http.Handler {
	return ra.RequireAny(permission)
}

// RequireAny lets the request through when the principal holds at least one of permissions.
func (ra *RBACAuthorization) RequireAny(permissions ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := internal.UserFromContext(r.Context())
			if !ok {
				ra.Logger.Warn("authorization check failed: user not found in context")
				ra.HandleServiceError(w, internal.ErrMissingToken)
				return
			}

			hasAccess, err := ra.authorizer.HasAnyPermission(r.Context(), user, permissions)
			if err != nil {
				ra.Logger.ErrorContext(r.Context(), "authorization check failed", "error", err, "user_id", user.ID, "permissions", permissions)
				ra.HandleServiceError(w, err)
				return
			}

			if !hasAccess {
				ra.Logger.WarnContext(r.Context(), "access denied: insufficient permissions",
					"user_id", user.ID,
					"required_permissions", permissions,
					"user_permissions", user.Permissions)
				ra.HandleServiceError(w, internal.ErrForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
