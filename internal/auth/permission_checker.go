package auth

import (
	"context"

	"github.com/frahmantamala/church-cms/internal"
)

// PermissionAuthorizer decides whether a principal may use a permission.
type PermissionAuthorizer interface {
	HasPermission(ctx context.Context, user *internal.User, permission string) (bool, error)
	HasAnyPermission(ctx context.Context, user *internal.User, permissions []string) (bool, error)
}

// DefaultPermissionChecker reads the permissions resolved by the auth
// middleware. The admin role holds every permission.
type DefaultPermissionChecker struct{}

func NewPermissionChecker() *DefaultPermissionChecker {
	return &DefaultPermissionChecker{}
}

func (c *DefaultPermissionChecker) HasPermission(ctx context.Context, user *internal.User, permission string) (bool, error) {
	return user.HasPermission(permission), nil
}

func (c *DefaultPermissionChecker) HasAnyPermission(ctx context.Context, user *internal.User, permissions []string) (bool, error) {
	for _, p := range permissions {
		if user.HasPermission(p) {
			return true, nil
		}
	}
	return false, nil
}

// CanManageBoard reports whether the principal may see and publish drafts.
func CanManageBoard(user *internal.User) bool {
	return user.HasPermission(PermBoardManage)
}

// Permission names guarded by the router.
const (
	PermRolesRead   = "roles.read"
	PermRolesManage = "roles.manage"
	PermUsersRead   = "users.read"
	PermUsersManage = "users.manage"
	PermAuditRead   = "audit.read"
	PermCMSManage   = "cms.manage"
	PermBoardWrite  = "board.write"
	PermBoardManage = "board.manage"
)
