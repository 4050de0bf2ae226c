package internal

import (
	"context"
	"time"
)

type ctxKey string

const (
	ContextUserKey      ctxKey = "userID"
	ContextPrincipalKey ctxKey = "principal"
)

// AdminRole holds every permission implicitly.
const AdminRole = "admin"

// User is the authenticated principal attached to a request.
type User struct {
	ID          string
	Email       string
	Username    string
	Roles       []string
	Permissions []string
}

func (u *User) HasRole(name string) bool {
	if u == nil {
		return false
	}
	for _, r := range u.Roles {
		if r == name {
			return true
		}
	}
	return false
}

func (u *User) HasPermission(permission string) bool {
	if u == nil {
		return false
	}
	if u.HasRole(AdminRole) {
		return true
	}
	for _, p := range u.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if userID, ok := ctx.Value(ContextUserKey).(string); ok {
		return userID
	}
	return ""
}

func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ContextUserKey, userID)
}

// ContextWithUser stores the principal and its id.
func ContextWithUser(ctx context.Context, user *User) context.Context {
	ctx = context.WithValue(ctx, ContextPrincipalKey, user)
	if user != nil {
		ctx = ContextWithUserID(ctx, user.ID)
	}
	return ctx
}

func UserFromContext(ctx context.Context) (*User, bool) {
	if ctx == nil {
		return nil, false
	}
	user, ok := ctx.Value(ContextPrincipalKey).(*User)
	return user, ok && user != nil
}

// WithTimeout returns a context with timeout, defaulting to 5 seconds if duration is zero or negative.
func WithTimeout(ctx context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if duration <= 0 {
		duration = 5 * time.Second
	}
	return context.WithTimeout(ctx, duration)
}
