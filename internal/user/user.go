package user

import (
	"strings"
	"time"

	userDatamodel "github.com/frahmantamala/church-cms/internal/core/datamodel/user"
	"github.com/frahmantamala/church-cms/internal/role"
)

// AnonymousName is shown when a user has neither nickname nor username.
const AnonymousName = "익명"

type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Nickname     *string    `json:"nickname,omitempty"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         string     `json:"role"`
	Roles        []string   `json:"roles"`
	IsActive     bool       `json:"is_active"`
	IsApproved   bool       `json:"is_approved"`
	Permissions  []string   `json:"permissions,omitempty"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// DisplayName falls back from nickname to username to AnonymousName.
func (u *User) DisplayName() string {
	if u == nil {
		return AnonymousName
	}
	if u.Nickname != nil && strings.TrimSpace(*u.Nickname) != "" {
		return *u.Nickname
	}
	if strings.TrimSpace(u.Username) != "" {
		return u.Username
	}
	return AnonymousName
}

type RoleHistoryEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	OldRole   string    `json:"old_role"`
	NewRole   string    `json:"new_role"`
	Reason    *string   `json:"reason,omitempty"`
	ChangedBy *string   `json:"changed_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// PrimaryRole is the first role of the ordered list, or the default role when empty.
func PrimaryRole(roles []string) string {
	if len(roles) == 0 {
		return role.DefaultRole
	}
	return roles[0]
}

// normalizeRoles trims names, drops blanks and keeps the first occurrence of each.
func normalizeRoles(roles []string) []string {
	seen := make(map[string]bool, len(roles))
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		r = strings.TrimSpace(r)
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}

func withRole(roles []string, name string) []string {
	return normalizeRoles(append(append([]string{}, roles...), name))
}

func withoutRole(roles []string, name string) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		if r != name {
			out = append(out, r)
		}
	}
	return out
}

// promoted moves name to the front, keeping the relative order of the rest.
func promoted(roles []string, name string) []string {
	return append([]string{name}, withoutRole(roles, name)...)
}

func sameRoles(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func ToDataModel(u *User) *userDatamodel.User {
	return &userDatamodel.User{
		ID:           u.ID,
		Username:     u.Username,
		Nickname:     u.Nickname,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         PrimaryRole(u.Roles),
		IsActive:     u.IsActive,
		IsApproved:   u.IsApproved,
		LastLogin:    u.LastLogin,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

// FromDataModel builds a user from its row and its ordered role list. The
// scalar role is always re-derived from roles.
func FromDataModel(u *userDatamodel.User, roles []string) *User {
	if roles == nil {
		roles = []string{}
	}
	return &User{
		ID:           u.ID,
		Username:     u.Username,
		Nickname:     u.Nickname,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         PrimaryRole(roles),
		Roles:        roles,
		IsActive:     u.IsActive,
		IsApproved:   u.IsApproved,
		LastLogin:    u.LastLogin,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func HistoryFromDataModel(h *userDatamodel.UserRoleHistory) *RoleHistoryEntry {
	return &RoleHistoryEntry{
		ID:        h.ID,
		UserID:    h.UserID,
		OldRole:   h.OldRole,
		NewRole:   h.NewRole,
		Reason:    h.Reason,
		ChangedBy: h.ChangedBy,
		CreatedAt: h.CreatedAt,
	}
}
