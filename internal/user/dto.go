package user

// UserRolesDTO replaces a user's role list. role_ids is an alias of roles;
// both carry role names.
type UserRolesDTO struct {
	Roles   []string `json:"roles"`
	RoleIDs []string `json:"role_ids"`
	Reason  *string  `json:"reason,omitempty"`
}

// RoleNames returns whichever list was sent, preferring roles.
func (d UserRolesDTO) RoleNames() ([]string, bool) {
	if d.Roles != nil {
		return d.Roles, true
	}
	if d.RoleIDs != nil {
		return d.RoleIDs, true
	}
	return nil, false
}

type AddUserRoleDTO struct {
	Role string `json:"role"`
}

type ChangeRoleDTO struct {
	Role   string  `json:"role"`
	Reason *string `json:"reason,omitempty"`
}

type UserRolesResponse struct {
	UserID string   `json:"user_id"`
	Role   string   `json:"role"`
	Roles  []string `json:"roles"`
}

type RoleHistoryResponse struct {
	UserID  string              `json:"user_id"`
	History []*RoleHistoryEntry `json:"history"`
}

func NewUserRolesResponse(u *User) UserRolesResponse {
	roles := u.Roles
	if roles == nil {
		roles = []string{}
	}
	return UserRolesResponse{UserID: u.ID, Role: PrimaryRole(roles), Roles: roles}
}
