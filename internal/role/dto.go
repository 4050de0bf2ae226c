package role

type CreateRoleDTO struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
	Level       *int   `json:"level"`
}

// UpdateRoleDTO carries a partial update; nil fields are left untouched.
// ID is only read by the collection-level PUT /roles.
type UpdateRoleDTO struct {
	ID          int64   `json:"id,omitempty"`
	Name        *string `json:"name,omitempty"`
	DisplayName *string `json:"display_name,omitempty"`
	Description *string `json:"description,omitempty"`
	Level       *int    `json:"level,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

type SetRolePermissionsDTO struct {
	PermissionIDs []int64 `json:"permission_ids"`
}

type RolesResponse struct {
	Roles []*Role `json:"roles"`
}

type RolePermissionsResponse struct {
	RoleID        int64         `json:"role_id"`
	PermissionIDs []int64       `json:"permission_ids"`
	Permissions   []*Permission `json:"permissions"`
}

type PermissionGroup struct {
	Category    string        `json:"category"`
	DisplayName string        `json:"display_name"`
	Permissions []*Permission `json:"permissions"`
}

type PermissionsResponse struct {
	Categories []PermissionGroup `json:"categories"`
}

func NewRolePermissionsResponse(roleID int64, perms []*Permission) RolePermissionsResponse {
	ids := make([]int64, 0, len(perms))
	for _, p := range perms {
		ids = append(ids, p.ID)
	}
	if perms == nil {
		perms = []*Permission{}
	}
	return RolePermissionsResponse{RoleID: roleID, PermissionIDs: ids, Permissions: perms}
}
