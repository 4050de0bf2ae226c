package postgres

import (
	"context"
	"errors"

	roleDatamodel "github.com/frahmantamala/church-cms/internal/core/datamodel/role"
	userDatamodel "github.com/frahmantamala/church-cms/internal/core/datamodel/user"
	"github.com/frahmantamala/church-cms/internal/core/retry"
	"github.com/frahmantamala/church-cms/internal/role"
	"gorm.io/gorm"
)

type RoleRepository struct {
	db     *gorm.DB
	policy *retry.Policy
}

func NewRoleRepository(db *gorm.DB, policy *retry.Policy) role.RepositoryAPI {
	return &RoleRepository{db: db, policy: policy}
}

func (r *RoleRepository) ListRoles(ctx context.Context) ([]*roleDatamodel.Role, error) {
	return retry.Value(ctx, r.policy, "roles.list", func(ctx context.Context) ([]*roleDatamodel.Role, error) {
		var roles []*roleDatamodel.Role
		err := r.db.WithContext(ctx).Order("level DESC").Order("name ASC").Find(&roles).Error
		return roles, err
	})
}

func (r *RoleRepository) GetByID(ctx context.Context, id int64) (*roleDatamodel.Role, error) {
	return retry.Value(ctx, r.policy, "roles.get", func(ctx context.Context) (*roleDatamodel.Role, error) {
		return firstOrNil[roleDatamodel.Role](r.db.WithContext(ctx).Where("id = ?", id))
	})
}

func (r *RoleRepository) GetByName(ctx context.Context, name string) (*roleDatamodel.Role, error) {
	return retry.Value(ctx, r.policy, "roles.get_by_name", func(ctx context.Context) (*roleDatamodel.Role, error) {
		return firstOrNil[roleDatamodel.Role](r.db.WithContext(ctx).Where("name = ?", name))
	})
}

func (r *RoleRepository) GetByNames(ctx context.Context, names []string) ([]*roleDatamodel.Role, error) {
	if len(names) == 0 {
		return nil, nil
	}
	return retry.Value(ctx, r.policy, "roles.get_by_names", func(ctx context.Context) ([]*roleDatamodel.Role, error) {
		var roles []*roleDatamodel.Role
		err := r.db.WithContext(ctx).Where("name IN ?", names).Find(&roles).Error
		return roles, err
	})
}

func (r *RoleRepository) Create(ctx context.Context, rl *roleDatamodel.Role) error {
	return r.policy.Do(ctx, "roles.create", func(ctx context.Context) error {
		return r.db.WithContext(ctx).Create(rl).Error
	})
}

func (r *RoleRepository) Update(ctx context.Context, rl *roleDatamodel.Role, previousName string) error {
	return r.policy.Do(ctx, "roles.update", func(ctx context.Context) error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Save(rl).Error; err != nil {
				return err
			}
			if previousName == "" || previousName == rl.Name {
				return nil
			}
			if err := tx.Model(&userDatamodel.UserRole{}).
				Where("role_name = ?", previousName).
				Update("role_name", rl.Name).Error; err != nil {
				return err
			}
			return tx.Model(&userDatamodel.User{}).
				Where("role = ?", previousName).
				Update("role", rl.Name).Error
		})
	})
}

func (r *RoleRepository) Delete(ctx context.Context, id int64) error {
	return r.policy.Do(ctx, "roles.delete", func(ctx context.Context) error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("role_id = ?", id).Delete(&roleDatamodel.RolePermission{}).Error; err != nil {
				return err
			}
			return tx.Where("id = ?", id).Delete(&roleDatamodel.Role{}).Error
		})
	})
}

// CountUsersWithRole counts users holding name in their role list or primary column.
func (r *RoleRepository) CountUsersWithRole(ctx context.Context, name string) (int64, error) {
	return retry.Value(ctx, r.policy, "roles.count_holders", func(ctx context.Context) (int64, error) {
		var count int64
		err := r.db.WithContext(ctx).Model(&userDatamodel.User{}).
			Where("role = ? OR id IN (?)", name,
				r.db.Model(&userDatamodel.UserRole{}).Select("user_id").Where("role_name = ?", name)).
			Count(&count).Error
		return count, err
	})
}

func (r *RoleRepository) ListPermissions(ctx context.Context) ([]*roleDatamodel.Permission, error) {
	return retry.Value(ctx, r.policy, "permissions.list", func(ctx context.Context) ([]*roleDatamodel.Permission, error) {
		var perms []*roleDatamodel.Permission
		err := r.db.WithContext(ctx).Order("category ASC").Order("name ASC").Find(&perms).Error
		return perms, err
	})
}

func (r *RoleRepository) GetPermissionsByIDs(ctx context.Context, ids []int64) ([]*roleDatamodel.Permission, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return retry.Value(ctx, r.policy, "permissions.get_by_ids", func(ctx context.Context) ([]*roleDatamodel.Permission, error) {
		var perms []*roleDatamodel.Permission
		err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&perms).Error
		return perms, err
	})
}

func (r *RoleRepository) GetRolePermissions(ctx context.Context, roleID int64) ([]*roleDatamodel.Permission, error) {
	return retry.Value(ctx, r.policy, "role_permissions.get", func(ctx context.Context) ([]*roleDatamodel.Permission, error) {
		var perms []*roleDatamodel.Permission
		err := r.db.WithContext(ctx).
			Joins("JOIN role_permissions rp ON rp.permission_id = permissions.id").
			Where("rp.role_id = ?", roleID).
			Order("permissions.category ASC").Order("permissions.name ASC").
			Find(&perms).Error
		return perms, err
	})
}

// ReplaceRolePermissions deletes and re-inserts the grants in one transaction.
func (r *RoleRepository) ReplaceRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	return r.policy.Do(ctx, "role_permissions.replace", func(ctx context.Context) error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("role_id = ?", roleID).Delete(&roleDatamodel.RolePermission{}).Error; err != nil {
				return err
			}
			if len(permissionIDs) == 0 {
				return nil
			}
			rows := make([]roleDatamodel.RolePermission, 0, len(permissionIDs))
			for _, pid := range permissionIDs {
				rows = append(rows, roleDatamodel.RolePermission{RoleID: roleID, PermissionID: pid})
			}
			return tx.Create(&rows).Error
		})
	})
}

func (r *RoleRepository) PermissionNamesForRole(ctx context.Context, name string) ([]string, error) {
	return retry.Value(ctx, r.policy, "role_permissions.names", func(ctx context.Context) ([]string, error) {
		var names []string
		err := r.db.WithContext(ctx).
			Table("permissions").
			Joins("JOIN role_permissions rp ON rp.permission_id = permissions.id").
			Joins("JOIN roles ON roles.id = rp.role_id").
			Where("roles.name = ? AND roles.is_active = ?", name, true).
			Order("permissions.name ASC").
			Pluck("permissions.name", &names).Error
		return names, err
	})
}

func firstOrNil[T any](q *gorm.DB) (*T, error) {
	var out T
	err := q.First(&out).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}
