package postgres

import (
	"context"
	"errors"
	"time"

	userDatamodel "github.com/frahmantamala/church-cms/internal/core/datamodel/user"
	"github.com/frahmantamala/church-cms/internal/core/retry"
	"github.com/frahmantamala/church-cms/internal/user"
	"gorm.io/gorm"
)

type UserRepository struct {
	db     *gorm.DB
	policy *retry.Policy
}

func NewUserRepository(db *gorm.DB, policy *retry.Policy) user.RepositoryAPI {
	return &UserRepository{db: db, policy: policy}
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*userDatamodel.User, error) {
	return retry.Value(ctx, r.policy, "users.get", func(ctx context.Context) (*userDatamodel.User, error) {
		var u userDatamodel.User
		if err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil
			}
			return nil, err
		}
		return &u, nil
	})
}

func (r *UserRepository) GetByIDs(ctx context.Context, ids []string) ([]*userDatamodel.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return retry.Value(ctx, r.policy, "users.get_many", func(ctx context.Context) ([]*userDatamodel.User, error) {
		var users []*userDatamodel.User
		err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error
		return users, err
	})
}

func (r *UserRepository) GetRoles(ctx context.Context, userID string) ([]string, error) {
	return retry.Value(ctx, r.policy, "user_roles.get", func(ctx context.Context) ([]string, error) {
		var names []string
		err := r.db.WithContext(ctx).Model(&userDatamodel.UserRole{}).
			Where("user_id = ?", userID).
			Order("position ASC").
			Pluck("role_name", &names).Error
		return names, err
	})
}

func (r *UserRepository) SaveRoles(ctx context.Context, change user.RoleChange) error {
	return r.policy.Do(ctx, "user_roles.save", func(ctx context.Context) error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("user_id = ?", change.UserID).Delete(&userDatamodel.UserRole{}).Error; err != nil {
				return err
			}
			if len(change.Roles) > 0 {
				rows := make([]userDatamodel.UserRole, 0, len(change.Roles))
				for i, name := range change.Roles {
					rows = append(rows, userDatamodel.UserRole{UserID: change.UserID, RoleName: name, Position: i})
				}
				if err := tx.Create(&rows).Error; err != nil {
					return err
				}
			}
			if err := tx.Model(&userDatamodel.User{}).
				Where("id = ?", change.UserID).
				Updates(map[string]interface{}{"role": change.Primary, "updated_at": time.Now()}).Error; err != nil {
				return err
			}
			if change.History != nil {
				return tx.Create(change.History).Error
			}
			return nil
		})
	})
}

func (r *UserRepository) ListHistory(ctx context.Context, userID string) ([]*userDatamodel.UserRoleHistory, error) {
	return retry.Value(ctx, r.policy, "user_role_history.list", func(ctx context.Context) ([]*userDatamodel.UserRoleHistory, error) {
		var rows []*userDatamodel.UserRoleHistory
		err := r.db.WithContext(ctx).
			Where("user_id = ?", userID).
			Order("created_at DESC").
			Find(&rows).Error
		return rows, err
	})
}
