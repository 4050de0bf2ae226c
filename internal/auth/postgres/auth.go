package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/frahmantamala/church-cms/internal/auth"
	userDatamodel "github.com/frahmantamala/church-cms/internal/core/datamodel/user"
	"github.com/frahmantamala/church-cms/internal/core/retry"
	"gorm.io/gorm"
)

type Repository struct {
	db     *gorm.DB
	policy *retry.Policy
}

func NewRepository(db *gorm.DB, policy *retry.Policy) auth.RepositoryAPI {
	return &Repository{
		db:     db,
		policy: policy,
	}
}

func (r *Repository) GetCredentialsByEmail(ctx context.Context, email string) (*userDatamodel.User, error) {
	return retry.Value(ctx, r.policy, "auth.credentials", func(ctx context.Context) (*userDatamodel.User, error) {
		var u userDatamodel.User
		err := r.db.WithContext(ctx).Where("LOWER(email) = ?", email).First(&u).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil
			}
			return nil, err
		}
		return &u, nil
	})
}

func (r *Repository) UpdateLastLogin(ctx context.Context, userID string, at time.Time) error {
	return r.policy.Do(ctx, "auth.last_login", func(ctx context.Context) error {
		return r.db.WithContext(ctx).Model(&userDatamodel.User{}).
			Where("id = ?", userID).
			UpdateColumn("last_login", at).Error
	})
}
