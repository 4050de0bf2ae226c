package postgres

import (
	"context"

	menuDatamodel "github.com/frahmantamala/church-cms/internal/core/datamodel/menu"
	"github.com/frahmantamala/church-cms/internal/core/retry"
	"github.com/frahmantamala/church-cms/internal/menu"
	"gorm.io/gorm"
)

type MenuRepository struct {
	db     *gorm.DB
	policy *retry.Policy
}

func NewMenuRepository(db *gorm.DB, policy *retry.Policy) menu.RepositoryAPI {
	return &MenuRepository{db: db, policy: policy}
}

func (r *MenuRepository) ListByPageIDs(ctx context.Context, pageIDs []string) ([]*menuDatamodel.Menu, error) {
	if len(pageIDs) == 0 {
		return nil, nil
	}
	return retry.Value(ctx, r.policy, "menus.by_page", func(ctx context.Context) ([]*menuDatamodel.Menu, error) {
		var menus []*menuDatamodel.Menu
		err := r.db.WithContext(ctx).
			Where("page_id IN ? AND is_active = ?", pageIDs, true).
			Order("order_num ASC").
			Order("id ASC").
			Find(&menus).Error
		return menus, err
	})
}
