package postgres

import (
	"context"
	"errors"

	"github.com/frahmantamala/church-cms/internal/category"
	categoryDatamodel "github.com/frahmantamala/church-cms/internal/core/datamodel/category"
	"github.com/frahmantamala/church-cms/internal/core/retry"
	"gorm.io/gorm"
)

type CategoryRepository struct {
	db     *gorm.DB
	policy *retry.Policy
}

func NewCategoryRepository(db *gorm.DB, policy *retry.Policy) category.RepositoryAPI {
	return &CategoryRepository{db: db, policy: policy}
}

func (r *CategoryRepository) ListActive(ctx context.Context, pageID string) ([]*categoryDatamodel.BoardCategory, error) {
	return retry.Value(ctx, r.policy, "board_categories.list", func(ctx context.Context) ([]*categoryDatamodel.BoardCategory, error) {
		var categories []*categoryDatamodel.BoardCategory
		err := r.db.WithContext(ctx).
			Where("page_id = ? AND is_active = ?", pageID, true).
			Order("order_num ASC").
			Order("name ASC").
			Find(&categories).Error
		return categories, err
	})
}

func (r *CategoryRepository) GetByID(ctx context.Context, id string) (*categoryDatamodel.BoardCategory, error) {
	return retry.Value(ctx, r.policy, "board_categories.get", func(ctx context.Context) (*categoryDatamodel.BoardCategory, error) {
		var cat categoryDatamodel.BoardCategory
		err := r.db.WithContext(ctx).Where("id = ?", id).First(&cat).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil
			}
			return nil, err
		}
		return &cat, nil
	})
}
