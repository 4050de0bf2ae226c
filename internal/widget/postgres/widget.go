package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/frahmantamala/church-cms/internal"
	widgetDatamodel "github.com/frahmantamala/church-cms/internal/core/datamodel/widget"
	"github.com/frahmantamala/church-cms/internal/core/retry"
	"github.com/frahmantamala/church-cms/internal/widget"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// orderColumn is a reserved word and must stay quoted.
var orderColumn = clause.Column{Name: "order"}

type WidgetRepository struct {
	db     *gorm.DB
	policy *retry.Policy
}

func NewWidgetRepository(db *gorm.DB, policy *retry.Policy) widget.RepositoryAPI {
	return &WidgetRepository{db: db, policy: policy}
}

func (r *WidgetRepository) ListActive(ctx context.Context, pageID *string) ([]*widgetDatamodel.Widget, error) {
	return retry.Value(ctx, r.policy, "widgets.list", func(ctx context.Context) ([]*widgetDatamodel.Widget, error) {
		var widgets []*widgetDatamodel.Widget
		err := r.scopePage(r.db.WithContext(ctx), pageID).
			Where("is_active = ?", true).
			Order(clause.OrderByColumn{Column: orderColumn}).
			Order("id ASC").
			Find(&widgets).Error
		return widgets, err
	})
}

func (r *WidgetRepository) GetByID(ctx context.Context, id string) (*widgetDatamodel.Widget, error) {
	return retry.Value(ctx, r.policy, "widgets.get", func(ctx context.Context) (*widgetDatamodel.Widget, error) {
		var w widgetDatamodel.Widget
		if err := r.db.WithContext(ctx).Where("id = ?", id).First(&w).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil
			}
			return nil, err
		}
		return &w, nil
	})
}

func (r *WidgetRepository) NextOrder(ctx context.Context, pageID *string) (int, error) {
	return retry.Value(ctx, r.policy, "widgets.next_order", func(ctx context.Context) (int, error) {
		var max sql.NullInt64
		err := r.scopePage(r.db.WithContext(ctx).Model(&widgetDatamodel.Widget{}), pageID).
			Select(`MAX("order")`).
			Scan(&max).Error
		if err != nil || !max.Valid {
			return 0, err
		}
		return int(max.Int64) + 1, nil
	})
}

func (r *WidgetRepository) Create(ctx context.Context, w *widgetDatamodel.Widget) error {
	return r.policy.Do(ctx, "widgets.create", func(ctx context.Context) error {
		return r.db.WithContext(ctx).Create(w).Error
	})
}

func (r *WidgetRepository) Update(ctx context.Context, w *widgetDatamodel.Widget) error {
	return r.policy.Do(ctx, "widgets.update", func(ctx context.Context) error {
		return r.db.WithContext(ctx).Save(w).Error
	})
}

func (r *WidgetRepository) Delete(ctx context.Context, id string) (bool, error) {
	return retry.Value(ctx, r.policy, "widgets.delete", func(ctx context.Context) (bool, error) {
		res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&widgetDatamodel.Widget{})
		return res.RowsAffected > 0, res.Error
	})
}

func (r *WidgetRepository) Reorder(ctx context.Context, items []widget.ReorderItem) error {
	return r.policy.Do(ctx, "widgets.reorder", func(ctx context.Context) error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			for _, item := range items {
				updates := map[string]interface{}{"order": item.Order}
				if item.ColumnPosition != nil {
					updates["column_position"] = *item.ColumnPosition
				}
				res := tx.Model(&widgetDatamodel.Widget{}).Where("id = ?", item.ID).Updates(updates)
				if res.Error != nil {
					return res.Error
				}
				if res.RowsAffected == 0 {
					return internal.ErrWidgetNotFound
				}
			}
			return nil
		})
	})
}

func (r *WidgetRepository) scopePage(q *gorm.DB, pageID *string) *gorm.DB {
	if pageID == nil {
		return q.Where("page_id IS NULL")
	}
	return q.Where("page_id = ?", *pageID)
}
