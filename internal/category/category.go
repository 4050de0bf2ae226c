package category

import (
	categoryDatamodel "github.com/frahmantamala/church-cms/internal/core/datamodel/category"
)

type Category struct {
	ID          string `json:"id"`
	PageID      string `json:"page_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Order       int    `json:"order"`
}

type CategoriesResponse struct {
	PageID     string      `json:"page_id"`
	Categories []*Category `json:"categories"`
}

func FromDataModel(c *categoryDatamodel.BoardCategory) *Category {
	return &Category{
		ID:          c.ID,
		PageID:      c.PageID,
		Name:        c.Name,
		Description: c.Description,
		Order:       c.OrderNum,
	}
}
