package category

import (
	"context"
	"net/http"

	"github.com/frahmantamala/church-cms/internal/transport"
)

type ServiceAPI interface {
	ListCategories(ctx context.Context, pageID string) ([]*Category, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
	}
}

// ListCategories serves GET /board-categories?pageId|boardId.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	pageID := r.URL.Query().Get("pageId")
	if pageID == "" {
		pageID = r.URL.Query().Get("boardId")
	}
	categories, err := h.Service.ListCategories(r.Context(), pageID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, CategoriesResponse{
		PageID:     pageID,
		Categories: categories,
	})
}
