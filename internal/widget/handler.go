package widget

import (
	"context"
	"net/http"

	"github.com/frahmantamala/church-cms/internal"
	"github.com/frahmantamala/church-cms/internal/transport"
	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	ResolveWidgets(ctx context.Context, pageID *string) ([]*Widget, error)
	CreateWidget(ctx context.Context, actorID string, dto CreateWidgetDTO) (*Widget, error)
	UpdateWidget(ctx context.Context, actorID, id string, dto UpdateWidgetDTO) (*Widget, error)
	DeleteWidget(ctx context.Context, actorID, id string) error
	ReorderWidgets(ctx context.Context, actorID string, dto ReorderWidgetsDTO) error
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

// ListWidgets serves GET /widgets; without pageId it returns the homepage.
func (h *Handler) ListWidgets(w http.ResponseWriter, r *http.Request) {
	widgets, err := h.Service.ResolveWidgets(r.Context(), transport.QueryOptional(r, "pageId"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, WidgetsResponse{Widgets: widgets})
}

func (h *Handler) CreateWidget(w http.ResponseWriter, r *http.Request) {
	var dto CreateWidgetDTO
	if err := h.DecodeAndValidate(r, "CreateWidgetRequest", &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	widget, err := h.Service.CreateWidget(r.Context(), internal.UserIDFromContext(r.Context()), dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, widget)
}

func (h *Handler) UpdateWidget(w http.ResponseWriter, r *http.Request) {
	var dto UpdateWidgetDTO
	if err := h.DecodeAndValidate(r, "UpdateWidgetRequest", &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	widget, err := h.Service.UpdateWidget(r.Context(), internal.UserIDFromContext(r.Context()), chi.URLParam(r, "id"), dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, widget)
}

func (h *Handler) DeleteWidget(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Service.DeleteWidget(r.Context(), internal.UserIDFromContext(r.Context()), id); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true, "id": id})
}

func (h *Handler) ReorderWidgets(w http.ResponseWriter, r *http.Request) {
	var dto ReorderWidgetsDTO
	if err := h.DecodeAndValidate(r, "ReorderWidgetsRequest", &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	if err := h.Service.ReorderWidgets(r.Context(), internal.UserIDFromContext(r.Context()), dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true, "count": len(dto.Items)})
}
