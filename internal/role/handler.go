package role

import (
	"context"
	"net/http"
	"strconv"

	"github.com/frahmantamala/church-cms/internal"
	"github.com/frahmantamala/church-cms/internal/transport"
	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	ListRoles(ctx context.Context) ([]*Role, error)
	GetRole(ctx context.Context, id int64) (*Role, error)
	CreateRole(ctx context.Context, actorID string, dto CreateRoleDTO) (*Role, error)
	UpdateRole(ctx context.Context, actorID string, id int64, dto UpdateRoleDTO) (*Role, error)
	DeleteRole(ctx context.Context, actorID string, id int64) error
	GetRolePermissions(ctx context.Context, id int64) ([]*Permission, error)
	SetRolePermissions(ctx context.Context, actorID string, id int64, permissionIDs []int64) ([]*Permission, error)
	ListPermissions(ctx context.Context) ([]PermissionGroup, error)
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

func (h *Handler) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.Service.ListRoles(r.Context())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, RolesResponse{Roles: roles})
}

func (h *Handler) GetRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleIDFromPath(w, r)
	if !ok {
		return
	}
	rl, err := h.Service.GetRole(r.Context(), id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, rl)
}

func (h *Handler) CreateRole(w http.ResponseWriter, r *http.Request) {
	var dto CreateRoleDTO
	if err := h.DecodeAndValidate(r, "CreateRoleRequest", &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	actorID := internal.UserIDFromContext(r.Context())
	created, err := h.Service.CreateRole(r.Context(), actorID, dto)
	if err != nil {
		h.Logger.Warn("CreateRole: service error", "error", err, "name", dto.Name, "actor_id", actorID)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, created)
}

// UpdateRoleByBody serves PUT /roles, where the id travels in the body.
func (h *Handler) UpdateRoleByBody(w http.ResponseWriter, r *http.Request) {
	var dto UpdateRoleDTO
	if err := h.DecodeAndValidate(r, "UpdateRoleRequest", &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	if dto.ID <= 0 {
		h.HandleServiceError(w, internal.NewValidationFieldError("id", "id is required", internal.ErrCodeInvalidID))
		return
	}
	h.updateRole(w, r, dto.ID, dto)
}

func (h *Handler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleIDFromPath(w, r)
	if !ok {
		return
	}
	var dto UpdateRoleDTO
	if err := h.DecodeAndValidate(r, "UpdateRoleRequest", &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.updateRole(w, r, id, dto)
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request, id int64, dto UpdateRoleDTO) {
	actorID := internal.UserIDFromContext(r.Context())
	updated, err := h.Service.UpdateRole(r.Context(), actorID, id, dto)
	if err != nil {
		h.Logger.Warn("UpdateRole: service error", "error", err, "role_id", id, "actor_id", actorID)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, updated)
}

// DeleteRoleByQuery serves DELETE /roles?id=.
func (h *Handler) DeleteRoleByQuery(w http.ResponseWriter, r *http.Request) {
	id, err := parseRoleID(r.URL.Query().Get("id"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.deleteRole(w, r, id)
}

func (h *Handler) DeleteRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleIDFromPath(w, r)
	if !ok {
		return
	}
	h.deleteRole(w, r, id)
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request, id int64) {
	actorID := internal.UserIDFromContext(r.Context())
	if err := h.Service.DeleteRole(r.Context(), actorID, id); err != nil {
		h.Logger.Warn("DeleteRole: service error", "error", err, "role_id", id, "actor_id", actorID)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true, "id": id})
}

func (h *Handler) GetRolePermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleIDFromPath(w, r)
	if !ok {
		return
	}
	perms, err := h.Service.GetRolePermissions(r.Context(), id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, NewRolePermissionsResponse(id, perms))
}

func (h *Handler) SetRolePermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleIDFromPath(w, r)
	if !ok {
		return
	}
	var dto SetRolePermissionsDTO
	if err := h.DecodeAndValidate(r, "SetRolePermissionsRequest", &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	actorID := internal.UserIDFromContext(r.Context())
	perms, err := h.Service.SetRolePermissions(r.Context(), actorID, id, dto.PermissionIDs)
	if err != nil {
		h.Logger.Warn("SetRolePermissions: service error", "error", err, "role_id", id, "actor_id", actorID)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, NewRolePermissionsResponse(id, perms))
}

func (h *Handler) ListPermissions(w http.ResponseWriter, r *http.Request) {
	groups, err := h.Service.ListPermissions(r.Context())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, PermissionsResponse{Categories: groups})
}

func (h *Handler) roleIDFromPath(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := parseRoleID(chi.URLParam(r, "id"))
	if err != nil {
		h.HandleServiceError(w, err)
		return 0, false
	}
	return id, true
}

func parseRoleID(raw string) (int64, error) {
	if raw == "" {
		return 0, internal.NewValidationFieldError("id", "id is required", internal.ErrCodeInvalidID)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, internal.NewValidationFieldError("id", "id must be a positive integer", internal.ErrCodeInvalidID)
	}
	return id, nil
}
