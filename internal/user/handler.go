package user

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/frahmantamala/church-cms/internal"
	"github.com/frahmantamala/church-cms/internal/transport"
	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserRoles(ctx context.Context, id string) (*User, error)
	ReplaceUserRoles(ctx context.Context, actorID, id string, roles []string, reason *string) (*User, error)
	AddUserRole(ctx context.Context, actorID, id, name string) (*User, error)
	RemoveUserRole(ctx context.Context, actorID, id, name string) (*User, error)
	ChangePrimaryRole(ctx context.Context, actorID, id, name string, reason *string) (*User, error)
	GetRoleHistory(ctx context.Context, id string) ([]*RoleHistoryEntry, error)
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

// GetCurrentUser handles GET /users/me
func (h *Handler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	principal, ok := internal.UserFromContext(r.Context())
	if !ok {
		h.HandleServiceError(w, internal.ErrMissingToken)
		return
	}

	u, err := h.Service.GetUser(r.Context(), principal.ID)
	if err != nil {
		h.Logger.Error("GetCurrentUser: service GetUser failed", "user_id", principal.ID, "error", err)
		h.HandleServiceError(w, err)
		return
	}
	u.Permissions = principal.Permissions
	if u.Permissions == nil {
		u.Permissions = []string{}
	}
	h.WriteJSON(w, http.StatusOK, u)
}

func (h *Handler) GetUserRoles(w http.ResponseWriter, r *http.Request) {
	u, err := h.Service.GetUserRoles(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, NewUserRolesResponse(u))
}

// ReplaceUserRoles handles PUT /users/{id}/roles with {roles} or {role_ids}.
func (h *Handler) ReplaceUserRoles(w http.ResponseWriter, r *http.Request) {
	var dto UserRolesDTO
	if err := h.DecodeAndValidate(r, "UserRolesRequest", &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	names, ok := dto.RoleNames()
	if !ok {
		h.HandleServiceError(w, internal.NewValidationFieldError("roles", "roles or role_ids is required", internal.ErrCodeValidationFailed))
		return
	}

	id := chi.URLParam(r, "id")
	actorID := internal.UserIDFromContext(r.Context())
	u, err := h.Service.ReplaceUserRoles(r.Context(), actorID, id, names, dto.Reason)
	if err != nil {
		h.Logger.Warn("ReplaceUserRoles: service error", "error", err, "user_id", id, "actor_id", actorID)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, NewUserRolesResponse(u))
}

func (h *Handler) AddUserRole(w http.ResponseWriter, r *http.Request) {
	var dto AddUserRoleDTO
	if err := h.DecodeAndValidate(r, "AddUserRoleRequest", &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	id := chi.URLParam(r, "id")
	actorID := internal.UserIDFromContext(r.Context())
	u, err := h.Service.AddUserRole(r.Context(), actorID, id, dto.Role)
	if err != nil {
		h.Logger.Warn("AddUserRole: service error", "error", err, "user_id", id, "role", dto.Role, "actor_id", actorID)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, NewUserRolesResponse(u))
}

// RemoveUserRole handles DELETE /users/{id}/roles?role=name; a {"role"} body
// is accepted when the query parameter is absent.
func (h *Handler) RemoveUserRole(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("role"))
	if name == "" && r.Body != nil {
		var dto AddUserRoleDTO
		if err := json.NewDecoder(r.Body).Decode(&dto); err == nil {
			name = dto.Role
		}
	}

	id := chi.URLParam(r, "id")
	actorID := internal.UserIDFromContext(r.Context())
	u, err := h.Service.RemoveUserRole(r.Context(), actorID, id, name)
	if err != nil {
		h.Logger.Warn("RemoveUserRole: service error", "error", err, "user_id", id, "role", name, "actor_id", actorID)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, NewUserRolesResponse(u))
}

// ChangeRole handles PUT /users/{id}/role {role, reason?}.
func (h *Handler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	var dto ChangeRoleDTO
	if err := h.DecodeAndValidate(r, "ChangeRoleRequest", &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	id := chi.URLParam(r, "id")
	actorID := internal.UserIDFromContext(r.Context())
	u, err := h.Service.ChangePrimaryRole(r.Context(), actorID, id, dto.Role, dto.Reason)
	if err != nil {
		h.Logger.Warn("ChangeRole: service error", "error", err, "user_id", id, "role", dto.Role, "actor_id", actorID)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, NewUserRolesResponse(u))
}

func (h *Handler) GetRoleHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	history, err := h.Service.GetRoleHistory(r.Context(), id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, RoleHistoryResponse{UserID: id, History: history})
}
