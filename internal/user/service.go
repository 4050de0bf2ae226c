package user

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/frahmantamala/church-cms/internal"
	userDatamodel "github.com/frahmantamala/church-cms/internal/core/datamodel/user"
	"github.com/frahmantamala/church-cms/internal/core/events"
	"github.com/google/uuid"
)

// RoleChange is one rewrite of a user's role list. History is nil when the
// primary role did not change.
type RoleChange struct {
	UserID  string
	Roles   []string
	Primary string
	History *userDatamodel.UserRoleHistory
}

type RepositoryAPI interface {
	// GetByID returns nil, nil when no user has id.
	GetByID(ctx context.Context, id string) (*userDatamodel.User, error)
	GetByIDs(ctx context.Context, ids []string) ([]*userDatamodel.User, error)
	GetRoles(ctx context.Context, userID string) ([]string, error)
	// SaveRoles rewrites the ordered list, the primary role column and the
	// optional history row in one transaction.
	SaveRoles(ctx context.Context, change RoleChange) error
	ListHistory(ctx context.Context, userID string) ([]*userDatamodel.UserRoleHistory, error)
}

// RoleCatalogAPI reports which role names are not defined.
type RoleCatalogAPI interface {
	UnknownRoleNames(ctx context.Context, names []string) ([]string, error)
}

type Service struct {
	repo   RepositoryAPI
	roles  RoleCatalogAPI
	events events.Publisher
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, roles RoleCatalogAPI, publisher events.Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		roles:  roles,
		events: publisher,
		logger: logger,
	}
}

// GetUser loads a user with its ordered roles, active or not.
func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("failed to get user", "error", err, "user_id", id)
		return nil, err
	}
	if row == nil {
		return nil, internal.ErrUserNotFound
	}
	roles, err := s.repo.GetRoles(ctx, id)
	if err != nil {
		s.logger.Error("failed to get user roles", "error", err, "user_id", id)
		return nil, err
	}
	return FromDataModel(row, roles), nil
}

// GetUsers returns the users found among ids, keyed by id. Roles are not loaded.
func (s *Service) GetUsers(ctx context.Context, ids []string) (map[string]*User, error) {
	out := make(map[string]*User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.repo.GetByIDs(ctx, ids)
	if err != nil {
		s.logger.Error("failed to get users", "error", err, "count", len(ids))
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = FromDataModel(row, nil)
	}
	return out, nil
}

func (s *Service) GetUserRoles(ctx context.Context, id string) (*User, error) {
	return s.activeUser(ctx, id)
}

// ReplaceUserRoles stores roles as the user's full ordered list.
func (s *Service) ReplaceUserRoles(ctx context.Context, actorID, id string, roles []string, reason *string) (*User, error) {
	roles = normalizeRoles(roles)
	if err := s.checkRolesExist(ctx, roles); err != nil {
		return nil, err
	}
	current, err := s.activeUser(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, actorID, current, roles, reason, "user_role.replace")
}

// AddUserRole appends name unless the user already holds it.
func (s *Service) AddUserRole(ctx context.Context, actorID, id, name string) (*User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, internal.NewValidationFieldError("role", "role is required", internal.ErrCodeValidationFailed)
	}
	if err := s.checkRolesExist(ctx, []string{name}); err != nil {
		return nil, err
	}
	current, err := s.activeUser(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, actorID, current, withRole(current.Roles, name), nil, "user_role.add")
}

func (s *Service) RemoveUserRole(ctx context.Context, actorID, id, name string) (*User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, internal.NewValidationFieldError("role", "role is required", internal.ErrCodeValidationFailed)
	}
	current, err := s.activeUser(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, actorID, current, withoutRole(current.Roles, name), nil, "user_role.remove")
}

// ChangePrimaryRole makes name the user's primary role, keeping the others.
func (s *Service) ChangePrimaryRole(ctx context.Context, actorID, id, name string, reason *string) (*User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, internal.NewValidationFieldError("role", "role is required", internal.ErrCodeValidationFailed)
	}
	if err := s.checkRolesExist(ctx, []string{name}); err != nil {
		return nil, err
	}
	current, err := s.activeUser(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, actorID, current, promoted(current.Roles, name), reason, "user_role.change_primary")
}

// GetRoleHistory lists primary role changes, newest first.
func (s *Service) GetRoleHistory(ctx context.Context, id string) ([]*RoleHistoryEntry, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("failed to get user", "error", err, "user_id", id)
		return nil, err
	}
	if row == nil {
		return nil, internal.ErrUserNotFound
	}
	rows, err := s.repo.ListHistory(ctx, id)
	if err != nil {
		s.logger.Error("failed to list role history", "error", err, "user_id", id)
		return nil, err
	}
	out := make([]*RoleHistoryEntry, 0, len(rows))
	for _, h := range rows {
		out = append(out, HistoryFromDataModel(h))
	}
	return out, nil
}

func (s *Service) activeUser(ctx context.Context, id string) (*User, error) {
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, internal.ErrUserNotFound
	}
	return u, nil
}

func (s *Service) checkRolesExist(ctx context.Context, names []string) error {
	if len(names) == 0 || s.roles == nil {
		return nil
	}
	unknown, err := s.roles.UnknownRoleNames(ctx, names)
	if err != nil {
		return err
	}
	if len(unknown) > 0 {
		return internal.NewValidationFieldError("roles",
			fmt.Sprintf("unknown roles: %s", strings.Join(unknown, ", ")), internal.ErrCodeUnknownRole)
	}
	return nil
}

// apply persists next as the user's role list. An unchanged list is a no-op,
// and a history row is written only when the primary role moves.
func (s *Service) apply(ctx context.Context, actorID string, current *User, next []string, reason *string, action string) (*User, error) {
	if sameRoles(current.Roles, next) {
		return current, nil
	}

	oldPrimary := PrimaryRole(current.Roles)
	newPrimary := PrimaryRole(next)
	change := RoleChange{UserID: current.ID, Roles: next, Primary: newPrimary}
	if oldPrimary != newPrimary {
		change.History = &userDatamodel.UserRoleHistory{
			ID:        uuid.NewString(),
			UserID:    current.ID,
			OldRole:   oldPrimary,
			NewRole:   newPrimary,
			Reason:    reason,
			ChangedBy: optionalString(actorID),
			CreatedAt: time.Now(),
		}
	}

	if err := s.repo.SaveRoles(ctx, change); err != nil {
		s.logger.Error("failed to save user roles", "error", err, "user_id", current.ID, "action", action)
		return nil, err
	}

	s.logger.Info("user roles changed", "user_id", current.ID, "roles", next, "primary", newPrimary, "actor_id", actorID)
	data := map[string]interface{}{
		"old_roles": current.Roles,
		"new_roles": next,
		"old_role":  oldPrimary,
		"new_role":  newPrimary,
	}
	if reason != nil {
		data["reason"] = *reason
	}
	s.publish(ctx, events.NewDomainEvent(events.EventTypeUserRoleChanged, actorID, action, "user_role",
		current.ID, current.Username, data))

	updated := *current
	updated.Roles = next
	updated.Role = newPrimary
	return &updated, nil
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish event", "event_type", event.EventType(), "error", err)
	}
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
