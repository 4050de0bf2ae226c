package role

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/frahmantamala/church-cms/internal"
	"github.com/frahmantamala/church-cms/internal/cache"
	"github.com/frahmantamala/church-cms/internal/core/common/validation"
	roleDatamodel "github.com/frahmantamala/church-cms/internal/core/datamodel/role"
	"github.com/frahmantamala/church-cms/internal/core/events"
	"github.com/frahmantamala/church-cms/internal/core/retry"
)

type RepositoryAPI interface {
	ListRoles(ctx context.Context) ([]*roleDatamodel.Role, error)
	GetByID(ctx context.Context, id int64) (*roleDatamodel.Role, error)
	GetByName(ctx context.Context, name string) (*roleDatamodel.Role, error)
	GetByNames(ctx context.Context, names []string) ([]*roleDatamodel.Role, error)
	Create(ctx context.Context, role *roleDatamodel.Role) error
	// Update saves role and, when the name changed, moves every assignment
	// of previousName to the new name in the same transaction.
	Update(ctx context.Context, role *roleDatamodel.Role, previousName string) error
	Delete(ctx context.Context, id int64) error
	CountUsersWithRole(ctx context.Context, name string) (int64, error)

	ListPermissions(ctx context.Context) ([]*roleDatamodel.Permission, error)
	GetPermissionsByIDs(ctx context.Context, ids []int64) ([]*roleDatamodel.Permission, error)
	GetRolePermissions(ctx context.Context, roleID int64) ([]*roleDatamodel.Permission, error)
	ReplaceRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error
	PermissionNamesForRole(ctx context.Context, name string) ([]string, error)
}

type PermissionCacheAPI interface {
	Get(ctx context.Context, role string) ([]string, bool)
	Set(ctx context.Context, role string, perms []string)
	Invalidate(ctx context.Context, roles ...string)
}

type Service struct {
	repo      RepositoryAPI
	catalog   *Catalog
	permCache PermissionCacheAPI
	events    events.Publisher
	logger    *slog.Logger
}

func NewService(repo RepositoryAPI, catalog *Catalog, permCache PermissionCacheAPI, publisher events.Publisher, logger *slog.Logger) *Service {
	if catalog == nil {
		catalog = NewCatalog(internal.RBACConfig{})
	}
	if logger == nil {
		logger = slog.Default()
	}
	if permCache == nil {
		permCache = cache.NewPermissionCache(nil, 0, logger)
	}
	return &Service{
		repo:      repo,
		catalog:   catalog,
		permCache: permCache,
		events:    publisher,
		logger:    logger,
	}
}

// ListRoles returns every role, highest level first.
func (s *Service) ListRoles(ctx context.Context) ([]*Role, error) {
	dataRoles, err := s.repo.ListRoles(ctx)
	if err != nil {
		s.logger.Error("failed to list roles", "error", err)
		return nil, err
	}

	roles := make([]*Role, 0, len(dataRoles))
	for _, r := range dataRoles {
		roles = append(roles, FromDataModel(r))
	}
	sort.SliceStable(roles, func(i, j int) bool {
		if roles[i].Level != roles[j].Level {
			return roles[i].Level > roles[j].Level
		}
		return roles[i].Name < roles[j].Name
	})
	return roles, nil
}

func (s *Service) GetRole(ctx context.Context, id int64) (*Role, error) {
	dataRole, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("failed to get role", "error", err, "role_id", id)
		return nil, err
	}
	if dataRole == nil {
		return nil, internal.ErrRoleNotFound
	}
	return FromDataModel(dataRole), nil
}

// UnknownRoleNames returns the names that match no defined role.
func (s *Service) UnknownRoleNames(ctx context.Context, names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, nil
	}
	found, err := s.repo.GetByNames(ctx, names)
	if err != nil {
		s.logger.Error("failed to look up roles by name", "error", err)
		return nil, err
	}
	known := make(map[string]bool, len(found))
	for _, r := range found {
		known[r.Name] = true
	}
	var unknown []string
	for _, n := range names {
		if !known[n] {
			unknown = append(unknown, n)
		}
	}
	return unknown, nil
}

func (s *Service) CreateRole(ctx context.Context, actorID string, dto CreateRoleDTO) (*Role, error) {
	dto.Name = strings.TrimSpace(dto.Name)
	dto.DisplayName = strings.TrimSpace(dto.DisplayName)

	var levelErr *internal.AppError
	if dto.Level == nil {
		levelErr = internal.NewValidationFieldError("level", "level is required", internal.ErrCodeValidationFailed)
	} else {
		levelErr = validation.ValidateRoleLevel(*dto.Level)
	}
	if verr := validation.Merge(
		validation.ValidateRoleName(dto.Name),
		validation.ValidateDisplayName(dto.DisplayName),
		levelErr,
	); verr != nil {
		return nil, verr
	}

	existing, err := s.repo.GetByName(ctx, dto.Name)
	if err != nil {
		s.logger.Error("failed to check role name", "error", err, "name", dto.Name)
		return nil, err
	}
	if existing != nil {
		return nil, internal.ErrRoleNameTaken
	}

	newRole := NewRole(dto.Name, dto.DisplayName, strings.TrimSpace(dto.Description), *dto.Level)
	dataRole := ToDataModel(newRole)
	if err := s.repo.Create(ctx, dataRole); err != nil {
		if retry.IsUniqueViolation(err) {
			return nil, internal.ErrRoleNameTaken
		}
		s.logger.Error("failed to create role", "error", err, "name", dto.Name)
		return nil, err
	}

	created := FromDataModel(dataRole)
	s.logger.Info("role created", "role_id", created.ID, "name", created.Name, "actor_id", actorID)
	s.publish(ctx, events.NewDomainEvent(events.EventTypeRoleCreated, actorID, "role.create", "role",
		strconv.FormatInt(created.ID, 10), created.Name, map[string]interface{}{
			"level":        created.Level,
			"display_name": created.DisplayName,
		}))
	return created, nil
}

// UpdateRole applies a partial update. System roles only accept changes to
// is_active, and admin and member can never be deactivated.
func (s *Service) UpdateRole(ctx context.Context, actorID string, id int64, dto UpdateRoleDTO) (*Role, error) {
	dataRole, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("failed to get role for update", "error", err, "role_id", id)
		return nil, err
	}
	if dataRole == nil {
		return nil, internal.ErrRoleNotFound
	}
	current := FromDataModel(dataRole)

	var checks []*internal.AppError
	if dto.Name != nil {
		trimmed := strings.TrimSpace(*dto.Name)
		dto.Name = &trimmed
		checks = append(checks, validation.ValidateRoleName(trimmed))
	}
	if dto.DisplayName != nil {
		trimmed := strings.TrimSpace(*dto.DisplayName)
		dto.DisplayName = &trimmed
		checks = append(checks, validation.ValidateDisplayName(trimmed))
	}
	if dto.Level != nil {
		checks = append(checks, validation.ValidateRoleLevel(*dto.Level))
	}
	if verr := validation.Merge(checks...); verr != nil {
		return nil, verr
	}

	changes := changedFields(current, dto)
	if current.IsSystem {
		for _, field := range changes {
			if field != "is_active" {
				s.logger.Warn("rejected system role edit", "role", current.Name, "field", field, "actor_id", actorID)
				return nil, internal.ErrSystemRole
			}
		}
	}
	if dto.IsActive != nil && !*dto.IsActive && current.IsActive && !s.catalog.CanDeactivate(current.Name) {
		return nil, internal.ErrSystemRole.WithMessage(fmt.Sprintf("Role %q cannot be deactivated", current.Name))
	}
	if len(changes) == 0 {
		return current, nil
	}

	previousName := current.Name
	if dto.Name != nil && *dto.Name != current.Name {
		other, err := s.repo.GetByName(ctx, *dto.Name)
		if err != nil {
			s.logger.Error("failed to check role name", "error", err, "name", *dto.Name)
			return nil, err
		}
		if other != nil && other.ID != id {
			return nil, internal.ErrRoleNameTaken
		}
		current.Name = *dto.Name
	}
	if dto.DisplayName != nil {
		current.DisplayName = *dto.DisplayName
	}
	if dto.Description != nil {
		current.Description = strings.TrimSpace(*dto.Description)
	}
	if dto.Level != nil {
		current.Level = *dto.Level
	}
	if dto.IsActive != nil {
		current.IsActive = *dto.IsActive
	}
	current.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, ToDataModel(current), previousName); err != nil {
		if retry.IsUniqueViolation(err) {
			return nil, internal.ErrRoleNameTaken
		}
		s.logger.Error("failed to update role", "error", err, "role_id", id)
		return nil, err
	}

	s.permCache.Invalidate(ctx, previousName, current.Name)
	s.logger.Info("role updated", "role_id", id, "fields", changes, "actor_id", actorID)
	s.publish(ctx, events.NewDomainEvent(events.EventTypeRoleUpdated, actorID, "role.update", "role",
		strconv.FormatInt(id, 10), current.Name, map[string]interface{}{
			"changed_fields": changes,
			"previous_name":  previousName,
		}))
	return current, nil
}

func changedFields(current *Role, dto UpdateRoleDTO) []string {
	var fields []string
	if dto.Name != nil && *dto.Name != current.Name {
		fields = append(fields, "name")
	}
	if dto.DisplayName != nil && *dto.DisplayName != current.DisplayName {
		fields = append(fields, "display_name")
	}
	if dto.Description != nil && strings.TrimSpace(*dto.Description) != current.Description {
		fields = append(fields, "description")
	}
	if dto.Level != nil && *dto.Level != current.Level {
		fields = append(fields, "level")
	}
	if dto.IsActive != nil && *dto.IsActive != current.IsActive {
		fields = append(fields, "is_active")
	}
	return fields
}

// DeleteRole removes a custom role that no user holds, in either the
// ordered role list or the primary role column.
func (s *Service) DeleteRole(ctx context.Context, actorID string, id int64) error {
	dataRole, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("failed to get role for delete", "error", err, "role_id", id)
		return err
	}
	if dataRole == nil {
		return internal.ErrRoleNotFound
	}
	if dataRole.IsSystem {
		return internal.ErrSystemRole
	}

	inUse, err := s.repo.CountUsersWithRole(ctx, dataRole.Name)
	if err != nil {
		s.logger.Error("failed to count role holders", "error", err, "role", dataRole.Name)
		return err
	}
	if inUse > 0 {
		return internal.ErrRoleInUse.WithMessage(fmt.Sprintf("Role is assigned to %d user(s)", inUse))
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		s.logger.Error("failed to delete role", "error", err, "role_id", id)
		return err
	}

	s.permCache.Invalidate(ctx, dataRole.Name)
	s.logger.Info("role deleted", "role_id", id, "name", dataRole.Name, "actor_id", actorID)
	s.publish(ctx, events.NewDomainEvent(events.EventTypeRoleDeleted, actorID, "role.delete", "role",
		strconv.FormatInt(id, 10), dataRole.Name, nil))
	return nil
}

func (s *Service) GetRolePermissions(ctx context.Context, id int64) ([]*Permission, error) {
	if _, err := s.GetRole(ctx, id); err != nil {
		return nil, err
	}
	perms, err := s.repo.GetRolePermissions(ctx, id)
	if err != nil {
		s.logger.Error("failed to get role permissions", "error", err, "role_id", id)
		return nil, err
	}
	return permissionsFromDataModel(perms), nil
}

// SetRolePermissions replaces the role's permission set atomically.
// Duplicate ids collapse and an empty list clears every grant.
func (s *Service) SetRolePermissions(ctx context.Context, actorID string, id int64, permissionIDs []int64) ([]*Permission, error) {
	roleModel, err := s.GetRole(ctx, id)
	if err != nil {
		return nil, err
	}

	unique := dedupeIDs(permissionIDs)
	if len(unique) > 0 {
		found, err := s.repo.GetPermissionsByIDs(ctx, unique)
		if err != nil {
			s.logger.Error("failed to look up permissions", "error", err, "role_id", id)
			return nil, err
		}
		if missing := missingIDs(unique, found); len(missing) > 0 {
			return nil, internal.NewValidationFieldError("permission_ids",
				fmt.Sprintf("unknown permission ids: %s", joinIDs(missing)), internal.ErrCodeUnknownPermission)
		}
	}

	if err := s.repo.ReplaceRolePermissions(ctx, id, unique); err != nil {
		s.logger.Error("failed to replace role permissions", "error", err, "role_id", id)
		return nil, err
	}
	s.permCache.Invalidate(ctx, roleModel.Name)

	s.logger.Info("role permissions replaced", "role_id", id, "count", len(unique), "actor_id", actorID)
	s.publish(ctx, events.NewDomainEvent(events.EventTypeRolePermissionsReplace, actorID, "permission.replace", "permission",
		strconv.FormatInt(id, 10), roleModel.Name, map[string]interface{}{
			"permission_ids": unique,
		}))

	return s.GetRolePermissions(ctx, id)
}

// ListPermissions groups permissions by category in catalog order.
func (s *Service) ListPermissions(ctx context.Context) ([]PermissionGroup, error) {
	perms, err := s.repo.ListPermissions(ctx)
	if err != nil {
		s.logger.Error("failed to list permissions", "error", err)
		return nil, err
	}

	byCategory := make(map[string][]*Permission)
	var order []string
	for _, p := range perms {
		if _, seen := byCategory[p.Category]; !seen {
			order = append(order, p.Category)
		}
		byCategory[p.Category] = append(byCategory[p.Category], PermissionFromDataModel(p))
	}
	sort.SliceStable(order, func(i, j int) bool {
		ri, rj := s.catalog.categoryRank(order[i]), s.catalog.categoryRank(order[j])
		if ri != rj {
			return ri < rj
		}
		return order[i] < order[j]
	})

	groups := make([]PermissionGroup, 0, len(order))
	for _, cat := range order {
		groups = append(groups, PermissionGroup{
			Category:    cat,
			DisplayName: s.catalog.CategoryDisplayName(cat),
			Permissions: byCategory[cat],
		})
	}
	return groups, nil
}

// ResolvePermissions returns the union of permissions granted by active roles.
func (s *Service) ResolvePermissions(ctx context.Context, roles []string) ([]string, error) {
	set := make(map[string]struct{})
	for _, name := range roles {
		perms, ok := s.permCache.Get(ctx, name)
		if !ok {
			var err error
			perms, err = s.repo.PermissionNamesForRole(ctx, name)
			if err != nil {
				s.logger.Error("failed to resolve role permissions", "error", err, "role", name)
				return nil, err
			}
			s.permCache.Set(ctx, name, perms)
		}
		for _, p := range perms {
			set[p] = struct{}{}
		}
	}

	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish event", "event_type", event.EventType(), "error", err)
	}
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func missingIDs(want []int64, found []*roleDatamodel.Permission) []int64 {
	have := make(map[int64]bool, len(found))
	for _, p := range found {
		have[p.ID] = true
	}
	var missing []int64
	for _, id := range want {
		if !have[id] {
			missing = append(missing, id)
		}
	}
	return missing
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ", ")
}
