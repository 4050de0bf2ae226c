package role_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"testing"

	"github.com/frahmantamala/church-cms/internal"
	roleDatamodel "github.com/frahmantamala/church-cms/internal/core/datamodel/role"
	"github.com/frahmantamala/church-cms/internal/role"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestRoleService(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Role Service Suite")
}

// MockRepository implements role.RepositoryAPI in memory.
type MockRepository struct {
	roles       map[int64]*roleDatamodel.Role
	permissions map[int64]*roleDatamodel.Permission
	grants      map[int64][]int64
	holders     map[string]int64
	nextID      int64
	failError   error
}

func NewMockRepository() *MockRepository {
	return &MockRepository{
		roles:       make(map[int64]*roleDatamodel.Role),
		permissions: make(map[int64]*roleDatamodel.Permission),
		grants:      make(map[int64][]int64),
		holders:     make(map[string]int64),
		nextID:      1,
	}
}

func (m *MockRepository) addRole(name string, level int, system bool) *roleDatamodel.Role {
	r := &roleDatamodel.Role{ID: m.nextID, Name: name, DisplayName: name, Level: level, IsSystem: system, IsActive: true}
	m.roles[r.ID] = r
	m.nextID++
	return r
}

func (m *MockRepository) addPermission(id int64, name, category string) {
	m.permissions[id] = &roleDatamodel.Permission{ID: id, Name: name, DisplayName: name, Category: category}
}

func (m *MockRepository) ListRoles(ctx context.Context) ([]*roleDatamodel.Role, error) {
	if m.failError != nil {
		return nil, m.failError
	}
	var out []*roleDatamodel.Role
	for _, r := range m.roles {
		c := *r
		out = append(out, &c)
	}
	return out, nil
}

func (m *MockRepository) GetByID(ctx context.Context, id int64) (*roleDatamodel.Role, error) {
	if m.failError != nil {
		return nil, m.failError
	}
	r, ok := m.roles[id]
	if !ok {
		return nil, nil
	}
	c := *r
	return &c, nil
}

func (m *MockRepository) GetByName(ctx context.Context, name string) (*roleDatamodel.Role, error) {
	for _, r := range m.roles {
		if r.Name == name {
			c := *r
			return &c, nil
		}
	}
	return nil, nil
}

func (m *MockRepository) GetByNames(ctx context.Context, names []string) ([]*roleDatamodel.Role, error) {
	var out []*roleDatamodel.Role
	for _, n := range names {
		if r, _ := m.GetByName(ctx, n); r != nil {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MockRepository) Create(ctx context.Context, r *roleDatamodel.Role) error {
	if m.failError != nil {
		return m.failError
	}
	r.ID = m.nextID
	m.nextID++
	c := *r
	m.roles[r.ID] = &c
	return nil
}

func (m *MockRepository) Update(ctx context.Context, r *roleDatamodel.Role, previousName string) error {
	c := *r
	m.roles[r.ID] = &c
	if previousName != r.Name {
		m.holders[r.Name] = m.holders[previousName]
		delete(m.holders, previousName)
	}
	return nil
}

func (m *MockRepository) Delete(ctx context.Context, id int64) error {
	delete(m.roles, id)
	delete(m.grants, id)
	return nil
}

func (m *MockRepository) CountUsersWithRole(ctx context.Context, name string) (int64, error) {
	return m.holders[name], nil
}

func (m *MockRepository) ListPermissions(ctx context.Context) ([]*roleDatamodel.Permission, error) {
	var out []*roleDatamodel.Permission
	for _, p := range m.permissions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MockRepository) GetPermissionsByIDs(ctx context.Context, ids []int64) ([]*roleDatamodel.Permission, error) {
	var out []*roleDatamodel.Permission
	for _, id := range ids {
		if p, ok := m.permissions[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MockRepository) GetRolePermissions(ctx context.Context, roleID int64) ([]*roleDatamodel.Permission, error) {
	var out []*roleDatamodel.Permission
	for _, id := range m.grants[roleID] {
		out = append(out, m.permissions[id])
	}
	return out, nil
}

func (m *MockRepository) ReplaceRolePermissions(ctx context.Context, roleID int64, ids []int64) error {
	if m.failError != nil {
		return m.failError
	}
	m.grants[roleID] = append([]int64(nil), ids...)
	return nil
}

func (m *MockRepository) PermissionNamesForRole(ctx context.Context, name string) ([]string, error) {
	r, _ := m.GetByName(ctx, name)
	if r == nil || !r.IsActive {
		return nil, nil
	}
	var names []string
	for _, id := range m.grants[r.ID] {
		names = append(names, m.permissions[id].Name)
	}
	return names, nil
}

type recordingCache struct {
	data        map[string][]string
	invalidated []string
}

func (c *recordingCache) Get(ctx context.Context, role string) ([]string, bool) {
	v, ok := c.data[role]
	return v, ok
}

func (c *recordingCache) Set(ctx context.Context, role string, perms []string) {
	c.data[role] = perms
}

func (c *recordingCache) Invalidate(ctx context.Context, roles ...string) {
	for _, r := range roles {
		delete(c.data, r)
		c.invalidated = append(c.invalidated, r)
	}
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }
func boolPtr(v bool) *bool    { return &v }
func permIDs(perms []*role.Permission) []int64 {
	ids := make([]int64, 0, len(perms))
	for _, p := range perms {
		ids = append(ids, p.ID)
	}
	return ids
}

var _ = Describe("Role Service", func() {
	var (
		ctx       context.Context
		repo      *MockRepository
		permCache *recordingCache
		service   *role.Service
		admin     *roleDatamodel.Role
		member    *roleDatamodel.Role
		staff     *roleDatamodel.Role
	)

	BeforeEach(func() {
		ctx = context.Background()
		repo = NewMockRepository()
		admin = repo.addRole("admin", 100, true)
		staff = repo.addRole("staff", 50, true)
		member = repo.addRole("member", 10, true)
		repo.addPermission(1, "roles.read", "roles")
		repo.addPermission(2, "roles.manage", "roles")
		repo.addPermission(3, "board.write", "board")
		repo.addPermission(4, "audit.read", "audit")
		permCache = &recordingCache{data: map[string][]string{}}
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		service = role.NewService(repo, role.NewCatalog(internal.RBACConfig{}), permCache, nil, logger)
	})

	Describe("ListRoles", func() {
		It("orders roles by level descending", func() {
			_, err := service.CreateRole(ctx, "actor", role.CreateRoleDTO{Name: "editor", DisplayName: "Editor", Level: intPtr(5)})
			Expect(err).NotTo(HaveOccurred())

			roles, err := service.ListRoles(ctx)
			Expect(err).NotTo(HaveOccurred())

			var names []string
			for _, r := range roles {
				names = append(names, r.Name)
			}
			Expect(names).To(Equal([]string{"admin", "staff", "member", "editor"}))
		})

		It("propagates repository failures", func() {
			repo.failError = errors.New("db down")
			_, err := service.ListRoles(ctx)
			Expect(err).To(MatchError("db down"))
		})
	})

	Describe("CreateRole", func() {
		It("creates a non-system, active role", func() {
			created, err := service.CreateRole(ctx, "actor", role.CreateRoleDTO{
				Name: "editor", DisplayName: "Editor", Description: "  edits  ", Level: intPtr(5),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(created.ID).To(BeNumerically(">", 0))
			Expect(created.IsSystem).To(BeFalse())
			Expect(created.IsActive).To(BeTrue())
			Expect(created.Description).To(Equal("edits"))
		})

		It("rejects a duplicate name with a conflict", func() {
			_, err := service.CreateRole(ctx, "actor", role.CreateRoleDTO{Name: "member", DisplayName: "Dup", Level: intPtr(1)})
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.StatusCode).To(Equal(409))
		})

		It("requires name, display_name and level", func() {
			_, err := service.CreateRole(ctx, "actor", role.CreateRoleDTO{})
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.StatusCode).To(Equal(400))
			details := appErr.Details.(internal.ValidationErrors)
			var fields []string
			for _, e := range details.Errors {
				fields = append(fields, e.Field)
			}
			Expect(fields).To(ContainElements("name", "display_name", "level"))
		})

		It("rejects malformed machine names", func() {
			_, err := service.CreateRole(ctx, "actor", role.CreateRoleDTO{Name: "Bad Name", DisplayName: "x", Level: intPtr(1)})
			appErr, _ := internal.IsAppError(err)
			Expect(appErr.StatusCode).To(Equal(400))
		})
	})

	Describe("UpdateRole", func() {
		var editor *role.Role

		BeforeEach(func() {
			var err error
			editor, err = service.CreateRole(ctx, "actor", role.CreateRoleDTO{Name: "editor", DisplayName: "Editor", Level: intPtr(5)})
			Expect(err).NotTo(HaveOccurred())
		})

		It("returns not found for unknown ids", func() {
			_, err := service.UpdateRole(ctx, "actor", 999, role.UpdateRoleDTO{DisplayName: strPtr("x")})
			Expect(errors.Is(err, internal.ErrRoleNotFound)).To(BeTrue())
		})

		It("updates a custom role", func() {
			updated, err := service.UpdateRole(ctx, "actor", editor.ID, role.UpdateRoleDTO{
				DisplayName: strPtr("Senior Editor"), Level: intPtr(7),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.DisplayName).To(Equal("Senior Editor"))
			Expect(updated.Level).To(Equal(7))
		})

		It("rejects renaming onto another role's name", func() {
			_, err := service.UpdateRole(ctx, "actor", editor.ID, role.UpdateRoleDTO{Name: strPtr("staff")})
			Expect(errors.Is(err, internal.ErrRoleNameTaken)).To(BeTrue())
		})

		It("invalidates cached permissions of the old and new names on rename", func() {
			_, err := service.UpdateRole(ctx, "actor", editor.ID, role.UpdateRoleDTO{Name: strPtr("writer")})
			Expect(err).NotTo(HaveOccurred())
			Expect(permCache.invalidated).To(ContainElements("editor", "writer"))
		})

		It("forbids any field change on a system role", func() {
			for _, dto := range []role.UpdateRoleDTO{
				{Name: strPtr("owner")},
				{DisplayName: strPtr("Boss")},
				{Description: strPtr("changed")},
				{Level: intPtr(1)},
			} {
				_, err := service.UpdateRole(ctx, "actor", admin.ID, dto)
				Expect(errors.Is(err, internal.ErrSystemRole)).To(BeTrue())
			}
		})

		It("allows toggling activation of a system role", func() {
			updated, err := service.UpdateRole(ctx, "actor", staff.ID, role.UpdateRoleDTO{IsActive: boolPtr(false)})
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.IsActive).To(BeFalse())
		})

		It("never deactivates admin or member", func() {
			_, err := service.UpdateRole(ctx, "actor", admin.ID, role.UpdateRoleDTO{IsActive: boolPtr(false)})
			Expect(errors.Is(err, internal.ErrSystemRole)).To(BeTrue())
			_, err = service.UpdateRole(ctx, "actor", member.ID, role.UpdateRoleDTO{IsActive: boolPtr(false)})
			Expect(errors.Is(err, internal.ErrSystemRole)).To(BeTrue())
		})
	})

	Describe("DeleteRole", func() {
		It("forbids deleting system roles", func() {
			err := service.DeleteRole(ctx, "actor", member.ID)
			appErr, _ := internal.IsAppError(err)
			Expect(appErr.StatusCode).To(Equal(403))
		})

		It("refuses to delete a role still held by users", func() {
			editor, _ := service.CreateRole(ctx, "actor", role.CreateRoleDTO{Name: "editor", DisplayName: "Editor", Level: intPtr(5)})
			repo.holders["editor"] = 2

			err := service.DeleteRole(ctx, "actor", editor.ID)
			Expect(errors.Is(err, internal.ErrRoleInUse)).To(BeTrue())
		})

		It("deletes an unused custom role", func() {
			editor, _ := service.CreateRole(ctx, "actor", role.CreateRoleDTO{Name: "editor", DisplayName: "Editor", Level: intPtr(5)})

			Expect(service.DeleteRole(ctx, "actor", editor.ID)).To(Succeed())
			_, err := service.GetRole(ctx, editor.ID)
			Expect(errors.Is(err, internal.ErrRoleNotFound)).To(BeTrue())
		})
	})

	Describe("SetRolePermissions", func() {
		It("returns exactly the set that was stored", func() {
			_, err := service.SetRolePermissions(ctx, "actor", staff.ID, []int64{3, 1})
			Expect(err).NotTo(HaveOccurred())

			perms, err := service.GetRolePermissions(ctx, staff.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(permIDs(perms)).To(ConsistOf(int64(1), int64(3)))
		})

		It("clears every grant for an empty list", func() {
			_, _ = service.SetRolePermissions(ctx, "actor", staff.ID, []int64{1, 2})

			perms, err := service.SetRolePermissions(ctx, "actor", staff.ID, []int64{})
			Expect(err).NotTo(HaveOccurred())
			Expect(perms).To(BeEmpty())
		})

		It("collapses duplicate ids", func() {
			perms, err := service.SetRolePermissions(ctx, "actor", staff.ID, []int64{2, 2, 2})
			Expect(err).NotTo(HaveOccurred())
			Expect(permIDs(perms)).To(Equal([]int64{2}))
		})

		It("rejects unknown permission ids without touching grants", func() {
			_, _ = service.SetRolePermissions(ctx, "actor", staff.ID, []int64{1})

			_, err := service.SetRolePermissions(ctx, "actor", staff.ID, []int64{1, 42})
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.StatusCode).To(Equal(400))
			Expect(appErr.GetDetailedMessage()).To(ContainSubstring("42"))
			Expect(repo.grants[staff.ID]).To(Equal([]int64{1}))
		})

		It("invalidates the cached permissions of the role", func() {
			permCache.data["staff"] = []string{"stale"}
			_, err := service.SetRolePermissions(ctx, "actor", staff.ID, []int64{4})
			Expect(err).NotTo(HaveOccurred())
			Expect(permCache.data).NotTo(HaveKey("staff"))
		})

		It("returns not found for an unknown role", func() {
			_, err := service.SetRolePermissions(ctx, "actor", 404, []int64{1})
			Expect(errors.Is(err, internal.ErrRoleNotFound)).To(BeTrue())
		})
	})

	Describe("ListPermissions", func() {
		It("groups permissions in catalog category order", func() {
			groups, err := service.ListPermissions(ctx)
			Expect(err).NotTo(HaveOccurred())

			var cats []string
			for _, g := range groups {
				cats = append(cats, g.Category)
			}
			Expect(cats).To(Equal([]string{"roles", "audit", "board"}))
			Expect(groups[0].Permissions).To(HaveLen(2))
		})
	})

	Describe("ResolvePermissions", func() {
		It("unions the grants of every role and caches them", func() {
			_, _ = service.SetRolePermissions(ctx, "actor", staff.ID, []int64{1, 4})
			_, _ = service.SetRolePermissions(ctx, "actor", member.ID, []int64{3})

			perms, err := service.ResolvePermissions(ctx, []string{"member", "staff"})
			Expect(err).NotTo(HaveOccurred())
			Expect(perms).To(Equal([]string{"audit.read", "board.write", "roles.read"}))
			Expect(permCache.data).To(HaveKey("staff"))
			Expect(permCache.data).To(HaveKey("member"))
		})

		It("serves cached entries without the repository", func() {
			permCache.data["ghost"] = []string{"cms.manage"}
			perms, err := service.ResolvePermissions(ctx, []string{"ghost"})
			Expect(err).NotTo(HaveOccurred())
			Expect(perms).To(Equal([]string{"cms.manage"}))
		})
	})
})
