package role

import (
	"sort"

	"github.com/frahmantamala/church-cms/internal"
)

// Catalog is the static RBAC reference data loaded once at startup.
// It is never mutated after NewCatalog returns.
type Catalog struct {
	systemRoles   []internal.SystemRoleConfig
	systemByName  map[string]internal.SystemRoleConfig
	categories    []internal.PermissionCategoryConfig
	categoryIndex map[string]int
	permCategory  map[string]string
}

// roles that must stay active for the service to remain usable
var undeactivatable = map[string]bool{internal.AdminRole: true, DefaultRole: true}

func DefaultRBACConfig() internal.RBACConfig {
	return internal.RBACConfig{
		SystemRoles: []internal.SystemRoleConfig{
			{Name: internal.AdminRole, DisplayName: "관리자", Description: "Full access to every feature", Level: 100},
			{Name: "pastor", DisplayName: "목회자", Description: "Pastoral staff", Level: 80,
				Permissions: []string{"roles.read", "users.read", "users.manage", "audit.read", "cms.manage", "board.write", "board.manage"}},
			{Name: "staff", DisplayName: "사역자", Description: "Church staff", Level: 50,
				Permissions: []string{"users.read", "cms.manage", "board.write", "board.manage"}},
			{Name: DefaultRole, DisplayName: "성도", Description: "Default role for every user", Level: 10,
				Permissions: []string{"board.write"}},
		},
		PermissionCategories: []internal.PermissionCategoryConfig{
			{Name: "roles", DisplayName: "역할 관리", Permissions: []internal.PermissionConfig{
				{Name: "roles.read", DisplayName: "역할 조회", Description: "View roles and their permissions"},
				{Name: "roles.manage", DisplayName: "역할 관리", Description: "Create, edit and delete roles"},
			}},
			{Name: "users", DisplayName: "사용자 관리", Permissions: []internal.PermissionConfig{
				{Name: "users.read", DisplayName: "사용자 조회", Description: "View user role assignments"},
				{Name: "users.manage", DisplayName: "사용자 역할 관리", Description: "Change user role assignments"},
			}},
			{Name: "audit", DisplayName: "감사 로그", Permissions: []internal.PermissionConfig{
				{Name: "audit.read", DisplayName: "감사 로그 조회", Description: "View and export activity logs"},
			}},
			{Name: "cms", DisplayName: "콘텐츠 관리", Permissions: []internal.PermissionConfig{
				{Name: "cms.manage", DisplayName: "레이아웃 관리", Description: "Edit page widgets"},
			}},
			{Name: "board", DisplayName: "게시판", Permissions: []internal.PermissionConfig{
				{Name: "board.write", DisplayName: "게시글 작성", Description: "Write posts and comments"},
				{Name: "board.manage", DisplayName: "게시판 관리", Description: "Publish and moderate posts"},
			}},
		},
	}
}

// NewCatalog copies cfg; an empty section falls back to the defaults.
func NewCatalog(cfg internal.RBACConfig) *Catalog {
	def := DefaultRBACConfig()
	if len(cfg.SystemRoles) == 0 {
		cfg.SystemRoles = def.SystemRoles
	}
	if len(cfg.PermissionCategories) == 0 {
		cfg.PermissionCategories = def.PermissionCategories
	}

	c := &Catalog{
		systemByName:  make(map[string]internal.SystemRoleConfig),
		categoryIndex: make(map[string]int),
		permCategory:  make(map[string]string),
	}
	for _, r := range cfg.SystemRoles {
		r.Permissions = append([]string(nil), r.Permissions...)
		c.systemRoles = append(c.systemRoles, r)
		c.systemByName[r.Name] = r
	}
	sort.SliceStable(c.systemRoles, func(i, j int) bool {
		return c.systemRoles[i].Level > c.systemRoles[j].Level
	})
	for i, cat := range cfg.PermissionCategories {
		cat.Permissions = append([]internal.PermissionConfig(nil), cat.Permissions...)
		c.categories = append(c.categories, cat)
		c.categoryIndex[cat.Name] = i
		for _, p := range cat.Permissions {
			c.permCategory[p.Name] = cat.Name
		}
	}
	return c
}

func (c *Catalog) SystemRoles() []internal.SystemRoleConfig {
	return append([]internal.SystemRoleConfig(nil), c.systemRoles...)
}

func (c *Catalog) IsSystemRole(name string) bool {
	_, ok := c.systemByName[name]
	return ok
}

// CanDeactivate reports whether a role may be switched off.
func (c *Catalog) CanDeactivate(name string) bool {
	return !undeactivatable[name]
}

func (c *Catalog) Categories() []internal.PermissionCategoryConfig {
	return append([]internal.PermissionCategoryConfig(nil), c.categories...)
}

func (c *Catalog) CategoryOf(permission string) (string, bool) {
	cat, ok := c.permCategory[permission]
	return cat, ok
}

func (c *Catalog) CategoryDisplayName(name string) string {
	if i, ok := c.categoryIndex[name]; ok {
		return c.categories[i].DisplayName
	}
	return name
}

// categoryRank orders known categories first, in configuration order.
func (c *Catalog) categoryRank(name string) int {
	if i, ok := c.categoryIndex[name]; ok {
		return i
	}
	return len(c.categories)
}

// AllPermissionNames lists every permission defined by the catalog.
func (c *Catalog) AllPermissionNames() []string {
	var names []string
	for _, cat := range c.categories {
		for _, p := range cat.Permissions {
			names = append(names, p.Name)
		}
	}
	return names
}
