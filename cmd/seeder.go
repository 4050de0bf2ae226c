package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/frahmantamala/church-cms/internal"
	roleDatamodel "github.com/frahmantamala/church-cms/internal/core/datamodel/role"
	userDatamodel "github.com/frahmantamala/church-cms/internal/core/datamodel/user"
	"github.com/frahmantamala/church-cms/internal/role"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed roles, permissions and the first administrator",
	Long:  `Seed the system roles, the permission catalog and an administrator account. Safe to run repeatedly.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		db, gdb, err := openDatabase(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer db.Close()

		ctx := context.Background()
		catalog := role.NewCatalog(cfg.RBAC)

		err = gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if clearData {
				if err := tx.Exec("DELETE FROM role_permissions").Error; err != nil {
					return fmt.Errorf("clear role grants: %w", err)
				}
				if err := tx.Exec("DELETE FROM user_roles").Error; err != nil {
					return fmt.Errorf("clear memberships: %w", err)
				}
				fmt.Println("Cleared role grants and memberships")
			}
			if err := seedPermissions(tx, catalog); err != nil {
				return err
			}
			return seedRoles(tx, catalog)
		})
		if err != nil {
			log.Fatalf("failed to seed roles: %v", err)
		}

		email := envOr("SEED_ADMIN_EMAIL", "admin@church.local")
		password := envOr("SEED_ADMIN_PASSWORD", "changeme123")
		if err := seedAdmin(gdb.WithContext(ctx), email, password, cfg.Security.BCryptCost); err != nil {
			log.Fatalf("failed to seed admin user: %v", err)
		}
	},
}

func seedPermissions(tx *gorm.DB, catalog *role.Catalog) error {
	var rows []roleDatamodel.Permission
	for _, cat := range catalog.Categories() {
		for _, p := range cat.Permissions {
			rows = append(rows, roleDatamodel.Permission{
				Name:        p.Name,
				DisplayName: p.DisplayName,
				Description: p.Description,
				Category:    cat.Name,
			})
		}
	}
	if len(rows) == 0 {
		return nil
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"display_name", "description", "category"}),
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("seed permissions: %w", err)
	}
	fmt.Printf("Seeded %d permissions\n", len(rows))
	return nil
}

func seedRoles(tx *gorm.DB, catalog *role.Catalog) error {
	for _, sr := range catalog.SystemRoles() {
		row := roleDatamodel.Role{
			Name:        sr.Name,
			DisplayName: sr.DisplayName,
			Description: sr.Description,
			Level:       sr.Level,
			IsSystem:    true,
			IsActive:    true,
		}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"display_name", "description", "level", "is_system"}),
		}).Create(&row).Error
		if err != nil {
			return fmt.Errorf("seed role %s: %w", sr.Name, err)
		}
		if err := tx.Where("name = ?", sr.Name).First(&row).Error; err != nil {
			return fmt.Errorf("reload role %s: %w", sr.Name, err)
		}

		grants := sr.Permissions
		if sr.Name == internal.AdminRole {
			grants = catalog.AllPermissionNames()
		}
		if len(grants) == 0 {
			continue
		}

		var permIDs []int64
		if err := tx.Model(&roleDatamodel.Permission{}).Where("name IN ?", grants).Pluck("id", &permIDs).Error; err != nil {
			return fmt.Errorf("load permissions for %s: %w", sr.Name, err)
		}
		links := make([]roleDatamodel.RolePermission, 0, len(permIDs))
		for _, id := range permIDs {
			links = append(links, roleDatamodel.RolePermission{RoleID: row.ID, PermissionID: id})
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&links).Error; err != nil {
			return fmt.Errorf("grant permissions to %s: %w", sr.Name, err)
		}
		fmt.Printf("Seeded role %s with %d permissions\n", sr.Name, len(links))
	}
	return nil
}

func seedAdmin(db *gorm.DB, email, password string, cost int) error {
	var existing userDatamodel.User
	err := db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		fmt.Println("admin user already exists; will ensure role membership")
		return ensureAdminRole(db, existing.ID)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return err
	}

	admin := userDatamodel.User{
		ID:           uuid.NewString(),
		Username:     "admin",
		Email:        email,
		PasswordHash: string(hash),
		Role:         internal.AdminRole,
		IsActive:     true,
		IsApproved:   true,
	}
	if err := db.Create(&admin).Error; err != nil {
		return err
	}
	fmt.Println("Seeded admin user:", email)
	return ensureAdminRole(db, admin.ID)
}

func ensureAdminRole(db *gorm.DB, userID string) error {
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&userDatamodel.UserRole{
		UserID:   userID,
		RoleName: internal.AdminRole,
		Position: 0,
	}).Error
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
