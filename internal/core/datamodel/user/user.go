package user

import "time"

type User struct {
	ID           string     `gorm:"primaryKey;type:uuid"`
	Username     string     `gorm:"column:username;uniqueIndex;not null"`
	Nickname     *string    `gorm:"column:nickname"`
	Email        string     `gorm:"column:email;uniqueIndex;not null"`
	PasswordHash string     `gorm:"column:password_hash;not null"`
	Role         string     `gorm:"column:role;index;not null"`
	IsActive     bool       `gorm:"column:is_active;not null"`
	IsApproved   bool       `gorm:"column:is_approved;not null"`
	LastLogin    *time.Time `gorm:"column:last_login"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (User) TableName() string {
	return "users"
}

// UserRole is one entry of a user's ordered role list; position 0 is the primary role.
type UserRole struct {
	UserID    string    `gorm:"column:user_id;primaryKey"`
	RoleName  string    `gorm:"column:role_name;primaryKey;index"`
	Position  int       `gorm:"column:position;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (UserRole) TableName() string {
	return "user_roles"
}

type UserRoleHistory struct {
	ID        string    `gorm:"primaryKey;type:uuid"`
	UserID    string    `gorm:"column:user_id;index;not null"`
	OldRole   string    `gorm:"column:old_role"`
	NewRole   string    `gorm:"column:new_role;not null"`
	Reason    *string   `gorm:"column:reason"`
	ChangedBy *string   `gorm:"column:changed_by"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (UserRoleHistory) TableName() string {
	return "user_role_history"
}
