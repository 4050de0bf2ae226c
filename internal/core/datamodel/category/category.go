package category

import "time"

// BoardCategory is a tab within one board page.
type BoardCategory struct {
	ID          string    `gorm:"primaryKey;type:uuid"`
	PageID      string    `gorm:"column:page_id;index;not null"`
	Name        string    `gorm:"column:name;not null"`
	Description string    `gorm:"column:description"`
	OrderNum    int       `gorm:"column:order_num;not null"`
	IsActive    bool      `gorm:"column:is_active;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (BoardCategory) TableName() string {
	return "board_categories"
}
