package widget

import "time"

type Widget struct {
	ID             string    `gorm:"primaryKey;type:uuid"`
	Type           string    `gorm:"column:type;not null"`
	Title          string    `gorm:"column:title"`
	Settings       string    `gorm:"column:settings;type:text"`
	DisplayOptions string    `gorm:"column:display_options;type:text"`
	ColumnPosition int       `gorm:"column:column_position;not null"`
	Order          int       `gorm:"column:order;not null"`
	Width          int       `gorm:"column:width"`
	Height         int       `gorm:"column:height"`
	PageID         *string   `gorm:"column:page_id;index"`
	IsActive       bool      `gorm:"column:is_active;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Widget) TableName() string {
	return "cms_layout"
}
