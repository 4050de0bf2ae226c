package menu

type Menu struct {
	ID       string  `gorm:"primaryKey;type:uuid"`
	Title    string  `gorm:"column:title;not null"`
	URL      string  `gorm:"column:url"`
	ParentID *string `gorm:"column:parent_id;index"`
	OrderNum int     `gorm:"column:order_num;not null"`
	PageID   *string `gorm:"column:page_id;index"`
	IsActive bool    `gorm:"column:is_active;not null"`
}

func (Menu) TableName() string {
	return "cms_menus"
}
