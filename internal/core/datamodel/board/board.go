package board

import "time"

type Post struct {
	ID          string     `gorm:"primaryKey;type:uuid"`
	Title       string     `gorm:"column:title;not null"`
	Content     string     `gorm:"column:content;type:text"`
	PageID      *string    `gorm:"column:page_id;index"`
	CategoryID  *string    `gorm:"column:category_id"`
	UserID      string     `gorm:"column:user_id;index;not null"`
	Status      string     `gorm:"column:status;index;not null"`
	Files       *string    `gorm:"column:files;type:text"`
	Tags        *string    `gorm:"column:tags;type:text"`
	Thumbnail   *string    `gorm:"column:thumbnail"`
	Views       int        `gorm:"column:views;not null"`
	PublishedAt *time.Time `gorm:"column:published_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (Post) TableName() string {
	return "board_posts"
}

type Comment struct {
	ID        string    `gorm:"primaryKey;type:uuid"`
	PostID    string    `gorm:"column:post_id;index;not null"`
	UserID    string    `gorm:"column:user_id;not null"`
	Content   string    `gorm:"column:content;type:text;not null"`
	ParentID  *string   `gorm:"column:parent_id;index"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Comment) TableName() string {
	return "board_comments"
}

type Like struct {
	PostID    string    `gorm:"column:post_id;primaryKey"`
	UserID    string    `gorm:"column:user_id;primaryKey"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Like) TableName() string {
	return "board_likes"
}

// PostCount is one row of a grouped count keyed by post.
type PostCount struct {
	PostID string `gorm:"column:post_id"`
	Count  int64  `gorm:"column:count"`
}
