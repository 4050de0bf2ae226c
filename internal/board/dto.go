package board

import (
	errors "github.com/frahmantamala/church-cms/internal"
	"github.com/frahmantamala/church-cms/internal/core/common/validation"
	"github.com/frahmantamala/church-cms/internal/storage"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// ListQuery selects the published posts of one board page.
type ListQuery struct {
	PageID string
	Limit  int
	Type   string
}

type CreatePostDTO struct {
	Title      string         `json:"title"`
	Content    string         `json:"content"`
	PageID     *string        `json:"page_id,omitempty"`
	BoardID    *string        `json:"board_id,omitempty"`
	CategoryID *string        `json:"category_id,omitempty"`
	Files      []storage.File `json:"files,omitempty"`
	Tags       []string       `json:"tags,omitempty"`
	Thumbnail  *string        `json:"thumbnail,omitempty"`
	Status     string         `json:"status,omitempty"`
}

// Page returns page_id, falling back to its board_id alias.
func (d CreatePostDTO) Page() *string {
	if d.PageID != nil && *d.PageID != "" {
		return d.PageID
	}
	return d.BoardID
}

func (d CreatePostDTO) Validate() *errors.AppError {
	validator := validation.NewValidator()
	validator.Field("title", d.Title).Required().MaxLength(200)
	validator.Field("page_id", d.Page()).Required()
	if d.Status != "" {
		validator.Field("status", d.Status).OneOf(StatusDraft, StatusPublished)
	}
	return validator.Validate()
}

type CreateCommentDTO struct {
	Content  string  `json:"content"`
	ParentID *string `json:"parent_id,omitempty"`
}

func (d CreateCommentDTO) Validate() *errors.AppError {
	validator := validation.NewValidator()
	validator.Field("content", d.Content).Required().MaxLength(2000)
	return validator.Validate()
}

type PostsResponse struct {
	Posts []*Post `json:"posts"`
}

type CommentsResponse struct {
	Comments []*Comment `json:"comments"`
	Total    int        `json:"total"`
}
