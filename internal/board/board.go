package board

import (
	"encoding/json"
	"strings"
	"time"

	boardDatamodel "github.com/frahmantamala/church-cms/internal/core/datamodel/board"
	"github.com/frahmantamala/church-cms/internal/storage"
)

const (
	StatusDraft     = "draft"
	StatusPublished = "published"

	// TypeGallery lists only posts that carry a thumbnail.
	TypeGallery = "gallery"
)

type Post struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	Content       string         `json:"content"`
	PageID        *string        `json:"page_id"`
	CategoryID    *string        `json:"category_id,omitempty"`
	UserID        string         `json:"user_id"`
	Author        string         `json:"author"`
	Status        string         `json:"status"`
	Attachments   []storage.File `json:"attachments"`
	Tags          []string       `json:"tags"`
	Thumbnail     *string        `json:"thumbnail,omitempty"`
	Views         int            `json:"views"`
	LikesCount    int64          `json:"likes_count"`
	CommentsCount int64          `json:"comments_count"`
	MenuURL       string         `json:"menu_url,omitempty"`
	PublishedAt   *time.Time     `json:"published_at"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

func (p *Post) IsPublished() bool {
	return p.Status == StatusPublished
}

// PostLink points at a neighbouring post.
type PostLink struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	PublishedAt *time.Time `json:"published_at"`
}

type PostDetail struct {
	*Post
	Prev *PostLink `json:"prev"`
	Next *PostLink `json:"next"`
}

type Comment struct {
	ID        string     `json:"id"`
	PostID    string     `json:"post_id"`
	UserID    string     `json:"user_id"`
	Author    string     `json:"author"`
	Content   string     `json:"content"`
	ParentID  *string    `json:"parent_id"`
	CreatedAt time.Time  `json:"created_at"`
	Replies   []*Comment `json:"replies"`
}

func ToDataModel(p *Post) *boardDatamodel.Post {
	dm := &boardDatamodel.Post{
		ID:          p.ID,
		Title:       p.Title,
		Content:     p.Content,
		PageID:      p.PageID,
		CategoryID:  p.CategoryID,
		UserID:      p.UserID,
		Status:      p.Status,
		Thumbnail:   p.Thumbnail,
		Views:       p.Views,
		PublishedAt: p.PublishedAt,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if len(p.Attachments) > 0 {
		raw, _ := json.Marshal(p.Attachments)
		files := string(raw)
		dm.Files = &files
	}
	if len(p.Tags) > 0 {
		raw, _ := json.Marshal(p.Tags)
		tags := string(raw)
		dm.Tags = &tags
	}
	return dm
}

// FromDataModel maps a row without its attachments and tags; those are
// decoded separately because a malformed column must not fail the read.
func FromDataModel(dm *boardDatamodel.Post) *Post {
	return &Post{
		ID:          dm.ID,
		Title:       dm.Title,
		Content:     dm.Content,
		PageID:      dm.PageID,
		CategoryID:  dm.CategoryID,
		UserID:      dm.UserID,
		Status:      dm.Status,
		Attachments: []storage.File{},
		Tags:        []string{},
		Thumbnail:   dm.Thumbnail,
		Views:       dm.Views,
		PublishedAt: dm.PublishedAt,
		CreatedAt:   dm.CreatedAt,
		UpdatedAt:   dm.UpdatedAt,
	}
}

func linkFromDataModel(dm *boardDatamodel.Post) *PostLink {
	if dm == nil {
		return nil
	}
	return &PostLink{ID: dm.ID, Title: dm.Title, PublishedAt: dm.PublishedAt}
}

func CommentFromDataModel(dm *boardDatamodel.Comment) *Comment {
	return &Comment{
		ID:        dm.ID,
		PostID:    dm.PostID,
		UserID:    dm.UserID,
		Content:   dm.Content,
		ParentID:  dm.ParentID,
		CreatedAt: dm.CreatedAt,
		Replies:   []*Comment{},
	}
}

// ParseAttachments decodes the files column. An empty column is no attachments.
func ParseAttachments(raw *string) ([]storage.File, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return []storage.File{}, nil
	}
	var files []storage.File
	if err := json.Unmarshal([]byte(*raw), &files); err != nil {
		return []storage.File{}, err
	}
	if files == nil {
		files = []storage.File{}
	}
	return files, nil
}

// ParseTags decodes the tags column, accepting a JSON array or a comma separated list.
func ParseTags(raw *string) ([]string, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return []string{}, nil
	}
	value := strings.TrimSpace(*raw)
	if !strings.HasPrefix(value, "[") {
		var tags []string
		for _, t := range strings.Split(value, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
		if tags == nil {
			tags = []string{}
		}
		return tags, nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(value), &tags); err != nil {
		return []string{}, err
	}
	if tags == nil {
		tags = []string{}
	}
	return tags, nil
}

// BuildThread nests replies under their parents. Comments whose parent is
// missing are kept at the top level. Order within each level is preserved.
func BuildThread(comments []*Comment) []*Comment {
	byID := make(map[string]*Comment, len(comments))
	for _, c := range comments {
		byID[c.ID] = c
	}

	roots := make([]*Comment, 0, len(comments))
	for _, c := range comments {
		if c.ParentID != nil {
			if parent, ok := byID[*c.ParentID]; ok && parent != c {
				parent.Replies = append(parent.Replies, c)
				continue
			}
		}
		roots = append(roots, c)
	}
	return roots
}
