package postgres

import (
	"context"
	"errors"

	"github.com/frahmantamala/church-cms/internal/board"
	boardDatamodel "github.com/frahmantamala/church-cms/internal/core/datamodel/board"
	"github.com/frahmantamala/church-cms/internal/core/retry"
	"gorm.io/gorm"
)

const sortKey = "COALESCE(published_at, created_at)"

type BoardRepository struct {
	db     *gorm.DB
	policy *retry.Policy
}

func NewBoardRepository(db *gorm.DB, policy *retry.Policy) board.RepositoryAPI {
	return &BoardRepository{db: db, policy: policy}
}

func (r *BoardRepository) ListPublished(ctx context.Context, pageID string, limit int, withThumbnail bool) ([]*boardDatamodel.Post, error) {
	return retry.Value(ctx, r.policy, "posts.list", func(ctx context.Context) ([]*boardDatamodel.Post, error) {
		var posts []*boardDatamodel.Post
		q := r.db.WithContext(ctx).
			Where("page_id = ? AND status = ?", pageID, board.StatusPublished)
		if withThumbnail {
			q = q.Where("thumbnail IS NOT NULL AND thumbnail <> ''")
		}
		err := q.Order(sortKey + " DESC").
			Order("id ASC").
			Limit(limit).
			Find(&posts).Error
		return posts, err
	})
}

func (r *BoardRepository) GetByID(ctx context.Context, id string) (*boardDatamodel.Post, error) {
	return retry.Value(ctx, r.policy, "posts.get", func(ctx context.Context) (*boardDatamodel.Post, error) {
		var post boardDatamodel.Post
		if err := r.db.WithContext(ctx).Where("id = ?", id).First(&post).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil
			}
			return nil, err
		}
		return &post, nil
	})
}

// Neighbours walks the list order (sort key descending, id ascending) one
// step in each direction. The current post's key is read in SQL so it is
// compared in the database's own representation.
func (r *BoardRepository) Neighbours(ctx context.Context, post *boardDatamodel.Post) (*boardDatamodel.Post, *boardDatamodel.Post, error) {
	if post.PageID == nil {
		return nil, nil, nil
	}
	current := r.db.Model(&boardDatamodel.Post{}).Select(sortKey).Where("id = ?", post.ID)

	older, err := r.neighbour(ctx, "posts.older", *post.PageID,
		sortKey+" < (?) OR ("+sortKey+" = (?) AND id > ?)", current, post.ID, sortKey+" DESC", "id ASC")
	if err != nil {
		return nil, nil, err
	}
	newer, err := r.neighbour(ctx, "posts.newer", *post.PageID,
		sortKey+" > (?) OR ("+sortKey+" = (?) AND id < ?)", current, post.ID, sortKey+" ASC", "id DESC")
	if err != nil {
		return nil, nil, err
	}
	return older, newer, nil
}

func (r *BoardRepository) neighbour(ctx context.Context, op, pageID, cond string, current *gorm.DB, id, keyOrder, idOrder string) (*boardDatamodel.Post, error) {
	return retry.Value(ctx, r.policy, op, func(ctx context.Context) (*boardDatamodel.Post, error) {
		var rows []*boardDatamodel.Post
		err := r.db.WithContext(ctx).
			Where("page_id = ? AND status = ?", pageID, board.StatusPublished).
			Where(cond, current, current, id).
			Order(keyOrder).
			Order(idOrder).
			Limit(1).
			Find(&rows).Error
		if err != nil || len(rows) == 0 {
			return nil, err
		}
		return rows[0], nil
	})
}

func (r *BoardRepository) CountLikes(ctx context.Context, postIDs []string) (map[string]int64, error) {
	return r.countBy(ctx, "likes.count", &boardDatamodel.Like{}, postIDs)
}

func (r *BoardRepository) CountComments(ctx context.Context, postIDs []string) (map[string]int64, error) {
	return r.countBy(ctx, "comments.count", &boardDatamodel.Comment{}, postIDs)
}

// countBy runs one grouped count for all postIDs.
func (r *BoardRepository) countBy(ctx context.Context, op string, model interface{}, postIDs []string) (map[string]int64, error) {
	out := make(map[string]int64, len(postIDs))
	if len(postIDs) == 0 {
		return out, nil
	}
	rows, err := retry.Value(ctx, r.policy, op, func(ctx context.Context) ([]boardDatamodel.PostCount, error) {
		var rows []boardDatamodel.PostCount
		err := r.db.WithContext(ctx).Model(model).
			Select("post_id, COUNT(*) AS count").
			Where("post_id IN ?", postIDs).
			Group("post_id").
			Scan(&rows).Error
		return rows, err
	})
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.PostID] = row.Count
	}
	return out, nil
}

func (r *BoardRepository) IncrementViews(ctx context.Context, id string) error {
	return r.policy.Do(ctx, "posts.views", func(ctx context.Context) error {
		return r.db.WithContext(ctx).Model(&boardDatamodel.Post{}).
			Where("id = ?", id).
			UpdateColumn("views", gorm.Expr("views + 1")).Error
	})
}

func (r *BoardRepository) Create(ctx context.Context, post *boardDatamodel.Post) error {
	return r.policy.Do(ctx, "posts.create", func(ctx context.Context) error {
		return r.db.WithContext(ctx).Create(post).Error
	})
}

func (r *BoardRepository) Publish(ctx context.Context, post *boardDatamodel.Post) (bool, error) {
	return retry.Value(ctx, r.policy, "posts.publish", func(ctx context.Context) (bool, error) {
		res := r.db.WithContext(ctx).Model(&boardDatamodel.Post{}).
			Where("id = ? AND status = ?", post.ID, board.StatusDraft).
			Updates(map[string]interface{}{
				"status":       post.Status,
				"content":      post.Content,
				"files":        post.Files,
				"thumbnail":    post.Thumbnail,
				"published_at": post.PublishedAt,
				"updated_at":   post.UpdatedAt,
			})
		if res.Error != nil {
			return false, res.Error
		}
		return res.RowsAffected == 1, nil
	})
}

func (r *BoardRepository) ListComments(ctx context.Context, postID string) ([]*boardDatamodel.Comment, error) {
	return retry.Value(ctx, r.policy, "comments.list", func(ctx context.Context) ([]*boardDatamodel.Comment, error) {
		var comments []*boardDatamodel.Comment
		err := r.db.WithContext(ctx).
			Where("post_id = ?", postID).
			Order("created_at ASC").
			Order("id ASC").
			Find(&comments).Error
		return comments, err
	})
}

func (r *BoardRepository) GetComment(ctx context.Context, id string) (*boardDatamodel.Comment, error) {
	return retry.Value(ctx, r.policy, "comments.get", func(ctx context.Context) (*boardDatamodel.Comment, error) {
		var c boardDatamodel.Comment
		if err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil
			}
			return nil, err
		}
		return &c, nil
	})
}

func (r *BoardRepository) CreateComment(ctx context.Context, comment *boardDatamodel.Comment) error {
	return r.policy.Do(ctx, "comments.create", func(ctx context.Context) error {
		return r.db.WithContext(ctx).Create(comment).Error
	})
}
