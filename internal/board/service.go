package board

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/frahmantamala/church-cms/internal"
	"github.com/frahmantamala/church-cms/internal/auth"
	boardDatamodel "github.com/frahmantamala/church-cms/internal/core/datamodel/board"
	"github.com/frahmantamala/church-cms/internal/core/events"
	"github.com/frahmantamala/church-cms/internal/storage"
	"github.com/frahmantamala/church-cms/internal/user"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
)

var (
	ErrPostAlreadyPublished = internal.NewValidationError("Post is already published", internal.ErrCodePostAlreadyPublish)
	ErrInvalidCommentParent = internal.NewValidationFieldError("parent_id", "parent comment does not belong to this post", internal.ErrCodeCommentParent)
	ErrMissingPage          = internal.NewValidationFieldError("pageId", "pageId or boardId is required", internal.ErrCodeValidationFailed)
)

type RepositoryAPI interface {
	// ListPublished returns published posts of pageID, newest first.
	ListPublished(ctx context.Context, pageID string, limit int, withThumbnail bool) ([]*boardDatamodel.Post, error)
	// GetByID returns nil, nil when the post does not exist.
	GetByID(ctx context.Context, id string) (*boardDatamodel.Post, error)
	// Neighbours returns the published posts just older and just newer than
	// post in list order. Either may be nil.
	Neighbours(ctx context.Context, post *boardDatamodel.Post) (older, newer *boardDatamodel.Post, err error)
	CountLikes(ctx context.Context, postIDs []string) (map[string]int64, error)
	CountComments(ctx context.Context, postIDs []string) (map[string]int64, error)
	IncrementViews(ctx context.Context, id string) error
	Create(ctx context.Context, post *boardDatamodel.Post) error
	// Publish flips a draft to published; it returns false when the post was
	// no longer a draft.
	Publish(ctx context.Context, post *boardDatamodel.Post) (bool, error)
	ListComments(ctx context.Context, postID string) ([]*boardDatamodel.Comment, error)
	GetComment(ctx context.Context, id string) (*boardDatamodel.Comment, error)
	CreateComment(ctx context.Context, comment *boardDatamodel.Comment) error
}

// AuthorResolverAPI looks up post and comment authors in one batch.
type AuthorResolverAPI interface {
	GetUsers(ctx context.Context, ids []string) (map[string]*user.User, error)
}

// MenuResolverAPI maps page ids to the URL of the menu that shows them.
type MenuResolverAPI interface {
	ResolveURLs(ctx context.Context, pageIDs []string) (map[string]string, error)
}

// CategoryCheckerAPI confirms a category id belongs to a board page.
type CategoryCheckerAPI interface {
	BelongsToPage(ctx context.Context, pageID, id string) (bool, error)
}

type Service struct {
	repo       RepositoryAPI
	authors    AuthorResolverAPI
	menus      MenuResolverAPI
	categories CategoryCheckerAPI
	promoter   storage.Promoter
	events     events.Publisher
	logger     *slog.Logger
	now        func() time.Time
}

func NewService(repo RepositoryAPI, authors AuthorResolverAPI, menus MenuResolverAPI, promoter storage.Promoter, publisher events.Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if promoter == nil {
		promoter = storage.NoopPromoter{}
	}
	return &Service{
		repo:     repo,
		authors:  authors,
		menus:    menus,
		promoter: promoter,
		events:   publisher,
		logger:   logger,
		now:      time.Now,
	}
}

// WithCategories makes CreatePost reject category ids of other boards.
func (s *Service) WithCategories(c CategoryCheckerAPI) *Service {
	s.categories = c
	return s
}

func (s *Service) checkCategory(ctx context.Context, dto CreatePostDTO) error {
	if s.categories == nil || dto.CategoryID == nil || *dto.CategoryID == "" {
		return nil
	}
	var pageID string
	if p := dto.Page(); p != nil {
		pageID = *p
	}
	ok, err := s.categories.BelongsToPage(ctx, pageID, *dto.CategoryID)
	if err != nil {
		return err
	}
	if !ok {
		return internal.NewValidationFieldError("category_id", "category_id does not belong to this board", internal.ErrCodeValidationFailed)
	}
	return nil
}

// ListPosts returns the published posts of one page with authors, counts and
// the menu URL attached.
func (s *Service) ListPosts(ctx context.Context, q ListQuery) ([]*Post, error) {
	pageID := strings.TrimSpace(q.PageID)
	if pageID == "" {
		return nil, ErrMissingPage
	}
	limit := q.Limit
	if limit < 1 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	rows, err := s.repo.ListPublished(ctx, pageID, limit, q.Type == TypeGallery)
	if err != nil {
		s.logger.Error("failed to list posts", "error", err, "page_id", pageID)
		return nil, err
	}

	posts := make([]*Post, 0, len(rows))
	for _, row := range rows {
		posts = append(posts, s.decode(row))
	}
	if len(posts) == 0 {
		return posts, nil
	}

	if err := s.enrich(ctx, posts); err != nil {
		s.logger.Error("failed to enrich posts", "error", err, "page_id", pageID)
		return nil, err
	}
	return posts, nil
}

// enrich attaches authors, like and comment counts and menu URLs, running
// the independent lookups concurrently.
func (s *Service) enrich(ctx context.Context, posts []*Post) error {
	ids := make([]string, 0, len(posts))
	authorIDs := make([]string, 0, len(posts))
	pageIDs := make([]string, 0, 1)
	for _, p := range posts {
		ids = append(ids, p.ID)
		authorIDs = append(authorIDs, p.UserID)
		if p.PageID != nil {
			pageIDs = append(pageIDs, *p.PageID)
		}
	}

	var (
		authors  map[string]*user.User
		likes    map[string]int64
		comments map[string]int64
		urls     map[string]string
	)

	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	p.Go(func(ctx context.Context) error {
		var err error
		authors, err = s.authors.GetUsers(ctx, dedupe(authorIDs))
		return err
	})
	p.Go(func(ctx context.Context) error {
		var err error
		likes, err = s.repo.CountLikes(ctx, ids)
		return err
	})
	p.Go(func(ctx context.Context) error {
		var err error
		comments, err = s.repo.CountComments(ctx, ids)
		return err
	})
	p.Go(func(ctx context.Context) error {
		var err error
		urls, err = s.menus.ResolveURLs(ctx, pageIDs)
		return err
	})
	if err := p.Wait(); err != nil {
		return err
	}

	for _, post := range posts {
		post.Author = authors[post.UserID].DisplayName()
		post.LikesCount = likes[post.ID]
		post.CommentsCount = comments[post.ID]
		if post.PageID != nil {
			post.MenuURL = urls[*post.PageID]
		}
	}
	return nil
}

// GetPostDetail returns one post with its neighbours. Drafts are only
// visible to board managers.
func (s *Service) GetPostDetail(ctx context.Context, viewer *internal.User, id string) (*PostDetail, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("failed to get post", "error", err, "post_id", id)
		return nil, err
	}
	if row == nil {
		return nil, internal.ErrPostNotFound
	}
	if row.Status != StatusPublished && !auth.CanManageBoard(viewer) {
		return nil, internal.ErrPostNotFound
	}

	post := s.decode(row)
	detail := &PostDetail{Post: post}

	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	p.Go(func(ctx context.Context) error {
		return s.enrich(ctx, []*Post{post})
	})
	if post.IsPublished() && post.PageID != nil {
		p.Go(func(ctx context.Context) error {
			older, newer, err := s.repo.Neighbours(ctx, row)
			if err != nil {
				return err
			}
			detail.Prev = linkFromDataModel(older)
			detail.Next = linkFromDataModel(newer)
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		s.logger.Error("failed to load post detail", "error", err, "post_id", id)
		return nil, err
	}

	if post.IsPublished() {
		if err := s.repo.IncrementViews(ctx, id); err != nil {
			s.logger.Warn("failed to count post view", "error", err, "post_id", id)
		} else {
			post.Views++
		}
	}
	return detail, nil
}

// CreatePost stores a draft, or publishes straight away when asked to.
func (s *Service) CreatePost(ctx context.Context, actorID string, dto CreatePostDTO) (*Post, error) {
	if verr := dto.Validate(); verr != nil {
		return nil, verr
	}
	if err := s.checkCategory(ctx, dto); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	post := &Post{
		ID:          uuid.New().String(),
		Title:       strings.TrimSpace(dto.Title),
		Content:     dto.Content,
		PageID:      dto.Page(),
		CategoryID:  dto.CategoryID,
		UserID:      actorID,
		Status:      StatusDraft,
		Attachments: dto.Files,
		Tags:        dto.Tags,
		Thumbnail:   dto.Thumbnail,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if post.Attachments == nil {
		post.Attachments = []storage.File{}
	}
	if post.Tags == nil {
		post.Tags = []string{}
	}

	if dto.Status == StatusPublished {
		if err := s.promote(ctx, post); err != nil {
			return nil, err
		}
		post.Status = StatusPublished
		post.PublishedAt = &now
	}

	if err := s.repo.Create(ctx, ToDataModel(post)); err != nil {
		s.logger.Error("failed to create post", "error", err, "user_id", actorID)
		return nil, err
	}

	s.logger.Info("post created", "post_id", post.ID, "status", post.Status, "user_id", actorID)
	s.publish(ctx, events.NewDomainEvent(events.EventTypePostCreated, actorID, "post.create", "post", post.ID, post.Title,
		map[string]interface{}{"status": post.Status}))
	if post.IsPublished() {
		s.publish(ctx, events.NewDomainEvent(events.EventTypePostPublished, actorID, "post.publish", "post", post.ID, post.Title, nil))
	}
	return post, nil
}

// PublishPost moves a draft to published. The transition is one-way.
func (s *Service) PublishPost(ctx context.Context, actorID, id string) (*Post, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("failed to get post", "error", err, "post_id", id)
		return nil, err
	}
	if row == nil {
		return nil, internal.ErrPostNotFound
	}
	if row.Status == StatusPublished {
		return nil, ErrPostAlreadyPublished
	}

	post := s.decode(row)
	if err := s.promote(ctx, post); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	post.Status = StatusPublished
	post.PublishedAt = &now
	post.UpdatedAt = now

	ok, err := s.repo.Publish(ctx, ToDataModel(post))
	if err != nil {
		s.logger.Error("failed to publish post", "error", err, "post_id", id)
		return nil, err
	}
	if !ok {
		return nil, ErrPostAlreadyPublished
	}

	s.logger.Info("post published", "post_id", id, "user_id", actorID)
	s.publish(ctx, events.NewDomainEvent(events.EventTypePostPublished, actorID, "post.publish", "post", post.ID, post.Title, nil))
	return post, nil
}

// promote moves temporary uploads to permanent storage and rewrites the
// post to reference their new locations.
func (s *Service) promote(ctx context.Context, post *Post) error {
	promoted, err := s.promoter.PromoteFiles(ctx, post.Attachments, post.Content)
	if err != nil {
		s.logger.Error("failed to promote post files", "error", err, "post_id", post.ID)
		return err
	}
	post.Attachments = promoted.Files
	post.Content = promoted.Content

	if post.Thumbnail != nil && storage.IsTemporary(*post.Thumbnail) {
		moved, err := s.promoter.PromoteFile(ctx, *post.Thumbnail)
		if err != nil {
			s.logger.Error("failed to promote thumbnail", "error", err, "post_id", post.ID)
			return err
		}
		post.Thumbnail = &moved
	}
	return nil
}

// ListComments returns the comments of a visible post as a reply tree.
func (s *Service) ListComments(ctx context.Context, viewer *internal.User, postID string) (*CommentsResponse, error) {
	if _, err := s.visiblePost(ctx, viewer, postID); err != nil {
		return nil, err
	}

	rows, err := s.repo.ListComments(ctx, postID)
	if err != nil {
		s.logger.Error("failed to list comments", "error", err, "post_id", postID)
		return nil, err
	}

	comments := make([]*Comment, 0, len(rows))
	authorIDs := make([]string, 0, len(rows))
	for _, row := range rows {
		comments = append(comments, CommentFromDataModel(row))
		authorIDs = append(authorIDs, row.UserID)
	}
	authors, err := s.authors.GetUsers(ctx, dedupe(authorIDs))
	if err != nil {
		s.logger.Error("failed to resolve comment authors", "error", err, "post_id", postID)
		return nil, err
	}
	for _, c := range comments {
		c.Author = authors[c.UserID].DisplayName()
	}

	return &CommentsResponse{Comments: BuildThread(comments), Total: len(comments)}, nil
}

// CreateComment adds a comment, optionally as a reply within the same post.
func (s *Service) CreateComment(ctx context.Context, viewer *internal.User, postID string, dto CreateCommentDTO) (*Comment, error) {
	if viewer == nil {
		return nil, internal.ErrMissingToken
	}
	if verr := dto.Validate(); verr != nil {
		return nil, verr
	}
	if _, err := s.visiblePost(ctx, viewer, postID); err != nil {
		return nil, err
	}

	if dto.ParentID != nil && *dto.ParentID != "" {
		parent, err := s.repo.GetComment(ctx, *dto.ParentID)
		if err != nil {
			s.logger.Error("failed to get parent comment", "error", err, "comment_id", *dto.ParentID)
			return nil, err
		}
		if parent == nil || parent.PostID != postID {
			return nil, ErrInvalidCommentParent
		}
	} else {
		dto.ParentID = nil
	}

	row := &boardDatamodel.Comment{
		ID:        uuid.New().String(),
		PostID:    postID,
		UserID:    viewer.ID,
		Content:   strings.TrimSpace(dto.Content),
		ParentID:  dto.ParentID,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.CreateComment(ctx, row); err != nil {
		s.logger.Error("failed to create comment", "error", err, "post_id", postID, "user_id", viewer.ID)
		return nil, err
	}

	comment := CommentFromDataModel(row)
	authors, err := s.authors.GetUsers(ctx, []string{viewer.ID})
	if err != nil {
		s.logger.Warn("failed to resolve comment author", "error", err, "user_id", viewer.ID)
	}
	comment.Author = authors[viewer.ID].DisplayName()
	return comment, nil
}

func (s *Service) visiblePost(ctx context.Context, viewer *internal.User, id string) (*boardDatamodel.Post, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("failed to get post", "error", err, "post_id", id)
		return nil, err
	}
	if row == nil || (row.Status != StatusPublished && !auth.CanManageBoard(viewer)) {
		return nil, internal.ErrPostNotFound
	}
	return row, nil
}

// decode maps a row and parses its JSON columns, logging rather than
// failing on malformed content.
func (s *Service) decode(row *boardDatamodel.Post) *Post {
	post := FromDataModel(row)
	files, err := ParseAttachments(row.Files)
	if err != nil {
		s.logger.Warn("ignoring malformed post attachments", "error", err, "post_id", row.ID)
	}
	post.Attachments = files
	tags, err := ParseTags(row.Tags)
	if err != nil {
		s.logger.Warn("ignoring malformed post tags", "error", err, "post_id", row.ID)
	}
	post.Tags = tags
	return post
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish event", "event_type", event.EventType(), "error", err)
	}
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
