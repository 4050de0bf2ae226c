package board

import (
	"context"
	"net/http"
	"strings"

	"github.com/frahmantamala/church-cms/internal"
	"github.com/frahmantamala/church-cms/internal/transport"
	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	ListPosts(ctx context.Context, q ListQuery) ([]*Post, error)
	GetPostDetail(ctx context.Context, viewer *internal.User, id string) (*PostDetail, error)
	CreatePost(ctx context.Context, actorID string, dto CreatePostDTO) (*Post, error)
	PublishPost(ctx context.Context, actorID, id string) (*Post, error)
	ListComments(ctx context.Context, viewer *internal.User, postID string) (*CommentsResponse, error)
	CreateComment(ctx context.Context, viewer *internal.User, postID string, dto CreateCommentDTO) (*Comment, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
	}
}

// ListPosts serves GET /board-posts?pageId|boardId&limit&type.
func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	pageID := transport.QueryOptional(r, "pageId")
	if pageID == nil {
		pageID = transport.QueryOptional(r, "boardId")
	}
	q := ListQuery{
		Limit: transport.QueryInt(r, "limit", DefaultListLimit),
		Type:  strings.TrimSpace(r.URL.Query().Get("type")),
	}
	if pageID != nil {
		q.PageID = *pageID
	}

	posts, err := h.Service.ListPosts(r.Context(), q)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, PostsResponse{Posts: posts})
}

func (h *Handler) GetPostDetail(w http.ResponseWriter, r *http.Request) {
	viewer, _ := internal.UserFromContext(r.Context())
	detail, err := h.Service.GetPostDetail(r.Context(), viewer, chi.URLParam(r, "id"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, detail)
}

func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var dto CreatePostDTO
	if err := h.DecodeAndValidate(r, "CreatePostRequest", &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	actorID := internal.UserIDFromContext(r.Context())
	post, err := h.Service.CreatePost(r.Context(), actorID, dto)
	if err != nil {
		h.Logger.Warn("CreatePost: service error", "error", err, "actor_id", actorID)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, post)
}

func (h *Handler) PublishPost(w http.ResponseWriter, r *http.Request) {
	actorID := internal.UserIDFromContext(r.Context())
	post, err := h.Service.PublishPost(r.Context(), actorID, chi.URLParam(r, "id"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, post)
}

func (h *Handler) ListComments(w http.ResponseWriter, r *http.Request) {
	viewer, _ := internal.UserFromContext(r.Context())
	resp, err := h.Service.ListComments(r.Context(), viewer, chi.URLParam(r, "id"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) CreateComment(w http.ResponseWriter, r *http.Request) {
	var dto CreateCommentDTO
	if err := h.DecodeAndValidate(r, "CreateCommentRequest", &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	viewer, _ := internal.UserFromContext(r.Context())
	comment, err := h.Service.CreateComment(r.Context(), viewer, chi.URLParam(r, "id"), dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, comment)
}
