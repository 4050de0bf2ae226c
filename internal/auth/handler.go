package auth

import (
	"net/http"

	"github.com/frahmantamala/church-cms/internal"
	"github.com/frahmantamala/church-cms/internal/transport"
	"github.com/frahmantamala/church-cms/pkg/logger"
)

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, svc ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     svc,
	}
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var dto LoginDTO
	if err := h.DecodeAndValidate(r, "LoginRequest", &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	resp, err := h.Service.Authenticate(r.Context(), dto, transport.ClientIP(r), r.UserAgent())
	if err != nil {
		h.Logger.Warn("authentication failed", "error", err)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, resp)
}

// AuthMiddleware rejects requests without a valid bearer token and stores the
// principal in the request context.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := h.ExtractTokenFromHeader(r)
		if token == "" {
			h.HandleServiceError(w, internal.ErrMissingToken)
			return
		}

		principal, err := h.Service.Principal(r.Context(), token)
		if err != nil {
			h.Logger.Warn("auth middleware: token rejected", "error", err)
			h.HandleServiceError(w, err)
			return
		}

		ctx := internal.ContextWithUser(r.Context(), principal)
		ctx = logger.WithUser(ctx, principal.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalAuth attaches the principal when a valid token is present and
// otherwise lets the request through anonymously.
func (h *Handler) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := h.ExtractTokenFromHeader(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		principal, err := h.Service.Principal(r.Context(), token)
		if err != nil {
			h.Logger.Debug("optional auth: ignoring token", "error", err)
			next.ServeHTTP(w, r)
			return
		}

		ctx := internal.ContextWithUser(r.Context(), principal)
		ctx = logger.WithUser(ctx, principal.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
