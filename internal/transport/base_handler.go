package transport

import (
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/frahmantamala/church-cms/internal"
	"github.com/frahmantamala/church-cms/pkg/logger"
)

const maxBodyBytes = 1 << 20

// BodyValidator checks a raw JSON request body against a named schema.
type BodyValidator interface {
	ValidateBody(schema string, body []byte) error
}

// BaseHandler provides common functionality for HTTP handlers
type BaseHandler struct {
	Logger  *slog.Logger
	Schemas BodyValidator
}

// NewBaseHandler creates a base handler with logger
func NewBaseHandler(lg *slog.Logger, schemas BodyValidator) *BaseHandler {
	if lg == nil {
		lg = logger.LoggerWrapper()
		if lg == nil {
			lg = slog.Default()
		}
	}
	return &BaseHandler{Logger: lg, Schemas: schemas}
}

// WriteJSON writes a JSON response
func (h *BaseHandler) WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.Logger.Error("failed to encode JSON response", "error", err)
	}
}

// WriteError writes an error response without a machine code.
func (h *BaseHandler) WriteError(w http.ResponseWriter, status int, message string) {
	h.writeErrorBody(w, status, internal.Response{Error: message})
}

func (h *BaseHandler) writeErrorBody(w http.ResponseWriter, status int, body internal.Response) {
	if status >= http.StatusInternalServerError {
		h.Logger.Error("http error", "status", status, "message", body.Error, "code", body.Code)
	} else {
		h.Logger.Warn("http error", "status", status, "message", body.Error, "code", body.Code)
	}
	h.WriteJSON(w, status, body)
}

// HandleServiceError maps any error returned by a service onto the error response.
func (h *BaseHandler) HandleServiceError(w http.ResponseWriter, err error) {
	if appErr, ok := internal.IsAppError(err); ok {
		if appErr.StatusCode >= http.StatusInternalServerError {
			h.Logger.Error("service failure", "error", err, "type", appErr.Type)
		}
		status, body := appErr.ToHTTPResponse()
		resp, _ := body.(internal.Response)
		h.writeErrorBody(w, status, resp)
		return
	}

	h.Logger.Error("unexpected service error", "error", err)
	h.writeErrorBody(w, http.StatusInternalServerError, internal.Response{
		Error: "internal server error",
		Code:  "INTERNAL_ERROR",
	})
}

// DecodeAndValidate reads the body, checks it against schema when one is
// given and decodes it into dst.
func (h *BaseHandler) DecodeAndValidate(r *http.Request, schema string, dst interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return internal.NewValidationError("unable to read request body", internal.ErrCodeInvalidBody)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return internal.NewValidationError("request body is required", internal.ErrCodeInvalidBody)
	}

	if h.Schemas != nil && schema != "" {
		if err := h.Schemas.ValidateBody(schema, body); err != nil {
			return err
		}
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return internal.NewValidationError("invalid request body", internal.ErrCodeInvalidBody)
	}
	return nil
}

// ExtractTokenFromHeader extracts Bearer token from Authorization header
func (h *BaseHandler) ExtractTokenFromHeader(r *http.Request) string {
	return BearerToken(r)
}

func BearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if len(authHeader) < 7 || !strings.EqualFold(authHeader[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(authHeader[7:])
}

// ClientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the peer address.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first := strings.TrimSpace(strings.Split(fwd, ",")[0])
		if first != "" {
			return first
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// QueryInt parses an integer query parameter, returning def when absent or malformed.
func QueryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

// QueryOptional returns nil for an absent, empty or literal "null" parameter.
func QueryOptional(r *http.Request, key string) *string {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" || raw == "null" || raw == "undefined" {
		return nil
	}
	return &raw
}
