package audit

import (
	"context"
	"net/http"
	"strconv"

	"github.com/frahmantamala/church-cms/internal"
	"github.com/frahmantamala/church-cms/internal/transport"
)

type ServiceAPI interface {
	Record(ctx context.Context, actorID string, dto RecordLogDTO, ip, userAgent string) (*Log, error)
	Query(ctx context.Context, dto QueryDTO) (*LogsResponse, error)
	Export(ctx context.Context, days int, format string) (*ExportFile, error)
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

// RecordLog serves POST /logs. The route sits behind the auth middleware so
// the actor is always the verified token subject.
func (h *Handler) RecordLog(w http.ResponseWriter, r *http.Request) {
	var dto RecordLogDTO
	if err := h.DecodeAndValidate(r, "ActivityLogRequest", &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	actorID := internal.UserIDFromContext(r.Context())
	if actorID == "" {
		h.HandleServiceError(w, internal.ErrMissingToken)
		return
	}

	entry, err := h.Service.Record(r.Context(), actorID, dto, transport.ClientIP(r), r.UserAgent())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, entry)
}

func (h *Handler) ListLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	dto := QueryDTO{
		Action:    q.Get("action"),
		UserID:    q.Get("userId"),
		StartDate: q.Get("startDate"),
		EndDate:   q.Get("endDate"),
		Page:      transport.QueryInt(r, "page", 1),
		Limit:     transport.QueryInt(r, "limit", DefaultPageLimit),
	}

	resp, err := h.Service.Query(r.Context(), dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) ExportLogs(w http.ResponseWriter, r *http.Request) {
	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.HandleServiceError(w, internal.NewValidationFieldError("days", "days must be a number", internal.ErrCodeValidationFailed))
			return
		}
		days = n
	}

	file, err := h.Service.Export(r.Context(), days, r.URL.Query().Get("format"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+file.Filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(file.Body)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(file.Body); err != nil {
		h.Logger.Error("failed to write export body", "error", err)
	}
}
