package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/frahmantamala/church-cms/internal"
	auditDatamodel "github.com/frahmantamala/church-cms/internal/core/datamodel/audit"
	"github.com/frahmantamala/church-cms/internal/core/events"
	"github.com/google/uuid"
)

const (
	DefaultPageLimit  = 20
	MaxPageLimit      = 100
	DefaultExportDays = 30
	MaxExportDays     = 365

	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

type RepositoryAPI interface {
	Insert(ctx context.Context, entry *auditDatamodel.ActivityLog) error
	List(ctx context.Context, filter Filter) ([]auditDatamodel.ActivityLog, int64, error)
	Stats(ctx context.Context, since time.Time) (*auditDatamodel.ActivityStats, error)
	ListSince(ctx context.Context, since time.Time) ([]auditDatamodel.ActivityLog, error)
}

type Service struct {
	repo        RepositoryAPI
	statsWindow time.Duration
	exportDays  int
	logger      *slog.Logger
	now         func() time.Time
}

func NewService(repo RepositoryAPI, cfg internal.AuditConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.StatsWindow <= 0 {
		cfg.StatsWindow = 24 * time.Hour
	}
	if cfg.DefaultExportDays <= 0 {
		cfg.DefaultExportDays = DefaultExportDays
	}
	return &Service{
		repo:        repo,
		statsWindow: cfg.StatsWindow,
		exportDays:  cfg.DefaultExportDays,
		logger:      logger,
		now:         time.Now,
	}
}

// Record appends one entry written by an authenticated client.
func (s *Service) Record(ctx context.Context, actorID string, dto RecordLogDTO, ip, userAgent string) (*Log, error) {
	if verr := dto.Validate(); verr != nil {
		return nil, verr
	}

	entry := &Log{
		ID:            uuid.New().String(),
		UserID:        optional(actorID),
		Action:        strings.TrimSpace(dto.Action),
		ResourceType:  strings.TrimSpace(dto.ResourceType),
		ResourceID:    dto.ResourceID,
		ResourceTitle: dto.ResourceTitle,
		Details:       dto.Details,
		IPAddress:     optional(ip),
		UserAgent:     optional(userAgent),
		CreatedAt:     s.now().UTC(),
	}
	if err := s.repo.Insert(ctx, entry.ToDataModel()); err != nil {
		s.logger.Error("failed to record activity log", "error", err, "action", entry.Action, "user_id", actorID)
		return nil, err
	}
	return entry, nil
}

// RecordEvent persists a domain event raised elsewhere in the process.
func (s *Service) RecordEvent(ctx context.Context, event events.Event) error {
	de, ok := event.(*events.DomainEvent)
	if !ok {
		return nil
	}

	entry := &Log{
		ID:            de.EventID(),
		UserID:        optional(de.ActorID),
		Action:        de.Action,
		ResourceType:  de.ResourceType,
		ResourceID:    optional(de.ResourceID),
		ResourceTitle: optional(de.ResourceTitle),
		IPAddress:     optional(de.IPAddress),
		UserAgent:     optional(de.UserAgent),
		CreatedAt:     de.OccurredAt().UTC(),
	}
	if data, ok := de.Payload().(map[string]interface{}); ok && len(data) > 0 {
		raw, err := json.Marshal(data)
		if err != nil {
			s.logger.Warn("dropping unserialisable event details", "event_type", de.EventType(), "error", err)
		} else {
			entry.Details = raw
		}
	}

	if err := s.repo.Insert(ctx, entry.ToDataModel()); err != nil {
		s.logger.Error("failed to record domain event", "error", err, "event_type", de.EventType(), "event_id", de.EventID())
		return err
	}
	return nil
}

// Subscribe records every domain event published on bus.
func (s *Service) Subscribe(bus *events.EventBus) {
	for _, eventType := range events.AllDomainEventTypes {
		bus.Subscribe(eventType, s.RecordEvent)
	}
}

// Query returns one page of logs plus the summary over the stats window.
func (s *Service) Query(ctx context.Context, dto QueryDTO) (*LogsResponse, error) {
	filter, page, err := s.buildFilter(dto)
	if err != nil {
		return nil, err
	}

	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list activity logs", "error", err)
		return nil, err
	}

	stats, err := s.repo.Stats(ctx, s.now().Add(-s.statsWindow))
	if err != nil {
		s.logger.Error("failed to compute activity stats", "error", err)
		return nil, err
	}

	logs := make([]*Log, 0, len(rows))
	for i := range rows {
		logs = append(logs, FromDataModel(&rows[i]))
	}

	return &LogsResponse{
		Logs:  logs,
		Total: total,
		Page:  page,
		Limit: filter.Limit,
		Stats: StatsFromDataModel(stats),
	}, nil
}

func (s *Service) buildFilter(dto QueryDTO) (Filter, int, error) {
	page := dto.Page
	if page < 1 {
		page = 1
	}
	limit := dto.Limit
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}

	filter := Filter{
		Action: optional(strings.TrimSpace(dto.Action)),
		UserID: optional(strings.TrimSpace(dto.UserID)),
		Limit:  limit,
		Offset: (page - 1) * limit,
	}

	if dto.StartDate != "" {
		start, _, err := parseDate(dto.StartDate)
		if err != nil {
			return Filter{}, 0, internal.NewValidationFieldError("startDate", "startDate must be YYYY-MM-DD or RFC3339", internal.ErrCodeInvalidDate)
		}
		filter.Start = &start
	}
	if dto.EndDate != "" {
		end, dateOnly, err := parseDate(dto.EndDate)
		if err != nil {
			return Filter{}, 0, internal.NewValidationFieldError("endDate", "endDate must be YYYY-MM-DD or RFC3339", internal.ErrCodeInvalidDate)
		}
		if dateOnly {
			end = end.Add(24*time.Hour - time.Nanosecond)
		}
		filter.End = &end
	}
	if filter.Start != nil && filter.End != nil && filter.End.Before(*filter.Start) {
		return Filter{}, 0, internal.NewValidationFieldError("endDate", "endDate must not be before startDate", internal.ErrCodeInvalidDate)
	}
	return filter, page, nil
}

// parseDate accepts a calendar date or a full RFC3339 timestamp.
func parseDate(raw string) (time.Time, bool, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false, err
	}
	return t.UTC(), false, nil
}

// Export renders every entry of the last days days in format.
func (s *Service) Export(ctx context.Context, days int, format string) (*ExportFile, error) {
	if days == 0 {
		days = s.exportDays
	}
	if days < 1 || days > MaxExportDays {
		return nil, internal.NewValidationFieldError("days", fmt.Sprintf("days must be between 1 and %d", MaxExportDays), internal.ErrCodeValidationFailed)
	}
	format = strings.ToLower(strings.TrimSpace(format))
	switch format {
	case "":
		format = FormatCSV
	case "excel":
		format = FormatXLSX
	}
	if format != FormatCSV && format != FormatXLSX {
		return nil, internal.NewValidationFieldError("format", "format must be csv or xlsx", internal.ErrCodeValidationFailed)
	}

	now := s.now()
	rows, err := s.repo.ListSince(ctx, now.AddDate(0, 0, -days))
	if err != nil {
		s.logger.Error("failed to load activity logs for export", "error", err, "days", days)
		return nil, err
	}

	logs := make([]*Log, 0, len(rows))
	for i := range rows {
		logs = append(logs, FromDataModel(&rows[i]))
	}

	stamp := now.Format(time.DateOnly)
	file := &ExportFile{Rows: len(logs)}
	switch format {
	case FormatXLSX:
		body, err := RenderXLSX(logs)
		if err != nil {
			s.logger.Error("failed to render xlsx export", "error", err)
			return nil, internal.NewInternalError("failed to render export", err)
		}
		file.Body = body
		file.Filename = "audit-report-" + stamp + ".xlsx"
		file.ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		file.Body = RenderCSV(logs)
		file.Filename = "audit-report-" + stamp + ".csv"
		file.ContentType = "text/csv; charset=utf-8"
	}

	s.logger.Info("activity log exported", "days", days, "format", format, "rows", file.Rows)
	return file, nil
}
