package category

import (
	"context"
	"log/slog"
	"strings"

	"github.com/frahmantamala/church-cms/internal"
	categoryDatamodel "github.com/frahmantamala/church-cms/internal/core/datamodel/category"
)

type RepositoryAPI interface {
	// ListActive returns the active categories of pageID in display order.
	ListActive(ctx context.Context, pageID string) ([]*categoryDatamodel.BoardCategory, error)
	// GetByID returns nil, nil when no category has id.
	GetByID(ctx context.Context, id string) (*categoryDatamodel.BoardCategory, error)
}

type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

func (s *Service) ListCategories(ctx context.Context, pageID string) ([]*Category, error) {
	pageID = strings.TrimSpace(pageID)
	if pageID == "" {
		return nil, internal.NewValidationFieldError("pageId", "pageId is required", internal.ErrCodeValidationFailed)
	}

	rows, err := s.repo.ListActive(ctx, pageID)
	if err != nil {
		s.logger.Error("failed to list board categories", "error", err, "page_id", pageID)
		return nil, err
	}

	out := make([]*Category, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromDataModel(row))
	}
	return out, nil
}

// BelongsToPage reports whether id names an active category of pageID.
func (s *Service) BelongsToPage(ctx context.Context, pageID, id string) (bool, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("failed to load board category", "error", err, "category_id", id)
		return false, err
	}
	return row != nil && row.IsActive && row.PageID == pageID, nil
}
