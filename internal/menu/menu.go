package menu

import (
	"context"
	"log/slog"
	"sort"

	menuDatamodel "github.com/frahmantamala/church-cms/internal/core/datamodel/menu"
)

type Menu struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	URL      string  `json:"url"`
	ParentID *string `json:"parent_id,omitempty"`
	OrderNum int     `json:"order_num"`
	PageID   *string `json:"page_id,omitempty"`
	IsActive bool    `json:"is_active"`
}

// IsChild reports whether the menu sits under another menu.
func (m *Menu) IsChild() bool {
	return m.ParentID != nil && *m.ParentID != ""
}

func FromDataModel(dm *menuDatamodel.Menu) *Menu {
	return &Menu{
		ID:       dm.ID,
		Title:    dm.Title,
		URL:      dm.URL,
		ParentID: dm.ParentID,
		OrderNum: dm.OrderNum,
		PageID:   dm.PageID,
		IsActive: dm.IsActive,
	}
}

type RepositoryAPI interface {
	// ListByPageIDs returns the active menus linked to any of pageIDs.
	ListByPageIDs(ctx context.Context, pageIDs []string) ([]*menuDatamodel.Menu, error)
}

type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// ResolveURLs maps each page id to the URL of the menu that links to it.
// A child menu wins over a top-level one; pages without a menu are absent.
func (s *Service) ResolveURLs(ctx context.Context, pageIDs []string) (map[string]string, error) {
	out := make(map[string]string, len(pageIDs))
	ids := uniqueNonEmpty(pageIDs)
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := s.repo.ListByPageIDs(ctx, ids)
	if err != nil {
		s.logger.Error("failed to load menus", "error", err, "page_ids", ids)
		return nil, err
	}

	byPage := make(map[string][]*Menu)
	for _, dm := range rows {
		m := FromDataModel(dm)
		if m.PageID == nil || m.URL == "" {
			continue
		}
		byPage[*m.PageID] = append(byPage[*m.PageID], m)
	}

	for pageID, menus := range byPage {
		out[pageID] = preferred(menus).URL
	}
	return out, nil
}

func preferred(menus []*Menu) *Menu {
	sort.SliceStable(menus, func(i, j int) bool {
		a, b := menus[i], menus[j]
		if a.IsChild() != b.IsChild() {
			return a.IsChild()
		}
		if a.OrderNum != b.OrderNum {
			return a.OrderNum < b.OrderNum
		}
		return a.ID < b.ID
	})
	return menus[0]
}

func uniqueNonEmpty(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
