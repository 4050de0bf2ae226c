package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/frahmantamala/church-cms/internal/audit"
	auditDatamodel "github.com/frahmantamala/church-cms/internal/core/datamodel/audit"
	"github.com/frahmantamala/church-cms/internal/core/retry"
	"github.com/jmoiron/sqlx"
)

const logColumns = `id, user_id, action, resource_type, resource_id, resource_title, details, ip_address, user_agent, created_at`

type AuditRepository struct {
	db     *sqlx.DB
	policy *retry.Policy
}

func NewAuditRepository(db *sqlx.DB, policy *retry.Policy) audit.RepositoryAPI {
	return &AuditRepository{
		db:     db,
		policy: policy,
	}
}

func (r *AuditRepository) Insert(ctx context.Context, entry *auditDatamodel.ActivityLog) error {
	query := `INSERT INTO activity_logs (` + logColumns + `)
VALUES (:id, :user_id, :action, :resource_type, :resource_id, :resource_title, :details, :ip_address, :user_agent, :created_at)`

	return r.policy.Do(ctx, "audit.insert", func(ctx context.Context) error {
		if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
			return fmt.Errorf("insert activity log: %w", err)
		}
		return nil
	})
}

func (r *AuditRepository) List(ctx context.Context, filter audit.Filter) ([]auditDatamodel.ActivityLog, int64, error) {
	where, args := whereClause(filter)

	total, err := retry.Value(ctx, r.policy, "audit.count", func(ctx context.Context) (int64, error) {
		var n int64
		query := r.db.Rebind(`SELECT COUNT(*) FROM activity_logs` + where)
		if err := r.db.GetContext(ctx, &n, query, args...); err != nil {
			return 0, fmt.Errorf("count activity logs: %w", err)
		}
		return n, nil
	})
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []auditDatamodel.ActivityLog{}, 0, nil
	}

	logs, err := retry.Value(ctx, r.policy, "audit.list", func(ctx context.Context) ([]auditDatamodel.ActivityLog, error) {
		rows := []auditDatamodel.ActivityLog{}
		query := r.db.Rebind(`SELECT ` + logColumns + ` FROM activity_logs` + where +
			` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`)
		pageArgs := append(append([]interface{}{}, args...), filter.Limit, filter.Offset)
		if err := r.db.SelectContext(ctx, &rows, query, pageArgs...); err != nil {
			return nil, fmt.Errorf("list activity logs: %w", err)
		}
		return rows, nil
	})
	if err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

func (r *AuditRepository) Stats(ctx context.Context, since time.Time) (*auditDatamodel.ActivityStats, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(audit.PermissionResourceTypes)), ", ")
	query := r.db.Rebind(`SELECT
	COUNT(*) AS total,
	COALESCE(SUM(CASE WHEN resource_type IN (` + placeholders + `) THEN 1 ELSE 0 END), 0) AS permission_changes,
	COALESCE(SUM(CASE WHEN resource_type = ? THEN 1 ELSE 0 END), 0) AS system_events
FROM activity_logs
WHERE created_at >= ?`)

	args := make([]interface{}, 0, len(audit.PermissionResourceTypes)+2)
	for _, t := range audit.PermissionResourceTypes {
		args = append(args, t)
	}
	args = append(args, audit.SystemResourceType, since)

	return retry.Value(ctx, r.policy, "audit.stats", func(ctx context.Context) (*auditDatamodel.ActivityStats, error) {
		var stats auditDatamodel.ActivityStats
		if err := r.db.GetContext(ctx, &stats, query, args...); err != nil {
			return nil, fmt.Errorf("activity stats: %w", err)
		}
		return &stats, nil
	})
}

func (r *AuditRepository) ListSince(ctx context.Context, since time.Time) ([]auditDatamodel.ActivityLog, error) {
	query := r.db.Rebind(`SELECT ` + logColumns + ` FROM activity_logs WHERE created_at >= ? ORDER BY created_at DESC, id DESC`)

	return retry.Value(ctx, r.policy, "audit.list_since", func(ctx context.Context) ([]auditDatamodel.ActivityLog, error) {
		rows := []auditDatamodel.ActivityLog{}
		if err := r.db.SelectContext(ctx, &rows, query, since); err != nil {
			return nil, fmt.Errorf("export activity logs: %w", err)
		}
		return rows, nil
	})
}

func whereClause(f audit.Filter) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	if f.Action != nil {
		conds = append(conds, "action = ?")
		args = append(args, *f.Action)
	}
	if f.UserID != nil {
		conds = append(conds, "user_id = ?")
		args = append(args, *f.UserID)
	}
	if f.Start != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, *f.Start)
	}
	if f.End != nil {
		conds = append(conds, "created_at <= ?")
		args = append(args, *f.End)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
