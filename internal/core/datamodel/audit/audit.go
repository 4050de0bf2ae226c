package audit

import "time"

// ActivityLog maps the activity_logs table; it is read and written through sqlx.
type ActivityLog struct {
	ID            string    `db:"id"`
	UserID        *string   `db:"user_id"`
	Action        string    `db:"action"`
	ResourceType  string    `db:"resource_type"`
	ResourceID    *string   `db:"resource_id"`
	ResourceTitle *string   `db:"resource_title"`
	Details       *string   `db:"details"`
	IPAddress     *string   `db:"ip_address"`
	UserAgent     *string   `db:"user_agent"`
	CreatedAt     time.Time `db:"created_at"`
}

type ActivityStats struct {
	Total             int64 `db:"total"`
	PermissionChanges int64 `db:"permission_changes"`
	SystemEvents      int64 `db:"system_events"`
}
