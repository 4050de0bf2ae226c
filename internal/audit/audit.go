package audit

import (
	"encoding/json"
	"time"

	auditDatamodel "github.com/frahmantamala/church-cms/internal/core/datamodel/audit"
)

// Resource types counted as permission changes in the activity summary.
var PermissionResourceTypes = []string{"permission", "role", "user_role"}

// SystemResourceType marks events raised by the system itself, such as logins.
const SystemResourceType = "system"

type Log struct {
	ID            string          `json:"id"`
	UserID        *string         `json:"user_id"`
	Action        string          `json:"action"`
	ResourceType  string          `json:"resource_type"`
	ResourceID    *string         `json:"resource_id"`
	ResourceTitle *string         `json:"resource_title"`
	Details       json.RawMessage `json:"details,omitempty"`
	IPAddress     *string         `json:"ip_address"`
	UserAgent     *string         `json:"user_agent"`
	CreatedAt     time.Time       `json:"created_at"`
}

type Stats struct {
	Total             int64 `json:"total"`
	PermissionChanges int64 `json:"permission_changes"`
	SystemEvents      int64 `json:"system_events"`
}

// Filter narrows a log query. Start and End are inclusive bounds on created_at.
type Filter struct {
	Action *string
	UserID *string
	Start  *time.Time
	End    *time.Time
	Limit  int
	Offset int
}

func (l *Log) ToDataModel() *auditDatamodel.ActivityLog {
	dm := &auditDatamodel.ActivityLog{
		ID:            l.ID,
		UserID:        l.UserID,
		Action:        l.Action,
		ResourceType:  l.ResourceType,
		ResourceID:    l.ResourceID,
		ResourceTitle: l.ResourceTitle,
		IPAddress:     l.IPAddress,
		UserAgent:     l.UserAgent,
		CreatedAt:     l.CreatedAt,
	}
	if len(l.Details) > 0 {
		details := string(l.Details)
		dm.Details = &details
	}
	return dm
}

func FromDataModel(dm *auditDatamodel.ActivityLog) *Log {
	l := &Log{
		ID:            dm.ID,
		UserID:        dm.UserID,
		Action:        dm.Action,
		ResourceType:  dm.ResourceType,
		ResourceID:    dm.ResourceID,
		ResourceTitle: dm.ResourceTitle,
		IPAddress:     dm.IPAddress,
		UserAgent:     dm.UserAgent,
		CreatedAt:     dm.CreatedAt,
	}
	if dm.Details != nil && json.Valid([]byte(*dm.Details)) {
		l.Details = json.RawMessage(*dm.Details)
	}
	return l
}

func StatsFromDataModel(dm *auditDatamodel.ActivityStats) Stats {
	if dm == nil {
		return Stats{}
	}
	return Stats{
		Total:             dm.Total,
		PermissionChanges: dm.PermissionChanges,
		SystemEvents:      dm.SystemEvents,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
