package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeRoleCreated            = "role.created"
	EventTypeRoleUpdated            = "role.updated"
	EventTypeRoleDeleted            = "role.deleted"
	EventTypeRolePermissionsReplace = "role.permissions_replaced"
	EventTypeUserRoleChanged        = "user_role.changed"
	EventTypePostCreated            = "post.created"
	EventTypePostPublished          = "post.published"
	EventTypeWidgetChanged          = "widget.changed"
	EventTypeUserLoggedIn           = "user.logged_in"
)

// AllDomainEventTypes lists every event a subscriber may want to record.
var AllDomainEventTypes = []string{
	EventTypeRoleCreated,
	EventTypeRoleUpdated,
	EventTypeRoleDeleted,
	EventTypeRolePermissionsReplace,
	EventTypeUserRoleChanged,
	EventTypePostCreated,
	EventTypePostPublished,
	EventTypeWidgetChanged,
	EventTypeUserLoggedIn,
}

// DomainEvent describes a change to one resource made by one actor.
type DomainEvent struct {
	BaseEvent
	ActorID       string `json:"actor_id"`
	Action        string `json:"action"`
	ResourceType  string `json:"resource_type"`
	ResourceID    string `json:"resource_id"`
	ResourceTitle string `json:"resource_title"`
	IPAddress     string `json:"ip_address,omitempty"`
	UserAgent     string `json:"user_agent,omitempty"`
}

func NewDomainEvent(eventType, actorID, action, resourceType, resourceID, resourceTitle string, data map[string]interface{}) *DomainEvent {
	if data == nil {
		data = map[string]interface{}{}
	}
	return &DomainEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      eventType,
			Timestamp: time.Now(),
			Data:      data,
		},
		ActorID:       actorID,
		Action:        action,
		ResourceType:  resourceType,
		ResourceID:    resourceID,
		ResourceTitle: resourceTitle,
	}
}

// WithRequest stamps the client address and user agent.
func (e *DomainEvent) WithRequest(ip, userAgent string) *DomainEvent {
	e.IPAddress = ip
	e.UserAgent = userAgent
	return e
}
