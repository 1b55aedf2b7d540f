package notify

import (
	"fmt"
	"time"

	"github.com/example/ops-realtime-demo/domain/notification"
)

// Request is the content of a targeted notification.
type Request struct {
	Message      string                `json:"message"`
	Type         string                `json:"type,omitempty"`
	Priority     notification.Priority `json:"priority,omitempty"`
	RelatedID    string                `json:"relatedId,omitempty"`
	RelatedModel string                `json:"relatedModel,omitempty"`
}

// Normalize fills defaults and validates the request.
func (r Request) Normalize() (Request, error) {
	if r.Message == "" {
		return r, fmt.Errorf("%w: message is required", ErrInvalidRequest)
	}
	if r.Type == "" {
		r.Type = notification.TypeInfo
	}
	if r.Priority == "" {
		r.Priority = notification.PriorityMedium
	}
	if !r.Priority.Valid() {
		return r, fmt.Errorf("%w: unknown priority %q", ErrInvalidRequest, r.Priority)
	}
	return r, nil
}

// UserNotificationRequest is the payload of the notify-user service.
type UserNotificationRequest struct {
	UserID       string  `json:"user_id"`
	Notification Request `json:"notification"`
}

// DepartmentNotificationRequest is the payload of the notify-department service.
type DepartmentNotificationRequest struct {
	Department   string  `json:"department"`
	Notification Request `json:"notification"`
}

// OperationsNotificationRequest is the payload of the notify-operations service.
type OperationsNotificationRequest struct {
	Notification Request `json:"notification"`
}

// NotificationsResponse reports the records written by a notify service.
// Error is set when some records could not be persisted.
type NotificationsResponse struct {
	Notifications []notification.Notification `json:"notifications"`
	Error         string                      `json:"error,omitempty"`
}

// SystemAlertRequest is the payload of the system-alert service.
type SystemAlertRequest struct {
	Title   string         `json:"title,omitempty"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// SystemAlertResponse reports how many connections the alert was queued for.
type SystemAlertResponse struct {
	Delivered int       `json:"delivered"`
	CreatedAt time.Time `json:"created_at"`
}

// InboxRequest is the payload of the list-notifications service.
type InboxRequest struct {
	UserID string `json:"user_id"`
	Limit  int    `json:"limit,omitempty"`
}

// InboxResponse lists a user's newest notifications.
type InboxResponse struct {
	Notifications []notification.Notification `json:"notifications"`
	UnreadCount   int64                       `json:"unreadCount"`
}
