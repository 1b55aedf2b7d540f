package api

import (
	"time"

	"github.com/example/ops-realtime-demo/domain/notification"
	"github.com/example/ops-realtime-demo/modules/broadcast"
)

// Notification targets accepted by POST /api/v1/notifications.
const (
	TargetUser       = "user"
	TargetDepartment = "department"
	TargetOperations = "operations"
)

// PresenceResponse lists online users.
type PresenceResponse struct {
	Users []broadcast.UserPresence `json:"users"`
	Total int                      `json:"total"`
}

// MembersResponse lists the members of a room.
type MembersResponse struct {
	Room    string   `json:"room"`
	Members []string `json:"members"`
}

// NotificationRequest is the API request to raise a targeted notification.
type NotificationRequest struct {
	Target       string                `json:"target"`
	UserID       string                `json:"userId"`
	Department   string                `json:"department"`
	Message      string                `json:"message"`
	Type         string                `json:"type"`
	Priority     notification.Priority `json:"priority"`
	RelatedID    string                `json:"relatedId"`
	RelatedModel string                `json:"relatedModel"`
}

// NotificationResponse reports the notifications that were written.
type NotificationResponse struct {
	Notifications []notification.Notification `json:"notifications"`
	Error         string                      `json:"error,omitempty"`
}

// AlertRequest is the API request to raise a system-wide alert.
type AlertRequest struct {
	Title   string         `json:"title"`
	Message string         `json:"message"`
	Details map[string]any `json:"details"`
}

// AlertResponse acknowledges an accepted alert.
type AlertResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorResponse is the API error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HealthResponse is the API health check response.
type HealthResponse struct {
	Status  string         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}
