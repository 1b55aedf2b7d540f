// Package notification holds the durable notification record and its vocabulary.
package notification

import "time"

// Priority ranks a notification for the client.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Notification types raised by the core.
const (
	TypeInfo           = "info"
	TypeETAChange      = "eta_change"
	TypeProgressUpdate = "progress_update"
	TypeDelayAlert     = "delay_alert"
	TypePlanUpdate     = "plan_update"
	TypeSystemAlert    = "system_alert"
)

// Notification is a durable per-recipient record.
type Notification struct {
	ID           string    `gorm:"primaryKey;size:36" json:"_id"`
	RecipientID  string    `gorm:"index;not null;type:text" json:"recipient"`
	Message      string    `gorm:"not null;type:text" json:"message"`
	Type         string    `gorm:"size:32;not null" json:"type"`
	Priority     Priority  `gorm:"size:16;not null;default:medium" json:"priority"`
	RelatedID    string    `gorm:"index;type:text" json:"relatedId,omitempty"`
	RelatedModel string    `gorm:"size:64" json:"relatedModel,omitempty"`
	IsRead       bool      `gorm:"not null;default:false" json:"isRead"`
	CreatedAt    time.Time `json:"createdAt"`
}

// TableName returns the table name for the Notification entity.
func (Notification) TableName() string {
	return "notifications"
}

// Alert is a transient all-hands alert; it is never persisted.
type Alert struct {
	Message   string         `json:"message"`
	Title     string         `json:"title,omitempty"`
	Type      string         `json:"type"`
	Priority  Priority       `json:"priority"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}
