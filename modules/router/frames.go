package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domain "github.com/example/ops-realtime-demo/domain/chat"
)

// ErrValidation marks a malformed frame or payload. The sender gets an error
// frame and the session stays open.
var ErrValidation = errors.New("invalid frame")

// Inbound frame types.
const (
	TypeJoinRoom             = "join-room"
	TypeMessageRoom          = "message-room"
	TypeTyping               = "typing"
	TypeStopTyping           = "stop-typing"
	TypeNewUser              = "new-user"
	TypeMarkNotificationRead = "mark_notification_read"
	TypeDeleteNotification   = "delete_notification"
	TypeETAUpdated           = "eta_updated"
	TypeProgressUpdated      = "progress_updated"
	TypeDelayAlert           = "delay_alert"
	TypePlanUpdated          = "plan_updated"
)

// Outbound frame types.
const (
	TypeRoomMessages           = "room-messages"
	TypeOnlineUsers            = "online-users"
	TypeActivity               = "notifications"
	TypeNotificationCount      = "notification_count"
	TypeNotificationMarkedRead = "notification_marked_read"
	TypeNotificationDeleted    = "notification_deleted"
	TypeError                  = "error"
)

// Frame is one inbound message: {"type": ..., "data": ...}.
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ErrorPayload is the body of an error frame.
type ErrorPayload struct {
	Message string `json:"message"`
}

// TypingPayload is the body of typing and stop-typing frames sent to other members.
type TypingPayload struct {
	User string `json:"user"`
	Room string `json:"room"`
}

// NotificationRef identifies a notification in mark-read and delete frames and their acks.
type NotificationRef struct {
	NotificationID string `json:"notificationId"`
}

// CountPayload is the body of notification_count.
type CountPayload struct {
	Count int64 `json:"count"`
}

type roomPayload struct {
	RoomName string `json:"roomName"`
	Room     string `json:"room"`
}

func (p roomPayload) name() string {
	if p.RoomName != "" {
		return p.RoomName
	}
	return p.Room
}

// decodeRoom accepts either a bare room name or an object carrying roomName or room.
func decodeRoom(data json.RawMessage) (string, error) {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		return name, nil
	}
	var p roomPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return "", fmt.Errorf("%w: room payload: %v", ErrValidation, err)
	}
	return p.name(), nil
}

type messagePayload struct {
	roomPayload
	Body       string             `json:"body"`
	Content    string             `json:"content"`
	Time       string             `json:"time"`
	Date       string             `json:"date"`
	Attachment *domain.Attachment `json:"attachment"`
}

func (p messagePayload) text() string {
	if p.Body != "" {
		return p.Body
	}
	return p.Content
}

// BusinessPayload is the union of the fields the operations events carry.
type BusinessPayload struct {
	Consignment string   `json:"consignment,omitempty"`
	ServiceID   string   `json:"serviceId,omitempty"`
	NewProgress string   `json:"newProgress,omitempty"`
	DelayHours  *float64 `json:"delayHours,omitempty"`
	PlanID      string   `json:"planId,omitempty"`
	PlanTitle   string   `json:"planTitle,omitempty"`
}

// BusinessNotification is what the operations room receives for a business event.
type BusinessNotification struct {
	Message   string           `json:"message"`
	Type      string           `json:"type"`
	Priority  string           `json:"priority"`
	ServiceID string           `json:"serviceId,omitempty"`
	PlanID    string           `json:"planId,omitempty"`
	UpdatedBy string           `json:"updatedBy"`
	DelayInfo *BusinessPayload `json:"delayInfo,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}
