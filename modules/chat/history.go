// Package chat keeps the short, transient per-room history replayed on join-room.
package chat

import (
	"context"
	"errors"
	"unicode/utf8"

	domain "github.com/example/ops-realtime-demo/domain/chat"
)

// Validation constants
const (
	MaxRoomNameLength = 100
	MaxMessageLength  = 5000
	DefaultLimit      = 100
)

// Validation errors
var (
	ErrRoomNameEmpty   = errors.New("room name cannot be empty")
	ErrRoomNameTooLong = errors.New("room name exceeds maximum length")
	ErrRoomNameInvalid = errors.New("room name contains invalid characters")
	ErrMessageEmpty    = errors.New("message content cannot be empty")
	ErrMessageTooLong  = errors.New("message exceeds maximum length")
	ErrMessageInvalid  = errors.New("message contains invalid characters")
)

// History stores recent messages per room.
type History interface {
	Append(ctx context.Context, msg domain.Message) error
	Recent(ctx context.Context, room string, limit int) ([]domain.Message, error)
}

// ValidateRoomName validates a room name.
func ValidateRoomName(name string) error {
	if name == "" {
		return ErrRoomNameEmpty
	}
	if len(name) > MaxRoomNameLength {
		return ErrRoomNameTooLong
	}
	if !utf8.ValidString(name) {
		return ErrRoomNameInvalid
	}
	return nil
}

// ValidateMessage validates message content. An empty body is allowed when a file is attached.
func ValidateMessage(content string, attachment *domain.Attachment) error {
	if content == "" {
		if attachment != nil && attachment.URL != "" {
			return nil
		}
		return ErrMessageEmpty
	}
	if len(content) > MaxMessageLength {
		return ErrMessageTooLong
	}
	if !utf8.ValidString(content) {
		return ErrMessageInvalid
	}
	return nil
}

// GroupByDate groups messages by their Date field, keeping the order in which
// each date first appears and the order of messages within a date.
func GroupByDate(messages []domain.Message) []domain.DateGroup {
	groups := make([]domain.DateGroup, 0)
	index := make(map[string]int)
	for _, msg := range messages {
		i, ok := index[msg.Date]
		if !ok {
			i = len(groups)
			index[msg.Date] = i
			groups = append(groups, domain.DateGroup{Date: msg.Date})
		}
		groups[i].Messages = append(groups[i].Messages, msg)
	}
	return groups
}
