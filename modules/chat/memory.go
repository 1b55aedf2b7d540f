package chat

import (
	"context"
	"sync"

	domain "github.com/example/ops-realtime-demo/domain/chat"
)

// MemoryHistory is a bounded, process-local History.
type MemoryHistory struct {
	mu         sync.RWMutex
	messages   map[string][]domain.Message // room -> messages, oldest first
	maxHistory int
}

var _ History = (*MemoryHistory)(nil)

// NewMemoryHistory creates a history keeping at most maxHistory messages per room.
func NewMemoryHistory(maxHistory int) *MemoryHistory {
	if maxHistory <= 0 {
		maxHistory = DefaultLimit
	}
	return &MemoryHistory{
		messages:   make(map[string][]domain.Message),
		maxHistory: maxHistory,
	}
}

// Append adds a message to its room's history.
func (s *MemoryHistory) Append(_ context.Context, msg domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages := append(s.messages[msg.Room], msg)
	// Trim to max history
	if len(messages) > s.maxHistory {
		messages = messages[len(messages)-s.maxHistory:]
	}
	s.messages[msg.Room] = messages
	return nil
}

// Recent returns up to limit of the newest messages of room, oldest first.
func (s *MemoryHistory) Recent(_ context.Context, room string, limit int) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages := s.messages[room]
	if limit <= 0 || limit > len(messages) {
		limit = len(messages)
	}

	start := len(messages) - limit
	result := make([]domain.Message, limit)
	copy(result, messages[start:])
	return result, nil
}

// Rooms returns the number of rooms with history.
func (s *MemoryHistory) Rooms() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}
