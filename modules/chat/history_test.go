package chat

import (
	"context"
	"fmt"
	"strings"
	"testing"

	domain "github.com/example/ops-realtime-demo/domain/chat"
	"github.com/go-monolith/mono/pkg/types"
)

// mockLogger implements types.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(_ string, _ ...any) {}
func (m *mockLogger) Info(_ string, _ ...any)  {}
func (m *mockLogger) Warn(_ string, _ ...any)  {}
func (m *mockLogger) Error(_ string, _ ...any) {}
func (m *mockLogger) With(_ ...any) types.Logger {
	return m
}
func (m *mockLogger) WithModule(_ string) types.Logger {
	return m
}
func (m *mockLogger) WithError(_ error) types.Logger {
	return m
}

func TestValidateRoomName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"valid", "General", nil},
		{"empty", "", ErrRoomNameEmpty},
		{"too long", strings.Repeat("a", MaxRoomNameLength+1), ErrRoomNameTooLong},
		{"invalid utf8", "room\xff", ErrRoomNameInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRoomName(tt.input)
			if err != tt.wantErr {
				t.Errorf("ValidateRoomName(%q) = %v, want %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateMessage(t *testing.T) {
	file := &domain.Attachment{URL: "/uploads/manifest.pdf", Name: "manifest.pdf"}

	tests := []struct {
		name       string
		content    string
		attachment *domain.Attachment
		wantErr    error
	}{
		{"valid", "Hello", nil, nil},
		{"empty", "", nil, ErrMessageEmpty},
		{"empty with attachment", "", file, nil},
		{"empty with blank attachment", "", &domain.Attachment{}, ErrMessageEmpty},
		{"too long", strings.Repeat("a", MaxMessageLength+1), nil, ErrMessageTooLong},
		{"invalid utf8", "hi\xff", nil, ErrMessageInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMessage(tt.content, tt.attachment)
			if err != tt.wantErr {
				t.Errorf("ValidateMessage(%q) = %v, want %v", tt.content, err, tt.wantErr)
			}
		})
	}
}

func TestGroupByDate(t *testing.T) {
	messages := []domain.Message{
		{ID: "1", Date: "01/02/2026"},
		{ID: "2", Date: "01/02/2026"},
		{ID: "3", Date: "01/03/2026"},
		{ID: "4", Date: "01/03/2026"},
	}

	groups := GroupByDate(messages)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if groups[0].Date != "01/02/2026" || len(groups[0].Messages) != 2 {
		t.Errorf("unexpected first group %+v", groups[0])
	}
	if groups[1].Messages[1].ID != "4" {
		t.Errorf("expected message order to be kept, got %+v", groups[1].Messages)
	}

	if empty := GroupByDate(nil); empty == nil || len(empty) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", empty)
	}
}

func TestMemoryHistory_AppendAndRecent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryHistory(100)

	for i := 0; i < 5; i++ {
		msg := domain.Message{ID: fmt.Sprintf("msg-%d", i), Room: "General", Body: fmt.Sprintf("Message %d", i)}
		if err := store.Append(ctx, msg); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	history, _ := store.Recent(ctx, "General", 10)
	if len(history) != 5 {
		t.Errorf("Expected 5 messages, got %d", len(history))
	}

	history, _ = store.Recent(ctx, "General", 3)
	if len(history) != 3 {
		t.Errorf("Expected 3 messages, got %d", len(history))
	}
	// Should be the last 3 messages
	if history[0].ID != "msg-2" {
		t.Errorf("Expected first message to be msg-2, got %s", history[0].ID)
	}

	history, _ = store.Recent(ctx, "Empty", 10)
	if len(history) != 0 {
		t.Errorf("Expected no messages for unknown room, got %d", len(history))
	}
}

func TestMemoryHistory_MaxHistory(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryHistory(3)

	for i := 0; i < 5; i++ {
		_ = store.Append(ctx, domain.Message{ID: fmt.Sprintf("msg-%d", i), Room: "General"})
	}

	history, _ := store.Recent(ctx, "General", 0)
	if len(history) != 3 {
		t.Errorf("Expected 3 messages (max history), got %d", len(history))
	}
	if history[0].ID != "msg-2" {
		t.Errorf("Expected oldest message to be msg-2, got %s", history[0].ID)
	}
	if store.Rooms() != 1 {
		t.Errorf("Expected 1 room, got %d", store.Rooms())
	}
}

func TestModule_MemoryBackend(t *testing.T) {
	m := NewModule(Config{MaxHistory: 10}, &mockLogger{})
	ctx := context.Background()

	if m.Name() != "chat" {
		t.Errorf("Name() = %q, want 'chat'", m.Name())
	}
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, ok := m.History().(*MemoryHistory); !ok {
		t.Errorf("expected memory history, got %T", m.History())
	}
	if h := m.Health(ctx); !h.Healthy || h.Details["backend"] != "memory" {
		t.Errorf("unexpected health %+v", h)
	}
	if err := m.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
}
