package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	domain "github.com/example/ops-realtime-demo/domain/chat"
	"github.com/example/ops-realtime-demo/domain/user"
	"github.com/example/ops-realtime-demo/modules/broadcast"
	"github.com/example/ops-realtime-demo/modules/chat"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type recorder struct {
	mu     sync.Mutex
	frames []frame
}

func (r *recorder) WriteMessage(_ int, data []byte) error {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	r.mu.Lock()
	r.frames = append(r.frames, f)
	r.mu.Unlock()
	return nil
}

func (r *recorder) Close() error { return nil }

func (r *recorder) snapshot() []frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]frame(nil), r.frames...)
}

type fakeNotifications struct {
	mu      sync.Mutex
	unread  int64
	known   map[string]string // notification id -> recipient
	read    []string
	deleted []string
}

func (f *fakeNotifications) MarkRead(_ context.Context, userID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.known[id] != userID {
		return errors.New("not found")
	}
	f.read = append(f.read, id)
	return nil
}

func (f *fakeNotifications) Delete(_ context.Context, userID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.known[id] != userID {
		return errors.New("not found")
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeNotifications) UnreadCount(_ context.Context, _ string) (int64, error) {
	return f.unread, nil
}

var (
	alice = user.Identity{ID: "a", DisplayName: "Alice", Department: "Sales"}
	bob   = user.Identity{ID: "b", DisplayName: "Bob", Department: "Operations"}
	cleo  = user.Identity{ID: "c", DisplayName: "Cleo", Department: "Operations"}
)

type fixture struct {
	hub     *broadcast.Hub
	router  *Router
	history *chat.MemoryHistory
	notes   *fakeNotifications
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	hub := broadcast.NewHub(&mockLogger{})
	history := chat.NewMemoryHistory(50)
	notes := &fakeNotifications{unread: 3, known: map[string]string{"n1": "a", "n2": "b"}}
	r, err := New(hub, history, notes, &mockLogger{})
	require.NoError(t, err)
	r.now = func() time.Time { return time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC) }
	t.Cleanup(func() { hub.Close() })
	return &fixture{hub: hub, router: r, history: history, notes: notes}
}

type peer struct {
	session *Session
	client  *broadcast.Client
	out     *recorder
}

func (f *fixture) connect(t *testing.T, id user.Identity) *peer {
	t.Helper()
	out := &recorder{}
	client := broadcast.NewClient(out, id.ID, 64)
	go client.WritePump()
	s := f.router.NewSession(context.Background(), client, id)
	p := &peer{session: s, client: client, out: out}
	p.sync(t)
	return p
}

// sync waits until every frame queued for p so far has been written.
func (p *peer) sync(t *testing.T) []frame {
	t.Helper()
	marker := fmt.Sprintf("marker-%d", time.Now().UnixNano())
	require.True(t, p.client.Send(broadcast.Envelope{Type: marker}))
	var got []frame
	require.Eventually(t, func() bool {
		got = got[:0]
		for _, f := range p.out.snapshot() {
			if f.Type == marker {
				return true
			}
			if len(f.Type) < 7 || f.Type[:7] != "marker-" {
				got = append(got, f)
			}
		}
		return false
	}, time.Second, time.Millisecond)
	return got
}

// take returns the frames written since the previous take.
func (p *peer) take(t *testing.T) []frame {
	t.Helper()
	frames := p.sync(t)
	p.out.mu.Lock()
	p.out.frames = nil
	p.out.mu.Unlock()
	return frames
}

func (p *peer) handle(t *testing.T, frameType string, data any) error {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"type": frameType, "data": data})
	require.NoError(t, err)
	return p.session.Handle(context.Background(), raw)
}

func frameTypes(frames []frame) []string {
	out := make([]string, 0, len(frames))
	for _, f := range frames {
		out = append(out, f.Type)
	}
	return out
}

func find(t *testing.T, frames []frame, frameType string) json.RawMessage {
	t.Helper()
	for _, f := range frames {
		if f.Type == frameType {
			return f.Data
		}
	}
	t.Fatalf("no %s frame in %v", frameType, frameTypes(frames))
	return nil
}

func TestNewSession_SendsUnreadCount(t *testing.T) {
	f := newFixture(t)
	p := f.connect(t, alice)

	frames := p.take(t)
	var count CountPayload
	require.NoError(t, json.Unmarshal(find(t, frames, TypeNotificationCount), &count))
	assert.Equal(t, int64(3), count.Count)
	assert.Equal(t, StateConnected, p.session.State())
	assert.True(t, f.hub.IsOnline("a"))
}

func TestHandle_MalformedFrames(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "{oops"},
		{"missing type", `{"data":{}}`},
		{"unknown type", `{"type":"teleport","data":{}}`},
		{"join without room", `{"type":"join-room","data":{}}`},
		{"message not object", `{"type":"message-room","data":42}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			p := f.connect(t, alice)
			p.take(t)

			err := p.session.Handle(context.Background(), []byte(tt.raw))
			require.ErrorIs(t, err, ErrValidation)

			frames := p.take(t)
			require.Equal(t, []string{TypeError}, frameTypes(frames))
			assert.Equal(t, StateConnected, p.session.State())
		})
	}
}

func TestJoinRoom_AcceptsStringOrObject(t *testing.T) {
	f := newFixture(t)
	p := f.connect(t, alice)
	p.take(t)

	require.NoError(t, p.handle(t, TypeJoinRoom, "General"))
	assert.True(t, f.hub.IsMember("General", "a"))
	assert.Equal(t, "General", p.session.Room())
	assert.Equal(t, StateInRoom, p.session.State())

	require.NoError(t, p.handle(t, TypeJoinRoom, map[string]string{"roomName": "Dispatch"}))
	assert.True(t, f.hub.IsMember("Dispatch", "a"))
	assert.False(t, f.hub.IsMember("General", "a"), "previous room is left")
	assert.Equal(t, "Dispatch", f.hub.ActiveRoom(p.client.ID))
}

func TestJoinRoom_ReplaysHistoryToRequesterOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.history.Append(ctx, domain.Message{ID: "1", Room: "General", Body: "hi", Date: "03/01/2026"}))
	require.NoError(t, f.history.Append(ctx, domain.Message{ID: "2", Room: "General", Body: "yo", Date: "03/02/2026"}))

	a := f.connect(t, alice)
	b := f.connect(t, bob)
	require.NoError(t, b.handle(t, TypeJoinRoom, "General"))
	b.take(t)
	a.take(t)

	require.NoError(t, a.handle(t, TypeJoinRoom, "General"))

	var groups []domain.DateGroup
	require.NoError(t, json.Unmarshal(find(t, a.take(t), TypeRoomMessages), &groups))
	require.Len(t, groups, 2)
	assert.Equal(t, "03/01/2026", groups[0].Date)
	assert.Equal(t, "yo", groups[1].Messages[0].Body)

	assert.NotContains(t, frameTypes(b.take(t)), TypeRoomMessages)
}

func TestJoinRoom_PrivilegeViolationsAreSilent(t *testing.T) {
	f := newFixture(t)
	a := f.connect(t, alice)
	f.connect(t, bob)
	a.take(t)

	require.NoError(t, a.handle(t, TypeJoinRoom, broadcast.OperationsRoom))
	require.NoError(t, a.handle(t, TypeJoinRoom, broadcast.UserRoom("b")))

	assert.False(t, f.hub.IsMember(broadcast.OperationsRoom, "a"))
	assert.False(t, f.hub.IsMember(broadcast.UserRoom("b"), "a"))
	assert.Empty(t, a.take(t))
}

func TestMessageRoom_ExcludesSenderAndSignalsOtherViewers(t *testing.T) {
	f := newFixture(t)
	a := f.connect(t, alice)
	b := f.connect(t, bob)
	c := f.connect(t, cleo)

	require.NoError(t, a.handle(t, TypeJoinRoom, "General"))
	require.NoError(t, b.handle(t, TypeJoinRoom, "General"))
	require.NoError(t, c.handle(t, TypeJoinRoom, "General"))
	require.NoError(t, c.handle(t, TypeJoinRoom, map[string]string{"room": "Dispatch"}))
	// cleo left General on switching, rejoin her as a background member
	require.True(t, f.hub.Join("General", "c"))
	a.take(t)
	b.take(t)
	c.take(t)

	require.NoError(t, a.handle(t, TypeMessageRoom, map[string]string{"roomName": "General", "body": "truck 7 loaded"}))

	aFrames := a.take(t)
	assert.NotContains(t, frameTypes(aFrames), TypeMessageRoom)

	bFrames := b.take(t)
	var msg domain.Message
	require.NoError(t, json.Unmarshal(find(t, bFrames, TypeMessageRoom), &msg))
	assert.Equal(t, "truck 7 loaded", msg.Body)
	assert.Equal(t, "Alice", msg.SenderName)
	assert.Equal(t, "10:30", msg.Time)
	assert.Equal(t, "03/02/2026", msg.Date)
	assert.Len(t, msg.ID, 21)
	assert.Contains(t, frameTypes(bFrames), TypeStopTyping)

	cFrames := c.take(t)
	assert.NotContains(t, frameTypes(cFrames), TypeMessageRoom)
	var room string
	require.NoError(t, json.Unmarshal(find(t, cFrames, TypeActivity), &room))
	assert.Equal(t, "General", room)

	stored, err := f.history.Recent(context.Background(), "General", 10)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, msg.ID, stored[0].ID)
}

func TestMessageRoom_NonMember(t *testing.T) {
	f := newFixture(t)
	a := f.connect(t, alice)
	a.take(t)

	err := a.handle(t, TypeMessageRoom, map[string]string{"roomName": "General", "body": "hello"})
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, []string{TypeError}, frameTypes(a.take(t)))

	require.NoError(t, a.handle(t, TypeMessageRoom, map[string]string{"roomName": broadcast.OperationsRoom, "body": "hello"}))
	assert.Empty(t, a.take(t))
}

func TestMessageRoom_AttachmentWithoutBody(t *testing.T) {
	f := newFixture(t)
	a := f.connect(t, alice)
	require.NoError(t, a.handle(t, TypeJoinRoom, "General"))
	a.take(t)

	err := a.handle(t, TypeMessageRoom, map[string]any{
		"roomName":   "General",
		"attachment": map[string]any{"fileUrl": "https://files/pod.pdf", "fileName": "pod.pdf"},
	})
	require.NoError(t, err)

	stored, err := f.history.Recent(context.Background(), "General", 10)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.NotNil(t, stored[0].Attachment)
	assert.Equal(t, "pod.pdf", stored[0].Attachment.Name)
}

func TestTyping_BroadcastsAndExpires(t *testing.T) {
	f := newFixture(t)
	f.router.SetTypingTimeout(100 * time.Millisecond)
	a := f.connect(t, alice)
	b := f.connect(t, bob)
	require.NoError(t, a.handle(t, TypeJoinRoom, "General"))
	require.NoError(t, b.handle(t, TypeJoinRoom, "General"))
	a.take(t)
	b.take(t)

	require.NoError(t, a.handle(t, TypeTyping, map[string]string{"room": "General"}))

	var typing TypingPayload
	require.NoError(t, json.Unmarshal(find(t, b.take(t), TypeTyping), &typing))
	assert.Equal(t, TypingPayload{User: "Alice", Room: "General"}, typing)
	assert.Empty(t, a.take(t))

	require.Eventually(t, func() bool {
		for _, fr := range b.out.snapshot() {
			if fr.Type == TypeStopTyping {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
}

func TestNotificationFrames(t *testing.T) {
	f := newFixture(t)
	a := f.connect(t, alice)
	a.take(t)

	require.NoError(t, a.handle(t, TypeMarkNotificationRead, NotificationRef{NotificationID: "n1"}))
	var ack NotificationRef
	require.NoError(t, json.Unmarshal(find(t, a.take(t), TypeNotificationMarkedRead), &ack))
	assert.Equal(t, "n1", ack.NotificationID)

	require.NoError(t, a.handle(t, TypeDeleteNotification, NotificationRef{NotificationID: "n1"}))
	find(t, a.take(t), TypeNotificationDeleted)
	assert.Equal(t, []string{"n1"}, f.notes.read)
	assert.Equal(t, []string{"n1"}, f.notes.deleted)

	err := a.handle(t, TypeMarkNotificationRead, NotificationRef{NotificationID: "missing"})
	require.Error(t, err)
	var payload ErrorPayload
	require.NoError(t, json.Unmarshal(find(t, a.take(t), TypeError), &payload))
	assert.Equal(t, "Failed to mark notification as read", payload.Message)

	err = a.handle(t, TypeDeleteNotification, map[string]string{})
	require.ErrorIs(t, err, ErrValidation)
}

func TestNotificationFrames_OtherUsersNotifications(t *testing.T) {
	f := newFixture(t)
	a := f.connect(t, alice)
	a.take(t)

	require.Error(t, a.handle(t, TypeMarkNotificationRead, NotificationRef{NotificationID: "n2"}))
	var payload ErrorPayload
	require.NoError(t, json.Unmarshal(find(t, a.take(t), TypeError), &payload))
	assert.Equal(t, "Failed to mark notification as read", payload.Message)

	require.Error(t, a.handle(t, TypeDeleteNotification, NotificationRef{NotificationID: "n2"}))
	require.NoError(t, json.Unmarshal(find(t, a.take(t), TypeError), &payload))
	assert.Equal(t, "Failed to delete notification", payload.Message)

	assert.Empty(t, f.notes.read)
	assert.Empty(t, f.notes.deleted)
}

// An operations member raising a delay alert sees it too; a Sales user sees nothing.
func TestDelayAlert_DeliveredToWholeOperationsRoom(t *testing.T) {
	f := newFixture(t)
	a := f.connect(t, alice)
	b := f.connect(t, bob)
	c := f.connect(t, cleo)
	a.take(t)
	b.take(t)
	c.take(t)

	require.NoError(t, b.handle(t, TypeDelayAlert, map[string]any{"consignment": "CN-1", "delayHours": 3}))

	for _, p := range []*peer{b, c} {
		var n BusinessNotification
		require.NoError(t, json.Unmarshal(find(t, p.take(t), "delay_alert_notification"), &n))
		assert.Equal(t, "DELAY ALERT: CN-1 is 3 hours overdue", n.Message)
		assert.Equal(t, "high", n.Priority)
		assert.Equal(t, "delay_alert", n.Type)
		assert.Equal(t, "Bob", n.UpdatedBy)
		require.NotNil(t, n.DelayInfo)
	}
	assert.Empty(t, a.take(t))
}

func TestBusinessEvents_ExcludeEmitter(t *testing.T) {
	tests := []struct {
		name    string
		typ     string
		payload map[string]any
		frame   string
		message string
	}{
		{"eta", TypeETAUpdated, map[string]any{"consignment": "CN-2", "serviceId": "s2"},
			"eta_update_notification", "ETA updated for shipment CN-2"},
		{"progress", TypeProgressUpdated, map[string]any{"consignment": "CN-3", "newProgress": "On Transit"},
			"progress_update_notification", "Progress updated: CN-3 moved to On Transit"},
		{"plan", TypePlanUpdated, map[string]any{"planId": "p1", "planTitle": "Week 12"},
			"plan_update_notification", "Operations plan updated: Week 12"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			b := f.connect(t, bob)
			c := f.connect(t, cleo)
			b.take(t)
			c.take(t)

			require.NoError(t, b.handle(t, tt.typ, tt.payload))

			var n BusinessNotification
			require.NoError(t, json.Unmarshal(find(t, c.take(t), tt.frame), &n))
			assert.Equal(t, tt.message, n.Message)
			assert.Equal(t, "medium", n.Priority)
			assert.Empty(t, b.take(t))
		})
	}
}

func TestBusinessEvents_Validation(t *testing.T) {
	f := newFixture(t)
	a := f.connect(t, alice)
	b := f.connect(t, bob)
	c := f.connect(t, cleo)
	a.take(t)
	b.take(t)
	c.take(t)

	// non-operations senders are ignored before the payload is looked at
	require.NoError(t, a.handle(t, TypeDelayAlert, "garbage"))
	assert.Empty(t, a.take(t))

	err := b.handle(t, TypeDelayAlert, map[string]any{"consignment": "CN-1", "delayHours": -1})
	require.ErrorIs(t, err, ErrValidation)
	err = b.handle(t, TypeProgressUpdated, map[string]any{"consignment": "CN-1"})
	require.ErrorIs(t, err, ErrValidation)
	err = b.handle(t, TypeETAUpdated, "CN-1")
	require.ErrorIs(t, err, ErrValidation)

	assert.Equal(t, []string{TypeError, TypeError, TypeError}, frameTypes(b.take(t)))
	assert.Empty(t, c.take(t))
}

func TestClose_UnregistersAndAnnouncesPresence(t *testing.T) {
	f := newFixture(t)
	a := f.connect(t, alice)
	b := f.connect(t, bob)
	require.NoError(t, a.handle(t, TypeJoinRoom, "General"))
	require.NoError(t, b.handle(t, TypeJoinRoom, "General"))
	require.NoError(t, a.handle(t, TypeTyping, "General"))
	b.take(t)

	a.session.Close()
	a.session.Close()

	assert.False(t, f.hub.IsOnline("a"))
	assert.False(t, f.hub.IsMember("General", "a"))
	assert.Equal(t, StateDisconnected, a.session.State())

	frames := b.take(t)
	assert.Contains(t, frameTypes(frames), TypeStopTyping)
	var counts map[string]int
	require.NoError(t, json.Unmarshal(find(t, frames, TypeOnlineUsers), &counts))
	assert.Equal(t, 1, counts["General"])
	assert.Equal(t, 1, counts["Operations"])
	assert.Zero(t, counts["Sales"])

	assert.NoError(t, a.session.Handle(context.Background(), []byte(`{"type":"new-user"}`)))
}

func TestNewUser_AnnouncesOnlineCounts(t *testing.T) {
	f := newFixture(t)
	a := f.connect(t, alice)
	b := f.connect(t, bob)
	a.take(t)
	b.take(t)

	require.NoError(t, a.handle(t, TypeNewUser, nil))

	for _, p := range []*peer{a, b} {
		var counts map[string]int
		require.NoError(t, json.Unmarshal(find(t, p.take(t), TypeOnlineUsers), &counts))
		assert.Equal(t, 1, counts[broadcast.OperationsRoom])
		assert.Equal(t, 1, counts["Sales"])
	}
}
