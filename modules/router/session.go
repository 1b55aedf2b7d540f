package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	domain "github.com/example/ops-realtime-demo/domain/chat"
	"github.com/example/ops-realtime-demo/domain/user"
	"github.com/example/ops-realtime-demo/modules/broadcast"
	"github.com/example/ops-realtime-demo/modules/chat"
)

// State is the lifecycle position of a session.
type State int

const (
	StateConnected State = iota
	StateInRoom
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateInRoom:
		return "in_room"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Session is the per-connection state machine.
type Session struct {
	router   *Router
	client   *broadcast.Client
	identity user.Identity

	mu          sync.Mutex
	state       State
	room        string
	typingRoom  string
	typingTimer *time.Timer
	typingGen   uint64

	closeOnce sync.Once
}

// State returns the session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Room returns the chat room the session is viewing, if any.
func (s *Session) Room() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room
}

// Identity returns the owner of the session.
func (s *Session) Identity() user.Identity {
	return s.identity
}

// Handle decodes one inbound frame and applies it. Malformed input produces an
// error frame for the sender and a wrapped ErrValidation; the session stays usable.
func (s *Session) Handle(ctx context.Context, raw []byte) error {
	if s.State() == StateDisconnected {
		return nil
	}

	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return s.reject(fmt.Errorf("%w: %v", ErrValidation, err))
	}

	var err error
	switch frame.Type {
	case TypeJoinRoom:
		err = s.joinRoom(ctx, frame.Data)
	case TypeMessageRoom:
		err = s.sendMessage(ctx, frame.Data)
	case TypeTyping:
		err = s.typing(frame.Data)
	case TypeStopTyping:
		err = s.stopTyping(frame.Data)
	case TypeNewUser:
		s.router.announcePresence()
	case TypeMarkNotificationRead:
		err = s.markRead(ctx, frame.Data)
	case TypeDeleteNotification:
		err = s.deleteNotification(ctx, frame.Data)
	case TypeETAUpdated, TypeProgressUpdated, TypeDelayAlert, TypePlanUpdated:
		err = s.emitBusinessEvent(frame.Type, frame.Data)
	case "":
		err = fmt.Errorf("%w: missing frame type", ErrValidation)
	default:
		err = fmt.Errorf("%w: unknown frame type %q", ErrValidation, frame.Type)
	}

	if errors.Is(err, ErrValidation) {
		return s.reject(err)
	}
	return err
}

func (s *Session) reject(err error) error {
	s.send(TypeError, ErrorPayload{Message: err.Error()})
	s.router.logger.Debug("frame rejected",
		"connection_id", s.client.ID, "user_id", s.identity.ID, "error", err)
	return err
}

func (s *Session) send(frameType string, data any) {
	s.client.Send(broadcast.Envelope{Type: frameType, Data: data})
}

// private rooms of other users cannot be joined or written to
func (s *Session) forbiddenRoom(room string) bool {
	return strings.HasPrefix(room, broadcast.UserRoom("")) && room != broadcast.UserRoom(s.identity.ID)
}

func (s *Session) joinRoom(ctx context.Context, data json.RawMessage) error {
	room, err := decodeRoom(data)
	if err != nil {
		return err
	}
	if err := chat.ValidateRoomName(room); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if s.forbiddenRoom(room) {
		return nil
	}

	hub := s.router.hub
	if !hub.Join(room, s.identity.ID) {
		return nil
	}
	prev := hub.SetActiveRoom(s.client.ID, room)
	if prev != "" && prev != room && !s.defaultRoom(prev) {
		hub.LeaveUnlessActive(prev, s.identity.ID)
	}

	s.mu.Lock()
	s.state = StateInRoom
	s.room = room
	s.mu.Unlock()

	groups := make([]domain.DateGroup, 0)
	if s.router.history != nil {
		msgs, err := s.router.history.Recent(ctx, room, chat.DefaultLimit)
		if err != nil {
			s.router.logger.Warn("failed to load room history", "room", room, "error", err)
		} else {
			groups = chat.GroupByDate(msgs)
		}
	}
	s.send(TypeRoomMessages, groups)
	return nil
}

func (s *Session) defaultRoom(room string) bool {
	switch room {
	case broadcast.UserRoom(s.identity.ID), broadcast.DepartmentRoom(s.identity.Department):
		return true
	case broadcast.OperationsRoom:
		return s.identity.IsOperations()
	}
	return false
}

func (s *Session) sendMessage(ctx context.Context, data json.RawMessage) error {
	var p messagePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("%w: message payload: %v", ErrValidation, err)
	}
	room := p.name()
	if err := chat.ValidateRoomName(room); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	body := p.text()
	if err := chat.ValidateMessage(body, p.Attachment); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}

	hub := s.router.hub
	if !hub.IsMember(room, s.identity.ID) {
		if room == broadcast.OperationsRoom {
			return nil
		}
		return fmt.Errorf("%w: not a member of room %q", ErrValidation, room)
	}

	now := s.router.now()
	msg := domain.Message{
		ID:         s.router.newID(),
		Room:       room,
		SenderID:   s.identity.ID,
		SenderName: s.identity.DisplayName,
		Kind:       domain.KindChat,
		Body:       body,
		Time:       p.Time,
		Date:       p.Date,
		Timestamp:  now,
		Attachment: p.Attachment,
	}
	if msg.Time == "" {
		msg.Time = now.Format("15:04")
	}
	if msg.Date == "" {
		msg.Date = now.Format("01/02/2006")
	}

	if s.router.history != nil {
		if err := s.router.history.Append(ctx, msg); err != nil {
			s.router.logger.Warn("failed to store chat message", "room", room, "error", err)
		}
	}

	hub.BroadcastChat(room,
		broadcast.Envelope{Type: TypeMessageRoom, Data: msg},
		broadcast.Envelope{Type: TypeActivity, Data: room},
		s.identity.ID)
	s.endTyping(room)
	return nil
}

func (s *Session) typing(data json.RawMessage) error {
	room, err := decodeRoom(data)
	if err != nil {
		return err
	}
	if room == "" || !s.router.hub.IsMember(room, s.identity.ID) {
		return nil
	}

	s.mu.Lock()
	if s.typingTimer != nil {
		s.typingTimer.Stop()
	}
	prev := s.typingRoom
	s.typingGen++
	gen := s.typingGen
	s.typingRoom = room
	s.typingTimer = time.AfterFunc(s.router.typingTimeout, func() { s.expireTyping(gen) })
	s.mu.Unlock()

	if prev != "" && prev != room {
		s.broadcastTyping(TypeStopTyping, prev)
	}
	s.broadcastTyping(TypeTyping, room)
	return nil
}

func (s *Session) stopTyping(data json.RawMessage) error {
	room, err := decodeRoom(data)
	if err != nil {
		return err
	}
	if room == "" {
		return nil
	}
	s.endTyping(room)
	return nil
}

// endTyping clears any pending indicator and tells the room the user stopped typing.
func (s *Session) endTyping(room string) {
	s.mu.Lock()
	if s.typingRoom == room {
		if s.typingTimer != nil {
			s.typingTimer.Stop()
			s.typingTimer = nil
		}
		s.typingRoom = ""
		s.typingGen++
	}
	s.mu.Unlock()

	if s.router.hub.IsMember(room, s.identity.ID) {
		s.broadcastTyping(TypeStopTyping, room)
	}
}

func (s *Session) expireTyping(gen uint64) {
	s.mu.Lock()
	if gen != s.typingGen || s.typingRoom == "" {
		s.mu.Unlock()
		return
	}
	room := s.typingRoom
	s.typingRoom = ""
	s.typingTimer = nil
	s.mu.Unlock()

	s.broadcastTyping(TypeStopTyping, room)
}

func (s *Session) broadcastTyping(frameType, room string) {
	s.router.hub.Broadcast(room,
		broadcast.Envelope{Type: frameType, Data: TypingPayload{User: s.identity.DisplayName, Room: room}},
		s.identity.ID)
}

func decodeNotificationRef(data json.RawMessage) (NotificationRef, error) {
	var ref NotificationRef
	if err := json.Unmarshal(data, &ref); err != nil {
		return ref, fmt.Errorf("%w: notification payload: %v", ErrValidation, err)
	}
	if ref.NotificationID == "" {
		return ref, fmt.Errorf("%w: notificationId is required", ErrValidation)
	}
	return ref, nil
}

func (s *Session) markRead(ctx context.Context, data json.RawMessage) error {
	ref, err := decodeNotificationRef(data)
	if err != nil {
		return err
	}
	if s.router.notifications == nil {
		s.send(TypeError, ErrorPayload{Message: "Failed to mark notification as read"})
		return nil
	}
	if err := s.router.notifications.MarkRead(ctx, s.identity.ID, ref.NotificationID); err != nil {
		s.send(TypeError, ErrorPayload{Message: "Failed to mark notification as read"})
		return fmt.Errorf("mark notification %s read: %w", ref.NotificationID, err)
	}
	s.send(TypeNotificationMarkedRead, ref)
	return nil
}

func (s *Session) deleteNotification(ctx context.Context, data json.RawMessage) error {
	ref, err := decodeNotificationRef(data)
	if err != nil {
		return err
	}
	if s.router.notifications == nil {
		s.send(TypeError, ErrorPayload{Message: "Failed to delete notification"})
		return nil
	}
	if err := s.router.notifications.Delete(ctx, s.identity.ID, ref.NotificationID); err != nil {
		s.send(TypeError, ErrorPayload{Message: "Failed to delete notification"})
		return fmt.Errorf("delete notification %s: %w", ref.NotificationID, err)
	}
	s.send(TypeNotificationDeleted, ref)
	return nil
}

func (s *Session) emitBusinessEvent(frameType string, data json.RawMessage) error {
	ev := businessEvents[frameType]
	if !s.router.hub.IsMember(broadcast.OperationsRoom, s.identity.ID) {
		return nil
	}
	p, err := decodeBusinessPayload(data)
	if err != nil {
		return err
	}
	if err := ev.validate(p); err != nil {
		return err
	}

	n := BusinessNotification{
		Message:   ev.message(p),
		Type:      ev.kind,
		Priority:  string(ev.priority),
		ServiceID: p.ServiceID,
		PlanID:    p.PlanID,
		UpdatedBy: s.identity.DisplayName,
		CreatedAt: s.router.now(),
	}
	if frameType == TypeDelayAlert {
		n.DelayInfo = &p
	}

	exclude := s.identity.ID
	if ev.echo {
		exclude = ""
	}
	delivered := s.router.hub.Broadcast(broadcast.OperationsRoom,
		broadcast.Envelope{Type: ev.frame, Data: n}, exclude)
	s.router.logger.Info("business event broadcast",
		"type", frameType, "user_id", s.identity.ID, "delivered", delivered)
	return nil
}

// Close ends the session. It is safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		typingRoom := s.typingRoom
		if s.typingTimer != nil {
			s.typingTimer.Stop()
			s.typingTimer = nil
		}
		s.typingRoom = ""
		s.typingGen++
		s.state = StateDisconnected
		s.room = ""
		s.mu.Unlock()

		if typingRoom != "" {
			s.broadcastTyping(TypeStopTyping, typingRoom)
		}
		s.router.hub.Unregister(s.client.ID)
		s.router.announcePresence()
		s.router.logger.Info("session closed", "connection_id", s.client.ID, "user_id", s.identity.ID)
	})
}
