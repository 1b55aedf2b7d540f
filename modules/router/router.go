// Package router turns inbound websocket frames into presence, room, chat and
// notification operations for one connection at a time.
package router

import (
	"context"
	"fmt"
	"time"

	"github.com/example/ops-realtime-demo/domain/user"
	"github.com/example/ops-realtime-demo/modules/broadcast"
	"github.com/example/ops-realtime-demo/modules/chat"
	"github.com/go-monolith/mono/pkg/types"
	nanoid "github.com/jaevor/go-nanoid"
)

// DefaultTypingTimeout is how long a typing indicator lives without a refresh.
const DefaultTypingTimeout = time.Second

// NotificationService is the part of the notification dispatcher a session uses.
type NotificationService interface {
	MarkRead(ctx context.Context, userID, id string) error
	Delete(ctx context.Context, userID, id string) error
	UnreadCount(ctx context.Context, userID string) (int64, error)
}

// Router holds the collaborators shared by every session.
type Router struct {
	hub           *broadcast.Hub
	history       chat.History
	notifications NotificationService
	logger        types.Logger
	newID         func() string
	typingTimeout time.Duration
	now           func() time.Time
}

// New creates a Router. history may be nil, in which case rooms have no replay.
func New(hub *broadcast.Hub, history chat.History, notifications NotificationService, logger types.Logger) (*Router, error) {
	gen, err := nanoid.Standard(21)
	if err != nil {
		return nil, fmt.Errorf("failed to create message id generator: %w", err)
	}
	return &Router{
		hub:           hub,
		history:       history,
		notifications: notifications,
		logger:        logger,
		newID:         gen,
		typingTimeout: DefaultTypingTimeout,
		now:           time.Now,
	}, nil
}

// SetTypingTimeout changes the typing expiry for sessions created afterwards.
func (r *Router) SetTypingTimeout(d time.Duration) {
	if d > 0 {
		r.typingTimeout = d
	}
}

// NewSession registers client for identity and sends the unread notification count.
func (r *Router) NewSession(ctx context.Context, client *broadcast.Client, identity user.Identity) *Session {
	r.hub.Register(client, identity)

	s := &Session{
		router:   r,
		client:   client,
		identity: identity,
		state:    StateConnected,
	}

	var count int64
	if r.notifications != nil {
		n, err := r.notifications.UnreadCount(ctx, identity.ID)
		if err != nil {
			r.logger.Warn("failed to count unread notifications", "user_id", identity.ID, "error", err)
		} else {
			count = n
		}
	}
	client.Send(broadcast.Envelope{Type: TypeNotificationCount, Data: CountPayload{Count: count}})

	r.logger.Info("session opened", "connection_id", client.ID, "user_id", identity.ID)
	return s
}

func (r *Router) announcePresence() {
	r.hub.BroadcastAll(broadcast.Envelope{Type: TypeOnlineUsers, Data: r.hub.OnlineCounts()})
}
