// Package notify persists notifications and delivers them to connected users.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/ops-realtime-demo/domain/notification"
	"github.com/example/ops-realtime-demo/domain/user"
	"github.com/example/ops-realtime-demo/modules/broadcast"
	"github.com/example/ops-realtime-demo/modules/directory"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/google/uuid"
)

// Frame types sent by the dispatcher.
const (
	FrameNotification = "notification"
	FrameSystemAlert  = "system_alert"
)

// MaxInboxSize caps how many notifications Inbox returns.
const MaxInboxSize = 50

// Deliverer pushes frames to live connections.
type Deliverer interface {
	SendToUser(userID string, env broadcast.Envelope) int
	BroadcastAll(env broadcast.Envelope) int
}

// Dispatcher writes a notification record before delivering it.
type Dispatcher struct {
	store     Store
	users     directory.Directory
	deliverer Deliverer
	logger    types.Logger
	now       func() time.Time
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(store Store, users directory.Directory, deliverer Deliverer, logger types.Logger) *Dispatcher {
	return &Dispatcher{
		store:     store,
		users:     users,
		deliverer: deliverer,
		logger:    logger,
		now:       time.Now,
	}
}

func (d *Dispatcher) record(recipientID string, req Request) *notification.Notification {
	return &notification.Notification{
		ID:           uuid.New().String(),
		RecipientID:  recipientID,
		Message:      req.Message,
		Type:         req.Type,
		Priority:     req.Priority,
		RelatedID:    req.RelatedID,
		RelatedModel: req.RelatedModel,
		CreatedAt:    d.now(),
	}
}

func (d *Dispatcher) deliver(n *notification.Notification) int {
	return d.deliverer.SendToUser(n.RecipientID, broadcast.Envelope{Type: FrameNotification, Data: n})
}

// NotifyUser persists one notification for userID and then delivers it to
// every live connection of that user.
func (d *Dispatcher) NotifyUser(ctx context.Context, userID string, req Request) (*notification.Notification, error) {
	req, err := req.Normalize()
	if err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: recipient is required", ErrInvalidRequest)
	}

	n := d.record(userID, req)
	if err := d.store.Create(ctx, n); err != nil {
		d.logger.Error("failed to persist notification", "user_id", userID, "type", req.Type, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	delivered := d.deliver(n)
	d.logger.Debug("notification sent", "user_id", userID, "id", n.ID, "connections", delivered)
	return n, nil
}

// NotifyDepartment writes one record per department member, then delivers the
// records that were written. Failed rows do not undo successful ones; their
// errors are joined and returned wrapped in ErrPersistence.
func (d *Dispatcher) NotifyDepartment(ctx context.Context, department string, req Request) ([]notification.Notification, error) {
	req, err := req.Normalize()
	if err != nil {
		return nil, err
	}

	members, err := d.users.FindUsersByDepartment(ctx, department)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve department %s: %w", department, err)
	}

	saved := make([]notification.Notification, 0, len(members))
	var errs []error
	for _, u := range members {
		n := d.record(u.ID, req)
		if err := d.store.Create(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("user %s: %w", u.ID, err))
			continue
		}
		saved = append(saved, *n)
	}

	for i := range saved {
		d.deliver(&saved[i])
	}

	d.logger.Info("department notified",
		"department", department, "type", req.Type, "saved", len(saved), "failed", len(errs))
	if len(errs) > 0 {
		return saved, fmt.Errorf("%w: %w", ErrPersistence, errors.Join(errs...))
	}
	return saved, nil
}

// NotifyOperationsTeam notifies every member of the Operations department.
func (d *Dispatcher) NotifyOperationsTeam(ctx context.Context, req Request) ([]notification.Notification, error) {
	return d.NotifyDepartment(ctx, user.OperationsDepartment, req)
}

// BroadcastSystemAlert delivers a transient alert to every live connection.
// The alert is not persisted and its priority is always high.
func (d *Dispatcher) BroadcastSystemAlert(alert notification.Alert) (notification.Alert, int) {
	alert.Type = notification.TypeSystemAlert
	alert.Priority = notification.PriorityHigh
	alert.CreatedAt = d.now()

	delivered := d.deliverer.BroadcastAll(broadcast.Envelope{Type: FrameSystemAlert, Data: alert})
	d.logger.Info("system alert broadcast", "title", alert.Title, "connections", delivered)
	return alert, delivered
}

// MarkRead flags one of userID's notifications as read.
func (d *Dispatcher) MarkRead(ctx context.Context, userID, id string) error {
	if id == "" {
		return fmt.Errorf("%w: notification id is required", ErrInvalidRequest)
	}
	return d.store.MarkRead(ctx, userID, id)
}

// Delete removes one of userID's notifications.
func (d *Dispatcher) Delete(ctx context.Context, userID, id string) error {
	if id == "" {
		return fmt.Errorf("%w: notification id is required", ErrInvalidRequest)
	}
	return d.store.Delete(ctx, userID, id)
}

// Inbox returns userID's newest notifications and unread count.
func (d *Dispatcher) Inbox(ctx context.Context, userID string, limit int) ([]notification.Notification, int64, error) {
	if userID == "" {
		return nil, 0, fmt.Errorf("%w: recipient is required", ErrInvalidRequest)
	}
	if limit <= 0 || limit > MaxInboxSize {
		limit = MaxInboxSize
	}
	list, err := d.store.ListForRecipient(ctx, userID, limit)
	if err != nil {
		return nil, 0, err
	}
	unread, err := d.store.CountUnread(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	return list, unread, nil
}

// UnreadCount returns how many unread notifications userID has.
func (d *Dispatcher) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return d.store.CountUnread(ctx, userID)
}
