package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/example/ops-realtime-demo/domain/notification"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// NotifyPort is the notification surface other modules reach over the service bus.
type NotifyPort interface {
	NotifyUser(ctx context.Context, userID string, req Request) (*notification.Notification, error)
	NotifyDepartment(ctx context.Context, department string, req Request) ([]notification.Notification, error)
	NotifyOperationsTeam(ctx context.Context, req Request) ([]notification.Notification, error)
	SystemAlert(ctx context.Context, req SystemAlertRequest) (int, error)
	Inbox(ctx context.Context, userID string, limit int) (InboxResponse, error)
}

// Adapter implements NotifyPort using the notify module's service container.
type Adapter struct {
	container mono.ServiceContainer
}

var _ NotifyPort = (*Adapter)(nil)

// NewAdapter creates a new Adapter.
func NewAdapter(container mono.ServiceContainer) *Adapter {
	if container == nil {
		panic("notify adapter requires non-nil ServiceContainer")
	}
	return &Adapter{container: container}
}

func callService[Req, Resp any](ctx context.Context, container mono.ServiceContainer, service string, req *Req, resp *Resp) error {
	if err := helper.CallRequestReplyService(
		ctx,
		container,
		service,
		json.Marshal,
		json.Unmarshal,
		req,
		resp,
	); err != nil {
		return fmt.Errorf("%s request failed: %w", service, err)
	}
	return nil
}

// NotifyUser notifies one user via the notify-user service.
func (a *Adapter) NotifyUser(ctx context.Context, userID string, req Request) (*notification.Notification, error) {
	var resp NotificationsResponse
	if err := callService(ctx, a.container, "notify-user", &UserNotificationRequest{UserID: userID, Notification: req}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Notifications) == 0 {
		return nil, fmt.Errorf("notify-user returned no notification")
	}
	return &resp.Notifications[0], nil
}

// NotifyDepartment notifies a department via the notify-department service.
func (a *Adapter) NotifyDepartment(ctx context.Context, department string, req Request) ([]notification.Notification, error) {
	var resp NotificationsResponse
	if err := callService(ctx, a.container, "notify-department", &DepartmentNotificationRequest{Department: department, Notification: req}, &resp); err != nil {
		return nil, err
	}
	return fromNotificationsResponse(resp)
}

// NotifyOperationsTeam notifies the Operations department via the notify-operations service.
func (a *Adapter) NotifyOperationsTeam(ctx context.Context, req Request) ([]notification.Notification, error) {
	var resp NotificationsResponse
	if err := callService(ctx, a.container, "notify-operations", &OperationsNotificationRequest{Notification: req}, &resp); err != nil {
		return nil, err
	}
	return fromNotificationsResponse(resp)
}

// SystemAlert broadcasts a transient alert via the system-alert service.
func (a *Adapter) SystemAlert(ctx context.Context, req SystemAlertRequest) (int, error) {
	var resp SystemAlertResponse
	if err := callService(ctx, a.container, "system-alert", &req, &resp); err != nil {
		return 0, err
	}
	return resp.Delivered, nil
}

func fromNotificationsResponse(resp NotificationsResponse) ([]notification.Notification, error) {
	if resp.Error != "" {
		return resp.Notifications, fmt.Errorf("%w: %s", ErrPersistence, resp.Error)
	}
	return resp.Notifications, nil
}

// Inbox lists a user's notifications via the list-notifications service.
func (a *Adapter) Inbox(ctx context.Context, userID string, limit int) (InboxResponse, error) {
	var resp InboxResponse
	if err := callService(ctx, a.container, "list-notifications", &InboxRequest{UserID: userID, Limit: limit}, &resp); err != nil {
		return InboxResponse{}, err
	}
	return resp, nil
}
