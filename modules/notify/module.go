package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/example/ops-realtime-demo/domain/notification"
	"github.com/example/ops-realtime-demo/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
)

// NotifyModule exposes the Dispatcher on the service bus and consumes system alert events.
type NotifyModule struct {
	dispatcher *Dispatcher
	logger     types.Logger
}

// Compile-time interface checks.
var _ mono.Module = (*NotifyModule)(nil)
var _ mono.ServiceProviderModule = (*NotifyModule)(nil)
var _ mono.EventConsumerModule = (*NotifyModule)(nil)
var _ mono.HealthCheckableModule = (*NotifyModule)(nil)

// NewModule creates a new NotifyModule.
func NewModule(dispatcher *Dispatcher, logger types.Logger) *NotifyModule {
	return &NotifyModule{
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Name returns the module name.
func (m *NotifyModule) Name() string {
	return "notify"
}

// Start starts the module.
func (m *NotifyModule) Start(_ context.Context) error {
	log.Println("[notify] Module started")
	return nil
}

// Stop stops the module.
func (m *NotifyModule) Stop(_ context.Context) error {
	log.Println("[notify] Module stopped")
	return nil
}

// Health returns the health status.
func (m *NotifyModule) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
	}
}

// RegisterServices registers request-reply services in the service container.
func (m *NotifyModule) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, "notify-user", json.Unmarshal, json.Marshal, m.notifyUser,
	); err != nil {
		return fmt.Errorf("failed to register notify-user service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "notify-department", json.Unmarshal, json.Marshal, m.notifyDepartment,
	); err != nil {
		return fmt.Errorf("failed to register notify-department service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "notify-operations", json.Unmarshal, json.Marshal, m.notifyOperations,
	); err != nil {
		return fmt.Errorf("failed to register notify-operations service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "system-alert", json.Unmarshal, json.Marshal, m.systemAlert,
	); err != nil {
		return fmt.Errorf("failed to register system-alert service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "list-notifications", json.Unmarshal, json.Marshal, m.listNotifications,
	); err != nil {
		return fmt.Errorf("failed to register list-notifications service: %w", err)
	}

	log.Printf("[notify] Registered services: notify-user, notify-department, notify-operations, system-alert, list-notifications")
	return nil
}

// RegisterEventConsumers subscribes to system alert events.
func (m *NotifyModule) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.SystemAlertRaisedV1, m.handleSystemAlertRaised, m,
	); err != nil {
		return fmt.Errorf("failed to register SystemAlertRaised consumer: %w", err)
	}

	log.Println("[notify] Registered event consumers: SystemAlertRaised")
	return nil
}

func (m *NotifyModule) notifyUser(ctx context.Context, req UserNotificationRequest, _ *mono.Msg) (NotificationsResponse, error) {
	n, err := m.dispatcher.NotifyUser(ctx, req.UserID, req.Notification)
	if err != nil {
		return NotificationsResponse{}, err
	}
	return NotificationsResponse{Notifications: []notification.Notification{*n}}, nil
}

func (m *NotifyModule) notifyDepartment(ctx context.Context, req DepartmentNotificationRequest, _ *mono.Msg) (NotificationsResponse, error) {
	if req.Department == "" {
		return NotificationsResponse{}, fmt.Errorf("%w: department is required", ErrInvalidRequest)
	}
	saved, err := m.dispatcher.NotifyDepartment(ctx, req.Department, req.Notification)
	return toNotificationsResponse(saved, err)
}

func (m *NotifyModule) notifyOperations(ctx context.Context, req OperationsNotificationRequest, _ *mono.Msg) (NotificationsResponse, error) {
	saved, err := m.dispatcher.NotifyOperationsTeam(ctx, req.Notification)
	return toNotificationsResponse(saved, err)
}

// toNotificationsResponse keeps partially saved batches as a successful reply carrying the error text.
func toNotificationsResponse(saved []notification.Notification, err error) (NotificationsResponse, error) {
	if err != nil && !errors.Is(err, ErrPersistence) {
		return NotificationsResponse{}, err
	}
	resp := NotificationsResponse{Notifications: saved}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp, nil
}

func (m *NotifyModule) listNotifications(ctx context.Context, req InboxRequest, _ *mono.Msg) (InboxResponse, error) {
	list, unread, err := m.dispatcher.Inbox(ctx, req.UserID, req.Limit)
	if err != nil {
		return InboxResponse{}, err
	}
	if list == nil {
		list = []notification.Notification{}
	}
	return InboxResponse{Notifications: list, UnreadCount: unread}, nil
}

func (m *NotifyModule) systemAlert(_ context.Context, req SystemAlertRequest, _ *mono.Msg) (SystemAlertResponse, error) {
	if req.Message == "" {
		return SystemAlertResponse{}, fmt.Errorf("%w: message is required", ErrInvalidRequest)
	}
	alert, delivered := m.dispatcher.BroadcastSystemAlert(notification.Alert{
		Title:   req.Title,
		Message: req.Message,
		Details: req.Details,
	})
	return SystemAlertResponse{Delivered: delivered, CreatedAt: alert.CreatedAt}, nil
}

func (m *NotifyModule) handleSystemAlertRaised(_ context.Context, event events.SystemAlertRaisedEvent, _ *mono.Msg) error {
	if event.Message == "" {
		m.logger.Warn("Ignoring system alert without message", "raised_by", event.RaisedBy)
		return nil
	}
	_, delivered := m.dispatcher.BroadcastSystemAlert(notification.Alert{
		Title:   event.Title,
		Message: event.Message,
		Details: event.Details,
	})
	m.logger.Info("System alert delivered", "raised_by", event.RaisedBy, "connections", delivered)
	return nil
}
