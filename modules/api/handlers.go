package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/example/ops-realtime-demo/domain/notification"
	"github.com/example/ops-realtime-demo/domain/user"
	"github.com/example/ops-realtime-demo/events"
	"github.com/example/ops-realtime-demo/modules/broadcast"
	"github.com/example/ops-realtime-demo/modules/chat"
	"github.com/example/ops-realtime-demo/modules/notify"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

// setupRoutes configures all HTTP routes.
func (m *APIModule) setupRoutes(app *fiber.App) {
	app.Get("/health", m.healthHandler)

	// WebSocket endpoint, authenticated before the upgrade
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}, AuthMiddleware(m.auth))
	app.Get("/ws", websocket.New(m.handleWebSocket))

	api := app.Group("/api/v1", AuthMiddleware(m.auth))
	api.Get("/presence", m.listPresence)
	api.Get("/rooms/:name/members", m.roomMembers)
	api.Get("/notifications", m.listNotifications)
	api.Post("/notifications", m.createNotification)
	api.Post("/alerts", m.raiseAlert)
}

// healthHandler handles GET /health.
func (m *APIModule) healthHandler(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status: "healthy",
		Details: map[string]any{
			"module":            "api",
			"connected_clients": m.hub.ClientCount(),
			"online_users":      len(m.hub.ListOnline()),
		},
	})
}

// handleWebSocket serves one authenticated connection at /ws.
func (m *APIModule) handleWebSocket(conn *websocket.Conn) {
	id, ok := conn.Locals(IdentityKey).(user.Identity)
	if !ok {
		_ = conn.Close()
		return
	}

	client := broadcast.NewClient(conn, id.ID, m.config.SendBuffer)
	go client.WritePump()

	ctx := context.Background()
	session := m.router.NewSession(ctx, client, id)
	log.Printf("[api] WebSocket client connected: %s (%s)", client.ID, id.ID)

	defer func() {
		session.Close()
		<-client.Done()
		log.Printf("[api] WebSocket client disconnected: %s (%s)", client.ID, id.ID)
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				m.logger.Warn("WebSocket read error", "connection_id", client.ID, "error", err)
			}
			return
		}
		if err := session.Handle(ctx, msg); err != nil {
			m.logger.Debug("frame not applied", "connection_id", client.ID, "error", err)
		}
	}
}

// listPresence handles GET /api/v1/presence.
func (m *APIModule) listPresence(c *fiber.Ctx) error {
	var users []broadcast.UserPresence
	if dept := c.Query("department"); dept != "" {
		users = m.hub.ListOnlineInDepartment(dept)
	} else {
		users = m.hub.ListOnline()
	}
	return c.JSON(PresenceResponse{Users: users, Total: len(users)})
}

// roomMembers handles GET /api/v1/rooms/:name/members.
func (m *APIModule) roomMembers(c *fiber.Ctx) error {
	room := c.Params("name")
	if err := chat.ValidateRoomName(room); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
	}
	return c.JSON(MembersResponse{Room: room, Members: m.hub.MembersOf(room)})
}

// listNotifications handles GET /api/v1/notifications for the caller's own inbox.
func (m *APIModule) listNotifications(c *fiber.Ctx) error {
	id, ok := identityFrom(c)
	if !ok {
		return fiber.ErrUnauthorized
	}

	inbox, err := m.notifier.Inbox(c.UserContext(), id.ID, c.QueryInt("limit", 0))
	if err != nil {
		m.logger.Error("failed to list notifications", "user_id", id.ID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "notify_failed",
			Message: "Failed to list notifications",
		})
	}
	if inbox.Notifications == nil {
		inbox.Notifications = []notification.Notification{}
	}
	return c.JSON(inbox)
}

// createNotification handles POST /api/v1/notifications. Only operations staff
// may raise notifications for other users.
func (m *APIModule) createNotification(c *fiber.Ctx) error {
	id, ok := identityFrom(c)
	if !ok || !id.IsOperations() {
		return c.Status(fiber.StatusForbidden).JSON(ErrorResponse{
			Error:   "forbidden",
			Message: "Only operations staff can raise notifications",
		})
	}

	var req NotificationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}

	content, err := notify.Request{
		Message:      req.Message,
		Type:         req.Type,
		Priority:     req.Priority,
		RelatedID:    req.RelatedID,
		RelatedModel: req.RelatedModel,
	}.Normalize()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
	}

	ctx := c.UserContext()
	var saved []notification.Notification
	switch req.Target {
	case TargetUser:
		if req.UserID == "" {
			return validationError(c, "userId is required")
		}
		var n *notification.Notification
		n, err = m.notifier.NotifyUser(ctx, req.UserID, content)
		if n != nil {
			saved = append(saved, *n)
		}
	case TargetDepartment:
		if req.Department == "" {
			return validationError(c, "department is required")
		}
		saved, err = m.notifier.NotifyDepartment(ctx, req.Department, content)
	case TargetOperations:
		saved, err = m.notifier.NotifyOperationsTeam(ctx, content)
	default:
		return validationError(c, fmt.Sprintf("unknown target %q", req.Target))
	}

	if saved == nil {
		saved = []notification.Notification{}
	}
	if err != nil {
		m.logger.Error("failed to raise notification", "target", req.Target, "error", err)
		if errors.Is(err, notify.ErrPersistence) && len(saved) > 0 {
			return c.Status(fiber.StatusMultiStatus).JSON(NotificationResponse{
				Notifications: saved,
				Error:         err.Error(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "notify_failed",
			Message: "Failed to raise notification",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(NotificationResponse{Notifications: saved})
}

// raiseAlert handles POST /api/v1/alerts. Only operations staff may raise alerts.
func (m *APIModule) raiseAlert(c *fiber.Ctx) error {
	id, ok := identityFrom(c)
	if !ok || !id.IsOperations() {
		return c.Status(fiber.StatusForbidden).JSON(ErrorResponse{
			Error:   "forbidden",
			Message: "Only operations staff can raise system alerts",
		})
	}

	var req AlertRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}
	if req.Message == "" {
		return validationError(c, "message is required")
	}

	now := time.Now()
	if err := m.publishAlert(events.SystemAlertRaisedEvent{
		Title:     req.Title,
		Message:   req.Message,
		Details:   req.Details,
		RaisedBy:  id.ID,
		Timestamp: now,
	}); err != nil {
		m.logger.Error("failed to publish system alert", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "publish_failed",
			Message: "Failed to raise alert",
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(AlertResponse{Status: "accepted", Timestamp: now})
}

func validationError(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Error:   "validation_error",
		Message: message,
	})
}
