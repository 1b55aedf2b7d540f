package api

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/example/ops-realtime-demo/events"
	"github.com/example/ops-realtime-demo/modules/broadcast"
	"github.com/example/ops-realtime-demo/modules/notify"
	"github.com/example/ops-realtime-demo/modules/router"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// Config holds the HTTP gateway settings.
type Config struct {
	Port           string
	AllowedOrigins string
	SendBuffer     int
}

// APIModule is the HTTP gateway: websocket endpoint plus the REST surface.
type APIModule struct {
	config   Config
	app      *fiber.App
	hub      *broadcast.Hub
	router   *router.Router
	auth     Authenticator
	notifier notify.NotifyPort
	eventBus mono.EventBus
	logger   types.Logger

	// publishAlert is replaced in tests
	publishAlert func(events.SystemAlertRaisedEvent) error
}

// Compile-time interface checks.
var _ mono.Module = (*APIModule)(nil)
var _ mono.DependentModule = (*APIModule)(nil)
var _ mono.EventBusAwareModule = (*APIModule)(nil)
var _ mono.EventEmitterModule = (*APIModule)(nil)
var _ mono.HealthCheckableModule = (*APIModule)(nil)

// NewModule creates a new APIModule.
func NewModule(config Config, hub *broadcast.Hub, rt *router.Router, auth Authenticator, logger types.Logger) *APIModule {
	if config.Port == "" {
		config.Port = "3000"
	}
	if config.SendBuffer <= 0 {
		config.SendBuffer = broadcast.DefaultSendBuffer
	}
	m := &APIModule{
		config: config,
		hub:    hub,
		router: rt,
		auth:   auth,
		logger: logger,
	}
	m.publishAlert = func(ev events.SystemAlertRaisedEvent) error {
		return events.SystemAlertRaisedV1.Publish(m.eventBus, ev, nil)
	}
	return m
}

// Name returns the module name.
func (m *APIModule) Name() string {
	return "api"
}

// Dependencies returns the list of module dependencies.
func (m *APIModule) Dependencies() []string {
	return []string{"notify"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *APIModule) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "notify":
		m.notifier = notify.NewAdapter(container)
	}
}

// SetEventBus receives the EventBus from the framework.
func (m *APIModule) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *APIModule) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.SystemAlertRaisedV1.ToBase(),
	}
}

// Start builds the Fiber app and starts listening.
func (m *APIModule) Start(_ context.Context) error {
	if m.notifier == nil {
		return fmt.Errorf("notify adapter dependency not set")
	}
	if m.hub == nil || m.router == nil || m.auth == nil {
		return fmt.Errorf("api module is missing hub, router or authenticator")
	}

	m.app = m.newApp()

	errCh := make(chan error, 1)
	go func() {
		if err := m.app.Listen(":" + m.config.Port); err != nil {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP server failed to start: %w", err)
	case <-time.After(100 * time.Millisecond):
	}

	log.Printf("[api] HTTP server started on :%s", m.config.Port)
	return nil
}

// Stop shuts down the Fiber HTTP server.
func (m *APIModule) Stop(ctx context.Context) error {
	if m.app == nil {
		return nil
	}
	log.Println("[api] Shutting down HTTP server...")
	if err := m.app.ShutdownWithContext(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// Health returns the health status.
func (m *APIModule) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: m.app != nil,
		Message: "operational",
		Details: map[string]any{
			"port":              m.config.Port,
			"connected_clients": m.hub.ClientCount(),
		},
	}
}

func (m *APIModule) newApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "Ops Realtime",
		DisableStartupMessage: true,
		ErrorHandler:          m.errorHandler,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          60 * time.Second,
		IdleTimeout:           120 * time.Second,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} ${method} ${path} ${latency}\n",
		Next: func(c *fiber.Ctx) bool {
			return c.Get(fiber.HeaderUpgrade) == "websocket"
		},
	}))

	allowedOrigins := m.config.AllowedOrigins
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:3000,http://localhost:8080"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: allowedOrigins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Content-Type,Authorization",
	}))

	m.setupRoutes(app)
	return app
}

// errorHandler handles Fiber errors.
func (m *APIModule) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}
	if code >= fiber.StatusInternalServerError {
		m.logger.Error("HTTP error", "code", code, "path", c.Path(), "error", err)
	}

	return c.Status(code).JSON(ErrorResponse{
		Error:   "server_error",
		Message: message,
	})
}
