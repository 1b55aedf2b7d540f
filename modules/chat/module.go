package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/redis/go-redis/v9"
)

// Config selects and sizes the history backend.
type Config struct {
	RedisAddr     string
	RedisPassword string
	Prefix        string
	MaxHistory    int
}

// Module owns the chat history backend: Redis when an address is configured, memory otherwise.
type Module struct {
	config  Config
	client  *redis.Client
	history History
	logger  types.Logger
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new chat module.
func NewModule(config Config, logger types.Logger) *Module {
	m := &Module{
		config: config,
		logger: logger,
	}
	if config.RedisAddr == "" {
		m.history = NewMemoryHistory(config.MaxHistory)
		return m
	}

	m.client = redis.NewClient(&redis.Options{
		Addr:         config.RedisAddr,
		Password:     config.RedisPassword,
		PoolSize:     20,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	m.history = NewRedisHistory(m.client, config.Prefix, config.MaxHistory)
	return m
}

// Name returns the module name.
func (m *Module) Name() string {
	return "chat"
}

// Start verifies the Redis connection when one is configured.
func (m *Module) Start(ctx context.Context) error {
	if m.client != nil {
		if err := m.client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		m.logger.Info("Chat history started", "backend", "redis", "addr", m.config.RedisAddr, "prefix", m.config.Prefix)
		return nil
	}
	m.logger.Info("Chat history started", "backend", "memory", "max_history", m.config.MaxHistory)
	return nil
}

// Stop closes the Redis connection.
func (m *Module) Stop(_ context.Context) error {
	if m.client != nil {
		if err := m.client.Close(); err != nil {
			return fmt.Errorf("failed to close Redis connection: %w", err)
		}
	}
	m.logger.Info("Chat module stopped")
	return nil
}

// Health reports the history backend.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if m.client == nil {
		return mono.HealthStatus{
			Healthy: true,
			Message: "operational",
			Details: map[string]any{"backend": "memory"},
		}
	}

	if err := m.client.Ping(ctx).Err(); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("redis ping failed: %v", err),
			Details: map[string]any{"backend": "redis"},
		}
	}
	details := map[string]any{"backend": "redis", "addr": m.config.RedisAddr}
	if rh, ok := m.history.(*RedisHistory); ok {
		details["errors"] = rh.Errors()
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: details,
	}
}

// History returns the configured history store.
func (m *Module) History() History {
	return m.history
}
