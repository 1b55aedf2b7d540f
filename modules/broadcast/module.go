package broadcast

import (
	"context"
	"log"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
)

// BroadcastModule owns the Hub: it reports connection health and tears every socket down on shutdown.
type BroadcastModule struct {
	hub *Hub
}

// Compile-time interface checks.
var _ mono.Module = (*BroadcastModule)(nil)
var _ mono.HealthCheckableModule = (*BroadcastModule)(nil)

// NewModule creates a new BroadcastModule.
func NewModule(logger types.Logger) *BroadcastModule {
	return &BroadcastModule{
		hub: NewHub(logger.WithModule("broadcast")),
	}
}

// Name returns the module name.
func (m *BroadcastModule) Name() string {
	return "broadcast"
}

// Start initializes the module.
func (m *BroadcastModule) Start(_ context.Context) error {
	log.Println("[broadcast] Module started - presence and room registry ready")
	return nil
}

// Stop closes every live connection.
func (m *BroadcastModule) Stop(_ context.Context) error {
	closed := m.hub.Close()
	log.Printf("[broadcast] Module stopped - %d connections were closed", closed)
	return nil
}

// Health returns the health status.
func (m *BroadcastModule) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"connected_clients": m.hub.ClientCount(),
			"online_users":      len(m.hub.ListOnline()),
		},
	}
}

// GetHub returns the Hub shared with the router, dispatcher and gateway.
func (m *BroadcastModule) GetHub() *Hub {
	return m.hub
}
