package broadcast

import (
	"context"
	"testing"
)

func TestModule_Lifecycle(t *testing.T) {
	m := NewModule(newMockLogger())
	ctx := context.Background()

	if name := m.Name(); name != "broadcast" {
		t.Errorf("Name() = %q, want 'broadcast'", name)
	}
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	tr := &fakeTransport{}
	m.GetHub().Register(NewClient(tr, ops.ID, 4), ops)

	health := m.Health(ctx)
	if !health.Healthy {
		t.Error("expected healthy module")
	}
	if got := health.Details["connected_clients"]; got != 1 {
		t.Errorf("connected_clients = %v, want 1", got)
	}

	if err := m.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if !tr.closed {
		t.Error("expected transport to be closed on Stop")
	}
}
