package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/example/ops-realtime-demo/modules/notify"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
)

// Config controls job periods and the digest hour.
type Config struct {
	DelayScanInterval time.Duration
	DigestHour        int
}

// SchedulerModule runs the delay scan and daily digest, notifying through the notify module.
type SchedulerModule struct {
	config   Config
	store    ShipmentStore
	notifier Notifier
	runner   *Runner
	logger   types.Logger
}

// Compile-time interface checks.
var _ mono.Module = (*SchedulerModule)(nil)
var _ mono.DependentModule = (*SchedulerModule)(nil)
var _ mono.HealthCheckableModule = (*SchedulerModule)(nil)

// NewModule creates a new SchedulerModule.
func NewModule(config Config, store ShipmentStore, logger types.Logger) *SchedulerModule {
	if config.DelayScanInterval <= 0 {
		config.DelayScanInterval = time.Hour
	}
	if config.DigestHour < 0 || config.DigestHour > 23 {
		config.DigestHour = 9
	}
	return &SchedulerModule{
		config: config,
		store:  store,
		logger: logger,
	}
}

// Name returns the module name.
func (m *SchedulerModule) Name() string {
	return "scheduler"
}

// Dependencies returns the modules this module depends on.
func (m *SchedulerModule) Dependencies() []string {
	return []string{"notify"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *SchedulerModule) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	if dependency == "notify" {
		m.notifier = notify.NewAdapter(container)
	}
}

// Start anchors both jobs and launches the runner. The delay scan is anchored
// at process start and the digest at today's digest hour.
func (m *SchedulerModule) Start(ctx context.Context) error {
	if m.notifier == nil {
		return fmt.Errorf("notify dependency not set")
	}

	now := time.Now()
	m.runner = NewRunner(m.logger,
		Job{
			Name:   DelayScanJob,
			Period: m.config.DelayScanInterval,
			Anchor: now,
			Run:    NewDelayScan(m.store, m.notifier, m.logger).Run,
		},
		Job{
			Name:   DailyDigestJob,
			Period: 24 * time.Hour,
			Anchor: DailyAnchor(now, m.config.DigestHour),
			Run:    NewDailyDigest(m.store, m.notifier, m.logger).Run,
		},
	)
	if err := m.runner.Start(context.WithoutCancel(ctx)); err != nil {
		return err
	}

	log.Printf("[scheduler] Module started - delay scan every %s, digest daily at %02d:00",
		m.config.DelayScanInterval, m.config.DigestHour)
	return nil
}

// Stop stops the runner.
func (m *SchedulerModule) Stop(ctx context.Context) error {
	if m.runner == nil {
		return nil
	}
	if err := m.runner.Stop(ctx); err != nil {
		return err
	}
	log.Println("[scheduler] Module stopped")
	return nil
}

// Health reports the job history.
func (m *SchedulerModule) Health(_ context.Context) mono.HealthStatus {
	if m.runner == nil || !m.runner.IsRunning() {
		return mono.HealthStatus{
			Healthy: false,
			Message: "not running",
		}
	}

	details := make(map[string]any)
	for _, s := range m.runner.Stats() {
		details[s.Name] = s
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: details,
	}
}
