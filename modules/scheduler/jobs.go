package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/ops-realtime-demo/domain/notification"
	domain "github.com/example/ops-realtime-demo/domain/shipment"
	"github.com/example/ops-realtime-demo/modules/notify"
	"github.com/example/ops-realtime-demo/modules/shipment"
	"github.com/go-monolith/mono/pkg/types"
)

// Job names.
const (
	DelayScanJob   = "delay-scan"
	DailyDigestJob = "daily-digest"
)

// ShipmentStore is the shipment query and update surface the jobs need.
type ShipmentStore interface {
	FindApprovedUndelayedPastETA(ctx context.Context, now time.Time) ([]domain.Shipment, error)
	MarkDelayed(ctx context.Context, id string, hours int, alert domain.Alert) error
	AggregateByProgressSince(ctx context.Context, since time.Time) (map[string]int64, error)
}

// Notifier sends notifications to the operations team.
type Notifier interface {
	NotifyOperationsTeam(ctx context.Context, req notify.Request) ([]notification.Notification, error)
}

// DelayScan flags overdue shipments and alerts the operations team once per shipment.
type DelayScan struct {
	store    ShipmentStore
	notifier Notifier
	logger   types.Logger
	now      func() time.Time
}

// NewDelayScan creates the delay scan job body.
func NewDelayScan(store ShipmentStore, notifier Notifier, logger types.Logger) *DelayScan {
	return &DelayScan{store: store, notifier: notifier, logger: logger, now: time.Now}
}

// Run performs one scan. The delayed flag is written before the notification
// is sent, so a shipment is never selected, and notified, twice.
func (j *DelayScan) Run(ctx context.Context) error {
	now := j.now()
	overdue, err := j.store.FindApprovedUndelayedPastETA(ctx, now)
	if err != nil {
		return err
	}

	var errs []error
	processed := 0
	for _, s := range overdue {
		if s.EstimatedArrival == nil {
			continue
		}
		hours := int(now.Sub(*s.EstimatedArrival) / time.Hour)

		err := j.store.MarkDelayed(ctx, s.ID, hours, domain.Alert{
			Type:      "delay",
			Message:   fmt.Sprintf("Shipment %s is %d hours overdue", s.Consignment, hours),
			Severity:  string(notification.PriorityHigh),
			CreatedAt: now,
		})
		if errors.Is(err, shipment.ErrAlreadyDelayed) {
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("mark %s delayed: %w", s.ID, err))
			continue
		}

		if _, err := j.notifier.NotifyOperationsTeam(ctx, notify.Request{
			Message:      fmt.Sprintf("OVERDUE: Shipment %s is %d hours past ETA", s.Consignment, hours),
			Type:         notification.TypeDelayAlert,
			Priority:     notification.PriorityHigh,
			RelatedID:    s.ID,
			RelatedModel: "Service",
		}); err != nil {
			errs = append(errs, fmt.Errorf("notify delay of %s: %w", s.ID, err))
		}
		processed++
	}

	if processed > 0 {
		j.logger.Info("Processed overdue shipments", "count", processed)
	}
	return errors.Join(errs...)
}

// DailyDigest sends the operations team a summary of today's approved shipments.
type DailyDigest struct {
	store    ShipmentStore
	notifier Notifier
	logger   types.Logger
	now      func() time.Time
}

// NewDailyDigest creates the daily digest job body.
func NewDailyDigest(store ShipmentStore, notifier Notifier, logger types.Logger) *DailyDigest {
	return &DailyDigest{store: store, notifier: notifier, logger: logger, now: time.Now}
}

// Run sends one digest.
func (j *DailyDigest) Run(ctx context.Context) error {
	counts, err := j.store.AggregateByProgressSince(ctx, StartOfDay(j.now()))
	if err != nil {
		return err
	}

	message := fmt.Sprintf("Daily Operations Summary: %d delivered, %d in transit, %d new orders",
		counts[domain.ProgressDelivered], counts[domain.ProgressOnTransit], counts[domain.ProgressInitial])
	saved, err := j.notifier.NotifyOperationsTeam(ctx, notify.Request{
		Message:  message,
		Type:     notification.TypeSystemAlert,
		Priority: notification.PriorityLow,
	})
	if err != nil {
		return fmt.Errorf("send daily digest: %w", err)
	}

	j.logger.Info("Daily digest sent", "recipients", len(saved))
	return nil
}
