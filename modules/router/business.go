package router

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/example/ops-realtime-demo/domain/notification"
)

// businessEvent describes how one operations event is checked and announced.
type businessEvent struct {
	frame    string
	kind     string
	priority notification.Priority
	// echo delivers the notification to the emitter as well
	echo     bool
	validate func(p BusinessPayload) error
	message  func(p BusinessPayload) string
}

var businessEvents = map[string]businessEvent{
	TypeETAUpdated: {
		frame:    "eta_update_notification",
		kind:     notification.TypeETAChange,
		priority: notification.PriorityMedium,
		validate: requireConsignment,
		message: func(p BusinessPayload) string {
			return fmt.Sprintf("ETA updated for shipment %s", p.Consignment)
		},
	},
	TypeProgressUpdated: {
		frame:    "progress_update_notification",
		kind:     notification.TypeProgressUpdate,
		priority: notification.PriorityMedium,
		validate: func(p BusinessPayload) error {
			if err := requireConsignment(p); err != nil {
				return err
			}
			if p.NewProgress == "" {
				return fmt.Errorf("%w: newProgress is required", ErrValidation)
			}
			return nil
		},
		message: func(p BusinessPayload) string {
			return fmt.Sprintf("Progress updated: %s moved to %s", p.Consignment, p.NewProgress)
		},
	},
	TypeDelayAlert: {
		frame:    "delay_alert_notification",
		kind:     notification.TypeDelayAlert,
		priority: notification.PriorityHigh,
		echo:     true,
		validate: func(p BusinessPayload) error {
			if err := requireConsignment(p); err != nil {
				return err
			}
			if p.DelayHours == nil || *p.DelayHours < 0 || math.IsNaN(*p.DelayHours) {
				return fmt.Errorf("%w: delayHours must be a non-negative number", ErrValidation)
			}
			return nil
		},
		message: func(p BusinessPayload) string {
			return fmt.Sprintf("DELAY ALERT: %s is %s hours overdue", p.Consignment, formatHours(*p.DelayHours))
		},
	},
	TypePlanUpdated: {
		frame:    "plan_update_notification",
		kind:     notification.TypePlanUpdate,
		priority: notification.PriorityMedium,
		validate: func(p BusinessPayload) error {
			if p.PlanTitle == "" {
				return fmt.Errorf("%w: planTitle is required", ErrValidation)
			}
			return nil
		},
		message: func(p BusinessPayload) string {
			return fmt.Sprintf("Operations plan updated: %s", p.PlanTitle)
		},
	},
}

func requireConsignment(p BusinessPayload) error {
	if p.Consignment == "" {
		return fmt.Errorf("%w: consignment is required", ErrValidation)
	}
	return nil
}

func formatHours(h float64) string {
	if h == math.Trunc(h) {
		return fmt.Sprintf("%d", int64(h))
	}
	return fmt.Sprintf("%g", h)
}

func decodeBusinessPayload(data json.RawMessage) (BusinessPayload, error) {
	var p BusinessPayload
	if len(data) == 0 || data[0] != '{' {
		return p, fmt.Errorf("%w: business payload must be an object", ErrValidation)
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("%w: business payload: %v", ErrValidation, err)
	}
	return p, nil
}
