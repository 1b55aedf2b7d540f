package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// SystemAlertRaisedEvent asks for a transient alert to every connected user.
type SystemAlertRaisedEvent struct {
	Title     string         `json:"title,omitempty"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RaisedBy  string         `json:"raised_by,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Event definitions for the operations domain.
var (
	SystemAlertRaisedV1 = helper.EventDefinition[SystemAlertRaisedEvent](
		"api",
		"SystemAlertRaised",
		"v1",
	)
)
