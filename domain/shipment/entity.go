package shipment

import "time"

// Shipment statuses and progress states used by the scheduled jobs.
const (
	StatusApproved = "Approved"

	ProgressInitial   = "Initial"
	ProgressOnTransit = "On Transit"
	ProgressDelivered = "Delivered"
)

// Shipment is the subset of an approved service order the scheduler reads and flags.
type Shipment struct {
	ID               string     `gorm:"primaryKey;size:36" json:"id"`
	Consignment      string     `gorm:"index;not null;type:text" json:"consignment"`
	Status           string     `gorm:"index;size:32" json:"status"`
	Progress         string     `gorm:"size:32" json:"progress"`
	HasETA           bool       `gorm:"not null;default:false" json:"hasEta"`
	EstimatedArrival *time.Time `json:"estimatedArrival,omitempty"`
	IsDelayed        bool       `gorm:"not null;default:false" json:"isDelayed"`
	DelayDuration    int        `gorm:"not null;default:0" json:"delayDuration"`
	Alerts           []Alert    `gorm:"foreignKey:ShipmentID" json:"alerts,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// TableName returns the table name for the Shipment entity.
func (Shipment) TableName() string {
	return "shipments"
}

// Alert is one entry of a shipment's alert history.
type Alert struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ShipmentID string    `gorm:"index;size:36;not null" json:"shipmentId"`
	Type       string    `gorm:"size:32;not null" json:"type"`
	Message    string    `gorm:"type:text" json:"message"`
	Severity   string    `gorm:"size:16" json:"severity"`
	CreatedAt  time.Time `json:"createdAt"`
}

// TableName returns the table name for the Alert entity.
func (Alert) TableName() string {
	return "shipment_alerts"
}
