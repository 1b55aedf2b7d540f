// Package shipment is the slice of the service-order store used by the scheduled jobs.
package shipment

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/example/ops-realtime-demo/domain/shipment"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a shipment is not found.
	ErrNotFound = errors.New("shipment not found")
	// ErrAlreadyDelayed is returned when another scan flagged the shipment first.
	ErrAlreadyDelayed = errors.New("shipment already flagged delayed")
)

// Repository provides access to shipment storage.
// Times are stored in UTC so SQLite text comparisons stay ordered.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new shipment repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create saves a new shipment to the database.
func (r *Repository) Create(ctx context.Context, s *domain.Shipment) error {
	if s.EstimatedArrival != nil {
		eta := s.EstimatedArrival.UTC()
		s.EstimatedArrival = &eta
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	s.CreatedAt = s.CreatedAt.UTC()

	if err := r.db.WithContext(ctx).Create(s).Error; err != nil {
		return fmt.Errorf("failed to create shipment: %w", err)
	}
	return nil
}

// FindByID retrieves a shipment and its alert history.
func (r *Repository) FindByID(ctx context.Context, id string) (*domain.Shipment, error) {
	var s domain.Shipment
	if err := r.db.WithContext(ctx).Preload("Alerts").First(&s, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find shipment: %w", err)
	}
	return &s, nil
}

// FindApprovedUndelayedPastETA lists approved, undelivered shipments whose ETA
// is before now and which are not flagged delayed yet.
func (r *Repository) FindApprovedUndelayedPastETA(ctx context.Context, now time.Time) ([]domain.Shipment, error) {
	var out []domain.Shipment
	if err := r.db.WithContext(ctx).
		Where("status = ?", domain.StatusApproved).
		Where("progress <> ?", domain.ProgressDelivered).
		Where("has_eta = ?", true).
		Where("estimated_arrival IS NOT NULL AND estimated_arrival < ?", now.UTC()).
		Where("is_delayed = ?", false).
		Order("estimated_arrival").
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to find overdue shipments: %w", err)
	}
	return out, nil
}

// MarkDelayed flags a shipment delayed by hours and appends an alert to its
// history in one transaction. A shipment that is already flagged is left as
// is and ErrAlreadyDelayed is returned.
func (r *Repository) MarkDelayed(ctx context.Context, id string, hours int, alert domain.Alert) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&domain.Shipment{}).
			Where("id = ? AND is_delayed = ?", id, false).
			Updates(map[string]any{
				"is_delayed":     true,
				"delay_duration": hours,
				"updated_at":     time.Now().UTC(),
			})
		if err := result.Error; err != nil {
			return fmt.Errorf("failed to flag shipment delayed: %w", err)
		}
		if result.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&domain.Shipment{}).Where("id = ?", id).Count(&count).Error; err != nil {
				return fmt.Errorf("failed to check shipment: %w", err)
			}
			if count == 0 {
				return ErrNotFound
			}
			return ErrAlreadyDelayed
		}

		alert.ID = 0
		alert.ShipmentID = id
		if alert.CreatedAt.IsZero() {
			alert.CreatedAt = time.Now()
		}
		alert.CreatedAt = alert.CreatedAt.UTC()
		if err := tx.Create(&alert).Error; err != nil {
			return fmt.Errorf("failed to append shipment alert: %w", err)
		}
		return nil
	})
}

type progressCount struct {
	Progress string
	Count    int64
}

// AggregateByProgressSince counts approved shipments created at or after since, by progress.
func (r *Repository) AggregateByProgressSince(ctx context.Context, since time.Time) (map[string]int64, error) {
	var rows []progressCount
	if err := r.db.WithContext(ctx).
		Model(&domain.Shipment{}).
		Select("progress, count(*) AS count").
		Where("status = ? AND created_at >= ?", domain.StatusApproved, since.UTC()).
		Group("progress").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to aggregate shipments: %w", err)
	}

	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Progress] = row.Count
	}
	return out, nil
}
