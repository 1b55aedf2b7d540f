package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/ops-realtime-demo/domain/notification"
	"gorm.io/gorm"
)

// Store is the durable notification store.
type Store interface {
	Create(ctx context.Context, n *notification.Notification) error
	MarkRead(ctx context.Context, recipientID, id string) error
	Delete(ctx context.Context, recipientID, id string) error
	CountUnread(ctx context.Context, recipientID string) (int64, error)
	ListForRecipient(ctx context.Context, recipientID string, limit int) ([]notification.Notification, error)
}

// Repository provides access to notification storage.
type Repository struct {
	db *gorm.DB
}

var _ Store = (*Repository)(nil)

// NewRepository creates a new notification repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create saves a new notification to the database.
func (r *Repository) Create(ctx context.Context, n *notification.Notification) error {
	if err := r.db.WithContext(ctx).Create(n).Error; err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// FindByID retrieves a notification by its ID.
func (r *Repository) FindByID(ctx context.Context, id string) (*notification.Notification, error) {
	var n notification.Notification
	if err := r.db.WithContext(ctx).First(&n, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find notification: %w", err)
	}
	return &n, nil
}

// ListForRecipient returns the newest notifications of a recipient.
func (r *Repository) ListForRecipient(ctx context.Context, recipientID string, limit int) ([]notification.Notification, error) {
	var out []notification.Notification
	query := r.db.WithContext(ctx).
		Where("recipient_id = ?", recipientID).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return out, nil
}

// MarkRead flags a notification of recipientID as read.
// Notifications owned by someone else are reported as ErrNotFound.
func (r *Repository) MarkRead(ctx context.Context, recipientID, id string) error {
	result := r.db.WithContext(ctx).
		Model(&notification.Notification{}).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Update("is_read", true)
	if err := result.Error; err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a notification of recipientID.
func (r *Repository) Delete(ctx context.Context, recipientID, id string) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Delete(&notification.Notification{})
	if err := result.Error; err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountUnread returns the number of unread notifications of a recipient.
func (r *Repository) CountUnread(ctx context.Context, recipientID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&notification.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}
