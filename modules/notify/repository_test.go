package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/ops-realtime-demo/domain/notification"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB creates an in-memory SQLite database for testing.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&notification.Notification{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func newTestNotification(recipient string) *notification.Notification {
	return &notification.Notification{
		ID:          uuid.New().String(),
		RecipientID: recipient,
		Message:     "Shipment CON-1 arrived",
		Type:        notification.TypeInfo,
		Priority:    notification.PriorityMedium,
		CreatedAt:   time.Now(),
	}
}

func TestRepository_CreateAndFind(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()

	n := newTestNotification("u1")
	if err := repo.Create(ctx, n); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	found, err := repo.FindByID(ctx, n.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if found.Message != n.Message || found.IsRead {
		t.Errorf("unexpected notification %+v", found)
	}

	if _, err := repo.FindByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRepository_MarkReadAndCount(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()

	first := newTestNotification("u1")
	second := newTestNotification("u1")
	other := newTestNotification("u2")
	for _, n := range []*notification.Notification{first, second, other} {
		if err := repo.Create(ctx, n); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	count, err := repo.CountUnread(ctx, "u1")
	if err != nil {
		t.Fatalf("CountUnread() error = %v", err)
	}
	if count != 2 {
		t.Errorf("CountUnread() = %d, want 2", count)
	}

	if err := repo.MarkRead(ctx, "u1", first.ID); err != nil {
		t.Fatalf("MarkRead() error = %v", err)
	}
	if count, _ = repo.CountUnread(ctx, "u1"); count != 1 {
		t.Errorf("CountUnread() after MarkRead = %d, want 1", count)
	}

	if err := repo.MarkRead(ctx, "u1", "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := repo.MarkRead(ctx, "u1", other.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("MarkRead() of another recipient's notification error = %v, want ErrNotFound", err)
	}
	if count, _ = repo.CountUnread(ctx, "u2"); count != 1 {
		t.Errorf("CountUnread(u2) = %d, want 1", count)
	}
}

func TestRepository_DeleteAndList(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()

	older := newTestNotification("u1")
	older.CreatedAt = time.Now().Add(-time.Hour)
	newer := newTestNotification("u1")
	for _, n := range []*notification.Notification{older, newer} {
		if err := repo.Create(ctx, n); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	list, err := repo.ListForRecipient(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("ListForRecipient() error = %v", err)
	}
	if len(list) != 2 || list[0].ID != newer.ID {
		t.Fatalf("expected newest first, got %+v", list)
	}

	if err := repo.Delete(ctx, "u2", older.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() by another recipient error = %v, want ErrNotFound", err)
	}
	if err := repo.Delete(ctx, "u1", older.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := repo.Delete(ctx, "u1", older.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}

	list, _ = repo.ListForRecipient(ctx, "u1", 1)
	if len(list) != 1 {
		t.Errorf("expected 1 notification, got %d", len(list))
	}
}
