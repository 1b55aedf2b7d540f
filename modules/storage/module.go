package storage

import (
	"context"
	"fmt"
	"log"

	"github.com/go-monolith/mono"
	"gorm.io/gorm"
)

// StorageModule owns the database handle: it reports its health and closes it on shutdown.
type StorageModule struct {
	db     *gorm.DB
	dbPath string
}

// Compile-time interface checks.
var _ mono.Module = (*StorageModule)(nil)
var _ mono.HealthCheckableModule = (*StorageModule)(nil)

// NewModule creates a new StorageModule around an opened database.
func NewModule(db *gorm.DB, dbPath string) *StorageModule {
	return &StorageModule{db: db, dbPath: dbPath}
}

// Name returns the module name.
func (m *StorageModule) Name() string {
	return "storage"
}

// Start verifies the connection.
func (m *StorageModule) Start(ctx context.Context) error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	log.Printf("[storage] Module started - SQLite database %s", m.dbPath)
	return nil
}

// Stop closes the database connection.
func (m *StorageModule) Stop(_ context.Context) error {
	log.Println("[storage] Closing database connection...")

	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	log.Println("[storage] Database connection closed")
	return nil
}

// Health pings the database.
func (m *StorageModule) Health(ctx context.Context) mono.HealthStatus {
	sqlDB, err := m.db.DB()
	if err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("failed to get sql.DB: %v", err),
		}
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("database ping failed: %v", err),
		}
	}

	stats := sqlDB.Stats()
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"driver":           "sqlite",
			"path":             m.dbPath,
			"open_connections": stats.OpenConnections,
		},
	}
}
