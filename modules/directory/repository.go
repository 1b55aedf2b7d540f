// Package directory is the read side of the user store: lookups by id and by department.
package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/ops-realtime-demo/domain/user"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrUserNotFound is returned when no user has the requested id.
var ErrUserNotFound = errors.New("user not found")

// Directory resolves users for authentication and department fan-out.
type Directory interface {
	FindUserByID(ctx context.Context, id string) (*user.User, error)
	FindUsersByDepartment(ctx context.Context, department string) ([]user.User, error)
}

// Repository is a GORM-backed Directory.
type Repository struct {
	db *gorm.DB
}

var _ Directory = (*Repository)(nil)

// NewRepository creates a new user directory repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindUserByID retrieves a user by id.
func (r *Repository) FindUserByID(ctx context.Context, id string) (*user.User, error) {
	var u user.User
	if err := r.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &u, nil
}

// FindUsersByDepartment lists every user of a department ordered by id.
func (r *Repository) FindUsersByDepartment(ctx context.Context, department string) ([]user.User, error) {
	var users []user.User
	if err := r.db.WithContext(ctx).
		Where("department = ?", department).
		Order("id").
		Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to find users by department: %w", err)
	}
	return users, nil
}

// Upsert inserts a user or updates name, email and department of an existing one.
func (r *Repository) Upsert(ctx context.Context, u *user.User) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "email", "department", "updated_at"}),
	}).Create(u).Error
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}
