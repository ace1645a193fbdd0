// File: internal/user/repository.go
package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"authgate/internal/common"

	"gorm.io/gorm"
)

// Repository defines the persistence operations over the users collection.
// Create must report a unique-key violation on uid as common.ErrDuplicateProfile.
type Repository interface {
	FindByUID(ctx context.Context, uid string) (*User, error)
	Create(ctx context.Context, user *User) error
	Ping(ctx context.Context) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewGORMRepository creates a new GORM user repository.
func NewGORMRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

// Migrate creates or updates the users table.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&User{}); err != nil {
		return fmt.Errorf("failed to migrate users table: %w", err)
	}
	return nil
}

// Create inserts a new user record into the database.
func (r *gormRepository) Create(ctx context.Context, user *User) error {
	err := r.db.WithContext(ctx).Create(user).Error
	if err != nil {
		if isUniqueViolation(err) {
			return common.ErrDuplicateProfile.WithDetails("A profile for this uid already exists.")
		}
		return err
	}
	return nil
}

// FindByUID retrieves a user by the identity provider uid.
func (r *gormRepository) FindByUID(ctx context.Context, uid string) (*User, error) {
	var userModel User
	err := r.db.WithContext(ctx).Where("uid = ?", uid).First(&userModel).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound.WithDetails("User not found with this uid.")
		}
		return nil, err
	}
	return &userModel, nil
}

// Ping checks the underlying connection pool.
func (r *gormRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// isUniqueViolation recognises duplicate-key errors from postgres and sqlite,
// with or without GORM's error translation enabled.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key value")
}
