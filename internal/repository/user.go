// Package repository defines the storage ports the services depend
// on. GORM implementations live in internal/infra/persistence/gorm.
package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/Oppadayo/poker-planning-server/internal/domain"
)

// UserRepository stores and retrieves registered accounts.
type UserRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// FindByUsernameOrEmail matches the login identifier against both
	// columns, or ErrNotFound.
	FindByUsernameOrEmail(ctx context.Context, identifier string) (*domain.User, error)

	ExistsByUsername(ctx context.Context, username string) (bool, error)

	ExistsByEmail(ctx context.Context, email string) (bool, error)

	Save(ctx context.Context, user *domain.User) error
}
