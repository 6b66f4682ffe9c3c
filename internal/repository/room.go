package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Oppadayo/poker-planning-server/internal/domain"
)

// RoomRepository stores and retrieves rooms.
type RoomRepository interface {
	// FindByID returns the room or ErrNotFound.
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Room, error)

	// FindByIDForUpdate is FindByID with a row lock; only meaningful
	// inside a TxManager transaction.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Room, error)

	// FindByCode returns the room with the given short code or
	// ErrNotFound.
	FindByCode(ctx context.Context, code string) (*domain.Room, error)

	// ExistsByCode reports whether any room already uses the code.
	ExistsByCode(ctx context.Context, code string) (bool, error)

	// FindByCreatorGuestID lists rooms created by a guest identity.
	FindByCreatorGuestID(ctx context.Context, guestID string) ([]domain.Room, error)

	// FindByCreatorUserIDAndStatus lists a user's rooms in the given
	// status.
	FindByCreatorUserIDAndStatus(ctx context.Context, userID uuid.UUID, status domain.RoomStatus) ([]domain.Room, error)

	// FindActiveCreatedBefore lists ACTIVE rooms created before the
	// cutoff. Used by the stale-room sweep.
	FindActiveCreatedBefore(ctx context.Context, cutoff time.Time) ([]domain.Room, error)

	// Save creates the room or updates it by primary key.
	Save(ctx context.Context, room *domain.Room) error
}
