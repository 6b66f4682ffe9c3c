package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/Oppadayo/poker-planning-server/internal/domain"
)

// ParticipantRepository stores and retrieves room memberships.
type ParticipantRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Participant, error)

	// FindByIDForUpdate is FindByID with a row lock; only meaningful
	// inside a TxManager transaction.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Participant, error)

	FindByRoomID(ctx context.Context, roomID uuid.UUID) ([]domain.Participant, error)

	// FindByRoomIDAndUserID locates a registered user's membership in a
	// room, or ErrNotFound.
	FindByRoomIDAndUserID(ctx context.Context, roomID, userID uuid.UUID) (*domain.Participant, error)

	// FindByRoomIDAndGuestID locates a guest's membership in a room, or
	// ErrNotFound.
	FindByRoomIDAndGuestID(ctx context.Context, roomID uuid.UUID, guestID string) (*domain.Participant, error)

	// FindByGuestID lists a guest's memberships across all rooms. Used
	// when a guest registers and claims their sessions.
	FindByGuestID(ctx context.Context, guestID string) ([]domain.Participant, error)

	ExistsByRoomIDAndUserID(ctx context.Context, roomID, userID uuid.UUID) (bool, error)

	// CountOnlineByRoomID counts participants currently marked online.
	CountOnlineByRoomID(ctx context.Context, roomID uuid.UUID) (int64, error)

	Save(ctx context.Context, participant *domain.Participant) error

	// Delete removes the membership record entirely (host kick).
	Delete(ctx context.Context, participant *domain.Participant) error
}
