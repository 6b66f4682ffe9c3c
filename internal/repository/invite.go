package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Oppadayo/poker-planning-server/internal/domain"
)

// InviteRepository stores and retrieves invite tokens (hashed).
type InviteRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Invite, error)

	// FindByTokenHash returns the invite with the given SHA-256 token
	// hash, or ErrNotFound.
	FindByTokenHash(ctx context.Context, tokenHash string) (*domain.Invite, error)

	// FindByTokenHashForUpdate is FindByTokenHash with a row lock; only
	// meaningful inside a TxManager transaction. Used when consuming a
	// use so two concurrent redemptions cannot both pass the max-uses
	// check.
	FindByTokenHashForUpdate(ctx context.Context, tokenHash string) (*domain.Invite, error)

	// FindByRoomID lists a room's invites, newest first.
	FindByRoomID(ctx context.Context, roomID uuid.UUID) ([]domain.Invite, error)

	Save(ctx context.Context, invite *domain.Invite) error

	// DeleteStale removes invites that expired before now or were
	// revoked before revokedBefore, returning the number deleted.
	DeleteStale(ctx context.Context, now, revokedBefore time.Time) (int64, error)
}
