package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/Oppadayo/poker-planning-server/internal/domain"
)

// RoundRepository stores and retrieves voting rounds.
type RoundRepository interface {
	// FindActiveByRoomID returns the room's round in VOTING or REVEALED
	// status, or ErrNotFound. At most one such round exists per room.
	FindActiveByRoomID(ctx context.Context, roomID uuid.UUID) (*domain.Round, error)

	// FindActiveByRoomIDForUpdate is FindActiveByRoomID with a row
	// lock; only meaningful inside a TxManager transaction.
	FindActiveByRoomIDForUpdate(ctx context.Context, roomID uuid.UUID) (*domain.Round, error)

	Save(ctx context.Context, round *domain.Round) error
}

// VoteRepository stores and retrieves votes.
type VoteRepository interface {
	FindByRoundID(ctx context.Context, roundID uuid.UUID) ([]domain.Vote, error)

	// FindByRoundIDAndParticipantID locates a participant's vote in a
	// round, or ErrNotFound.
	FindByRoundIDAndParticipantID(ctx context.Context, roundID, participantID uuid.UUID) (*domain.Vote, error)

	Save(ctx context.Context, vote *domain.Vote) error

	// DeleteByRoundID purges every vote of a round (reset).
	DeleteByRoundID(ctx context.Context, roundID uuid.UUID) error
}
