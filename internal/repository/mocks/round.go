package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/Oppadayo/poker-planning-server/internal/domain"
)

type RoundRepository struct {
	mock.Mock
}

func (m *RoundRepository) FindActiveByRoomID(ctx context.Context, roomID uuid.UUID) (*domain.Round, error) {
	args := m.Called(ctx, roomID)
	var round *domain.Round
	if args.Get(0) != nil {
		round = args.Get(0).(*domain.Round)
	}
	return round, args.Error(1)
}

func (m *RoundRepository) FindActiveByRoomIDForUpdate(ctx context.Context, roomID uuid.UUID) (*domain.Round, error) {
	args := m.Called(ctx, roomID)
	var round *domain.Round
	if args.Get(0) != nil {
		round = args.Get(0).(*domain.Round)
	}
	return round, args.Error(1)
}

func (m *RoundRepository) Save(ctx context.Context, round *domain.Round) error {
	args := m.Called(ctx, round)
	return args.Error(0)
}

type VoteRepository struct {
	mock.Mock
}

func (m *VoteRepository) FindByRoundID(ctx context.Context, roundID uuid.UUID) ([]domain.Vote, error) {
	args := m.Called(ctx, roundID)
	var votes []domain.Vote
	if args.Get(0) != nil {
		votes = args.Get(0).([]domain.Vote)
	}
	return votes, args.Error(1)
}

func (m *VoteRepository) FindByRoundIDAndParticipantID(ctx context.Context, roundID, participantID uuid.UUID) (*domain.Vote, error) {
	args := m.Called(ctx, roundID, participantID)
	var vote *domain.Vote
	if args.Get(0) != nil {
		vote = args.Get(0).(*domain.Vote)
	}
	return vote, args.Error(1)
}

func (m *VoteRepository) Save(ctx context.Context, vote *domain.Vote) error {
	args := m.Called(ctx, vote)
	return args.Error(0)
}

func (m *VoteRepository) DeleteByRoundID(ctx context.Context, roundID uuid.UUID) error {
	args := m.Called(ctx, roundID)
	return args.Error(0)
}
