package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/Oppadayo/poker-planning-server/internal/domain"
)

type ParticipantRepository struct {
	mock.Mock
}

func (m *ParticipantRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Participant, error) {
	args := m.Called(ctx, id)
	var p *domain.Participant
	if args.Get(0) != nil {
		p = args.Get(0).(*domain.Participant)
	}
	return p, args.Error(1)
}

func (m *ParticipantRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Participant, error) {
	args := m.Called(ctx, id)
	var p *domain.Participant
	if args.Get(0) != nil {
		p = args.Get(0).(*domain.Participant)
	}
	return p, args.Error(1)
}

func (m *ParticipantRepository) FindByRoomID(ctx context.Context, roomID uuid.UUID) ([]domain.Participant, error) {
	args := m.Called(ctx, roomID)
	var participants []domain.Participant
	if args.Get(0) != nil {
		participants = args.Get(0).([]domain.Participant)
	}
	return participants, args.Error(1)
}

func (m *ParticipantRepository) FindByRoomIDAndUserID(ctx context.Context, roomID, userID uuid.UUID) (*domain.Participant, error) {
	args := m.Called(ctx, roomID, userID)
	var p *domain.Participant
	if args.Get(0) != nil {
		p = args.Get(0).(*domain.Participant)
	}
	return p, args.Error(1)
}

func (m *ParticipantRepository) FindByRoomIDAndGuestID(ctx context.Context, roomID uuid.UUID, guestID string) (*domain.Participant, error) {
	args := m.Called(ctx, roomID, guestID)
	var p *domain.Participant
	if args.Get(0) != nil {
		p = args.Get(0).(*domain.Participant)
	}
	return p, args.Error(1)
}

func (m *ParticipantRepository) FindByGuestID(ctx context.Context, guestID string) ([]domain.Participant, error) {
	args := m.Called(ctx, guestID)
	var participants []domain.Participant
	if args.Get(0) != nil {
		participants = args.Get(0).([]domain.Participant)
	}
	return participants, args.Error(1)
}

func (m *ParticipantRepository) ExistsByRoomIDAndUserID(ctx context.Context, roomID, userID uuid.UUID) (bool, error) {
	args := m.Called(ctx, roomID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *ParticipantRepository) CountOnlineByRoomID(ctx context.Context, roomID uuid.UUID) (int64, error) {
	args := m.Called(ctx, roomID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *ParticipantRepository) Save(ctx context.Context, participant *domain.Participant) error {
	args := m.Called(ctx, participant)
	return args.Error(0)
}

func (m *ParticipantRepository) Delete(ctx context.Context, participant *domain.Participant) error {
	args := m.Called(ctx, participant)
	return args.Error(0)
}
