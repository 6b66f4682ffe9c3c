package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/Oppadayo/poker-planning-server/internal/domain"
)

type InviteRepository struct {
	mock.Mock
}

func (m *InviteRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Invite, error) {
	args := m.Called(ctx, id)
	var invite *domain.Invite
	if args.Get(0) != nil {
		invite = args.Get(0).(*domain.Invite)
	}
	return invite, args.Error(1)
}

func (m *InviteRepository) FindByTokenHash(ctx context.Context, tokenHash string) (*domain.Invite, error) {
	args := m.Called(ctx, tokenHash)
	var invite *domain.Invite
	if args.Get(0) != nil {
		invite = args.Get(0).(*domain.Invite)
	}
	return invite, args.Error(1)
}

func (m *InviteRepository) FindByTokenHashForUpdate(ctx context.Context, tokenHash string) (*domain.Invite, error) {
	args := m.Called(ctx, tokenHash)
	var invite *domain.Invite
	if args.Get(0) != nil {
		invite = args.Get(0).(*domain.Invite)
	}
	return invite, args.Error(1)
}

func (m *InviteRepository) FindByRoomID(ctx context.Context, roomID uuid.UUID) ([]domain.Invite, error) {
	args := m.Called(ctx, roomID)
	var invites []domain.Invite
	if args.Get(0) != nil {
		invites = args.Get(0).([]domain.Invite)
	}
	return invites, args.Error(1)
}

func (m *InviteRepository) Save(ctx context.Context, invite *domain.Invite) error {
	args := m.Called(ctx, invite)
	return args.Error(0)
}

func (m *InviteRepository) DeleteStale(ctx context.Context, now, revokedBefore time.Time) (int64, error) {
	args := m.Called(ctx, now, revokedBefore)
	return args.Get(0).(int64), args.Error(1)
}
