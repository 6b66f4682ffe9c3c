package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/Oppadayo/poker-planning-server/internal/domain"
)

type StoryRepository struct {
	mock.Mock
}

func (m *StoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Story, error) {
	args := m.Called(ctx, id)
	var story *domain.Story
	if args.Get(0) != nil {
		story = args.Get(0).(*domain.Story)
	}
	return story, args.Error(1)
}

func (m *StoryRepository) FindByRoomIDOrdered(ctx context.Context, roomID uuid.UUID) ([]domain.Story, error) {
	args := m.Called(ctx, roomID)
	var stories []domain.Story
	if args.Get(0) != nil {
		stories = args.Get(0).([]domain.Story)
	}
	return stories, args.Error(1)
}

func (m *StoryRepository) CountByRoomID(ctx context.Context, roomID uuid.UUID) (int64, error) {
	args := m.Called(ctx, roomID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *StoryRepository) Save(ctx context.Context, story *domain.Story) error {
	args := m.Called(ctx, story)
	return args.Error(0)
}

func (m *StoryRepository) SaveAll(ctx context.Context, stories []domain.Story) error {
	args := m.Called(ctx, stories)
	return args.Error(0)
}

func (m *StoryRepository) Delete(ctx context.Context, story *domain.Story) error {
	args := m.Called(ctx, story)
	return args.Error(0)
}
