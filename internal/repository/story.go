package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/Oppadayo/poker-planning-server/internal/domain"
)

// StoryRepository stores and retrieves backlog items.
type StoryRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Story, error)

	// FindByRoomIDOrdered lists a room's backlog sorted by order index
	// ascending.
	FindByRoomIDOrdered(ctx context.Context, roomID uuid.UUID) ([]domain.Story, error)

	CountByRoomID(ctx context.Context, roomID uuid.UUID) (int64, error)

	Save(ctx context.Context, story *domain.Story) error

	SaveAll(ctx context.Context, stories []domain.Story) error

	Delete(ctx context.Context, story *domain.Story) error
}
