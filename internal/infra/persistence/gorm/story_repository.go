package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Oppadayo/poker-planning-server/internal/domain"
	"github.com/Oppadayo/poker-planning-server/internal/repository"
)

// GormStoryRepository is the GORM implementation of StoryRepository.
type GormStoryRepository struct {
	db *gorm.DB
}

func NewGormStoryRepository(db *gorm.DB) *GormStoryRepository {
	if db == nil {
		panic("database connection cannot be nil for GormStoryRepository")
	}
	return &GormStoryRepository{db: db}
}

func (r *GormStoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Story, error) {
	var story domain.Story
	err := conn(ctx, r.db).First(&story, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("gorm: find story by id %s: %w", id, err)
	}
	return &story, nil
}

func (r *GormStoryRepository) FindByRoomIDOrdered(ctx context.Context, roomID uuid.UUID) ([]domain.Story, error) {
	var stories []domain.Story
	err := conn(ctx, r.db).
		Where("room_id = ?", roomID).
		Order("order_index ASC").
		Find(&stories).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: find stories by room id %s: %w", roomID, err)
	}
	return stories, nil
}

func (r *GormStoryRepository) CountByRoomID(ctx context.Context, roomID uuid.UUID) (int64, error) {
	var count int64
	err := conn(ctx, r.db).Model(&domain.Story{}).Where("room_id = ?", roomID).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("gorm: count stories for room %s: %w", roomID, err)
	}
	return count, nil
}

func (r *GormStoryRepository) Save(ctx context.Context, story *domain.Story) error {
	if err := conn(ctx, r.db).Save(story).Error; err != nil {
		return fmt.Errorf("gorm: save story %s: %w", story.ID, err)
	}
	return nil
}

func (r *GormStoryRepository) SaveAll(ctx context.Context, stories []domain.Story) error {
	if len(stories) == 0 {
		return nil
	}
	if err := conn(ctx, r.db).Save(&stories).Error; err != nil {
		return fmt.Errorf("gorm: save %d stories: %w", len(stories), err)
	}
	return nil
}

func (r *GormStoryRepository) Delete(ctx context.Context, story *domain.Story) error {
	if err := conn(ctx, r.db).Delete(story).Error; err != nil {
		return fmt.Errorf("gorm: delete story %s: %w", story.ID, err)
	}
	return nil
}
