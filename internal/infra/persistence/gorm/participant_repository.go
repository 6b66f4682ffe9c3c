package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Oppadayo/poker-planning-server/internal/domain"
	"github.com/Oppadayo/poker-planning-server/internal/repository"
)

// GormParticipantRepository is the GORM implementation of
// ParticipantRepository.
type GormParticipantRepository struct {
	db *gorm.DB
}

func NewGormParticipantRepository(db *gorm.DB) *GormParticipantRepository {
	if db == nil {
		panic("database connection cannot be nil for GormParticipantRepository")
	}
	return &GormParticipantRepository{db: db}
}

func (r *GormParticipantRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Participant, error) {
	var p domain.Participant
	err := conn(ctx, r.db).First(&p, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("gorm: find participant by id %s: %w", id, err)
	}
	return &p, nil
}

func (r *GormParticipantRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Participant, error) {
	var p domain.Participant
	err := conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&p, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("gorm: find participant by id %s for update: %w", id, err)
	}
	return &p, nil
}

func (r *GormParticipantRepository) FindByRoomID(ctx context.Context, roomID uuid.UUID) ([]domain.Participant, error) {
	var participants []domain.Participant
	err := conn(ctx, r.db).
		Where("room_id = ?", roomID).
		Order("joined_at ASC").
		Find(&participants).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: find participants by room id %s: %w", roomID, err)
	}
	return participants, nil
}

func (r *GormParticipantRepository) FindByRoomIDAndUserID(ctx context.Context, roomID, userID uuid.UUID) (*domain.Participant, error) {
	var p domain.Participant
	err := conn(ctx, r.db).Where("room_id = ? AND user_id = ?", roomID, userID).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("gorm: find participant by room %s and user %s: %w", roomID, userID, err)
	}
	return &p, nil
}

func (r *GormParticipantRepository) FindByRoomIDAndGuestID(ctx context.Context, roomID uuid.UUID, guestID string) (*domain.Participant, error) {
	var p domain.Participant
	err := conn(ctx, r.db).Where("room_id = ? AND guest_id = ?", roomID, guestID).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("gorm: find participant by room %s and guest id: %w", roomID, err)
	}
	return &p, nil
}

func (r *GormParticipantRepository) FindByGuestID(ctx context.Context, guestID string) ([]domain.Participant, error) {
	var participants []domain.Participant
	err := conn(ctx, r.db).
		Where("guest_id = ?", guestID).
		Find(&participants).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: find participants by guest id: %w", err)
	}
	return participants, nil
}

func (r *GormParticipantRepository) ExistsByRoomIDAndUserID(ctx context.Context, roomID, userID uuid.UUID) (bool, error) {
	var count int64
	err := conn(ctx, r.db).Model(&domain.Participant{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("gorm: count participants by room %s and user %s: %w", roomID, userID, err)
	}
	return count > 0, nil
}

func (r *GormParticipantRepository) CountOnlineByRoomID(ctx context.Context, roomID uuid.UUID) (int64, error) {
	var count int64
	err := conn(ctx, r.db).Model(&domain.Participant{}).
		Where("room_id = ? AND online = ?", roomID, true).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("gorm: count online participants for room %s: %w", roomID, err)
	}
	return count, nil
}

func (r *GormParticipantRepository) Save(ctx context.Context, participant *domain.Participant) error {
	if err := conn(ctx, r.db).Save(participant).Error; err != nil {
		return fmt.Errorf("gorm: save participant %s: %w", participant.ID, err)
	}
	return nil
}

func (r *GormParticipantRepository) Delete(ctx context.Context, participant *domain.Participant) error {
	if err := conn(ctx, r.db).Delete(participant).Error; err != nil {
		return fmt.Errorf("gorm: delete participant %s: %w", participant.ID, err)
	}
	return nil
}
