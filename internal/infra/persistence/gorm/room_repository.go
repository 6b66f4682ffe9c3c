package gormpersistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Oppadayo/poker-planning-server/internal/domain"
	"github.com/Oppadayo/poker-planning-server/internal/repository"
)

// GormRoomRepository is the GORM implementation of RoomRepository.
type GormRoomRepository struct {
	db *gorm.DB
}

func NewGormRoomRepository(db *gorm.DB) *GormRoomRepository {
	if db == nil {
		panic("database connection cannot be nil for GormRoomRepository")
	}
	return &GormRoomRepository{db: db}
}

func (r *GormRoomRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Room, error) {
	var room domain.Room
	err := conn(ctx, r.db).First(&room, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("gorm: find room by id %s: %w", id, err)
	}
	return &room, nil
}

func (r *GormRoomRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Room, error) {
	var room domain.Room
	err := conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&room, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("gorm: find room by id %s for update: %w", id, err)
	}
	return &room, nil
}

func (r *GormRoomRepository) FindByCode(ctx context.Context, code string) (*domain.Room, error) {
	var room domain.Room
	err := conn(ctx, r.db).Where("code = ?", code).First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("gorm: find room by code %q: %w", code, err)
	}
	return &room, nil
}

func (r *GormRoomRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	var count int64
	err := conn(ctx, r.db).Model(&domain.Room{}).Where("code = ?", code).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("gorm: count rooms by code %q: %w", code, err)
	}
	return count > 0, nil
}

func (r *GormRoomRepository) FindByCreatorGuestID(ctx context.Context, guestID string) ([]domain.Room, error) {
	var rooms []domain.Room
	err := conn(ctx, r.db).Where("creator_guest_id = ?", guestID).Find(&rooms).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: find rooms by creator guest id: %w", err)
	}
	return rooms, nil
}

func (r *GormRoomRepository) FindByCreatorUserIDAndStatus(ctx context.Context, userID uuid.UUID, status domain.RoomStatus) ([]domain.Room, error) {
	var rooms []domain.Room
	err := conn(ctx, r.db).
		Where("creator_user_id = ? AND status = ?", userID, status).
		Order("created_at DESC").
		Find(&rooms).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: find rooms by creator user id: %w", err)
	}
	return rooms, nil
}

func (r *GormRoomRepository) FindActiveCreatedBefore(ctx context.Context, cutoff time.Time) ([]domain.Room, error) {
	var rooms []domain.Room
	err := conn(ctx, r.db).
		Where("status = ? AND created_at < ?", domain.RoomActive, cutoff).
		Find(&rooms).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: find active rooms created before %s: %w", cutoff, err)
	}
	return rooms, nil
}

func (r *GormRoomRepository) Save(ctx context.Context, room *domain.Room) error {
	if err := conn(ctx, r.db).Save(room).Error; err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: save room %s: %w", room.ID, err)
	}
	return nil
}
