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

// GormInviteRepository is the GORM implementation of InviteRepository.
type GormInviteRepository struct {
	db *gorm.DB
}

func NewGormInviteRepository(db *gorm.DB) *GormInviteRepository {
	if db == nil {
		panic("database connection cannot be nil for GormInviteRepository")
	}
	return &GormInviteRepository{db: db}
}

func (r *GormInviteRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Invite, error) {
	var invite domain.Invite
	err := conn(ctx, r.db).First(&invite, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("gorm: find invite by id %s: %w", id, err)
	}
	return &invite, nil
}

func (r *GormInviteRepository) FindByTokenHash(ctx context.Context, tokenHash string) (*domain.Invite, error) {
	var invite domain.Invite
	err := conn(ctx, r.db).Where("token_hash = ?", tokenHash).First(&invite).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("gorm: find invite by token hash: %w", err)
	}
	return &invite, nil
}

func (r *GormInviteRepository) FindByTokenHashForUpdate(ctx context.Context, tokenHash string) (*domain.Invite, error) {
	var invite domain.Invite
	err := conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("token_hash = ?", tokenHash).
		First(&invite).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("gorm: find invite by token hash for update: %w", err)
	}
	return &invite, nil
}

func (r *GormInviteRepository) FindByRoomID(ctx context.Context, roomID uuid.UUID) ([]domain.Invite, error) {
	var invites []domain.Invite
	err := conn(ctx, r.db).
		Where("room_id = ?", roomID).
		Order("created_at DESC").
		Find(&invites).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: find invites by room id %s: %w", roomID, err)
	}
	return invites, nil
}

func (r *GormInviteRepository) Save(ctx context.Context, invite *domain.Invite) error {
	if err := conn(ctx, r.db).Save(invite).Error; err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: save invite %s: %w", invite.ID, err)
	}
	return nil
}

func (r *GormInviteRepository) DeleteStale(ctx context.Context, now, revokedBefore time.Time) (int64, error) {
	result := conn(ctx, r.db).
		Where("(expires_at IS NOT NULL AND expires_at < ?) OR (revoked_at IS NOT NULL AND revoked_at < ?)", now, revokedBefore).
		Delete(&domain.Invite{})
	if result.Error != nil {
		return 0, fmt.Errorf("gorm: delete stale invites: %w", result.Error)
	}
	return result.RowsAffected, nil
}
