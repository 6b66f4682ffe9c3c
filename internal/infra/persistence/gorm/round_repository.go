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

// GormRoundRepository is the GORM implementation of RoundRepository.
type GormRoundRepository struct {
	db *gorm.DB
}

func NewGormRoundRepository(db *gorm.DB) *GormRoundRepository {
	if db == nil {
		panic("database connection cannot be nil for GormRoundRepository")
	}
	return &GormRoundRepository{db: db}
}

func (r *GormRoundRepository) FindActiveByRoomID(ctx context.Context, roomID uuid.UUID) (*domain.Round, error) {
	var round domain.Round
	err := conn(ctx, r.db).
		Where("room_id = ? AND status IN ?", roomID, []domain.RoundStatus{domain.RoundVoting, domain.RoundRevealed}).
		First(&round).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("gorm: find active round for room %s: %w", roomID, err)
	}
	return &round, nil
}

func (r *GormRoundRepository) FindActiveByRoomIDForUpdate(ctx context.Context, roomID uuid.UUID) (*domain.Round, error) {
	var round domain.Round
	err := conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("room_id = ? AND status IN ?", roomID, []domain.RoundStatus{domain.RoundVoting, domain.RoundRevealed}).
		First(&round).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("gorm: find active round for room %s for update: %w", roomID, err)
	}
	return &round, nil
}

func (r *GormRoundRepository) Save(ctx context.Context, round *domain.Round) error {
	if err := conn(ctx, r.db).Save(round).Error; err != nil {
		return fmt.Errorf("gorm: save round %s: %w", round.ID, err)
	}
	return nil
}

// GormVoteRepository is the GORM implementation of VoteRepository.
type GormVoteRepository struct {
	db *gorm.DB
}

func NewGormVoteRepository(db *gorm.DB) *GormVoteRepository {
	if db == nil {
		panic("database connection cannot be nil for GormVoteRepository")
	}
	return &GormVoteRepository{db: db}
}

func (r *GormVoteRepository) FindByRoundID(ctx context.Context, roundID uuid.UUID) ([]domain.Vote, error) {
	var votes []domain.Vote
	err := conn(ctx, r.db).Where("round_id = ?", roundID).Find(&votes).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: find votes by round id %s: %w", roundID, err)
	}
	return votes, nil
}

func (r *GormVoteRepository) FindByRoundIDAndParticipantID(ctx context.Context, roundID, participantID uuid.UUID) (*domain.Vote, error) {
	var vote domain.Vote
	err := conn(ctx, r.db).
		Where("round_id = ? AND participant_id = ?", roundID, participantID).
		First(&vote).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("gorm: find vote by round %s and participant %s: %w", roundID, participantID, err)
	}
	return &vote, nil
}

func (r *GormVoteRepository) Save(ctx context.Context, vote *domain.Vote) error {
	if err := conn(ctx, r.db).Save(vote).Error; err != nil {
		return fmt.Errorf("gorm: save vote %s: %w", vote.ID, err)
	}
	return nil
}

func (r *GormVoteRepository) DeleteByRoundID(ctx context.Context, roundID uuid.UUID) error {
	err := conn(ctx, r.db).Where("round_id = ?", roundID).Delete(&domain.Vote{}).Error
	if err != nil {
		return fmt.Errorf("gorm: delete votes for round %s: %w", roundID, err)
	}
	return nil
}
