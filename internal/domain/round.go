package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RoundStatus is the voting round lifecycle: VOTING -> REVEALED ->
// FINALIZED, with the single backward edge REVEALED -> VOTING (reset).
// A room has at most one round in VOTING or REVEALED at a time.
type RoundStatus string

const (
	RoundVoting    RoundStatus = "VOTING"
	RoundRevealed  RoundStatus = "REVEALED"
	RoundFinalized RoundStatus = "FINALIZED"
)

// Round is one voting pass over a story. FINALIZED rounds are
// immutable history.
type Round struct {
	ID          uuid.UUID   `gorm:"type:char(36);primaryKey" json:"id"`
	RoomID      uuid.UUID   `gorm:"type:char(36);not null;index" json:"roomId"`
	StoryID     uuid.UUID   `gorm:"type:char(36);not null" json:"storyId"`
	Status      RoundStatus `gorm:"size:20;not null;index" json:"status"`
	StartedAt   time.Time   `gorm:"autoCreateTime" json:"startedAt"`
	RevealedAt  *time.Time  `json:"revealedAt,omitempty"`
	FinalizedAt *time.Time  `json:"finalizedAt,omitempty"`
}

func (r *Round) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Status == "" {
		r.Status = RoundVoting
	}
	return nil
}

// Vote is one participant's choice in a round. At most one vote per
// (round, participant) pair; casting again updates the value.
type Vote struct {
	ID            uuid.UUID `gorm:"type:char(36);primaryKey" json:"id"`
	RoundID       uuid.UUID `gorm:"type:char(36);not null;uniqueIndex:idx_round_participant" json:"roundId"`
	ParticipantID uuid.UUID `gorm:"type:char(36);not null;uniqueIndex:idx_round_participant" json:"participantId"`
	Value         string    `gorm:"size:20;not null" json:"value"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (v *Vote) BeforeCreate(*gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}
