package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ParticipantRole describes what a participant may do in a room.
type ParticipantRole string

const (
	RoleHost        ParticipantRole = "HOST"
	RoleParticipant ParticipantRole = "PARTICIPANT"
	RoleObserver    ParticipantRole = "OBSERVER"
)

// Participant is one identity's membership in a room. Exactly one of
// UserID or GuestID is set. Re-joining updates the existing record;
// leaving only flips Online so vote history survives.
type Participant struct {
	ID          uuid.UUID       `gorm:"type:char(36);primaryKey" json:"id"`
	RoomID      uuid.UUID       `gorm:"type:char(36);not null;index" json:"roomId"`
	UserID      *uuid.UUID      `gorm:"type:char(36);index" json:"userId,omitempty"`
	GuestID     *string         `gorm:"size:36;index" json:"guestId,omitempty"`
	Role        ParticipantRole `gorm:"size:20;not null" json:"role"`
	DisplayName string          `gorm:"size:100;not null" json:"displayName"`
	Online      bool            `gorm:"not null" json:"online"`
	JoinedAt    time.Time       `gorm:"autoCreateTime" json:"joinedAt"`
}

func (p *Participant) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

func (p *Participant) IsUser() bool  { return p.UserID != nil }
func (p *Participant) IsGuest() bool { return p.GuestID != nil }
