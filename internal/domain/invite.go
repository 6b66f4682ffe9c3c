package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Invite is a shareable join credential. Only the SHA-256 hash of the
// raw token is persisted; the raw token is returned exactly once at
// creation time.
type Invite struct {
	ID                   uuid.UUID       `gorm:"type:char(36);primaryKey" json:"id"`
	TokenHash            string          `gorm:"size:64;not null;uniqueIndex" json:"-"`
	RoomID               uuid.UUID       `gorm:"type:char(36);not null;index" json:"roomId"`
	Role                 ParticipantRole `gorm:"size:20;not null" json:"role"`
	ExpiresAt            *time.Time      `json:"expiresAt,omitempty"`
	MaxUses              *int            `json:"maxUses,omitempty"`
	Uses                 int             `gorm:"not null" json:"uses"`
	RevokedAt            *time.Time      `json:"revokedAt,omitempty"`
	CreatorParticipantID uuid.UUID       `gorm:"type:char(36);not null" json:"creatorParticipantId"`
	CreatedAt            time.Time       `gorm:"autoCreateTime" json:"createdAt"`
}

func (i *Invite) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	if i.Role == "" {
		i.Role = RoleParticipant
	}
	return nil
}

func (i *Invite) IsRevoked() bool { return i.RevokedAt != nil }

func (i *Invite) IsExpired() bool {
	return i.ExpiresAt != nil && time.Now().After(*i.ExpiresAt)
}

func (i *Invite) HasReachedMaxUses() bool {
	return i.MaxUses != nil && i.Uses >= *i.MaxUses
}

// IsValid reports whether the invite can still be redeemed.
func (i *Invite) IsValid() bool {
	return !i.IsRevoked() && !i.IsExpired() && !i.HasReachedMaxUses()
}
