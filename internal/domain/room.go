package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DeckType selects the card deck participants estimate with.
type DeckType string

const (
	DeckFibonacci   DeckType = "FIBONACCI"
	DeckTShirt      DeckType = "TSHIRT"
	DeckPowersOfTwo DeckType = "POWERS_OF_TWO"
)

// RoomStatus is the room lifecycle state. CLOSED is terminal.
type RoomStatus string

const (
	RoomActive RoomStatus = "ACTIVE"
	RoomClosed RoomStatus = "CLOSED"
)

// RoomSettings holds the per-room estimation options.
type RoomSettings struct {
	DeckType       DeckType `gorm:"column:deck_type;size:30;not null" json:"deckType"`
	AllowObservers bool     `gorm:"column:allow_observers;not null" json:"allowObservers"`
}

// Room is an estimation session. Exactly one of CreatorUserID or
// CreatorGuestID is set, matching the identity that created it.
type Room struct {
	ID             uuid.UUID    `gorm:"type:char(36);primaryKey" json:"id"`
	Name           string       `gorm:"size:100;not null" json:"name"`
	Code           string       `gorm:"size:10;not null;uniqueIndex" json:"code"`
	CreatorUserID  *uuid.UUID   `gorm:"type:char(36);index" json:"creatorUserId,omitempty"`
	CreatorGuestID *string      `gorm:"size:36;index" json:"creatorGuestId,omitempty"`
	Settings       RoomSettings `gorm:"embedded" json:"settings"`
	Status         RoomStatus   `gorm:"size:20;not null" json:"status"`
	CurrentStoryID *uuid.UUID   `gorm:"type:char(36)" json:"currentStoryId,omitempty"`
	CreatedAt      time.Time    `gorm:"autoCreateTime" json:"createdAt"`
}

func (r *Room) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Status == "" {
		r.Status = RoomActive
	}
	if r.Settings.DeckType == "" {
		r.Settings.DeckType = DeckFibonacci
	}
	return nil
}

func (r *Room) IsClosed() bool { return r.Status == RoomClosed }
