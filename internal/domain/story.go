package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StoryStatus is the backlog item lifecycle. At most one story per room
// is SELECTED at a time.
type StoryStatus string

const (
	StoryPending   StoryStatus = "PENDING"
	StorySelected  StoryStatus = "SELECTED"
	StoryEstimated StoryStatus = "ESTIMATED"
)

// Story is a backlog item to be estimated. OrderIndex defines the
// backlog order within a room, zero-based and append-only unless the
// host explicitly reorders.
type Story struct {
	ID            uuid.UUID   `gorm:"type:char(36);primaryKey" json:"id"`
	RoomID        uuid.UUID   `gorm:"type:char(36);not null;index" json:"roomId"`
	Title         string      `gorm:"size:200;not null" json:"title"`
	Description   string      `gorm:"type:text" json:"description,omitempty"`
	ExternalRef   string      `gorm:"size:500" json:"externalRef,omitempty"`
	OrderIndex    int         `gorm:"not null" json:"orderIndex"`
	Status        StoryStatus `gorm:"size:20;not null" json:"status"`
	FinalEstimate *string     `gorm:"size:20" json:"finalEstimate,omitempty"`
	CreatedAt     time.Time   `gorm:"autoCreateTime" json:"createdAt"`
}

func (s *Story) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Status == "" {
		s.Status = StoryPending
	}
	return nil
}
