package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType tags a RoomEvent with the mutation that produced it.
type EventType string

const (
	EventParticipantJoined EventType = "PARTICIPANT_JOINED"
	EventParticipantLeft   EventType = "PARTICIPANT_LEFT"
	EventParticipantKicked EventType = "PARTICIPANT_KICKED"
	EventHostTransferred   EventType = "HOST_TRANSFERRED"
	EventRoomClosed        EventType = "ROOM_CLOSED"
	EventStoryCreated      EventType = "STORY_CREATED"
	EventStoryUpdated      EventType = "STORY_UPDATED"
	EventStoryDeleted      EventType = "STORY_DELETED"
	EventStoryReordered    EventType = "STORY_REORDERED"
	EventStorySelected     EventType = "STORY_SELECTED"
	EventRoundStarted      EventType = "ROUND_STARTED"
	EventVoteCast          EventType = "VOTE_CAST"
	EventRoundRevealed     EventType = "ROUND_REVEALED"
	EventRoundReset        EventType = "ROUND_RESET"
	EventRoundFinalized    EventType = "ROUND_FINALIZED"
)

// RoomEvent is the wire format fanned out to every client subscribed
// to a room feed. Delivery is best-effort; clients that miss events
// recover with a full state fetch.
type RoomEvent struct {
	EventID   string         `json:"eventId"`
	Type      EventType      `json:"type"`
	RoomID    uuid.UUID      `json:"roomId"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload"`
}

// NewRoomEvent stamps a fresh event with a generated id and the
// current time.
func NewRoomEvent(eventType EventType, roomID uuid.UUID, payload map[string]any) RoomEvent {
	if payload == nil {
		payload = map[string]any{}
	}
	return RoomEvent{
		EventID:   uuid.NewString(),
		Type:      eventType,
		RoomID:    roomID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}
