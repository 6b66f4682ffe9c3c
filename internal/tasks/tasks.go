// Package tasks defines the asynq task types and payloads shared by
// the scheduler and the worker.
package tasks

import "encoding/json"

const (
	// TypeInvitePurge deletes expired and long-revoked invites.
	TypeInvitePurge = "invite:purge"

	// TypeRoomSweep closes rooms that have been idle past the cutoff.
	TypeRoomSweep = "room:sweep"
)

// InvitePurgePayload bounds the purge: revoked invites are kept for
// RetainRevokedHours before deletion so recent revocations stay
// auditable.
type InvitePurgePayload struct {
	RetainRevokedHours int `json:"retainRevokedHours"`
}

func NewInvitePurgeTask(retainRevokedHours int) ([]byte, error) {
	return json.Marshal(InvitePurgePayload{RetainRevokedHours: retainRevokedHours})
}

// RoomSweepPayload carries the idle threshold: active rooms created
// more than MaxAgeHours ago with no one online are closed.
type RoomSweepPayload struct {
	MaxAgeHours int `json:"maxAgeHours"`
}

func NewRoomSweepTask(maxAgeHours int) ([]byte, error) {
	return json.Marshal(RoomSweepPayload{MaxAgeHours: maxAgeHours})
}
