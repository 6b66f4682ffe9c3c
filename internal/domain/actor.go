package domain

import "github.com/google/uuid"

// Actor is the request-scoped identity a set of credentials resolved
// to. It is a tagged variant: a registered user (UserID set), a plain
// guest (GuestID set), or a guest backed by a verified grant (GuestID,
// ParticipantID and Role set). Authorization checks branch on the tag.
type Actor struct {
	UserID  *uuid.UUID
	GuestID string

	// Set only when a signed guest grant was verified for this request.
	ParticipantID *uuid.UUID
	Role          ParticipantRole
}

func ActorForUser(userID uuid.UUID) Actor {
	return Actor{UserID: &userID}
}

func ActorForGuest(guestID string) Actor {
	return Actor{GuestID: guestID}
}

func ActorForGuestGrant(guestID string, participantID uuid.UUID, role ParticipantRole) Actor {
	return Actor{GuestID: guestID, ParticipantID: &participantID, Role: role}
}

func (a Actor) IsUser() bool   { return a.UserID != nil }
func (a Actor) IsGuest() bool  { return a.UserID == nil && a.GuestID != "" }
func (a Actor) HasGrant() bool { return a.ParticipantID != nil }
