package service

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/Oppadayo/poker-planning-server/internal/domain"
)

// ActorService resolves request credentials into a domain.Actor.
// Every operation receives an Actor rather than raw credentials, so
// the user/guest distinction is settled once at the edge.
type ActorService struct {
	grants *GrantProvider
}

func NewActorService(grants *GrantProvider) *ActorService {
	if grants == nil {
		panic("NewActorService: grants is nil")
	}
	return &ActorService{grants: grants}
}

// Resolve builds an Actor from an authenticated user id or a
// self-declared guest id. The user identity wins when both are
// present. With neither the request is anonymous.
func (s *ActorService) Resolve(userID *uuid.UUID, guestID string) (domain.Actor, error) {
	if userID != nil {
		return domain.ActorForUser(*userID), nil
	}
	if guestID != "" {
		return domain.ActorForGuest(guestID), nil
	}
	return domain.Actor{}, fmt.Errorf("%w: no identity presented", ErrUnauthenticated)
}

// ResolveHost builds an Actor for a host-gated operation on roomID.
// Registered users pass through unchecked here; their HOST role is
// verified against the participant record inside the service call.
// Guests must present a grant bound to this room with the HOST role,
// because a bare guest id is self-declared and proves nothing.
func (s *ActorService) ResolveHost(userID *uuid.UUID, guestToken string, roomID uuid.UUID) (domain.Actor, error) {
	if userID != nil {
		return domain.ActorForUser(*userID), nil
	}
	if guestToken == "" {
		return domain.Actor{}, fmt.Errorf("%w: host operation requires a user token or guest grant", ErrForbidden)
	}
	claims, err := s.grants.ValidateForRoom(guestToken, roomID)
	if err != nil {
		return domain.Actor{}, err
	}
	if claims.Role != domain.RoleHost {
		return domain.Actor{}, fmt.Errorf("%w: guest grant does not carry the host role", ErrForbidden)
	}
	return domain.ActorForGuestGrant(claims.GuestID, claims.ParticipantID, claims.Role), nil
}
