package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Oppadayo/poker-planning-server/internal/domain"
	"github.com/Oppadayo/poker-planning-server/internal/middleware"
	"github.com/Oppadayo/poker-planning-server/internal/service"
)

// Credential headers. Registered users authenticate with the standard
// bearer header handled by the auth middleware; guests identify with
// their client-generated id and, for host-gated operations, present
// the signed grant issued when they joined.
const (
	HeaderGuestID    = "X-Guest-Id"
	HeaderGuestToken = "X-Guest-Token"
)

// resolveActor builds the Actor for a standard operation from a prior
// OptionalAuth pass plus the guest id header.
func resolveActor(c *gin.Context, actors *service.ActorService) (domain.Actor, bool) {
	actor, err := actors.Resolve(middleware.UserIDFromContext(c), c.GetHeader(HeaderGuestID))
	if err != nil {
		HandleServiceError(c, err)
		return domain.Actor{}, false
	}
	return actor, true
}

// resolveHostActor builds the Actor for a host-gated operation on
// roomID: an authenticated user passes through, a guest must present a
// grant bound to this room.
func resolveHostActor(c *gin.Context, actors *service.ActorService, roomID uuid.UUID) (domain.Actor, bool) {
	actor, err := actors.ResolveHost(middleware.UserIDFromContext(c), c.GetHeader(HeaderGuestToken), roomID)
	if err != nil {
		HandleServiceError(c, err)
		return domain.Actor{}, false
	}
	return actor, true
}

// roomIDParam parses the roomId path parameter.
func roomIDParam(c *gin.Context) (uuid.UUID, bool) {
	return uuidParam(c, "roomId")
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
