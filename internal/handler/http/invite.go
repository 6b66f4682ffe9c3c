package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Oppadayo/poker-planning-server/internal/domain"
	"github.com/Oppadayo/poker-planning-server/internal/service"
)

// InviteHandler exposes invite issuance and redemption over HTTP.
type InviteHandler struct {
	inviteService *service.InviteService
	actors        *service.ActorService
}

func NewInviteHandler(inviteService *service.InviteService, actors *service.ActorService) *InviteHandler {
	return &InviteHandler{inviteService: inviteService, actors: actors}
}

type CreateInviteRequest struct {
	Role      string     `json:"role" binding:"omitempty,oneof=PARTICIPANT OBSERVER"`
	ExpiresAt *time.Time `json:"expiresAt"`
	MaxUses   *int       `json:"maxUses" binding:"omitempty,min=1"`
}

type CreateInviteResponse struct {
	Invite *domain.Invite `json:"invite"`
	// Token is shown once; only its hash is stored.
	Token string `json:"token"`
}

// CreateInvite handles POST /rooms/:roomId/invites. Host only.
func (h *InviteHandler) CreateInvite(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	actor, ok := resolveHostActor(c, h.actors, roomID)
	if !ok {
		return
	}

	var req CreateInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": err.Error()})
		return
	}

	created, err := h.inviteService.Create(c.Request.Context(), actor, roomID, service.CreateInviteInput{
		Role:      domain.ParticipantRole(req.Role),
		ExpiresAt: req.ExpiresAt,
		MaxUses:   req.MaxUses,
	})
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, CreateInviteResponse{
		Invite: created.Invite,
		Token:  created.Token,
	})
}

// ListInvites handles GET /rooms/:roomId/invites. Host only; tokens
// are never re-shown.
func (h *InviteHandler) ListInvites(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	actor, ok := resolveHostActor(c, h.actors, roomID)
	if !ok {
		return
	}

	invites, err := h.inviteService.List(c.Request.Context(), actor, roomID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"invites": invites})
}

// RevokeInvite handles DELETE /rooms/:roomId/invites/:inviteId. Host
// only.
func (h *InviteHandler) RevokeInvite(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	inviteID, ok := uuidParam(c, "inviteId")
	if !ok {
		return
	}
	actor, ok := resolveHostActor(c, h.actors, roomID)
	if !ok {
		return
	}

	if err := h.inviteService.Revoke(c.Request.Context(), actor, roomID, inviteID); err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"message": "Invite revoked"})
}

// InspectInvite handles GET /invites/:token. Public, so a join page
// can render the room name before the visitor commits.
func (h *InviteHandler) InspectInvite(c *gin.Context) {
	token := c.Param("token")
	if token == "" {
		ErrorResponse(c, http.StatusBadRequest, "invalid token")
		return
	}

	inspection, err := h.inviteService.InspectByToken(c.Request.Context(), token)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, inspection)
}

type JoinByInviteRequest struct {
	DisplayName string `json:"displayName" binding:"required,max=100"`
}

// JoinByInvite handles POST /invites/:token/join.
func (h *InviteHandler) JoinByInvite(c *gin.Context) {
	token := c.Param("token")
	if token == "" {
		ErrorResponse(c, http.StatusBadRequest, "invalid token")
		return
	}
	actor, ok := resolveActor(c, h.actors)
	if !ok {
		return
	}

	var req JoinByInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: displayName required"})
		return
	}

	result, err := h.inviteService.JoinByToken(c.Request.Context(), actor, token, req.DisplayName)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, JoinedRoomResponse{
		Room:        result.Room,
		Participant: result.Participant,
		GuestGrant:  result.GuestGrant,
	})
}
