package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Oppadayo/poker-planning-server/internal/service"
)

// RoundHandler exposes the voting round state machine over HTTP.
type RoundHandler struct {
	roundService *service.RoundService
	actors       *service.ActorService
}

func NewRoundHandler(roundService *service.RoundService, actors *service.ActorService) *RoundHandler {
	return &RoundHandler{roundService: roundService, actors: actors}
}

// StartRound handles POST /rooms/:roomId/rounds. Host only.
func (h *RoundHandler) StartRound(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	actor, ok := resolveHostActor(c, h.actors, roomID)
	if !ok {
		return
	}

	round, err := h.roundService.Start(c.Request.Context(), actor, roomID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, round)
}

// GetActiveRound handles GET /rooms/:roomId/rounds/active. Vote values
// are concealed while the round is in VOTING.
func (h *RoundHandler) GetActiveRound(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	round, err := h.roundService.ActiveRound(c.Request.Context(), roomID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	if round == nil {
		ErrorResponse(c, http.StatusNotFound, "no active round")
		return
	}
	SuccessResponse(c, http.StatusOK, round)
}

type CastVoteRequest struct {
	Value string `json:"value" binding:"required,max=20"`
}

// CastVote handles POST /rooms/:roomId/votes. Any non-observer member.
func (h *RoundHandler) CastVote(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	actor, ok := resolveActor(c, h.actors)
	if !ok {
		return
	}

	var req CastVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: value required"})
		return
	}

	if err := h.roundService.CastVote(c.Request.Context(), actor, roomID, req.Value); err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"message": "Vote recorded"})
}

// RevealRound handles POST /rooms/:roomId/rounds/active/reveal. Host
// only.
func (h *RoundHandler) RevealRound(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	actor, ok := resolveHostActor(c, h.actors, roomID)
	if !ok {
		return
	}

	round, err := h.roundService.Reveal(c.Request.Context(), actor, roomID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, round)
}

// ResetRound handles POST /rooms/:roomId/rounds/active/reset. Host
// only.
func (h *RoundHandler) ResetRound(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	actor, ok := resolveHostActor(c, h.actors, roomID)
	if !ok {
		return
	}

	round, err := h.roundService.Reset(c.Request.Context(), actor, roomID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, round)
}

type FinalizeRoundRequest struct {
	FinalEstimate string `json:"finalEstimate" binding:"required,max=20"`
}

// FinalizeRound handles POST /rooms/:roomId/rounds/active/finalize.
// Host only.
func (h *RoundHandler) FinalizeRound(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	actor, ok := resolveHostActor(c, h.actors, roomID)
	if !ok {
		return
	}

	var req FinalizeRoundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: finalEstimate required"})
		return
	}

	round, err := h.roundService.Finalize(c.Request.Context(), actor, roomID, req.FinalEstimate)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, round)
}
