package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Oppadayo/poker-planning-server/internal/domain"
	"github.com/Oppadayo/poker-planning-server/internal/service"
)

// RoomHandler exposes room lifecycle and membership over HTTP.
type RoomHandler struct {
	roomService  *service.RoomService
	storyService *service.StoryService
	roundService *service.RoundService
	actors       *service.ActorService
}

func NewRoomHandler(
	roomService *service.RoomService,
	storyService *service.StoryService,
	roundService *service.RoundService,
	actors *service.ActorService,
) *RoomHandler {
	return &RoomHandler{
		roomService:  roomService,
		storyService: storyService,
		roundService: roundService,
		actors:       actors,
	}
}

type CreateRoomRequest struct {
	Name           string `json:"name" binding:"required,max=100"`
	DisplayName    string `json:"displayName" binding:"required,max=100"`
	DeckType       string `json:"deckType" binding:"omitempty"`
	AllowObservers bool   `json:"allowObservers"`
}

// JoinedRoomResponse is returned by create and every join variant.
type JoinedRoomResponse struct {
	Room        *domain.Room        `json:"room"`
	Participant *domain.Participant `json:"participant"`
	GuestGrant  string              `json:"guestGrant,omitempty"`
}

// CreateRoom handles POST /rooms.
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	actor, ok := resolveActor(c, h.actors)
	if !ok {
		return
	}

	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Handler.CreateRoom: Invalid input format")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": err.Error()})
		return
	}

	result, err := h.roomService.Create(c.Request.Context(), actor, service.CreateRoomInput{
		Name:           req.Name,
		DisplayName:    req.DisplayName,
		DeckType:       domain.DeckType(req.DeckType),
		AllowObservers: req.AllowObservers,
	})
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusCreated, JoinedRoomResponse{
		Room:        result.Room,
		Participant: result.Participant,
		GuestGrant:  result.GuestGrant,
	})
}

// GetRoom handles GET /rooms/:roomId.
func (h *RoomHandler) GetRoom(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	room, err := h.roomService.GetRoom(c.Request.Context(), roomID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, room)
}

// RoomStateResponse is the full snapshot a client renders from before
// switching to the live feed.
type RoomStateResponse struct {
	Room         *domain.Room         `json:"room"`
	Me           *domain.Participant  `json:"me"`
	Participants []domain.Participant `json:"participants"`
	Stories      []domain.Story       `json:"stories"`
	ActiveRound  *service.RoundView   `json:"activeRound,omitempty"`
}

// GetRoomState handles GET /rooms/:roomId/state. Member only.
func (h *RoomHandler) GetRoomState(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	actor, ok := resolveActor(c, h.actors)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	room, err := h.roomService.GetRoom(ctx, roomID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	me, err := h.roomService.GetParticipant(ctx, roomID, actor)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	participants, err := h.roomService.Participants(ctx, roomID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	stories, err := h.storyService.List(ctx, roomID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	round, err := h.roundService.ActiveRound(ctx, roomID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, RoomStateResponse{
		Room:         room,
		Me:           me,
		Participants: participants,
		Stories:      stories,
		ActiveRound:  round,
	})
}

type JoinRoomRequest struct {
	DisplayName string `json:"displayName" binding:"required,max=100"`
	Role        string `json:"role" binding:"omitempty,oneof=PARTICIPANT OBSERVER"`
}

// JoinRoom handles POST /rooms/:roomId/join.
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	actor, ok := resolveActor(c, h.actors)
	if !ok {
		return
	}

	var req JoinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": err.Error()})
		return
	}

	result, err := h.roomService.Join(c.Request.Context(), actor, roomID, service.JoinInput{
		DisplayName: req.DisplayName,
		Role:        domain.ParticipantRole(req.Role),
	})
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

type JoinByCodeRequest struct {
	Code        string `json:"code" binding:"required,len=6"`
	DisplayName string `json:"displayName" binding:"required,max=100"`
	Role        string `json:"role" binding:"omitempty,oneof=PARTICIPANT OBSERVER"`
}

// JoinByCode handles POST /rooms/join-by-code.
func (h *RoomHandler) JoinByCode(c *gin.Context) {
	actor, ok := resolveActor(c, h.actors)
	if !ok {
		return
	}

	var req JoinByCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": err.Error()})
		return
	}

	result, err := h.roomService.JoinByCode(c.Request.Context(), actor, req.Code, service.JoinInput{
		DisplayName: req.DisplayName,
		Role:        domain.ParticipantRole(req.Role),
	})
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

// LeaveRoom handles POST /rooms/:roomId/leave.
func (h *RoomHandler) LeaveRoom(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	actor, ok := resolveActor(c, h.actors)
	if !ok {
		return
	}
	if err := h.roomService.Leave(c.Request.Context(), actor, roomID); err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"message": "Left room"})
}

// ListParticipants handles GET /rooms/:roomId/participants.
func (h *RoomHandler) ListParticipants(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	participants, err := h.roomService.Participants(c.Request.Context(), roomID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"participants": participants})
}

// KickParticipant handles DELETE /rooms/:roomId/participants/:participantId.
// Host only.
func (h *RoomHandler) KickParticipant(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	targetID, ok := uuidParam(c, "participantId")
	if !ok {
		return
	}
	actor, ok := resolveHostActor(c, h.actors, roomID)
	if !ok {
		return
	}
	if err := h.roomService.Kick(c.Request.Context(), actor, roomID, targetID); err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"message": "Participant kicked"})
}

type TransferHostRequest struct {
	ParticipantID string `json:"participantId" binding:"required,uuid"`
}

// TransferHost handles POST /rooms/:roomId/transfer-host. Host only.
func (h *RoomHandler) TransferHost(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	actor, ok := resolveHostActor(c, h.actors, roomID)
	if !ok {
		return
	}

	var req TransferHostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: participantId required"})
		return
	}
	targetID, err := uuid.Parse(req.ParticipantID)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "invalid participantId")
		return
	}

	if err := h.roomService.TransferHost(c.Request.Context(), actor, roomID, targetID); err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"message": "Host role transferred"})
}

// CloseRoom handles POST /rooms/:roomId/close. Host only.
func (h *RoomHandler) CloseRoom(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	actor, ok := resolveHostActor(c, h.actors, roomID)
	if !ok {
		return
	}
	if err := h.roomService.Close(c.Request.Context(), actor, roomID); err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"message": "Room closed"})
}
