package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Oppadayo/poker-planning-server/internal/service"
)

// StoryHandler exposes backlog management over HTTP. Writes are
// host-gated, reads are open to anyone who knows the room id.
type StoryHandler struct {
	storyService *service.StoryService
	actors       *service.ActorService
}

func NewStoryHandler(storyService *service.StoryService, actors *service.ActorService) *StoryHandler {
	return &StoryHandler{storyService: storyService, actors: actors}
}

type CreateStoryRequest struct {
	Title       string `json:"title" binding:"required,max=200"`
	Description string `json:"description" binding:"omitempty"`
	ExternalRef string `json:"externalRef" binding:"omitempty,max=500"`
}

// CreateStory handles POST /rooms/:roomId/stories. Host only.
func (h *StoryHandler) CreateStory(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	actor, ok := resolveHostActor(c, h.actors, roomID)
	if !ok {
		return
	}

	var req CreateStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": err.Error()})
		return
	}

	story, err := h.storyService.Create(c.Request.Context(), actor, roomID, service.CreateStoryInput{
		Title:       req.Title,
		Description: req.Description,
		ExternalRef: req.ExternalRef,
	})
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, story)
}

// ListStories handles GET /rooms/:roomId/stories.
func (h *StoryHandler) ListStories(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	stories, err := h.storyService.List(c.Request.Context(), roomID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"stories": stories})
}

type UpdateStoryRequest struct {
	Title       *string `json:"title" binding:"omitempty,max=200"`
	Description *string `json:"description"`
	ExternalRef *string `json:"externalRef" binding:"omitempty,max=500"`
}

// UpdateStory handles PATCH /rooms/:roomId/stories/:storyId. Host
// only. Absent fields are left unchanged.
func (h *StoryHandler) UpdateStory(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	storyID, ok := uuidParam(c, "storyId")
	if !ok {
		return
	}
	actor, ok := resolveHostActor(c, h.actors, roomID)
	if !ok {
		return
	}

	var req UpdateStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": err.Error()})
		return
	}

	story, err := h.storyService.Update(c.Request.Context(), actor, roomID, storyID, service.UpdateStoryInput{
		Title:       req.Title,
		Description: req.Description,
		ExternalRef: req.ExternalRef,
	})
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, story)
}

// DeleteStory handles DELETE /rooms/:roomId/stories/:storyId. Host
// only.
func (h *StoryHandler) DeleteStory(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	storyID, ok := uuidParam(c, "storyId")
	if !ok {
		return
	}
	actor, ok := resolveHostActor(c, h.actors, roomID)
	if !ok {
		return
	}
	if err := h.storyService.Delete(c.Request.Context(), actor, roomID, storyID); err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"message": "Story deleted"})
}

type ReorderStoriesRequest struct {
	StoryIDs []string `json:"storyIds" binding:"required,min=1,dive,uuid"`
}

// ReorderStories handles PUT /rooms/:roomId/stories/order. Host only.
func (h *StoryHandler) ReorderStories(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	actor, ok := resolveHostActor(c, h.actors, roomID)
	if !ok {
		return
	}

	var req ReorderStoriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": err.Error()})
		return
	}

	ids := make([]uuid.UUID, 0, len(req.StoryIDs))
	for _, raw := range req.StoryIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			ErrorResponse(c, http.StatusBadRequest, "invalid story id: "+raw)
			return
		}
		ids = append(ids, id)
	}

	stories, err := h.storyService.Reorder(c.Request.Context(), actor, roomID, ids)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"stories": stories})
}

// SelectStory handles POST /rooms/:roomId/stories/:storyId/select.
// Host only.
func (h *StoryHandler) SelectStory(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	storyID, ok := uuidParam(c, "storyId")
	if !ok {
		return
	}
	actor, ok := resolveHostActor(c, h.actors, roomID)
	if !ok {
		return
	}

	story, err := h.storyService.Select(c.Request.Context(), actor, roomID, storyID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, story)
}
