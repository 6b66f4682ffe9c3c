package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Oppadayo/poker-planning-server/internal/middleware"
	"github.com/Oppadayo/poker-planning-server/internal/service"
)

// AuthHandler exposes account registration, login and the
// user-scoped reads.
type AuthHandler struct {
	authService *service.AuthService
}

func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Handler.Register: Invalid input format")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": err.Error()})
		return
	}

	user, err := h.authService.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	logrus.WithField("user_id", user.ID).Info("Handler.Register: User registered successfully")
	SuccessResponse(c, http.StatusCreated, gin.H{
		"message": "User registered successfully",
		"userId":  user.ID,
	})
}

type LoginRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token    string `json:"token"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// Login handles POST /auth/login. Identifier matches username or
// email.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Handler.Login: Invalid input format")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: identifier and password required"})
		return
	}

	user, token, err := h.authService.Login(c.Request.Context(), req.Identifier, req.Password)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	logrus.WithField("user_id", user.ID).Info("Handler.Login: User logged in successfully")
	SuccessResponse(c, http.StatusOK, LoginResponse{
		Token:    token,
		UserID:   user.ID.String(),
		Username: user.Username,
	})
}

type ClaimSessionsRequest struct {
	GuestID string `json:"guestId" binding:"required"`
}

// ClaimSessions handles POST /me/claim-sessions. Requires auth; moves
// the guest identity's rooms and memberships onto the account.
func (h *AuthHandler) ClaimSessions(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if userID == nil {
		ErrorResponse(c, http.StatusUnauthorized, "authentication required")
		return
	}

	var req ClaimSessionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: guestId required"})
		return
	}

	claimed, err := h.authService.ClaimSessions(c.Request.Context(), *userID, req.GuestID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"claimed": claimed})
}

// Me handles GET /me. Requires auth.
func (h *AuthHandler) Me(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if userID == nil {
		ErrorResponse(c, http.StatusUnauthorized, "authentication required")
		return
	}

	user, err := h.authService.GetUser(c.Request.Context(), *userID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, user)
}

// MyRooms handles GET /me/rooms. Requires auth.
func (h *AuthHandler) MyRooms(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if userID == nil {
		ErrorResponse(c, http.StatusUnauthorized, "authentication required")
		return
	}

	rooms, err := h.authService.UserRooms(c.Request.Context(), *userID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"rooms": rooms})
}
