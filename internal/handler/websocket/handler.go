// Package websocket upgrades room feed connections and hands them to
// the hub.
package websocket

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/Oppadayo/poker-planning-server/internal/hub"
	"github.com/Oppadayo/poker-planning-server/internal/middleware"
	"github.com/Oppadayo/poker-planning-server/internal/service"

	httphandler "github.com/Oppadayo/poker-planning-server/internal/handler/http"
)

// WebSocketHandler upgrades HTTP requests on the room feed endpoint.
// Identity is resolved once here, before the upgrade, and carried by
// the client for the lifetime of the connection.
type WebSocketHandler struct {
	upgrader    websocket.Upgrader
	hub         *hub.Hub
	roomService *service.RoomService
	actors      *service.ActorService
}

func NewWebSocketHandler(h *hub.Hub, roomService *service.RoomService, actors *service.ActorService, allowedOrigins []string) *WebSocketHandler {
	if h == nil {
		panic("Hub cannot be nil for WebSocketHandler")
	}
	if roomService == nil {
		panic("RoomService cannot be nil for WebSocketHandler")
	}
	if actors == nil {
		panic("ActorService cannot be nil for WebSocketHandler")
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}

	return &WebSocketHandler{
		upgrader:    upgrader,
		hub:         h,
		roomService: roomService,
		actors:      actors,
	}
}

// HandleConnection handles GET /ws/rooms/:roomId. Browsers cannot set
// custom headers on WebSocket requests, so credentials are also
// accepted as query parameters (token, guestId).
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	roomID, err := uuidParam(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid room ID format"})
		return
	}
	logCtx := logrus.WithField("room_id", roomID)

	userID := middleware.UserIDFromContext(c)
	guestID := c.GetHeader(httphandler.HeaderGuestID)
	if guestID == "" {
		guestID = c.Query("guestId")
	}

	actor, err := h.actors.Resolve(userID, guestID)
	if err != nil {
		logCtx.Warn("WS Handler: No identity presented")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	// Membership is the feed's authorization: only participants may
	// subscribe.
	participant, err := h.roomService.GetParticipant(c.Request.Context(), roomID, actor)
	if err != nil {
		httphandler.HandleServiceError(c, err)
		return
	}
	logCtx = logCtx.WithField("participant_id", participant.ID)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade writes its own HTTP error response.
		logCtx.WithError(err).Error("WS Handler: Failed to upgrade connection")
		return
	}
	logCtx.Info("WS Handler: Connection upgraded to WebSocket")

	client := hub.NewClient(h.hub, conn, roomID, participant.ID, actor)

	registerMsg := hub.HubMessage{
		Type:   "register",
		Client: client,
		RoomID: roomID,
	}
	if !h.hub.QueueMessage(registerMsg) {
		logCtx.Error("WS Handler: Hub message channel full, failed to register client")
		client.CloseConn()
		return
	}

	client.Run()
	logCtx.Info("WS Handler: Client read/write pumps started")
}

func uuidParam(c *gin.Context) (uuid.UUID, error) {
	return uuid.Parse(c.Param("roomId"))
}

// originChecker matches the Origin header against the configured
// allowlist. An empty allowlist permits any origin, which is meant for
// development setups without a fixed web client domain.
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		if len(allowed) == 0 {
			return true
		}
		origin := r.Header.Get("Origin")
		for _, a := range allowed {
			if strings.EqualFold(origin, a) {
				return true
			}
		}
		return false
	}
}
