package hub

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/Oppadayo/poker-planning-server/internal/domain"
)

// Client is one WebSocket connection to the hub. The actor is resolved
// once at connect time and reused for every inbound frame.
type Client struct {
	hub           *Hub
	conn          *websocket.Conn
	roomID        uuid.UUID
	participantID uuid.UUID
	actor         domain.Actor
	send          chan []byte
}

func NewClient(hub *Hub, conn *websocket.Conn, roomID, participantID uuid.UUID, actor domain.Actor) *Client {
	return &Client{
		hub:           hub,
		conn:          conn,
		roomID:        roomID,
		participantID: participantID,
		actor:         actor,
		send:          make(chan []byte, 256),
	}
}

// Run starts the read and write pumps.
func (c *Client) Run() {
	go c.WritePump()
	go c.ReadPump()
}

// ReadPump pumps frames from the WebSocket connection into the hub's
// message channel. It runs in its own goroutine.
func (c *Client) ReadPump() {
	defer func() {
		unregisterMsg := HubMessage{Type: "unregister", Client: c, RoomID: c.roomID}
		select {
		case c.hub.messageChan <- unregisterMsg:
		case <-c.hub.done:
		case <-time.After(1 * time.Second):
			logrus.WithFields(logrus.Fields{"participant_id": c.participantID, "room_id": c.roomID}).Warn("Timeout sending unregister message to Hub channel")
		}
		c.conn.Close()
		logrus.WithFields(logrus.Fields{"participant_id": c.participantID, "room_id": c.roomID}).Info("readPump exited, unregistered client")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			logCtx := logrus.WithFields(logrus.Fields{"participant_id": c.participantID, "room_id": c.roomID})
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logCtx.WithError(err).Warn("WebSocket read error (unexpected close)")
			} else {
				logCtx.Debug("WebSocket connection closed normally or read error")
			}
			break
		}

		if messageType != websocket.TextMessage {
			logrus.WithFields(logrus.Fields{"participant_id": c.participantID, "room_id": c.roomID}).Debugf("Received non-text message type: %d", messageType)
			continue
		}

		inboundMsg := HubMessage{
			Type:    "inbound",
			RoomID:  c.roomID,
			Client:  c,
			RawData: message,
		}
		select {
		case c.hub.messageChan <- inboundMsg:
		default:
			logrus.WithFields(logrus.Fields{"participant_id": c.participantID, "room_id": c.roomID}).Warn("Hub message channel full, dropping client message")
		}
	}
}

// WritePump pumps messages from the send channel to the WebSocket
// connection and keeps the connection alive with periodic pings. It
// runs in its own goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		logrus.WithFields(logrus.Fields{"participant_id": c.participantID, "room_id": c.roomID}).Info("writePump exited")
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel during unregister.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logrus.WithFields(logrus.Fields{"participant_id": c.participantID, "room_id": c.roomID}).WithError(err).Warn("Failed to write message to websocket")
				return
			}
			_ = c.conn.SetWriteDeadline(time.Time{})

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logrus.WithFields(logrus.Fields{"participant_id": c.participantID, "room_id": c.roomID}).WithError(err).Warn("Failed to send ping message")
				return
			}
			_ = c.conn.SetWriteDeadline(time.Time{})
		}
	}
}

// sendError pushes an error frame to the client, dropping it when the
// send queue is full.
func (c *Client) sendError(message string) {
	frame, err := json.Marshal(map[string]string{"type": "error", "message": message})
	if err != nil {
		return
	}
	select {
	case c.send <- frame:
	default:
	}
}

func (c *Client) RoomID() uuid.UUID        { return c.roomID }
func (c *Client) ParticipantID() uuid.UUID { return c.participantID }
func (c *Client) Actor() domain.Actor      { return c.actor }
func (c *Client) CloseConn()               { c.conn.Close() }
