// Package hub fans room events out to the WebSocket clients connected
// to this instance and feeds inbound vote messages into the round
// state machine. Events arrive through BroadcastEvent regardless of
// which instance published them.
package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Oppadayo/poker-planning-server/internal/domain"
	"github.com/Oppadayo/poker-planning-server/internal/service"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 1024
)

// HubMessage is the internal envelope every client event travels in.
type HubMessage struct {
	Type    string // "register", "unregister", "inbound"
	RoomID  uuid.UUID
	Client  *Client
	RawData []byte // inbound only: the raw WebSocket frame
}

// inboundMessage is the client-to-server frame. Votes are the only
// supported inbound operation; everything else goes over REST.
type inboundMessage struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Hub maintains the per-room client sets and coordinates message
// handling. One Hub runs per server instance.
type Hub struct {
	messageChan chan HubMessage
	done        chan struct{}
	stopOnce    sync.Once

	rooms   map[uuid.UUID]map[*Client]bool
	roomsMu sync.RWMutex

	roundService *service.RoundService
}

func NewHub(roundService *service.RoundService) *Hub {
	if roundService == nil {
		panic("RoundService cannot be nil for Hub")
	}
	return &Hub{
		messageChan:  make(chan HubMessage, 512),
		done:         make(chan struct{}),
		rooms:        make(map[uuid.UUID]map[*Client]bool),
		roundService: roundService,
	}
}

// Run drives the hub's event loop. It should run in its own goroutine
// and exits when Stop is called.
func (h *Hub) Run() {
	log := logrus.WithField("component", "hub")
	log.Info("Hub is running...")

	for {
		select {
		case <-h.done:
			log.Info("Hub is shutting down...")
			return
		case msg := <-h.messageChan:
			switch msg.Type {
			case "register":
				h.registerClient(msg.Client)
			case "unregister":
				h.unregisterClient(msg.Client)
			case "inbound":
				// Votes hit the database; keep the hub loop free.
				go h.handleInbound(msg)
			default:
				log.Warnf("Hub: Received unknown message type: %s for room %s", msg.Type, msg.RoomID)
			}
		}
	}
}

// Stop signals Run to exit. The message channel itself is never
// closed: clients disconnecting during shutdown still send their
// unregister messages, which are simply no longer consumed.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *Hub) registerClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: Attempted to register a nil client")
		return
	}
	roomID := client.RoomID()
	logCtx := logrus.WithFields(logrus.Fields{
		"room_id":        roomID,
		"participant_id": client.ParticipantID(),
		"action":         "registerClient",
	})

	h.roomsMu.Lock()
	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[*Client]bool)
		logCtx.Info("Client list created for new room")
	}
	h.rooms[roomID][client] = true
	h.roomsMu.Unlock()
	logCtx.Info("Client registered to Hub")
}

func (h *Hub) unregisterClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: Attempted to unregister a nil client")
		return
	}
	roomID := client.RoomID()
	logCtx := logrus.WithFields(logrus.Fields{
		"room_id":        roomID,
		"participant_id": client.ParticipantID(),
		"action":         "unregisterClient",
	})

	h.roomsMu.Lock()
	if roomClients, roomExists := h.rooms[roomID]; roomExists {
		if _, clientExists := roomClients[client]; clientExists {
			delete(roomClients, client)

			// Closing send ends the client's WritePump.
			select {
			case <-client.send:
				logCtx.Warn("Client send channel already closed or has data during unregister")
			default:
				close(client.send)
			}

			if len(roomClients) == 0 {
				delete(h.rooms, roomID)
				logCtx.Info("Room empty, removed from Hub")
			}
		} else {
			logCtx.Warn("Client not found in room during unregister")
		}
	} else {
		logCtx.Warn("Room not found during client unregister")
	}
	h.roomsMu.Unlock()
	logCtx.Info("Client unregistered from Hub")
}

// handleInbound decodes a client frame and feeds it into the services.
func (h *Hub) handleInbound(msg HubMessage) {
	// The originating HTTP request is long gone; use a fresh context.
	ctx := context.Background()
	logCtx := logrus.WithFields(logrus.Fields{
		"room_id":        msg.RoomID,
		"participant_id": msg.Client.ParticipantID(),
		"operation":      "handleInbound",
	})

	var in inboundMessage
	if err := json.Unmarshal(msg.RawData, &in); err != nil {
		logCtx.WithError(err).Warn("Failed to decode inbound message")
		msg.Client.sendError("malformed message")
		return
	}

	switch in.Type {
	case "vote":
		if err := h.roundService.CastVote(ctx, msg.Client.Actor(), msg.RoomID, in.Value); err != nil {
			logCtx.WithError(err).Warn("Vote over WebSocket rejected")
			msg.Client.sendError(err.Error())
		}
	default:
		logCtx.Warnf("Unknown inbound message type: %s", in.Type)
		msg.Client.sendError("unknown message type")
	}
}

// BroadcastEvent delivers a room event to every client of that room
// connected to this instance. It satisfies events.Sink, so the Redis
// subscriber feeds it directly.
func (h *Hub) BroadcastEvent(event domain.RoomEvent) {
	message, err := json.Marshal(event)
	if err != nil {
		logrus.WithError(err).WithField("room_id", event.RoomID).Error("Failed to marshal room event for broadcast")
		return
	}
	h.broadcast(event.RoomID, message)
}

func (h *Hub) broadcast(roomID uuid.UUID, message []byte) {
	h.roomsMu.RLock()
	roomClients, ok := h.rooms[roomID]
	clientsToSend := make([]*Client, 0, len(roomClients))
	for client := range roomClients {
		clientsToSend = append(clientsToSend, client)
	}
	h.roomsMu.RUnlock()

	if !ok || len(clientsToSend) == 0 {
		return
	}

	logCtx := logrus.WithFields(logrus.Fields{
		"room_id":         roomID,
		"message_size":    len(message),
		"recipient_count": len(clientsToSend),
	})
	logCtx.Debug("Broadcasting message to clients")

	for _, client := range clientsToSend {
		// Non-blocking: one slow client must not stall the broadcast.
		select {
		case client.send <- message:
		default:
			logCtx.WithField("participant_id", client.ParticipantID()).Warn("Client send channel full during broadcast, skipping this client")
		}
	}
}

// QueueMessage enqueues a message for the hub loop without blocking.
// Returns false when the queue is full or the hub has stopped.
func (h *Hub) QueueMessage(msg HubMessage) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.messageChan <- msg:
		return true
	case <-h.done:
		return false
	default:
		logrus.WithFields(logrus.Fields{
			"message_type": msg.Type,
			"room_id":      msg.RoomID,
		}).Warn("Hub message channel full, dropping message")
		return false
	}
}
