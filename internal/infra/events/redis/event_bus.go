// Package redisevents implements the event ports on Redis pub/sub.
// Each room has its own channel; every server instance pattern-
// subscribes to all of them, which is what lets a client connected to
// instance A see events produced by a mutation handled on instance B.
package redisevents

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Oppadayo/poker-planning-server/internal/domain"
	"github.com/Oppadayo/poker-planning-server/internal/events"
)

// EventBus is the Redis implementation of events.Publisher and
// events.Subscriber. Delivery is at-most-once per instance hop; there
// is no acknowledgment, retry or persistence.
type EventBus struct {
	client        *redis.Client
	channelPrefix string

	mu     sync.Mutex
	pubsub *redis.PubSub
	done   chan struct{}
}

// NewEventBus creates an EventBus publishing on and subscribing to
// "<prefix>rooms:<roomId>" channels.
func NewEventBus(client *redis.Client, keyPrefix string) *EventBus {
	if client == nil {
		panic("redis client cannot be nil for EventBus")
	}
	return &EventBus{
		client:        client,
		channelPrefix: keyPrefix + "rooms:",
	}
}

func (b *EventBus) channel(roomID uuid.UUID) string {
	return b.channelPrefix + roomID.String()
}

// Publish serializes the event and publishes it on the room channel.
func (b *EventBus) Publish(ctx context.Context, event domain.RoomEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis events: marshal event %s: %w", event.Type, err)
	}
	if err := b.client.Publish(ctx, b.channel(event.RoomID), payload).Err(); err != nil {
		return fmt.Errorf("redis events: publish event %s for room %s: %w", event.Type, event.RoomID, err)
	}
	logrus.WithFields(logrus.Fields{
		"event_type": event.Type,
		"room_id":    event.RoomID,
		"event_id":   event.EventID,
	}).Debug("Published room event")
	return nil
}

// Start opens a pattern subscription over all room channels and pumps
// decoded events into the sink from a background goroutine until Stop.
func (b *EventBus) Start(ctx context.Context, sink events.Sink) error {
	if sink == nil {
		panic("sink cannot be nil for EventBus.Start")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pubsub != nil {
		return fmt.Errorf("redis events: subscriber already started")
	}

	pattern := b.channelPrefix + "*"
	pubsub := b.client.PSubscribe(ctx, pattern)
	// Force the subscription to be established before we report success.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("redis events: psubscribe %q: %w", pattern, err)
	}

	b.pubsub = pubsub
	b.done = make(chan struct{})
	log := logrus.WithField("component", "event_bus")
	log.Infof("Subscribed to room event pattern %q", pattern)

	go func() {
		defer close(b.done)
		for msg := range pubsub.Channel() {
			var event domain.RoomEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.WithError(err).WithField("channel", msg.Channel).Error("Failed to decode room event, dropping")
				continue
			}
			sink(event)
		}
		log.Info("Room event subscription closed")
	}()

	return nil
}

// Stop closes the subscription and waits for the pump goroutine to
// drain.
func (b *EventBus) Stop() error {
	b.mu.Lock()
	pubsub, done := b.pubsub, b.done
	b.pubsub, b.done = nil, nil
	b.mu.Unlock()

	if pubsub == nil {
		return nil
	}
	err := pubsub.Close()
	<-done
	return err
}
