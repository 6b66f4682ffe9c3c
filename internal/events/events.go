// Package events defines the outbound event ports. The state machine
// emits through Publisher after a mutation commits; Subscriber feeds
// the fan-out hub on every server instance. Implementations may be
// swapped (in-process for tests, Redis pub/sub in production) without
// touching the services.
package events

import (
	"context"

	"github.com/Oppadayo/poker-planning-server/internal/domain"
)

// Publisher emits a domain event onto the room-scoped channel.
// Publication is fire-and-forget from the caller's point of view: the
// mutation that produced the event has already committed, so callers
// log a returned error and move on.
type Publisher interface {
	Publish(ctx context.Context, event domain.RoomEvent) error
}

// Sink receives every event the Subscriber decodes, regardless of
// which instance published it.
type Sink func(event domain.RoomEvent)

// Subscriber listens on all room channels (pattern subscription) and
// forwards decoded events to the sink until Stop is called.
type Subscriber interface {
	Start(ctx context.Context, sink Sink) error
	Stop() error
}
