package mocks

import (
	"context"

	"github.com/Oppadayo/poker-planning-server/internal/domain"
)

// TxManager is a pass-through transaction manager for service tests:
// RunInTx simply invokes fn with the given context.
type TxManager struct{}

func (TxManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// EventRecorder captures published events so tests can assert on what
// a mutation emitted after its commit.
type EventRecorder struct {
	Events []domain.RoomEvent
}

func (r *EventRecorder) Publish(_ context.Context, event domain.RoomEvent) error {
	r.Events = append(r.Events, event)
	return nil
}

// Types returns the event types in publication order.
func (r *EventRecorder) Types() []domain.EventType {
	types := make([]domain.EventType, 0, len(r.Events))
	for _, e := range r.Events {
		types = append(types, e.Type)
	}
	return types
}
