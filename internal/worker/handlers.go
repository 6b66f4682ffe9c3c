package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/Oppadayo/poker-planning-server/internal/domain"
	"github.com/Oppadayo/poker-planning-server/internal/events"
	"github.com/Oppadayo/poker-planning-server/internal/repository"
	"github.com/Oppadayo/poker-planning-server/internal/tasks"
)

// InvitePurgeHandler deletes invites that can never be redeemed again.
type InvitePurgeHandler struct {
	invites repository.InviteRepository
}

func NewInvitePurgeHandler(invites repository.InviteRepository) *InvitePurgeHandler {
	if invites == nil {
		panic("InviteRepository cannot be nil for InvitePurgeHandler")
	}
	return &InvitePurgeHandler{invites: invites}
}

// ProcessTask implements asynq.Handler.
func (h *InvitePurgeHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	logCtx := logrus.WithField("task_type", t.Type())

	var payload tasks.InvitePurgePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logCtx.WithError(err).Error("Failed to unmarshal task payload")
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	retain := payload.RetainRevokedHours
	if retain <= 0 {
		retain = 24
	}

	now := time.Now().UTC()
	deleted, err := h.invites.DeleteStale(ctx, now, now.Add(-time.Duration(retain)*time.Hour))
	if err != nil {
		logCtx.WithError(err).Error("Failed to purge stale invites")
		return fmt.Errorf("failed to purge stale invites: %w", err)
	}

	logCtx.WithField("deleted", deleted).Info("Invite purge task processed")
	return nil
}

// RoomSweepHandler closes abandoned rooms: still ACTIVE, older than
// the threshold, nobody online. Each closed room gets a ROOM_CLOSED
// event so any straggler client learns its session ended.
type RoomSweepHandler struct {
	rooms        repository.RoomRepository
	participants repository.ParticipantRepository
	publisher    events.Publisher
}

func NewRoomSweepHandler(
	rooms repository.RoomRepository,
	participants repository.ParticipantRepository,
	publisher events.Publisher,
) *RoomSweepHandler {
	if rooms == nil || participants == nil || publisher == nil {
		panic("nil dependency for RoomSweepHandler")
	}
	return &RoomSweepHandler{rooms: rooms, participants: participants, publisher: publisher}
}

// ProcessTask implements asynq.Handler.
func (h *RoomSweepHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	logCtx := logrus.WithField("task_type", t.Type())

	var payload tasks.RoomSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logCtx.WithError(err).Error("Failed to unmarshal task payload")
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	maxAge := payload.MaxAgeHours
	if maxAge <= 0 {
		maxAge = 72
	}

	cutoff := time.Now().UTC().Add(-time.Duration(maxAge) * time.Hour)
	stale, err := h.rooms.FindActiveCreatedBefore(ctx, cutoff)
	if err != nil {
		logCtx.WithError(err).Error("Failed to list stale rooms")
		return fmt.Errorf("failed to list stale rooms: %w", err)
	}

	closed := 0
	for i := range stale {
		room := &stale[i]
		online, err := h.participants.CountOnlineByRoomID(ctx, room.ID)
		if err != nil {
			logCtx.WithError(err).WithField("room_id", room.ID).Warn("Failed to count online participants, skipping room")
			continue
		}
		if online > 0 {
			continue
		}

		room.Status = domain.RoomClosed
		if err := h.rooms.Save(ctx, room); err != nil {
			logCtx.WithError(err).WithField("room_id", room.ID).Warn("Failed to close stale room")
			continue
		}
		closed++

		if err := h.publisher.Publish(ctx, domain.NewRoomEvent(domain.EventRoomClosed, room.ID, nil)); err != nil {
			logCtx.WithError(err).WithField("room_id", room.ID).Error("Failed to publish room event")
		}
	}

	logCtx.WithFields(logrus.Fields{"candidates": len(stale), "closed": closed}).Info("Room sweep task processed")
	return nil
}
