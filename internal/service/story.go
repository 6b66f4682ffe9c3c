package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Oppadayo/poker-planning-server/internal/domain"
	"github.com/Oppadayo/poker-planning-server/internal/events"
	"github.com/Oppadayo/poker-planning-server/internal/repository"
)

// StoryService manages a room's backlog: create, edit, reorder and the
// SELECTED pointer the round machinery estimates against.
type StoryService struct {
	stories   repository.StoryRepository
	rooms     repository.RoomRepository
	roomsSvc  *RoomService
	tx        repository.TxManager
	publisher events.Publisher
}

func NewStoryService(
	stories repository.StoryRepository,
	rooms repository.RoomRepository,
	roomsSvc *RoomService,
	tx repository.TxManager,
	publisher events.Publisher,
) *StoryService {
	if stories == nil || rooms == nil || roomsSvc == nil || tx == nil || publisher == nil {
		panic("NewStoryService: nil dependency")
	}
	return &StoryService{
		stories:   stories,
		rooms:     rooms,
		roomsSvc:  roomsSvc,
		tx:        tx,
		publisher: publisher,
	}
}

// CreateStoryInput carries the host-supplied story fields.
type CreateStoryInput struct {
	Title       string
	Description string
	ExternalRef string
}

// UpdateStoryInput is a partial patch; nil fields are left unchanged.
type UpdateStoryInput struct {
	Title       *string
	Description *string
	ExternalRef *string
}

// Create appends a story to the room's backlog. Host only.
func (s *StoryService) Create(ctx context.Context, actor domain.Actor, roomID uuid.UUID, input CreateStoryInput) (*domain.Story, error) {
	logCtx := logrus.WithField("roomId", roomID)

	if input.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrBadRequest)
	}

	var story *domain.Story
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.roomsSvc.RequireHost(txCtx, roomID, actor); err != nil {
			return err
		}
		if _, err := s.roomsSvc.GetActiveRoom(txCtx, roomID); err != nil {
			return err
		}
		count, err := s.stories.CountByRoomID(txCtx, roomID)
		if err != nil {
			return fmt.Errorf("%w: failed to count stories", ErrInternalServer)
		}
		story = &domain.Story{
			RoomID:      roomID,
			Title:       input.Title,
			Description: input.Description,
			ExternalRef: input.ExternalRef,
			OrderIndex:  int(count),
			Status:      domain.StoryPending,
		}
		return s.stories.Save(txCtx, story)
	})
	if err != nil {
		if isServiceError(err) {
			return nil, err
		}
		logCtx.WithError(err).Error("Failed to create story")
		return nil, fmt.Errorf("%w: failed to create story", ErrInternalServer)
	}

	s.emit(ctx, domain.NewRoomEvent(domain.EventStoryCreated, roomID, map[string]any{
		"storyId":    story.ID.String(),
		"title":      story.Title,
		"orderIndex": story.OrderIndex,
	}))
	logCtx.WithField("storyId", story.ID).Info("Story created")
	return story, nil
}

// Update patches a story's descriptive fields. Host only. Status and
// estimate are owned by the round machinery and cannot be patched here.
func (s *StoryService) Update(ctx context.Context, actor domain.Actor, roomID, storyID uuid.UUID, input UpdateStoryInput) (*domain.Story, error) {
	logCtx := logrus.WithFields(logrus.Fields{"roomId": roomID, "storyId": storyID})

	var story *domain.Story
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.roomsSvc.RequireHost(txCtx, roomID, actor); err != nil {
			return err
		}
		var err error
		story, err = s.getRoomStory(txCtx, roomID, storyID)
		if err != nil {
			return err
		}
		if input.Title != nil {
			if *input.Title == "" {
				return fmt.Errorf("%w: title cannot be empty", ErrBadRequest)
			}
			story.Title = *input.Title
		}
		if input.Description != nil {
			story.Description = *input.Description
		}
		if input.ExternalRef != nil {
			story.ExternalRef = *input.ExternalRef
		}
		return s.stories.Save(txCtx, story)
	})
	if err != nil {
		if isServiceError(err) {
			return nil, err
		}
		logCtx.WithError(err).Error("Failed to update story")
		return nil, fmt.Errorf("%w: failed to update story", ErrInternalServer)
	}

	s.emit(ctx, domain.NewRoomEvent(domain.EventStoryUpdated, roomID, map[string]any{
		"storyId": story.ID.String(),
		"title":   story.Title,
	}))
	return story, nil
}

// Delete removes a story from the backlog. Host only. Deleting the
// currently selected story clears the room's selection pointer.
func (s *StoryService) Delete(ctx context.Context, actor domain.Actor, roomID, storyID uuid.UUID) error {
	logCtx := logrus.WithFields(logrus.Fields{"roomId": roomID, "storyId": storyID})

	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.roomsSvc.RequireHost(txCtx, roomID, actor); err != nil {
			return err
		}
		story, err := s.getRoomStory(txCtx, roomID, storyID)
		if err != nil {
			return err
		}
		room, err := s.rooms.FindByIDForUpdate(txCtx, roomID)
		if err != nil {
			return fmt.Errorf("%w: failed to look up room", ErrInternalServer)
		}
		if room.CurrentStoryID != nil && *room.CurrentStoryID == storyID {
			room.CurrentStoryID = nil
			if err := s.rooms.Save(txCtx, room); err != nil {
				return err
			}
		}
		return s.stories.Delete(txCtx, story)
	})
	if err != nil {
		if isServiceError(err) {
			return err
		}
		logCtx.WithError(err).Error("Failed to delete story")
		return fmt.Errorf("%w: failed to delete story", ErrInternalServer)
	}

	s.emit(ctx, domain.NewRoomEvent(domain.EventStoryDeleted, roomID, map[string]any{
		"storyId": storyID.String(),
	}))
	logCtx.Info("Story deleted")
	return nil
}

// Reorder rewrites the backlog order from the given id sequence. Host
// only. Ids must belong to the room; stories omitted from the sequence
// keep their existing index.
func (s *StoryService) Reorder(ctx context.Context, actor domain.Actor, roomID uuid.UUID, orderedIDs []uuid.UUID) ([]domain.Story, error) {
	logCtx := logrus.WithField("roomId", roomID)

	var stories []domain.Story
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.roomsSvc.RequireHost(txCtx, roomID, actor); err != nil {
			return err
		}
		var err error
		stories, err = s.stories.FindByRoomIDOrdered(txCtx, roomID)
		if err != nil {
			return fmt.Errorf("%w: failed to list stories", ErrInternalServer)
		}

		byID := make(map[uuid.UUID]*domain.Story, len(stories))
		for i := range stories {
			byID[stories[i].ID] = &stories[i]
		}

		// Only listed stories are rewritten; omitted ones keep their
		// existing index.
		seen := make(map[uuid.UUID]bool, len(orderedIDs))
		for position, id := range orderedIDs {
			if seen[id] {
				return fmt.Errorf("%w: duplicate story id in order", ErrBadRequest)
			}
			seen[id] = true
			story, ok := byID[id]
			if !ok {
				return fmt.Errorf("%w: story %s does not belong to this room", ErrBadRequest, id)
			}
			story.OrderIndex = position
		}
		return s.stories.SaveAll(txCtx, stories)
	})
	if err != nil {
		if isServiceError(err) {
			return nil, err
		}
		logCtx.WithError(err).Error("Failed to reorder stories")
		return nil, fmt.Errorf("%w: failed to reorder stories", ErrInternalServer)
	}

	ids := make([]string, 0, len(stories))
	for _, st := range stories {
		ids = append(ids, st.ID.String())
	}
	s.emit(ctx, domain.NewRoomEvent(domain.EventStoryReordered, roomID, map[string]any{
		"storyIds": ids,
	}))
	return s.List(ctx, roomID)
}

// Select makes storyID the room's current story. Host only. Any other
// SELECTED story reverts to PENDING; an ESTIMATED story may be
// re-selected for another estimation pass.
func (s *StoryService) Select(ctx context.Context, actor domain.Actor, roomID, storyID uuid.UUID) (*domain.Story, error) {
	logCtx := logrus.WithFields(logrus.Fields{"roomId": roomID, "storyId": storyID})

	var story *domain.Story
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.roomsSvc.RequireHost(txCtx, roomID, actor); err != nil {
			return err
		}
		room, err := s.rooms.FindByIDForUpdate(txCtx, roomID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%w: room not found", ErrNotFound)
			}
			return fmt.Errorf("%w: failed to look up room", ErrInternalServer)
		}
		if room.IsClosed() {
			return fmt.Errorf("%w: room is closed", ErrBadRequest)
		}
		story, err = s.getRoomStory(txCtx, roomID, storyID)
		if err != nil {
			return err
		}

		all, err := s.stories.FindByRoomIDOrdered(txCtx, roomID)
		if err != nil {
			return fmt.Errorf("%w: failed to list stories", ErrInternalServer)
		}
		for i := range all {
			if all[i].Status == domain.StorySelected && all[i].ID != storyID {
				all[i].Status = domain.StoryPending
				if err := s.stories.Save(txCtx, &all[i]); err != nil {
					return err
				}
			}
		}

		story.Status = domain.StorySelected
		if err := s.stories.Save(txCtx, story); err != nil {
			return err
		}
		room.CurrentStoryID = &story.ID
		return s.rooms.Save(txCtx, room)
	})
	if err != nil {
		if isServiceError(err) {
			return nil, err
		}
		logCtx.WithError(err).Error("Failed to select story")
		return nil, fmt.Errorf("%w: failed to select story", ErrInternalServer)
	}

	s.emit(ctx, domain.NewRoomEvent(domain.EventStorySelected, roomID, map[string]any{
		"storyId": story.ID.String(),
	}))
	logCtx.Info("Story selected")
	return story, nil
}

// List returns the room's backlog in order.
func (s *StoryService) List(ctx context.Context, roomID uuid.UUID) ([]domain.Story, error) {
	stories, err := s.stories.FindByRoomIDOrdered(ctx, roomID)
	if err != nil {
		logrus.WithError(err).WithField("roomId", roomID).Error("Failed to list stories")
		return nil, fmt.Errorf("%w: failed to list stories", ErrInternalServer)
	}
	return stories, nil
}

func (s *StoryService) getRoomStory(ctx context.Context, roomID, storyID uuid.UUID) (*domain.Story, error) {
	story, err := s.stories.FindByID(ctx, storyID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: story not found", ErrNotFound)
		}
		return nil, fmt.Errorf("%w: failed to look up story", ErrInternalServer)
	}
	if story.RoomID != roomID {
		return nil, fmt.Errorf("%w: story does not belong to this room", ErrBadRequest)
	}
	return story, nil
}

func (s *StoryService) emit(ctx context.Context, event domain.RoomEvent) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"roomId": event.RoomID,
			"type":   event.Type,
		}).Error("Failed to publish room event")
	}
}
