package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Oppadayo/poker-planning-server/internal/domain"
	"github.com/Oppadayo/poker-planning-server/internal/repository/mocks"
	"github.com/Oppadayo/poker-planning-server/internal/service"
)

type storyFixture struct {
	stories  *mocks.StoryRepository
	rooms    *mocks.RoomRepository
	parts    *mocks.ParticipantRepository
	recorder *mocks.EventRecorder
	service  *service.StoryService
}

func newStoryFixture(t *testing.T) *storyFixture {
	t.Helper()
	stories := new(mocks.StoryRepository)
	rooms := new(mocks.RoomRepository)
	parts := new(mocks.ParticipantRepository)
	recorder := &mocks.EventRecorder{}
	grants, err := service.NewGrantProvider("grant-secret", time.Hour)
	require.NoError(t, err)
	roomSvc := service.NewRoomService(rooms, parts, mocks.TxManager{}, grants, recorder)
	return &storyFixture{
		stories:  stories,
		rooms:    rooms,
		parts:    parts,
		recorder: recorder,
		service:  service.NewStoryService(stories, rooms, roomSvc, mocks.TxManager{}, recorder),
	}
}

func (f *storyFixture) expectHost(ctx context.Context, roomID, userID uuid.UUID) *domain.Participant {
	host := &domain.Participant{ID: uuid.New(), RoomID: roomID, UserID: &userID, Role: domain.RoleHost}
	f.parts.On("FindByRoomIDAndUserID", ctx, roomID, userID).Return(host, nil).Once()
	return host
}

// --- Create ---

func TestStoryService_Create_AppendsAtEnd(t *testing.T) {
	// Arrange
	f := newStoryFixture(t)
	ctx := context.Background()
	roomID := uuid.New()
	userID := uuid.New()
	f.expectHost(ctx, roomID, userID)
	f.rooms.On("FindByID", ctx, roomID).Return(activeRoom(roomID, true), nil).Once()
	f.stories.On("CountByRoomID", ctx, roomID).Return(int64(2), nil).Once()
	f.stories.On("Save", ctx, mock.MatchedBy(func(s *domain.Story) bool {
		return s.RoomID == roomID && s.Title == "Login page" && s.OrderIndex == 2 &&
			s.Status == domain.StoryPending
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*domain.Story).ID = uuid.New()
	}).Return(nil).Once()

	// Act
	story, err := f.service.Create(ctx, domain.ActorForUser(userID), roomID, service.CreateStoryInput{
		Title: "Login page",
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 2, story.OrderIndex)
	assert.Equal(t, []domain.EventType{domain.EventStoryCreated}, f.recorder.Types())
	f.stories.AssertExpectations(t)
}

func TestStoryService_Create_EmptyTitle(t *testing.T) {
	f := newStoryFixture(t)
	ctx := context.Background()

	_, err := f.service.Create(ctx, domain.ActorForUser(uuid.New()), uuid.New(), service.CreateStoryInput{})

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrBadRequest))
	f.stories.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

// --- Update ---

func TestStoryService_Update_PartialPatch(t *testing.T) {
	// Arrange: only the description is patched; the title stays.
	f := newStoryFixture(t)
	ctx := context.Background()
	roomID := uuid.New()
	userID := uuid.New()
	f.expectHost(ctx, roomID, userID)
	story := &domain.Story{ID: uuid.New(), RoomID: roomID, Title: "Login page", Description: "old"}
	f.stories.On("FindByID", ctx, story.ID).Return(story, nil).Once()
	f.stories.On("Save", ctx, mock.MatchedBy(func(s *domain.Story) bool {
		return s.ID == story.ID && s.Title == "Login page" && s.Description == "new"
	})).Return(nil).Once()
	desc := "new"

	// Act
	updated, err := f.service.Update(ctx, domain.ActorForUser(userID), roomID, story.ID, service.UpdateStoryInput{
		Description: &desc,
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "Login page", updated.Title)
	assert.Equal(t, "new", updated.Description)
}

func TestStoryService_Update_EmptyTitleRejected(t *testing.T) {
	// Arrange
	f := newStoryFixture(t)
	ctx := context.Background()
	roomID := uuid.New()
	userID := uuid.New()
	f.expectHost(ctx, roomID, userID)
	story := &domain.Story{ID: uuid.New(), RoomID: roomID, Title: "Login page"}
	f.stories.On("FindByID", ctx, story.ID).Return(story, nil).Once()
	empty := ""

	// Act
	_, err := f.service.Update(ctx, domain.ActorForUser(userID), roomID, story.ID, service.UpdateStoryInput{
		Title: &empty,
	})

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrBadRequest))
	f.stories.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

// --- Delete ---

func TestStoryService_Delete_ClearsSelection(t *testing.T) {
	// Arrange: the deleted story is the room's current selection.
	f := newStoryFixture(t)
	ctx := context.Background()
	roomID := uuid.New()
	userID := uuid.New()
	f.expectHost(ctx, roomID, userID)
	story := &domain.Story{ID: uuid.New(), RoomID: roomID, Title: "Login page", Status: domain.StorySelected}
	room := activeRoom(roomID, true)
	room.CurrentStoryID = &story.ID
	f.stories.On("FindByID", ctx, story.ID).Return(story, nil).Once()
	f.rooms.On("FindByIDForUpdate", ctx, roomID).Return(room, nil).Once()
	f.rooms.On("Save", ctx, mock.MatchedBy(func(r *domain.Room) bool {
		return r.ID == roomID && r.CurrentStoryID == nil
	})).Return(nil).Once()
	f.stories.On("Delete", ctx, story).Return(nil).Once()

	// Act
	err := f.service.Delete(ctx, domain.ActorForUser(userID), roomID, story.ID)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []domain.EventType{domain.EventStoryDeleted}, f.recorder.Types())
	f.rooms.AssertExpectations(t)
	f.stories.AssertExpectations(t)
}

// --- Reorder ---

func TestStoryService_Reorder_OmittedStoriesKeepIndex(t *testing.T) {
	// Arrange: backlog a(0) b(1) c(2); the host submits [c, a]. c and a
	// get positions 0 and 1; b keeps its stored index.
	f := newStoryFixture(t)
	ctx := context.Background()
	roomID := uuid.New()
	userID := uuid.New()
	f.expectHost(ctx, roomID, userID)
	a := domain.Story{ID: uuid.New(), RoomID: roomID, Title: "a", OrderIndex: 0}
	b := domain.Story{ID: uuid.New(), RoomID: roomID, Title: "b", OrderIndex: 1}
	c := domain.Story{ID: uuid.New(), RoomID: roomID, Title: "c", OrderIndex: 2}
	backlog := []domain.Story{a, b, c}

	f.stories.On("FindByRoomIDOrdered", ctx, roomID).Return(backlog, nil).Once()
	f.stories.On("SaveAll", ctx, mock.MatchedBy(func(stories []domain.Story) bool {
		indexes := make(map[uuid.UUID]int, len(stories))
		for _, s := range stories {
			indexes[s.ID] = s.OrderIndex
		}
		return indexes[c.ID] == 0 && indexes[a.ID] == 1 && indexes[b.ID] == 1
	})).Return(nil).Once()
	f.stories.On("FindByRoomIDOrdered", ctx, roomID).Return(backlog, nil).Once()

	// Act
	_, err := f.service.Reorder(ctx, domain.ActorForUser(userID), roomID, []uuid.UUID{c.ID, a.ID})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []domain.EventType{domain.EventStoryReordered}, f.recorder.Types())
	f.stories.AssertExpectations(t)
}

func TestStoryService_Reorder_DuplicateID(t *testing.T) {
	// Arrange
	f := newStoryFixture(t)
	ctx := context.Background()
	roomID := uuid.New()
	userID := uuid.New()
	f.expectHost(ctx, roomID, userID)
	a := domain.Story{ID: uuid.New(), RoomID: roomID, Title: "a"}
	f.stories.On("FindByRoomIDOrdered", ctx, roomID).Return([]domain.Story{a}, nil).Once()

	// Act
	_, err := f.service.Reorder(ctx, domain.ActorForUser(userID), roomID, []uuid.UUID{a.ID, a.ID})

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrBadRequest))
	f.stories.AssertNotCalled(t, "SaveAll", mock.Anything, mock.Anything)
}

func TestStoryService_Reorder_ForeignStory(t *testing.T) {
	// Arrange
	f := newStoryFixture(t)
	ctx := context.Background()
	roomID := uuid.New()
	userID := uuid.New()
	f.expectHost(ctx, roomID, userID)
	f.stories.On("FindByRoomIDOrdered", ctx, roomID).Return([]domain.Story{}, nil).Once()

	// Act
	_, err := f.service.Reorder(ctx, domain.ActorForUser(userID), roomID, []uuid.UUID{uuid.New()})

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrBadRequest))
	f.stories.AssertNotCalled(t, "SaveAll", mock.Anything, mock.Anything)
}

// --- Select ---

func TestStoryService_Select_DemotesPreviousSelection(t *testing.T) {
	// Arrange: s1 is SELECTED; selecting s2 must demote s1 to PENDING
	// and repoint the room.
	f := newStoryFixture(t)
	ctx := context.Background()
	roomID := uuid.New()
	userID := uuid.New()
	f.expectHost(ctx, roomID, userID)
	s1 := domain.Story{ID: uuid.New(), RoomID: roomID, Title: "s1", Status: domain.StorySelected}
	s2 := domain.Story{ID: uuid.New(), RoomID: roomID, Title: "s2", Status: domain.StoryPending}
	room := activeRoom(roomID, true)
	room.CurrentStoryID = &s1.ID

	f.rooms.On("FindByIDForUpdate", ctx, roomID).Return(room, nil).Once()
	f.stories.On("FindByID", ctx, s2.ID).Return(&s2, nil).Once()
	f.stories.On("FindByRoomIDOrdered", ctx, roomID).Return([]domain.Story{s1, s2}, nil).Once()
	f.stories.On("Save", ctx, mock.MatchedBy(func(s *domain.Story) bool {
		return s.ID == s1.ID && s.Status == domain.StoryPending
	})).Return(nil).Once()
	f.stories.On("Save", ctx, mock.MatchedBy(func(s *domain.Story) bool {
		return s.ID == s2.ID && s.Status == domain.StorySelected
	})).Return(nil).Once()
	f.rooms.On("Save", ctx, mock.MatchedBy(func(r *domain.Room) bool {
		return r.CurrentStoryID != nil && *r.CurrentStoryID == s2.ID
	})).Return(nil).Once()

	// Act
	selected, err := f.service.Select(ctx, domain.ActorForUser(userID), roomID, s2.ID)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, domain.StorySelected, selected.Status)
	assert.Equal(t, []domain.EventType{domain.EventStorySelected}, f.recorder.Types())
	f.stories.AssertExpectations(t)
	f.rooms.AssertExpectations(t)
}

func TestStoryService_Select_ClosedRoom(t *testing.T) {
	// Arrange
	f := newStoryFixture(t)
	ctx := context.Background()
	roomID := uuid.New()
	userID := uuid.New()
	f.expectHost(ctx, roomID, userID)
	room := activeRoom(roomID, true)
	room.Status = domain.RoomClosed
	f.rooms.On("FindByIDForUpdate", ctx, roomID).Return(room, nil).Once()

	// Act
	_, err := f.service.Select(ctx, domain.ActorForUser(userID), roomID, uuid.New())

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrBadRequest))
	f.stories.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestStoryService_Select_StoryFromAnotherRoom(t *testing.T) {
	// Arrange
	f := newStoryFixture(t)
	ctx := context.Background()
	roomID := uuid.New()
	userID := uuid.New()
	f.expectHost(ctx, roomID, userID)
	foreign := &domain.Story{ID: uuid.New(), RoomID: uuid.New(), Title: "elsewhere"}
	f.rooms.On("FindByIDForUpdate", ctx, roomID).Return(activeRoom(roomID, true), nil).Once()
	f.stories.On("FindByID", ctx, foreign.ID).Return(foreign, nil).Once()

	// Act
	_, err := f.service.Select(ctx, domain.ActorForUser(userID), roomID, foreign.ID)

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrBadRequest))
	f.rooms.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}
