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
	"github.com/Oppadayo/poker-planning-server/internal/repository"
	"github.com/Oppadayo/poker-planning-server/internal/repository/mocks"
	"github.com/Oppadayo/poker-planning-server/internal/service"
)

type roomFixture struct {
	rooms    *mocks.RoomRepository
	parts    *mocks.ParticipantRepository
	recorder *mocks.EventRecorder
	grants   *service.GrantProvider
	service  *service.RoomService
}

func newRoomFixture(t *testing.T) *roomFixture {
	t.Helper()
	rooms := new(mocks.RoomRepository)
	parts := new(mocks.ParticipantRepository)
	recorder := &mocks.EventRecorder{}
	grants, err := service.NewGrantProvider("grant-secret", time.Hour)
	require.NoError(t, err)
	return &roomFixture{
		rooms:    rooms,
		parts:    parts,
		recorder: recorder,
		grants:   grants,
		service:  service.NewRoomService(rooms, parts, mocks.TxManager{}, grants, recorder),
	}
}

func activeRoom(roomID uuid.UUID, allowObservers bool) *domain.Room {
	return &domain.Room{
		ID:   roomID,
		Name: "Sprint 42",
		Code: "ABCDEF",
		Settings: domain.RoomSettings{
			DeckType:       domain.DeckFibonacci,
			AllowObservers: allowObservers,
		},
		Status: domain.RoomActive,
	}
}

// --- Create ---

func TestRoomService_Create_GuestBecomesHostWithGrant(t *testing.T) {
	// Arrange
	f := newRoomFixture(t)
	ctx := context.Background()
	actor := domain.ActorForGuest("guest-1")

	f.rooms.On("ExistsByCode", ctx, mock.AnythingOfType("string")).Return(false, nil).Once()
	f.rooms.On("Save", ctx, mock.MatchedBy(func(room *domain.Room) bool {
		assert.Equal(t, "Sprint 42", room.Name)
		assert.Equal(t, domain.DeckTShirt, room.Settings.DeckType)
		require.NotNil(t, room.CreatorGuestID)
		assert.Equal(t, "guest-1", *room.CreatorGuestID)
		return true
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*domain.Room).ID = uuid.New()
	}).Return(nil).Once()
	f.parts.On("Save", ctx, mock.MatchedBy(func(p *domain.Participant) bool {
		assert.Equal(t, domain.RoleHost, p.Role)
		assert.Equal(t, "Alice", p.DisplayName)
		assert.True(t, p.Online)
		return true
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*domain.Participant).ID = uuid.New()
	}).Return(nil).Once()

	// Act
	result, err := f.service.Create(ctx, actor, service.CreateRoomInput{
		Name:        "Sprint 42",
		DisplayName: "Alice",
		DeckType:    domain.DeckTShirt,
	})

	// Assert
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Len(t, result.Room.Code, 6)
	require.NotEmpty(t, result.GuestGrant)
	claims, err := f.grants.Validate(result.GuestGrant)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleHost, claims.Role)
	assert.Equal(t, result.Room.ID, claims.RoomID)
	assert.Equal(t, []domain.EventType{domain.EventParticipantJoined}, f.recorder.Types())

	// Verify
	f.rooms.AssertExpectations(t)
	f.parts.AssertExpectations(t)
}

func TestRoomService_Create_RetriesTakenCode(t *testing.T) {
	// Arrange: the first generated code collides, the second is free.
	f := newRoomFixture(t)
	ctx := context.Background()
	actor := domain.ActorForUser(uuid.New())

	f.rooms.On("ExistsByCode", ctx, mock.AnythingOfType("string")).Return(true, nil).Once()
	f.rooms.On("ExistsByCode", ctx, mock.AnythingOfType("string")).Return(false, nil).Once()
	f.rooms.On("Save", ctx, mock.AnythingOfType("*domain.Room")).Run(func(args mock.Arguments) {
		args.Get(1).(*domain.Room).ID = uuid.New()
	}).Return(nil).Once()
	f.parts.On("Save", ctx, mock.AnythingOfType("*domain.Participant")).Run(func(args mock.Arguments) {
		args.Get(1).(*domain.Participant).ID = uuid.New()
	}).Return(nil).Once()

	// Act
	result, err := f.service.Create(ctx, actor, service.CreateRoomInput{Name: "Room", DisplayName: "Bob"})

	// Assert
	require.NoError(t, err)
	assert.Empty(t, result.GuestGrant, "registered users do not receive guest grants")

	// Verify
	f.rooms.AssertExpectations(t)
}

func TestRoomService_Create_UnknownDeck(t *testing.T) {
	f := newRoomFixture(t)
	ctx := context.Background()

	_, err := f.service.Create(ctx, domain.ActorForGuest("guest-1"), service.CreateRoomInput{
		Name:        "Room",
		DisplayName: "Alice",
		DeckType:    "TAROT",
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrBadRequest))
	f.rooms.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

// --- Join ---

func TestRoomService_Join_IdempotentRejoin(t *testing.T) {
	// Arrange: the guest already holds a membership; joining again must
	// refresh it, not duplicate it, and must keep the stored role.
	f := newRoomFixture(t)
	ctx := context.Background()
	roomID := uuid.New()
	actor := domain.ActorForGuest("guest-1")
	guestID := "guest-1"
	existing := &domain.Participant{
		ID:          uuid.New(),
		RoomID:      roomID,
		GuestID:     &guestID,
		Role:        domain.RoleObserver,
		DisplayName: "Old Name",
		Online:      false,
	}

	f.rooms.On("FindByID", ctx, roomID).Return(activeRoom(roomID, true), nil).Once()
	f.parts.On("FindByRoomIDAndGuestID", ctx, roomID, "guest-1").Return(existing, nil).Once()
	f.parts.On("Save", ctx, mock.MatchedBy(func(p *domain.Participant) bool {
		return p.ID == existing.ID
	})).Return(nil).Once()

	// Act
	result, err := f.service.Join(ctx, actor, roomID, service.JoinInput{DisplayName: "New Name"})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, existing.ID, result.Participant.ID)
	assert.Equal(t, "New Name", result.Participant.DisplayName)
	assert.True(t, result.Participant.Online)
	assert.Equal(t, domain.RoleObserver, result.Participant.Role, "re-join keeps the stored role")
	assert.NotEmpty(t, result.GuestGrant)

	// Verify
	f.parts.AssertExpectations(t)
}

func TestRoomService_Join_ConcurrentFirstJoinFallsBackToRefresh(t *testing.T) {
	// Arrange: two first joins race; the loser's insert hits the unique
	// index and must settle into a rejoin instead of surfacing an error.
	f := newRoomFixture(t)
	ctx := context.Background()
	roomID := uuid.New()
	actor := domain.ActorForGuest("guest-1")
	guestID := "guest-1"
	winner := &domain.Participant{
		ID:          uuid.New(),
		RoomID:      roomID,
		GuestID:     &guestID,
		Role:        domain.RoleParticipant,
		DisplayName: "Alice",
		Online:      true,
	}

	f.rooms.On("FindByID", ctx, roomID).Return(activeRoom(roomID, true), nil).Once()
	f.parts.On("FindByRoomIDAndGuestID", ctx, roomID, "guest-1").Return(nil, repository.ErrNotFound).Once()
	f.parts.On("Save", ctx, mock.MatchedBy(func(p *domain.Participant) bool {
		return p.ID == uuid.Nil
	})).Return(repository.ErrDuplicateEntry).Once()
	f.parts.On("FindByRoomIDAndGuestID", ctx, roomID, "guest-1").Return(winner, nil).Once()
	f.parts.On("Save", ctx, mock.MatchedBy(func(p *domain.Participant) bool {
		return p.ID == winner.ID
	})).Return(nil).Once()

	// Act
	result, err := f.service.Join(ctx, actor, roomID, service.JoinInput{DisplayName: "Alice"})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, winner.ID, result.Participant.ID)
	assert.True(t, result.Participant.Online)

	// Verify
	f.parts.AssertExpectations(t)
}

func TestRoomService_Join_ObserverNotAllowed(t *testing.T) {
	// Arrange
	f := newRoomFixture(t)
	ctx := context.Background()
	roomID := uuid.New()

	f.rooms.On("FindByID", ctx, roomID).Return(activeRoom(roomID, false), nil).Once()

	// Act
	_, err := f.service.Join(ctx, domain.ActorForGuest("guest-1"), roomID, service.JoinInput{
		DisplayName: "Watcher",
		Role:        domain.RoleObserver,
	})

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrBadRequest))
	f.parts.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestRoomService_JoinByCode_ClosedRoom(t *testing.T) {
	// Arrange: a closed room still resolves; joining it is a rejected
	// mutation, not a missing resource.
	f := newRoomFixture(t)
	ctx := context.Background()
	room := activeRoom(uuid.New(), true)
	room.Status = domain.RoomClosed

	f.rooms.On("FindByCode", ctx, "ABCDEF").Return(room, nil).Once()

	// Act
	_, err := f.service.JoinByCode(ctx, domain.ActorForGuest("guest-1"), "ABCDEF", service.JoinInput{DisplayName: "Late"})

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrBadRequest))
	f.parts.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestRoomService_Join_ClosedRoom(t *testing.T) {
	// Arrange
	f := newRoomFixture(t)
	ctx := context.Background()
	roomID := uuid.New()
	room := activeRoom(roomID, true)
	room.Status = domain.RoomClosed

	f.rooms.On("FindByID", ctx, roomID).Return(room, nil).Once()

	// Act
	_, err := f.service.Join(ctx, domain.ActorForGuest("guest-1"), roomID, service.JoinInput{DisplayName: "Late"})

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrBadRequest))
	f.parts.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

// --- Leave ---

func TestRoomService_Leave_MarksOffline(t *testing.T) {
	// Arrange
	f := newRoomFixture(t)
	ctx := context.Background()
	roomID := uuid.New()
	userID := uuid.New()
	member := &domain.Participant{ID: uuid.New(), RoomID: roomID, UserID: &userID, Role: domain.RoleParticipant, Online: true}

	f.parts.On("FindByRoomIDAndUserID", ctx, roomID, userID).Return(member, nil).Once()
	f.parts.On("Save", ctx, mock.MatchedBy(func(p *domain.Participant) bool {
		return p.ID == member.ID && !p.Online
	})).Return(nil).Once()

	// Act
	err := f.service.Leave(ctx, domain.ActorForUser(userID), roomID)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []domain.EventType{domain.EventParticipantLeft}, f.recorder.Types())
	f.parts.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

// --- Kick ---

func TestRoomService_Kick_Success(t *testing.T) {
	// Arrange
	f := newRoomFixture(t)
	ctx := context.Background()
	roomID := uuid.New()
	hostUserID := uuid.New()
	host := &domain.Participant{ID: uuid.New(), RoomID: roomID, UserID: &hostUserID, Role: domain.RoleHost}
	target := &domain.Participant{ID: uuid.New(), RoomID: roomID, Role: domain.RoleParticipant}

	f.parts.On("FindByRoomIDAndUserID", ctx, roomID, hostUserID).Return(host, nil).Once()
	f.parts.On("FindByIDForUpdate", ctx, target.ID).Return(target, nil).Once()
	f.parts.On("Delete", ctx, target).Return(nil).Once()

	// Act
	err := f.service.Kick(ctx, domain.ActorForUser(hostUserID), roomID, target.ID)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []domain.EventType{domain.EventParticipantKicked}, f.recorder.Types())
	f.parts.AssertExpectations(t)
}

func TestRoomService_Kick_NonHost(t *testing.T) {
	// Arrange
	f := newRoomFixture(t)
	ctx := context.Background()
	roomID := uuid.New()
	userID := uuid.New()
	member := &domain.Participant{ID: uuid.New(), RoomID: roomID, UserID: &userID, Role: domain.RoleParticipant}

	f.parts.On("FindByRoomIDAndUserID", ctx, roomID, userID).Return(member, nil).Once()

	// Act
	err := f.service.Kick(ctx, domain.ActorForUser(userID), roomID, uuid.New())

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrForbidden))
	f.parts.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestRoomService_Kick_Self(t *testing.T) {
	// Arrange
	f := newRoomFixture(t)
	ctx := context.Background()
	roomID := uuid.New()
	hostUserID := uuid.New()
	host := &domain.Participant{ID: uuid.New(), RoomID: roomID, UserID: &hostUserID, Role: domain.RoleHost}

	f.parts.On("FindByRoomIDAndUserID", ctx, roomID, hostUserID).Return(host, nil).Once()
	f.parts.On("FindByIDForUpdate", ctx, host.ID).Return(host, nil).Once()

	// Act
	err := f.service.Kick(ctx, domain.ActorForUser(hostUserID), roomID, host.ID)

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrBadRequest))
	f.parts.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

// --- TransferHost ---

func TestRoomService_TransferHost_SwapsRoles(t *testing.T) {
	// Arrange
	f := newRoomFixture(t)
	ctx := context.Background()
	roomID := uuid.New()
	hostUserID := uuid.New()
	host := &domain.Participant{ID: uuid.New(), RoomID: roomID, UserID: &hostUserID, Role: domain.RoleHost}
	target := &domain.Participant{ID: uuid.New(), RoomID: roomID, Role: domain.RoleParticipant}

	f.parts.On("FindByRoomIDAndUserID", ctx, roomID, hostUserID).Return(host, nil).Once()
	f.parts.On("FindByIDForUpdate", ctx, host.ID).Return(host, nil).Once()
	f.parts.On("FindByIDForUpdate", ctx, target.ID).Return(target, nil).Once()
	f.parts.On("Save", ctx, mock.MatchedBy(func(p *domain.Participant) bool {
		return p.ID == host.ID && p.Role == domain.RoleParticipant
	})).Return(nil).Once()
	f.parts.On("Save", ctx, mock.MatchedBy(func(p *domain.Participant) bool {
		return p.ID == target.ID && p.Role == domain.RoleHost
	})).Return(nil).Once()

	// Act
	err := f.service.TransferHost(ctx, domain.ActorForUser(hostUserID), roomID, target.ID)

	// Assert
	require.NoError(t, err)
	require.Len(t, f.recorder.Events, 1)
	event := f.recorder.Events[0]
	assert.Equal(t, domain.EventHostTransferred, event.Type)
	assert.Equal(t, host.ID.String(), event.Payload["fromParticipantId"])
	assert.Equal(t, target.ID.String(), event.Payload["toParticipantId"])
	f.parts.AssertExpectations(t)
}

// --- Close ---

func TestRoomService_Close_Idempotent(t *testing.T) {
	// Arrange: closing an already closed room succeeds without a write.
	f := newRoomFixture(t)
	ctx := context.Background()
	roomID := uuid.New()
	hostUserID := uuid.New()
	host := &domain.Participant{ID: uuid.New(), RoomID: roomID, UserID: &hostUserID, Role: domain.RoleHost}
	room := activeRoom(roomID, true)
	room.Status = domain.RoomClosed

	f.parts.On("FindByRoomIDAndUserID", ctx, roomID, hostUserID).Return(host, nil).Once()
	f.rooms.On("FindByIDForUpdate", ctx, roomID).Return(room, nil).Once()

	// Act
	err := f.service.Close(ctx, domain.ActorForUser(hostUserID), roomID)

	// Assert
	require.NoError(t, err)
	f.rooms.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

// --- RequireHost ---

func TestRoomService_RequireHost_StaleGrant(t *testing.T) {
	// Arrange: the grant still says HOST but the stored row was demoted
	// by a host transfer. The row wins.
	f := newRoomFixture(t)
	ctx := context.Background()
	roomID := uuid.New()
	participantID := uuid.New()
	demoted := &domain.Participant{ID: participantID, RoomID: roomID, Role: domain.RoleParticipant}
	actor := domain.ActorForGuestGrant("guest-1", participantID, domain.RoleHost)

	f.parts.On("FindByID", ctx, participantID).Return(demoted, nil).Once()

	// Act
	_, err := f.service.RequireHost(ctx, roomID, actor)

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrForbidden))
}

func TestRoomService_RequireHost_GrantForOtherRoom(t *testing.T) {
	// Arrange
	f := newRoomFixture(t)
	ctx := context.Background()
	participantID := uuid.New()
	elsewhere := &domain.Participant{ID: participantID, RoomID: uuid.New(), Role: domain.RoleHost}
	actor := domain.ActorForGuestGrant("guest-1", participantID, domain.RoleHost)

	f.parts.On("FindByID", ctx, participantID).Return(elsewhere, nil).Once()

	// Act
	_, err := f.service.RequireHost(ctx, uuid.New(), actor)

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrForbidden))
}

// --- GetParticipant ---

func TestRoomService_GetParticipant_NotAMember(t *testing.T) {
	f := newRoomFixture(t)
	ctx := context.Background()
	roomID := uuid.New()

	f.parts.On("FindByRoomIDAndGuestID", ctx, roomID, "guest-1").Return(nil, repository.ErrNotFound).Once()

	_, err := f.service.GetParticipant(ctx, roomID, domain.ActorForGuest("guest-1"))

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrForbidden))
}
