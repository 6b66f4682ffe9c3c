package service_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
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

type inviteFixture struct {
	invites  *mocks.InviteRepository
	rooms    *mocks.RoomRepository
	parts    *mocks.ParticipantRepository
	recorder *mocks.EventRecorder
	service  *service.InviteService
}

func newInviteFixture(t *testing.T) *inviteFixture {
	t.Helper()
	invites := new(mocks.InviteRepository)
	rooms := new(mocks.RoomRepository)
	parts := new(mocks.ParticipantRepository)
	recorder := &mocks.EventRecorder{}
	grants, err := service.NewGrantProvider("grant-secret", time.Hour)
	require.NoError(t, err)
	roomSvc := service.NewRoomService(rooms, parts, mocks.TxManager{}, grants, recorder)
	return &inviteFixture{
		invites:  invites,
		rooms:    rooms,
		parts:    parts,
		recorder: recorder,
		service:  service.NewInviteService(invites, roomSvc, mocks.TxManager{}),
	}
}

func (f *inviteFixture) expectHost(ctx context.Context, roomID, userID uuid.UUID) *domain.Participant {
	host := &domain.Participant{ID: uuid.New(), RoomID: roomID, UserID: &userID, Role: domain.RoleHost}
	f.parts.On("FindByRoomIDAndUserID", ctx, roomID, userID).Return(host, nil).Once()
	return host
}

func sha256Hex(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// --- Create ---

func TestInviteService_Create_StoresHashReturnsRawToken(t *testing.T) {
	// Arrange
	f := newInviteFixture(t)
	ctx := context.Background()
	roomID := uuid.New()
	userID := uuid.New()
	host := f.expectHost(ctx, roomID, userID)
	f.rooms.On("FindByID", ctx, roomID).Return(activeRoom(roomID, true), nil).Once()

	var saved *domain.Invite
	f.invites.On("Save", ctx, mock.AnythingOfType("*domain.Invite")).Run(func(args mock.Arguments) {
		saved = args.Get(1).(*domain.Invite)
		saved.ID = uuid.New()
	}).Return(nil).Once()

	// Act
	created, err := f.service.Create(ctx, domain.ActorForUser(userID), roomID, service.CreateInviteInput{
		Role: domain.RoleObserver,
	})

	// Assert
	require.NoError(t, err)
	require.NotEmpty(t, created.Token)
	require.NotNil(t, saved)
	assert.Equal(t, sha256Hex(created.Token), saved.TokenHash, "only the hash is persisted")
	assert.Equal(t, domain.RoleObserver, saved.Role)
	assert.Equal(t, host.ID, saved.CreatorParticipantID)
	f.invites.AssertExpectations(t)
}

func TestInviteService_Create_RejectsHostRole(t *testing.T) {
	f := newInviteFixture(t)
	ctx := context.Background()

	_, err := f.service.Create(ctx, domain.ActorForUser(uuid.New()), uuid.New(), service.CreateInviteInput{
		Role: domain.RoleHost,
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrBadRequest))
	f.invites.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestInviteService_Create_MaxUsesBelowOne(t *testing.T) {
	f := newInviteFixture(t)
	ctx := context.Background()
	zero := 0

	_, err := f.service.Create(ctx, domain.ActorForUser(uuid.New()), uuid.New(), service.CreateInviteInput{
		MaxUses: &zero,
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrBadRequest))
}

func TestInviteService_Create_ExpiryInPast(t *testing.T) {
	f := newInviteFixture(t)
	ctx := context.Background()
	past := time.Now().Add(-time.Hour)

	_, err := f.service.Create(ctx, domain.ActorForUser(uuid.New()), uuid.New(), service.CreateInviteInput{
		ExpiresAt: &past,
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrBadRequest))
}

// --- Revoke ---

func TestInviteService_Revoke_Idempotent(t *testing.T) {
	// Arrange: revoking an already revoked invite succeeds without a
	// write.
	f := newInviteFixture(t)
	ctx := context.Background()
	roomID := uuid.New()
	userID := uuid.New()
	f.expectHost(ctx, roomID, userID)
	revokedAt := time.Now().UTC()
	invite := &domain.Invite{ID: uuid.New(), RoomID: roomID, RevokedAt: &revokedAt}
	f.invites.On("FindByID", ctx, invite.ID).Return(invite, nil).Once()

	// Act
	err := f.service.Revoke(ctx, domain.ActorForUser(userID), roomID, invite.ID)

	// Assert
	require.NoError(t, err)
	f.invites.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestInviteService_Revoke_WrongRoom(t *testing.T) {
	// Arrange
	f := newInviteFixture(t)
	ctx := context.Background()
	roomID := uuid.New()
	userID := uuid.New()
	f.expectHost(ctx, roomID, userID)
	invite := &domain.Invite{ID: uuid.New(), RoomID: uuid.New()}
	f.invites.On("FindByID", ctx, invite.ID).Return(invite, nil).Once()

	// Act
	err := f.service.Revoke(ctx, domain.ActorForUser(userID), roomID, invite.ID)

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrBadRequest))
}

// --- InspectByToken ---

func TestInviteService_InspectByToken_ClosedRoomInvalid(t *testing.T) {
	// Arrange: the invite itself is fine but the room has closed.
	f := newInviteFixture(t)
	ctx := context.Background()
	roomID := uuid.New()
	token := uuid.NewString()
	invite := &domain.Invite{ID: uuid.New(), RoomID: roomID, Role: domain.RoleParticipant}
	room := activeRoom(roomID, true)
	room.Status = domain.RoomClosed

	f.invites.On("FindByTokenHash", ctx, sha256Hex(token)).Return(invite, nil).Once()
	f.rooms.On("FindByID", ctx, roomID).Return(room, nil).Once()

	// Act
	inspection, err := f.service.InspectByToken(ctx, token)

	// Assert
	require.NoError(t, err)
	assert.False(t, inspection.Valid)
	assert.Equal(t, roomID, inspection.RoomID)
	assert.Equal(t, room.Name, inspection.RoomName)
}

// --- JoinByToken ---

func TestInviteService_JoinByToken_ConsumesUseAndJoins(t *testing.T) {
	// Arrange
	f := newInviteFixture(t)
	ctx := context.Background()
	roomID := uuid.New()
	token := uuid.NewString()
	maxUses := 3
	invite := &domain.Invite{ID: uuid.New(), RoomID: roomID, Role: domain.RoleObserver, MaxUses: &maxUses, Uses: 1}

	f.invites.On("FindByTokenHashForUpdate", ctx, sha256Hex(token)).Return(invite, nil).Once()
	f.invites.On("Save", ctx, mock.MatchedBy(func(i *domain.Invite) bool {
		return i.ID == invite.ID && i.Uses == 2
	})).Return(nil).Once()
	f.rooms.On("FindByID", ctx, roomID).Return(activeRoom(roomID, true), nil).Once()
	f.parts.On("FindByRoomIDAndGuestID", ctx, roomID, "guest-1").Return(nil, repository.ErrNotFound).Once()
	f.parts.On("Save", ctx, mock.MatchedBy(func(p *domain.Participant) bool {
		return p.RoomID == roomID && p.Role == domain.RoleObserver
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*domain.Participant).ID = uuid.New()
	}).Return(nil).Once()

	// Act
	result, err := f.service.JoinByToken(ctx, domain.ActorForGuest("guest-1"), token, "Watcher")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, domain.RoleObserver, result.Participant.Role, "the invite dictates the role")
	assert.NotEmpty(t, result.GuestGrant)
	f.invites.AssertExpectations(t)
	f.parts.AssertExpectations(t)
}

func TestInviteService_JoinByToken_Exhausted(t *testing.T) {
	// Arrange
	f := newInviteFixture(t)
	ctx := context.Background()
	token := uuid.NewString()
	maxUses := 1
	invite := &domain.Invite{ID: uuid.New(), RoomID: uuid.New(), MaxUses: &maxUses, Uses: 1}

	f.invites.On("FindByTokenHashForUpdate", ctx, sha256Hex(token)).Return(invite, nil).Once()

	// Act
	_, err := f.service.JoinByToken(ctx, domain.ActorForGuest("guest-1"), token, "Late")

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrBadRequest))
	f.invites.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	f.parts.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestInviteService_JoinByToken_UnknownToken(t *testing.T) {
	f := newInviteFixture(t)
	ctx := context.Background()

	f.invites.On("FindByTokenHashForUpdate", ctx, mock.AnythingOfType("string")).
		Return(nil, repository.ErrNotFound).Once()

	_, err := f.service.JoinByToken(ctx, domain.ActorForGuest("guest-1"), "bogus", "Nobody")

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrNotFound))
}
