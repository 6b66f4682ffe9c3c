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
	"golang.org/x/crypto/bcrypt"

	"github.com/Oppadayo/poker-planning-server/internal/domain"
	"github.com/Oppadayo/poker-planning-server/internal/repository"
	"github.com/Oppadayo/poker-planning-server/internal/repository/mocks"
	"github.com/Oppadayo/poker-planning-server/internal/service"
)

type authFixture struct {
	users   *mocks.UserRepository
	rooms   *mocks.RoomRepository
	parts   *mocks.ParticipantRepository
	service *service.AuthService
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	users := new(mocks.UserRepository)
	rooms := new(mocks.RoomRepository)
	parts := new(mocks.ParticipantRepository)
	return &authFixture{
		users:   users,
		rooms:   rooms,
		parts:   parts,
		service: service.NewAuthService(users, rooms, parts, mocks.TxManager{}, "test-secret", 24*time.Hour),
	}
}

// --- Register ---

func TestAuthService_Register_Success(t *testing.T) {
	// Arrange
	f := newAuthFixture(t)
	ctx := context.Background()
	username := "newbie"
	email := "newbie@example.com"
	password := "StrongPass123"

	f.users.On("ExistsByUsername", ctx, username).Return(false, nil).Once()
	f.users.On("ExistsByEmail", ctx, email).Return(false, nil).Once()
	f.users.On("Save", ctx, mock.MatchedBy(func(user *domain.User) bool {
		assert.Equal(t, username, user.Username)
		assert.Equal(t, email, user.Email)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)))
		return true
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*domain.User).ID = uuid.New()
	}).Return(nil).Once()

	// Act
	user, err := f.service.Register(ctx, username, email, password)

	// Assert
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.NotEqual(t, uuid.Nil, user.ID)

	// Verify
	f.users.AssertExpectations(t)
}

func TestAuthService_Register_UsernameTaken(t *testing.T) {
	// Arrange
	f := newAuthFixture(t)
	ctx := context.Background()

	f.users.On("ExistsByUsername", ctx, "existing").Return(true, nil).Once()

	// Act
	_, err := f.service.Register(ctx, "existing", "x@example.com", "password123")

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrConflict))
	f.users.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestAuthService_Register_SaveFails_DuplicateEntry(t *testing.T) {
	// Arrange: the ExistsBy checks pass but a concurrent registration
	// wins the race; the unique index reports the conflict.
	f := newAuthFixture(t)
	ctx := context.Background()

	f.users.On("ExistsByUsername", ctx, "racer").Return(false, nil).Once()
	f.users.On("ExistsByEmail", ctx, "racer@example.com").Return(false, nil).Once()
	f.users.On("Save", ctx, mock.AnythingOfType("*domain.User")).Return(repository.ErrDuplicateEntry).Once()

	// Act
	_, err := f.service.Register(ctx, "racer", "racer@example.com", "password123")

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrConflict))
	f.users.AssertExpectations(t)
}

func TestAuthService_Register_ShortPassword(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.service.Register(ctx, "newbie", "newbie@example.com", "short")

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrBadRequest))
	f.users.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

// --- Login ---

func TestAuthService_Login_Success(t *testing.T) {
	// Arrange
	f := newAuthFixture(t)
	ctx := context.Background()
	password := "password123"
	hashed, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	stored := &domain.User{ID: uuid.New(), Username: "testuser", Email: "t@example.com", Password: string(hashed)}

	f.users.On("FindByUsernameOrEmail", ctx, "testuser").Return(stored, nil).Once()

	// Act
	user, token, err := f.service.Login(ctx, "testuser", password)

	// Assert
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, stored.ID, user.ID)
	f.users.AssertExpectations(t)
}

func TestAuthService_Login_UserNotFound(t *testing.T) {
	// Arrange
	f := newAuthFixture(t)
	ctx := context.Background()

	f.users.On("FindByUsernameOrEmail", ctx, "nobody").Return(nil, repository.ErrNotFound).Once()

	// Act
	_, token, err := f.service.Login(ctx, "nobody", "password123")

	// Assert
	require.Error(t, err)
	assert.Empty(t, token)
	assert.True(t, errors.Is(err, service.ErrUnauthenticated))
}

func TestAuthService_Login_IncorrectPassword(t *testing.T) {
	// Arrange
	f := newAuthFixture(t)
	ctx := context.Background()
	hashed, _ := bcrypt.GenerateFromPassword([]byte("correct-password"), bcrypt.DefaultCost)
	stored := &domain.User{ID: uuid.New(), Username: "testuser", Password: string(hashed)}

	f.users.On("FindByUsernameOrEmail", ctx, "testuser").Return(stored, nil).Once()

	// Act
	_, token, err := f.service.Login(ctx, "testuser", "wrong-password")

	// Assert
	require.Error(t, err)
	assert.Empty(t, token)
	assert.True(t, errors.Is(err, service.ErrUnauthenticated))
}

// --- ClaimSessions ---

func TestAuthService_ClaimSessions_RepointsGuestHistory(t *testing.T) {
	// Arrange: the guest created one room and holds two memberships, one
	// of them in a room where the user already participates.
	f := newAuthFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	guestID := "guest-1"
	guestRoom := domain.Room{ID: uuid.New(), Name: "Guest Room", CreatorGuestID: &guestID, Status: domain.RoomActive}
	claimable := domain.Participant{ID: uuid.New(), RoomID: uuid.New(), GuestID: &guestID, Role: domain.RoleParticipant}
	duplicate := domain.Participant{ID: uuid.New(), RoomID: uuid.New(), GuestID: &guestID, Role: domain.RoleParticipant}

	f.rooms.On("FindByCreatorGuestID", ctx, guestID).Return([]domain.Room{guestRoom}, nil).Once()
	f.rooms.On("Save", ctx, mock.MatchedBy(func(r *domain.Room) bool {
		return r.ID == guestRoom.ID && r.CreatorUserID != nil && *r.CreatorUserID == userID &&
			r.CreatorGuestID == nil
	})).Return(nil).Once()
	f.parts.On("FindByGuestID", ctx, guestID).Return([]domain.Participant{claimable, duplicate}, nil).Once()
	f.parts.On("ExistsByRoomIDAndUserID", ctx, claimable.RoomID, userID).Return(false, nil).Once()
	f.parts.On("ExistsByRoomIDAndUserID", ctx, duplicate.RoomID, userID).Return(true, nil).Once()
	f.parts.On("Save", ctx, mock.MatchedBy(func(p *domain.Participant) bool {
		return p.ID == claimable.ID && p.UserID != nil && *p.UserID == userID && p.GuestID == nil
	})).Return(nil).Once()

	// Act
	claimed, err := f.service.ClaimSessions(ctx, userID, guestID)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 1, claimed, "the duplicate membership is skipped")
	f.rooms.AssertExpectations(t)
	f.parts.AssertExpectations(t)
}

func TestAuthService_ClaimSessions_EmptyGuestID(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.service.ClaimSessions(ctx, uuid.New(), "")

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrBadRequest))
	f.rooms.AssertNotCalled(t, "FindByCreatorGuestID", mock.Anything, mock.Anything)
}
