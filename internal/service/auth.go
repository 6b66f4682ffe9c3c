package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/Oppadayo/poker-planning-server/internal/domain"
	"github.com/Oppadayo/poker-planning-server/internal/repository"
)

// AuthService handles account registration, login and the takeover of
// guest sessions after a guest registers.
type AuthService struct {
	users        repository.UserRepository
	rooms        repository.RoomRepository
	participants repository.ParticipantRepository
	tx           repository.TxManager
	jwtSecret    string
	tokenTTL     time.Duration
}

func NewAuthService(
	users repository.UserRepository,
	rooms repository.RoomRepository,
	participants repository.ParticipantRepository,
	tx repository.TxManager,
	jwtSecret string,
	tokenTTL time.Duration,
) *AuthService {
	if users == nil || rooms == nil || participants == nil || tx == nil {
		panic("NewAuthService: nil dependency")
	}
	if jwtSecret == "" {
		panic("NewAuthService: empty jwt secret")
	}
	if tokenTTL <= 0 {
		tokenTTL = 72 * time.Hour
	}
	return &AuthService{
		users:        users,
		rooms:        rooms,
		participants: participants,
		tx:           tx,
		jwtSecret:    jwtSecret,
		tokenTTL:     tokenTTL,
	}
}

// Register creates an account. Username and email must be unused.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*domain.User, error) {
	logCtx := logrus.WithField("username", username)

	if username == "" || email == "" || password == "" {
		return nil, fmt.Errorf("%w: username, email and password are required", ErrBadRequest)
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", ErrBadRequest)
	}

	taken, err := s.users.ExistsByUsername(ctx, username)
	if err != nil {
		logCtx.WithError(err).Error("Failed to check username")
		return nil, fmt.Errorf("%w: failed to register", ErrInternalServer)
	}
	if taken {
		return nil, fmt.Errorf("%w: username already taken", ErrConflict)
	}
	taken, err = s.users.ExistsByEmail(ctx, email)
	if err != nil {
		logCtx.WithError(err).Error("Failed to check email")
		return nil, fmt.Errorf("%w: failed to register", ErrInternalServer)
	}
	if taken {
		return nil, fmt.Errorf("%w: email already registered", ErrConflict)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		logCtx.WithError(err).Error("Failed to hash password")
		return nil, fmt.Errorf("%w: failed to register", ErrInternalServer)
	}

	user := &domain.User{
		Username: username,
		Email:    email,
		Password: string(hashed),
	}
	if err := s.users.Save(ctx, user); err != nil {
		// ExistsBy checks race against concurrent registrations; the
		// unique indexes are the backstop.
		if errors.Is(err, repository.ErrDuplicateEntry) {
			return nil, fmt.Errorf("%w: username or email already registered", ErrConflict)
		}
		logCtx.WithError(err).Error("Failed to save user")
		return nil, fmt.Errorf("%w: failed to register", ErrInternalServer)
	}

	logCtx.WithField("userId", user.ID).Info("User registered")
	return user, nil
}

// Login verifies credentials and issues a signed user token. The
// identifier matches username or email.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (*domain.User, string, error) {
	if identifier == "" || password == "" {
		return nil, "", fmt.Errorf("%w: identifier and password are required", ErrBadRequest)
	}

	user, err := s.users.FindByUsernameOrEmail(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", fmt.Errorf("%w: invalid credentials", ErrUnauthenticated)
		}
		logrus.WithError(err).Error("Failed to look up user")
		return nil, "", fmt.Errorf("%w: failed to log in", ErrInternalServer)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, "", fmt.Errorf("%w: invalid credentials", ErrUnauthenticated)
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      user.ID.String(),
		"username": user.Username,
		"email":    user.Email,
		"iat":      now.Unix(),
		"exp":      now.Add(s.tokenTTL).Unix(),
	})
	signed, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		logrus.WithError(err).Error("Failed to sign user token")
		return nil, "", fmt.Errorf("%w: failed to log in", ErrInternalServer)
	}

	logrus.WithField("userId", user.ID).Info("User logged in")
	return user, signed, nil
}

// ClaimSessions re-associates a guest identity's rooms and memberships
// with the calling user. Called once after a guest registers so their
// history survives the account upgrade. Memberships in rooms where the
// user already participates are skipped rather than merged.
func (s *AuthService) ClaimSessions(ctx context.Context, userID uuid.UUID, guestID string) (int, error) {
	logCtx := logrus.WithField("userId", userID)

	if guestID == "" {
		return 0, fmt.Errorf("%w: guestId is required", ErrBadRequest)
	}

	claimed := 0
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		rooms, err := s.rooms.FindByCreatorGuestID(txCtx, guestID)
		if err != nil {
			return fmt.Errorf("%w: failed to list guest rooms", ErrInternalServer)
		}
		for i := range rooms {
			rooms[i].CreatorUserID = &userID
			rooms[i].CreatorGuestID = nil
			if err := s.rooms.Save(txCtx, &rooms[i]); err != nil {
				return err
			}
		}

		memberships, err := s.participants.FindByGuestID(txCtx, guestID)
		if err != nil {
			return fmt.Errorf("%w: failed to list guest memberships", ErrInternalServer)
		}
		for i := range memberships {
			exists, err := s.participants.ExistsByRoomIDAndUserID(txCtx, memberships[i].RoomID, userID)
			if err != nil {
				return fmt.Errorf("%w: failed to check membership", ErrInternalServer)
			}
			if exists {
				continue
			}
			memberships[i].UserID = &userID
			memberships[i].GuestID = nil
			if err := s.participants.Save(txCtx, &memberships[i]); err != nil {
				return err
			}
			claimed++
		}
		return nil
	})
	if err != nil {
		if isServiceError(err) {
			return 0, err
		}
		logCtx.WithError(err).Error("Failed to claim guest sessions")
		return 0, fmt.Errorf("%w: failed to claim guest sessions", ErrInternalServer)
	}

	logCtx.WithField("claimed", claimed).Info("Guest sessions claimed")
	return claimed, nil
}

// UserRooms lists the user's active rooms (as creator).
func (s *AuthService) UserRooms(ctx context.Context, userID uuid.UUID) ([]domain.Room, error) {
	rooms, err := s.rooms.FindByCreatorUserIDAndStatus(ctx, userID, domain.RoomActive)
	if err != nil {
		logrus.WithError(err).WithField("userId", userID).Error("Failed to list user rooms")
		return nil, fmt.Errorf("%w: failed to list rooms", ErrInternalServer)
	}
	return rooms, nil
}

// GetUser returns the account profile.
func (s *AuthService) GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: user not found", ErrNotFound)
		}
		logrus.WithError(err).WithField("userId", userID).Error("Failed to load user")
		return nil, fmt.Errorf("%w: failed to load user", ErrInternalServer)
	}
	return user, nil
}
