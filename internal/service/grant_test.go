package service_test

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Oppadayo/poker-planning-server/internal/domain"
	"github.com/Oppadayo/poker-planning-server/internal/service"
)

func TestNewGrantProvider_EmptySecret(t *testing.T) {
	_, err := service.NewGrantProvider("", time.Hour)
	require.Error(t, err)
}

func TestGrantProvider_IssueValidateRoundtrip(t *testing.T) {
	// Arrange
	provider, err := service.NewGrantProvider("grant-secret", time.Hour)
	require.NoError(t, err)
	participantID := uuid.New()
	roomID := uuid.New()

	// Act
	token, err := provider.Issue("guest-1", participantID, roomID, domain.RoleHost)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	claims, err := provider.Validate(token)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "guest-1", claims.GuestID)
	assert.Equal(t, participantID, claims.ParticipantID)
	assert.Equal(t, roomID, claims.RoomID)
	assert.Equal(t, domain.RoleHost, claims.Role)
}

func TestGrantProvider_Validate_WrongSecret(t *testing.T) {
	// Arrange
	issuer, _ := service.NewGrantProvider("secret-a", time.Hour)
	verifier, _ := service.NewGrantProvider("secret-b", time.Hour)
	token, err := issuer.Issue("guest-1", uuid.New(), uuid.New(), domain.RoleParticipant)
	require.NoError(t, err)

	// Act
	_, err = verifier.Validate(token)

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrForbidden))
}

func TestGrantProvider_Validate_Expired(t *testing.T) {
	// Arrange: hand-craft an already expired grant with the same secret.
	secret := "grant-secret"
	now := time.Now()
	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":           "guest-1",
		"participantId": uuid.NewString(),
		"roomId":        uuid.NewString(),
		"role":          string(domain.RoleHost),
		"iat":           now.Add(-2 * time.Hour).Unix(),
		"exp":           now.Add(-time.Hour).Unix(),
	})
	token, err := expired.SignedString([]byte(secret))
	require.NoError(t, err)
	provider, _ := service.NewGrantProvider(secret, time.Hour)

	// Act
	_, err = provider.Validate(token)

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrForbidden))
}

func TestGrantProvider_Validate_Malformed(t *testing.T) {
	provider, _ := service.NewGrantProvider("grant-secret", time.Hour)

	_, err := provider.Validate("not-a-jwt")

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrForbidden))
}

func TestGrantProvider_ValidateForRoom_WrongRoom(t *testing.T) {
	// Arrange
	provider, _ := service.NewGrantProvider("grant-secret", time.Hour)
	token, err := provider.Issue("guest-1", uuid.New(), uuid.New(), domain.RoleHost)
	require.NoError(t, err)

	// Act: check against a different room than the grant was issued for.
	_, err = provider.ValidateForRoom(token, uuid.New())

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrForbidden))
}
