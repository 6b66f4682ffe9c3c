package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Oppadayo/poker-planning-server/internal/domain"
)

// GuestClaims are the verified claims of a guest grant: the guest
// identity bound to a participant slot and role in one specific room.
type GuestClaims struct {
	GuestID       string
	ParticipantID uuid.UUID
	RoomID        uuid.UUID
	Role          domain.ParticipantRole
}

// GrantProvider issues and verifies the short-lived signed guest
// grants used for host-gated operations without a registered account.
// A grant is a bearer capability: possession proves the bound role for
// the bound room only, until expiry.
type GrantProvider struct {
	secret []byte
	ttl    time.Duration
}

// NewGrantProvider creates a provider signing HS256 grants that expire
// ttl after issuance.
func NewGrantProvider(secret string, ttl time.Duration) (*GrantProvider, error) {
	if secret == "" {
		return nil, fmt.Errorf("guest grant secret cannot be empty")
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &GrantProvider{secret: []byte(secret), ttl: ttl}, nil
}

// Issue signs a grant binding {guestId, participantId, roomId, role}.
func (p *GrantProvider) Issue(guestID string, participantID, roomID uuid.UUID, role domain.ParticipantRole) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":           guestID,
		"participantId": participantID.String(),
		"roomId":        roomID.String(),
		"role":          string(role),
		"iat":           now.Unix(),
		"exp":           now.Add(p.ttl).Unix(),
	})
	signed, err := token.SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign guest grant: %w", err)
	}
	return signed, nil
}

// Validate verifies the signature and expiry and returns the bound
// claims. Any defect (malformed, expired, bad signature, missing
// claim) resolves to ErrForbidden: an invalid grant proves nothing.
func (p *GrantProvider) Validate(tokenStr string) (*GuestClaims, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return p.secret, nil
	})
	if err != nil {
		logrus.WithError(err).Debug("Guest grant validation failed")
		return nil, fmt.Errorf("%w: invalid or expired guest grant", ErrForbidden)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: invalid or expired guest grant", ErrForbidden)
	}

	guestID, _ := claims["sub"].(string)
	participantStr, _ := claims["participantId"].(string)
	roomStr, _ := claims["roomId"].(string)
	roleStr, _ := claims["role"].(string)

	participantID, errP := uuid.Parse(participantStr)
	roomID, errR := uuid.Parse(roomStr)
	if guestID == "" || errP != nil || errR != nil || roleStr == "" {
		return nil, fmt.Errorf("%w: malformed guest grant claims", ErrForbidden)
	}

	return &GuestClaims{
		GuestID:       guestID,
		ParticipantID: participantID,
		RoomID:        roomID,
		Role:          domain.ParticipantRole(roleStr),
	}, nil
}

// ValidateForRoom is Validate plus the room-binding check: a grant for
// another room proves nothing for this one.
func (p *GrantProvider) ValidateForRoom(tokenStr string, roomID uuid.UUID) (*GuestClaims, error) {
	claims, err := p.Validate(tokenStr)
	if err != nil {
		return nil, err
	}
	if claims.RoomID != roomID {
		return nil, fmt.Errorf("%w: guest grant not valid for this room", ErrForbidden)
	}
	return claims, nil
}
