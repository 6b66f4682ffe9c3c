package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Oppadayo/poker-planning-server/internal/domain"
	"github.com/Oppadayo/poker-planning-server/internal/repository"
)

// InviteService manages shareable join tokens. Raw tokens exist only
// in the create response; the store holds SHA-256 hashes, so listing
// or inspecting an invite can never leak a redeemable credential.
type InviteService struct {
	invites repository.InviteRepository
	rooms   *RoomService
	tx      repository.TxManager
}

func NewInviteService(invites repository.InviteRepository, rooms *RoomService, tx repository.TxManager) *InviteService {
	if invites == nil || rooms == nil || tx == nil {
		panic("NewInviteService: nil dependency")
	}
	return &InviteService{invites: invites, rooms: rooms, tx: tx}
}

// CreateInviteInput carries the optional invite constraints. A nil
// ExpiresAt or MaxUses means unlimited.
type CreateInviteInput struct {
	Role      domain.ParticipantRole
	ExpiresAt *time.Time
	MaxUses   *int
}

// CreatedInvite pairs the stored invite with the raw token. The token
// is shown here and never again.
type CreatedInvite struct {
	Invite *domain.Invite
	Token  string
}

// Create issues an invite for the room. Host only.
func (s *InviteService) Create(ctx context.Context, actor domain.Actor, roomID uuid.UUID, input CreateInviteInput) (*CreatedInvite, error) {
	logCtx := logrus.WithField("roomId", roomID)

	role := input.Role
	if role == "" {
		role = domain.RoleParticipant
	}
	switch role {
	case domain.RoleParticipant, domain.RoleObserver:
	default:
		return nil, fmt.Errorf("%w: invites cannot grant role %q", ErrBadRequest, input.Role)
	}
	if input.MaxUses != nil && *input.MaxUses < 1 {
		return nil, fmt.Errorf("%w: maxUses must be at least 1", ErrBadRequest)
	}
	if input.ExpiresAt != nil && input.ExpiresAt.Before(time.Now()) {
		return nil, fmt.Errorf("%w: expiresAt is in the past", ErrBadRequest)
	}

	host, err := s.rooms.RequireHost(ctx, roomID, actor)
	if err != nil {
		return nil, err
	}
	if _, err := s.rooms.GetActiveRoom(ctx, roomID); err != nil {
		return nil, err
	}

	token := uuid.NewString()
	invite := &domain.Invite{
		TokenHash:            hashToken(token),
		RoomID:               roomID,
		Role:                 role,
		ExpiresAt:            input.ExpiresAt,
		MaxUses:              input.MaxUses,
		CreatorParticipantID: host.ID,
	}
	if err := s.invites.Save(ctx, invite); err != nil {
		logCtx.WithError(err).Error("Failed to create invite")
		return nil, fmt.Errorf("%w: failed to create invite", ErrInternalServer)
	}

	logCtx.WithField("inviteId", invite.ID).Info("Invite created")
	return &CreatedInvite{Invite: invite, Token: token}, nil
}

// List returns the room's invites without tokens. Host only.
func (s *InviteService) List(ctx context.Context, actor domain.Actor, roomID uuid.UUID) ([]domain.Invite, error) {
	if _, err := s.rooms.RequireHost(ctx, roomID, actor); err != nil {
		return nil, err
	}
	invites, err := s.invites.FindByRoomID(ctx, roomID)
	if err != nil {
		logrus.WithError(err).WithField("roomId", roomID).Error("Failed to list invites")
		return nil, fmt.Errorf("%w: failed to list invites", ErrInternalServer)
	}
	return invites, nil
}

// Revoke permanently invalidates an invite. Host only. Revoking twice
// is a no-op.
func (s *InviteService) Revoke(ctx context.Context, actor domain.Actor, roomID, inviteID uuid.UUID) error {
	logCtx := logrus.WithFields(logrus.Fields{"roomId": roomID, "inviteId": inviteID})

	if _, err := s.rooms.RequireHost(ctx, roomID, actor); err != nil {
		return err
	}
	invite, err := s.invites.FindByID(ctx, inviteID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: invite not found", ErrNotFound)
		}
		return fmt.Errorf("%w: failed to look up invite", ErrInternalServer)
	}
	if invite.RoomID != roomID {
		return fmt.Errorf("%w: invite does not belong to this room", ErrBadRequest)
	}
	if invite.IsRevoked() {
		return nil
	}

	now := time.Now().UTC()
	invite.RevokedAt = &now
	if err := s.invites.Save(ctx, invite); err != nil {
		logCtx.WithError(err).Error("Failed to revoke invite")
		return fmt.Errorf("%w: failed to revoke invite", ErrInternalServer)
	}
	logCtx.Info("Invite revoked")
	return nil
}

// InviteInspection is the public view of an invite looked up by its
// raw token: enough for a join page to render, nothing redeemable.
type InviteInspection struct {
	RoomID   uuid.UUID              `json:"roomId"`
	RoomName string                 `json:"roomName"`
	Role     domain.ParticipantRole `json:"role"`
	Valid    bool                   `json:"valid"`
}

// InspectByToken resolves a raw token to its room and validity. Public:
// anyone holding a token may check it before joining.
func (s *InviteService) InspectByToken(ctx context.Context, token string) (*InviteInspection, error) {
	invite, err := s.invites.FindByTokenHash(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: invite not found", ErrNotFound)
		}
		return nil, fmt.Errorf("%w: failed to look up invite", ErrInternalServer)
	}
	room, err := s.rooms.GetRoom(ctx, invite.RoomID)
	if err != nil {
		return nil, err
	}
	return &InviteInspection{
		RoomID:   room.ID,
		RoomName: room.Name,
		Role:     invite.Role,
		Valid:    invite.IsValid() && !room.IsClosed(),
	}, nil
}

// JoinByToken redeems an invite: consumes one use under a row lock,
// then performs the standard join with the invite's granted role. The
// use is consumed even if the subsequent join fails, which keeps the
// counter monotonic under concurrency.
func (s *InviteService) JoinByToken(ctx context.Context, actor domain.Actor, token, displayName string) (*JoinResult, error) {
	logCtx := logrus.WithField("isUser", actor.IsUser())

	var invite *domain.Invite
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		invite, err = s.invites.FindByTokenHashForUpdate(txCtx, hashToken(token))
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%w: invite not found", ErrNotFound)
			}
			return fmt.Errorf("%w: failed to look up invite", ErrInternalServer)
		}
		if !invite.IsValid() {
			return fmt.Errorf("%w: invite is no longer valid", ErrBadRequest)
		}
		invite.Uses++
		return s.invites.Save(txCtx, invite)
	})
	if err != nil {
		if isServiceError(err) {
			return nil, err
		}
		logCtx.WithError(err).Error("Failed to redeem invite")
		return nil, fmt.Errorf("%w: failed to redeem invite", ErrInternalServer)
	}

	result, err := s.rooms.Join(ctx, actor, invite.RoomID, JoinInput{
		DisplayName: displayName,
		Role:        invite.Role,
	})
	if err != nil {
		return nil, err
	}
	logCtx.WithFields(logrus.Fields{"roomId": invite.RoomID, "inviteId": invite.ID}).Info("Invite redeemed")
	return result, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
