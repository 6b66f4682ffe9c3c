package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/sirupsen/logrus"

	"github.com/Oppadayo/poker-planning-server/internal/domain"
	"github.com/Oppadayo/poker-planning-server/internal/events"
	"github.com/Oppadayo/poker-planning-server/internal/repository"
)

// Room codes avoid 0/O/1/I so they survive being read out loud.
const (
	roomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	roomCodeLength   = 6
	roomCodeMaxTries = 20
)

// RoomService owns the room lifecycle and membership: creation, join,
// leave, host-gated moderation, and the room/participant reads every
// other service builds on.
type RoomService struct {
	rooms        repository.RoomRepository
	participants repository.ParticipantRepository
	tx           repository.TxManager
	grants       *GrantProvider
	publisher    events.Publisher
}

func NewRoomService(
	rooms repository.RoomRepository,
	participants repository.ParticipantRepository,
	tx repository.TxManager,
	grants *GrantProvider,
	publisher events.Publisher,
) *RoomService {
	if rooms == nil || participants == nil || tx == nil || grants == nil || publisher == nil {
		panic("NewRoomService: nil dependency")
	}
	return &RoomService{
		rooms:        rooms,
		participants: participants,
		tx:           tx,
		grants:       grants,
		publisher:    publisher,
	}
}

// CreateRoomInput carries the creator-supplied room parameters.
type CreateRoomInput struct {
	Name           string
	DisplayName    string
	DeckType       domain.DeckType
	AllowObservers bool
}

// JoinResult bundles everything a caller needs after entering a room.
// GuestGrant is empty for registered users; guests receive a fresh
// signed grant on every join so reconnecting clients never hold a
// stale role.
type JoinResult struct {
	Room        *domain.Room
	Participant *domain.Participant
	GuestGrant  string
}

// Create opens a new room with the actor as its HOST participant.
func (s *RoomService) Create(ctx context.Context, actor domain.Actor, input CreateRoomInput) (*JoinResult, error) {
	logCtx := logrus.WithFields(logrus.Fields{
		"roomName": input.Name,
		"isUser":   actor.IsUser(),
	})

	if input.Name == "" || input.DisplayName == "" {
		return nil, fmt.Errorf("%w: name and displayName are required", ErrBadRequest)
	}
	deck := input.DeckType
	if deck == "" {
		deck = domain.DeckFibonacci
	}
	switch deck {
	case domain.DeckFibonacci, domain.DeckTShirt, domain.DeckPowersOfTwo:
	default:
		return nil, fmt.Errorf("%w: unknown deck type %q", ErrBadRequest, input.DeckType)
	}

	code, err := s.generateCode(ctx)
	if err != nil {
		return nil, err
	}

	room := &domain.Room{
		Name: input.Name,
		Code: code,
		Settings: domain.RoomSettings{
			DeckType:       deck,
			AllowObservers: input.AllowObservers,
		},
		Status: domain.RoomActive,
	}
	if actor.IsUser() {
		room.CreatorUserID = actor.UserID
	} else {
		guestID := actor.GuestID
		room.CreatorGuestID = &guestID
	}

	var host *domain.Participant
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.rooms.Save(txCtx, room); err != nil {
			return err
		}
		host = &domain.Participant{
			RoomID:      room.ID,
			Role:        domain.RoleHost,
			DisplayName: input.DisplayName,
			Online:      true,
		}
		if actor.IsUser() {
			host.UserID = actor.UserID
		} else {
			guestID := actor.GuestID
			host.GuestID = &guestID
		}
		return s.participants.Save(txCtx, host)
	})
	if err != nil {
		logCtx.WithError(err).Error("Failed to create room")
		return nil, fmt.Errorf("%w: failed to create room", ErrInternalServer)
	}

	s.emit(ctx, domain.NewRoomEvent(domain.EventParticipantJoined, room.ID, map[string]any{
		"participantId": host.ID.String(),
		"displayName":   host.DisplayName,
		"role":          host.Role,
	}))

	result := &JoinResult{Room: room, Participant: host}
	if actor.IsGuest() {
		grant, err := s.grants.Issue(actor.GuestID, host.ID, room.ID, host.Role)
		if err != nil {
			logCtx.WithError(err).Error("Failed to issue guest grant")
			return nil, fmt.Errorf("%w: failed to issue guest grant", ErrInternalServer)
		}
		result.GuestGrant = grant
	}

	logCtx.WithFields(logrus.Fields{"roomId": room.ID, "code": room.Code}).Info("Room created")
	return result, nil
}

func (s *RoomService) generateCode(ctx context.Context) (string, error) {
	for i := 0; i < roomCodeMaxTries; i++ {
		code, err := gonanoid.Generate(roomCodeAlphabet, roomCodeLength)
		if err != nil {
			return "", fmt.Errorf("%w: failed to generate room code", ErrInternalServer)
		}
		taken, err := s.rooms.ExistsByCode(ctx, code)
		if err != nil {
			return "", fmt.Errorf("%w: failed to check room code", ErrInternalServer)
		}
		if !taken {
			return code, nil
		}
	}
	logrus.Error("Room code space exhausted after max retries")
	return "", fmt.Errorf("%w: could not allocate a unique room code", ErrInternalServer)
}

// JoinInput carries the join parameters common to the id, code and
// invite paths.
type JoinInput struct {
	DisplayName string
	Role        domain.ParticipantRole
}

// Join enters the actor into a room. Joining again is idempotent: the
// existing membership is refreshed (display name, online flag) instead
// of duplicated, and its role is preserved.
func (s *RoomService) Join(ctx context.Context, actor domain.Actor, roomID uuid.UUID, input JoinInput) (*JoinResult, error) {
	room, err := s.getActiveRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return s.join(ctx, actor, room, input)
}

// JoinByCode is Join addressed by the human-readable room code.
func (s *RoomService) JoinByCode(ctx context.Context, actor domain.Actor, code string, input JoinInput) (*JoinResult, error) {
	room, err := s.rooms.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: room not found", ErrNotFound)
		}
		return nil, fmt.Errorf("%w: failed to look up room", ErrInternalServer)
	}
	if room.IsClosed() {
		return nil, fmt.Errorf("%w: room is closed", ErrBadRequest)
	}
	return s.join(ctx, actor, room, input)
}

func (s *RoomService) join(ctx context.Context, actor domain.Actor, room *domain.Room, input JoinInput) (*JoinResult, error) {
	logCtx := logrus.WithFields(logrus.Fields{"roomId": room.ID, "isUser": actor.IsUser()})

	if input.DisplayName == "" {
		return nil, fmt.Errorf("%w: displayName is required", ErrBadRequest)
	}
	role := input.Role
	if role == "" {
		role = domain.RoleParticipant
	}
	switch role {
	case domain.RoleParticipant:
	case domain.RoleObserver:
		if !room.Settings.AllowObservers {
			return nil, fmt.Errorf("%w: room does not allow observers", ErrBadRequest)
		}
	default:
		return nil, fmt.Errorf("%w: cannot join with role %q", ErrBadRequest, input.Role)
	}

	var participant *domain.Participant
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		existing, err := s.findMembership(txCtx, room.ID, actor)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: failed to look up membership", ErrInternalServer)
		}

		if existing == nil {
			fresh := &domain.Participant{
				RoomID:      room.ID,
				Role:        role,
				DisplayName: input.DisplayName,
				Online:      true,
			}
			if actor.IsUser() {
				fresh.UserID = actor.UserID
			} else {
				guestID := actor.GuestID
				fresh.GuestID = &guestID
			}
			err := s.participants.Save(txCtx, fresh)
			if err == nil {
				participant = fresh
				return nil
			}
			if !errors.Is(err, repository.ErrDuplicateEntry) {
				return err
			}
			// A concurrent first join won the unique index; fall
			// through to treat this request as a rejoin.
			existing, err = s.findMembership(txCtx, room.ID, actor)
			if err != nil {
				return err
			}
		}

		existing.DisplayName = input.DisplayName
		existing.Online = true
		if err := s.participants.Save(txCtx, existing); err != nil {
			return err
		}
		participant = existing
		return nil
	})
	if err != nil {
		if isServiceError(err) {
			return nil, err
		}
		logCtx.WithError(err).Error("Failed to join room")
		return nil, fmt.Errorf("%w: failed to join room", ErrInternalServer)
	}

	s.emit(ctx, domain.NewRoomEvent(domain.EventParticipantJoined, room.ID, map[string]any{
		"participantId": participant.ID.String(),
		"displayName":   participant.DisplayName,
		"role":          participant.Role,
	}))

	result := &JoinResult{Room: room, Participant: participant}
	if actor.IsGuest() {
		grant, err := s.grants.Issue(actor.GuestID, participant.ID, room.ID, participant.Role)
		if err != nil {
			logCtx.WithError(err).Error("Failed to issue guest grant")
			return nil, fmt.Errorf("%w: failed to issue guest grant", ErrInternalServer)
		}
		result.GuestGrant = grant
	}

	logCtx.WithField("participantId", participant.ID).Info("Participant joined room")
	return result, nil
}

// Leave marks the actor's membership offline. The record stays so the
// participant's votes remain attributable and a later re-join keeps
// the same identity.
func (s *RoomService) Leave(ctx context.Context, actor domain.Actor, roomID uuid.UUID) error {
	participant, err := s.GetParticipant(ctx, roomID, actor)
	if err != nil {
		return err
	}
	participant.Online = false
	if err := s.participants.Save(ctx, participant); err != nil {
		logrus.WithError(err).WithField("roomId", roomID).Error("Failed to mark participant offline")
		return fmt.Errorf("%w: failed to leave room", ErrInternalServer)
	}

	s.emit(ctx, domain.NewRoomEvent(domain.EventParticipantLeft, roomID, map[string]any{
		"participantId": participant.ID.String(),
	}))
	return nil
}

// Kick removes targetID from the room. Host only. The membership row
// is deleted outright, unlike Leave.
func (s *RoomService) Kick(ctx context.Context, actor domain.Actor, roomID, targetID uuid.UUID) error {
	logCtx := logrus.WithFields(logrus.Fields{"roomId": roomID, "targetId": targetID})

	var target *domain.Participant
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		host, err := s.RequireHost(txCtx, roomID, actor)
		if err != nil {
			return err
		}
		target, err = s.participants.FindByIDForUpdate(txCtx, targetID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%w: participant not found", ErrNotFound)
			}
			return fmt.Errorf("%w: failed to look up participant", ErrInternalServer)
		}
		if target.RoomID != roomID {
			return fmt.Errorf("%w: participant does not belong to this room", ErrBadRequest)
		}
		if target.ID == host.ID {
			return fmt.Errorf("%w: the host cannot kick themselves", ErrBadRequest)
		}
		return s.participants.Delete(txCtx, target)
	})
	if err != nil {
		if isServiceError(err) {
			return err
		}
		logCtx.WithError(err).Error("Failed to kick participant")
		return fmt.Errorf("%w: failed to kick participant", ErrInternalServer)
	}

	s.emit(ctx, domain.NewRoomEvent(domain.EventParticipantKicked, roomID, map[string]any{
		"participantId": target.ID.String(),
	}))
	logCtx.Info("Participant kicked")
	return nil
}

// TransferHost hands the HOST role to targetID. The current host
// becomes a regular PARTICIPANT.
func (s *RoomService) TransferHost(ctx context.Context, actor domain.Actor, roomID, targetID uuid.UUID) error {
	logCtx := logrus.WithFields(logrus.Fields{"roomId": roomID, "targetId": targetID})

	var oldHost, newHost *domain.Participant
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		host, err := s.RequireHost(txCtx, roomID, actor)
		if err != nil {
			return err
		}
		oldHost, err = s.participants.FindByIDForUpdate(txCtx, host.ID)
		if err != nil {
			return fmt.Errorf("%w: failed to look up host", ErrInternalServer)
		}
		newHost, err = s.participants.FindByIDForUpdate(txCtx, targetID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%w: participant not found", ErrNotFound)
			}
			return fmt.Errorf("%w: failed to look up participant", ErrInternalServer)
		}
		if newHost.RoomID != roomID {
			return fmt.Errorf("%w: participant does not belong to this room", ErrBadRequest)
		}
		if newHost.ID == oldHost.ID {
			return fmt.Errorf("%w: already the host", ErrBadRequest)
		}

		oldHost.Role = domain.RoleParticipant
		newHost.Role = domain.RoleHost
		if err := s.participants.Save(txCtx, oldHost); err != nil {
			return err
		}
		return s.participants.Save(txCtx, newHost)
	})
	if err != nil {
		if isServiceError(err) {
			return err
		}
		logCtx.WithError(err).Error("Failed to transfer host role")
		return fmt.Errorf("%w: failed to transfer host role", ErrInternalServer)
	}

	s.emit(ctx, domain.NewRoomEvent(domain.EventHostTransferred, roomID, map[string]any{
		"fromParticipantId": oldHost.ID.String(),
		"toParticipantId":   newHost.ID.String(),
	}))
	logCtx.Info("Host role transferred")
	return nil
}

// Close transitions the room to CLOSED. Host only. Closing is
// terminal; closed rooms reject joins and mutations but stay readable.
func (s *RoomService) Close(ctx context.Context, actor domain.Actor, roomID uuid.UUID) error {
	logCtx := logrus.WithField("roomId", roomID)

	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.RequireHost(txCtx, roomID, actor); err != nil {
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
			return nil
		}
		room.Status = domain.RoomClosed
		return s.rooms.Save(txCtx, room)
	})
	if err != nil {
		if isServiceError(err) {
			return err
		}
		logCtx.WithError(err).Error("Failed to close room")
		return fmt.Errorf("%w: failed to close room", ErrInternalServer)
	}

	s.emit(ctx, domain.NewRoomEvent(domain.EventRoomClosed, roomID, nil))
	logCtx.Info("Room closed")
	return nil
}

// GetRoom returns the room regardless of status.
func (s *RoomService) GetRoom(ctx context.Context, roomID uuid.UUID) (*domain.Room, error) {
	room, err := s.rooms.FindByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: room not found", ErrNotFound)
		}
		logrus.WithError(err).WithField("roomId", roomID).Error("Failed to load room")
		return nil, fmt.Errorf("%w: failed to load room", ErrInternalServer)
	}
	return room, nil
}

// GetActiveRoom returns the room and rejects closed ones.
func (s *RoomService) GetActiveRoom(ctx context.Context, roomID uuid.UUID) (*domain.Room, error) {
	return s.getActiveRoom(ctx, roomID)
}

func (s *RoomService) getActiveRoom(ctx context.Context, roomID uuid.UUID) (*domain.Room, error) {
	room, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.IsClosed() {
		return nil, fmt.Errorf("%w: room is closed", ErrBadRequest)
	}
	return room, nil
}

// Participants lists every membership of the room, online or not.
func (s *RoomService) Participants(ctx context.Context, roomID uuid.UUID) ([]domain.Participant, error) {
	list, err := s.participants.FindByRoomID(ctx, roomID)
	if err != nil {
		logrus.WithError(err).WithField("roomId", roomID).Error("Failed to list participants")
		return nil, fmt.Errorf("%w: failed to list participants", ErrInternalServer)
	}
	return list, nil
}

// GetParticipant resolves the actor's membership in the room, or
// ErrForbidden when the actor is not a member.
func (s *RoomService) GetParticipant(ctx context.Context, roomID uuid.UUID, actor domain.Actor) (*domain.Participant, error) {
	participant, err := s.findMembership(ctx, roomID, actor)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: not a participant of this room", ErrForbidden)
		}
		logrus.WithError(err).WithField("roomId", roomID).Error("Failed to look up membership")
		return nil, fmt.Errorf("%w: failed to look up membership", ErrInternalServer)
	}
	return participant, nil
}

func (s *RoomService) findMembership(ctx context.Context, roomID uuid.UUID, actor domain.Actor) (*domain.Participant, error) {
	if actor.IsUser() {
		return s.participants.FindByRoomIDAndUserID(ctx, roomID, *actor.UserID)
	}
	if actor.GuestID != "" {
		return s.participants.FindByRoomIDAndGuestID(ctx, roomID, actor.GuestID)
	}
	return nil, repository.ErrNotFound
}

// RequireHost resolves the actor's membership and verifies HOST role.
// Grant-backed actors are resolved by the participant id bound into
// the grant; the stored role is still the source of truth, so a grant
// issued before a host transfer stops working once the row changes.
func (s *RoomService) RequireHost(ctx context.Context, roomID uuid.UUID, actor domain.Actor) (*domain.Participant, error) {
	var participant *domain.Participant
	var err error
	if actor.HasGrant() {
		participant, err = s.participants.FindByID(ctx, *actor.ParticipantID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("%w: not a participant of this room", ErrForbidden)
			}
			return nil, fmt.Errorf("%w: failed to look up membership", ErrInternalServer)
		}
		if participant.RoomID != roomID {
			return nil, fmt.Errorf("%w: not a participant of this room", ErrForbidden)
		}
	} else {
		participant, err = s.GetParticipant(ctx, roomID, actor)
		if err != nil {
			return nil, err
		}
	}
	if participant.Role != domain.RoleHost {
		return nil, fmt.Errorf("%w: host role required", ErrForbidden)
	}
	return participant, nil
}

func (s *RoomService) emit(ctx context.Context, event domain.RoomEvent) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"roomId": event.RoomID,
			"type":   event.Type,
		}).Error("Failed to publish room event")
	}
}
