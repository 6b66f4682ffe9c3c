package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Oppadayo/poker-planning-server/internal/domain"
	"github.com/Oppadayo/poker-planning-server/internal/events"
	"github.com/Oppadayo/poker-planning-server/internal/repository"
)

// RoundService drives the voting round state machine over the room's
// current story: VOTING -> REVEALED -> FINALIZED, with reset back to
// VOTING. Vote values stay concealed until reveal.
type RoundService struct {
	rounds    repository.RoundRepository
	votes     repository.VoteRepository
	stories   repository.StoryRepository
	rooms     *RoomService
	tx        repository.TxManager
	publisher events.Publisher
}

func NewRoundService(
	rounds repository.RoundRepository,
	votes repository.VoteRepository,
	stories repository.StoryRepository,
	rooms *RoomService,
	tx repository.TxManager,
	publisher events.Publisher,
) *RoundService {
	if rounds == nil || votes == nil || stories == nil || rooms == nil || tx == nil || publisher == nil {
		panic("NewRoundService: nil dependency")
	}
	return &RoundService{
		rounds:    rounds,
		votes:     votes,
		stories:   stories,
		rooms:     rooms,
		tx:        tx,
		publisher: publisher,
	}
}

// Start opens a voting round on the room's current story. Host only.
// Requires a selected story and no round already in VOTING or REVEALED.
func (s *RoundService) Start(ctx context.Context, actor domain.Actor, roomID uuid.UUID) (*domain.Round, error) {
	logCtx := logrus.WithField("roomId", roomID)

	var round *domain.Round
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.rooms.RequireHost(txCtx, roomID, actor); err != nil {
			return err
		}
		room, err := s.rooms.GetActiveRoom(txCtx, roomID)
		if err != nil {
			return err
		}
		if room.CurrentStoryID == nil {
			return fmt.Errorf("%w: no story selected", ErrBadRequest)
		}
		_, err = s.rounds.FindActiveByRoomIDForUpdate(txCtx, roomID)
		if err == nil {
			return fmt.Errorf("%w: a round is already in progress", ErrConflict)
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: failed to look up active round", ErrInternalServer)
		}

		round = &domain.Round{
			RoomID:  roomID,
			StoryID: *room.CurrentStoryID,
			Status:  domain.RoundVoting,
		}
		return s.rounds.Save(txCtx, round)
	})
	if err != nil {
		if isServiceError(err) {
			return nil, err
		}
		logCtx.WithError(err).Error("Failed to start round")
		return nil, fmt.Errorf("%w: failed to start round", ErrInternalServer)
	}

	s.emit(ctx, domain.NewRoomEvent(domain.EventRoundStarted, roomID, map[string]any{
		"roundId": round.ID.String(),
		"storyId": round.StoryID.String(),
		"status":  round.Status,
	}))
	logCtx.WithField("roundId", round.ID).Info("Round started")
	return round, nil
}

// CastVote upserts the actor's vote in the active round. Observers may
// not vote; voting is only possible while the round is in VOTING. The
// emitted event carries a has-voted flag and never the value.
func (s *RoundService) CastVote(ctx context.Context, actor domain.Actor, roomID uuid.UUID, value string) error {
	logCtx := logrus.WithField("roomId", roomID)

	if value == "" {
		return fmt.Errorf("%w: vote value is required", ErrBadRequest)
	}

	var participant *domain.Participant
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		participant, err = s.rooms.GetParticipant(txCtx, roomID, actor)
		if err != nil {
			return err
		}
		if participant.Role == domain.RoleObserver {
			return fmt.Errorf("%w: observers cannot vote", ErrForbidden)
		}
		round, err := s.rounds.FindActiveByRoomIDForUpdate(txCtx, roomID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%w: no active round", ErrBadRequest)
			}
			return fmt.Errorf("%w: failed to look up active round", ErrInternalServer)
		}
		if round.Status != domain.RoundVoting {
			return fmt.Errorf("%w: round is not accepting votes", ErrBadRequest)
		}

		vote, err := s.votes.FindByRoundIDAndParticipantID(txCtx, round.ID, participant.ID)
		switch {
		case err == nil:
			vote.Value = value
		case errors.Is(err, repository.ErrNotFound):
			vote = &domain.Vote{
				RoundID:       round.ID,
				ParticipantID: participant.ID,
				Value:         value,
			}
		default:
			return fmt.Errorf("%w: failed to look up vote", ErrInternalServer)
		}
		return s.votes.Save(txCtx, vote)
	})
	if err != nil {
		if isServiceError(err) {
			return err
		}
		logCtx.WithError(err).Error("Failed to cast vote")
		return fmt.Errorf("%w: failed to cast vote", ErrInternalServer)
	}

	s.emit(ctx, domain.NewRoomEvent(domain.EventVoteCast, roomID, map[string]any{
		"participantId": participant.ID.String(),
		"hasVoted":      true,
	}))
	return nil
}

// Reveal flips the active round from VOTING to REVEALED and publishes
// every vote value in full.
func (s *RoundService) Reveal(ctx context.Context, actor domain.Actor, roomID uuid.UUID) (*domain.Round, error) {
	logCtx := logrus.WithField("roomId", roomID)

	var round *domain.Round
	var votes []domain.Vote
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.rooms.RequireHost(txCtx, roomID, actor); err != nil {
			return err
		}
		var err error
		round, err = s.activeRoundForUpdate(txCtx, roomID)
		if err != nil {
			return err
		}
		if round.Status != domain.RoundVoting {
			return fmt.Errorf("%w: round is not in voting", ErrBadRequest)
		}
		now := time.Now().UTC()
		round.Status = domain.RoundRevealed
		round.RevealedAt = &now
		if err := s.rounds.Save(txCtx, round); err != nil {
			return err
		}
		votes, err = s.votes.FindByRoundID(txCtx, round.ID)
		if err != nil {
			return fmt.Errorf("%w: failed to list votes", ErrInternalServer)
		}
		return nil
	})
	if err != nil {
		if isServiceError(err) {
			return nil, err
		}
		logCtx.WithError(err).Error("Failed to reveal round")
		return nil, fmt.Errorf("%w: failed to reveal round", ErrInternalServer)
	}

	revealed := make([]map[string]any, 0, len(votes))
	for _, v := range votes {
		revealed = append(revealed, map[string]any{
			"participantId": v.ParticipantID.String(),
			"value":         v.Value,
		})
	}
	s.emit(ctx, domain.NewRoomEvent(domain.EventRoundRevealed, roomID, map[string]any{
		"roundId": round.ID.String(),
		"votes":   revealed,
	}))
	logCtx.WithField("roundId", round.ID).Info("Round revealed")
	return round, nil
}

// Reset purges the active round's votes and returns it to VOTING.
// Host only. Resetting a round already in VOTING is allowed and just
// clears the votes.
func (s *RoundService) Reset(ctx context.Context, actor domain.Actor, roomID uuid.UUID) (*domain.Round, error) {
	logCtx := logrus.WithField("roomId", roomID)

	var round *domain.Round
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.rooms.RequireHost(txCtx, roomID, actor); err != nil {
			return err
		}
		var err error
		round, err = s.activeRoundForUpdate(txCtx, roomID)
		if err != nil {
			return err
		}
		if err := s.votes.DeleteByRoundID(txCtx, round.ID); err != nil {
			return fmt.Errorf("%w: failed to purge votes", ErrInternalServer)
		}
		round.Status = domain.RoundVoting
		round.RevealedAt = nil
		return s.rounds.Save(txCtx, round)
	})
	if err != nil {
		if isServiceError(err) {
			return nil, err
		}
		logCtx.WithError(err).Error("Failed to reset round")
		return nil, fmt.Errorf("%w: failed to reset round", ErrInternalServer)
	}

	s.emit(ctx, domain.NewRoomEvent(domain.EventRoundReset, roomID, map[string]any{
		"roundId": round.ID.String(),
	}))
	logCtx.WithField("roundId", round.ID).Info("Round reset")
	return round, nil
}

// Finalize records the final estimate on the round's story and closes
// the round. Host only; requires REVEALED. The estimate is free-form
// and need not match any cast vote.
func (s *RoundService) Finalize(ctx context.Context, actor domain.Actor, roomID uuid.UUID, finalEstimate string) (*domain.Round, error) {
	logCtx := logrus.WithField("roomId", roomID)

	if finalEstimate == "" {
		return nil, fmt.Errorf("%w: finalEstimate is required", ErrBadRequest)
	}

	var round *domain.Round
	var story *domain.Story
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.rooms.RequireHost(txCtx, roomID, actor); err != nil {
			return err
		}
		var err error
		round, err = s.activeRoundForUpdate(txCtx, roomID)
		if err != nil {
			return err
		}
		if round.Status != domain.RoundRevealed {
			return fmt.Errorf("%w: round must be revealed before finalizing", ErrBadRequest)
		}
		story, err = s.stories.FindByID(txCtx, round.StoryID)
		if err != nil {
			return fmt.Errorf("%w: failed to look up story", ErrInternalServer)
		}

		now := time.Now().UTC()
		round.Status = domain.RoundFinalized
		round.FinalizedAt = &now
		if err := s.rounds.Save(txCtx, round); err != nil {
			return err
		}
		story.Status = domain.StoryEstimated
		story.FinalEstimate = &finalEstimate
		return s.stories.Save(txCtx, story)
	})
	if err != nil {
		if isServiceError(err) {
			return nil, err
		}
		logCtx.WithError(err).Error("Failed to finalize round")
		return nil, fmt.Errorf("%w: failed to finalize round", ErrInternalServer)
	}

	s.emit(ctx, domain.NewRoomEvent(domain.EventRoundFinalized, roomID, map[string]any{
		"roundId":       round.ID.String(),
		"storyId":       story.ID.String(),
		"finalEstimate": finalEstimate,
	}))
	logCtx.WithField("roundId", round.ID).Info("Round finalized")
	return round, nil
}

// VoteView is one participant's vote as projected for display. Value
// is nil while the round is concealed.
type VoteView struct {
	ParticipantID uuid.UUID `json:"participantId"`
	HasVoted      bool      `json:"hasVoted"`
	Value         *string   `json:"value,omitempty"`
}

// RoundView is the active round projection sent to clients.
type RoundView struct {
	ID      uuid.UUID          `json:"id"`
	StoryID uuid.UUID          `json:"storyId"`
	Status  domain.RoundStatus `json:"status"`
	Votes   []VoteView         `json:"votes"`
}

// ActiveRound projects the room's active round, or nil when none
// exists. While the round is in VOTING only has-voted flags are
// returned; observers are omitted from the not-voted entries since
// they never vote.
func (s *RoundService) ActiveRound(ctx context.Context, roomID uuid.UUID) (*RoundView, error) {
	round, err := s.rounds.FindActiveByRoomID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		logrus.WithError(err).WithField("roomId", roomID).Error("Failed to load active round")
		return nil, fmt.Errorf("%w: failed to load active round", ErrInternalServer)
	}

	votes, err := s.votes.FindByRoundID(ctx, round.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list votes", ErrInternalServer)
	}
	participants, err := s.rooms.Participants(ctx, roomID)
	if err != nil {
		return nil, err
	}

	voted := make(map[uuid.UUID]domain.Vote, len(votes))
	for _, v := range votes {
		voted[v.ParticipantID] = v
	}

	concealed := round.Status == domain.RoundVoting
	views := make([]VoteView, 0, len(participants))
	for _, p := range participants {
		vote, has := voted[p.ID]
		if !has {
			if p.Role == domain.RoleObserver {
				continue
			}
			views = append(views, VoteView{ParticipantID: p.ID})
			continue
		}
		view := VoteView{ParticipantID: p.ID, HasVoted: true}
		if !concealed {
			value := vote.Value
			view.Value = &value
		}
		views = append(views, view)
	}

	return &RoundView{
		ID:      round.ID,
		StoryID: round.StoryID,
		Status:  round.Status,
		Votes:   views,
	}, nil
}

func (s *RoundService) activeRoundForUpdate(ctx context.Context, roomID uuid.UUID) (*domain.Round, error) {
	round, err := s.rounds.FindActiveByRoomIDForUpdate(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: no active round", ErrBadRequest)
		}
		return nil, fmt.Errorf("%w: failed to look up active round", ErrInternalServer)
	}
	return round, nil
}

func (s *RoundService) emit(ctx context.Context, event domain.RoomEvent) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"roomId": event.RoomID,
			"type":   event.Type,
		}).Error("Failed to publish room event")
	}
}
