package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/teamloop/teamloop-backend/internal/queue"
	"github.com/teamloop/teamloop-backend/internal/repository"
)

// InvitationService owns the invitation state machine: PENDING is the sole
// initial state, ACCEPTED and REJECTED are terminal. Acceptance mutates team
// membership inside the same unit of work as the status flip; the follow-up
// notification is a best-effort side channel that never fails the action.
//
// Only the receiver may decide an invitation; only the sender or receiver
// may delete one. A caller outside those roles gets ErrInvitationNotFound,
// which does not reveal whether the invitation exists.
type InvitationService interface {
	Send(ctx context.Context, senderID, receiverID, teamID, message string) (*repository.Invitation, error)
	Get(ctx context.Context, id string) (*repository.Invitation, error)
	List(ctx context.Context, filter repository.InvitationFilter) ([]*repository.Invitation, error)
	Accept(ctx context.Context, id, callerID string) (*repository.Invitation, error)
	Reject(ctx context.Context, id, callerID string) (*repository.Invitation, error)
	Delete(ctx context.Context, id, callerID string) error
}

type invitationService struct {
	invRepo  repository.InvitationRepository
	teamRepo repository.TeamRepository
	userRepo repository.UserRepository
	queue    queue.Queue
}

func NewInvitationService(
	invRepo repository.InvitationRepository,
	teamRepo repository.TeamRepository,
	userRepo repository.UserRepository,
	q queue.Queue,
) InvitationService {
	return &invitationService{
		invRepo:  invRepo,
		teamRepo: teamRepo,
		userRepo: userRepo,
		queue:    q,
	}
}

func (s *invitationService) Send(ctx context.Context, senderID, receiverID, teamID, message string) (*repository.Invitation, error) {
	if senderID == receiverID {
		return nil, errors.New("cannot invite yourself")
	}

	receiver, err := s.userRepo.FindByID(ctx, receiverID)
	if err != nil {
		return nil, fmt.Errorf("find receiver: %w", err)
	}
	if receiver == nil {
		return nil, ErrUserNotFound
	}

	team, err := s.teamRepo.FindByID(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("find team: %w", err)
	}
	if team == nil {
		return nil, ErrTeamNotFound
	}

	isMember, err := s.teamRepo.IsMember(ctx, teamID, receiverID)
	if err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}
	if isMember {
		return nil, ErrAlreadyMember
	}

	inv := &repository.Invitation{
		SenderID:   senderID,
		ReceiverID: receiverID,
		TeamID:     teamID,
		Message:    message,
	}
	if err := s.invRepo.Create(ctx, inv); err != nil {
		// The partial unique index is the authority on duplicates; two
		// concurrent senders cannot both pass an application-level check.
		if errors.Is(err, repository.ErrDuplicatePending) {
			return nil, ErrDuplicatePendingInvitation
		}
		return nil, fmt.Errorf("create invitation: %w", err)
	}

	// The invitation row has committed; delivery is a side channel. The
	// enqueue error is deliberately not propagated to the caller.
	if err := s.enqueue(ctx, queue.JobSendInvitationCreated, inv); err != nil {
		log.Printf("[Invitation] Failed to enqueue delivery for invitation %s: %v", inv.ID, err)
	}

	return inv, nil
}

func (s *invitationService) Get(ctx context.Context, id string) (*repository.Invitation, error) {
	inv, err := s.invRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, ErrInvitationNotFound
	}
	return inv, nil
}

func (s *invitationService) List(ctx context.Context, filter repository.InvitationFilter) ([]*repository.Invitation, error) {
	return s.invRepo.List(ctx, filter)
}

func (s *invitationService) Accept(ctx context.Context, id, callerID string) (*repository.Invitation, error) {
	if err := s.authorize(ctx, id, callerID, false); err != nil {
		return nil, err
	}

	inv, transitioned, err := s.invRepo.Accept(ctx, id, "Member")
	if err != nil {
		return nil, fmt.Errorf("accept invitation: %w", err)
	}
	if inv == nil {
		return nil, ErrInvitationNotFound
	}
	if !transitioned {
		// Already terminal: treated as a no-op so the membership mutation
		// can never run twice.
		return inv, nil
	}

	if err := s.enqueue(ctx, queue.JobSendInvitationUpdated, inv); err != nil {
		log.Printf("[Invitation] Failed to enqueue delivery for invitation %s: %v", inv.ID, err)
	}

	return inv, nil
}

func (s *invitationService) Reject(ctx context.Context, id, callerID string) (*repository.Invitation, error) {
	if err := s.authorize(ctx, id, callerID, false); err != nil {
		return nil, err
	}

	inv, transitioned, err := s.invRepo.Reject(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reject invitation: %w", err)
	}
	if inv == nil {
		return nil, ErrInvitationNotFound
	}
	if !transitioned {
		return inv, nil
	}

	if err := s.enqueue(ctx, queue.JobSendInvitationUpdated, inv); err != nil {
		log.Printf("[Invitation] Failed to enqueue delivery for invitation %s: %v", inv.ID, err)
	}

	return inv, nil
}

func (s *invitationService) Delete(ctx context.Context, id, callerID string) error {
	if err := s.authorize(ctx, id, callerID, true); err != nil {
		return err
	}

	found, err := s.invRepo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return ErrInvitationNotFound
	}
	return nil
}

// authorize checks the caller's role on an invitation: the receiver may
// decide it, and with senderToo the sender may act as well (deletion).
func (s *invitationService) authorize(ctx context.Context, id, callerID string, senderToo bool) error {
	inv, err := s.invRepo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("find invitation: %w", err)
	}
	if inv == nil {
		return ErrInvitationNotFound
	}
	if inv.ReceiverID == callerID {
		return nil
	}
	if senderToo && inv.SenderID == callerID {
		return nil
	}
	return ErrInvitationNotFound
}

func (s *invitationService) enqueue(ctx context.Context, jobType queue.JobType, inv *repository.Invitation) error {
	if s.queue == nil {
		return nil
	}
	err := s.queue.Enqueue(ctx, queue.Job{
		Type: jobType,
		Payload: queue.Payload{
			InvitationID: inv.ID,
			SenderID:     inv.SenderID,
			ReceiverID:   inv.ReceiverID,
			TeamID:       inv.TeamID,
			Status:       string(inv.Status),
			Text:         inv.Message,
		},
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}
	return nil
}
