package service

import (
	"context"
	"fmt"

	"github.com/teamloop/teamloop-backend/internal/repository"
	"github.com/teamloop/teamloop-backend/internal/socket"
)

// TeamService owns team records and membership mutation. AddMember is the
// strict variant used by the HTTP surface and fails with ErrAlreadyMember on
// duplicates; the accept-invitation flow uses the idempotent insert inside
// the invitation repository's transaction instead.
type TeamService interface {
	Create(ctx context.Context, name string, description *string, creatorID string) (*repository.Team, error)
	Get(ctx context.Context, id string) (*repository.Team, error)
	ListByUser(ctx context.Context, userID string) ([]*repository.Team, error)
	AddMember(ctx context.Context, teamID, userID, role string) (*repository.TeamMember, error)
	UpdateMemberRole(ctx context.Context, teamID, userID, role string) error
	RemoveMember(ctx context.Context, teamID, userID string) error
	ListMembers(ctx context.Context, teamID string) ([]*repository.TeamMember, error)
}

type teamService struct {
	teamRepo    repository.TeamRepository
	userRepo    repository.UserRepository
	broadcaster *socket.Broadcaster
}

func NewTeamService(teamRepo repository.TeamRepository, userRepo repository.UserRepository, broadcaster *socket.Broadcaster) TeamService {
	return &teamService{
		teamRepo:    teamRepo,
		userRepo:    userRepo,
		broadcaster: broadcaster,
	}
}

func (s *teamService) Create(ctx context.Context, name string, description *string, creatorID string) (*repository.Team, error) {
	team := &repository.Team{
		Name:        name,
		Description: description,
		CreatedBy:   creatorID,
	}
	if err := s.teamRepo.Create(ctx, team); err != nil {
		return nil, fmt.Errorf("create team: %w", err)
	}

	if _, err := s.teamRepo.AddMember(ctx, &repository.TeamMember{
		TeamID: team.ID,
		UserID: creatorID,
		Role:   "Owner",
	}); err != nil {
		return nil, fmt.Errorf("add creator membership: %w", err)
	}

	return team, nil
}

func (s *teamService) Get(ctx context.Context, id string) (*repository.Team, error) {
	team, err := s.teamRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if team == nil {
		return nil, ErrTeamNotFound
	}
	return team, nil
}

func (s *teamService) ListByUser(ctx context.Context, userID string) ([]*repository.Team, error) {
	return s.teamRepo.FindByUserID(ctx, userID)
}

func (s *teamService) AddMember(ctx context.Context, teamID, userID, role string) (*repository.TeamMember, error) {
	team, err := s.teamRepo.FindByID(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if team == nil {
		return nil, ErrTeamNotFound
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	member := &repository.TeamMember{
		TeamID: teamID,
		UserID: userID,
		Role:   role,
	}
	inserted, err := s.teamRepo.AddMember(ctx, member)
	if err != nil {
		return nil, fmt.Errorf("add member: %w", err)
	}
	if !inserted {
		return nil, ErrAlreadyMember
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastMemberAdded(teamID, userID, member.Role)
	}
	return member, nil
}

func (s *teamService) UpdateMemberRole(ctx context.Context, teamID, userID, role string) error {
	found, err := s.teamRepo.UpdateMemberRole(ctx, teamID, userID, role)
	if err != nil {
		return err
	}
	if !found {
		return ErrNotAMember
	}
	return nil
}

func (s *teamService) RemoveMember(ctx context.Context, teamID, userID string) error {
	found, err := s.teamRepo.RemoveMember(ctx, teamID, userID)
	if err != nil {
		return err
	}
	if !found {
		return ErrNotAMember
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastMemberRemoved(teamID, userID)
	}
	return nil
}

func (s *teamService) ListMembers(ctx context.Context, teamID string) ([]*repository.TeamMember, error) {
	return s.teamRepo.FindMembers(ctx, teamID)
}
