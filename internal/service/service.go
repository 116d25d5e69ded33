package service

import (
	"errors"

	"github.com/teamloop/teamloop-backend/internal/config"
	"github.com/teamloop/teamloop-backend/internal/queue"
	"github.com/teamloop/teamloop-backend/internal/repository"
	"github.com/teamloop/teamloop-backend/internal/socket"
)

var (
	ErrInvalidCredentials         = errors.New("invalid credentials")
	ErrUserExists                 = errors.New("user already exists")
	ErrUserNotFound               = errors.New("user not found")
	ErrInvalidToken               = errors.New("invalid token")
	ErrTeamNotFound               = errors.New("team not found")
	ErrInvitationNotFound         = errors.New("invitation not found")
	ErrDuplicatePendingInvitation = errors.New("a pending invitation already exists for this user and team")
	ErrNotAMember                 = errors.New("user is not a member of the team")
	ErrAlreadyMember              = errors.New("user is already a member of the team")
	ErrQueueUnavailable           = errors.New("delivery queue unavailable")

	// ErrDeliveryChannelFailure marks a failed best-effort delivery channel
	// (mail, realtime push). It is logged and discarded by the pipeline,
	// never propagated to the action that triggered the delivery.
	ErrDeliveryChannelFailure = errors.New("delivery channel failure")
)

// Services bundles the request-path services.
type Services struct {
	Auth       AuthService
	Team       TeamService
	Invitation InvitationService
}

// ServiceDeps carries everything the services need. The queue is passed in
// explicitly so tests can substitute an in-memory implementation.
type ServiceDeps struct {
	Config      *config.Config
	Repos       *repository.Repositories
	Queue       queue.Queue
	Broadcaster *socket.Broadcaster
}

func NewServices(deps *ServiceDeps) *Services {
	teamSvc := NewTeamService(deps.Repos.TeamRepo, deps.Repos.UserRepo, deps.Broadcaster)
	return &Services{
		Auth:       NewAuthService(deps.Config, deps.Repos.UserRepo),
		Team:       teamSvc,
		Invitation: NewInvitationService(deps.Repos.InvitationRepo, deps.Repos.TeamRepo, deps.Repos.UserRepo, deps.Queue),
	}
}
