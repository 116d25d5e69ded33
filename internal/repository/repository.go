package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrDuplicatePending is returned by InvitationRepository.Create when the
// partial unique index on (sender_id, receiver_id, team_id) WHERE status =
// 'PENDING' rejects the insert.
var ErrDuplicatePending = errors.New("pending invitation already exists")

// Repositories bundles all data access for dependency injection.
type Repositories struct {
	UserRepo         UserRepository
	TeamRepo         TeamRepository
	InvitationRepo   InvitationRepository
	NotificationRepo NotificationRepository
}

func NewRepositories(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		UserRepo:         NewUserRepository(pool),
		TeamRepo:         NewTeamRepository(pool),
		InvitationRepo:   NewInvitationRepository(pool),
		NotificationRepo: NewNotificationRepository(pool),
	}
}
