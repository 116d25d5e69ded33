package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// InvitationStatus is the invitation lifecycle state. PENDING is the sole
// initial state; ACCEPTED and REJECTED are terminal.
type InvitationStatus string

const (
	InvitationStatusPending  InvitationStatus = "PENDING"
	InvitationStatusAccepted InvitationStatus = "ACCEPTED"
	InvitationStatusRejected InvitationStatus = "REJECTED"
)

// Invitation represents an invitation for a user to join a team.
type Invitation struct {
	ID         string
	SenderID   string
	ReceiverID string
	TeamID     string
	Message    string
	Status     InvitationStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// InvitationFilter narrows List results. Zero-value fields are ignored.
// All bypasses pagination and returns the full matching set.
type InvitationFilter struct {
	SenderID   string
	ReceiverID string
	TeamID     string
	Status     InvitationStatus
	Page       int
	PageSize   int
	All        bool
}

type InvitationRepository interface {
	Create(ctx context.Context, invitation *Invitation) error
	FindByID(ctx context.Context, id string) (*Invitation, error)
	List(ctx context.Context, filter InvitationFilter) ([]*Invitation, error)

	// Accept flips a PENDING invitation to ACCEPTED and inserts the team
	// membership in a single transaction. The returned bool reports whether
	// the transition happened; for an invitation already in a terminal state
	// the current row is returned with false and no membership mutation.
	Accept(ctx context.Context, id, role string) (*Invitation, bool, error)

	// Reject flips a PENDING invitation to REJECTED. Same return contract
	// as Accept.
	Reject(ctx context.Context, id string) (*Invitation, bool, error)

	Delete(ctx context.Context, id string) (bool, error)
}

type pgInvitationRepository struct {
	pool *pgxpool.Pool
}

func NewInvitationRepository(pool *pgxpool.Pool) InvitationRepository {
	return &pgInvitationRepository{pool: pool}
}

const invitationColumns = `id, sender_id, receiver_id, team_id, message, status, created_at, updated_at`

func scanInvitation(row pgx.Row) (*Invitation, error) {
	inv := &Invitation{}
	err := row.Scan(
		&inv.ID, &inv.SenderID, &inv.ReceiverID, &inv.TeamID,
		&inv.Message, &inv.Status, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func (r *pgInvitationRepository) Create(ctx context.Context, invitation *Invitation) error {
	query := `
		INSERT INTO invitations (sender_id, receiver_id, team_id, message, status)
		VALUES ($1, $2, $3, $4, 'PENDING')
		RETURNING id, status, created_at, updated_at
	`
	err := r.pool.QueryRow(ctx, query,
		invitation.SenderID, invitation.ReceiverID, invitation.TeamID, invitation.Message,
	).Scan(&invitation.ID, &invitation.Status, &invitation.CreatedAt, &invitation.UpdatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicatePending
	}
	return err
}

func (r *pgInvitationRepository) FindByID(ctx context.Context, id string) (*Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM invitations WHERE id = $1`
	inv, err := scanInvitation(r.pool.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func (r *pgInvitationRepository) List(ctx context.Context, filter InvitationFilter) ([]*Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM invitations WHERE 1=1`
	args := []interface{}{}

	addArg := func(clause string, value interface{}) {
		args = append(args, value)
		query += fmt.Sprintf(" AND %s = $%s", clause, strconv.Itoa(len(args)))
	}

	if filter.SenderID != "" {
		addArg("sender_id", filter.SenderID)
	}
	if filter.ReceiverID != "" {
		addArg("receiver_id", filter.ReceiverID)
	}
	if filter.TeamID != "" {
		addArg("team_id", filter.TeamID)
	}
	if filter.Status != "" {
		addArg("status", string(filter.Status))
	}

	query += ` ORDER BY created_at DESC`

	if !filter.All {
		pageSize := filter.PageSize
		if pageSize <= 0 {
			pageSize = 20
		}
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		args = append(args, pageSize)
		query += ` LIMIT $` + strconv.Itoa(len(args))
		args = append(args, (page-1)*pageSize)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invitations []*Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		invitations = append(invitations, inv)
	}
	return invitations, rows.Err()
}

func (r *pgInvitationRepository) Accept(ctx context.Context, id, role string) (*Invitation, bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx)

	query := `SELECT ` + invitationColumns + ` FROM invitations WHERE id = $1 FOR UPDATE`
	inv, err := scanInvitation(tx.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	// Terminal states never transition again; the caller must not re-run
	// the membership mutation.
	if inv.Status != InvitationStatusPending {
		return inv, false, nil
	}

	update := `UPDATE invitations SET status = 'ACCEPTED', updated_at = NOW() WHERE id = $1 RETURNING status, updated_at`
	if err := tx.QueryRow(ctx, update, id).Scan(&inv.Status, &inv.UpdatedAt); err != nil {
		return nil, false, err
	}

	insert := `
		INSERT INTO team_members (team_id, user_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (team_id, user_id) DO NOTHING
	`
	if _, err := tx.Exec(ctx, insert, inv.TeamID, inv.ReceiverID, role); err != nil {
		return nil, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return inv, true, nil
}

func (r *pgInvitationRepository) Reject(ctx context.Context, id string) (*Invitation, bool, error) {
	query := `
		UPDATE invitations SET status = 'REJECTED', updated_at = NOW()
		WHERE id = $1 AND status = 'PENDING'
		RETURNING ` + invitationColumns
	inv, err := scanInvitation(r.pool.QueryRow(ctx, query, id))
	if err == nil {
		return inv, true, nil
	}
	if err != pgx.ErrNoRows {
		return nil, false, err
	}

	// Either absent or already terminal; let the caller distinguish.
	inv, err = r.FindByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return inv, false, nil
}

func (r *pgInvitationRepository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM invitations WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}
