package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/teamloop/teamloop-backend/internal/queue"
	"github.com/teamloop/teamloop-backend/internal/repository"
)

// ============================================
// Fakes
// ============================================

type fakeUserRepo struct {
	users map[string]*repository.User
}

func (f *fakeUserRepo) Create(ctx context.Context, u *repository.User) error {
	f.users[u.ID] = u
	return nil
}

func (f *fakeUserRepo) FindByID(ctx context.Context, id string) (*repository.User, error) {
	return f.users[id], nil
}

func (f *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*repository.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

type fakeTeamRepo struct {
	teams        map[string]*repository.Team
	members      map[string]bool // teamID+":"+userID
	addMemberErr error
}

func (f *fakeTeamRepo) Create(ctx context.Context, t *repository.Team) error {
	f.teams[t.ID] = t
	return nil
}

func (f *fakeTeamRepo) FindByID(ctx context.Context, id string) (*repository.Team, error) {
	return f.teams[id], nil
}

func (f *fakeTeamRepo) FindByUserID(ctx context.Context, userID string) ([]*repository.Team, error) {
	return nil, nil
}

func (f *fakeTeamRepo) AddMember(ctx context.Context, m *repository.TeamMember) (bool, error) {
	if f.addMemberErr != nil {
		return false, f.addMemberErr
	}
	key := m.TeamID + ":" + m.UserID
	if f.members[key] {
		return false, nil
	}
	f.members[key] = true
	return true, nil
}

func (f *fakeTeamRepo) FindMember(ctx context.Context, teamID, userID string) (*repository.TeamMember, error) {
	if f.members[teamID+":"+userID] {
		return &repository.TeamMember{TeamID: teamID, UserID: userID}, nil
	}
	return nil, nil
}

func (f *fakeTeamRepo) FindMembers(ctx context.Context, teamID string) ([]*repository.TeamMember, error) {
	return nil, nil
}

func (f *fakeTeamRepo) UpdateMemberRole(ctx context.Context, teamID, userID, role string) (bool, error) {
	return f.members[teamID+":"+userID], nil
}

func (f *fakeTeamRepo) RemoveMember(ctx context.Context, teamID, userID string) (bool, error) {
	key := teamID + ":" + userID
	if !f.members[key] {
		return false, nil
	}
	delete(f.members, key)
	return true, nil
}

func (f *fakeTeamRepo) IsMember(ctx context.Context, teamID, userID string) (bool, error) {
	return f.members[teamID+":"+userID], nil
}

type fakeInvitationRepo struct {
	invitations map[string]*repository.Invitation
	teamRepo    *fakeTeamRepo
	nextID      int
}

func (f *fakeInvitationRepo) Create(ctx context.Context, inv *repository.Invitation) error {
	for _, existing := range f.invitations {
		if existing.SenderID == inv.SenderID &&
			existing.ReceiverID == inv.ReceiverID &&
			existing.TeamID == inv.TeamID &&
			existing.Status == repository.InvitationStatusPending {
			return repository.ErrDuplicatePending
		}
	}
	f.nextID++
	inv.ID = fmt.Sprintf("inv-%d", f.nextID)
	inv.Status = repository.InvitationStatusPending
	f.invitations[inv.ID] = inv
	return nil
}

func (f *fakeInvitationRepo) FindByID(ctx context.Context, id string) (*repository.Invitation, error) {
	return f.invitations[id], nil
}

func (f *fakeInvitationRepo) List(ctx context.Context, filter repository.InvitationFilter) ([]*repository.Invitation, error) {
	var out []*repository.Invitation
	for _, inv := range f.invitations {
		if filter.ReceiverID != "" && inv.ReceiverID != filter.ReceiverID {
			continue
		}
		if filter.SenderID != "" && inv.SenderID != filter.SenderID {
			continue
		}
		out = append(out, inv)
	}
	return out, nil
}

func (f *fakeInvitationRepo) Accept(ctx context.Context, id, role string) (*repository.Invitation, bool, error) {
	inv := f.invitations[id]
	if inv == nil {
		return nil, false, nil
	}
	if inv.Status != repository.InvitationStatusPending {
		return inv, false, nil
	}
	// Status flip and membership insert share one transaction: a failed
	// insert leaves the status untouched.
	if _, err := f.teamRepo.AddMember(ctx, &repository.TeamMember{TeamID: inv.TeamID, UserID: inv.ReceiverID, Role: role}); err != nil {
		return nil, false, err
	}
	inv.Status = repository.InvitationStatusAccepted
	return inv, true, nil
}

func (f *fakeInvitationRepo) Reject(ctx context.Context, id string) (*repository.Invitation, bool, error) {
	inv := f.invitations[id]
	if inv == nil {
		return nil, false, nil
	}
	if inv.Status != repository.InvitationStatusPending {
		return inv, false, nil
	}
	inv.Status = repository.InvitationStatusRejected
	return inv, true, nil
}

func (f *fakeInvitationRepo) Delete(ctx context.Context, id string) (bool, error) {
	if _, ok := f.invitations[id]; !ok {
		return false, nil
	}
	delete(f.invitations, id)
	return true, nil
}

type recordingQueue struct {
	jobs       []queue.Job
	enqueueErr error
}

func (q *recordingQueue) Enqueue(ctx context.Context, job queue.Job) error {
	if q.enqueueErr != nil {
		return q.enqueueErr
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *recordingQueue) Dequeue(ctx context.Context) (*queue.Delivery, error) {
	return nil, errors.New("not implemented")
}

func (q *recordingQueue) ReclaimExpired(ctx context.Context) (int, error) {
	return 0, nil
}

// ============================================
// Fixture
// ============================================

func newInvitationFixture() (InvitationService, *fakeInvitationRepo, *fakeTeamRepo, *recordingQueue) {
	userRepo := &fakeUserRepo{users: map[string]*repository.User{
		"sender-1":   {ID: "sender-1", Name: "Asha", Email: "asha@teamloop.app"},
		"receiver-1": {ID: "receiver-1", Name: "Sunita", Email: "sunita@teamloop.app"},
	}}
	teamRepo := &fakeTeamRepo{
		teams:   map[string]*repository.Team{"team-1": {ID: "team-1", Name: "Product"}},
		members: map[string]bool{"team-1:sender-1": true},
	}
	invRepo := &fakeInvitationRepo{invitations: map[string]*repository.Invitation{}, teamRepo: teamRepo}
	q := &recordingQueue{}
	svc := NewInvitationService(invRepo, teamRepo, userRepo, q)
	return svc, invRepo, teamRepo, q
}

// ============================================
// Tests
// ============================================

func TestSendCreatesPendingInvitationAndEnqueues(t *testing.T) {
	svc, _, _, q := newInvitationFixture()

	inv, err := svc.Send(context.Background(), "sender-1", "receiver-1", "team-1", "join us")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if inv.Status != repository.InvitationStatusPending {
		t.Fatalf("status = %s, want PENDING", inv.Status)
	}
	if len(q.jobs) != 1 {
		t.Fatalf("enqueued %d jobs, want 1", len(q.jobs))
	}
	job := q.jobs[0]
	if job.Type != queue.JobSendInvitationCreated {
		t.Fatalf("job type = %s", job.Type)
	}
	if job.Payload.InvitationID != inv.ID || job.Payload.ReceiverID != "receiver-1" {
		t.Fatalf("job payload = %+v", job.Payload)
	}
}

func TestSendRejectsDuplicatePending(t *testing.T) {
	svc, _, _, _ := newInvitationFixture()
	ctx := context.Background()

	if _, err := svc.Send(ctx, "sender-1", "receiver-1", "team-1", "first"); err != nil {
		t.Fatalf("first Send: %v", err)
	}
	_, err := svc.Send(ctx, "sender-1", "receiver-1", "team-1", "second")
	if !errors.Is(err, ErrDuplicatePendingInvitation) {
		t.Fatalf("second Send err = %v, want ErrDuplicatePendingInvitation", err)
	}
}

func TestSendAllowsNewInvitationAfterRejection(t *testing.T) {
	svc, _, _, _ := newInvitationFixture()
	ctx := context.Background()

	inv, err := svc.Send(ctx, "sender-1", "receiver-1", "team-1", "first")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if _, err := svc.Reject(ctx, inv.ID, "receiver-1"); err != nil {
		t.Fatalf("Reject: %v", err)
	}

	// Only PENDING rows block re-invites.
	if _, err := svc.Send(ctx, "sender-1", "receiver-1", "team-1", "again"); err != nil {
		t.Fatalf("Send after rejection: %v", err)
	}
}

func TestSendUnknownReceiver(t *testing.T) {
	svc, _, _, _ := newInvitationFixture()

	_, err := svc.Send(context.Background(), "sender-1", "ghost", "team-1", "")
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}
}

func TestSendUnknownTeam(t *testing.T) {
	svc, _, _, _ := newInvitationFixture()

	_, err := svc.Send(context.Background(), "sender-1", "receiver-1", "ghost", "")
	if !errors.Is(err, ErrTeamNotFound) {
		t.Fatalf("err = %v, want ErrTeamNotFound", err)
	}
}

func TestSendToExistingMember(t *testing.T) {
	svc, _, teamRepo, _ := newInvitationFixture()
	teamRepo.members["team-1:receiver-1"] = true

	_, err := svc.Send(context.Background(), "sender-1", "receiver-1", "team-1", "")
	if !errors.Is(err, ErrAlreadyMember) {
		t.Fatalf("err = %v, want ErrAlreadyMember", err)
	}
}

func TestSendToSelf(t *testing.T) {
	svc, _, _, _ := newInvitationFixture()

	if _, err := svc.Send(context.Background(), "sender-1", "sender-1", "team-1", ""); err == nil {
		t.Fatal("self-invite succeeded")
	}
}

func TestSendSucceedsWhenEnqueueFails(t *testing.T) {
	svc, invRepo, _, q := newInvitationFixture()
	q.enqueueErr = errors.New("redis down")

	inv, err := svc.Send(context.Background(), "sender-1", "receiver-1", "team-1", "")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if invRepo.invitations[inv.ID] == nil {
		t.Fatal("invitation row not persisted")
	}
}

func TestAcceptTransitionsAndAddsMember(t *testing.T) {
	svc, _, teamRepo, q := newInvitationFixture()
	ctx := context.Background()

	inv, err := svc.Send(ctx, "sender-1", "receiver-1", "team-1", "")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	accepted, err := svc.Accept(ctx, inv.ID, "receiver-1")
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if accepted.Status != repository.InvitationStatusAccepted {
		t.Fatalf("status = %s, want ACCEPTED", accepted.Status)
	}
	if !teamRepo.members["team-1:receiver-1"] {
		t.Fatal("receiver not added to team")
	}

	if len(q.jobs) != 2 {
		t.Fatalf("enqueued %d jobs, want 2", len(q.jobs))
	}
	updated := q.jobs[1]
	if updated.Type != queue.JobSendInvitationUpdated {
		t.Fatalf("second job type = %s", updated.Type)
	}
	if updated.Payload.Status != string(repository.InvitationStatusAccepted) {
		t.Fatalf("second job status = %s", updated.Payload.Status)
	}
}

func TestAcceptTwiceIsANoOp(t *testing.T) {
	svc, _, _, q := newInvitationFixture()
	ctx := context.Background()

	inv, err := svc.Send(ctx, "sender-1", "receiver-1", "team-1", "")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if _, err := svc.Accept(ctx, inv.ID, "receiver-1"); err != nil {
		t.Fatalf("first Accept: %v", err)
	}

	again, err := svc.Accept(ctx, inv.ID, "receiver-1")
	if err != nil {
		t.Fatalf("second Accept: %v", err)
	}
	if again.Status != repository.InvitationStatusAccepted {
		t.Fatalf("status = %s after repeat accept", again.Status)
	}
	// Send + first accept only: the repeat must not enqueue.
	if len(q.jobs) != 2 {
		t.Fatalf("enqueued %d jobs, want 2", len(q.jobs))
	}
}

func TestAcceptMembershipFailureLeavesStatusPending(t *testing.T) {
	svc, invRepo, teamRepo, q := newInvitationFixture()
	ctx := context.Background()

	inv, err := svc.Send(ctx, "sender-1", "receiver-1", "team-1", "")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	teamRepo.addMemberErr = errors.New("insert failed")
	if _, err := svc.Accept(ctx, inv.ID, "receiver-1"); err == nil {
		t.Fatal("Accept succeeded despite membership insert failure")
	}

	if invRepo.invitations[inv.ID].Status != repository.InvitationStatusPending {
		t.Fatalf("status = %s after rolled-back accept, want PENDING", invRepo.invitations[inv.ID].Status)
	}
	if teamRepo.members["team-1:receiver-1"] {
		t.Fatal("membership row exists after rolled-back accept")
	}
	if len(q.jobs) != 1 {
		t.Fatalf("enqueued %d jobs, want 1 (the send only)", len(q.jobs))
	}

	// The invitation stayed PENDING, so a retry can still succeed.
	teamRepo.addMemberErr = nil
	accepted, err := svc.Accept(ctx, inv.ID, "receiver-1")
	if err != nil {
		t.Fatalf("retried Accept: %v", err)
	}
	if accepted.Status != repository.InvitationStatusAccepted {
		t.Fatalf("status = %s after retry, want ACCEPTED", accepted.Status)
	}
}

func TestAcceptUnknownInvitation(t *testing.T) {
	svc, _, _, _ := newInvitationFixture()

	_, err := svc.Accept(context.Background(), "missing", "receiver-1")
	if !errors.Is(err, ErrInvitationNotFound) {
		t.Fatalf("err = %v, want ErrInvitationNotFound", err)
	}
}

func TestRejectTransitionsWithoutMembership(t *testing.T) {
	svc, _, teamRepo, q := newInvitationFixture()
	ctx := context.Background()

	inv, err := svc.Send(ctx, "sender-1", "receiver-1", "team-1", "")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	rejected, err := svc.Reject(ctx, inv.ID, "receiver-1")
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if rejected.Status != repository.InvitationStatusRejected {
		t.Fatalf("status = %s, want REJECTED", rejected.Status)
	}
	if teamRepo.members["team-1:receiver-1"] {
		t.Fatal("rejection added the receiver to the team")
	}
	if len(q.jobs) != 2 || q.jobs[1].Type != queue.JobSendInvitationUpdated {
		t.Fatalf("jobs after reject = %+v", q.jobs)
	}
}

func TestDeleteUnknownInvitation(t *testing.T) {
	svc, _, _, _ := newInvitationFixture()

	err := svc.Delete(context.Background(), "missing", "sender-1")
	if !errors.Is(err, ErrInvitationNotFound) {
		t.Fatalf("err = %v, want ErrInvitationNotFound", err)
	}
}

func TestAcceptByNonReceiverIsDenied(t *testing.T) {
	svc, invRepo, teamRepo, q := newInvitationFixture()
	ctx := context.Background()

	inv, err := svc.Send(ctx, "sender-1", "receiver-1", "team-1", "")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	// Neither the sender nor a bystander can accept on the receiver's behalf.
	for _, caller := range []string{"sender-1", "bystander"} {
		_, err := svc.Accept(ctx, inv.ID, caller)
		if !errors.Is(err, ErrInvitationNotFound) {
			t.Fatalf("Accept by %s err = %v, want ErrInvitationNotFound", caller, err)
		}
	}

	if invRepo.invitations[inv.ID].Status != repository.InvitationStatusPending {
		t.Fatal("denied accept changed the invitation status")
	}
	if teamRepo.members["team-1:receiver-1"] {
		t.Fatal("denied accept added the receiver to the team")
	}
	if len(q.jobs) != 1 {
		t.Fatalf("enqueued %d jobs, want 1 (the send only)", len(q.jobs))
	}
}

func TestRejectByNonReceiverIsDenied(t *testing.T) {
	svc, invRepo, _, _ := newInvitationFixture()
	ctx := context.Background()

	inv, err := svc.Send(ctx, "sender-1", "receiver-1", "team-1", "")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	_, err = svc.Reject(ctx, inv.ID, "sender-1")
	if !errors.Is(err, ErrInvitationNotFound) {
		t.Fatalf("err = %v, want ErrInvitationNotFound", err)
	}
	if invRepo.invitations[inv.ID].Status != repository.InvitationStatusPending {
		t.Fatal("denied reject changed the invitation status")
	}
}

func TestDeleteAllowedForSenderAndReceiverOnly(t *testing.T) {
	svc, invRepo, _, _ := newInvitationFixture()
	ctx := context.Background()

	inv, err := svc.Send(ctx, "sender-1", "receiver-1", "team-1", "")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	err = svc.Delete(ctx, inv.ID, "bystander")
	if !errors.Is(err, ErrInvitationNotFound) {
		t.Fatalf("Delete by bystander err = %v, want ErrInvitationNotFound", err)
	}
	if invRepo.invitations[inv.ID] == nil {
		t.Fatal("denied delete removed the invitation")
	}

	if err := svc.Delete(ctx, inv.ID, "sender-1"); err != nil {
		t.Fatalf("Delete by sender: %v", err)
	}

	inv2, err := svc.Send(ctx, "sender-1", "receiver-1", "team-1", "")
	if err != nil {
		t.Fatalf("second Send: %v", err)
	}
	if err := svc.Delete(ctx, inv2.ID, "receiver-1"); err != nil {
		t.Fatalf("Delete by receiver: %v", err)
	}
}
