package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/teamloop/teamloop-backend/internal/email"
	"github.com/teamloop/teamloop-backend/internal/queue"
	"github.com/teamloop/teamloop-backend/internal/repository"
	"github.com/teamloop/teamloop-backend/internal/service"
)

type fakeUserRepo struct {
	users map[string]*repository.User
}

func (f *fakeUserRepo) Create(ctx context.Context, u *repository.User) error { return nil }

func (f *fakeUserRepo) FindByID(ctx context.Context, id string) (*repository.User, error) {
	return f.users[id], nil
}

func (f *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*repository.User, error) {
	return nil, nil
}

type fakeTeamRepo struct {
	teams map[string]*repository.Team
}

func (f *fakeTeamRepo) Create(ctx context.Context, t *repository.Team) error { return nil }

func (f *fakeTeamRepo) FindByID(ctx context.Context, id string) (*repository.Team, error) {
	return f.teams[id], nil
}

func (f *fakeTeamRepo) FindByUserID(ctx context.Context, userID string) ([]*repository.Team, error) {
	return nil, nil
}

func (f *fakeTeamRepo) AddMember(ctx context.Context, m *repository.TeamMember) (bool, error) {
	return true, nil
}

func (f *fakeTeamRepo) FindMember(ctx context.Context, teamID, userID string) (*repository.TeamMember, error) {
	return nil, nil
}

func (f *fakeTeamRepo) FindMembers(ctx context.Context, teamID string) ([]*repository.TeamMember, error) {
	return nil, nil
}

func (f *fakeTeamRepo) UpdateMemberRole(ctx context.Context, teamID, userID, role string) (bool, error) {
	return false, nil
}

func (f *fakeTeamRepo) RemoveMember(ctx context.Context, teamID, userID string) (bool, error) {
	return false, nil
}

func (f *fakeTeamRepo) IsMember(ctx context.Context, teamID, userID string) (bool, error) {
	return false, nil
}

type notifierCall struct {
	kind         string
	userID       string
	invitationID string
}

type fakeNotifier struct {
	calls chan notifierCall
}

func (f *fakeNotifier) SendInvitationCreated(ctx context.Context, receiverID, invitationID, senderName, teamName string) (*repository.Notification, error) {
	f.calls <- notifierCall{kind: "created", userID: receiverID, invitationID: invitationID}
	return &repository.Notification{}, nil
}

func (f *fakeNotifier) SendInvitationUpdated(ctx context.Context, senderID, invitationID, receiverName, teamName string, status repository.InvitationStatus) (*repository.Notification, error) {
	f.calls <- notifierCall{kind: "updated", userID: senderID, invitationID: invitationID}
	return &repository.Notification{}, nil
}

type fakeMailer struct {
	sent    []string
	sendErr error
}

func (f *fakeMailer) SendTeamInvitation(to string, data email.TeamInvitationData) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, to)
	return nil
}

func (f *fakeMailer) SendInvitationStatus(to string, data email.InvitationStatusData) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, to)
	return nil
}

func newWorkerFixture(q queue.Queue, mailer Mailer) (*Worker, *fakeNotifier) {
	users := &fakeUserRepo{users: map[string]*repository.User{
		"sender-1":   {ID: "sender-1", Name: "Asha", Email: "asha@teamloop.app"},
		"receiver-1": {ID: "receiver-1", Name: "Sunita", Email: "sunita@teamloop.app"},
	}}
	teams := &fakeTeamRepo{teams: map[string]*repository.Team{
		"team-1": {ID: "team-1", Name: "Product"},
	}}
	notifier := &fakeNotifier{calls: make(chan notifierCall, 8)}
	return New(1, q, users, teams, notifier, mailer, "http://localhost:3000"), notifier
}

func createdJob() queue.Job {
	return queue.Job{
		Type: queue.JobSendInvitationCreated,
		Payload: queue.Payload{
			InvitationID: "inv-1",
			SenderID:     "sender-1",
			ReceiverID:   "receiver-1",
			TeamID:       "team-1",
		},
	}
}

func TestWorkerProcessesCreatedJob(t *testing.T) {
	q := queue.NewMemoryQueue(time.Minute)
	mailer := &fakeMailer{}
	w, notifier := newWorkerFixture(q, mailer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	if err := q.Enqueue(ctx, createdJob()); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	select {
	case call := <-notifier.calls:
		if call.kind != "created" || call.userID != "receiver-1" || call.invitationID != "inv-1" {
			t.Fatalf("notifier call = %+v", call)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("worker never handled the job")
	}

	if len(mailer.sent) != 1 || mailer.sent[0] != "sunita@teamloop.app" {
		t.Fatalf("mail sent to %v, want the receiver", mailer.sent)
	}
}

func TestWorkerAcksJob(t *testing.T) {
	q := queue.NewMemoryQueue(time.Millisecond)
	w, notifier := newWorkerFixture(q, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	if err := q.Enqueue(ctx, createdJob()); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	<-notifier.calls

	// Give the ack a moment, then verify nothing is left to reclaim.
	time.Sleep(50 * time.Millisecond)
	n, err := q.ReclaimExpired(context.Background())
	if err != nil {
		t.Fatalf("ReclaimExpired: %v", err)
	}
	if n != 0 {
		t.Fatalf("reclaimed %d deliveries after ack, want 0", n)
	}
}

func TestWorkerUpdatedJobNotifiesSender(t *testing.T) {
	q := queue.NewMemoryQueue(time.Minute)
	mailer := &fakeMailer{}
	w, notifier := newWorkerFixture(q, mailer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	job := createdJob()
	job.Type = queue.JobSendInvitationUpdated
	job.Payload.Status = string(repository.InvitationStatusAccepted)
	if err := q.Enqueue(ctx, job); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	select {
	case call := <-notifier.calls:
		if call.kind != "updated" || call.userID != "sender-1" {
			t.Fatalf("notifier call = %+v", call)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("worker never handled the job")
	}

	if len(mailer.sent) != 1 || mailer.sent[0] != "asha@teamloop.app" {
		t.Fatalf("mail sent to %v, want the sender", mailer.sent)
	}
}

func TestWorkerToleratesMailFailure(t *testing.T) {
	q := queue.NewMemoryQueue(time.Minute)
	mailer := &fakeMailer{sendErr: errors.New("smtp down")}
	w, notifier := newWorkerFixture(q, mailer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	if err := q.Enqueue(ctx, createdJob()); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	// The notification must still be written when the mail bounces.
	select {
	case call := <-notifier.calls:
		if call.kind != "created" {
			t.Fatalf("notifier call = %+v", call)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("mail failure blocked the notification")
	}
}

func TestMailFailureIsTypedChannelFailure(t *testing.T) {
	mailer := &fakeMailer{sendErr: errors.New("smtp down")}
	w, _ := newWorkerFixture(queue.NewMemoryQueue(time.Minute), mailer)

	sender := &repository.User{ID: "sender-1", Name: "Asha", Email: "asha@teamloop.app"}
	receiver := &repository.User{ID: "receiver-1", Name: "Sunita", Email: "sunita@teamloop.app"}
	team := &repository.Team{ID: "team-1", Name: "Product"}
	p := queue.Payload{InvitationID: "inv-1"}

	if err := w.mailInvitationCreated(sender, receiver, team, p); !errors.Is(err, service.ErrDeliveryChannelFailure) {
		t.Fatalf("created mail err = %v, want ErrDeliveryChannelFailure", err)
	}
	if err := w.mailInvitationUpdated(sender, receiver, team, "accepted", p); !errors.Is(err, service.ErrDeliveryChannelFailure) {
		t.Fatalf("updated mail err = %v, want ErrDeliveryChannelFailure", err)
	}
}

func TestWorkerRejectsUnknownJobType(t *testing.T) {
	w, _ := newWorkerFixture(queue.NewMemoryQueue(time.Minute), nil)

	err := w.handleJob(context.Background(), queue.Job{Type: "unheard_of"})
	if err == nil {
		t.Fatal("unknown job type handled without error")
	}
}
