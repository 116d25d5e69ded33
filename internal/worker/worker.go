// Package worker runs the background consumers that drain the delivery
// queue and perform the actual side effects: send the email, persist the
// notification row, hand it to the realtime gateway.
package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/teamloop/teamloop-backend/internal/email"
	"github.com/teamloop/teamloop-backend/internal/queue"
	"github.com/teamloop/teamloop-backend/internal/repository"
	"github.com/teamloop/teamloop-backend/internal/service"
)

// Mailer is the mail transport contract. Sends are fire-and-forget with
// respect to job success: a mail failure is logged, never retried here.
type Mailer interface {
	SendTeamInvitation(to string, data email.TeamInvitationData) error
	SendInvitationStatus(to string, data email.InvitationStatusData) error
}

// Notifier persists a notification row and pushes it to live connections.
// Implemented by notification.Service.
type Notifier interface {
	SendInvitationCreated(ctx context.Context, receiverID, invitationID, senderName, teamName string) (*repository.Notification, error)
	SendInvitationUpdated(ctx context.Context, senderID, invitationID, receiverName, teamName string, status repository.InvitationStatus) (*repository.Notification, error)
}

// Worker drains the delivery queue. Multiple workers may run concurrently;
// they share no state except the queue and the stores. A job is acked even
// when its side effects fail — redelivering a job whose failure is not
// transient queue infrastructure would only loop a poison job. Crash-mid-job
// redelivery comes from the queue's visibility timeout instead.
type Worker struct {
	id          int
	queue       queue.Queue
	userRepo    repository.UserRepository
	teamRepo    repository.TeamRepository
	notifier    Notifier
	mailer      Mailer
	frontendURL string
}

func New(
	id int,
	q queue.Queue,
	userRepo repository.UserRepository,
	teamRepo repository.TeamRepository,
	notifier Notifier,
	mailer Mailer,
	frontendURL string,
) *Worker {
	return &Worker{
		id:          id,
		queue:       q,
		userRepo:    userRepo,
		teamRepo:    teamRepo,
		notifier:    notifier,
		mailer:      mailer,
		frontendURL: frontendURL,
	}
}

// Run blocks on the queue until the context is cancelled. In-flight jobs
// finish; jobs lost to a killed process are redelivered by the queue.
func (w *Worker) Run(ctx context.Context) {
	log.Printf("[Worker %d] Started", w.id)

	for {
		delivery, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Printf("[Worker %d] Stopped", w.id)
				return
			}
			log.Printf("[Worker %d] Dequeue error: %v", w.id, err)
			time.Sleep(time.Second)
			continue
		}

		if err := w.handleJob(ctx, delivery.Job); err != nil {
			log.Printf("[Worker %d] Job %s failed: %v", w.id, delivery.Job.Type, err)
		}

		if err := delivery.Ack(ctx); err != nil {
			log.Printf("[Worker %d] Ack failed for job %s: %v", w.id, delivery.Job.Type, err)
		}
	}
}

func (w *Worker) handleJob(ctx context.Context, job queue.Job) error {
	switch job.Type {
	case queue.JobSendInvitationCreated:
		return w.handleInvitationCreated(ctx, job.Payload)
	case queue.JobSendInvitationUpdated:
		return w.handleInvitationUpdated(ctx, job.Payload)
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

// handleInvitationCreated notifies the receiver that they were invited.
func (w *Worker) handleInvitationCreated(ctx context.Context, p queue.Payload) error {
	sender, receiver, team, err := w.resolve(ctx, p)
	if err != nil {
		return err
	}

	if err := w.mailInvitationCreated(sender, receiver, team, p); err != nil {
		// Mail is a side channel of a side channel: the notification
		// row below is still written.
		log.Printf("[Worker %d] %v", w.id, err)
	}

	if _, err := w.notifier.SendInvitationCreated(ctx, receiver.ID, p.InvitationID, sender.Name, team.Name); err != nil {
		return err
	}
	return nil
}

// handleInvitationUpdated notifies the sender of the receiver's decision.
func (w *Worker) handleInvitationUpdated(ctx context.Context, p queue.Payload) error {
	sender, receiver, team, err := w.resolve(ctx, p)
	if err != nil {
		return err
	}

	status := repository.InvitationStatus(p.Status)
	statusText := "accepted"
	if status == repository.InvitationStatusRejected {
		statusText = "rejected"
	}

	if err := w.mailInvitationUpdated(sender, receiver, team, statusText, p); err != nil {
		log.Printf("[Worker %d] %v", w.id, err)
	}

	if _, err := w.notifier.SendInvitationUpdated(ctx, sender.ID, p.InvitationID, receiver.Name, team.Name, status); err != nil {
		return err
	}
	return nil
}

// mailInvitationCreated mails the receiver. A failure is a typed
// service.ErrDeliveryChannelFailure so discarding it is deliberate.
func (w *Worker) mailInvitationCreated(sender, receiver *repository.User, team *repository.Team, p queue.Payload) error {
	if w.mailer == nil {
		return nil
	}
	err := w.mailer.SendTeamInvitation(receiver.Email, email.TeamInvitationData{
		InviterName: sender.Name,
		TeamName:    team.Name,
		Message:     p.Text,
		InviteURL:   fmt.Sprintf("%s/invitations", w.frontendURL),
	})
	if err != nil {
		return fmt.Errorf("%w: mail for invitation %s: %v", service.ErrDeliveryChannelFailure, p.InvitationID, err)
	}
	return nil
}

// mailInvitationUpdated mails the sender the receiver's decision.
func (w *Worker) mailInvitationUpdated(sender, receiver *repository.User, team *repository.Team, statusText string, p queue.Payload) error {
	if w.mailer == nil {
		return nil
	}
	err := w.mailer.SendInvitationStatus(sender.Email, email.InvitationStatusData{
		ReceiverName: receiver.Name,
		TeamName:     team.Name,
		StatusText:   statusText,
		TeamURL:      fmt.Sprintf("%s/teams/%s", w.frontendURL, team.ID),
	})
	if err != nil {
		return fmt.Errorf("%w: mail for invitation %s: %v", service.ErrDeliveryChannelFailure, p.InvitationID, err)
	}
	return nil
}

func (w *Worker) resolve(ctx context.Context, p queue.Payload) (sender, receiver *repository.User, team *repository.Team, err error) {
	sender, err = w.userRepo.FindByID(ctx, p.SenderID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("find sender: %w", err)
	}
	if sender == nil {
		return nil, nil, nil, fmt.Errorf("sender %s not found", p.SenderID)
	}

	receiver, err = w.userRepo.FindByID(ctx, p.ReceiverID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("find receiver: %w", err)
	}
	if receiver == nil {
		return nil, nil, nil, fmt.Errorf("receiver %s not found", p.ReceiverID)
	}

	team, err = w.teamRepo.FindByID(ctx, p.TeamID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("find team: %w", err)
	}
	if team == nil {
		return nil, nil, nil, fmt.Errorf("team %s not found", p.TeamID)
	}

	return sender, receiver, team, nil
}
