// Package queue provides the durable delivery queue decoupling invitation
// state changes from the slow delivery channels (mail, realtime push).
// Delivery is at-least-once: consumers must tolerate duplicates.
package queue

import "context"

// JobType identifies the kind of delivery work a job carries.
type JobType string

const (
	JobSendInvitationCreated JobType = "send_invitation_created"
	JobSendInvitationUpdated JobType = "send_invitation_updated"
)

// Payload carries the identifiers a worker needs to resolve the event.
type Payload struct {
	InvitationID string `json:"invitation_id"`
	SenderID     string `json:"sender_id"`
	ReceiverID   string `json:"receiver_id"`
	TeamID       string `json:"team_id"`
	Status       string `json:"status,omitempty"`
	Text         string `json:"text,omitempty"`
}

// Job is a queue-resident delivery job. Jobs are enqueued only after the
// triggering row has committed, so a job never references an invitation
// that does not exist yet.
type Job struct {
	Type    JobType `json:"type"`
	Payload Payload `json:"payload"`
}

// Delivery is a dequeued job plus its acknowledgement handles. A delivery
// that is neither acked nor nacked is redelivered once its visibility
// timeout expires.
type Delivery struct {
	Job  Job
	Ack  func(ctx context.Context) error
	Nack func(ctx context.Context) error
}

// Queue is the delivery queue contract. Dequeue blocks until a job is
// available or the context is cancelled.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Dequeue(ctx context.Context) (*Delivery, error)

	// ReclaimExpired moves jobs whose visibility timeout has lapsed back
	// onto the ready queue and reports how many were requeued.
	ReclaimExpired(ctx context.Context) (int, error)
}
