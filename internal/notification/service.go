// Package notification persists per-user notification records and pushes
// them to live connections. The persisted row is the system of record; the
// push is best-effort and its failure is never surfaced to the action that
// triggered the notification.
package notification

import (
	"context"
	"fmt"
	"log"

	"github.com/teamloop/teamloop-backend/internal/repository"
	"github.com/teamloop/teamloop-backend/internal/service"
)

// Title tags. The tag prefix tells a client how to resolve the payload: the
// id embedded after the separator references the invitation to fetch.
const (
	TagNewInvitation     = "NEW_INVITATION"
	TagInvitationUpdated = "INVITATION_UPDATED"
)

// Title builds a typed notification title, suffixing the correlation id
// when one exists, e.g. "NEW_INVITATION-<invitationId>".
func Title(tag, correlationID string) string {
	if correlationID == "" {
		return tag
	}
	return tag + "-" + correlationID
}

// Pusher is the realtime gateway contract the service needs. Implemented by
// socket.Broadcaster; substituted in tests.
type Pusher interface {
	SendNotification(userID string, notification map[string]interface{})
	SendNotificationCount(userID string, total, unread int)
}

// Service handles creating, pushing and reading notifications.
type Service struct {
	repo   repository.NotificationRepository
	pusher Pusher
}

func NewService(repo repository.NotificationRepository) *Service {
	return &Service{repo: repo}
}

// SetPusher wires the realtime gateway. Without one, notifications are
// persisted but not pushed.
func (s *Service) SetPusher(p Pusher) {
	s.pusher = p
}

// SendInvitationCreated notifies the receiver of a new invitation.
func (s *Service) SendInvitationCreated(ctx context.Context, receiverID, invitationID, senderName, teamName string) (*repository.Notification, error) {
	n := &repository.Notification{
		UserID:  receiverID,
		Title:   Title(TagNewInvitation, invitationID),
		Message: fmt.Sprintf("%s invited you to join the team %s", senderName, teamName),
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}

	s.push(ctx, n)
	return n, nil
}

// SendInvitationUpdated notifies the sender that the receiver accepted or
// rejected their invitation.
func (s *Service) SendInvitationUpdated(ctx context.Context, senderID, invitationID, receiverName, teamName string, status repository.InvitationStatus) (*repository.Notification, error) {
	verb := "accepted"
	if status == repository.InvitationStatusRejected {
		verb = "rejected"
	}

	n := &repository.Notification{
		UserID:  senderID,
		Title:   Title(TagInvitationUpdated, invitationID),
		Message: fmt.Sprintf("%s %s your invitation to join %s", receiverName, verb, teamName),
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}

	s.push(ctx, n)
	return n, nil
}

// push hands a persisted notification to the realtime gateway. A user with
// no live connection simply sees nothing; the row is already durable.
func (s *Service) push(ctx context.Context, n *repository.Notification) {
	if s.pusher == nil {
		return
	}

	s.pusher.SendNotification(n.UserID, map[string]interface{}{
		"id":        n.ID,
		"title":     n.Title,
		"message":   n.Message,
		"read":      n.Read,
		"createdAt": n.CreatedAt,
	})

	total, unread, err := s.repo.CountByUserID(ctx, n.UserID)
	if err != nil {
		log.Printf("[Notification] %v", fmt.Errorf("%w: count push for user %s: %v",
			service.ErrDeliveryChannelFailure, n.UserID, err))
		return
	}
	s.pusher.SendNotificationCount(n.UserID, total, unread)
}

// List returns a page of a user's notifications, newest first.
func (s *Service) List(ctx context.Context, userID string, unreadOnly bool, page, pageSize int) ([]*repository.Notification, error) {
	if pageSize <= 0 {
		pageSize = 50
	}
	if page <= 0 {
		page = 1
	}
	return s.repo.FindByUserID(ctx, userID, unreadOnly, pageSize, (page-1)*pageSize)
}

// Count returns total and unread notification counts for a user.
func (s *Service) Count(ctx context.Context, userID string) (total int, unread int, err error) {
	return s.repo.CountByUserID(ctx, userID)
}

// MarkRead flips a notification's read flag. The returned bool reports
// whether a row belonging to the user was found.
func (s *Service) MarkRead(ctx context.Context, id, userID string) (bool, error) {
	found, err := s.repo.MarkAsRead(ctx, id, userID)
	if err != nil || !found {
		return found, err
	}

	if s.pusher != nil {
		if total, unread, err := s.repo.CountByUserID(ctx, userID); err == nil {
			s.pusher.SendNotificationCount(userID, total, unread)
		}
	}
	return true, nil
}

// MarkAllRead flips every unread notification of a user.
func (s *Service) MarkAllRead(ctx context.Context, userID string) error {
	if err := s.repo.MarkAllAsRead(ctx, userID); err != nil {
		return err
	}

	if s.pusher != nil {
		if total, unread, err := s.repo.CountByUserID(ctx, userID); err == nil {
			s.pusher.SendNotificationCount(userID, total, unread)
		}
	}
	return nil
}
