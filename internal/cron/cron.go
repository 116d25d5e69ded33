package cron

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/teamloop/teamloop-backend/internal/queue"
	"github.com/teamloop/teamloop-backend/internal/repository"
)

// Scheduler handles scheduled maintenance tasks
type Scheduler struct {
	cron      *cron.Cron
	queue     queue.Queue
	notifRepo repository.NotificationRepository
}

// NewScheduler creates a new scheduler
func NewScheduler(q queue.Queue, notifRepo repository.NotificationRepository) *Scheduler {
	return &Scheduler{
		cron:      cron.New(),
		queue:     q,
		notifRepo: notifRepo,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	// Run every minute - requeue deliveries whose worker died mid-job
	s.cron.AddFunc("* * * * *", func() {
		s.reclaimExpiredDeliveries()
	})

	// Run every day at midnight - prune old read notifications
	s.cron.AddFunc("0 0 * * *", func() {
		log.Println("[Cron] Running notification cleanup...")
		s.cleanupOldNotifications()
	})

	s.cron.Start()
	log.Println("[Cron] Scheduler started")
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("[Cron] Scheduler stopped")
}

func (s *Scheduler) reclaimExpiredDeliveries() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := s.queue.ReclaimExpired(ctx)
	if err != nil {
		log.Printf("[Cron] Failed to reclaim expired deliveries: %v", err)
		return
	}
	if n > 0 {
		log.Printf("[Cron] Requeued %d expired deliveries", n)
	}
}

func (s *Scheduler) cleanupOldNotifications() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := time.Now().AddDate(0, 0, -30)
	deleted, err := s.notifRepo.DeleteOlderThan(ctx, cutoff, true)
	if err != nil {
		log.Printf("[Cron] Failed to clean up notifications: %v", err)
		return
	}
	log.Printf("[Cron] Deleted %d old notifications", deleted)
}
