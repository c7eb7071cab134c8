package services

import (
	"context"
	"log"
	"time"

	"github.com/Adjaraux/academy-backend/internal/repository"
)

const (
	expirySweepInterval = 30 * time.Second
	expirySweepBatch    = 50
)

// ExpirySweeper is the authoritative enforcement of attempt deadlines. The
// client's countdown auto-submit is best effort; this sweep force-submits
// any timed attempt that outlived its allotment, with whatever answers were
// saved.
type ExpirySweeper struct {
	attemptRepo *repository.AttemptRepo
	attempts    *AttemptService
	events      *EventPublisher
	stopChan    chan struct{}
}

func NewExpirySweeper(attemptRepo *repository.AttemptRepo, attempts *AttemptService, events *EventPublisher) *ExpirySweeper {
	return &ExpirySweeper{
		attemptRepo: attemptRepo,
		attempts:    attempts,
		events:      events,
		stopChan:    make(chan struct{}),
	}
}

func (s *ExpirySweeper) Start() {
	go s.loop()
	log.Printf("Attempt expiry sweeper started")
}

func (s *ExpirySweeper) Stop() {
	select {
	case <-s.stopChan:
		return
	default:
		close(s.stopChan)
	}
}

func (s *ExpirySweeper) loop() {
	s.Sweep(context.Background())

	ticker := time.NewTicker(expirySweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.Sweep(context.Background())
		}
	}
}

// Sweep closes one batch of overdue attempts.
func (s *ExpirySweeper) Sweep(ctx context.Context) {
	overdue, err := s.attemptRepo.ListOverdue(ctx, expirySweepBatch)
	if err != nil {
		log.Printf("expiry sweep: failed to list overdue attempts: %v", err)
		return
	}

	for _, attempt := range overdue {
		resp, err := s.attempts.ExpireAttempt(ctx, attempt)
		if err != nil {
			log.Printf("expiry sweep: failed to close attempt %s: %v", attempt.ID, err)
			continue
		}
		log.Printf("expiry sweep: closed attempt %s (deadline %s, score %.1f)",
			attempt.ID, attemptDeadline(attempt).Format(time.RFC3339), resp.ScorePercent)

		s.events.Publish(ctx, attempt.UserID, LearnerEvent{
			Type:     EventAttemptExpired,
			LessonID: &attempt.LessonID,
			Payload:  resp,
		})
	}
}
