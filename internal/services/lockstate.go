package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Adjaraux/academy-backend/internal/repository"
)

const lockStateCacheTTL = 10 * time.Minute

// LockStateService is the single authority on which lessons a learner may
// enter: a lesson is locked until every lesson before it in the course's
// flattened linear order is completed. Results are cached per (learner,
// course) in redis and invalidated after every completion toggle; clients
// and the navigation controller only ever reflect this map, never infer it.
type LockStateService struct {
	courseRepo   *repository.CourseRepo
	progressRepo *repository.ProgressRepo
	redis        *redis.Client
}

func NewLockStateService(courseRepo *repository.CourseRepo, progressRepo *repository.ProgressRepo, redisClient *redis.Client) *LockStateService {
	return &LockStateService{
		courseRepo:   courseRepo,
		progressRepo: progressRepo,
		redis:        redisClient,
	}
}

func lockStateKey(userID, courseID uuid.UUID) string {
	return fmt.Sprintf("lock_state:%s:%s", userID, courseID)
}

// LockState returns lessonID → isLocked for one learner over one course.
func (s *LockStateService) LockState(ctx context.Context, userID, courseID uuid.UUID) (map[uuid.UUID]bool, error) {
	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, lockStateKey(userID, courseID)).Bytes(); err == nil {
			var locks map[uuid.UUID]bool
			if json.Unmarshal(cached, &locks) == nil {
				return locks, nil
			}
		}
	}
	return s.Recompute(ctx, userID, courseID)
}

// Recompute rebuilds the lock map from the flattened lesson order and the
// learner's completed set, refreshing the cache.
func (s *LockStateService) Recompute(ctx context.Context, userID, courseID uuid.UUID) (map[uuid.UUID]bool, error) {
	lessons, err := s.courseRepo.FlattenedLessons(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("flatten lessons: %w", err)
	}
	completed, err := s.progressRepo.CompletedLessons(ctx, userID, courseID)
	if err != nil {
		return nil, fmt.Errorf("load completed lessons: %w", err)
	}

	locks := make(map[uuid.UUID]bool, len(lessons))
	allPriorComplete := true
	for _, l := range lessons {
		locks[l.ID] = !allPriorComplete
		if !completed[l.ID] {
			allPriorComplete = false
		}
	}

	if s.redis != nil {
		if data, err := json.Marshal(locks); err == nil {
			if err := s.redis.Set(ctx, lockStateKey(userID, courseID), data, lockStateCacheTTL).Err(); err != nil {
				log.Printf("lock state: cache write failed for user %s: %v", userID, err)
			}
		}
	}
	return locks, nil
}

// Invalidate drops the cached map after a completion toggle so the next
// read recomputes.
func (s *LockStateService) Invalidate(ctx context.Context, userID, courseID uuid.UUID) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, lockStateKey(userID, courseID)).Err(); err != nil {
		log.Printf("lock state: cache invalidation failed for user %s: %v", userID, err)
	}
}
