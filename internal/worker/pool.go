package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Adjaraux/academy-backend/internal/services"
)

const lockRecomputeQueue = "queue:lock-recompute"

// Pool drains the lock-recompute queue. A completion toggle enqueues one job
// per (learner, course); the worker rebuilds the lock map, diffs it against
// the previous snapshot, and pushes a lesson_unlocked event for every lesson
// that just opened up. Keeping the recompute off the request path means the
// completion endpoint stays fast even on long courses.
type Pool struct {
	redis       *redis.Client
	lockState   *services.LockStateService
	events      *services.EventPublisher
	workerCount int
	stopChan    chan struct{}
}

func NewPool(
	redisClient *redis.Client,
	lockState *services.LockStateService,
	events *services.EventPublisher,
	workerCount int,
) *Pool {
	return &Pool{
		redis:       redisClient,
		lockState:   lockState,
		events:      events,
		workerCount: workerCount,
		stopChan:    make(chan struct{}),
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		go p.worker(i)
	}

	log.Printf("Started %d worker goroutines", p.workerCount)
}

func (p *Pool) Stop() {
	close(p.stopChan)
}

func (p *Pool) worker(id int) {
	for {
		select {
		case <-p.stopChan:
			log.Printf("Worker %d shutting down", id)
			return
		default:
		}

		ctx := context.Background()

		// BLPOP with 30s timeout
		result, err := p.redis.BLPop(ctx, 30*time.Second, lockRecomputeQueue).Result()
		if err != nil {
			continue // Timeout or error, retry
		}

		if len(result) < 2 {
			continue
		}

		var job services.LockRecomputeJob
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			log.Printf("Worker %d: failed to parse job: %v", id, err)
			continue
		}

		// Coalesce: when a learner completes lessons in a burst, only one
		// worker recomputes per (learner, course) at a time.
		lockKey := fmt.Sprintf("recompute_lock:%s:%s", job.UserID, job.CourseID)
		locked, err := p.redis.SetNX(ctx, lockKey, "1", time.Minute).Result()
		if err != nil || !locked {
			continue
		}

		if err := p.process(ctx, &job); err != nil {
			log.Printf("Worker %d: lock recompute failed for user %s course %s: %v", id, job.UserID, job.CourseID, err)
		}

		p.redis.Del(ctx, lockKey)
	}
}

func (p *Pool) process(ctx context.Context, job *services.LockRecomputeJob) error {
	prev := p.loadSnapshot(ctx, job.UserID, job.CourseID)

	locks, err := p.lockState.Recompute(ctx, job.UserID, job.CourseID)
	if err != nil {
		return err
	}

	for lessonID, isLocked := range locks {
		if isLocked {
			continue
		}
		// Only announce locked→unlocked transitions; the first run has no
		// snapshot to diff against and stays silent.
		if prev == nil || !prev[lessonID] {
			continue
		}
		lid := lessonID
		cid := job.CourseID
		p.events.Publish(ctx, job.UserID, services.LearnerEvent{
			Type:     services.EventLessonUnlocked,
			CourseID: &cid,
			LessonID: &lid,
		})
		log.Printf("Lesson %s unlocked for user %s", lessonID, job.UserID)
	}

	p.saveSnapshot(ctx, job.UserID, job.CourseID, locks)
	return nil
}

func snapshotKey(userID, courseID uuid.UUID) string {
	return fmt.Sprintf("lock_snapshot:%s:%s", userID, courseID)
}

func (p *Pool) loadSnapshot(ctx context.Context, userID, courseID uuid.UUID) map[uuid.UUID]bool {
	data, err := p.redis.Get(ctx, snapshotKey(userID, courseID)).Bytes()
	if err != nil {
		return nil
	}
	var snap map[uuid.UUID]bool
	if json.Unmarshal(data, &snap) != nil {
		return nil
	}
	return snap
}

func (p *Pool) saveSnapshot(ctx context.Context, userID, courseID uuid.UUID, locks map[uuid.UUID]bool) {
	data, err := json.Marshal(locks)
	if err != nil {
		return
	}
	if err := p.redis.Set(ctx, snapshotKey(userID, courseID), data, 0).Err(); err != nil {
		log.Printf("failed to save lock snapshot for user %s: %v", userID, err)
	}
}
