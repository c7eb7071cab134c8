package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Adjaraux/academy-backend/internal/models"
	"github.com/Adjaraux/academy-backend/internal/progress"
	"github.com/Adjaraux/academy-backend/internal/repository"
)

// heartbeatMinSeconds drops ticks from a player that has barely started;
// keeps accidental opens from writing resume points.
const heartbeatMinSeconds = 5.0

// CompletionService owns the persisted side of lesson progression: playback
// heartbeats, the completion toggle, and the course-wide completion check
// that follows it. The toggle re-validates the progression gate against
// persisted data; what the client's local gate showed is advisory only.
type CompletionService struct {
	progressRepo *repository.ProgressRepo
	courseRepo   *repository.CourseRepo
	questionRepo *repository.QuestionRepo
	attemptRepo  *repository.AttemptRepo
	lockState    *LockStateService
	events       *EventPublisher
	queue        *redis.Client
}

func NewCompletionService(
	progressRepo *repository.ProgressRepo,
	courseRepo *repository.CourseRepo,
	questionRepo *repository.QuestionRepo,
	attemptRepo *repository.AttemptRepo,
	lockState *LockStateService,
	events *EventPublisher,
	queue *redis.Client,
) *CompletionService {
	return &CompletionService{
		progressRepo: progressRepo,
		courseRepo:   courseRepo,
		questionRepo: questionRepo,
		attemptRepo:  attemptRepo,
		lockState:    lockState,
		events:       events,
		queue:        queue,
	}
}

// Heartbeat persists the learner's playback position. Regressions are
// clamped in SQL; ticks below the minimal elapsed threshold are ignored.
func (s *CompletionService) Heartbeat(ctx context.Context, userID, lessonID uuid.UUID, currentSeconds float64) error {
	if currentSeconds < heartbeatMinSeconds {
		return nil
	}
	lesson, err := s.courseRepo.GetLesson(ctx, lessonID)
	if err != nil {
		return &NotFoundError{Message: "Lesson not found"}
	}
	if lesson.DurationSeconds != nil && currentSeconds > float64(*lesson.DurationSeconds) {
		currentSeconds = float64(*lesson.DurationSeconds)
	}
	return s.progressRepo.Heartbeat(ctx, userID, lessonID, currentSeconds)
}

// GateStatus computes the authoritative gate verdict for a lesson from
// persisted state only.
func (s *CompletionService) GateStatus(ctx context.Context, userID uuid.UUID, lesson *models.Lesson) (progress.Verdict, error) {
	in, err := s.gateInputs(ctx, userID, lesson)
	if err != nil {
		return progress.Verdict{}, err
	}
	return progress.Evaluate(lesson.Type, in), nil
}

func (s *CompletionService) gateInputs(ctx context.Context, userID uuid.UUID, lesson *models.Lesson) (progress.GateInputs, error) {
	var in progress.GateInputs

	p, err := s.progressRepo.Get(ctx, userID, lesson.ID)
	if err != nil {
		return in, fmt.Errorf("load progress: %w", err)
	}
	in.AlreadyComplete = p.IsCompleted

	switch lesson.Type {
	case models.LessonVideo:
		if lesson.DurationSeconds != nil && *lesson.DurationSeconds > 0 {
			in.WatchedPercent = p.LastPlayedSecond / float64(*lesson.DurationSeconds) * 100
			if in.WatchedPercent > 100 {
				in.WatchedPercent = 100
			}
		}
		questions, err := s.questionRepo.ListByLesson(ctx, lesson.ID)
		if err != nil {
			return in, fmt.Errorf("load questions: %w", err)
		}
		passed, err := s.attemptRepo.PassedQuestionIDs(ctx, userID, lesson.ID)
		if err != nil {
			return in, fmt.Errorf("load passed questions: %w", err)
		}
		for _, q := range questions {
			if !q.InVideo() {
				continue
			}
			in.InVideoTotal++
			if passed[q.ID] {
				in.InVideoPassed++
			}
		}
	case models.LessonQuiz:
		quizPassed, err := s.attemptRepo.HasPassed(ctx, userID, lesson.ID)
		if err != nil {
			return in, fmt.Errorf("load quiz result: %w", err)
		}
		in.QuizPassed = quizPassed
	case models.LessonText, models.LessonPDF:
		// Nothing to gather; self-declared.
	}
	return in, nil
}

// SetCompletion toggles the completion flag. Marking complete re-validates
// the gate server-side and is rejected when the gate disagrees; the
// client's optimistic flip rolls back on that rejection. A successful
// completion invalidates the lock cache, enqueues the recompute job, and
// runs the course-wide completion check.
func (s *CompletionService) SetCompletion(ctx context.Context, userID, lessonID uuid.UUID, completed bool) (*models.CompletionResponse, error) {
	lesson, err := s.courseRepo.GetLesson(ctx, lessonID)
	if err != nil {
		return nil, &NotFoundError{Message: "Lesson not found"}
	}
	courseID, err := s.courseRepo.CourseIDForLesson(ctx, lessonID)
	if err != nil {
		return nil, fmt.Errorf("resolve course: %w", err)
	}

	if completed {
		verdict, err := s.GateStatus(ctx, userID, lesson)
		if err != nil {
			return nil, err
		}
		if !verdict.CanComplete {
			return nil, &ConflictError{Message: "Lesson cannot be completed yet: " + verdict.Reason}
		}
	}

	if err := s.progressRepo.SetCompletion(ctx, userID, lessonID, completed); err != nil {
		return nil, fmt.Errorf("persist completion: %w", err)
	}

	s.lockState.Invalidate(ctx, userID, courseID)
	s.enqueueLockRecompute(ctx, userID, courseID)

	resp := &models.CompletionResponse{LessonID: lessonID, Completed: completed}
	if completed {
		cp, err := s.progressRepo.CourseProgress(ctx, userID, courseID)
		if err != nil {
			log.Printf("course completion check failed for user %s: %v", userID, err)
		} else if cp.CompletedLessons == cp.TotalLessons && cp.TotalLessons > 0 {
			resp.CourseCompleted = true
			s.events.Publish(ctx, userID, LearnerEvent{
				Type:     EventCourseCompleted,
				CourseID: &courseID,
				Payload:  cp,
			})
		}
	}
	return resp, nil
}

// CourseProgress exposes the weighted progress summary.
func (s *CompletionService) CourseProgress(ctx context.Context, userID, courseID uuid.UUID) (*models.CourseProgress, error) {
	return s.progressRepo.CourseProgress(ctx, userID, courseID)
}

// LockRecomputeJob is what travels over queue:lock-recompute.
type LockRecomputeJob struct {
	UserID   uuid.UUID `json:"user_id"`
	CourseID uuid.UUID `json:"course_id"`
}

func (s *CompletionService) enqueueLockRecompute(ctx context.Context, userID, courseID uuid.UUID) {
	if s.queue == nil {
		return
	}
	job, _ := json.Marshal(LockRecomputeJob{UserID: userID, CourseID: courseID})
	if err := s.queue.LPush(ctx, "queue:lock-recompute", string(job)).Err(); err != nil {
		log.Printf("failed to enqueue lock recompute for user %s: %v", userID, err)
	}
}
