package navigation

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/Adjaraux/academy-backend/internal/models"
	"github.com/Adjaraux/academy-backend/internal/player"
	"github.com/Adjaraux/academy-backend/internal/progress"
	"github.com/Adjaraux/academy-backend/internal/quiz"
	"github.com/Adjaraux/academy-backend/internal/repository"
	"github.com/Adjaraux/academy-backend/internal/services"
)

// ActiveLesson is a learner's mounted lesson: at most one per learner, since
// the single underlying media element is exclusively owned by whichever
// lesson is active. Video lessons carry a playback session; quiz lessons an
// attempt engine; text/pdf neither.
type ActiveLesson struct {
	CourseID uuid.UUID
	Lesson   *models.Lesson
	Session  *player.Session
	Engine   *quiz.Engine
}

// LessonView is what opening a lesson returns.
type LessonView struct {
	Lesson       *models.Lesson       `json:"lesson"`
	Media        *services.MediaGrant `json:"media,omitempty"`
	Body         *string              `json:"body,omitempty"`
	ResumeFrom   float64              `json:"resume_from"`
	ReviewMode   bool                 `json:"review_mode"`
	QuestionNum  int                  `json:"in_video_questions"`
	Gate         progress.Verdict     `json:"gate"`
	PrevLessonID *uuid.UUID           `json:"prev_lesson_id,omitempty"`
	NextLessonID *uuid.UUID           `json:"next_lesson_id,omitempty"`
}

// Controller is the top-level orchestrator: it owns active-lesson selection,
// wires guard/scheduler/engine/gate together, and drives prev/next against
// the course's flattened lesson order. Lock state is consumed from the
// lockstate service, never inferred here.
type Controller struct {
	mu     sync.Mutex
	active map[uuid.UUID]*ActiveLesson // keyed by learner

	courseRepo   *repository.CourseRepo
	questionRepo *repository.QuestionRepo
	progressRepo *repository.ProgressRepo
	attempts     *services.AttemptService
	media        *services.MediaService
	lockState    *services.LockStateService
	completion   *services.CompletionService
}

func NewController(
	courseRepo *repository.CourseRepo,
	questionRepo *repository.QuestionRepo,
	progressRepo *repository.ProgressRepo,
	attempts *services.AttemptService,
	media *services.MediaService,
	lockState *services.LockStateService,
	completion *services.CompletionService,
) *Controller {
	return &Controller{
		active:       make(map[uuid.UUID]*ActiveLesson),
		courseRepo:   courseRepo,
		questionRepo: questionRepo,
		progressRepo: progressRepo,
		attempts:     attempts,
		media:        media,
		lockState:    lockState,
		completion:   completion,
	}
}

// SelectLesson makes a lesson active for the learner. A locked target is
// refused with a user-facing notice. The previous active lesson's in-memory
// state is torn down first: answered set, active question, and watermark all
// die with the old session, and the new one reseeds from the persisted
// resume point.
func (c *Controller) SelectLesson(ctx context.Context, userID, courseID, lessonID uuid.UUID) (*LessonView, error) {
	lessons, err := c.courseRepo.FlattenedLessons(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("flatten lessons: %w", err)
	}
	idx := indexOf(lessons, lessonID)
	if idx < 0 {
		return nil, &services.NotFoundError{Message: "Lesson not found in course"}
	}
	lesson := lessons[idx]

	locks, err := c.lockState.LockState(ctx, userID, courseID)
	if err != nil {
		return nil, fmt.Errorf("load lock state: %w", err)
	}
	if locks[lessonID] {
		return nil, &services.LockedError{Message: "Complete the previous lessons to unlock this one"}
	}

	c.teardown(userID)

	prog, err := c.progressRepo.Get(ctx, userID, lessonID)
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}

	view := &LessonView{
		Lesson:     lesson,
		ReviewMode: prog.IsCompleted,
	}
	if idx > 0 {
		view.PrevLessonID = &lessons[idx-1].ID
	}
	if idx < len(lessons)-1 {
		view.NextLessonID = &lessons[idx+1].ID
	}

	entry := &ActiveLesson{CourseID: courseID, Lesson: lesson}

	// Exhaustive over the lesson union; a new type must be handled here.
	switch lesson.Type {
	case models.LessonVideo:
		if !lesson.HasVideo() {
			return nil, &services.MediaUnavailableError{Message: "Video lesson has no media attached"}
		}
		questions, err := c.questionRepo.ListByLesson(ctx, lessonID)
		if err != nil {
			return nil, fmt.Errorf("load questions: %w", err)
		}
		session := player.NewSession(userID, courseID, lesson, questions, prog.LastPlayedSecond, prog.IsCompleted)
		entry.Session = session

		grant, err := c.media.ResolveAccess(session.Context(), userID, lessonID, *lesson.MediaRef)
		if err != nil {
			return nil, err
		}
		view.Media = grant
		view.ResumeFrom = prog.LastPlayedSecond
		for _, q := range questions {
			if q.InVideo() {
				view.QuestionNum++
			}
		}
	case models.LessonPDF:
		if lesson.MediaRef == nil {
			return nil, &services.MediaUnavailableError{Message: "PDF lesson has no document attached"}
		}
		grant, err := c.media.ResolveAccess(ctx, userID, lessonID, *lesson.MediaRef)
		if err != nil {
			return nil, err
		}
		view.Media = grant
	case models.LessonText:
		view.Body = lesson.Body
	case models.LessonQuiz:
		opts := []quiz.Option{}
		if prog.IsCompleted {
			opts = append(opts, quiz.WithReviewMode())
		}
		entry.Engine = quiz.NewEngine(c.attempts, userID, lessonID, opts...)
	default:
		return nil, fmt.Errorf("unhandled lesson type %q", lesson.Type)
	}

	verdict, err := c.completion.GateStatus(ctx, userID, lesson)
	if err != nil {
		return nil, err
	}
	view.Gate = verdict

	c.mu.Lock()
	c.active[userID] = entry
	c.mu.Unlock()
	return view, nil
}

// SelectAdjacent moves to the previous (-1) or next (+1) lesson in flattened
// order, refusing locked targets.
func (c *Controller) SelectAdjacent(ctx context.Context, userID, courseID, currentLessonID uuid.UUID, direction int) (*LessonView, error) {
	if direction != -1 && direction != 1 {
		return nil, &services.ValidationError{Fields: map[string]string{"direction": "must be prev or next"}}
	}
	lessons, err := c.courseRepo.FlattenedLessons(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("flatten lessons: %w", err)
	}
	idx := indexOf(lessons, currentLessonID)
	if idx < 0 {
		return nil, &services.NotFoundError{Message: "Lesson not found in course"}
	}
	target := idx + direction
	if target < 0 || target >= len(lessons) {
		return nil, &services.NotFoundError{Message: "No lesson in that direction"}
	}
	return c.SelectLesson(ctx, userID, courseID, lessons[target].ID)
}

// TimeUpdate feeds one playhead report into the learner's active playback
// session.
func (c *Controller) TimeUpdate(userID, lessonID uuid.UUID, currentTime float64) (*player.TimeUpdateResult, error) {
	session, err := c.videoSession(userID, lessonID)
	if err != nil {
		return nil, err
	}
	res := session.HandleTimeUpdate(currentTime)
	if res.Corrected {
		log.Printf("seek guard: corrected user %s on lesson %s to %.1fs", userID, lessonID, res.ResetTo)
	}
	return &res, nil
}

// AnswerActiveQuestion runs the in-video pop quiz protocol for the question
// currently freezing playback: a lightweight single-question attempt,
// scored authoritatively, whose pass lifts the barrier and resumes
// playback.
func (c *Controller) AnswerActiveQuestion(ctx context.Context, userID, lessonID, questionID uuid.UUID, answerIDs []uuid.UUID) (*models.SubmitAttemptResponse, bool, error) {
	session, err := c.videoSession(userID, lessonID)
	if err != nil {
		return nil, false, err
	}
	activeQ := session.ActiveQuestion()
	if activeQ == nil || activeQ.ID != questionID {
		return nil, false, &services.ConflictError{Message: "Question is not the active one"}
	}

	engine := quiz.NewEngine(questionBackend{c.attempts, questionID}, userID, lessonID)
	defer engine.Close()
	if err := engine.Start(ctx); err != nil {
		return nil, false, err
	}
	for _, answerID := range answerIDs {
		if err := engine.Select(questionID, answerID); err != nil {
			return nil, false, err
		}
	}
	result, err := engine.Submit(ctx)
	if err != nil {
		return nil, false, err
	}

	passed := result.PerQuestion[questionID.String()]
	resumed := session.ResolveQuestion(questionID, passed)
	return result, resumed, nil
}

// Heartbeat persists the resume point for the active video lesson. The
// reported position is clamped to the session's guarded watermark first, so
// an inflated heartbeat cannot write watch progress the guard never saw.
func (c *Controller) Heartbeat(ctx context.Context, userID, lessonID uuid.UUID, currentSeconds float64) error {
	session, err := c.videoSession(userID, lessonID)
	if err != nil {
		return err
	}
	return c.completion.Heartbeat(ctx, userID, lessonID, session.ClampReported(currentSeconds))
}

// QuizEngine returns the attempt engine for the learner's active quiz
// lesson.
func (c *Controller) QuizEngine(userID, lessonID uuid.UUID) (*quiz.Engine, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := c.active[userID]
	if entry == nil || entry.Lesson.ID != lessonID || entry.Engine == nil {
		return nil, &services.ConflictError{Message: "Quiz lesson is not active"}
	}
	return entry.Engine, nil
}

// GateStatus merges the live session's watch state with the persisted
// verdict: the live values can only be ahead of the last heartbeat, never
// authoritative, so both sides must agree before "mark complete" lights up.
func (c *Controller) GateStatus(ctx context.Context, userID, lessonID uuid.UUID) (progress.Verdict, error) {
	c.mu.Lock()
	entry := c.active[userID]
	c.mu.Unlock()

	if entry != nil && entry.Lesson.ID == lessonID && entry.Session != nil {
		watchedPct, total, passed := entry.Session.GateInputs()
		live := progress.Evaluate(entry.Lesson.Type, progress.GateInputs{
			WatchedPercent: watchedPct,
			InVideoTotal:   total,
			InVideoPassed:  passed,
		})
		if live.CanComplete {
			// Flush the watermark so the persisted check sees it.
			if err := c.completion.Heartbeat(ctx, userID, lessonID, entry.Session.Watermark()); err != nil {
				return progress.Verdict{}, err
			}
		}
	}

	lesson, err := c.courseRepo.GetLesson(ctx, lessonID)
	if err != nil {
		return progress.Verdict{}, &services.NotFoundError{Message: "Lesson not found"}
	}
	return c.completion.GateStatus(ctx, userID, lesson)
}

// CloseActive tears down whatever lesson the learner has mounted.
func (c *Controller) CloseActive(userID uuid.UUID) {
	c.teardown(userID)
}

func (c *Controller) teardown(userID uuid.UUID) {
	c.mu.Lock()
	entry := c.active[userID]
	delete(c.active, userID)
	c.mu.Unlock()

	if entry == nil {
		return
	}
	if entry.Session != nil {
		entry.Session.Close()
	}
	if entry.Engine != nil {
		entry.Engine.Close()
	}
}

func (c *Controller) videoSession(userID, lessonID uuid.UUID) (*player.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := c.active[userID]
	if entry == nil || entry.Lesson.ID != lessonID || entry.Session == nil {
		return nil, &services.ConflictError{Message: "Video lesson is not active"}
	}
	return entry.Session, nil
}

func indexOf(lessons []*models.Lesson, id uuid.UUID) int {
	for i, l := range lessons {
		if l.ID == id {
			return i
		}
	}
	return -1
}

// questionBackend adapts the attempt service's single-question entry point
// to the engine's Backend contract.
type questionBackend struct {
	svc        *services.AttemptService
	questionID uuid.UUID
}

func (b questionBackend) StartAttempt(ctx context.Context, userID, _ uuid.UUID) (*models.StartAttemptResponse, error) {
	return b.svc.StartQuestionAttempt(ctx, userID, b.questionID)
}

func (b questionBackend) SubmitAttempt(ctx context.Context, userID, attemptID uuid.UUID, answers models.AnswerSelection) (*models.SubmitAttemptResponse, error) {
	return b.svc.SubmitAttempt(ctx, userID, attemptID, answers)
}
