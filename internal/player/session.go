package player

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Adjaraux/academy-backend/internal/models"
)

// Session is the lesson-scoped playback arena: one guard and one scheduler
// around one mounted video, created fresh when a lesson is opened and torn
// down on switch. Nothing in here leaks across lessons; the only state that
// survives a remount is the persisted LessonProgress row.
type Session struct {
	mu sync.Mutex

	ID       uuid.UUID
	UserID   uuid.UUID
	CourseID uuid.UUID
	Lesson   *models.Lesson

	guard     *PositionGuard
	scheduler *QuizScheduler

	// ctx scopes every backend call made on behalf of this session. Closing
	// the session cancels it so late scoring or URL-signing responses for an
	// abandoned lesson cannot be mis-applied to the next one.
	ctx    context.Context
	cancel context.CancelFunc

	startedAt time.Time
	closed    bool
}

// TimeUpdateResult tells the player what to do after one time-update event.
type TimeUpdateResult struct {
	// Corrected is set when the guard rejected a forward seek; playback
	// must jump back to ResetTo.
	Corrected bool    `json:"corrected"`
	ResetTo   float64 `json:"reset_to,omitempty"`
	// OpenQuestion is the in-video question that just armed, if any.
	// Playback pauses until it is resolved.
	OpenQuestion *models.ClientQuestion `json:"open_question,omitempty"`
	Watermark    float64                `json:"watermark"`
	WatchedPct   float64                `json:"watched_percent"`
}

// NewSession mounts a playback session for a video lesson. resumeFrom seeds
// the watermark from the persisted last_played_second; reviewMode is true
// once the lesson is already completed and disables all gating.
func NewSession(userID, courseID uuid.UUID, lesson *models.Lesson, questions []*models.Question, resumeFrom float64, reviewMode bool) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		ID:        uuid.New(),
		UserID:    userID,
		CourseID:  courseID,
		Lesson:    lesson,
		guard:     NewPositionGuard(resumeFrom, reviewMode),
		scheduler: NewQuizScheduler(questions),
		ctx:       ctx,
		cancel:    cancel,
		startedAt: time.Now(),
	}
}

// Context returns the session-scoped context for backend calls.
func (s *Session) Context() context.Context { return s.ctx }

// Close tears the session down and cancels any in-flight work.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.cancel()
}

// HandleTimeUpdate runs one playhead report through guard and scheduler.
// The scheduler is consulted before the watermark can advance, so a
// question's resolution strictly precedes any movement past its barrier.
func (s *Session) HandleTimeUpdate(currentTime float64) TimeUpdateResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res TimeUpdateResult

	if !s.guard.ReviewMode() {
		if q := s.scheduler.OnTimeUpdate(currentTime); q != nil {
			res.OpenQuestion = clientView(q)
		}
	}

	decision := s.guard.OnTimeUpdate(currentTime, s.scheduler.Barrier())
	res.Corrected = decision.Violation
	if decision.Violation {
		res.ResetTo = decision.ResetTo
	}
	res.Watermark = decision.Watermark
	if s.Lesson.DurationSeconds != nil {
		res.WatchedPct = s.guard.WatchedPercent(*s.Lesson.DurationSeconds)
	}
	return res
}

// ResolveQuestion reports an attempt verdict for the active in-video
// question. Returns true when playback may resume past its barrier.
func (s *Session) ResolveQuestion(questionID uuid.UUID, passed bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduler.Resolve(questionID, passed)
}

// ActiveQuestion returns the in-video question currently freezing playback.
func (s *Session) ActiveQuestion() *models.Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.scheduler.ActiveQuestion()
	if id == nil {
		return nil
	}
	return s.scheduler.Question(*id)
}

// GateInputs snapshots the values the progression gate needs.
func (s *Session) GateInputs() (watchedPct float64, questions, passed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Lesson.DurationSeconds != nil {
		watchedPct = s.guard.WatchedPercent(*s.Lesson.DurationSeconds)
	}
	return watchedPct, s.scheduler.QuestionCount(), s.scheduler.AnsweredCount()
}

// Watermark returns the furthest legitimately reached position.
func (s *Session) Watermark() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.guard.Watermark()
}

// ClampReported caps a client-reported position at the guard's watermark
// plus the seek tolerance before it may be persisted. The persisted resume
// point feeds the authoritative watched-percent, so a forged heartbeat must
// never write past what the guard has witnessed. Review sessions pass
// through untouched.
func (s *Session) ClampReported(reported float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.guard.ReviewMode() {
		return reported
	}
	if ceiling := s.guard.Watermark() + seekTolerance; reported > ceiling {
		return ceiling
	}
	return reported
}

// clientView strips correctness before a question leaves the server.
func clientView(q *models.Question) *models.ClientQuestion {
	cq := &models.ClientQuestion{
		ID:   q.ID,
		Type: q.Type,
		Text: q.Text,
	}
	for _, a := range q.Answers {
		cq.Answers = append(cq.Answers, models.ClientAnswer{ID: a.ID, Text: a.Text})
	}
	return cq
}
