package quiz

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Adjaraux/academy-backend/internal/models"
)

// State is the attempt lifecycle:
// Idle → Starting → InProgress → Submitting → Passed|Failed → (Retry → Starting)
type State int

const (
	StateIdle State = iota
	StateStarting
	StateInProgress
	StateSubmitting
	StatePassed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateInProgress:
		return "in_progress"
	case StateSubmitting:
		return "submitting"
	case StatePassed:
		return "passed"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

var (
	ErrNotInProgress   = errors.New("attempt is not in progress")
	ErrAlreadyStarted  = errors.New("attempt already in progress")
	ErrAlreadyPassed   = errors.New("quiz already passed")
	ErrSubmitInFlight  = errors.New("submission already in flight")
	ErrIncomplete      = errors.New("every question needs an answer before submitting")
	ErrRetryNotAllowed = errors.New("retry is only available after a result")
	ErrUnknownQuestion = errors.New("question is not part of this attempt")
)

// Backend is the authoritative side of the attempt protocol. The engine
// never evaluates correctness itself; it only relays selections and reflects
// the verdict.
type Backend interface {
	StartAttempt(ctx context.Context, userID, lessonID uuid.UUID) (*models.StartAttemptResponse, error)
	SubmitAttempt(ctx context.Context, userID, attemptID uuid.UUID, answers models.AnswerSelection) (*models.SubmitAttemptResponse, error)
}

// Engine drives one timed attempt for one learner on one lesson. The same
// machine serves standalone quiz lessons and, with a single question, the
// in-video pop quizzes.
type Engine struct {
	mu      sync.Mutex
	backend Backend
	now     func() time.Time
	shuffle func(n int, swap func(i, j int))

	userID   uuid.UUID
	lessonID uuid.UUID

	state      State
	attemptID  uuid.UUID
	startedAt  time.Time
	allotted   *int
	questions  []models.ClientQuestion
	selections models.AnswerSelection
	result     *models.SubmitAttemptResponse

	// reviewMode keeps selections interactive after a pass for practice,
	// without re-scoring, and allows Retry after Passed.
	reviewMode bool

	// singleQuestion relaxes the completeness check: an in-video pop quiz
	// may always be submitted.
	singleQuestion bool

	autoSubmitted bool
	expiryTimer   *time.Timer
}

// Option tweaks engine construction; used by tests to pin time and shuffle.
type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithShuffle(shuffle func(n int, swap func(i, j int))) Option {
	return func(e *Engine) { e.shuffle = shuffle }
}

func WithReviewMode() Option {
	return func(e *Engine) { e.reviewMode = true }
}

func NewEngine(backend Backend, userID, lessonID uuid.UUID, opts ...Option) *Engine {
	e := &Engine{
		backend:    backend,
		now:        time.Now,
		shuffle:    rand.Shuffle,
		userID:     userID,
		lessonID:   lessonID,
		state:      StateIdle,
		selections: make(models.AnswerSelection),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start requests a fresh attempt and question set from the backend. Answer
// order is shuffled locally per question; presentation only, scoring always
// keys on answer ids. When the backend reports an attempt that was already
// running (page reload), the remaining time is derived from its started_at
// so no extra time is granted. A passed quiz stays passed: a fresh attempt
// after the pass is only available in review mode, same rule as Retry.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	switch e.state {
	case StateIdle, StateFailed:
	case StatePassed:
		if !e.reviewMode {
			e.mu.Unlock()
			return ErrAlreadyPassed
		}
	case StateStarting, StateInProgress, StateSubmitting:
		e.mu.Unlock()
		return ErrAlreadyStarted
	}
	e.state = StateStarting
	e.mu.Unlock()

	resp, err := e.backend.StartAttempt(ctx, e.userID, e.lessonID)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		// Recoverable: the caller may retry Start. Never a silent pass.
		e.state = StateIdle
		return fmt.Errorf("start attempt: %w", err)
	}

	e.attemptID = resp.AttemptID
	e.startedAt = resp.StartedAt
	e.allotted = resp.AllottedSeconds
	e.questions = resp.Questions
	e.singleQuestion = len(resp.Questions) == 1
	e.selections = make(models.AnswerSelection)
	e.result = nil
	e.autoSubmitted = false
	e.state = StateInProgress

	for i := range e.questions {
		answers := e.questions[i].Answers
		e.shuffle(len(answers), func(a, b int) {
			answers[a], answers[b] = answers[b], answers[a]
		})
	}
	return nil
}

// Select records an answer choice. Single-choice replaces the selection,
// multiple-choice toggles membership. After a result the selections freeze,
// except in review mode where they stay interactive for practice but are
// never re-scored.
func (e *Engine) Select(questionID, answerID uuid.UUID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StateInProgress:
	case StatePassed, StateFailed:
		if !e.reviewMode {
			return ErrNotInProgress
		}
	default:
		return ErrNotInProgress
	}

	q := e.question(questionID)
	if q == nil {
		return ErrUnknownQuestion
	}

	switch q.Type {
	case models.QuestionSingleChoice:
		e.selections[questionID] = []uuid.UUID{answerID}
	case models.QuestionMultipleChoice:
		current := e.selections[questionID]
		for i, id := range current {
			if id == answerID {
				e.selections[questionID] = append(current[:i], current[i+1:]...)
				return nil
			}
		}
		e.selections[questionID] = append(current, answerID)
	}
	return nil
}

// Submit sends the full answer map for authoritative scoring. A standalone
// quiz must have every question answered; a single in-video question may
// always be submitted. Concurrent submits (manual racing the timeout
// auto-submit) collapse to exactly one scoring call.
func (e *Engine) Submit(ctx context.Context) (*models.SubmitAttemptResponse, error) {
	e.mu.Lock()
	switch e.state {
	case StateSubmitting:
		e.mu.Unlock()
		return nil, ErrSubmitInFlight
	case StateInProgress:
	default:
		e.mu.Unlock()
		return nil, ErrNotInProgress
	}
	// A timeout force-submit carries whatever was answered; only a manual
	// submit of a multi-question quiz must be complete.
	if !e.singleQuestion && !e.autoSubmitted {
		for _, q := range e.questions {
			if len(e.selections[q.ID]) == 0 {
				e.mu.Unlock()
				return nil, ErrIncomplete
			}
		}
	}
	e.state = StateSubmitting
	answers := e.snapshotSelections()
	attemptID := e.attemptID
	e.mu.Unlock()

	resp, err := e.backend.SubmitAttempt(ctx, e.userID, attemptID, answers)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		// Back to in-progress; the learner may retry the call.
		e.state = StateInProgress
		return nil, fmt.Errorf("submit attempt: %w", err)
	}

	e.result = resp
	if resp.Passed {
		e.state = StatePassed
	} else {
		e.state = StateFailed
	}
	e.stopTimerLocked()
	return resp, nil
}

// Retry discards local state and starts over. Only available after a Failed
// result, or after Passed in review mode. The backend issues a brand-new
// attempt with a freshly sampled question set when pooling is configured;
// that resampling is what defeats memorized retries.
func (e *Engine) Retry(ctx context.Context) error {
	e.mu.Lock()
	switch e.state {
	case StateFailed:
	case StatePassed:
		if !e.reviewMode {
			e.mu.Unlock()
			return ErrRetryNotAllowed
		}
	default:
		e.mu.Unlock()
		return ErrRetryNotAllowed
	}
	e.state = StateIdle
	e.mu.Unlock()

	return e.Start(ctx)
}

// Remaining derives the countdown from started_at + allotted − now on every
// call rather than decrementing a counter, so reloads and clock drift cannot
// desynchronize the deadline from the backend's own timeout enforcement.
// Returns false when the attempt has no time limit.
func (e *Engine) Remaining() (time.Duration, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.remainingLocked()
}

func (e *Engine) remainingLocked() (time.Duration, bool) {
	if e.allotted == nil {
		return 0, false
	}
	deadline := e.startedAt.Add(time.Duration(*e.allotted) * time.Second)
	left := deadline.Sub(e.now())
	if left < 0 {
		left = 0
	}
	return left, true
}

// ArmExpiry schedules the timeout auto-submit. Expiry is a first-class
// transition, not an error: it forces exactly one submission. The guard on
// autoSubmitted plus the Submitting state make the auto-submit idempotent
// even when a slow scoring response is still in flight.
func (e *Engine) ArmExpiry(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	left, ok := e.remainingLocked()
	if !ok || e.state != StateInProgress {
		return
	}
	e.stopTimerLocked()
	e.expiryTimer = time.AfterFunc(left, func() {
		e.autoSubmit(ctx)
	})
}

func (e *Engine) autoSubmit(ctx context.Context) {
	e.mu.Lock()
	if e.autoSubmitted || e.state != StateInProgress {
		e.mu.Unlock()
		return
	}
	e.autoSubmitted = true
	e.mu.Unlock()

	// Best effort: the worker-side expiry sweep remains the authoritative
	// enforcement if this call fails.
	e.Submit(ctx) //nolint:errcheck
}

func (e *Engine) stopTimerLocked() {
	if e.expiryTimer != nil {
		e.expiryTimer.Stop()
		e.expiryTimer = nil
	}
}

// Close releases the expiry timer when the engine is torn down on lesson
// switch.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopTimerLocked()
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) AttemptID() uuid.UUID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.attemptID
}

// Questions returns the attempt's question set in presentation order.
func (e *Engine) Questions() []models.ClientQuestion {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.ClientQuestion, len(e.questions))
	copy(out, e.questions)
	return out
}

// Result returns the scored outcome, nil while none has been received.
func (e *Engine) Result() *models.SubmitAttemptResponse {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.result
}

// Selections returns a copy of the current answer map.
func (e *Engine) Selections() models.AnswerSelection {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotSelections()
}

func (e *Engine) snapshotSelections() models.AnswerSelection {
	out := make(models.AnswerSelection, len(e.selections))
	for q, ids := range e.selections {
		out[q] = append([]uuid.UUID(nil), ids...)
	}
	return out
}

func (e *Engine) question(id uuid.UUID) *models.ClientQuestion {
	for i := range e.questions {
		if e.questions[i].ID == id {
			return &e.questions[i]
		}
	}
	return nil
}
