package quiz

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Adjaraux/academy-backend/internal/models"
)

// fakeBackend scripts Start/Submit responses and counts calls, so tests can
// assert exactly how many scoring calls the engine issued.
type fakeBackend struct {
	mu           sync.Mutex
	startCalls   int
	submitCalls  int
	startResp    *models.StartAttemptResponse
	submitResp   *models.SubmitAttemptResponse
	startErr     error
	submitErr    error
	lastAnswers  models.AnswerSelection
	freshPerCall bool // issue a new attempt id on every Start
}

func (f *fakeBackend) StartAttempt(ctx context.Context, userID, lessonID uuid.UUID) (*models.StartAttemptResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCalls++
	if f.startErr != nil {
		return nil, f.startErr
	}
	resp := *f.startResp
	if f.freshPerCall {
		resp.AttemptID = uuid.New()
		resp.StartedAt = time.Now()
	}
	return &resp, nil
}

func (f *fakeBackend) SubmitAttempt(ctx context.Context, userID, attemptID uuid.UUID, answers models.AnswerSelection) (*models.SubmitAttemptResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitCalls++
	f.lastAnswers = answers
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return f.submitResp, nil
}

func clientQuestion(qType models.QuestionType, answerCount int) models.ClientQuestion {
	q := models.ClientQuestion{ID: uuid.New(), Type: qType, Text: "q"}
	for i := 0; i < answerCount; i++ {
		q.Answers = append(q.Answers, models.ClientAnswer{ID: uuid.New(), Text: "a"})
	}
	return q
}

func noShuffle(n int, swap func(i, j int)) {}

func startedEngine(t *testing.T, backend *fakeBackend, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithShuffle(noShuffle)}, opts...)
	e := NewEngine(backend, uuid.New(), uuid.New(), opts...)
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	return e
}

func twoQuestionStart() *models.StartAttemptResponse {
	allotted := 600
	return &models.StartAttemptResponse{
		AttemptID:       uuid.New(),
		LessonID:        uuid.New(),
		StartedAt:       time.Now(),
		AllottedSeconds: &allotted,
		Questions: []models.ClientQuestion{
			clientQuestion(models.QuestionSingleChoice, 4),
			clientQuestion(models.QuestionMultipleChoice, 4),
		},
	}
}

func TestEngine_StartTransitionsToInProgress(t *testing.T) {
	backend := &fakeBackend{startResp: twoQuestionStart()}
	e := startedEngine(t, backend)

	if e.State() != StateInProgress {
		t.Errorf("Expected in_progress, got %s", e.State())
	}
	if len(e.Questions()) != 2 {
		t.Errorf("Expected 2 questions, got %d", len(e.Questions()))
	}
}

func TestEngine_DoubleStartRejected(t *testing.T) {
	backend := &fakeBackend{startResp: twoQuestionStart()}
	e := startedEngine(t, backend)

	if err := e.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("Expected ErrAlreadyStarted, got %v", err)
	}
	if backend.startCalls != 1 {
		t.Errorf("Expected 1 start call, got %d", backend.startCalls)
	}
}

func TestEngine_StartFailureIsRecoverable(t *testing.T) {
	backend := &fakeBackend{startErr: errors.New("backend down")}
	e := NewEngine(backend, uuid.New(), uuid.New(), WithShuffle(noShuffle))

	if err := e.Start(context.Background()); err == nil {
		t.Fatal("Expected start error")
	}
	if e.State() != StateIdle {
		t.Errorf("Expected idle after failed start, got %s", e.State())
	}

	// A retry of Start must work once the backend recovers.
	backend.mu.Lock()
	backend.startErr = nil
	backend.startResp = twoQuestionStart()
	backend.mu.Unlock()
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Recovered start failed: %v", err)
	}
}

func TestEngine_SelectSingleChoiceReplaces(t *testing.T) {
	backend := &fakeBackend{startResp: twoQuestionStart()}
	e := startedEngine(t, backend)

	q := e.Questions()[0]
	e.Select(q.ID, q.Answers[0].ID)
	e.Select(q.ID, q.Answers[1].ID)

	sel := e.Selections()[q.ID]
	if len(sel) != 1 || sel[0] != q.Answers[1].ID {
		t.Errorf("Single-choice must replace, got %v", sel)
	}
}

func TestEngine_SelectMultiChoiceToggles(t *testing.T) {
	backend := &fakeBackend{startResp: twoQuestionStart()}
	e := startedEngine(t, backend)

	q := e.Questions()[1]
	e.Select(q.ID, q.Answers[0].ID)
	e.Select(q.ID, q.Answers[2].ID)
	if got := e.Selections()[q.ID]; len(got) != 2 {
		t.Fatalf("Expected 2 selections, got %d", len(got))
	}

	// Selecting again removes.
	e.Select(q.ID, q.Answers[0].ID)
	got := e.Selections()[q.ID]
	if len(got) != 1 || got[0] != q.Answers[2].ID {
		t.Errorf("Multi-choice toggle off failed, got %v", got)
	}
}

func TestEngine_SelectUnknownQuestion(t *testing.T) {
	backend := &fakeBackend{startResp: twoQuestionStart()}
	e := startedEngine(t, backend)

	if err := e.Select(uuid.New(), uuid.New()); !errors.Is(err, ErrUnknownQuestion) {
		t.Errorf("Expected ErrUnknownQuestion, got %v", err)
	}
}

func TestEngine_SubmitBlocksIncomplete(t *testing.T) {
	backend := &fakeBackend{startResp: twoQuestionStart()}
	e := startedEngine(t, backend)

	q := e.Questions()[0]
	e.Select(q.ID, q.Answers[0].ID)

	if _, err := e.Submit(context.Background()); !errors.Is(err, ErrIncomplete) {
		t.Errorf("Expected ErrIncomplete, got %v", err)
	}
	if e.State() != StateInProgress {
		t.Errorf("Incomplete submit must leave the attempt in progress, got %s", e.State())
	}
	if backend.submitCalls != 0 {
		t.Errorf("Incomplete submit must not reach the backend, got %d calls", backend.submitCalls)
	}
}

func TestEngine_SubmitPassAndFreeze(t *testing.T) {
	start := twoQuestionStart()
	backend := &fakeBackend{
		startResp:  start,
		submitResp: &models.SubmitAttemptResponse{Passed: true, ScorePercent: 100, CorrectCount: 2, Total: 2},
	}
	e := startedEngine(t, backend)

	for _, q := range e.Questions() {
		e.Select(q.ID, q.Answers[0].ID)
	}

	resp, err := e.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if !resp.Passed || e.State() != StatePassed {
		t.Errorf("Expected passed state, got %s", e.State())
	}

	// Selections freeze after a result outside review mode.
	q := e.Questions()[0]
	if err := e.Select(q.ID, q.Answers[1].ID); !errors.Is(err, ErrNotInProgress) {
		t.Errorf("Expected frozen selections, got %v", err)
	}
}

func TestEngine_SubmitErrorIsRecoverable(t *testing.T) {
	backend := &fakeBackend{
		startResp: twoQuestionStart(),
		submitErr: errors.New("scoring timeout"),
	}
	e := startedEngine(t, backend)
	for _, q := range e.Questions() {
		e.Select(q.ID, q.Answers[0].ID)
	}

	if _, err := e.Submit(context.Background()); err == nil {
		t.Fatal("Expected submit error")
	}
	if e.State() != StateInProgress {
		t.Errorf("Failed submit must return to in_progress, got %s", e.State())
	}

	backend.mu.Lock()
	backend.submitErr = nil
	backend.submitResp = &models.SubmitAttemptResponse{Passed: false, ScorePercent: 50, CorrectCount: 1, Total: 2}
	backend.mu.Unlock()
	if _, err := e.Submit(context.Background()); err != nil {
		t.Fatalf("Retried submit failed: %v", err)
	}
	if e.State() != StateFailed {
		t.Errorf("Expected failed state, got %s", e.State())
	}
}

func TestEngine_SingleQuestionSubmitsWithoutSelection(t *testing.T) {
	start := &models.StartAttemptResponse{
		AttemptID: uuid.New(),
		LessonID:  uuid.New(),
		StartedAt: time.Now(),
		Questions: []models.ClientQuestion{clientQuestion(models.QuestionSingleChoice, 3)},
	}
	backend := &fakeBackend{
		startResp:  start,
		submitResp: &models.SubmitAttemptResponse{Passed: false, ScorePercent: 0, Total: 1},
	}
	e := startedEngine(t, backend)

	// A pop quiz may be submitted empty; the backend simply scores it wrong.
	if _, err := e.Submit(context.Background()); err != nil {
		t.Fatalf("Single-question submit failed: %v", err)
	}
	if e.State() != StateFailed {
		t.Errorf("Expected failed, got %s", e.State())
	}
}

func TestEngine_RetryOnlyAfterFailure(t *testing.T) {
	backend := &fakeBackend{
		startResp:    twoQuestionStart(),
		submitResp:   &models.SubmitAttemptResponse{Passed: false, ScorePercent: 0, Total: 2},
		freshPerCall: true,
	}
	e := startedEngine(t, backend)

	if err := e.Retry(context.Background()); !errors.Is(err, ErrRetryNotAllowed) {
		t.Errorf("Retry mid-attempt must be rejected, got %v", err)
	}

	for _, q := range e.Questions() {
		e.Select(q.ID, q.Answers[0].ID)
	}
	e.Submit(context.Background())

	firstAttempt := e.AttemptID()
	if err := e.Retry(context.Background()); err != nil {
		t.Fatalf("Retry after failure failed: %v", err)
	}
	if e.State() != StateInProgress {
		t.Errorf("Expected in_progress after retry, got %s", e.State())
	}
	if e.AttemptID() == firstAttempt {
		t.Error("Retry must issue a brand-new attempt")
	}
	if len(e.Selections()) != 0 {
		t.Error("Retry must clear prior selections")
	}
	if backend.startCalls != 2 {
		t.Errorf("Expected 2 backend start calls, got %d", backend.startCalls)
	}
}

func TestEngine_RetryAfterPassNeedsReviewMode(t *testing.T) {
	backend := &fakeBackend{
		startResp:  twoQuestionStart(),
		submitResp: &models.SubmitAttemptResponse{Passed: true, ScorePercent: 100, Total: 2},
	}
	e := startedEngine(t, backend)
	for _, q := range e.Questions() {
		e.Select(q.ID, q.Answers[0].ID)
	}
	e.Submit(context.Background())

	if err := e.Retry(context.Background()); !errors.Is(err, ErrRetryNotAllowed) {
		t.Errorf("Retry after pass outside review mode must be rejected, got %v", err)
	}
}

func TestEngine_StartAfterPassNeedsReviewMode(t *testing.T) {
	backend := &fakeBackend{
		startResp:  twoQuestionStart(),
		submitResp: &models.SubmitAttemptResponse{Passed: true, ScorePercent: 100, Total: 2},
	}
	e := startedEngine(t, backend)
	for _, q := range e.Questions() {
		e.Select(q.ID, q.Answers[0].ID)
	}
	e.Submit(context.Background())

	// Calling Start again must not reopen a fresh attempt around the
	// Retry guard.
	if err := e.Start(context.Background()); !errors.Is(err, ErrAlreadyPassed) {
		t.Errorf("Start after pass outside review mode must be rejected, got %v", err)
	}
	if e.State() != StatePassed {
		t.Errorf("Expected passed state to survive, got %s", e.State())
	}
	if backend.startCalls != 1 {
		t.Errorf("Expected 1 start call, got %d", backend.startCalls)
	}

	// In review mode the same sequence is allowed, mirroring Retry.
	review := startedEngine(t, &fakeBackend{
		startResp:  twoQuestionStart(),
		submitResp: &models.SubmitAttemptResponse{Passed: true, ScorePercent: 100, Total: 2},
	}, WithReviewMode())
	for _, q := range review.Questions() {
		review.Select(q.ID, q.Answers[0].ID)
	}
	review.Submit(context.Background())
	if err := review.Start(context.Background()); err != nil {
		t.Fatalf("Review-mode start after pass failed: %v", err)
	}
}

func TestEngine_ReviewModeKeepsSelectionsInteractive(t *testing.T) {
	backend := &fakeBackend{
		startResp:  twoQuestionStart(),
		submitResp: &models.SubmitAttemptResponse{Passed: true, ScorePercent: 100, Total: 2},
	}
	e := startedEngine(t, backend, WithReviewMode())
	for _, q := range e.Questions() {
		e.Select(q.ID, q.Answers[0].ID)
	}
	e.Submit(context.Background())

	// Practice continues after the pass, with no extra scoring calls.
	q := e.Questions()[0]
	if err := e.Select(q.ID, q.Answers[1].ID); err != nil {
		t.Fatalf("Review-mode select failed: %v", err)
	}
	if backend.submitCalls != 1 {
		t.Errorf("Review-mode interaction must not re-score, got %d submit calls", backend.submitCalls)
	}

	if err := e.Retry(context.Background()); err != nil {
		t.Fatalf("Review-mode retry after pass failed: %v", err)
	}
}

func TestEngine_RemainingDerivedFromStart(t *testing.T) {
	start := twoQuestionStart()
	start.StartedAt = time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	backend := &fakeBackend{startResp: start}

	now := start.StartedAt.Add(4 * time.Minute)
	e := startedEngine(t, backend, WithClock(func() time.Time { return now }))

	left, ok := e.Remaining()
	if !ok {
		t.Fatal("Expected a time limit")
	}
	if left != 6*time.Minute {
		t.Errorf("Expected 6m remaining, got %s", left)
	}

	// Past the deadline the countdown floors at zero.
	now = start.StartedAt.Add(11 * time.Minute)
	left, _ = e.Remaining()
	if left != 0 {
		t.Errorf("Expected 0 remaining, got %s", left)
	}
}

func TestEngine_ResumeGrantsNoExtraTime(t *testing.T) {
	// Backend reports an attempt started 8 minutes ago with a 10 minute
	// allotment; a reload must resume with 2 minutes left.
	start := twoQuestionStart()
	start.StartedAt = time.Now().Add(-8 * time.Minute)
	backend := &fakeBackend{startResp: start}
	e := startedEngine(t, backend)

	left, ok := e.Remaining()
	if !ok {
		t.Fatal("Expected a time limit")
	}
	if left > 2*time.Minute || left < 110*time.Second {
		t.Errorf("Expected roughly 2m remaining after resume, got %s", left)
	}
}

func TestEngine_ConcurrentSubmitScoresOnce(t *testing.T) {
	backend := &fakeBackend{
		startResp:  twoQuestionStart(),
		submitResp: &models.SubmitAttemptResponse{Passed: true, ScorePercent: 100, Total: 2},
	}
	e := startedEngine(t, backend)
	for _, q := range e.Questions() {
		e.Select(q.ID, q.Answers[0].ID)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Submit(context.Background()) //nolint:errcheck
		}()
	}
	wg.Wait()

	if backend.submitCalls != 1 {
		t.Errorf("Expected exactly 1 scoring call, got %d", backend.submitCalls)
	}
	if e.State() != StatePassed {
		t.Errorf("Expected passed, got %s", e.State())
	}
}

func TestEngine_ExpiryAutoSubmits(t *testing.T) {
	start := twoQuestionStart()
	short := 0
	start.AllottedSeconds = &short
	backend := &fakeBackend{
		startResp:  start,
		submitResp: &models.SubmitAttemptResponse{Passed: false, ScorePercent: 0, Total: 2},
	}
	e := startedEngine(t, backend)
	q := e.Questions()[0]
	e.Select(q.ID, q.Answers[0].ID)

	e.ArmExpiry(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if e.State() == StateFailed {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if e.State() != StateFailed {
		t.Fatalf("Expected auto-submitted failure, got %s", e.State())
	}
	if backend.submitCalls != 1 {
		t.Errorf("Expected 1 scoring call from expiry, got %d", backend.submitCalls)
	}
	// The partial selection travelled with the forced submission.
	if len(backend.lastAnswers[q.ID]) != 1 {
		t.Error("Auto-submit must carry the saved partial answers")
	}
}
