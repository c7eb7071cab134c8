package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/Adjaraux/academy-backend/internal/models"
	"github.com/Adjaraux/academy-backend/internal/repository"
)

// passThresholdPercent is the score at which an attempt counts as passed.
const passThresholdPercent = 70.0

// AttemptService is the authoritative side of the quiz attempt protocol:
// it issues attempts, samples question pools, and is the only place
// correctness is ever evaluated.
type AttemptService struct {
	attemptRepo  *repository.AttemptRepo
	questionRepo *repository.QuestionRepo
	courseRepo   *repository.CourseRepo
	sample       func(n, k int) []int
}

func NewAttemptService(attemptRepo *repository.AttemptRepo, questionRepo *repository.QuestionRepo, courseRepo *repository.CourseRepo) *AttemptService {
	return &AttemptService{
		attemptRepo:  attemptRepo,
		questionRepo: questionRepo,
		courseRepo:   courseRepo,
		sample:       randomSample,
	}
}

// randomSample picks k distinct indices out of n, order randomized.
func randomSample(n, k int) []int {
	idx := rand.Perm(n)
	if k < n {
		idx = idx[:k]
	}
	return idx
}

// StartAttempt opens (or resumes) the learner's attempt on a standalone
// quiz lesson. An attempt that is still open is returned as-is with its
// original started_at, so a page reload resumes the countdown instead of
// restarting it. A fresh attempt samples pool_size questions from the bank;
// every retry resamples.
func (s *AttemptService) StartAttempt(ctx context.Context, userID, lessonID uuid.UUID) (*models.StartAttemptResponse, error) {
	lesson, err := s.courseRepo.GetLesson(ctx, lessonID)
	if err != nil {
		return nil, &NotFoundError{Message: "Lesson not found"}
	}
	if lesson.Type != models.LessonQuiz {
		return nil, &ValidationError{Fields: map[string]string{"lesson_id": "lesson is not a quiz"}}
	}

	questions, err := s.questionRepo.ListByLesson(ctx, lessonID)
	if err != nil {
		return nil, fmt.Errorf("load question bank: %w", err)
	}
	bank := make([]*models.Question, 0, len(questions))
	for _, q := range questions {
		if !q.InVideo() {
			bank = append(bank, q)
		}
	}
	if len(bank) == 0 {
		return nil, &ConflictError{Message: "Quiz has no questions yet"}
	}

	if active, err := s.attemptRepo.GetActive(ctx, userID, lessonID); err != nil {
		return nil, err
	} else if active != nil {
		return s.resumeResponse(active, bank)
	}

	picked := bank
	if lesson.PoolSize != nil && *lesson.PoolSize > 0 && *lesson.PoolSize < len(bank) {
		idx := s.sample(len(bank), *lesson.PoolSize)
		picked = make([]*models.Question, 0, len(idx))
		for _, i := range idx {
			picked = append(picked, bank[i])
		}
	}

	var allotted *int
	if lesson.QuizMinutes != nil && *lesson.QuizMinutes > 0 {
		secs := *lesson.QuizMinutes * 60
		allotted = &secs
	}

	ids := make([]uuid.UUID, len(picked))
	for i, q := range picked {
		ids[i] = q.ID
	}
	idsJSON, _ := json.Marshal(ids)

	attempt := &models.QuizAttempt{
		LessonID:        lessonID,
		UserID:          userID,
		QuestionIDsJSON: idsJSON,
		AllottedSeconds: allotted,
	}
	if err := s.attemptRepo.Create(ctx, attempt); err != nil {
		return nil, fmt.Errorf("create attempt: %w", err)
	}

	return &models.StartAttemptResponse{
		AttemptID:       attempt.ID,
		LessonID:        lessonID,
		StartedAt:       attempt.StartedAt,
		AllottedSeconds: allotted,
		Questions:       blindViews(picked),
	}, nil
}

// StartQuestionAttempt opens a lightweight single-question attempt for an
// in-video pop quiz. No time limit; the playback freeze is the pressure.
func (s *AttemptService) StartQuestionAttempt(ctx context.Context, userID, questionID uuid.UUID) (*models.StartAttemptResponse, error) {
	q, err := s.questionRepo.GetByID(ctx, questionID)
	if err != nil {
		return nil, &NotFoundError{Message: "Question not found"}
	}
	if !q.InVideo() {
		return nil, &ValidationError{Fields: map[string]string{"question_id": "question is not an in-video question"}}
	}

	// A dangling open pop-quiz attempt from an abandoned overlay must not
	// shadow the new one.
	if err := s.attemptRepo.Abandon(ctx, userID, q.LessonID); err != nil {
		return nil, err
	}

	idsJSON, _ := json.Marshal([]uuid.UUID{q.ID})
	attempt := &models.QuizAttempt{
		LessonID:        q.LessonID,
		UserID:          userID,
		QuestionIDsJSON: idsJSON,
	}
	if err := s.attemptRepo.Create(ctx, attempt); err != nil {
		return nil, fmt.Errorf("create attempt: %w", err)
	}

	return &models.StartAttemptResponse{
		AttemptID: attempt.ID,
		LessonID:  q.LessonID,
		StartedAt: attempt.StartedAt,
		Questions: blindViews([]*models.Question{q}),
	}, nil
}

// SubmitAttempt scores the answer map against the attempt's sampled
// question set. Scoring an already-completed attempt is a no-op that
// returns the stored verdict, which is what makes racing submissions safe.
func (s *AttemptService) SubmitAttempt(ctx context.Context, userID, attemptID uuid.UUID, answers models.AnswerSelection) (*models.SubmitAttemptResponse, error) {
	attempt, err := s.attemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		return nil, &NotFoundError{Message: "Attempt not found"}
	}
	if attempt.UserID != userID {
		return nil, &ForbiddenError{Message: "Access denied"}
	}
	if !attempt.Active() {
		return s.storedVerdict(attempt)
	}

	answersJSON, _ := json.Marshal(encodeSelections(answers))
	resp, err := s.score(ctx, attempt, answers)
	if err != nil {
		return nil, err
	}

	done, err := s.attemptRepo.Complete(ctx, attemptID, resp.Passed, resp.ScorePercent, answersJSON)
	if err != nil {
		return nil, fmt.Errorf("complete attempt: %w", err)
	}
	if !done {
		// Lost the race against another submission; honor the stored one.
		stored, err := s.attemptRepo.GetByID(ctx, attemptID)
		if err != nil {
			return nil, err
		}
		return s.storedVerdict(stored)
	}
	return resp, nil
}

// ExpireAttempt force-submits an overdue attempt with whatever answers were
// saved. Called by the worker sweep; the deadline is enforced here even if
// the client's auto-submit never arrives.
func (s *AttemptService) ExpireAttempt(ctx context.Context, attempt *models.QuizAttempt) (*models.SubmitAttemptResponse, error) {
	var stored map[string][]string
	if len(attempt.AnswersJSON) > 0 {
		json.Unmarshal(attempt.AnswersJSON, &stored) //nolint:errcheck
	}
	answers := decodeSelections(stored)

	resp, err := s.score(ctx, attempt, answers)
	if err != nil {
		return nil, err
	}
	done, err := s.attemptRepo.Complete(ctx, attempt.ID, resp.Passed, resp.ScorePercent, attempt.AnswersJSON)
	if err != nil {
		return nil, err
	}
	if !done {
		return s.storedVerdict(attempt)
	}
	return resp, nil
}

// SaveProgress persists a partial answer map mid-attempt so a reload
// resumes with selections intact.
func (s *AttemptService) SaveProgress(ctx context.Context, userID, attemptID uuid.UUID, answers models.AnswerSelection) error {
	attempt, err := s.attemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		return &NotFoundError{Message: "Attempt not found"}
	}
	if attempt.UserID != userID {
		return &ForbiddenError{Message: "Access denied"}
	}
	if !attempt.Active() {
		return &ConflictError{Message: "Attempt already completed"}
	}
	answersJSON, _ := json.Marshal(encodeSelections(answers))
	return s.attemptRepo.SaveAnswers(ctx, attemptID, answersJSON)
}

// HasPassed reports whether the learner has passed the lesson's quiz.
func (s *AttemptService) HasPassed(ctx context.Context, userID, lessonID uuid.UUID) (bool, error) {
	return s.attemptRepo.HasPassed(ctx, userID, lessonID)
}

func (s *AttemptService) score(ctx context.Context, attempt *models.QuizAttempt, answers models.AnswerSelection) (*models.SubmitAttemptResponse, error) {
	var sampleIDs []uuid.UUID
	if err := json.Unmarshal(attempt.QuestionIDsJSON, &sampleIDs); err != nil {
		return nil, fmt.Errorf("decode attempt question set: %w", err)
	}

	bank, err := s.questionRepo.ListByLesson(ctx, attempt.LessonID)
	if err != nil {
		return nil, fmt.Errorf("load question bank: %w", err)
	}
	byID := make(map[uuid.UUID]*models.Question, len(bank))
	for _, q := range bank {
		byID[q.ID] = q
	}

	correct := 0
	perQuestion := make(map[string]bool, len(sampleIDs))
	for _, qid := range sampleIDs {
		q, ok := byID[qid]
		if !ok {
			continue
		}
		right := questionCorrect(q, answers[qid])
		perQuestion[qid.String()] = right
		if right {
			correct++
		}
	}

	total := len(sampleIDs)
	score := 0.0
	if total > 0 {
		score = float64(correct) / float64(total) * 100
	}

	resp := &models.SubmitAttemptResponse{
		AttemptID:    attempt.ID,
		Passed:       score >= passThresholdPercent,
		ScorePercent: score,
		CorrectCount: correct,
		Total:        total,
	}
	// Per-question correctness only leaves the server for single-question
	// in-video submissions, where the scheduler needs it to lift the
	// barrier.
	if total == 1 {
		resp.PerQuestion = perQuestion
	}
	return resp, nil
}

// questionCorrect: a single-choice question needs its one correct answer
// selected; a multiple-choice question needs the selected set to equal the
// correct set exactly.
func questionCorrect(q *models.Question, selected []uuid.UUID) bool {
	correctSet := make(map[uuid.UUID]bool)
	for _, a := range q.Answers {
		if a.IsCorrect {
			correctSet[a.ID] = true
		}
	}
	if len(correctSet) == 0 {
		return false
	}

	switch q.Type {
	case models.QuestionSingleChoice:
		return len(selected) == 1 && correctSet[selected[0]]
	case models.QuestionMultipleChoice:
		if len(selected) != len(correctSet) {
			return false
		}
		for _, id := range selected {
			if !correctSet[id] {
				return false
			}
		}
		return true
	}
	return false
}

func (s *AttemptService) resumeResponse(attempt *models.QuizAttempt, bank []*models.Question) (*models.StartAttemptResponse, error) {
	var sampleIDs []uuid.UUID
	if err := json.Unmarshal(attempt.QuestionIDsJSON, &sampleIDs); err != nil {
		return nil, fmt.Errorf("decode attempt question set: %w", err)
	}
	byID := make(map[uuid.UUID]*models.Question, len(bank))
	for _, q := range bank {
		byID[q.ID] = q
	}
	picked := make([]*models.Question, 0, len(sampleIDs))
	for _, id := range sampleIDs {
		if q, ok := byID[id]; ok {
			picked = append(picked, q)
		}
	}
	return &models.StartAttemptResponse{
		AttemptID:       attempt.ID,
		LessonID:        attempt.LessonID,
		StartedAt:       attempt.StartedAt,
		AllottedSeconds: attempt.AllottedSeconds,
		Questions:       blindViews(picked),
	}, nil
}

func (s *AttemptService) storedVerdict(attempt *models.QuizAttempt) (*models.SubmitAttemptResponse, error) {
	if attempt.Passed == nil || attempt.ScorePercent == nil {
		return nil, &ConflictError{Message: "Attempt was closed without a score"}
	}
	var sampleIDs []uuid.UUID
	json.Unmarshal(attempt.QuestionIDsJSON, &sampleIDs) //nolint:errcheck
	return &models.SubmitAttemptResponse{
		AttemptID:    attempt.ID,
		Passed:       *attempt.Passed,
		ScorePercent: *attempt.ScorePercent,
		Total:        len(sampleIDs),
	}, nil
}

// blindViews strips correctness from a question list.
func blindViews(questions []*models.Question) []models.ClientQuestion {
	out := make([]models.ClientQuestion, 0, len(questions))
	for _, q := range questions {
		cq := models.ClientQuestion{ID: q.ID, Type: q.Type, Text: q.Text}
		for _, a := range q.Answers {
			cq.Answers = append(cq.Answers, models.ClientAnswer{ID: a.ID, Text: a.Text})
		}
		out = append(out, cq)
	}
	return out
}

func encodeSelections(answers models.AnswerSelection) map[string][]string {
	out := make(map[string][]string, len(answers))
	for q, ids := range answers {
		strs := make([]string, len(ids))
		for i, id := range ids {
			strs[i] = id.String()
		}
		out[q.String()] = strs
	}
	return out
}

func decodeSelections(raw map[string][]string) models.AnswerSelection {
	out := make(models.AnswerSelection, len(raw))
	for q, strs := range raw {
		qid, err := uuid.Parse(q)
		if err != nil {
			continue
		}
		ids := make([]uuid.UUID, 0, len(strs))
		for _, s := range strs {
			if id, err := uuid.Parse(s); err == nil {
				ids = append(ids, id)
			}
		}
		out[qid] = ids
	}
	return out
}

func attemptDeadline(a *models.QuizAttempt) time.Time {
	if a.AllottedSeconds == nil {
		return time.Time{}
	}
	return a.StartedAt.Add(time.Duration(*a.AllottedSeconds) * time.Second)
}
