package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type QuizAttempt struct {
	ID       uuid.UUID `json:"id"`
	LessonID uuid.UUID `json:"lesson_id"`
	UserID   uuid.UUID `json:"user_id"`
	// QuestionIDsJSON is the sampled question set for this attempt, in
	// presentation order. Retries get a fresh sample when the lesson has a
	// pool_size configured.
	QuestionIDsJSON  json.RawMessage `json:"question_ids"`
	AnswersJSON      json.RawMessage `json:"answers"`
	AllottedSeconds  *int            `json:"allotted_seconds"`
	Passed           *bool           `json:"passed"`
	ScorePercent     *float64        `json:"score_percent"`
	StartedAt        time.Time       `json:"started_at"`
	CompletedAt      *time.Time      `json:"completed_at"`
	TimeTakenSeconds *int            `json:"time_taken_seconds"`
}

// Active reports whether the attempt is still open for answers.
func (a *QuizAttempt) Active() bool {
	return a.CompletedAt == nil
}

// AnswerSelection is one question's selected answers inside an attempt:
// exactly one id for single-choice, any number for multiple-choice.
type AnswerSelection map[uuid.UUID][]uuid.UUID

type StartAttemptResponse struct {
	AttemptID       uuid.UUID        `json:"attempt_id"`
	LessonID        uuid.UUID        `json:"lesson_id"`
	StartedAt       time.Time        `json:"started_at"`
	AllottedSeconds *int             `json:"allotted_seconds,omitempty"`
	Questions       []ClientQuestion `json:"questions"`
}

type SubmitAttemptRequest struct {
	Answers map[string][]string `json:"answers"`
}

type SubmitAttemptResponse struct {
	AttemptID    uuid.UUID          `json:"attempt_id"`
	Passed       bool               `json:"passed"`
	ScorePercent float64            `json:"score_percent"`
	CorrectCount int                `json:"correct_count"`
	Total        int                `json:"total"`
	// PerQuestion is only populated for single-question in-video
	// submissions, where the scheduler needs to know whether to lift the
	// barrier.
	PerQuestion map[string]bool `json:"per_question,omitempty"`
}
