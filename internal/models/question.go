package models

import (
	"github.com/google/uuid"
)

type QuestionType string

const (
	QuestionSingleChoice   QuestionType = "single"
	QuestionMultipleChoice QuestionType = "multi"
)

type Question struct {
	ID       uuid.UUID    `json:"id"`
	LessonID uuid.UUID    `json:"lesson_id"`
	Type     QuestionType `json:"type"`
	Text     string       `json:"text"`
	// TriggerAt marks an in-video question: seconds into the video at which
	// playback freezes. Nil for standalone quiz questions.
	TriggerAt *float64 `json:"trigger_at,omitempty"`
	Position  int      `json:"position"`

	Answers []*Answer `json:"answers,omitempty"`
}

// InVideo reports whether the question interrupts playback.
func (q *Question) InVideo() bool {
	return q.TriggerAt != nil && *q.TriggerAt >= 0
}

type Answer struct {
	ID         uuid.UUID `json:"id"`
	QuestionID uuid.UUID `json:"question_id"`
	Text       string    `json:"text"`
	IsCorrect  bool      `json:"-"`
	Position   int       `json:"position"`
}

// ClientQuestion is the correctness-blind view handed to learners when an
// attempt starts.
type ClientQuestion struct {
	ID      uuid.UUID      `json:"id"`
	Type    QuestionType   `json:"type"`
	Text    string         `json:"text"`
	Answers []ClientAnswer `json:"answers"`
}

type ClientAnswer struct {
	ID   uuid.UUID `json:"id"`
	Text string    `json:"text"`
}
