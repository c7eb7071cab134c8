package models

import (
	"time"

	"github.com/google/uuid"
)

// LessonType is the discriminator of the Lesson union. Every switch over it
// must handle all four values.
type LessonType string

const (
	LessonVideo LessonType = "video"
	LessonText  LessonType = "text"
	LessonPDF   LessonType = "pdf"
	LessonQuiz  LessonType = "quiz"
)

type Course struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Category  string    `json:"category"`
	Slug      string    `json:"slug"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`

	Chapters []*Chapter `json:"chapters,omitempty"`
}

type Chapter struct {
	ID       uuid.UUID `json:"id"`
	CourseID uuid.UUID `json:"course_id"`
	Title    string    `json:"title"`
	Position int       `json:"position"`

	Lessons []*Lesson `json:"lessons,omitempty"`
}

type Lesson struct {
	ID        uuid.UUID  `json:"id"`
	ChapterID uuid.UUID  `json:"chapter_id"`
	Title     string     `json:"title"`
	Type      LessonType `json:"type"`

	// video lessons
	MediaRef        *string `json:"media_ref,omitempty"`
	DurationSeconds *int    `json:"duration_seconds,omitempty"`

	// text lessons
	Body *string `json:"body,omitempty"`

	// quiz lessons
	QuizMinutes *int `json:"quiz_minutes,omitempty"`
	PoolSize    *int `json:"pool_size,omitempty"`

	Weight   int `json:"weight"`
	Position int `json:"position"`

	// Derived per learner, never stored on the lesson row.
	IsLocked    bool `json:"is_locked"`
	IsCompleted bool `json:"is_completed"`
}

// HasVideo reports whether the lesson carries playable media.
func (l *Lesson) HasVideo() bool {
	return l.Type == LessonVideo && l.MediaRef != nil
}
