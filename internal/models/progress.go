package models

import (
	"time"

	"github.com/google/uuid"
)

// LessonProgress is the persisted per-(learner, lesson) record. It is the
// source of truth the in-memory playback watermark is seeded from on mount.
type LessonProgress struct {
	UserID           uuid.UUID  `json:"user_id"`
	LessonID         uuid.UUID  `json:"lesson_id"`
	IsCompleted      bool       `json:"is_completed"`
	LastPlayedSecond float64    `json:"last_played_second"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

type HeartbeatRequest struct {
	CurrentSeconds float64 `json:"current_seconds"`
}

type CompletionRequest struct {
	Completed bool `json:"completed"`
}

type CompletionResponse struct {
	LessonID        uuid.UUID `json:"lesson_id"`
	Completed       bool      `json:"completed"`
	CourseCompleted bool      `json:"course_completed"`
}

// CourseProgress summarizes a learner's standing in one course.
type CourseProgress struct {
	CourseID         uuid.UUID `json:"course_id"`
	CompletedLessons int       `json:"completed_lessons"`
	TotalLessons     int       `json:"total_lessons"`
	CompletedWeight  int       `json:"completed_weight"`
	TotalWeight      int       `json:"total_weight"`
	PercentComplete  float64   `json:"percent_complete"`
}
