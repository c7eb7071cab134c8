package services

import (
	"context"
	"encoding/json"
	"log"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Event names pushed to a learner's open tabs over the websocket hub.
const (
	EventLessonUnlocked  = "lesson_unlocked"
	EventCourseCompleted = "course_completed"
	EventAttemptExpired  = "attempt_expired"
)

type LearnerEvent struct {
	Type     string     `json:"type"`
	CourseID *uuid.UUID `json:"course_id,omitempty"`
	LessonID *uuid.UUID `json:"lesson_id,omitempty"`
	Payload  any        `json:"payload,omitempty"`
}

// EventPublisher fans learner events out through redis pubsub; the
// websocket hub subscribes per connected learner.
type EventPublisher struct {
	redis *redis.Client
}

func NewEventPublisher(redisClient *redis.Client) *EventPublisher {
	return &EventPublisher{redis: redisClient}
}

func (p *EventPublisher) Publish(ctx context.Context, userID uuid.UUID, event LearnerEvent) {
	if p.redis == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := p.redis.Publish(ctx, "learner_updates:"+userID.String(), data).Err(); err != nil {
		log.Printf("event publish failed for user %s: %v", userID, err)
	}
}
