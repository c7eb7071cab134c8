package player

import (
	"sort"

	"github.com/google/uuid"

	"github.com/Adjaraux/academy-backend/internal/models"
)

// triggerWindow is how close (seconds) the playhead must be to a question's
// trigger point for the overlay to fire.
const triggerWindow = 1.0

// QuizScheduler watches the time-update stream of one mounted video and
// freezes playback exactly once per unanswered in-video question. The
// answered set lives for one mount only; a remount starts empty and is
// re-gated by the persisted completion flag instead.
type QuizScheduler struct {
	questions []*models.Question // in-video only, ordered by trigger_at
	answered  map[uuid.UUID]bool
	active    *uuid.UUID
}

func NewQuizScheduler(questions []*models.Question) *QuizScheduler {
	inVideo := make([]*models.Question, 0, len(questions))
	for _, q := range questions {
		if q.InVideo() {
			inVideo = append(inVideo, q)
		}
	}
	sort.SliceStable(inVideo, func(i, j int) bool {
		return *inVideo[i].TriggerAt < *inVideo[j].TriggerAt
	})
	return &QuizScheduler{
		questions: inVideo,
		answered:  make(map[uuid.UUID]bool),
	}
}

// OnTimeUpdate returns the question whose trigger window the playhead just
// entered, or nil. A question only arms while no other question is active,
// so two triggers scheduled close together fire sequentially.
func (s *QuizScheduler) OnTimeUpdate(currentTime float64) *models.Question {
	if s.active != nil {
		return nil
	}
	for _, q := range s.questions {
		if s.answered[q.ID] {
			continue
		}
		delta := *q.TriggerAt - currentTime
		if delta < 0 {
			delta = -delta
		}
		if delta < triggerWindow {
			id := q.ID
			s.active = &id
			return q
		}
	}
	return nil
}

// Resolve records the outcome of the active question's attempt. Only a
// confirmed pass adds the question to the answered set and unblocks
// playback; a fail clears the active slot so the overlay can re-arm.
func (s *QuizScheduler) Resolve(questionID uuid.UUID, passed bool) bool {
	if s.active == nil || *s.active != questionID {
		return false
	}
	s.active = nil
	if passed {
		s.answered[questionID] = true
	}
	return passed
}

// Barrier is the trigger time of the nearest unanswered question, or
// NoBarrier when none remain. It is the hard ceiling the guard enforces.
func (s *QuizScheduler) Barrier() float64 {
	for _, q := range s.questions {
		if !s.answered[q.ID] {
			return *q.TriggerAt
		}
	}
	return NoBarrier
}

// ActiveQuestion returns the id of the question currently freezing playback.
func (s *QuizScheduler) ActiveQuestion() *uuid.UUID {
	if s.active == nil {
		return nil
	}
	id := *s.active
	return &id
}

func (s *QuizScheduler) AnsweredCount() int { return len(s.answered) }

func (s *QuizScheduler) QuestionCount() int { return len(s.questions) }

// AllAnswered reports whether every in-video question has a confirmed pass.
func (s *QuizScheduler) AllAnswered() bool {
	return len(s.answered) == len(s.questions)
}

// Question looks up an in-video question by id.
func (s *QuizScheduler) Question(id uuid.UUID) *models.Question {
	for _, q := range s.questions {
		if q.ID == id {
			return q
		}
	}
	return nil
}
