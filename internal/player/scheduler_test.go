package player

import (
	"testing"

	"github.com/google/uuid"

	"github.com/Adjaraux/academy-backend/internal/models"
)

func inVideoQuestion(triggerAt float64) *models.Question {
	t := triggerAt
	return &models.Question{
		ID:        uuid.New(),
		Type:      models.QuestionSingleChoice,
		Text:      "q",
		TriggerAt: &t,
	}
}

func poolQuestion() *models.Question {
	return &models.Question{
		ID:   uuid.New(),
		Type: models.QuestionSingleChoice,
		Text: "pool q",
	}
}

func TestScheduler_FiltersToInVideoQuestions(t *testing.T) {
	s := NewQuizScheduler([]*models.Question{
		inVideoQuestion(300),
		poolQuestion(),
		inVideoQuestion(120),
	})

	if s.QuestionCount() != 2 {
		t.Fatalf("Expected 2 in-video questions, got %d", s.QuestionCount())
	}
	// Sorted by trigger time regardless of input order.
	if s.Barrier() != 120 {
		t.Errorf("Expected first barrier at 120, got %.1f", s.Barrier())
	}
}

func TestScheduler_TriggersWithinWindow(t *testing.T) {
	q := inVideoQuestion(300)
	s := NewQuizScheduler([]*models.Question{q})

	if got := s.OnTimeUpdate(298.5); got != nil {
		t.Fatal("Fired outside the trigger window")
	}
	got := s.OnTimeUpdate(299.4)
	if got == nil || got.ID != q.ID {
		t.Fatal("Expected question to fire inside the trigger window")
	}
}

func TestScheduler_SingleArmWhileActive(t *testing.T) {
	q := inVideoQuestion(300)
	s := NewQuizScheduler([]*models.Question{q})

	if s.OnTimeUpdate(300) == nil {
		t.Fatal("Expected trigger at t=300")
	}

	// Repeated ticks in the window must not re-fire while active.
	for i := 0; i < 5; i++ {
		if s.OnTimeUpdate(300.1) != nil {
			t.Fatal("Question re-fired while already active")
		}
	}
}

func TestScheduler_FailedAnswerReArms(t *testing.T) {
	q := inVideoQuestion(300)
	s := NewQuizScheduler([]*models.Question{q})
	s.OnTimeUpdate(300)

	if s.Resolve(q.ID, false) {
		t.Fatal("Resolve must report the failed outcome")
	}
	if s.Barrier() != 300 {
		t.Errorf("Barrier must hold after a fail, got %.1f", s.Barrier())
	}

	// Still parked at the trigger point, the overlay fires again.
	if s.OnTimeUpdate(300) == nil {
		t.Fatal("Question must re-arm after a failed attempt")
	}
}

func TestScheduler_PassUnblocksAndAdvancesBarrier(t *testing.T) {
	q1 := inVideoQuestion(300)
	q2 := inVideoQuestion(450)
	s := NewQuizScheduler([]*models.Question{q1, q2})

	s.OnTimeUpdate(300)
	if !s.Resolve(q1.ID, true) {
		t.Fatal("Expected pass to be recorded")
	}

	if s.Barrier() != 450 {
		t.Errorf("Expected barrier to advance to 450, got %.1f", s.Barrier())
	}
	if s.AllAnswered() {
		t.Error("AllAnswered true with one question remaining")
	}

	s.OnTimeUpdate(450)
	s.Resolve(q2.ID, true)
	if s.Barrier() != NoBarrier {
		t.Errorf("Expected no barrier after all answered, got %.1f", s.Barrier())
	}
	if !s.AllAnswered() {
		t.Error("Expected AllAnswered after both passes")
	}
}

func TestScheduler_AnsweredQuestionNeverRefires(t *testing.T) {
	q := inVideoQuestion(300)
	s := NewQuizScheduler([]*models.Question{q})

	s.OnTimeUpdate(300)
	s.Resolve(q.ID, true)

	// Rewind and replay through the trigger point.
	if s.OnTimeUpdate(299.8) != nil {
		t.Fatal("Answered question re-fired on rewatch")
	}
}

func TestScheduler_ResolveRejectsWrongQuestion(t *testing.T) {
	q1 := inVideoQuestion(300)
	q2 := inVideoQuestion(450)
	s := NewQuizScheduler([]*models.Question{q1, q2})

	s.OnTimeUpdate(300)
	if s.Resolve(q2.ID, true) {
		t.Fatal("Resolve accepted an answer for a question that is not active")
	}
	if s.ActiveQuestion() == nil {
		t.Fatal("Active question cleared by a mismatched resolve")
	}
}

func TestScheduler_CloseTriggersFireSequentially(t *testing.T) {
	q1 := inVideoQuestion(100)
	q2 := inVideoQuestion(100.5)
	s := NewQuizScheduler([]*models.Question{q1, q2})

	first := s.OnTimeUpdate(100)
	if first == nil || first.ID != q1.ID {
		t.Fatal("Expected earliest question to fire first")
	}

	// Second stays quiet until the first is resolved.
	if s.OnTimeUpdate(100.3) != nil {
		t.Fatal("Second question armed while the first was active")
	}

	s.Resolve(q1.ID, true)
	second := s.OnTimeUpdate(100.5)
	if second == nil || second.ID != q2.ID {
		t.Fatal("Expected second question to fire after the first resolved")
	}
}
