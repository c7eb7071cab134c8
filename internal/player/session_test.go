package player

import (
	"testing"

	"github.com/google/uuid"

	"github.com/Adjaraux/academy-backend/internal/models"
)

func videoLesson(durationSeconds int) *models.Lesson {
	ref := "course/lesson.mp4"
	return &models.Lesson{
		ID:              uuid.New(),
		Title:           "lesson",
		Type:            models.LessonVideo,
		MediaRef:        &ref,
		DurationSeconds: &durationSeconds,
	}
}

// Walks the canonical scenario: a 600s video with one question at t=300.
// Playback runs into the trigger, freezes, fails once, passes, then the
// second half plays out and the gate inputs line up.
func TestSession_FullPlaybackFlow(t *testing.T) {
	q := inVideoQuestion(300)
	q.Answers = []*models.Answer{
		{ID: uuid.New(), QuestionID: q.ID, Text: "right", IsCorrect: true},
		{ID: uuid.New(), QuestionID: q.ID, Text: "wrong"},
	}
	s := NewSession(uuid.New(), uuid.New(), videoLesson(600), []*models.Question{q}, 298, false)
	defer s.Close()

	// Seeking past the question is corrected.
	res := s.HandleTimeUpdate(500)
	if !res.Corrected {
		t.Fatal("Expected correction for a seek past the unanswered question")
	}

	// Reaching the trigger opens the question, correctness-blind.
	res = s.HandleTimeUpdate(299.6)
	if res.OpenQuestion == nil {
		t.Fatal("Expected the question to open at its trigger point")
	}
	data := res.OpenQuestion
	if len(data.Answers) != 2 {
		t.Fatalf("Expected 2 answers in the client view, got %d", len(data.Answers))
	}

	// Fail: playback stays capped, overlay can re-arm.
	if s.ResolveQuestion(q.ID, false) {
		t.Fatal("Failed resolve must not unblock playback")
	}
	res = s.HandleTimeUpdate(350)
	if !res.Corrected {
		t.Fatal("Playback must stay behind the barrier after a fail")
	}
	if s.HandleTimeUpdate(300).OpenQuestion == nil {
		t.Fatal("Question must re-open after a failed attempt")
	}

	// Pass: barrier lifts.
	if !s.ResolveQuestion(q.ID, true) {
		t.Fatal("Pass must unblock playback")
	}
	res = s.HandleTimeUpdate(301)
	if res.Corrected {
		t.Fatal("Playback past the answered question must continue")
	}

	// Play through to the end in honest increments.
	for tick := 302.0; tick <= 600; tick += 1.5 {
		s.HandleTimeUpdate(tick)
	}

	watched, total, passed := s.GateInputs()
	if watched < 99 {
		t.Errorf("Expected ~100%% watched, got %.1f", watched)
	}
	if total != 1 || passed != 1 {
		t.Errorf("Expected 1/1 in-video questions passed, got %d/%d", passed, total)
	}
}

func TestSession_ReviewModeIsInert(t *testing.T) {
	q := inVideoQuestion(300)
	s := NewSession(uuid.New(), uuid.New(), videoLesson(600), []*models.Question{q}, 0, true)
	defer s.Close()

	// Free seeking, no overlay, even straight through the trigger.
	res := s.HandleTimeUpdate(300)
	if res.Corrected {
		t.Error("Review mode must not correct seeks")
	}
	if res.OpenQuestion != nil {
		t.Error("Review mode must not open questions")
	}

	res = s.HandleTimeUpdate(599)
	if res.Corrected {
		t.Error("Review mode must allow jumping to the end")
	}
}

func TestSession_ResumeSeedsFromPersistedPosition(t *testing.T) {
	s := NewSession(uuid.New(), uuid.New(), videoLesson(600), nil, 240, false)
	defer s.Close()

	res := s.HandleTimeUpdate(240)
	if res.Corrected {
		t.Fatal("Seeking to the persisted resume point must be allowed")
	}
	if res.WatchedPct != 40 {
		t.Errorf("Expected 40%% watched, got %.1f", res.WatchedPct)
	}
}

func TestSession_ClampReportedCapsInflatedHeartbeat(t *testing.T) {
	// 600s video, guard has only witnessed up to 100s of honest playback.
	s := NewSession(uuid.New(), uuid.New(), videoLesson(600), nil, 0, false)
	defer s.Close()
	for tick := 1.0; tick <= 100; tick += 1.5 {
		s.HandleTimeUpdate(tick)
	}

	// A forged end-of-video heartbeat must not get past the watermark, so
	// the persisted watched-percent can never jump to 100 without playback.
	clamped := s.ClampReported(600)
	if clamped > s.Watermark()+seekTolerance {
		t.Errorf("Inflated report must clamp to the watermark, got %.1f (watermark %.1f)", clamped, s.Watermark())
	}
	if clamped/600*100 >= 90 {
		t.Errorf("Clamped report must stay below the completion threshold, got %.1f%%", clamped/600*100)
	}

	// Honest reports pass through unchanged.
	if got := s.ClampReported(50); got != 50 {
		t.Errorf("Honest report must pass through, got %.1f", got)
	}
}

func TestSession_ClampReportedFreeInReviewMode(t *testing.T) {
	s := NewSession(uuid.New(), uuid.New(), videoLesson(600), nil, 0, true)
	defer s.Close()

	// Completed lessons allow free seeking; the resume point follows it.
	if got := s.ClampReported(550); got != 550 {
		t.Errorf("Review-mode report must pass through, got %.1f", got)
	}
}

func TestSession_CloseCancelsContext(t *testing.T) {
	s := NewSession(uuid.New(), uuid.New(), videoLesson(600), nil, 0, false)

	s.Close()
	select {
	case <-s.Context().Done():
	default:
		t.Error("Close must cancel the session context")
	}

	// Idempotent.
	s.Close()
}

func TestSession_AnsweredStateDiesWithSession(t *testing.T) {
	q := inVideoQuestion(300)
	s := NewSession(uuid.New(), uuid.New(), videoLesson(600), []*models.Question{q}, 299, false)
	s.HandleTimeUpdate(300)
	s.ResolveQuestion(q.ID, true)
	s.Close()

	// A remount starts with an empty answered set; the question re-arms.
	s2 := NewSession(uuid.New(), uuid.New(), videoLesson(600), []*models.Question{q}, 299, false)
	defer s2.Close()
	if s2.HandleTimeUpdate(300).OpenQuestion == nil {
		t.Error("Remounted session must re-gate unanswered questions")
	}
}
