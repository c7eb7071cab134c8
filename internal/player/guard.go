package player

import "math"

const (
	// seekTolerance absorbs buffering jitter before a forward jump is
	// treated as a seek violation.
	seekTolerance = 2.0
	// barrierLeadIn keeps the watermark slightly short of an unanswered
	// question's trigger point so the overlay always fires before the
	// learner can pass it.
	barrierLeadIn = 0.5
)

// NoBarrier is the quiz barrier value when every in-video question has been
// answered.
var NoBarrier = math.Inf(1)

// GuardDecision is the outcome of feeding one time-update event to the guard.
type GuardDecision struct {
	// Violation is set when the reported position jumped past the allowed
	// ceiling. It is corrected, logged, and never surfaced as an error.
	Violation bool
	// ResetTo is the position playback must be forced back to. Only valid
	// when Violation is set.
	ResetTo float64
	// Watermark is the furthest legitimately reached position after this
	// event.
	Watermark float64
}

// PositionGuard enforces monotonic, quiz-gated viewing of a single video.
// It is not a security boundary: scoring and lock state stay authoritative
// on the other side regardless of what the player reports.
type PositionGuard struct {
	watermark  float64
	reviewMode bool
}

// NewPositionGuard seeds the watermark from the learner's persisted resume
// point. reviewMode disables all gating for already-completed lessons.
func NewPositionGuard(resumeFrom float64, reviewMode bool) *PositionGuard {
	if resumeFrom < 0 {
		resumeFrom = 0
	}
	return &PositionGuard{watermark: resumeFrom, reviewMode: reviewMode}
}

func (g *PositionGuard) Watermark() float64 { return g.watermark }

func (g *PositionGuard) ReviewMode() bool { return g.reviewMode }

// OnTimeUpdate applies one reported playback position against the current
// quiz barrier (trigger time of the nearest unanswered in-video question, or
// NoBarrier). The watermark never decreases and never crosses
// barrier−barrierLeadIn until the barrier question is answered.
func (g *PositionGuard) OnTimeUpdate(currentTime, quizBarrier float64) GuardDecision {
	if currentTime < 0 {
		currentTime = 0
	}

	if g.reviewMode {
		// Free seeking once the lesson is completed. The watermark still
		// only moves forward.
		if currentTime > g.watermark {
			g.watermark = currentTime
		}
		return GuardDecision{Watermark: g.watermark}
	}

	ceiling := g.watermark
	if barrierCap := quizBarrier - barrierLeadIn; barrierCap < ceiling {
		ceiling = barrierCap
	}

	if currentTime > ceiling+seekTolerance {
		return GuardDecision{Violation: true, ResetTo: ceiling, Watermark: g.watermark}
	}

	advance := currentTime
	if barrierCap := quizBarrier - barrierLeadIn; advance > barrierCap {
		advance = barrierCap
	}
	if advance > g.watermark {
		g.watermark = advance
	}
	return GuardDecision{Watermark: g.watermark}
}

// WatchedPercent converts the watermark to the percentage the gate consumes.
func (g *PositionGuard) WatchedPercent(durationSeconds int) float64 {
	if durationSeconds <= 0 {
		return 0
	}
	pct := g.watermark / float64(durationSeconds) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}
