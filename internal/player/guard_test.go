package player

import (
	"testing"
)

func TestGuard_NormalPlaybackAdvancesWatermark(t *testing.T) {
	g := NewPositionGuard(0, false)

	ticks := []float64{0.5, 1.0, 1.5, 2.0, 2.5}
	for _, tick := range ticks {
		d := g.OnTimeUpdate(tick, NoBarrier)
		if d.Violation {
			t.Fatalf("Unexpected violation at t=%.1f", tick)
		}
	}

	if g.Watermark() != 2.5 {
		t.Errorf("Expected watermark 2.5, got %.1f", g.Watermark())
	}
}

func TestGuard_ForwardSeekIsCorrected(t *testing.T) {
	g := NewPositionGuard(10, false)

	// Jump from 10 to 120: past watermark + tolerance.
	d := g.OnTimeUpdate(120, NoBarrier)
	if !d.Violation {
		t.Fatal("Expected seek violation")
	}
	if d.ResetTo != 10 {
		t.Errorf("Expected reset to 10, got %.1f", d.ResetTo)
	}
	if g.Watermark() != 10 {
		t.Errorf("Watermark moved on violation: got %.1f", g.Watermark())
	}
}

func TestGuard_JitterWithinToleranceAllowed(t *testing.T) {
	g := NewPositionGuard(10, false)

	// 11.9 is within the 2s tolerance of the watermark.
	d := g.OnTimeUpdate(11.9, NoBarrier)
	if d.Violation {
		t.Fatal("Jitter within tolerance should not be a violation")
	}
	if g.Watermark() != 11.9 {
		t.Errorf("Expected watermark 11.9, got %.1f", g.Watermark())
	}
}

func TestGuard_BackwardSeekIsFree(t *testing.T) {
	g := NewPositionGuard(50, false)

	d := g.OnTimeUpdate(5, NoBarrier)
	if d.Violation {
		t.Fatal("Rewatching earlier content must be allowed")
	}
	if g.Watermark() != 50 {
		t.Errorf("Watermark regressed: got %.1f", g.Watermark())
	}

	// After rewinding, forward seeking back to the watermark is fine.
	d = g.OnTimeUpdate(50, NoBarrier)
	if d.Violation {
		t.Fatal("Seeking back to the watermark must be allowed")
	}
}

func TestGuard_BarrierCapsWatermark(t *testing.T) {
	g := NewPositionGuard(298, false)

	// Unanswered question at t=300. Watermark must stop at 299.5.
	d := g.OnTimeUpdate(299, 300)
	if d.Violation {
		t.Fatal("Approaching the barrier is not a violation")
	}

	d = g.OnTimeUpdate(300.2, 300)
	if d.Violation {
		t.Fatal("Position within tolerance of the barrier cap should be corrected-free")
	}
	if g.Watermark() != 299.5 {
		t.Errorf("Watermark crossed the barrier: got %.1f", g.Watermark())
	}

	// A jump well past the barrier is a violation even though the watermark
	// alone would have allowed tolerance.
	d = g.OnTimeUpdate(320, 300)
	if !d.Violation {
		t.Fatal("Expected violation for seek past an unanswered question")
	}
	if d.ResetTo != 299.5 {
		t.Errorf("Expected reset to 299.5, got %.1f", d.ResetTo)
	}
}

func TestGuard_BarrierLiftsAfterAnswer(t *testing.T) {
	g := NewPositionGuard(299.5, false)

	// Barrier moves to the next question once the first is answered.
	d := g.OnTimeUpdate(301, 450)
	if d.Violation {
		t.Fatal("Playback past an answered question must continue")
	}
	if g.Watermark() != 301 {
		t.Errorf("Expected watermark 301, got %.1f", g.Watermark())
	}
}

func TestGuard_ReviewModeDisablesGating(t *testing.T) {
	g := NewPositionGuard(0, true)

	d := g.OnTimeUpdate(500, 300)
	if d.Violation {
		t.Fatal("Review mode must allow free seeking")
	}
	if g.Watermark() != 500 {
		t.Errorf("Expected watermark 500, got %.1f", g.Watermark())
	}

	// Watermark still never decreases.
	g.OnTimeUpdate(100, 300)
	if g.Watermark() != 500 {
		t.Errorf("Watermark regressed in review mode: got %.1f", g.Watermark())
	}
}

func TestGuard_ResumeSeedsWatermark(t *testing.T) {
	g := NewPositionGuard(240, false)

	if g.Watermark() != 240 {
		t.Fatalf("Expected seeded watermark 240, got %.1f", g.Watermark())
	}

	// Seeking anywhere up to the resume point is allowed on remount.
	d := g.OnTimeUpdate(240, NoBarrier)
	if d.Violation {
		t.Fatal("Seeking to the persisted resume point must be allowed")
	}
}

func TestGuard_WatchedPercent(t *testing.T) {
	tests := []struct {
		name      string
		watermark float64
		duration  int
		expected  float64
	}{
		{"halfway", 300, 600, 50},
		{"complete", 600, 600, 100},
		{"overshoot capped", 610, 600, 100},
		{"zero duration", 300, 0, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g := NewPositionGuard(tc.watermark, false)
			got := g.WatchedPercent(tc.duration)
			if got != tc.expected {
				t.Errorf("Expected %.1f%%, got %.1f%%", tc.expected, got)
			}
		})
	}
}

func TestGuard_NegativeInputClamped(t *testing.T) {
	g := NewPositionGuard(-5, false)
	if g.Watermark() != 0 {
		t.Errorf("Negative resume point should clamp to 0, got %.1f", g.Watermark())
	}

	d := g.OnTimeUpdate(-3, NoBarrier)
	if d.Violation {
		t.Fatal("Negative tick should clamp, not violate")
	}
}
