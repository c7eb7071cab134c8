package progress

import (
	"fmt"

	"github.com/Adjaraux/academy-backend/internal/models"
)

// completionThreshold is the watch percentage at which a video lesson
// becomes completable.
const completionThreshold = 90.0

// GateInputs are the signals the gate combines for one lesson. Watch
// percentage and answered counts come from the playback session; QuizPassed
// from the attempt record.
type GateInputs struct {
	WatchedPercent  float64
	InVideoTotal    int
	InVideoPassed   int
	QuizPassed      bool
	AlreadyComplete bool
}

// Verdict is the gate's decision on the "mark complete" action.
type Verdict struct {
	CanComplete bool   `json:"can_complete"`
	Reason      string `json:"reason,omitempty"`
}

// Evaluate decides whether the lesson may be marked complete. Lock state of
// other lessons is deliberately not inferred here; the authoritative
// ordering lives server-side in the lockstate service and is only enforced
// at navigation time.
func Evaluate(lessonType models.LessonType, in GateInputs) Verdict {
	if in.AlreadyComplete {
		// Un-completing is always allowed; re-completing is a no-op.
		return Verdict{CanComplete: true}
	}

	switch lessonType {
	case models.LessonVideo:
		if in.WatchedPercent < completionThreshold {
			return Verdict{Reason: fmt.Sprintf("watched %.0f%% of %.0f%% required", in.WatchedPercent, completionThreshold)}
		}
		if in.InVideoPassed < in.InVideoTotal {
			return Verdict{Reason: fmt.Sprintf("%d of %d in-video questions answered", in.InVideoPassed, in.InVideoTotal)}
		}
		return Verdict{CanComplete: true}
	case models.LessonText, models.LessonPDF:
		// Self-declared.
		return Verdict{CanComplete: true}
	case models.LessonQuiz:
		if !in.QuizPassed {
			return Verdict{Reason: "quiz not passed yet"}
		}
		return Verdict{CanComplete: true}
	default:
		return Verdict{Reason: fmt.Sprintf("unknown lesson type %q", lessonType)}
	}
}
