package pose

import "fmt"

// Outcome classifies how a verdict was reached.
type Outcome string

const (
	OutcomeCorrect      Outcome = "correct"
	OutcomeIncorrect    Outcome = "incorrect"
	OutcomeNotDetected  Outcome = "not_detected"
	OutcomeUnrecognized Outcome = "unrecognized"
)

// NotDetectedMessage is shown when no usable landmarks were found.
const NotDetectedMessage = "Position not detected"

// Verdict is the pass/fail result for one frame against one exercise.
type Verdict struct {
	Correct bool    `json:"is_correct"`
	Message string  `json:"message"`
	Detail  string  `json:"detail,omitempty"`
	Outcome Outcome `json:"outcome"`
}

// Correct builds a passing verdict for the named exercise.
func Correct(display, detail string) Verdict {
	return Verdict{
		Correct: true,
		Message: fmt.Sprintf("%s position is correct!", display),
		Detail:  detail,
		Outcome: OutcomeCorrect,
	}
}

// Incorrect builds a failing verdict for the named exercise.
func Incorrect(display, detail string) Verdict {
	return Verdict{
		Message: fmt.Sprintf("%s position is incorrect!", display),
		Detail:  detail,
		Outcome: OutcomeIncorrect,
	}
}

// NotDetected is the verdict for frames without a usable landmark set.
func NotDetected(detail string) Verdict {
	return Verdict{Message: NotDetectedMessage, Detail: detail, Outcome: OutcomeNotDetected}
}

// Unrecognized is the verdict for an exercise name with no rule.
func Unrecognized(name string) Verdict {
	return Verdict{
		Message: fmt.Sprintf("Unrecognized movement %q", name),
		Outcome: OutcomeUnrecognized,
	}
}

// Detected reports whether the verdict came from a real landmark set.
func (v Verdict) Detected() bool { return v.Outcome != OutcomeNotDetected }
