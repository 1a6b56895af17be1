package power

import (
	"fmt"
	"time"

	"github.com/headline-goat/abpower/internal/stats"
	"github.com/headline-goat/abpower/internal/trial"
)

// State is the lifecycle position of one simulated trial.
type State int

const (
	StatePending State = iota
	StateGenerating
	StateExtracting
	StateTesting
	StateDetected
	StateNotDetected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateGenerating:
		return "generating"
	case StateExtracting:
		return "extracting"
	case StateTesting:
		return "testing"
	case StateDetected:
		return "detected"
	case StateNotDetected:
		return "not_detected"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateDetected || s == StateNotDetected || s == StateFailed
}

// TrialOutcome is the result of one simulated repeat at a grid point.
type TrialOutcome struct {
	Point    Point
	Run      int64
	Seed     int64
	Date     time.Time
	State    State
	Detected bool
	PValue   float64
	Reason   string
}

// reduce applies the result of the step running in o.State. A successful
// step advances to the next state; anything else fails the trial and keeps
// the stage and reason.
func reduce(o TrialOutcome, r trial.StepResult) TrialOutcome {
	if o.State.Terminal() {
		return o
	}
	if !r.Succeeded() {
		o.Reason = fmt.Sprintf("%s %s: %s", o.State, r.Status, r.Reason)
		o.State = StateFailed
		return o
	}

	switch o.State {
	case StatePending:
		o.State = StateGenerating
	case StateGenerating:
		o.State = StateExtracting
	case StateExtracting:
		o.State = StateTesting
	}
	return o
}

// conclude finishes a trial in StateTesting with the test result.
func conclude(o TrialOutcome, res stats.TestResult, alpha float64) TrialOutcome {
	if o.State != StateTesting {
		return o
	}
	o.PValue = res.PValue
	o.Detected = res.Significant(alpha)
	if o.Detected {
		o.State = StateDetected
	} else {
		o.State = StateNotDetected
	}
	return o
}

// selectArms picks the control and treatment counts out of an extraction.
func selectArms(arms map[string]stats.ArmCounts) (control, treatment stats.ArmCounts, res trial.StepResult) {
	if len(arms) < 2 {
		return control, treatment, trial.Failed(fmt.Sprintf("expected 2 arms, got %d", len(arms)))
	}
	control, okC := arms[trial.ArmControl]
	treatment, okT := arms[trial.ArmTreatment]
	if !okC || !okT {
		return control, treatment, trial.Failed(fmt.Sprintf("missing %q or %q arm", trial.ArmControl, trial.ArmTreatment))
	}
	return control, treatment, trial.OK()
}
