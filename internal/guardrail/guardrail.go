package guardrail

import (
	"fmt"
	"math"
	"strconv"
)

// Tolerance absorbed at the boundary so that deltas computed from decimal
// inputs (0.92 - 0.917) still equal their threshold (0.003).
const boundaryEpsilon = 1e-9

// Outcome is the verdict for one guardrail.
type Outcome struct {
	Passed  bool
	Delta   float64
	Message string
}

// Evaluate checks treatment against baseline under rule. A relative rule
// with a zero baseline cannot be computed and fails with an explanatory
// message instead of an error.
func Evaluate(baseline, treatment float64, rule Rule) Outcome {
	threshold := rule.Threshold.Value
	unit := rule.Kind.Unit()

	switch rule.Kind {
	case MaxDropPP:
		delta := baseline - treatment
		passed := withinThreshold(delta, threshold)
		return Outcome{
			Passed: passed,
			Delta:  delta,
			Message: fmt.Sprintf("Drop of %.3f%s (baseline: %.3f, treatment: %.3f). Threshold: %s%s. %s",
				delta, unit, baseline, treatment, formatThreshold(threshold), unit, verdict(passed)),
		}

	case MaxDropPct:
		if baseline == 0 {
			return Outcome{Passed: false, Delta: math.NaN(), Message: "Cannot compute percent drop with baseline = 0"}
		}
		delta := (baseline - treatment) / baseline * 100
		passed := withinThreshold(delta, threshold)
		return Outcome{
			Passed: passed,
			Delta:  delta,
			Message: fmt.Sprintf("Drop of %.2f%s (baseline: %.2f, treatment: %.2f). Threshold: %s%s. %s",
				delta, unit, baseline, treatment, formatThreshold(threshold), unit, verdict(passed)),
		}

	case MaxIncreasePP:
		delta := treatment - baseline
		passed := withinThreshold(delta, threshold)
		return Outcome{
			Passed: passed,
			Delta:  delta,
			Message: fmt.Sprintf("Increase of %.3f%s (baseline: %.3f, treatment: %.3f). Threshold: %s%s. %s",
				delta, unit, baseline, treatment, formatThreshold(threshold), unit, verdict(passed)),
		}

	case MaxIncreaseMs:
		delta := treatment - baseline
		passed := withinThreshold(delta, threshold)
		return Outcome{
			Passed: passed,
			Delta:  delta,
			Message: fmt.Sprintf("Increase of %.1fms (baseline: %.1fms, treatment: %.1fms). Threshold: %sms. %s",
				delta, baseline, treatment, formatThreshold(threshold), verdict(passed)),
		}

	case MaxIncreasePct:
		if baseline == 0 {
			return Outcome{Passed: false, Delta: math.NaN(), Message: "Cannot compute percent increase with baseline = 0"}
		}
		delta := (treatment - baseline) / baseline * 100
		passed := withinThreshold(delta, threshold)
		return Outcome{
			Passed: passed,
			Delta:  delta,
			Message: fmt.Sprintf("Increase of %.2f%s (baseline: %.2f, treatment: %.2f). Threshold: %s%s. %s",
				delta, unit, baseline, treatment, formatThreshold(threshold), unit, verdict(passed)),
		}

	default:
		return Outcome{Passed: false, Delta: math.NaN(), Message: fmt.Sprintf("Unsupported rule kind: %s", rule.Kind)}
	}
}

// EvaluateMap parses a raw rule mapping and evaluates it.
func EvaluateMap(baseline, treatment float64, m map[string]float64) (Outcome, error) {
	rule, err := ParseRule(m)
	if err != nil {
		return Outcome{}, err
	}
	return Evaluate(baseline, treatment, rule), nil
}

func withinThreshold(delta, threshold float64) bool {
	return delta <= threshold+boundaryEpsilon*math.Max(1, math.Abs(threshold))
}

func formatThreshold(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func verdict(passed bool) string {
	if passed {
		return "PASS"
	}
	return "FAIL"
}
