// Package analysis evaluates a finished experiment: the checkout conversion
// test, its guardrails and the ship decision.
package analysis

import (
	"context"
	"errors"
	"fmt"

	"github.com/headline-goat/abpower/internal/config"
	"github.com/headline-goat/abpower/internal/guardrail"
	"github.com/headline-goat/abpower/internal/metrics"
	"github.com/headline-goat/abpower/internal/stats"
	"github.com/headline-goat/abpower/internal/store"
	"github.com/headline-goat/abpower/internal/trial"
)

var ErrMissingArm = errors.New("missing experiment arm")

type Decision string

const (
	Ship      Decision = "SHIP"
	DoNotShip Decision = "DO NOT SHIP"
)

// Estimate is one arm's value of a metric with its interval.
type Estimate struct {
	Value  float64
	CILow  float64
	CIHigh float64
	N      int
	OK     bool // false when the arm had too little data
}

// Metric tells how a guardrail value is measured.
type Metric int

const (
	RateMetric     Metric = iota // proportion in [0,1]
	CurrencyMetric               // mean amount
	LatencyMetric                // mean milliseconds
)

// GuardrailReport is the comparison of one secondary metric.
type GuardrailReport struct {
	Name      string
	Metric    Metric
	Control   Estimate
	Treatment Estimate
	Rule      *guardrail.Rule
	Outcome   *guardrail.Outcome // nil when no rule is configured
}

// Passed reports whether the guardrail holds. Unconfigured guardrails pass.
func (g GuardrailReport) Passed() bool {
	return g.Outcome == nil || g.Outcome.Passed
}

// Report is the full analysis for one date.
type Report struct {
	Experiment  string
	Date        string
	Alpha       float64
	MDE         *float64
	Control     stats.ArmCounts
	Treatment   stats.ArmCounts
	ControlCI   stats.ProportionInterval
	TreatmentCI stats.ProportionInterval
	Test        stats.TestResult
	Significant bool
	Guardrails  []GuardrailReport
	Decision    Decision
}

// GuardrailsPassed reports whether every configured guardrail held.
func (r *Report) GuardrailsPassed() bool {
	for _, g := range r.Guardrails {
		if !g.Passed() {
			return false
		}
	}
	return true
}

// Analyze builds the report for date, or for the most recent date in s when
// date is empty.
func Analyze(ctx context.Context, s store.Store, date string, exp config.Experiment) (*Report, error) {
	if date == "" {
		latest, err := s.MostRecentDate(ctx)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, fmt.Errorf("no events in warehouse: %w", err)
			}
			return nil, err
		}
		date = latest
	}

	arms, err := metrics.ArmCounts(ctx, s, date)
	if err != nil {
		return nil, fmt.Errorf("failed to load arm counts: %w", err)
	}
	control, ok := arms[trial.ArmControl]
	if !ok {
		return nil, fmt.Errorf("%w: %s on %s", ErrMissingArm, trial.ArmControl, date)
	}
	treatment, ok := arms[trial.ArmTreatment]
	if !ok {
		return nil, fmt.Errorf("%w: %s on %s", ErrMissingArm, trial.ArmTreatment, date)
	}

	r := &Report{
		Experiment: exp.Name,
		Date:       date,
		Alpha:      exp.Alpha,
		MDE:        exp.MDE,
		Control:    control,
		Treatment:  treatment,
	}

	r.Test, err = stats.TwoProportionTest(control, treatment, exp.Alpha)
	if err != nil {
		return nil, fmt.Errorf("conversion test: %w", err)
	}
	r.Significant = r.Test.Significant(exp.Alpha)

	if r.ControlCI, err = stats.WilsonInterval(control.Successes, control.Total, exp.Alpha); err != nil {
		return nil, fmt.Errorf("control interval: %w", err)
	}
	if r.TreatmentCI, err = stats.WilsonInterval(treatment.Successes, treatment.Total, exp.Alpha); err != nil {
		return nil, fmt.Errorf("treatment interval: %w", err)
	}

	gr, err := metrics.Guardrails(ctx, s, date)
	if err != nil {
		return nil, fmt.Errorf("failed to load guardrail metrics: %w", err)
	}
	c, t := gr[trial.ArmControl], gr[trial.ArmTreatment]

	r.Guardrails = []GuardrailReport{
		compare("Payment Authorization Rate", RateMetric,
			proportionEstimate(c.PaymentAuthorized, c.PaymentAttempts, exp.Alpha),
			proportionEstimate(t.PaymentAuthorized, t.PaymentAttempts, exp.Alpha),
			exp.Guardrails.PaymentAuth),
		compare("Average Order Value", CurrencyMetric,
			meanEstimate(c.OrderValues, exp.Alpha),
			meanEstimate(t.OrderValues, exp.Alpha),
			exp.Guardrails.AOV),
		compare("Checkout Step Latency", LatencyMetric,
			meanEstimate(c.StepLatencies, exp.Alpha),
			meanEstimate(t.StepLatencies, exp.Alpha),
			exp.Guardrails.StepLatency),
	}

	r.Decision = Decide(r.Significant, r.GuardrailsPassed())
	return r, nil
}

// Decide ships only a significant result whose guardrails all hold.
func Decide(significant, guardrailsPassed bool) Decision {
	if significant && guardrailsPassed {
		return Ship
	}
	return DoNotShip
}

func compare(name string, metric Metric, control, treatment Estimate, rule *guardrail.Rule) GuardrailReport {
	g := GuardrailReport{Name: name, Metric: metric, Control: control, Treatment: treatment, Rule: rule}
	if rule == nil {
		return g
	}

	if !control.OK || !treatment.OK {
		g.Outcome = &guardrail.Outcome{Passed: false, Message: "Insufficient data to evaluate guardrail"}
		return g
	}

	// Rates are proportions; percentage-point rules compare them on the 0-100 scale.
	scale := 1.0
	if rule.Threshold.Unit == guardrail.PercentagePoints {
		scale = 100
	}
	out := guardrail.Evaluate(control.Value*scale, treatment.Value*scale, *rule)
	g.Outcome = &out
	return g
}

func proportionEstimate(successes, total int, alpha float64) Estimate {
	ci, err := stats.ProportionCI(successes, total, alpha)
	if err != nil {
		return Estimate{N: total}
	}
	return Estimate{Value: ci.Rate, CILow: ci.CILow, CIHigh: ci.CIHigh, N: total, OK: true}
}

func meanEstimate(values []float64, alpha float64) Estimate {
	ci, err := stats.MeanCI(values, alpha)
	if err != nil {
		return Estimate{N: len(values)}
	}
	return Estimate{Value: ci.Mean, CILow: ci.CILow, CIHigh: ci.CIHigh, N: ci.N, OK: true}
}
