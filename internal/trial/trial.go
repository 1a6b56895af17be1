// Package trial defines the contract between the power grid runner and the
// collaborators that materialize and read one simulated experiment.
package trial

import (
	"context"
	"time"

	"github.com/headline-goat/abpower/internal/stats"
)

// Arm names shared by generators and extractors.
const (
	ArmControl   = "control"
	ArmTreatment = "treatment"
)

// DateLayout is the calendar date format used for trial dates.
const DateLayout = "2006-01-02"

// GenerateRequest describes one synthetic dataset.
type GenerateRequest struct {
	Date        time.Time
	Days        int
	UsersPerDay int
	Uplift      float64
	Seed        int64
	OutputDir   string
}

// StepStatus classifies how a collaborator step ended.
type StepStatus int

const (
	StepOK StepStatus = iota
	StepTimeout
	StepFailed
)

func (s StepStatus) String() string {
	switch s {
	case StepOK:
		return "ok"
	case StepTimeout:
		return "timeout"
	case StepFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// StepResult is the explicit outcome of a collaborator step.
type StepResult struct {
	Status StepStatus
	Reason string
}

func OK() StepResult { return StepResult{Status: StepOK} }

func Timeout(reason string) StepResult { return StepResult{Status: StepTimeout, Reason: reason} }

func Failed(reason string) StepResult { return StepResult{Status: StepFailed, Reason: reason} }

// FromContext turns a context error into a timeout or failure result, and
// returns ok=false when the context is still live.
func FromContext(ctx context.Context) (StepResult, bool) {
	switch ctx.Err() {
	case nil:
		return StepResult{}, false
	case context.DeadlineExceeded:
		return Timeout("deadline exceeded"), true
	default:
		return Failed("canceled"), true
	}
}

// Succeeded reports whether the step completed.
func (r StepResult) Succeeded() bool {
	return r.Status == StepOK
}

// ExtractResult carries the per-arm counts read for a trial date.
type ExtractResult struct {
	StepResult
	Arms map[string]stats.ArmCounts
}

// Generator materializes a dataset into req.OutputDir. Implementations must
// be deterministic in req and write nowhere else.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) StepResult
}

// Extractor reads per-arm counts for date from a generated dataset.
type Extractor interface {
	ExtractArmCounts(ctx context.Context, dir string, date time.Time) ExtractResult
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req GenerateRequest) StepResult

func (f GeneratorFunc) Generate(ctx context.Context, req GenerateRequest) StepResult {
	return f(ctx, req)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(ctx context.Context, dir string, date time.Time) ExtractResult

func (f ExtractorFunc) ExtractArmCounts(ctx context.Context, dir string, date time.Time) ExtractResult {
	return f(ctx, dir, date)
}
