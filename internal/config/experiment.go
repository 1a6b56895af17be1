package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/headline-goat/abpower/internal/guardrail"
)

const defaultAlpha = 0.05

// Experiment is the analysis configuration of one experiment.
type Experiment struct {
	Name       string     `yaml:"name"`
	Alpha      float64    `yaml:"alpha"`
	MDE        *float64   `yaml:"mde_abs"`
	Guardrails Guardrails `yaml:"guardrails"`
}

// Guardrails holds the optional rule for each secondary metric.
type Guardrails struct {
	PaymentAuth *guardrail.Rule `yaml:"payment_auth"`
	AOV         *guardrail.Rule `yaml:"aov"`
	StepLatency *guardrail.Rule `yaml:"step_latency"`
}

type experimentFile struct {
	Experiment Experiment `yaml:"experiment"`
}

// DefaultExperiment is used when no experiment file is present.
func DefaultExperiment() Experiment {
	return Experiment{Alpha: defaultAlpha}
}

func LoadExperiment(path string) (Experiment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Experiment{}, fmt.Errorf("failed to read experiment config: %w", err)
	}
	return ParseExperiment(data)
}

func ParseExperiment(data []byte) (Experiment, error) {
	var f experimentFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Experiment{}, fmt.Errorf("failed to parse experiment config: %w", err)
	}

	exp := f.Experiment
	if exp.Alpha == 0 {
		exp.Alpha = defaultAlpha
	}
	if !(exp.Alpha > 0 && exp.Alpha < 1) {
		return Experiment{}, fmt.Errorf("experiment alpha must be in (0,1), got %v", exp.Alpha)
	}
	return exp, nil
}
