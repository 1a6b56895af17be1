package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/headline-goat/abpower/internal/config"
	"github.com/headline-goat/abpower/internal/guardrail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const presetsYAML = `
presets:
  quick_smoke:
    description: Fast check
    days: 1
    users_per_day: [1000, 2000]
    uplifts: [0.0, 0.05]
    repeats: 5
    seed: 7
  full_demo:
    users_per_day: [5000]
    uplifts: [0.02]
    alpha: 0.01
    power_target: 0.8
`

func TestParsePresets(t *testing.T) {
	p, err := config.ParsePresets([]byte(presetsYAML))
	require.NoError(t, err)
	assert.Equal(t, []string{"full_demo", "quick_smoke"}, p.Names())

	smoke, err := p.Preset("quick_smoke")
	require.NoError(t, err)
	assert.Equal(t, "Fast check", smoke.Description)
	assert.Equal(t, []int{1000, 2000}, smoke.UsersPerDay)
	assert.Equal(t, []float64{0.0, 0.05}, smoke.Uplifts)
	assert.Equal(t, 5, smoke.Repeats)
	require.NotNil(t, smoke.Seed)
	assert.Equal(t, int64(7), *smoke.Seed)
	assert.Nil(t, smoke.PowerTarget)

	demo, err := p.Preset("full_demo")
	require.NoError(t, err)
	assert.Equal(t, 0.01, demo.Alpha)
	require.NotNil(t, demo.PowerTarget)
	assert.Equal(t, 0.8, *demo.PowerTarget)
	assert.Nil(t, demo.Seed)
	assert.Zero(t, demo.Days)
}

func TestPreset_Unknown(t *testing.T) {
	p, err := config.ParsePresets([]byte(presetsYAML))
	require.NoError(t, err)

	_, err = p.Preset("nope")
	assert.True(t, errors.Is(err, config.ErrUnknownPreset))
	assert.Contains(t, err.Error(), "Available presets: full_demo, quick_smoke")
}

func TestParsePresets_MissingKey(t *testing.T) {
	_, err := config.ParsePresets([]byte("other: {}\n"))
	assert.ErrorContains(t, err, "missing 'presets' key")
}

func TestLoadPresets_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.yml")
	require.NoError(t, os.WriteFile(path, []byte(presetsYAML), 0o644))

	p, err := config.LoadPresets(path)
	require.NoError(t, err)
	assert.Len(t, p.Presets, 2)

	_, err = config.LoadPresets(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

func TestParseExperiment(t *testing.T) {
	data := []byte(`
experiment:
  name: express_checkout
  alpha: 0.01
  mde_abs: 0.02
  guardrails:
    payment_auth:
      max_drop_pp: 0.005
    aov:
      max_drop_pct: 2
    step_latency:
      max_increase_ms: 75
`)
	exp, err := config.ParseExperiment(data)
	require.NoError(t, err)

	assert.Equal(t, "express_checkout", exp.Name)
	assert.Equal(t, 0.01, exp.Alpha)
	require.NotNil(t, exp.MDE)
	assert.Equal(t, 0.02, *exp.MDE)

	require.NotNil(t, exp.Guardrails.PaymentAuth)
	assert.Equal(t, guardrail.NewRule(guardrail.MaxDropPP, 0.005), *exp.Guardrails.PaymentAuth)
	require.NotNil(t, exp.Guardrails.AOV)
	assert.Equal(t, guardrail.NewRule(guardrail.MaxDropPct, 2), *exp.Guardrails.AOV)
	require.NotNil(t, exp.Guardrails.StepLatency)
	assert.Equal(t, guardrail.NewRule(guardrail.MaxIncreaseMs, 75), *exp.Guardrails.StepLatency)
}

func TestParseExperiment_Defaults(t *testing.T) {
	exp, err := config.ParseExperiment([]byte("experiment:\n  name: x\n"))
	require.NoError(t, err)
	assert.Equal(t, 0.05, exp.Alpha)
	assert.Nil(t, exp.MDE)
	assert.Nil(t, exp.Guardrails.AOV)
}

func TestParseExperiment_Invalid(t *testing.T) {
	_, err := config.ParseExperiment([]byte("experiment:\n  alpha: 1.5\n"))
	assert.Error(t, err)

	_, err = config.ParseExperiment([]byte("experiment:\n  guardrails:\n    aov:\n      min_delta: 2\n"))
	assert.ErrorIs(t, err, guardrail.ErrUnrecognizedRule)

	_, err = config.ParseExperiment([]byte("experiment:\n  guardrails:\n    aov:\n      max_drop_pct: 2\n      max_drop_pp: 1\n"))
	assert.ErrorIs(t, err, guardrail.ErrAmbiguousRule)
}

func TestEnv(t *testing.T) {
	t.Setenv("ABP_TEST_VALUE", "set")
	assert.Equal(t, "set", config.Env("ABP_TEST_VALUE", "default"))

	t.Setenv("ABP_TEST_VALUE", "")
	assert.Equal(t, "default", config.Env("ABP_TEST_VALUE", "default"))
}

func TestLoadDotenv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("ABP_DOTENV_A=from_file\nABP_DOTENV_B=from_file\n"), 0o644))

	t.Setenv("ABP_DOTENV_B", "from_env")
	t.Setenv("ABP_DOTENV_A", "")
	os.Unsetenv("ABP_DOTENV_A")

	require.NoError(t, config.LoadDotenv(path))
	assert.Equal(t, "from_file", os.Getenv("ABP_DOTENV_A"))
	assert.Equal(t, "from_env", os.Getenv("ABP_DOTENV_B"))

	assert.NoError(t, config.LoadDotenv(filepath.Join(dir, "missing.env")))
}
