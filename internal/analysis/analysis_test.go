package analysis_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/headline-goat/abpower/internal/analysis"
	"github.com/headline-goat/abpower/internal/config"
	"github.com/headline-goat/abpower/internal/guardrail"
	"github.com/headline-goat/abpower/internal/simulate"
	"github.com/headline-goat/abpower/internal/store"
	"github.com/headline-goat/abpower/internal/trial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rule(kind guardrail.Kind, v float64) *guardrail.Rule {
	r := guardrail.NewRule(kind, v)
	return &r
}

func openStore(t *testing.T, path string) *store.SQLiteStore {
	t.Helper()
	s, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// simulatedWarehouse generates one day with a strong treatment effect.
func simulatedWarehouse(t *testing.T) *store.SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	gen := simulate.NewInProcess(simulate.Options{})
	res := gen.Generate(context.Background(), trial.GenerateRequest{
		Date:        time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		Days:        1,
		UsersPerDay: 4000,
		Uplift:      0.3,
		Seed:        1,
		OutputDir:   dir,
	})
	require.True(t, res.Succeeded(), res.Reason)
	return openStore(t, filepath.Join(dir, simulate.WarehouseFile))
}

func smallWarehouse(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s := openStore(t, filepath.Join(t.TempDir(), "small.db"))

	at := time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)
	ev := func(typ store.EventType, variant, user string) store.Event {
		return store.Event{Type: typ, Date: "2025-02-01", Variant: variant, UserID: user, OccurredAt: at}
	}
	order := func(variant, user string, amount float64) store.Event {
		e := ev(store.EventOrderCompleted, variant, user)
		e.Amount = amount
		return e
	}
	events := []store.Event{
		ev(store.EventAddToCart, "control", "u1"),
		ev(store.EventAddToCart, "control", "u2"),
		ev(store.EventAddToCart, "control", "u3"),
		order("control", "u1", 40),
		ev(store.EventAddToCart, "treatment", "u4"),
		ev(store.EventAddToCart, "treatment", "u5"),
		order("treatment", "u4", 60),
		order("treatment", "u5", 80),
		{Type: store.EventAddToCart, Date: "2025-01-31", Variant: "control", UserID: "u9", OccurredAt: at},
	}
	require.NoError(t, s.InsertEvents(context.Background(), events))
	return s
}

func TestAnalyze_ShipsClearWinner(t *testing.T) {
	s := simulatedWarehouse(t)

	exp := config.DefaultExperiment()
	exp.Guardrails = config.Guardrails{
		PaymentAuth: rule(guardrail.MaxDropPP, 1),
		AOV:         rule(guardrail.MaxDropPct, 10),
		StepLatency: rule(guardrail.MaxIncreaseMs, 75),
	}

	r, err := analysis.Analyze(context.Background(), s, "2025-04-01", exp)
	require.NoError(t, err)

	assert.True(t, r.Significant)
	assert.Greater(t, r.Test.EffectAbs, 0.0)
	require.Len(t, r.Guardrails, 3)
	for _, g := range r.Guardrails {
		require.NotNil(t, g.Outcome, g.Name)
		assert.True(t, g.Outcome.Passed, "%s: %s", g.Name, g.Outcome.Message)
	}
	assert.True(t, r.GuardrailsPassed())
	assert.Equal(t, analysis.Ship, r.Decision)

	assert.LessOrEqual(t, r.ControlCI.CILow, r.ControlCI.Rate)
	assert.GreaterOrEqual(t, r.ControlCI.CIHigh, r.ControlCI.Rate)
}

func TestAnalyze_GuardrailFailureBlocksShip(t *testing.T) {
	s := simulatedWarehouse(t)

	exp := config.DefaultExperiment()
	// Treatment authorizes every payment, a jump of several points.
	exp.Guardrails.PaymentAuth = rule(guardrail.MaxIncreasePP, 1)

	r, err := analysis.Analyze(context.Background(), s, "2025-04-01", exp)
	require.NoError(t, err)

	assert.True(t, r.Significant)
	pay := r.Guardrails[0]
	require.NotNil(t, pay.Outcome)
	assert.False(t, pay.Outcome.Passed)
	assert.Greater(t, pay.Outcome.Delta, 1.0)
	assert.Contains(t, pay.Outcome.Message, "FAIL")
	assert.Equal(t, analysis.DoNotShip, r.Decision)
}

func TestAnalyze_SmallSample(t *testing.T) {
	s := smallWarehouse(t)

	r, err := analysis.Analyze(context.Background(), s, "", config.DefaultExperiment())
	require.NoError(t, err)

	assert.Equal(t, "2025-02-01", r.Date)
	assert.Equal(t, 1, r.Control.Successes)
	assert.Equal(t, 3, r.Control.Total)
	assert.Equal(t, 2, r.Treatment.Successes)
	assert.Equal(t, 2, r.Treatment.Total)
	assert.False(t, r.Significant)
	assert.InDelta(t, 0.136, r.Test.PValue, 0.005)

	for _, g := range r.Guardrails {
		assert.Nil(t, g.Outcome, g.Name)
		assert.True(t, g.Passed())
	}
	aov := r.Guardrails[1]
	assert.False(t, aov.Control.OK)
	assert.True(t, aov.Treatment.OK)
	assert.Equal(t, 70.0, aov.Treatment.Value)

	assert.Equal(t, analysis.DoNotShip, r.Decision)
}

func TestAnalyze_InsufficientGuardrailData(t *testing.T) {
	s := smallWarehouse(t)

	exp := config.DefaultExperiment()
	exp.Guardrails.AOV = rule(guardrail.MaxDropPct, 5)

	r, err := analysis.Analyze(context.Background(), s, "2025-02-01", exp)
	require.NoError(t, err)

	aov := r.Guardrails[1]
	require.NotNil(t, aov.Outcome)
	assert.False(t, aov.Outcome.Passed)
	assert.Contains(t, aov.Outcome.Message, "Insufficient data")
	assert.False(t, r.GuardrailsPassed())
}

func TestAnalyze_MissingArm(t *testing.T) {
	s := smallWarehouse(t)

	_, err := analysis.Analyze(context.Background(), s, "2025-01-31", config.DefaultExperiment())
	assert.ErrorIs(t, err, analysis.ErrMissingArm)
}

func TestAnalyze_EmptyWarehouse(t *testing.T) {
	s := openStore(t, filepath.Join(t.TempDir(), "empty.db"))

	_, err := analysis.Analyze(context.Background(), s, "", config.DefaultExperiment())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDecide(t *testing.T) {
	assert.Equal(t, analysis.Ship, analysis.Decide(true, true))
	assert.Equal(t, analysis.DoNotShip, analysis.Decide(true, false))
	assert.Equal(t, analysis.DoNotShip, analysis.Decide(false, true))
	assert.Equal(t, analysis.DoNotShip, analysis.Decide(false, false))
}
