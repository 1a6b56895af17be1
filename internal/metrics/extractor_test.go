package metrics_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/headline-goat/abpower/internal/metrics"
	"github.com/headline-goat/abpower/internal/simulate"
	"github.com/headline-goat/abpower/internal/store"
	"github.com/headline-goat/abpower/internal/trial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func writeWarehouse(t *testing.T, dir string, events []store.Event) {
	t.Helper()
	s, err := store.Open(filepath.Join(dir, simulate.WarehouseFile))
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.InsertEvents(context.Background(), events))
}

func event(typ store.EventType, variant, user string) store.Event {
	return store.Event{Type: typ, Date: "2025-03-10", Variant: variant, UserID: user, OccurredAt: day}
}

func TestSQLiteExtractor_TwoArms(t *testing.T) {
	dir := t.TempDir()
	writeWarehouse(t, dir, []store.Event{
		event(store.EventAddToCart, "control", "a"),
		event(store.EventAddToCart, "control", "b"),
		event(store.EventOrderCompleted, "control", "a"),
		event(store.EventAddToCart, "treatment", "c"),
	})

	res := metrics.SQLiteExtractor{}.ExtractArmCounts(context.Background(), dir, day)
	require.True(t, res.Succeeded(), res.Reason)

	assert.Equal(t, 1, res.Arms[trial.ArmControl].Successes)
	assert.Equal(t, 2, res.Arms[trial.ArmControl].Total)
	assert.Equal(t, 0, res.Arms[trial.ArmTreatment].Successes)
	assert.Equal(t, 1, res.Arms[trial.ArmTreatment].Total)
}

func TestSQLiteExtractor_OneArmFails(t *testing.T) {
	dir := t.TempDir()
	writeWarehouse(t, dir, []store.Event{event(store.EventAddToCart, "control", "a")})

	res := metrics.SQLiteExtractor{}.ExtractArmCounts(context.Background(), dir, day)
	assert.Equal(t, trial.StepFailed, res.Status)
	assert.Contains(t, res.Reason, "expected 2 arms, got 1")
}

func TestSQLiteExtractor_WrongDate(t *testing.T) {
	dir := t.TempDir()
	writeWarehouse(t, dir, []store.Event{
		event(store.EventAddToCart, "control", "a"),
		event(store.EventAddToCart, "treatment", "b"),
	})

	res := metrics.SQLiteExtractor{}.ExtractArmCounts(context.Background(), dir, day.AddDate(0, 0, 1))
	assert.Equal(t, trial.StepFailed, res.Status)
}

func TestSQLiteExtractor_MissingWarehouse(t *testing.T) {
	res := metrics.SQLiteExtractor{}.ExtractArmCounts(context.Background(), t.TempDir(), day)
	assert.Equal(t, trial.StepFailed, res.Status)
	assert.Contains(t, res.Reason, "warehouse not found")
}

func TestGuardrails(t *testing.T) {
	dir := t.TempDir()
	pay := func(variant string, ok bool) store.Event {
		e := event(store.EventPaymentAttempt, variant, "")
		e.Authorized = ok
		return e
	}
	order := func(variant string, amount float64) store.Event {
		e := event(store.EventOrderCompleted, variant, "")
		e.Amount = amount
		return e
	}
	step := func(variant string, ms int) store.Event {
		e := event(store.EventCheckoutStepView, variant, "")
		e.LatencyMs = ms
		return e
	}
	writeWarehouse(t, dir, []store.Event{
		pay("control", true), pay("control", false), pay("treatment", true),
		order("control", 10), order("treatment", 20), order("treatment", 30),
		step("control", 400), step("treatment", 500),
	})

	s, err := store.Open(filepath.Join(dir, simulate.WarehouseFile))
	require.NoError(t, err)
	defer s.Close()

	g, err := metrics.Guardrails(context.Background(), s, "2025-03-10")
	require.NoError(t, err)

	assert.Equal(t, 2, g[trial.ArmControl].PaymentAttempts)
	assert.Equal(t, 1, g[trial.ArmControl].PaymentAuthorized)
	assert.Equal(t, []float64{20, 30}, g[trial.ArmTreatment].OrderValues)
	assert.Equal(t, []float64{400}, g[trial.ArmControl].StepLatencies)
}
