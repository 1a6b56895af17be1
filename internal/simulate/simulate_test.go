package simulate_test

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/headline-goat/abpower/internal/simulate"
	"github.com/headline-goat/abpower/internal/store"
	"github.com/headline-goat/abpower/internal/trial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

func armStats(t *testing.T, dir string, date string) []store.ArmStats {
	t.Helper()
	s, err := store.Open(filepath.Join(dir, simulate.WarehouseFile))
	require.NoError(t, err)
	defer s.Close()

	stats, err := s.GetArmStats(context.Background(), date)
	require.NoError(t, err)
	return stats
}

func TestAssignVariant_DeterministicAndBalanced(t *testing.T) {
	treatment := 0
	for i := 0; i < 4000; i++ {
		id := simulate.UserID(day, i)
		v := simulate.AssignVariant(id)
		assert.Equal(t, v, simulate.AssignVariant(id))
		if v == trial.ArmTreatment {
			treatment++
		}
	}
	assert.InDelta(t, 2000, treatment, 200)
}

func TestUserID(t *testing.T) {
	assert.Equal(t, "user_2025-02-01_000042", simulate.UserID(day, 42))
}

func TestInProcess_SameSeedSameData(t *testing.T) {
	g := simulate.NewInProcess(simulate.Options{})
	req := trial.GenerateRequest{Date: day, Days: 1, UsersPerDay: 500, Uplift: 0.05, Seed: 11}

	dirA, dirB := t.TempDir(), t.TempDir()
	req.OutputDir = dirA
	require.True(t, g.Generate(context.Background(), req).Succeeded())
	req.OutputDir = dirB
	require.True(t, g.Generate(context.Background(), req).Succeeded())

	assert.Equal(t, armStats(t, dirA, "2025-02-01"), armStats(t, dirB, "2025-02-01"))
}

func TestInProcess_MultipleDays(t *testing.T) {
	g := simulate.NewInProcess(simulate.Options{})
	dir := t.TempDir()

	summaries, err := g.Run(context.Background(), trial.GenerateRequest{
		Date: day, Days: 3, UsersPerDay: 200, Seed: 3, OutputDir: dir,
	})
	require.NoError(t, err)
	require.Len(t, summaries, 3)

	assert.Equal(t, "2025-02-03", summaries[2].Date)
	for _, s := range summaries {
		assert.Equal(t, 200, s.Control+s.Treatment)
		assert.Equal(t, 200, s.Events[store.EventAddToCart])
	}

	arms := armStats(t, dir, "2025-02-02")
	require.Len(t, arms, 2)
	assert.Equal(t, 200, arms[0].Adders+arms[1].Adders)
}

func TestInProcess_UpliftRaisesTreatmentConversion(t *testing.T) {
	g := simulate.NewInProcess(simulate.Options{})
	dir := t.TempDir()

	_, err := g.Run(context.Background(), trial.GenerateRequest{
		Date: day, Days: 1, UsersPerDay: 6000, Uplift: 0.10, Seed: 5, OutputDir: dir,
	})
	require.NoError(t, err)

	arms := armStats(t, dir, "2025-02-01")
	require.Len(t, arms, 2)
	control, treatment := arms[0], arms[1]
	require.Equal(t, trial.ArmControl, control.Variant)

	controlRate := float64(control.Orderers) / float64(control.Adders)
	treatmentRate := float64(treatment.Orderers) / float64(treatment.Adders)
	assert.Greater(t, treatmentRate, controlRate)
}

func TestInProcess_AAModeIgnoresUplift(t *testing.T) {
	req := trial.GenerateRequest{Date: day, Days: 1, UsersPerDay: 300, Uplift: 0.5, Seed: 9}

	aa := simulate.NewInProcess(simulate.Options{AA: true})
	req.OutputDir = t.TempDir()
	require.True(t, aa.Generate(context.Background(), req).Succeeded())
	withAA := armStats(t, req.OutputDir, "2025-02-01")

	plain := simulate.NewInProcess(simulate.Options{})
	req.Uplift = 0
	req.OutputDir = t.TempDir()
	require.True(t, plain.Generate(context.Background(), req).Succeeded())

	assert.Equal(t, armStats(t, req.OutputDir, "2025-02-01"), withAA)
}

func TestInProcess_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := simulate.NewInProcess(simulate.Options{}).Generate(ctx, trial.GenerateRequest{
		Date: day, Days: 1, UsersPerDay: 100, Seed: 1, OutputDir: t.TempDir(),
	})
	assert.Equal(t, trial.StepFailed, res.Status)
	assert.Equal(t, "canceled", res.Reason)
}

func TestInProcess_InvalidRequest(t *testing.T) {
	res := simulate.NewInProcess(simulate.Options{}).Generate(context.Background(), trial.GenerateRequest{
		Date: day, Days: 0, UsersPerDay: 100, OutputDir: t.TempDir(),
	})
	assert.Equal(t, trial.StepFailed, res.Status)
	assert.Contains(t, res.Reason, "days")
}

func TestExec_NonZeroExit(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}

	g := &simulate.Exec{Path: "/bin/sh", Args: []string{"-c", "echo boom >&2; exit 3", "sh"}}
	res := g.Generate(context.Background(), trial.GenerateRequest{Date: day, Days: 1, UsersPerDay: 1, OutputDir: t.TempDir()})

	assert.Equal(t, trial.StepFailed, res.Status)
	assert.Contains(t, res.Reason, "exit code 3")
	assert.Contains(t, res.Reason, "boom")
}

func TestExec_Timeout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	g := &simulate.Exec{Path: "/bin/sh", Args: []string{"-c", "sleep 10", "sh"}}
	res := g.Generate(ctx, trial.GenerateRequest{Date: day, Days: 1, UsersPerDay: 1, OutputDir: t.TempDir()})

	assert.Equal(t, trial.StepTimeout, res.Status)
}

func TestExec_Success(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}

	g := &simulate.Exec{Path: "/bin/sh", Args: []string{"-c", "exit 0", "sh"}}
	res := g.Generate(context.Background(), trial.GenerateRequest{Date: day, Days: 1, UsersPerDay: 1, OutputDir: t.TempDir()})
	assert.True(t, res.Succeeded())
}
