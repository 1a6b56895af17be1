// Package metrics reads experiment aggregates out of a checkout warehouse.
package metrics

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/headline-goat/abpower/internal/simulate"
	"github.com/headline-goat/abpower/internal/stats"
	"github.com/headline-goat/abpower/internal/store"
	"github.com/headline-goat/abpower/internal/trial"
)

// ArmCounts maps each variant to its conversion counts:
// distinct orderers out of distinct users who added to cart.
func ArmCounts(ctx context.Context, s store.Store, date string) (map[string]stats.ArmCounts, error) {
	rows, err := s.GetArmStats(ctx, date)
	if err != nil {
		return nil, err
	}

	arms := make(map[string]stats.ArmCounts, len(rows))
	for _, r := range rows {
		arms[r.Variant] = stats.ArmCounts{Successes: r.Orderers, Total: r.Adders}
	}
	return arms, nil
}

// SQLiteExtractor opens a trial's warehouse, reads arm counts and closes it
// again, so every trial gets its own store handle.
type SQLiteExtractor struct{}

// ExtractArmCounts implements trial.Extractor.
func (SQLiteExtractor) ExtractArmCounts(ctx context.Context, dir string, date time.Time) trial.ExtractResult {
	path := filepath.Join(dir, simulate.WarehouseFile)
	if _, err := os.Stat(path); err != nil {
		return trial.ExtractResult{StepResult: trial.Failed(fmt.Sprintf("warehouse not found: %v", err))}
	}

	s, err := store.Open(path)
	if err != nil {
		return trial.ExtractResult{StepResult: trial.Failed(err.Error())}
	}
	defer s.Close()

	arms, err := ArmCounts(ctx, s, date.Format(trial.DateLayout))
	if err != nil {
		if res, done := trial.FromContext(ctx); done {
			return trial.ExtractResult{StepResult: res}
		}
		return trial.ExtractResult{StepResult: trial.Failed(err.Error())}
	}

	if _, ok := arms[trial.ArmControl]; !ok {
		return trial.ExtractResult{StepResult: trial.Failed(fmt.Sprintf("expected 2 arms, got %d", len(arms))), Arms: arms}
	}
	if _, ok := arms[trial.ArmTreatment]; !ok {
		return trial.ExtractResult{StepResult: trial.Failed(fmt.Sprintf("expected 2 arms, got %d", len(arms))), Arms: arms}
	}

	return trial.ExtractResult{StepResult: trial.OK(), Arms: arms}
}
