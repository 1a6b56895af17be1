// Package simulate generates synthetic checkout-funnel experiments.
package simulate

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/headline-goat/abpower/internal/store"
	"github.com/headline-goat/abpower/internal/trial"
)

// WarehouseFile is the SQLite file a generator writes inside its output dir.
const WarehouseFile = "warehouse.db"

// Users are flushed to the warehouse in batches of this size.
const batchSize = 1000

// DaySummary reports what was generated for one day.
type DaySummary struct {
	Date      string
	Control   int
	Treatment int
	Events    map[store.EventType]int
}

// Options tune the in-process generator.
type Options struct {
	// AA forces uplift to zero so both arms behave identically.
	AA     bool
	Logger *slog.Logger
}

// InProcess writes a synthetic warehouse without leaving the process.
type InProcess struct {
	opts Options
}

func NewInProcess(opts Options) *InProcess {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &InProcess{opts: opts}
}

// Generate implements trial.Generator.
func (g *InProcess) Generate(ctx context.Context, req trial.GenerateRequest) trial.StepResult {
	if _, err := g.Run(ctx, req); err != nil {
		if res, done := trial.FromContext(ctx); done {
			return res
		}
		return trial.Failed(err.Error())
	}
	return trial.OK()
}

// Run simulates req.Days days starting at req.Date into
// <req.OutputDir>/warehouse.db and returns a summary per day.
func (g *InProcess) Run(ctx context.Context, req trial.GenerateRequest) ([]DaySummary, error) {
	if req.Days < 1 {
		return nil, fmt.Errorf("days must be at least 1, got %d", req.Days)
	}
	if req.UsersPerDay < 1 {
		return nil, fmt.Errorf("users per day must be positive, got %d", req.UsersPerDay)
	}
	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	s, err := store.Open(filepath.Join(req.OutputDir, WarehouseFile))
	if err != nil {
		return nil, err
	}
	defer s.Close()

	uplift := req.Uplift
	if g.opts.AA {
		uplift = 0
	}

	f := &funnel{
		rng:    rand.New(rand.NewSource(req.Seed)),
		uplift: uplift,
	}

	start := time.Date(req.Date.Year(), req.Date.Month(), req.Date.Day(), 0, 0, 0, 0, time.UTC)
	summaries := make([]DaySummary, 0, req.Days)
	for d := 0; d < req.Days; d++ {
		day := start.AddDate(0, 0, d)
		summary, err := g.simulateDay(ctx, s, f, day, req.UsersPerDay)
		if err != nil {
			return summaries, fmt.Errorf("simulating %s: %w", day.Format(trial.DateLayout), err)
		}
		summaries = append(summaries, summary)
	}

	return summaries, nil
}

func (g *InProcess) simulateDay(ctx context.Context, s store.Store, f *funnel, day time.Time, users int) (DaySummary, error) {
	summary := DaySummary{
		Date:   day.Format(trial.DateLayout),
		Events: make(map[store.EventType]int),
	}

	events := make([]store.Event, 0, batchSize*4)
	for batchStart := 0; batchStart < users; batchStart += batchSize {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		batchEnd := min(batchStart+batchSize, users)
		events = events[:0]
		for i := batchStart; i < batchEnd; i++ {
			userID := UserID(day, i)
			variant := AssignVariant(userID)
			if variant == trial.ArmTreatment {
				summary.Treatment++
			} else {
				summary.Control++
			}
			events = f.user(events, day, userID, variant)
		}

		for _, e := range events {
			summary.Events[e.Type]++
		}
		if err := s.InsertEvents(ctx, events); err != nil {
			return summary, err
		}
	}

	g.opts.Logger.Debug("simulated day",
		"date", summary.Date,
		"control", summary.Control,
		"treatment", summary.Treatment,
		"add_to_cart", summary.Events[store.EventAddToCart],
		"order_completed", summary.Events[store.EventOrderCompleted],
	)

	return summary, nil
}
