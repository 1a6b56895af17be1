package power

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/headline-goat/abpower/internal/stats"
	"github.com/headline-goat/abpower/internal/trial"
)

// Runner schedules one task per trial on a bounded worker pool and
// aggregates detections per grid point.
type Runner struct {
	gen trial.Generator
	ext trial.Extractor
	rc  RunContext
}

func NewRunner(gen trial.Generator, ext trial.Extractor, rc RunContext) *Runner {
	return &Runner{gen: gen, ext: ext, rc: rc.withDefaults()}
}

// accumulator collects trial outcomes for one grid point.
type accumulator struct {
	detections atomic.Int64
	failures   atomic.Int64
	done       atomic.Int64
}

// add records o and returns how many trials of the point have finished.
func (a *accumulator) add(o TrialOutcome) int64 {
	switch o.State {
	case StateDetected:
		a.detections.Add(1)
	case StateFailed:
		a.failures.Add(1)
	}
	return a.done.Add(1)
}

func (a *accumulator) result(p Point, cfg Config) GridResult {
	detections := int(a.detections.Load())
	return GridResult{
		Point:         p,
		Repeats:       cfg.Repeats,
		Detections:    detections,
		Failures:      int(a.failures.Load()),
		DetectionRate: float64(detections) / float64(cfg.Repeats),
		Alpha:         cfg.Alpha,
	}
}

// Run executes cfg.Repeats trials for every grid point and returns one
// GridResult per point in grid order. Trial failures never abort the run.
// If ctx is canceled the remaining trials are recorded as failed and the
// results are returned together with ctx.Err().
func (r *Runner) Run(ctx context.Context, cfg Config) ([]GridResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := r.rc.Logger
	points := cfg.Points()
	results := make([]GridResult, len(points))
	accs := make([]*accumulator, len(points))
	for i := range accs {
		accs[i] = &accumulator{}
	}

	log.Info("starting sensitivity run",
		"grid_points", len(points),
		"repeats", cfg.Repeats,
		"total_runs", cfg.TotalTrials(),
		"alpha", cfg.Alpha,
		"workers", r.rc.Workers)

	var sinkMu sync.Mutex
	finish := func(i int) {
		res := accs[i].result(points[i], cfg)
		results[i] = res

		if res.Failures == res.Repeats {
			log.Warn("no successful trials at grid point",
				"users_per_day", res.UsersPerDay, "uplift", res.Uplift, "repeats", res.Repeats)
		}
		log.Info("grid point complete",
			"users_per_day", res.UsersPerDay,
			"uplift", res.Uplift,
			"detections", res.Detections,
			"failures", res.Failures,
			"detection_rate", res.DetectionRate)

		r.rc.Metrics.observePoint(res)

		sinkMu.Lock()
		defer sinkMu.Unlock()
		if r.rc.Sink != nil {
			r.rc.Sink.PointDone(res)
		}
	}

	g := new(errgroup.Group)
	g.SetLimit(r.rc.Workers)

	for i, p := range points {
		i, p := i, p
		log.Debug("scheduling grid point", "users_per_day", p.UsersPerDay, "uplift", p.Uplift)

		for rep := 0; rep < cfg.Repeats; rep++ {
			rep := rep
			run, seed := r.rc.Seeds.Next()
			o := TrialOutcome{
				Point: p,
				Run:   run,
				Seed:  seed,
				Date:  cfg.Start.AddDate(0, 0, int(run)),
			}

			g.Go(func() error {
				start := time.Now()
				out := r.runTrial(ctx, cfg, o)
				r.rc.Metrics.observeTrial(out, time.Since(start))

				if out.State == StateFailed {
					log.Warn("trial failed",
						"run", out.Run, "users_per_day", p.UsersPerDay, "uplift", p.Uplift,
						"repeat", rep+1, "reason", out.Reason)
				} else {
					log.Debug("trial complete",
						"run", out.Run, "repeat", rep+1, "p_value", out.PValue, "detected", out.Detected)
				}

				if accs[i].add(out) == int64(cfg.Repeats) {
					finish(i)
				}
				return nil
			})
		}
	}

	_ = g.Wait()

	return results, ctx.Err()
}

// runTrial drives one trial through its states in an isolated work dir.
func (r *Runner) runTrial(ctx context.Context, cfg Config, o TrialOutcome) TrialOutcome {
	if res, done := trial.FromContext(ctx); done {
		return reduce(o, res)
	}

	dir, err := os.MkdirTemp(r.rc.WorkDir, fmt.Sprintf("trial-%d-*", o.Run))
	if err != nil {
		return reduce(o, trial.Failed(fmt.Sprintf("create work dir: %v", err)))
	}
	defer os.RemoveAll(dir)
	o = reduce(o, trial.OK())

	genCtx, cancel := context.WithTimeout(ctx, r.rc.Timeout)
	gen := r.gen.Generate(genCtx, trial.GenerateRequest{
		Date:        o.Date,
		Days:        cfg.Days,
		UsersPerDay: o.Point.UsersPerDay,
		Uplift:      o.Point.Uplift,
		Seed:        o.Seed,
		OutputDir:   dir,
	})
	cancel()
	if o = reduce(o, gen); o.State.Terminal() {
		return o
	}

	extCtx, cancel := context.WithTimeout(ctx, r.rc.Timeout)
	ext := r.ext.ExtractArmCounts(extCtx, dir, o.Date)
	cancel()

	var control, treatment stats.ArmCounts
	step := ext.StepResult
	if step.Succeeded() {
		control, treatment, step = selectArms(ext.Arms)
	}
	if o = reduce(o, step); o.State.Terminal() {
		return o
	}

	res, err := stats.TwoProportionTest(control, treatment, cfg.Alpha)
	if err != nil {
		return reduce(o, trial.Failed(err.Error()))
	}
	return conclude(o, res, cfg.Alpha)
}
