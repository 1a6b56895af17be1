package power

import (
	"io"
	"log/slog"
	"math"
	"sync/atomic"
	"time"
)

// DefaultTimeout bounds each generator and extractor call.
const DefaultTimeout = 60 * time.Second

// SeedSource hands out run numbers and the seeds derived from them.
type SeedSource struct {
	base int64
	runs atomic.Int64
}

func NewSeedSource(base int64) *SeedSource {
	return &SeedSource{base: base}
}

// Next returns the next run number, starting at 1, and its seed base+run.
func (s *SeedSource) Next() (run, seed int64) {
	run = s.runs.Add(1)
	return run, s.base + run
}

func (s *SeedSource) Base() int64 { return s.base }

// Sink receives each grid point result as soon as all its trials finish.
// Calls are serialized by the runner.
type Sink interface {
	PointDone(GridResult)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(GridResult)

func (f SinkFunc) PointDone(r GridResult) { f(r) }

// RunContext carries everything a run needs that would otherwise be
// process-wide state.
type RunContext struct {
	Seeds   *SeedSource
	Timeout time.Duration
	WorkDir string // parent of per-trial directories; "" means os.TempDir
	Workers int
	Logger  *slog.Logger
	Sink    Sink
	Metrics *Metrics
}

func (rc RunContext) withDefaults() RunContext {
	if rc.Seeds == nil {
		rc.Seeds = NewSeedSource(0)
	}
	if rc.Timeout <= 0 {
		rc.Timeout = DefaultTimeout
	}
	if rc.Workers < 1 {
		rc.Workers = 1
	}
	if rc.Logger == nil {
		rc.Logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)}))
	}
	return rc
}
