package power

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records trial counters for a run. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry      *prometheus.Registry
	trials        *prometheus.CounterVec
	trialDuration prometheus.Histogram
	points        prometheus.Counter
	detectionRate *prometheus.GaugeVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		trials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "abpower_trials_total",
			Help: "Simulated trials by terminal state",
		}, []string{"state"}),
		trialDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "abpower_trial_duration_seconds",
			Help:    "Wall time of one simulated trial",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}),
		points: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "abpower_grid_points_completed_total",
			Help: "Grid points with all repeats finished",
		}),
		detectionRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "abpower_detection_rate",
			Help: "Empirical detection rate per grid point",
		}, []string{"users_per_day", "uplift"}),
	}
	m.registry.MustRegister(m.trials, m.trialDuration, m.points, m.detectionRate)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) observeTrial(o TrialOutcome, d time.Duration) {
	if m == nil {
		return
	}
	m.trials.WithLabelValues(o.State.String()).Inc()
	m.trialDuration.Observe(d.Seconds())
}

func (m *Metrics) observePoint(r GridResult) {
	if m == nil {
		return
	}
	m.points.Inc()
	m.detectionRate.WithLabelValues(
		strconv.Itoa(r.UsersPerDay),
		strconv.FormatFloat(r.Uplift, 'f', -1, 64),
	).Set(r.DetectionRate)
}

// WriteTextfile writes the metrics in the node_exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
