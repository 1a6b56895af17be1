package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/headline-goat/abpower/internal/config"
	"github.com/headline-goat/abpower/internal/metrics"
	"github.com/headline-goat/abpower/internal/power"
	"github.com/headline-goat/abpower/internal/simulate"
	"github.com/headline-goat/abpower/internal/trial"
)

const metadataFile = "sensitivity_meta.json"

var (
	sensPreset      string
	sensPresetsFile string
	sensStart       string
	sensDays        int
	sensUsers       string
	sensUplifts     string
	sensRepeats     int
	sensSeed        int64
	sensAlpha       float64
	sensPowerTarget float64
	sensOutput      string
	sensWorkers     int
	sensTimeout     time.Duration
	sensGenerator   string
	sensMetricsFile string
)

var sensitivityCmd = &cobra.Command{
	Use:   "sensitivity",
	Short: "Estimate power over a users-per-day by uplift grid",
	Long: `Run repeated simulated experiments for every (users per day, uplift)
combination and report how often the conversion test detects the effect.

Preset values from the presets file are defaults; explicit flags override them.

Examples:
  abpower sensitivity --preset quick_smoke --start 2025-01-01
  abpower sensitivity --start 2025-01-01 --users 1000,5000 --uplifts 0,0.02,0.05 --repeats 50 --workers 4`,
	Args: cobra.NoArgs,
	RunE: runSensitivity,
}

func init() {
	f := sensitivityCmd.Flags()
	f.StringVar(&sensPreset, "preset", "", "preset name from the presets file")
	f.StringVar(&sensPresetsFile, "presets-file", config.DefaultPresetsPath, "YAML presets file")
	f.StringVar(&sensStart, "start", "", "start date (YYYY-MM-DD)")
	f.IntVar(&sensDays, "days", 1, "days per simulation")
	f.StringVar(&sensUsers, "users", "", `comma-separated users per day, e.g. "10000,20000"`)
	f.StringVar(&sensUplifts, "uplifts", "", `comma-separated uplifts, e.g. "0.0,0.02"`)
	f.IntVar(&sensRepeats, "repeats", 10, "repeats per grid point")
	f.Int64Var(&sensSeed, "seed", 7, "base random seed")
	f.Float64Var(&sensAlpha, "alpha", 0.05, "significance level")
	f.Float64Var(&sensPowerTarget, "power-target", 0, "target statistical power, e.g. 0.8 (0 = none)")
	f.StringVar(&sensOutput, "output", "reports/results/sensitivity_summary.csv", "output CSV path")
	f.IntVar(&sensWorkers, "workers", 1, "trials run concurrently")
	f.DurationVar(&sensTimeout, "timeout", power.DefaultTimeout, "timeout per generator and extractor call")
	f.StringVar(&sensGenerator, "generator", "inprocess", "trial generator: inprocess or exec")
	f.StringVar(&sensMetricsFile, "metrics-file", "", "write Prometheus metrics to this textfile")
	rootCmd.AddCommand(sensitivityCmd)
}

func runSensitivity(cmd *cobra.Command, args []string) error {
	log, err := commandLogger(cmd)
	if err != nil {
		return err
	}

	preset, err := resolvePreset(cmd, log)
	if err != nil {
		return err
	}

	cfg, err := sensitivityConfig(cmd, preset)
	if err != nil {
		return err
	}

	seed := sensSeed
	if !cmd.Flags().Changed("seed") && preset.Seed != nil {
		seed = *preset.Seed
	}

	gen, err := newGenerator(sensGenerator, log)
	if err != nil {
		return err
	}

	var m *power.Metrics
	if sensMetricsFile != "" {
		m = power.NewMetrics()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	total := cfg.Size()
	done := 0
	runner := power.NewRunner(gen, metrics.SQLiteExtractor{}, power.RunContext{
		Seeds:   power.NewSeedSource(seed),
		Timeout: sensTimeout,
		Workers: sensWorkers,
		Logger:  log,
		Metrics: m,
		Sink: power.SinkFunc(func(r power.GridResult) {
			done++
			fmt.Fprintf(cmd.ErrOrStderr(), "[%d/%d] users=%s uplift=%.3f detections=%d/%d (%s)\n",
				done, total, humanize.Comma(int64(r.UsersPerDay)), r.Uplift,
				r.Detections, r.Repeats, formatPercent(r.DetectionRate))
		}),
	})

	runID := uuid.NewString()
	log.Info("sensitivity run", "run_id", runID, "seed", seed, "generator", sensGenerator)

	results, runErr := runner.Run(ctx, cfg)
	if results == nil {
		return runErr
	}
	if runErr != nil {
		log.Warn("run interrupted, writing partial results", "error", runErr)
	}

	if allFailed(results) {
		return fmt.Errorf("no results generated: all simulations failed")
	}

	if err := writeSensitivityOutputs(ctx, cfg, seed, runID, results); err != nil {
		return err
	}
	log.Info("results written", "csv", sensOutput, "metadata", filepath.Join(filepath.Dir(sensOutput), metadataFile))

	if m != nil {
		if err := m.WriteTextfile(sensMetricsFile); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}

	printSensitivitySummary(cmd.OutOrStdout(), results, cfg.PowerTarget)

	return runErr
}

// resolvePreset loads --preset, or offers a picker when the run is
// interactive and no grid was given on the command line.
func resolvePreset(cmd *cobra.Command, log *slog.Logger) (config.Preset, error) {
	name := sensPreset

	if name == "" && !cmd.Flags().Changed("users") && stdinIsTerminal() {
		if _, err := os.Stat(sensPresetsFile); err == nil {
			presets, err := config.LoadPresets(sensPresetsFile)
			if err != nil {
				return config.Preset{}, err
			}
			name, err = promptPreset(presets)
			if errors.Is(err, errNoPreset) {
				return config.Preset{}, nil
			}
			if err != nil {
				return config.Preset{}, err
			}
		}
	}

	if name == "" {
		return config.Preset{}, nil
	}

	presets, err := config.LoadPresets(sensPresetsFile)
	if err != nil {
		return config.Preset{}, fmt.Errorf("failed to load preset '%s': %w", name, err)
	}
	preset, err := presets.Preset(name)
	if err != nil {
		return config.Preset{}, err
	}

	log.Info("using preset", "name", name, "description", preset.Description)
	return preset, nil
}

// sensitivityConfig merges flags over preset values.
func sensitivityConfig(cmd *cobra.Command, preset config.Preset) (power.Config, error) {
	flags := cmd.Flags()
	cfg := power.Config{
		Days:    sensDays,
		Repeats: sensRepeats,
		Alpha:   sensAlpha,
	}

	if sensStart == "" {
		return cfg, fmt.Errorf("--start is required")
	}
	start, err := parseDate(sensStart)
	if err != nil {
		return cfg, err
	}
	cfg.Start = start

	if !flags.Changed("days") && preset.Days > 0 {
		cfg.Days = preset.Days
	}
	if !flags.Changed("repeats") && preset.Repeats > 0 {
		cfg.Repeats = preset.Repeats
	}
	if !flags.Changed("alpha") && preset.Alpha > 0 {
		cfg.Alpha = preset.Alpha
	}

	if flags.Changed("users") {
		if cfg.UsersPerDay, err = parseIntList(sensUsers); err != nil {
			return cfg, err
		}
	} else {
		cfg.UsersPerDay = preset.UsersPerDay
	}
	if flags.Changed("uplifts") {
		if cfg.Uplifts, err = parseFloatList(sensUplifts); err != nil {
			return cfg, err
		}
	} else {
		cfg.Uplifts = preset.Uplifts
	}

	if flags.Changed("power-target") {
		target := sensPowerTarget
		cfg.PowerTarget = &target
	} else {
		cfg.PowerTarget = preset.PowerTarget
	}

	if len(cfg.UsersPerDay) == 0 {
		return cfg, fmt.Errorf("users list cannot be empty (specify --users or use a preset)")
	}
	if len(cfg.Uplifts) == 0 {
		return cfg, fmt.Errorf("uplifts list cannot be empty (specify --uplifts or use a preset)")
	}

	return cfg, cfg.Validate()
}

func newGenerator(kind string, log *slog.Logger) (trial.Generator, error) {
	switch kind {
	case "inprocess":
		return simulate.NewInProcess(simulate.Options{Logger: log}), nil
	case "exec":
		return simulate.NewSelfExec(log)
	default:
		return nil, fmt.Errorf("invalid generator %q: must be 'inprocess' or 'exec'", kind)
	}
}

func allFailed(results []power.GridResult) bool {
	for _, r := range results {
		if r.Failures < r.Repeats {
			return false
		}
	}
	return true
}

func writeSensitivityOutputs(ctx context.Context, cfg power.Config, seed int64, runID string, results []power.GridResult) error {
	if err := os.MkdirAll(filepath.Dir(sensOutput), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.Create(sensOutput)
	if err != nil {
		return fmt.Errorf("failed to create results file: %w", err)
	}
	defer f.Close()
	if err := power.WriteCSV(f, results); err != nil {
		return err
	}

	md := power.NewMetadata(cfg, seed, runID, time.Now())
	md.GitCommit = power.GitCommit(ctx)

	mf, err := os.Create(filepath.Join(filepath.Dir(sensOutput), metadataFile))
	if err != nil {
		return fmt.Errorf("failed to create metadata file: %w", err)
	}
	defer mf.Close()
	if err := power.WriteMetadata(mf, md); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}

	return nil
}

func printSensitivitySummary(out io.Writer, results []power.GridResult, target *float64) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, "SENSITIVITY ANALYSIS SUMMARY")
	fmt.Fprintln(out, strings.Repeat("─", 60))

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "USERS/DAY\tUPLIFT\tREPEATS\tDETECTIONS\tFAILED\tRATE")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%.3f\t%d\t%d\t%d\t%s\n",
			humanize.Comma(int64(r.UsersPerDay)),
			r.Uplift,
			r.Repeats,
			r.Detections,
			r.Failures,
			formatPercent(r.DetectionRate),
		)
	}
	w.Flush()

	if target == nil {
		return
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Minimum users/day for %s power:\n", formatPercent(*target))
	seen := make(map[float64]bool)
	for _, r := range results {
		if seen[r.Uplift] {
			continue
		}
		seen[r.Uplift] = true

		if users, ok := power.MinimumUsersForPower(results, r.Uplift, *target); ok {
			fmt.Fprintf(out, "  uplift %.3f: %s\n", r.Uplift, humanize.Comma(int64(users)))
		} else {
			fmt.Fprintf(out, "  uplift %.3f: not reached in grid\n", r.Uplift)
		}
	}
}
