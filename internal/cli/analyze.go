package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/headline-goat/abpower/internal/analysis"
	"github.com/headline-goat/abpower/internal/config"
	"github.com/headline-goat/abpower/internal/stats"
	"github.com/headline-goat/abpower/internal/store"
)

var (
	analyzeDate   string
	analyzeConfig string
	analyzeAlpha  float64
)

// errDoNotShip makes the command exit non-zero when the decision is negative.
var errDoNotShip = errors.New("recommendation: do not ship")

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze an experiment and recommend whether to ship",
	Long: `Run the conversion test, evaluate guardrails from the experiment config
and print a SHIP / DO NOT SHIP recommendation. Exits non-zero unless the
recommendation is SHIP.

Examples:
  abpower analyze --db data/warehouse.db
  abpower analyze --db data/warehouse.db --date 2025-01-03 --config configs/experiment.yml`,
	Args: cobra.NoArgs,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeDate, "date", "", "date to analyze (default: most recent)")
	analyzeCmd.Flags().StringVar(&analyzeConfig, "config", config.DefaultExperimentPath, "experiment config file")
	analyzeCmd.Flags().Float64Var(&analyzeAlpha, "alpha", 0, "significance level (overrides config)")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	log, err := commandLogger(cmd)
	if err != nil {
		return err
	}

	exp, err := config.LoadExperiment(analyzeConfig)
	if errors.Is(err, fs.ErrNotExist) {
		log.Warn("experiment config not found, no guardrail thresholds", "path", analyzeConfig)
		exp, err = config.DefaultExperiment(), nil
	}
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("alpha") {
		exp.Alpha = analyzeAlpha
	}

	var report *analysis.Report
	err = withStore(func(s *store.SQLiteStore) error {
		var err error
		report, err = analysis.Analyze(cmd.Context(), s, analyzeDate, exp)
		return err
	})
	if err != nil {
		return err
	}

	printReport(cmd.OutOrStdout(), report)

	if report.Decision != analysis.Ship {
		return errDoNotShip
	}
	return nil
}

func printReport(out io.Writer, r *analysis.Report) {
	rule := strings.Repeat("=", 80)
	line := strings.Repeat("-", 80)
	confidence := stats.PrettyRound((1 - r.Alpha) * 100)

	fmt.Fprintln(out, rule)
	fmt.Fprintln(out, "A/B TEST STATISTICAL ANALYSIS")
	fmt.Fprintln(out, rule)
	if r.Experiment != "" {
		fmt.Fprintf(out, "Experiment: %s\n", r.Experiment)
	}
	fmt.Fprintf(out, "Analysis Date: %s\n", r.Date)
	fmt.Fprintln(out, rule)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "PRIMARY METRIC: Conditional Conversion Rate (CCR)")
	fmt.Fprintln(out, line)
	printArm(out, "Control:  ", r.Control, r.ControlCI, confidence)
	printArm(out, "Treatment:", r.Treatment, r.TreatmentCI, confidence)
	fmt.Fprintln(out)

	effectRel := "n/a"
	if r.Control.Successes > 0 {
		effectRel = fmt.Sprintf("%+.1f%%", r.Test.EffectRel*100)
	}
	fmt.Fprintf(out, "Effect (absolute): %+.2fpp (%s relative)\n", r.Test.EffectAbs*100, effectRel)
	fmt.Fprintf(out, "%v%% Confidence Interval: [%.2fpp, %.2fpp]\n", confidence, r.Test.CILow*100, r.Test.CIHigh*100)
	fmt.Fprintf(out, "p-value: %.4f\n", r.Test.PValue)
	fmt.Fprintln(out)
	if r.Significant {
		fmt.Fprintf(out, "SIGNIFICANT at α=%v (p < %v)\n", r.Alpha, r.Alpha)
	} else {
		fmt.Fprintf(out, "NOT SIGNIFICANT at α=%v (p >= %v)\n", r.Alpha, r.Alpha)
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "GUARDRAIL METRICS")
	fmt.Fprintln(out, line)
	for i, g := range r.Guardrails {
		fmt.Fprintf(out, "%d. %s\n", i+1, g.Name)
		fmt.Fprintf(out, "   Control:   %s\n", formatEstimate(g, g.Control, confidence))
		fmt.Fprintf(out, "   Treatment: %s\n", formatEstimate(g, g.Treatment, confidence))
		if g.Outcome == nil {
			fmt.Fprintln(out, "   Guardrail: No threshold configured")
		} else {
			fmt.Fprintf(out, "   Guardrail: %s\n", g.Outcome.Message)
		}
		fmt.Fprintln(out)
	}

	fmt.Fprintln(out, "DECISION")
	fmt.Fprintln(out, line)
	if r.Significant {
		fmt.Fprintln(out, "PRIMARY METRIC: Statistically significant")
	} else {
		fmt.Fprintln(out, "PRIMARY METRIC: Not statistically significant")
	}
	if r.GuardrailsPassed() {
		fmt.Fprintln(out, "GUARDRAILS: All passed")
	} else {
		fmt.Fprintln(out, "GUARDRAILS: One or more failed")
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "RECOMMENDATION: %s\n", r.Decision)
	if r.Decision == analysis.Ship && r.MDE != nil {
		fmt.Fprintf(out, "(Note: Check that effect meets MDE of %.2fpp)\n", *r.MDE*100)
	}
	fmt.Fprintln(out, rule)
}

func printArm(out io.Writer, label string, c stats.ArmCounts, ci stats.ProportionInterval, confidence float64) {
	fmt.Fprintf(out, "%s %s orders / %s adders = %.2f%% (%v%% CI: [%.2f%%, %.2f%%])\n",
		label,
		humanize.Comma(int64(c.Successes)),
		humanize.Comma(int64(c.Total)),
		ci.Rate*100, confidence, ci.CILow*100, ci.CIHigh*100)
}

func formatEstimate(g analysis.GuardrailReport, e analysis.Estimate, confidence float64) string {
	if !e.OK {
		return fmt.Sprintf("insufficient data (n=%s)", humanize.Comma(int64(e.N)))
	}

	switch g.Metric {
	case analysis.RateMetric:
		return fmt.Sprintf("%.1f%% (%v%% CI: [%.1f%%, %.1f%%], n=%s)",
			e.Value*100, confidence, e.CILow*100, e.CIHigh*100, humanize.Comma(int64(e.N)))
	case analysis.LatencyMetric:
		return fmt.Sprintf("%.1fms (%v%% CI: [%.1f, %.1f], n=%s)",
			e.Value, confidence, e.CILow, e.CIHigh, humanize.Comma(int64(e.N)))
	default:
		return fmt.Sprintf("$%.2f (%v%% CI: [%.2f, %.2f], n=%s)",
			e.Value, confidence, e.CILow, e.CIHigh, humanize.Comma(int64(e.N)))
	}
}
