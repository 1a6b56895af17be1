package cli

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/headline-goat/abpower/internal/simulate"
	"github.com/headline-goat/abpower/internal/store"
	"github.com/headline-goat/abpower/internal/trial"
)

var (
	simStart  string
	simDays   int
	simUsers  int
	simUplift float64
	simSeed   int64
	simOutput string
	simAA     bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Generate a synthetic checkout warehouse",
	Long: `Simulate checkout funnel events for control and treatment and write them
to <output>/warehouse.db. The output is fully determined by the flags.

Examples:
  abpower simulate --start 2025-01-01 --days 7 --users 5000 --uplift 0.02 --output data
  abpower simulate --start 2025-01-01 --users 5000 --aa --output data`,
	Args: cobra.NoArgs,
	RunE: runSimulate,
}

func init() {
	f := simulateCmd.Flags()
	f.StringVar(&simStart, "start", "", "first simulated date (YYYY-MM-DD)")
	f.IntVar(&simDays, "days", 1, "number of days to simulate")
	f.IntVar(&simUsers, "users", 1000, "users per day")
	f.Float64Var(&simUplift, "uplift", 0, "relative uplift applied to the treatment funnel")
	f.Int64Var(&simSeed, "seed", 7, "random seed")
	f.StringVar(&simOutput, "output", "data", "output directory")
	f.BoolVar(&simAA, "aa", false, "A/A mode: treatment behaves like control")
	simulateCmd.MarkFlagRequired("start")
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	log, err := commandLogger(cmd)
	if err != nil {
		return err
	}

	start, err := parseDate(simStart)
	if err != nil {
		return err
	}

	gen := simulate.NewInProcess(simulate.Options{AA: simAA, Logger: log})
	days, err := gen.Run(cmd.Context(), trial.GenerateRequest{
		Date:        start,
		Days:        simDays,
		UsersPerDay: simUsers,
		Uplift:      simUplift,
		Seed:        simSeed,
		OutputDir:   simOutput,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tCONTROL\tTREATMENT\tADD TO CART\tORDERS")
	for _, d := range days {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			d.Date,
			humanize.Comma(int64(d.Control)),
			humanize.Comma(int64(d.Treatment)),
			humanize.Comma(int64(d.Events[store.EventAddToCart])),
			humanize.Comma(int64(d.Events[store.EventOrderCompleted])),
		)
	}
	w.Flush()

	log.Info("warehouse written", "path", filepath.Join(simOutput, simulate.WarehouseFile), "days", len(days))
	return nil
}
