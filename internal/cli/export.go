package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/headline-goat/abpower/internal/store"
)

var (
	exportFormat string
	exportDate   string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export raw warehouse events",
	Long: `Export the events of one date in CSV or JSON format.

Examples:
  abpower export --db data/warehouse.db --date 2025-01-01 --format csv > events.csv
  abpower export --db data/warehouse.db --format json > events.json`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "csv", "output format (csv or json)")
	exportCmd.Flags().StringVar(&exportDate, "date", "", "date to export (default: most recent)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	if exportFormat != "csv" && exportFormat != "json" {
		return fmt.Errorf("invalid format: must be 'csv' or 'json'")
	}

	return withStore(func(s *store.SQLiteStore) error {
		ctx := cmd.Context()

		date := exportDate
		if date == "" {
			latest, err := s.MostRecentDate(ctx)
			if err != nil {
				if err == store.ErrNotFound {
					return fmt.Errorf("warehouse has no events")
				}
				return fmt.Errorf("failed to find most recent date: %w", err)
			}
			date = latest
		}

		events, err := s.GetEvents(ctx, date)
		if err != nil {
			return fmt.Errorf("failed to get events: %w", err)
		}

		if exportFormat == "csv" {
			return exportCSV(cmd.OutOrStdout(), events)
		}
		return exportJSON(cmd.OutOrStdout(), date, events)
	})
}

var csvHeader = []string{
	"timestamp", "event_date", "variant", "event_type", "user_id", "checkout_id",
	"order_id", "step_name", "latency_ms", "authorized", "amount",
}

func exportCSV(out io.Writer, events []*store.Event) error {
	w := csv.NewWriter(out)
	defer w.Flush()

	// Write header
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	// Write rows
	for _, e := range events {
		row := []string{
			strconv.FormatInt(e.OccurredAt.Unix(), 10),
			e.Date,
			e.Variant,
			string(e.Type),
			e.UserID,
			e.CheckoutID,
			e.OrderID,
			e.StepName,
			strconv.Itoa(e.LatencyMs),
			strconv.FormatBool(e.Authorized),
			strconv.FormatFloat(e.Amount, 'f', 2, 64),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	return nil
}

type jsonExport struct {
	Date   string      `json:"date"`
	Events []jsonEvent `json:"events"`
}

type jsonEvent struct {
	Timestamp  int64   `json:"timestamp"`
	Variant    string  `json:"variant"`
	EventType  string  `json:"event_type"`
	UserID     string  `json:"user_id,omitempty"`
	CheckoutID string  `json:"checkout_id,omitempty"`
	OrderID    string  `json:"order_id,omitempty"`
	StepName   string  `json:"step_name,omitempty"`
	LatencyMs  int     `json:"latency_ms,omitempty"`
	Authorized bool    `json:"authorized,omitempty"`
	Amount     float64 `json:"amount,omitempty"`
}

func exportJSON(out io.Writer, date string, events []*store.Event) error {
	export := jsonExport{
		Date:   date,
		Events: make([]jsonEvent, len(events)),
	}

	for i, e := range events {
		export.Events[i] = jsonEvent{
			Timestamp:  e.OccurredAt.Unix(),
			Variant:    e.Variant,
			EventType:  string(e.Type),
			UserID:     e.UserID,
			CheckoutID: e.CheckoutID,
			OrderID:    e.OrderID,
			StepName:   e.StepName,
			LatencyMs:  e.LatencyMs,
			Authorized: e.Authorized,
			Amount:     e.Amount,
		}
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}
