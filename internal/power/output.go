package power

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// CSVHeader is the column order of the sensitivity results file.
var CSVHeader = []string{"users_per_day", "uplift", "repeats", "detections", "detection_rate", "alpha"}

// WriteCSV writes one row per grid point in the order given.
func WriteCSV(w io.Writer, results []GridResult) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, r := range results {
		row := []string{
			strconv.Itoa(r.UsersPerDay),
			formatFloat(r.Uplift),
			strconv.Itoa(r.Repeats),
			strconv.Itoa(r.Detections),
			formatFloat(r.DetectionRate),
			formatFloat(r.Alpha),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// GridSpecification is the sorted, distinct set of values a run covered.
type GridSpecification struct {
	UsersPerDay []int     `json:"users_per_day"`
	Uplifts     []float64 `json:"uplifts"`
	GridSize    int       `json:"grid_size"`
}

// Metadata describes a sensitivity run for reproducibility.
type Metadata struct {
	GeneratedAtUTC   string            `json:"generated_at_utc"`
	RunID            string            `json:"run_id"`
	Alpha            float64           `json:"alpha"`
	Grid             GridSpecification `json:"grid_specification"`
	Repeats          int               `json:"repeats"`
	TotalSimulations int               `json:"total_simulations"`
	StartDate        string            `json:"start_date"`
	Days             int               `json:"days"`
	BaseSeed         int64             `json:"base_seed"`
	PowerTarget      *float64          `json:"power_target,omitempty"`
	GitCommit        *string           `json:"git_commit"`
}

func NewMetadata(cfg Config, baseSeed int64, runID string, generatedAt time.Time) Metadata {
	return Metadata{
		GeneratedAtUTC: generatedAt.UTC().Format(time.RFC3339),
		RunID:          runID,
		Alpha:          cfg.Alpha,
		Grid: GridSpecification{
			UsersPerDay: cfg.sortedUsers(),
			Uplifts:     cfg.sortedUplifts(),
			GridSize:    cfg.Size(),
		},
		Repeats:          cfg.Repeats,
		TotalSimulations: cfg.TotalTrials(),
		StartDate:        cfg.Start.Format("2006-01-02"),
		Days:             cfg.Days,
		BaseSeed:         baseSeed,
		PowerTarget:      cfg.PowerTarget,
	}
}

func WriteMetadata(w io.Writer, md Metadata) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(md)
}

const gitTimeout = 5 * time.Second

// GitCommit returns the HEAD commit of the working directory's repository,
// or nil when git is unavailable or the directory is not a repository.
func GitCommit(ctx context.Context) *string {
	ctx, cancel := context.WithTimeout(ctx, gitTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, "git", "rev-parse", "HEAD").Output()
	if err != nil {
		return nil
	}
	commit := strings.TrimSpace(string(out))
	if commit == "" {
		return nil
	}
	return &commit
}

// MinimumUsersForPower returns the smallest users_per_day whose detection
// rate at uplift reaches target.
func MinimumUsersForPower(results []GridResult, uplift, target float64) (int, bool) {
	best, found := 0, false
	for _, r := range results {
		if r.Uplift != uplift || r.DetectionRate < target {
			continue
		}
		if !found || r.UsersPerDay < best {
			best, found = r.UsersPerDay, true
		}
	}
	return best, found
}
