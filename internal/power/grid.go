// Package power estimates the statistical power of an experiment design by
// running repeated simulated trials over a users-per-day by uplift grid.
package power

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

var ErrInvalidGrid = errors.New("invalid grid")

// Point is one cell of the sensitivity grid.
type Point struct {
	UsersPerDay int
	Uplift      float64
}

// Grid is the cartesian product of sample sizes and uplifts, in the order
// they were declared.
type Grid struct {
	UsersPerDay []int
	Uplifts     []float64
}

// Points lists the grid cells with sample sizes in the outer loop and
// uplifts in the inner loop.
func (g Grid) Points() []Point {
	points := make([]Point, 0, g.Size())
	for _, u := range g.UsersPerDay {
		for _, upl := range g.Uplifts {
			points = append(points, Point{UsersPerDay: u, Uplift: upl})
		}
	}
	return points
}

func (g Grid) Size() int {
	return len(g.UsersPerDay) * len(g.Uplifts)
}

func (g Grid) Validate() error {
	if len(g.UsersPerDay) == 0 {
		return fmt.Errorf("%w: no users_per_day values", ErrInvalidGrid)
	}
	if len(g.Uplifts) == 0 {
		return fmt.Errorf("%w: no uplift values", ErrInvalidGrid)
	}

	seenUsers := make(map[int]bool, len(g.UsersPerDay))
	for _, u := range g.UsersPerDay {
		if u <= 0 {
			return fmt.Errorf("%w: users_per_day must be positive, got %d", ErrInvalidGrid, u)
		}
		if seenUsers[u] {
			return fmt.Errorf("%w: duplicate users_per_day %d", ErrInvalidGrid, u)
		}
		seenUsers[u] = true
	}

	seenUplifts := make(map[float64]bool, len(g.Uplifts))
	for _, upl := range g.Uplifts {
		if math.IsNaN(upl) || math.IsInf(upl, 0) || upl <= -1 {
			return fmt.Errorf("%w: uplift must be a finite value above -1, got %v", ErrInvalidGrid, upl)
		}
		if seenUplifts[upl] {
			return fmt.Errorf("%w: duplicate uplift %v", ErrInvalidGrid, upl)
		}
		seenUplifts[upl] = true
	}

	return nil
}

// sortedUsers and sortedUplifts return sorted copies for metadata.
func (g Grid) sortedUsers() []int {
	out := append([]int(nil), g.UsersPerDay...)
	sort.Ints(out)
	return out
}

func (g Grid) sortedUplifts() []float64 {
	out := append([]float64(nil), g.Uplifts...)
	sort.Float64s(out)
	return out
}

// Config describes one sensitivity run.
type Config struct {
	Grid
	Start       time.Time
	Days        int
	Repeats     int
	Alpha       float64
	PowerTarget *float64
}

func (c Config) Validate() error {
	if err := c.Grid.Validate(); err != nil {
		return err
	}
	if c.Repeats < 1 {
		return fmt.Errorf("%w: repeats must be at least 1, got %d", ErrInvalidGrid, c.Repeats)
	}
	if c.Days < 1 {
		return fmt.Errorf("%w: days must be at least 1, got %d", ErrInvalidGrid, c.Days)
	}
	if !(c.Alpha > 0 && c.Alpha < 1) {
		return fmt.Errorf("%w: alpha must be in (0,1), got %v", ErrInvalidGrid, c.Alpha)
	}
	if c.PowerTarget != nil && !(*c.PowerTarget > 0 && *c.PowerTarget <= 1) {
		return fmt.Errorf("%w: power target must be in (0,1], got %v", ErrInvalidGrid, *c.PowerTarget)
	}
	if c.Start.IsZero() {
		return fmt.Errorf("%w: start date is required", ErrInvalidGrid)
	}
	return nil
}

// TotalTrials is the number of simulations the run schedules.
func (c Config) TotalTrials() int {
	return c.Size() * c.Repeats
}

// GridResult is the aggregated outcome for one grid point. Failed trials
// count against Repeats, so DetectionRate is a lower bound when Failures > 0.
type GridResult struct {
	Point
	Repeats       int
	Detections    int
	Failures      int
	DetectionRate float64
	Alpha         float64
}
