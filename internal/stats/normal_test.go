package stats_test

import (
	"errors"
	"math"
	"testing"

	"github.com/headline-goat/abpower/internal/stats"
	"gonum.org/v1/gonum/stat/distuv"
)

func TestNormalQuantile_PresetTails(t *testing.T) {
	tests := []struct {
		p    float64
		want float64
	}{
		{0.025, -1.96},
		{0.005, -2.576},
		{0.0250000005, -1.96},
		{0.975, 1.96},
		{0.995, 2.576},
	}

	for _, tt := range tests {
		z, err := stats.NormalQuantile(tt.p)
		if err != nil {
			t.Fatalf("NormalQuantile(%v) returned error: %v", tt.p, err)
		}
		if z != tt.want {
			t.Errorf("NormalQuantile(%v) = %v, want %v", tt.p, z, tt.want)
		}
	}
}

func TestNormalQuantile_MatchesReference(t *testing.T) {
	// 26.2.23 is good to about 4.5e-4 in absolute error
	for _, p := range []float64{0.001, 0.01, 0.05, 0.1, 0.2, 0.3, 0.45, 0.5, 0.7, 0.9, 0.99} {
		got, err := stats.NormalQuantile(p)
		if err != nil {
			t.Fatalf("NormalQuantile(%v) returned error: %v", p, err)
		}
		want := distuv.UnitNormal.Quantile(p)
		if math.Abs(got-want) > 1e-3 {
			t.Errorf("NormalQuantile(%v) = %v, reference %v", p, got, want)
		}
	}
}

func TestNormalQuantile_Symmetry(t *testing.T) {
	for _, p := range []float64{0.01, 0.07, 0.2, 0.33} {
		lo, _ := stats.NormalQuantile(p)
		hi, _ := stats.NormalQuantile(1 - p)
		if math.Abs(lo+hi) > 1e-12 {
			t.Errorf("quantiles of %v and %v not symmetric: %v, %v", p, 1-p, lo, hi)
		}
		if lo >= 0 {
			t.Errorf("left tail quantile for %v should be negative, got %v", p, lo)
		}
	}
}

func TestNormalQuantile_Domain(t *testing.T) {
	for _, p := range []float64{0, 1, -0.5, 1.5, math.NaN()} {
		_, err := stats.NormalQuantile(p)
		if !errors.Is(err, stats.ErrDomain) {
			t.Errorf("NormalQuantile(%v) error = %v, want ErrDomain", p, err)
		}
	}
}

func TestCriticalValue(t *testing.T) {
	tests := []struct {
		alpha     float64
		expected  float64
		tolerance float64
	}{
		{0.05, 1.96, 0},
		{0.01, 2.576, 0},
		{0.10, 1.645, 0.001},
		{0.20, 1.2816, 0.001},
	}

	for _, tt := range tests {
		z, err := stats.CriticalValue(tt.alpha)
		if err != nil {
			t.Fatalf("CriticalValue(%v) returned error: %v", tt.alpha, err)
		}
		if math.Abs(z-tt.expected) > tt.tolerance {
			t.Errorf("CriticalValue(%f) = %f, want %f (tolerance %f)", tt.alpha, z, tt.expected, tt.tolerance)
		}
	}
}

func TestNormalCDF(t *testing.T) {
	if got := stats.NormalCDF(0); got != 0.5 {
		t.Errorf("NormalCDF(0) = %v, want 0.5", got)
	}
	if got := stats.NormalCDF(1.96); math.Abs(got-0.975) > 1e-4 {
		t.Errorf("NormalCDF(1.96) = %v, want ~0.975", got)
	}
	if got := stats.NormalCDF(-1.96) + stats.NormalCDF(1.96); math.Abs(got-1) > 1e-12 {
		t.Errorf("NormalCDF is not symmetric, sum = %v", got)
	}
}
