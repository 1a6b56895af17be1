package stats_test

import (
	"errors"
	"testing"

	"github.com/headline-goat/abpower/internal/stats"
)

func TestWilsonInterval_50PercentConversion(t *testing.T) {
	// 50 successes out of 100 trials
	ci, err := stats.WilsonInterval(50, 100, 0.05)
	if err != nil {
		t.Fatalf("WilsonInterval returned error: %v", err)
	}

	// Expected: approximately [0.40, 0.60] with some tolerance
	if ci.CILow < 0.38 || ci.CILow > 0.42 {
		t.Errorf("lower bound %f not in expected range [0.38, 0.42]", ci.CILow)
	}
	if ci.CIHigh < 0.58 || ci.CIHigh > 0.62 {
		t.Errorf("upper bound %f not in expected range [0.58, 0.62]", ci.CIHigh)
	}
}

func TestWilsonInterval_LowConversion(t *testing.T) {
	ci, _ := stats.WilsonInterval(5, 100, 0.05)

	// Should be roughly [0.02, 0.11]
	if ci.CILow < 0.01 || ci.CILow > 0.03 {
		t.Errorf("lower bound %f not in expected range [0.01, 0.03]", ci.CILow)
	}
	if ci.CIHigh < 0.09 || ci.CIHigh > 0.13 {
		t.Errorf("upper bound %f not in expected range [0.09, 0.13]", ci.CIHigh)
	}
}

func TestWilsonInterval_ZeroSuccesses(t *testing.T) {
	ci, _ := stats.WilsonInterval(0, 100, 0.05)

	if ci.CILow != 0 {
		t.Errorf("expected lower bound 0, got %f", ci.CILow)
	}
	if ci.CIHigh < 0.01 || ci.CIHigh > 0.05 {
		t.Errorf("upper bound %f not in expected range [0.01, 0.05]", ci.CIHigh)
	}
}

func TestWilsonInterval_AllSuccesses(t *testing.T) {
	ci, _ := stats.WilsonInterval(100, 100, 0.05)

	if ci.CILow < 0.95 || ci.CILow > 0.99 {
		t.Errorf("lower bound %f not in expected range [0.95, 0.99]", ci.CILow)
	}
	if ci.CIHigh < 0.99 || ci.CIHigh > 1.0 {
		t.Errorf("upper bound %f not in expected range [0.99, 1.0]", ci.CIHigh)
	}
}

func TestWilsonInterval_SmallSample(t *testing.T) {
	ci, _ := stats.WilsonInterval(5, 10, 0.05)

	if width := ci.CIHigh - ci.CILow; width < 0.3 {
		t.Errorf("interval width %f too narrow for small sample", width)
	}
}

func TestWilsonInterval_ZeroTrials(t *testing.T) {
	if _, err := stats.WilsonInterval(0, 0, 0.05); !errors.Is(err, stats.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for zero trials, got %v", err)
	}
}
