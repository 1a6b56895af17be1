package stats

import (
	"fmt"
	"math"
)

// ArmCounts holds the conversion counts for one arm of an experiment.
type ArmCounts struct {
	Successes int
	Total     int
}

// Validate checks that the counts describe a proportion.
func (c ArmCounts) Validate() error {
	if c.Total <= 0 {
		return fmt.Errorf("%w: total observations must be positive, got %d", ErrInvalidInput, c.Total)
	}
	if c.Successes < 0 {
		return fmt.Errorf("%w: successes cannot be negative, got %d", ErrInvalidInput, c.Successes)
	}
	if c.Successes > c.Total {
		return fmt.Errorf("%w: successes (%d) cannot exceed total observations (%d)", ErrInvalidInput, c.Successes, c.Total)
	}
	return nil
}

// Rate returns Successes/Total, or 0 for an empty arm.
func (c ArmCounts) Rate() float64 {
	if c.Total == 0 {
		return 0
	}
	return float64(c.Successes) / float64(c.Total)
}

// TestResult is the outcome of a two-sample proportion test.
// The confidence interval bounds the absolute effect (B - A).
type TestResult struct {
	PValue    float64
	CILow     float64
	CIHigh    float64
	EffectAbs float64
	EffectRel float64 // +Inf when the control rate is zero
	Z         float64
	PooledSE  float64
}

// Significant reports whether the result rejects the null at alpha.
func (r TestResult) Significant(alpha float64) bool {
	return r.PValue < alpha
}

// TwoProportionTest performs a two-sample z-test with pooled variance,
// comparing arm b (treatment) against arm a (control).
func TwoProportionTest(a, b ArmCounts, alpha float64) (TestResult, error) {
	if err := a.Validate(); err != nil {
		return TestResult{}, fmt.Errorf("arm a: %w", err)
	}
	if err := b.Validate(); err != nil {
		return TestResult{}, fmt.Errorf("arm b: %w", err)
	}
	if err := validateAlpha(alpha); err != nil {
		return TestResult{}, err
	}

	pA := a.Rate()
	pB := b.Rate()
	nA := float64(a.Total)
	nB := float64(b.Total)

	effectAbs := pB - pA
	effectRel := math.Inf(1)
	if pA > 0 {
		effectRel = effectAbs / pA
	}

	// Pooled proportion under the null hypothesis (pA = pB)
	pooledP := float64(a.Successes+b.Successes) / (nA + nB)
	pooledSE := math.Sqrt(pooledP * (1 - pooledP) * (1/nA + 1/nB))

	z := 0.0
	if pooledSE > 0 {
		z = effectAbs / pooledSE
	}

	pValue := 2 * (1 - NormalCDF(math.Abs(z)))
	// erf rounding can push the tail a hair outside [0, 1]
	pValue = math.Min(1, math.Max(0, pValue))

	zCrit, err := CriticalValue(alpha)
	if err != nil {
		return TestResult{}, err
	}
	unpooledSE := math.Sqrt(pA*(1-pA)/nA + pB*(1-pB)/nB)

	return TestResult{
		PValue:    pValue,
		CILow:     effectAbs - zCrit*unpooledSE,
		CIHigh:    effectAbs + zCrit*unpooledSE,
		EffectAbs: effectAbs,
		EffectRel: effectRel,
		Z:         z,
		PooledSE:  pooledSE,
	}, nil
}
