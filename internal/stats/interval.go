package stats

import (
	"fmt"
	"math"

	mstats "github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"
)

// ProportionInterval is a confidence interval around a single rate.
type ProportionInterval struct {
	Rate   float64
	CILow  float64
	CIHigh float64
}

// MeanInterval is a confidence interval around a sample mean.
type MeanInterval struct {
	Mean   float64
	CILow  float64
	CIHigh float64
	N      int
}

// ProportionCI computes the Wald (normal approximation) interval for a
// proportion, clamped to [0, 1].
func ProportionCI(successes, total int, alpha float64) (ProportionInterval, error) {
	if err := (ArmCounts{Successes: successes, Total: total}).Validate(); err != nil {
		return ProportionInterval{}, err
	}
	if err := validateAlpha(alpha); err != nil {
		return ProportionInterval{}, err
	}

	rate := float64(successes) / float64(total)
	se := math.Sqrt(rate * (1 - rate) / float64(total))

	zCrit, err := CriticalValue(alpha)
	if err != nil {
		return ProportionInterval{}, err
	}

	return ProportionInterval{
		Rate:   rate,
		CILow:  math.Max(0, rate-zCrit*se),
		CIHigh: math.Min(1, rate+zCrit*se),
	}, nil
}

// MeanCI computes a large-sample normal interval for the mean of values.
// For small samples use MeanCIStudent.
func MeanCI(values []float64, alpha float64) (MeanInterval, error) {
	mean, se, err := meanAndStdErr(values, alpha)
	if err != nil {
		return MeanInterval{}, err
	}

	zCrit, err := CriticalValue(alpha)
	if err != nil {
		return MeanInterval{}, err
	}

	return MeanInterval{
		Mean:   mean,
		CILow:  mean - zCrit*se,
		CIHigh: mean + zCrit*se,
		N:      len(values),
	}, nil
}

// MeanCIStudent is MeanCI with a Student-t critical value on n-1 degrees
// of freedom.
func MeanCIStudent(values []float64, alpha float64) (MeanInterval, error) {
	mean, se, err := meanAndStdErr(values, alpha)
	if err != nil {
		return MeanInterval{}, err
	}

	tCrit := TCriticalValue(len(values)-1, alpha)

	return MeanInterval{
		Mean:   mean,
		CILow:  mean - tCrit*se,
		CIHigh: mean + tCrit*se,
		N:      len(values),
	}, nil
}

// TCriticalValue returns the two-sided Student-t critical value.
func TCriticalValue(df int, alpha float64) float64 {
	t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(df)}
	return t.Quantile(1 - alpha/2)
}

func meanAndStdErr(values []float64, alpha float64) (mean, se float64, err error) {
	if len(values) < 2 {
		return 0, 0, fmt.Errorf("%w: need at least 2 values to compute confidence interval, got %d", ErrInsufficientData, len(values))
	}
	if err := validateAlpha(alpha); err != nil {
		return 0, 0, err
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, 0, fmt.Errorf("%w: value %d is not a finite number", ErrInvalidInput, i)
		}
	}

	mean, err = mstats.Mean(values)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to compute mean: %w", err)
	}
	stdev, err := mstats.StandardDeviationSample(values)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to compute standard deviation: %w", err)
	}

	return mean, stdev / math.Sqrt(float64(len(values))), nil
}
