package stats

import "math"

// WilsonInterval calculates the Wilson score confidence interval
// for a binomial proportion. It's more accurate for small samples
// and rates near 0 or 1 than the Wald interval.
func WilsonInterval(successes, trials int, alpha float64) (ProportionInterval, error) {
	if err := (ArmCounts{Successes: successes, Total: trials}).Validate(); err != nil {
		return ProportionInterval{}, err
	}
	if err := validateAlpha(alpha); err != nil {
		return ProportionInterval{}, err
	}

	z, err := CriticalValue(alpha)
	if err != nil {
		return ProportionInterval{}, err
	}
	p := float64(successes) / float64(trials)
	n := float64(trials)

	denominator := 1 + z*z/n
	center := (p + z*z/(2*n)) / denominator
	spread := (z / denominator) * math.Sqrt(p*(1-p)/n+z*z/(4*n*n))

	return ProportionInterval{
		Rate:   p,
		CILow:  math.Max(0, center-spread),
		CIHigh: math.Min(1, center+spread),
	}, nil
}
