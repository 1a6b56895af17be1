package stats

import "math"

// PrettyRound rounds a value to a precision that reads well in reports:
// one decimal from 100 up, two from 1, three from 0.01, four below.
func PrettyRound(value float64) float64 {
	abs := math.Abs(value)
	switch {
	case abs >= 100:
		return RoundTo(value, 1)
	case abs >= 1:
		return RoundTo(value, 2)
	case abs >= 0.01:
		return RoundTo(value, 3)
	default:
		return RoundTo(value, 4)
	}
}

// RoundTo rounds value half away from zero to the given decimal places.
func RoundTo(value float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(value*scale) / scale
}
