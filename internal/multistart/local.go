package multistart

import (
	"math"

	"gonum.org/v1/gonum/optimize"
)

const boundPenaltyWeight = 1e8

// refineLocal polishes a start with derivative-free Nelder-Mead. Bounds are
// enforced with a quadratic exterior penalty, then the result is clamped back
// into the box and re-scored without the penalty.
func refineLocal(eval func([]float64) float64, x0, lower, upper []float64, maxIters int) ([]float64, float64) {
	penalized := func(x []float64) float64 {
		v := eval(x)
		if math.IsNaN(v) {
			return math.Inf(1)
		}
		for i, xi := range x {
			if d := lower[i] - xi; d > 0 {
				v += boundPenaltyWeight * d * d
			}
			if d := xi - upper[i]; d > 0 {
				v += boundPenaltyWeight * d * d
			}
		}
		return v
	}

	p := optimize.Problem{Func: penalized}
	settings := &optimize.Settings{MajorIterations: maxIters}

	res, err := optimize.Minimize(p, append([]float64(nil), x0...), settings, &optimize.NelderMead{})
	if err != nil || res == nil {
		// Keep the unpolished start rather than failing the whole run.
		return append([]float64(nil), x0...), eval(x0)
	}

	x := res.X
	for i := range x {
		x[i] = math.Max(lower[i], math.Min(upper[i], x[i]))
	}
	return x, eval(x)
}
