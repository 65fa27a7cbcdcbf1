package problem

import (
	"fmt"
	"math"

	"github.com/cwbudde/profilefit/internal/objective"
	"gonum.org/v1/gonum/mat"
)

// Gaussian builds an n-dimensional independent Gaussian log-posterior with
// the given center and per-dimension standard deviations. Every parameter is
// exposed as a property over the parameter box. Useful as a benchmark with a
// known analytic profile.
func Gaussian(center, sigma, lower, upper []float64) (*Problem, error) {
	n := len(center)
	if len(sigma) != n || len(lower) != n || len(upper) != n {
		return nil, fmt.Errorf("gaussian: center, sigma and bounds must have equal length")
	}
	for i, s := range sigma {
		if s <= 0 {
			return nil, fmt.Errorf("gaussian: sigma %d must be positive", i)
		}
	}

	mu := append([]float64(nil), center...)
	sd := append([]float64(nil), sigma...)
	logPost := func(theta []float64, order int) (float64, []float64, *mat.Dense, error) {
		v := 0.0
		for i, t := range theta {
			d := (t - mu[i]) / sd[i]
			v -= 0.5 * d * d
		}
		var grad []float64
		if order >= 1 {
			grad = make([]float64, n)
			for i, t := range theta {
				grad[i] = -(t - mu[i]) / (sd[i] * sd[i])
			}
		}
		var hess *mat.Dense
		if order >= 2 {
			hess = mat.NewDense(n, n, nil)
			for i := 0; i < n; i++ {
				hess.Set(i, i, -1/(sd[i]*sd[i]))
			}
		}
		return v, grad, hess, nil
	}

	p := &Problem{
		Name:      "gaussian",
		Lower:     append([]float64(nil), lower...),
		Upper:     append([]float64(nil), upper...),
		Objective: objective.NewObjective(logPost, objective.ScaleLogPosterior, n),
	}
	for i := 0; i < n; i++ {
		p.Properties = append(p.Properties, ParameterProperty(fmt.Sprintf("theta%d", i+1), i, lower[i], upper[i], n))
	}
	return p, nil
}

// Banana builds the two-dimensional Rosenbrock "banana" posterior
// logp = -(a-x)^2 - b(y-x^2)^2, a curved ridge that exercises the tracer's
// step adaptation. Both parameters are exposed as properties.
func Banana(a, b float64, lower, upper []float64) (*Problem, error) {
	if len(lower) != 2 || len(upper) != 2 {
		return nil, fmt.Errorf("banana: bounds must have length 2")
	}
	logPost := func(theta []float64, order int) (float64, []float64, *mat.Dense, error) {
		x, y := theta[0], theta[1]
		v := -(a-x)*(a-x) - b*(y-x*x)*(y-x*x)
		var grad []float64
		if order >= 1 {
			grad = []float64{
				2*(a-x) + 4*b*x*(y-x*x),
				-2 * b * (y - x*x),
			}
		}
		return v, grad, nil, nil
	}

	p := &Problem{
		Name:      "banana",
		Lower:     append([]float64(nil), lower...),
		Upper:     append([]float64(nil), upper...),
		Objective: objective.NewObjective(logPost, objective.ScaleLogPosterior, 2),
	}
	p.Properties = append(p.Properties,
		ParameterProperty("x", 0, lower[0], upper[0], 2),
		ParameterProperty("y", 1, lower[1], upper[1], 2),
	)
	return p, nil
}

// ExpDecay builds an exponential-decay regression posterior
// y(t) = amp * exp(-rate*t) with i.i.d. Gaussian noise of known sigma.
// Parameters are [amp, rate]. Properties: both parameters plus the model
// prediction at the last observed time point, a genuinely derived property.
func ExpDecay(times, observations []float64, sigma float64, lower, upper []float64) (*Problem, error) {
	if len(times) == 0 || len(times) != len(observations) {
		return nil, fmt.Errorf("expdecay: times and observations must be non-empty and equal length")
	}
	if sigma <= 0 {
		return nil, fmt.Errorf("expdecay: sigma must be positive")
	}
	if len(lower) != 2 || len(upper) != 2 {
		return nil, fmt.Errorf("expdecay: bounds must have length 2")
	}

	ts := append([]float64(nil), times...)
	ys := append([]float64(nil), observations...)
	inv := 1 / (sigma * sigma)
	logPost := func(theta []float64, order int) (float64, []float64, *mat.Dense, error) {
		amp, rate := theta[0], theta[1]
		v := 0.0
		var gAmp, gRate float64
		for i, t := range ts {
			pred := amp * math.Exp(-rate*t)
			r := ys[i] - pred
			v -= 0.5 * r * r * inv
			if order >= 1 {
				e := math.Exp(-rate * t)
				gAmp += r * inv * e
				gRate += r * inv * (-amp * t * e)
			}
		}
		var grad []float64
		if order >= 1 {
			grad = []float64{gAmp, gRate}
		}
		return v, grad, nil, nil
	}

	tEnd := ts[len(ts)-1]
	finalPred := func(theta []float64, order int) (float64, []float64, *mat.Dense, error) {
		amp, rate := theta[0], theta[1]
		e := math.Exp(-rate * tEnd)
		var grad []float64
		if order >= 1 {
			grad = []float64{e, -amp * tEnd * e}
		}
		return amp * e, grad, nil, nil
	}

	p := &Problem{
		Name:      "expdecay",
		Lower:     append([]float64(nil), lower...),
		Upper:     append([]float64(nil), upper...),
		Objective: objective.NewObjective(logPost, objective.ScaleLogPosterior, 2),
	}
	maxAmp := upper[0]
	p.Properties = append(p.Properties,
		ParameterProperty("amp", 0, lower[0], upper[0], 2),
		ParameterProperty("rate", 1, lower[1], upper[1], 2),
		objective.NewProperty("final_prediction", finalPred, 0, maxAmp, 2),
	)
	return p, nil
}

// ParameterProperty exposes a single parameter as a profiled property.
func ParameterProperty(name string, index int, min, max float64, nPar int) *objective.Property {
	fn := func(theta []float64, order int) (float64, []float64, *mat.Dense, error) {
		var grad []float64
		if order >= 1 {
			grad = make([]float64, nPar)
			grad[index] = 1
		}
		var hess *mat.Dense
		if order >= 2 {
			hess = mat.NewDense(nPar, nPar, nil)
		}
		return theta[index], grad, hess, nil
	}
	return objective.NewProperty(name, fn, min, max, nPar)
}

// LinearProperty exposes a linear combination c'theta as a profiled property.
func LinearProperty(name string, coeffs []float64, min, max float64) *objective.Property {
	n := len(coeffs)
	cs := append([]float64(nil), coeffs...)
	fn := func(theta []float64, order int) (float64, []float64, *mat.Dense, error) {
		v := 0.0
		for i, c := range cs {
			v += c * theta[i]
		}
		var grad []float64
		if order >= 1 {
			grad = append([]float64(nil), cs...)
		}
		var hess *mat.Dense
		if order >= 2 {
			hess = mat.NewDense(n, n, nil)
		}
		return v, grad, hess, nil
	}
	return objective.NewProperty(name, fn, min, max, n)
}
