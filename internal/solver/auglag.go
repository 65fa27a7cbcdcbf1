package solver

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

const (
	armijoSigma  = 1e-4
	maxBacktrack = 40
)

// scalarConstraint is a constraint folded into the augmented Lagrangian,
// normalized to c(x) >= 0 (inequality) or c(x) = 0 (equality).
type scalarConstraint struct {
	kind   ConstraintKind
	eval   func(x []float64) float64
	grad   func(x []float64, grad []float64)
	lambda float64
}

// Solve minimizes p.Objective subject to bounds and constraints, starting
// from x0. The returned point is always well-defined: on failure it is the
// best iterate reached.
func Solve(p Problem, x0 []float64, opts Options) Result {
	opts = opts.sanitize()

	x := append([]float64(nil), x0...)
	clampToBounds(x, p.Lower, p.Upper)

	evals := 0
	obj := func(v []float64) float64 {
		evals++
		return p.Objective(v)
	}
	objGrad := p.Gradient
	if objGrad == nil {
		objGrad = func(v, g []float64) { finiteDiff(obj, v, g, opts.FiniteDiffStep) }
	}

	cons := assembleConstraints(p, opts.FiniteDiffStep)
	mu := opts.InitialPenalty

	res := Result{X: x, F: obj(x), Status: NotConverged}
	if len(cons) == 0 {
		// Bound-constrained only: a single inner solve suffices.
		st, iters := projectedDescent(obj, objGrad, x, p.Lower, p.Upper, nil, 0, opts)
		res.Iterations = iters
		res.F = obj(x)
		res.Status = st
		res.FuncEvals = evals
		return res
	}

	prevViol := math.Inf(1)
	for outer := 0; outer < opts.MaxOuterIterations; outer++ {
		res.Outer = outer + 1

		st, iters := projectedDescent(obj, objGrad, x, p.Lower, p.Upper, cons, mu, opts)
		res.Iterations += iters

		viol := worstViolation(cons, x)
		f := obj(x)
		res.F = f
		res.X = x

		if viol <= opts.ConstraintTol {
			if st == Converged {
				if math.IsInf(f, 1) {
					res.Status = FunctionError
				} else {
					res.Status = Converged
				}
				res.FuncEvals = evals
				return res
			}
			if st == LineSearchFailure {
				res.Status = LineSearchFailure
				res.FuncEvals = evals
				return res
			}
		}

		// Multiplier update, then stiffen the penalty if feasibility stalls.
		for i := range cons {
			c := cons[i].eval(x)
			if cons[i].kind == Equality {
				cons[i].lambda += mu * c
			} else {
				cons[i].lambda = math.Max(0, cons[i].lambda-mu*c)
			}
		}
		if viol > 0.25*prevViol {
			mu *= opts.PenaltyGrowth
		}
		prevViol = viol
	}

	if worstViolation(cons, x) > opts.ConstraintTol {
		res.Status = Infeasible
	} else {
		res.Status = MaxIterations
	}
	res.FuncEvals = evals
	return res
}

// assembleConstraints folds nonlinear and linear constraints into one list.
func assembleConstraints(p Problem, fdStep float64) []scalarConstraint {
	var cons []scalarConstraint
	for _, c := range p.Constraints {
		sc := scalarConstraint{kind: c.Kind, eval: c.Eval, grad: c.Grad}
		if sc.grad == nil {
			eval := c.Eval
			sc.grad = func(x, g []float64) { finiteDiff(func(v []float64) float64 { return eval(v) }, x, g, fdStep) }
		}
		cons = append(cons, sc)
	}
	for i := 0; i < p.LinIneq.Rows(); i++ {
		row := append([]float64(nil), p.LinIneq.A.RawRowView(i)...)
		b := p.LinIneq.B[i]
		cons = append(cons, scalarConstraint{
			kind: Inequality,
			eval: func(x []float64) float64 { return b - floats.Dot(row, x) },
			grad: func(x, g []float64) {
				for j := range g {
					g[j] = -row[j]
				}
			},
		})
	}
	for i := 0; i < p.LinEq.Rows(); i++ {
		row := append([]float64(nil), p.LinEq.A.RawRowView(i)...)
		b := p.LinEq.B[i]
		cons = append(cons, scalarConstraint{
			kind: Equality,
			eval: func(x []float64) float64 { return floats.Dot(row, x) - b },
			grad: func(x, g []float64) { copy(g, row) },
		})
	}
	return cons
}

// augmented evaluates the augmented Lagrangian at x.
func augmented(obj func([]float64) float64, cons []scalarConstraint, mu float64, x []float64) float64 {
	phi := obj(x)
	if !isFinite(phi) {
		return math.Inf(1)
	}
	for i := range cons {
		c := cons[i].eval(x)
		if !isFinite(c) {
			return math.Inf(1)
		}
		lam := cons[i].lambda
		if cons[i].kind == Equality {
			phi += lam*c + 0.5*mu*c*c
		} else if s := lam - mu*c; s > 0 {
			phi += (s*s - lam*lam) / (2 * mu)
		} else {
			phi += -lam * lam / (2 * mu)
		}
	}
	return phi
}

// augmentedGrad accumulates the augmented Lagrangian gradient into g.
func augmentedGrad(objGrad func([]float64, []float64), cons []scalarConstraint, mu float64, x, g, scratch []float64) {
	objGrad(x, g)
	for i := range cons {
		c := cons[i].eval(x)
		if !isFinite(c) {
			continue
		}
		lam := cons[i].lambda
		var w float64
		if cons[i].kind == Equality {
			w = lam + mu*c
		} else if s := lam - mu*c; s > 0 {
			w = -s
		} else {
			continue
		}
		cons[i].grad(x, scratch)
		floats.AddScaled(g, w, scratch)
	}
}

// projectedDescent runs bound-projected gradient descent with Armijo
// backtracking on the augmented Lagrangian, mutating x in place.
func projectedDescent(obj func([]float64) float64, objGrad func([]float64, []float64), x, lower, upper []float64, cons []scalarConstraint, mu float64, opts Options) (Status, int) {
	n := len(x)
	g := make([]float64, n)
	scratch := make([]float64, n)
	trial := make([]float64, n)

	phi := func(v []float64) float64 {
		if cons == nil {
			return obj(v)
		}
		return augmented(obj, cons, mu, v)
	}
	phiGrad := func(v, dst []float64) {
		if cons == nil {
			objGrad(v, dst)
			return
		}
		augmentedGrad(objGrad, cons, mu, v, dst, scratch)
	}

	cur := phi(x)
	step := 1.0
	for iter := 0; iter < opts.MaxInnerIterations; iter++ {
		phiGrad(x, g)

		// Projected gradient stationarity test.
		pg := 0.0
		for i := range x {
			t := x[i] - g[i]
			if lower != nil && t < lower[i] {
				t = lower[i]
			}
			if upper != nil && t > upper[i] {
				t = upper[i]
			}
			if d := math.Abs(t - x[i]); d > pg {
				pg = d
			}
		}
		if pg < opts.GradTol {
			return Converged, iter
		}

		accepted := false
		t := step
		for k := 0; k < maxBacktrack; k++ {
			for i := range x {
				trial[i] = x[i] - t*g[i]
			}
			clampToBounds(trial, lower, upper)

			decrease := 0.0
			for i := range x {
				decrease += g[i] * (x[i] - trial[i])
			}
			next := phi(trial)
			var ok bool
			if math.IsInf(cur, 1) {
				// Escaping an infeasible point: any finite value counts.
				ok = isFinite(next)
			} else {
				ok = decrease > 0 && next <= cur-armijoSigma*decrease
			}
			if ok {
				moved := floats.Distance(x, trial, math.Inf(1))
				copy(x, trial)
				cur = next
				accepted = true
				// Grow the step again after a clean acceptance.
				if k == 0 {
					step = math.Min(t*2, 1e6)
				} else {
					step = t
				}
				if moved < opts.StepTol {
					return Converged, iter + 1
				}
				break
			}
			t /= 2
		}
		if !accepted {
			return LineSearchFailure, iter + 1
		}
	}
	return MaxIterations, opts.MaxInnerIterations
}

// worstViolation returns the largest constraint violation at x.
func worstViolation(cons []scalarConstraint, x []float64) float64 {
	worst := 0.0
	for i := range cons {
		c := cons[i].eval(x)
		if !isFinite(c) {
			return math.Inf(1)
		}
		var v float64
		if cons[i].kind == Equality {
			v = math.Abs(c)
		} else {
			v = math.Max(0, -c)
		}
		if v > worst {
			worst = v
		}
	}
	return worst
}

// finiteDiff computes a central-difference gradient, falling back to
// one-sided differences next to infeasible (+Inf) regions.
func finiteDiff(f func([]float64) float64, x, g []float64, h float64) {
	base := math.NaN()
	v := append([]float64(nil), x...)
	for i := range x {
		step := h * math.Max(1, math.Abs(x[i]))
		v[i] = x[i] + step
		fp := f(v)
		v[i] = x[i] - step
		fm := f(v)
		v[i] = x[i]

		switch {
		case isFinite(fp) && isFinite(fm):
			g[i] = (fp - fm) / (2 * step)
		case isFinite(fp):
			if math.IsNaN(base) {
				base = f(x)
			}
			g[i] = safeSlope(fp, base, step)
		case isFinite(fm):
			if math.IsNaN(base) {
				base = f(x)
			}
			g[i] = safeSlope(base, fm, step)
		default:
			g[i] = 0
		}
	}
}

func safeSlope(hi, lo, step float64) float64 {
	if !isFinite(hi) || !isFinite(lo) {
		return 0
	}
	return (hi - lo) / step
}

func isFinite(v float64) bool {
	return !math.IsInf(v, 0) && !math.IsNaN(v)
}
