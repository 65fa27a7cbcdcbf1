package objective

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Scale declares the sign convention of a user-supplied posterior function.
type Scale int

const (
	// ScaleLogPosterior means the callback returns a log-posterior (to be maximized).
	ScaleLogPosterior Scale = iota
	// ScaleNegLogPosterior means the callback already returns a negative
	// log-posterior (to be minimized).
	ScaleNegLogPosterior
)

// Func is a user posterior callback. The order argument requests how many
// derivative levels are needed: 0 = value only, 1 = value and gradient,
// 2 = value, gradient and Hessian. Callbacks may return nil for derivative
// levels they were not asked for.
type Func func(theta []float64, order int) (float64, []float64, *mat.Dense, error)

// Eval is the result of a robust evaluation in minimization form
// (negative log-posterior). Grad and Hess are populated up to the requested
// derivative order. Failed reports that the callback errored, panicked, or
// produced NaN anywhere; in that case Value is +Inf and all derivatives are
// zero with the correct shapes.
type Eval struct {
	Value  float64
	Grad   []float64
	Hess   *mat.Dense
	Failed bool
}

// Objective wraps a user posterior callback so the optimization layers always
// receive well-formed minimization data. Bad evaluations become +Inf with
// zeroed derivatives instead of propagating as errors.
type Objective struct {
	fn   Func
	sign float64
	nPar int
}

// NewObjective builds a robust objective for a parameter space of nPar
// dimensions. The sign convention is resolved here once; evaluation never
// branches on the scale again.
func NewObjective(fn Func, scale Scale, nPar int) *Objective {
	sign := 1.0
	if scale == ScaleLogPosterior {
		sign = -1.0
	}
	return &Objective{fn: fn, sign: sign, nPar: nPar}
}

// NPar returns the parameter space dimension.
func (o *Objective) NPar() int { return o.nPar }

// Evaluate computes the negative log-posterior at theta with the requested
// derivative order (0, 1 or 2). It never panics and never returns NaN.
func (o *Objective) Evaluate(theta []float64, order int) Eval {
	val, grad, hess, err := o.callSafe(theta, order)
	if err != nil {
		return o.failed(order)
	}
	if math.IsNaN(val) {
		return o.failed(order)
	}
	out := Eval{Value: o.sign * val}
	if order >= 1 {
		if grad == nil || len(grad) != o.nPar || hasNaN(grad) {
			return o.failed(order)
		}
		out.Grad = make([]float64, o.nPar)
		for i, g := range grad {
			out.Grad[i] = o.sign * g
		}
	}
	if order >= 2 {
		if hess == nil || !denseIsClean(hess, o.nPar) {
			return o.failed(order)
		}
		out.Hess = mat.NewDense(o.nPar, o.nPar, nil)
		out.Hess.Scale(o.sign, hess)
	}
	return out
}

// LogPosterior evaluates the log-posterior at theta. Failures surface as -Inf.
func (o *Objective) LogPosterior(theta []float64) float64 {
	return -o.Evaluate(theta, 0).Value
}

func (o *Objective) callSafe(theta []float64, order int) (val float64, grad []float64, hess *mat.Dense, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errEvaluationPanic
		}
	}()
	val, grad, hess, err = o.fn(theta, order)
	return
}

func (o *Objective) failed(order int) Eval {
	return failedEval(o.nPar, order)
}

// failedEval builds the +Inf sentinel with correctly shaped zero derivatives.
func failedEval(nPar, order int) Eval {
	out := Eval{Value: math.Inf(1), Failed: true}
	if order >= 1 {
		out.Grad = make([]float64, nPar)
	}
	if order >= 2 {
		out.Hess = mat.NewDense(nPar, nPar, nil)
	}
	return out
}

func hasNaN(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) {
			return true
		}
	}
	return false
}

func denseIsClean(m *mat.Dense, n int) bool {
	r, c := m.Dims()
	if r != n || c != n {
		return false
	}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if math.IsNaN(m.At(i, j)) {
				return false
			}
		}
	}
	return true
}

type evalError string

func (e evalError) Error() string { return string(e) }

const errEvaluationPanic = evalError("objective: evaluation panicked")
