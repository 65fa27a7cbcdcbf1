package objective

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Property is a named scalar function of the parameter vector with a bounded
// domain [Min, Max]. Profiles are traced per property.
type Property struct {
	Name string
	Min  float64
	Max  float64

	fn   Func
	nPar int
}

// NewProperty wraps a property callback into a robust evaluator.
func NewProperty(name string, fn Func, min, max float64, nPar int) *Property {
	return &Property{Name: name, Min: min, Max: max, fn: fn, nPar: nPar}
}

// Value evaluates the raw property at theta. ok is false when the callback
// failed or produced NaN.
func (p *Property) Value(theta []float64) (float64, bool) {
	e := p.evaluateRaw(theta, 0)
	if e.Failed {
		return math.Inf(1), false
	}
	return e.Value, true
}

// EvaluateDirected returns the property in the form the profile solver
// minimizes. Direction -1 clamps the value below at Min (zeroing derivatives
// at the clamp) and keeps the sign; direction +1 clamps above at Max and
// negates value and derivatives so that minimization drives the property up.
func (p *Property) EvaluateDirected(theta []float64, dir, order int) Eval {
	e := p.evaluateRaw(theta, order)
	if e.Failed {
		return e
	}
	switch {
	case dir < 0:
		if e.Value < p.Min {
			return p.clamped(p.Min, order)
		}
	default:
		if e.Value > p.Max {
			e = p.clamped(p.Max, order)
		}
		e.Value = -e.Value
		if e.Grad != nil {
			for i := range e.Grad {
				e.Grad[i] = -e.Grad[i]
			}
		}
		if e.Hess != nil {
			e.Hess.Scale(-1, e.Hess)
		}
	}
	return e
}

// BoundaryConstraint returns the constraint used to pin a reoptimization
// exactly at the relevant domain bound: value-Min for direction -1 and
// Max-value for direction +1, feasible when >= 0. Only value and gradient are
// meaningful for the solver; order controls whether the gradient is computed.
func (p *Property) BoundaryConstraint(theta []float64, dir, order int) Eval {
	e := p.evaluateRaw(theta, order)
	if e.Failed {
		return e
	}
	if dir < 0 {
		e.Value -= p.Min
	} else {
		e.Value = p.Max - e.Value
		if e.Grad != nil {
			for i := range e.Grad {
				e.Grad[i] = -e.Grad[i]
			}
		}
	}
	e.Hess = nil
	return e
}

// evaluateRaw calls the user property with the same NaN/panic hardening as
// the robust objective, without any sign convention.
func (p *Property) evaluateRaw(theta []float64, order int) Eval {
	val, grad, hess, err := p.callSafe(theta, order)
	if err != nil || math.IsNaN(val) {
		return failedEval(p.nPar, order)
	}
	out := Eval{Value: val}
	if order >= 1 {
		if grad == nil || len(grad) != p.nPar || hasNaN(grad) {
			return failedEval(p.nPar, order)
		}
		out.Grad = append([]float64(nil), grad...)
	}
	if order >= 2 {
		if hess == nil || !denseIsClean(hess, p.nPar) {
			return failedEval(p.nPar, order)
		}
		out.Hess = mat.DenseCopyOf(hess)
	}
	return out
}

// clamped builds an evaluation pinned at a bound with zero derivatives.
func (p *Property) clamped(bound float64, order int) Eval {
	out := Eval{Value: bound}
	if order >= 1 {
		out.Grad = make([]float64, p.nPar)
	}
	if order >= 2 {
		out.Hess = mat.NewDense(p.nPar, p.nPar, nil)
	}
	return out
}

func (p *Property) callSafe(theta []float64, order int) (val float64, grad []float64, hess *mat.Dense, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errEvaluationPanic
		}
	}()
	val, grad, hess, err = p.fn(theta, order)
	return
}
