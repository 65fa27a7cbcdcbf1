package profile

import (
	"log/slog"
	"math"

	"github.com/cwbudde/profilefit/internal/objective"
	"github.com/cwbudde/profilefit/internal/problem"
	"github.com/cwbudde/profilefit/internal/solver"
)

// tracer walks one property's profile away from the MAP in both directions.
// Each accepted point is the solution of a constrained solve: push the
// property as far as possible while the posterior stays above a moving floor.
type tracer struct {
	prob  *problem.Problem
	prop  *objective.Property
	index int
	cfg   *Config

	mapTheta   []float64
	logPostMAP float64
	// logPostMax is the best log-posterior over all starts, the fixed
	// reference level for target computation.
	logPostMax float64

	store *Store

	// Whether the user callbacks supply analytic gradients, probed once at
	// the anchor so the hot loop never guesses.
	objGrad  bool
	propGrad bool
}

func newTracer(prob *problem.Problem, prop *objective.Property, index int, mapTheta []float64, logPostMAP float64, cfg *Config) (*tracer, error) {
	anchorVal, ok := prop.Value(mapTheta)
	if !ok {
		return nil, &ConfigError{Reason: "property " + prop.Name + " failed to evaluate at the MAP point"}
	}
	t := &tracer{
		prob:       prob,
		prop:       prop,
		index:      index,
		cfg:        cfg,
		mapTheta:   append([]float64(nil), mapTheta...),
		logPostMAP: logPostMAP,
		logPostMax: logPostMAP,
		store: NewStore(Point{
			PropValue: anchorVal,
			Theta:     append([]float64(nil), mapTheta...),
			LogPost:   logPostMAP,
			Ratio:     1,
			Status:    solver.Converged,
		}),
	}
	t.objGrad = !prob.Objective.Evaluate(mapTheta, 1).Failed
	t.propGrad = !prop.EvaluateDirected(mapTheta, -1, 1).Failed

	if anchorVal < prop.Min || anchorVal > prop.Max {
		slog.Warn("MAP property value outside its domain, profiling from out-of-range anchor",
			"property", prop.Name, "value", anchorVal, "min", prop.Min, "max", prop.Max)
	}
	return t, nil
}

// run traces both directions and returns the assembled profile.
func (t *tracer) run() *Profile {
	t.trace(-1)
	t.trace(+1)
	return &Profile{Name: t.prop.Name, Index: t.index, Points: t.store.Points()}
}

// trace grows the profile in one direction until the stopping rule fires:
// the likelihood ratio fell below RMin, or the property value reached the
// boundary tolerance band of its own bound.
func (t *tracer) trace(dir int) {
	jObj := func(x []float64) float64 { return t.prob.Objective.Evaluate(x, 0).Value }
	var jGrad func(x, g []float64)
	if t.objGrad {
		jGrad = func(x, g []float64) { copy(g, t.prob.Objective.Evaluate(x, 1).Grad) }
	}
	dirObj := func(x []float64) float64 { return t.prop.EvaluateDirected(x, dir, 0).Value }
	var dirGrad func(x, g []float64)
	if t.propGrad {
		dirGrad = func(x, g []float64) { copy(g, t.prop.EvaluateDirected(x, dir, 1).Grad) }
	}

	cur := t.store.Last(dir)
	var prevTheta []float64

	for t.shouldContinue(dir, cur.PropValue, cur.LogPost) && t.store.Count(dir) < t.cfg.MaxPoints {
		// Posterior floor for this step: the ratio may drop by at most
		// DRMax per point, with the allowance damped by DJ as the trace
		// moves away from the global maximum.
		logTarget := math.Log(1-t.cfg.DRMax) + t.cfg.DJ*(cur.LogPost-t.logPostMax) + cur.LogPost
		jTarget := -logTarget

		// Warm start along the recent trace direction (parallel path).
		start := cur.Theta
		if t.cfg.WarmStart && prevTheta != nil {
			step := make([]float64, len(cur.Theta))
			for i := range step {
				step[i] = cur.Theta[i] - prevTheta[i]
			}
			stepCfg := t.cfg.Step
			start, _ = ProposeStep(cur.Theta, t.prob.Lower, t.prob.Upper, step, stepCfg, jTarget, jObj, t.prob.LinIneq)
		}

		// Push the property to its extremum under the posterior floor.
		res := solver.Solve(solver.Problem{
			Objective:   dirObj,
			Gradient:    dirGrad,
			Lower:       t.prob.Lower,
			Upper:       t.prob.Upper,
			LinIneq:     t.prob.LinIneq,
			LinEq:       t.prob.LinEq,
			Constraints: []solver.Constraint{posteriorFloor(t.prob.Objective, jTarget, t.objGrad)},
		}, start, t.cfg.Solver)

		theta := res.X
		status := res.Status

		// Undo the sign convention to recover the true property value.
		raw := res.F
		if dir > 0 {
			raw = -raw
		}

		var logPost float64
		switch {
		case dir < 0 && raw <= t.prop.Min, dir > 0 && raw >= t.prop.Max:
			// The extremum ran past the domain bound: discard it and
			// reoptimize the posterior with the property pinned exactly at
			// the bound. That solve's posterior is authoritative here.
			bres := solver.Solve(solver.Problem{
				Objective:   jObj,
				Gradient:    jGrad,
				Lower:       t.prob.Lower,
				Upper:       t.prob.Upper,
				LinIneq:     t.prob.LinIneq,
				LinEq:       t.prob.LinEq,
				Constraints: []solver.Constraint{boundaryPin(t.prop, dir, t.propGrad)},
			}, theta, t.cfg.Solver)
			theta = bres.X
			status = bres.Status
			logPost = -bres.F
			if dir < 0 {
				raw = t.prop.Min
			} else {
				raw = t.prop.Max
			}
		default:
			logPost = -t.prob.Objective.Evaluate(theta, 0).Value
		}

		pt := Point{
			PropValue: raw,
			Theta:     append([]float64(nil), theta...),
			LogPost:   logPost,
			Ratio:     math.Exp(logPost - t.logPostMAP),
			Status:    status,
		}
		// Failed solves are recorded, not retried: the next floor is
		// computed from whatever posterior was actually attained, so the
		// trace self-corrects.
		t.store.Append(dir, pt)

		if t.cfg.Progress != nil {
			t.cfg.Progress.Point(t.prop.Name, t.index, dir, t.store.Count(dir), pt.PropValue, pt.Ratio)
		}
		if t.cfg.Sink != nil {
			if err := t.cfg.Sink.AppendPoint(t.index, dir, pt); err != nil {
				slog.Warn("Failed to persist profile point", "property", t.prop.Name, "error", err)
			}
		}

		prevTheta = cur.Theta
		cur = pt
	}
}

// shouldContinue is the conjunctive stopping rule. The bound clause only
// applies to this direction's own bound; the opposite bound never stops it.
func (t *tracer) shouldContinue(dir int, propVal, logPost float64) bool {
	if logPost < math.Log(t.cfg.RMin)+t.logPostMAP {
		return false
	}
	if dir < 0 {
		return propVal > t.prop.Min+t.cfg.BoundaryTol
	}
	return propVal < t.prop.Max-t.cfg.BoundaryTol
}
