// Package solver implements a bounded nonlinear constrained minimizer used by
// the profile tracer and the multi-start refinement. It combines an augmented
// Lagrangian outer loop with a projected-gradient inner solver, and tolerates
// +Inf objective and constraint values so robust-wrapped callbacks can signal
// infeasibility without aborting the solve.
package solver

// ConstraintKind distinguishes inequality constraints c(x) >= 0 from
// equality constraints c(x) = 0.
type ConstraintKind int

const (
	Inequality ConstraintKind = iota
	Equality
)

// Constraint is a scalar nonlinear constraint. Grad may be nil, in which case
// the solver falls back to finite differences.
type Constraint struct {
	Kind ConstraintKind
	Eval func(x []float64) float64
	Grad func(x []float64, grad []float64)
}

// Problem describes a bounded, linearly and nonlinearly constrained
// minimization. Gradient may be nil; Lower/Upper may be nil for an unbounded
// side. LinIneq rows are A*x <= b, LinEq rows are Aeq*x = beq.
type Problem struct {
	Objective func(x []float64) float64
	Gradient  func(x []float64, grad []float64)

	Lower []float64
	Upper []float64

	LinIneq *LinearConstraints
	LinEq   *LinearConstraints

	Constraints []Constraint
}

// Options tunes the augmented Lagrangian solve.
type Options struct {
	MaxOuterIterations int
	MaxInnerIterations int

	// GradTol is the convergence threshold on the projected gradient norm.
	GradTol float64
	// ConstraintTol is the feasibility threshold on the worst violation.
	ConstraintTol float64
	// StepTol stops the inner solver once steps become this small.
	StepTol float64

	InitialPenalty float64
	PenaltyGrowth  float64
	FiniteDiffStep float64
}

// DefaultOptions returns tolerances suitable for profile tracing.
func DefaultOptions() Options {
	return Options{
		MaxOuterIterations: 25,
		MaxInnerIterations: 300,
		GradTol:            1e-6,
		ConstraintTol:      1e-6,
		StepTol:            1e-12,
		InitialPenalty:     10,
		PenaltyGrowth:      10,
		FiniteDiffStep:     1e-6,
	}
}

// sanitize fills in zero-valued options with defaults.
func (o Options) sanitize() Options {
	d := DefaultOptions()
	if o.MaxOuterIterations <= 0 {
		o.MaxOuterIterations = d.MaxOuterIterations
	}
	if o.MaxInnerIterations <= 0 {
		o.MaxInnerIterations = d.MaxInnerIterations
	}
	if o.GradTol <= 0 {
		o.GradTol = d.GradTol
	}
	if o.ConstraintTol <= 0 {
		o.ConstraintTol = d.ConstraintTol
	}
	if o.StepTol <= 0 {
		o.StepTol = d.StepTol
	}
	if o.InitialPenalty <= 0 {
		o.InitialPenalty = d.InitialPenalty
	}
	if o.PenaltyGrowth <= 1 {
		o.PenaltyGrowth = d.PenaltyGrowth
	}
	if o.FiniteDiffStep <= 0 {
		o.FiniteDiffStep = d.FiniteDiffStep
	}
	return o
}

// Result is the outcome of a Solve call. X is always a usable point, even on
// failure statuses, so callers can record non-converged iterates.
type Result struct {
	X         []float64
	F         float64
	Status    Status
	Outer     int
	Iterations int
	FuncEvals int
}
