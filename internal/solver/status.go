package solver

// Status reports how a solve terminated. Positive values indicate success,
// negative values indicate failure; NotConverged is the zero value so an
// unset status never reads as success.
type Status int

const (
	NotConverged Status = 0
	Converged    Status = 1
	// MaxIterations means the iteration budget ran out before the
	// tolerances were met. The returned point is still usable.
	MaxIterations Status = 2
)

const (
	// Infeasible means the constraints could not be satisfied to tolerance.
	Infeasible Status = -1
	// LineSearchFailure means the inner minimization stalled without
	// reaching a feasible stationary point.
	LineSearchFailure Status = -2
	// FunctionError means the objective never produced a finite value.
	FunctionError Status = -3
)

// Success reports whether the solve produced a usable converged point.
func (s Status) Success() bool { return s > 0 }

func (s Status) String() string {
	switch s {
	case NotConverged:
		return "NotConverged"
	case Converged:
		return "Converged"
	case MaxIterations:
		return "MaxIterations"
	case Infeasible:
		return "Infeasible"
	case LineSearchFailure:
		return "LineSearchFailure"
	case FunctionError:
		return "FunctionError"
	default:
		return "UnknownStatus"
	}
}
