// Package profile implements profile-likelihood tracing: for each property
// of interest it walks the boundary of a confidence region by repeatedly
// re-optimizing the posterior under a moving constraint on the property
// value, in both directions away from the MAP estimate.
package profile

import (
	"fmt"

	"github.com/cwbudde/profilefit/internal/problem"
	"github.com/cwbudde/profilefit/internal/solver"
	"golang.org/x/sync/errgroup"
)

// Mode selects how properties are scheduled.
type Mode string

const (
	ModeSequential Mode = "sequential"
	ModeParallel   Mode = "parallel"
)

// MAP is the multi-start anchor every profile starts from.
type MAP struct {
	Theta   []float64
	LogPost float64
}

// Config tunes profile tracing.
type Config struct {
	// Indices selects a subset of the problem's properties; nil profiles all.
	Indices []int

	// DRMax is the largest likelihood-ratio drop allowed per point.
	DRMax float64
	// DJ damps the per-step allowance as the trace moves away from the
	// global optimum.
	DJ float64
	// RMin is the likelihood-ratio floor at which tracing stops.
	RMin float64
	// BoundaryTol is the distance to a property bound treated as "reached".
	BoundaryTol float64
	// MaxPoints caps each direction's trace length as a safety net.
	MaxPoints int

	Mode Mode

	// WarmStart pre-positions each constrained solve with a line search
	// along the recent trace direction. Tracing is correct without it, only
	// slower.
	WarmStart bool
	Step      StepConfig

	Solver solver.Options

	Progress Progress
	Sink     PointSink
}

// DefaultConfig returns the tuning used by the CLI.
func DefaultConfig() Config {
	return Config{
		DRMax:       0.10,
		DJ:          0.5,
		RMin:        0.03,
		BoundaryTol: 1e-5,
		MaxPoints:   200,
		Mode:        ModeSequential,
		Step:        DefaultStepConfig(),
		Solver:      solver.DefaultOptions(),
	}
}

// ConfigError is a fatal configuration problem detected before any tracing.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return "profile: " + e.Reason }

// Validate checks the configuration against the problem's property count.
func (c *Config) Validate(nProperties int) error {
	if c.DRMax <= 0 || c.DRMax >= 1 {
		return &ConfigError{Reason: fmt.Sprintf("DRMax must be in (0,1), got %g", c.DRMax)}
	}
	if c.DJ < 0 {
		return &ConfigError{Reason: fmt.Sprintf("DJ must be non-negative, got %g", c.DJ)}
	}
	if c.RMin <= 0 || c.RMin >= 1 {
		return &ConfigError{Reason: fmt.Sprintf("RMin must be in (0,1), got %g", c.RMin)}
	}
	if c.BoundaryTol <= 0 {
		return &ConfigError{Reason: fmt.Sprintf("BoundaryTol must be positive, got %g", c.BoundaryTol)}
	}
	if c.MaxPoints <= 0 {
		return &ConfigError{Reason: fmt.Sprintf("MaxPoints must be positive, got %d", c.MaxPoints)}
	}
	switch c.Mode {
	case ModeSequential, ModeParallel:
	default:
		return &ConfigError{Reason: fmt.Sprintf("unsupported execution mode %q", c.Mode)}
	}
	for _, idx := range c.Indices {
		if idx < 0 || idx >= nProperties {
			return &ConfigError{Reason: fmt.Sprintf("property index %d out of range [0,%d)", idx, nProperties)}
		}
	}
	return nil
}

// Compute traces the selected property profiles anchored at the MAP result.
// The returned slice is ordered like the selected indices. In parallel mode
// one worker per property runs the identical per-property state machine with
// no shared mutable state; results land in pre-assigned slots.
func Compute(prob *problem.Problem, mapRes MAP, cfg Config) ([]*Profile, error) {
	if err := prob.Validate(); err != nil {
		return nil, err
	}
	if len(mapRes.Theta) != prob.NPar() {
		return nil, &ConfigError{Reason: fmt.Sprintf("MAP point has %d parameters, problem has %d", len(mapRes.Theta), prob.NPar())}
	}
	if err := cfg.Validate(len(prob.Properties)); err != nil {
		return nil, err
	}

	indices := cfg.Indices
	if indices == nil {
		indices = make([]int, len(prob.Properties))
		for i := range indices {
			indices[i] = i
		}
	}

	profiles := make([]*Profile, len(indices))

	if cfg.Mode == ModeParallel {
		var g errgroup.Group
		for slot, idx := range indices {
			slot, idx := slot, idx
			g.Go(func() error {
				t, err := newTracer(prob, prob.Properties[idx], idx, mapRes.Theta, mapRes.LogPost, &cfg)
				if err != nil {
					return err
				}
				profiles[slot] = t.run()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return profiles, nil
	}

	for slot, idx := range indices {
		t, err := newTracer(prob, prob.Properties[idx], idx, mapRes.Theta, mapRes.LogPost, &cfg)
		if err != nil {
			return nil, err
		}
		profiles[slot] = t.run()
	}
	return profiles, nil
}
