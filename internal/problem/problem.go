// Package problem defines estimation problems: a log-posterior over a bounded
// parameter space plus the scalar properties whose profiles are of interest.
package problem

import (
	"fmt"

	"github.com/cwbudde/profilefit/internal/objective"
	"github.com/cwbudde/profilefit/internal/solver"
)

// Problem is a fully assembled estimation problem.
type Problem struct {
	Name string

	// Lower/Upper bound the parameter space elementwise.
	Lower []float64
	Upper []float64

	// Optional linear constraints on the parameters.
	LinIneq *solver.LinearConstraints
	LinEq   *solver.LinearConstraints

	// Objective is the robust-wrapped posterior.
	Objective *objective.Objective

	// Properties are the scalar functions to profile.
	Properties []*objective.Property
}

// NPar returns the parameter dimension.
func (p *Problem) NPar() int { return len(p.Lower) }

// Validate checks structural consistency before any optimization work.
func (p *Problem) Validate() error {
	if p.Objective == nil {
		return fmt.Errorf("problem %q: objective is required", p.Name)
	}
	if len(p.Lower) == 0 || len(p.Lower) != len(p.Upper) {
		return fmt.Errorf("problem %q: bounds must be non-empty and equal length", p.Name)
	}
	for i := range p.Lower {
		if p.Lower[i] > p.Upper[i] {
			return fmt.Errorf("problem %q: lower bound %d exceeds upper bound", p.Name, i)
		}
	}
	if len(p.Properties) == 0 {
		return fmt.Errorf("problem %q: at least one property is required", p.Name)
	}
	for _, prop := range p.Properties {
		if prop.Min >= prop.Max {
			return fmt.Errorf("problem %q: property %q has empty domain", p.Name, prop.Name)
		}
	}
	return nil
}

// Center returns the midpoint of the parameter box, a reasonable default
// starting point when no better guess exists.
func (p *Problem) Center() []float64 {
	c := make([]float64, p.NPar())
	for i := range c {
		c[i] = 0.5 * (p.Lower[i] + p.Upper[i])
	}
	return c
}
