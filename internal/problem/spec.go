package problem

import (
	"encoding/json"
	"fmt"
	"os"
)

// Spec is the JSON description of a problem accepted by the CLI and the job
// server. It selects one of the built-in model families and parameterizes it.
type Spec struct {
	Name  string `json:"name,omitempty"`
	Model string `json:"model"` // gaussian, banana, expdecay

	Lower []float64 `json:"lower"`
	Upper []float64 `json:"upper"`

	// Gaussian model.
	Center []float64 `json:"center,omitempty"`
	Sigma  []float64 `json:"sigma,omitempty"`

	// Banana model.
	A float64 `json:"a,omitempty"`
	B float64 `json:"b,omitempty"`

	// Exponential decay model.
	Times        []float64 `json:"times,omitempty"`
	Observations []float64 `json:"observations,omitempty"`
	NoiseSigma   float64   `json:"noiseSigma,omitempty"`

	// Extra derived properties as linear combinations of the parameters.
	LinearProperties []LinearPropertySpec `json:"linearProperties,omitempty"`
}

// LinearPropertySpec describes a c'theta property with its domain.
type LinearPropertySpec struct {
	Name   string    `json:"name"`
	Coeffs []float64 `json:"coeffs"`
	Min    float64   `json:"min"`
	Max    float64   `json:"max"`
}

// Load reads a problem spec from a JSON file and assembles it.
func Load(path string) (*Problem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read problem file: %w", err)
	}
	var spec Spec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse problem file: %w", err)
	}
	return spec.Build()
}

// Build assembles the problem described by the spec.
func (s *Spec) Build() (*Problem, error) {
	var (
		p   *Problem
		err error
	)
	switch s.Model {
	case "gaussian":
		p, err = Gaussian(s.Center, s.Sigma, s.Lower, s.Upper)
	case "banana":
		a, b := s.A, s.B
		if a == 0 && b == 0 {
			a, b = 1, 10
		}
		p, err = Banana(a, b, s.Lower, s.Upper)
	case "expdecay":
		p, err = ExpDecay(s.Times, s.Observations, s.NoiseSigma, s.Lower, s.Upper)
	default:
		return nil, fmt.Errorf("unknown model %q", s.Model)
	}
	if err != nil {
		return nil, err
	}
	if s.Name != "" {
		p.Name = s.Name
	}
	for _, lp := range s.LinearProperties {
		if len(lp.Coeffs) != p.NPar() {
			return nil, fmt.Errorf("property %q: expected %d coefficients, got %d", lp.Name, p.NPar(), len(lp.Coeffs))
		}
		p.Properties = append(p.Properties, LinearProperty(lp.Name, lp.Coeffs, lp.Min, lp.Max))
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
