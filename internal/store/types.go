package store

import (
	"fmt"
	"time"
)

// RunConfig holds the configuration an estimation run was started with
// (persisted copy). This avoids import cycles with the server package.
type RunConfig struct {
	ProblemPath string  `json:"problemPath"`
	Mode        string  `json:"mode"` // sequential, parallel
	Starts      int     `json:"starts"`
	Seed        int64   `json:"seed"`
	DRMax       float64 `json:"drMax"`
	DJ          float64 `json:"dj"`
	RMin        float64 `json:"rMin"`
	MaxPoints   int     `json:"maxPoints"`
}

// ProfileRecord is the persisted trace for one property, points in
// increasing property-value order.
type ProfileRecord struct {
	Name   string       `json:"name"`
	Index  int          `json:"index"`
	Points []PointEntry `json:"points"`
}

// PointEntry is one persisted profile point.
type PointEntry struct {
	PropertyIndex int       `json:"propertyIndex"`
	Direction     int       `json:"direction"`
	PropValue     float64   `json:"propValue"`
	Theta         []float64 `json:"theta"`
	LogPost       float64   `json:"logPost"`
	Ratio         float64   `json:"ratio"`
	Status        int       `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
}

// RunRecord is the persisted result of an estimation run. All fields are
// serialized to JSON.
//
// The record stores the MAP estimate and, once tracing completes, the full
// profile traces. Solver internals (multiplier estimates, penalty state) are
// intentionally not persisted: a rerun from the stored MAP reproduces them.
type RunRecord struct {
	// RunID is the unique identifier for this run.
	RunID string `json:"runId"`

	// MAPTheta is the best parameter vector found by the multistart phase.
	MAPTheta []float64 `json:"mapTheta"`

	// LogPost is the log-posterior at MAPTheta.
	LogPost float64 `json:"logPost"`

	// Profiles holds the completed profile traces, one per traced property.
	// Nil while only the optimization phase has finished.
	Profiles []ProfileRecord `json:"profiles,omitempty"`

	// Timestamp records when this record was last written.
	Timestamp time.Time `json:"timestamp"`

	// Config holds the run configuration, needed for compatibility checks
	// when a stored MAP is reused to seed profiling or sampling.
	Config RunConfig `json:"config"`
}

// RunInfo contains metadata about a run without the parameter and trace
// payloads. Used for listing runs cheaply.
type RunInfo struct {
	RunID       string    `json:"runId"`
	LogPost     float64   `json:"logPost"`
	NParams     int       `json:"nParams"`
	NProfiles   int       `json:"nProfiles"`
	Timestamp   time.Time `json:"timestamp"`
	Mode        string    `json:"mode"`
	ProblemPath string    `json:"problemPath"`
}

// NewRunRecord creates a record from run state.
func NewRunRecord(runID string, mapTheta []float64, logPost float64, config RunConfig) *RunRecord {
	return &RunRecord{
		RunID:     runID,
		MAPTheta:  mapTheta,
		LogPost:   logPost,
		Timestamp: time.Now(),
		Config:    config,
	}
}

// ToInfo converts a full RunRecord to RunInfo (metadata only).
func (r *RunRecord) ToInfo() RunInfo {
	return RunInfo{
		RunID:       r.RunID,
		LogPost:     r.LogPost,
		NParams:     len(r.MAPTheta),
		NProfiles:   len(r.Profiles),
		Timestamp:   r.Timestamp,
		Mode:        r.Config.Mode,
		ProblemPath: r.Config.ProblemPath,
	}
}

// Validate checks that the record has usable data.
func (r *RunRecord) Validate() error {
	if r.RunID == "" {
		return &ValidationError{Field: "RunID", Reason: "cannot be empty"}
	}
	if len(r.MAPTheta) == 0 {
		return &ValidationError{Field: "MAPTheta", Reason: "cannot be empty"}
	}
	if r.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	if r.Config.ProblemPath == "" {
		return &ValidationError{Field: "Config.ProblemPath", Reason: "cannot be empty"}
	}
	if r.Config.Mode != "sequential" && r.Config.Mode != "parallel" {
		return &ValidationError{Field: "Config.Mode", Reason: "must be sequential or parallel"}
	}
	for _, p := range r.Profiles {
		if p.Name == "" {
			return &ValidationError{Field: "Profiles", Reason: "profile name cannot be empty"}
		}
		for _, pt := range p.Points {
			if len(pt.Theta) != len(r.MAPTheta) {
				return &ValidationError{
					Field:  "Profiles",
					Reason: fmt.Sprintf("point theta length %d does not match MAP length %d", len(pt.Theta), len(r.MAPTheta)),
				}
			}
		}
	}
	return nil
}

// ValidationError represents a run record validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}

// IsCompatible checks whether a stored run can seed a new phase started with
// the given config. The problem definition and mode must match.
func (r *RunRecord) IsCompatible(config RunConfig) error {
	if r.Config.ProblemPath != config.ProblemPath {
		return &CompatibilityError{
			Field:    "ProblemPath",
			Expected: r.Config.ProblemPath,
			Actual:   config.ProblemPath,
		}
	}
	if r.Config.Mode != config.Mode {
		return &CompatibilityError{
			Field:    "Mode",
			Expected: r.Config.Mode,
			Actual:   config.Mode,
		}
	}
	return nil
}

// CompatibilityError represents a run compatibility error.
type CompatibilityError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *CompatibilityError) Error() string {
	return "compatibility error: " + e.Field + " mismatch (expected " + e.Expected + ", got " + e.Actual + ")"
}
