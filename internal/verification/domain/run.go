package verification

import (
	"errors"
	"math"
	"time"
)

var (
	// ErrNotFound indicates a missing verification run.
	ErrNotFound = errors.New("verification: not found")
	// ErrNoMeasurements is returned when a run has nothing to verify.
	ErrNoMeasurements = errors.New("verification: no measurements")
	// ErrInvalidMeasurement is returned when a measurement names neither a spec nor a metric.
	ErrInvalidMeasurement = errors.New("verification: measurement needs spec or metric")
	// ErrNoMatchingSpecs is returned when a metric measurement selects no specs.
	ErrNoMatchingSpecs = errors.New("verification: no specs match measurement")
	// ErrMissingValue is returned when a measurement carries no value.
	ErrMissingValue = errors.New("verification: measurement value required")
	// ErrNonFiniteValue is returned for NaN or infinite values, before or after unit conversion.
	ErrNonFiniteValue = errors.New("verification: measurement value must be finite")
)

// Measurement is a measured value submitted for verification. Spec targets a
// single spec; Metric fans out to every spec of that metric carrying Tags.
// An empty Unit means the value is already in the spec unit.
type Measurement struct {
	Spec   string   `json:"spec,omitempty"`
	Metric string   `json:"metric,omitempty"`
	Tags   []string `json:"tags,omitempty"`
	Value  *float64 `json:"value"`
	Unit   string   `json:"unit,omitempty"`
}

// Validate checks measurement invariants.
func (m Measurement) Validate() error {
	if m.Spec == "" && m.Metric == "" {
		return ErrInvalidMeasurement
	}
	if m.Value == nil {
		return ErrMissingValue
	}
	if !IsFinite(*m.Value) {
		return ErrNonFiniteValue
	}
	return nil
}

// IsFinite reports whether value is neither NaN nor infinite.
func IsFinite(value float64) bool {
	return !math.IsNaN(value) && !math.IsInf(value, 0)
}

// Verdict is the outcome of one measurement against one spec.
type Verdict struct {
	SpecID    string  `json:"spec_id"`
	Package   string  `json:"package,omitempty"`
	MetricRef string  `json:"metric_ref,omitempty"`
	Measured  float64 `json:"measured"`
	Unit      string  `json:"unit"`
	Operator  string  `json:"operator"`
	Threshold float64 `json:"threshold"`
	Passed    bool    `json:"passed"`
}

// Run groups verdicts from one verification request.
type Run struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Verdicts  []Verdict `json:"verdicts"`
	Passed    int       `json:"passed"`
	Failed    int       `json:"failed"`
	CreatedAt time.Time `json:"created_at"`
}

// NewRun builds a run and counts its outcomes.
func NewRun(id, tenantID string, verdicts []Verdict, createdAt time.Time) (*Run, error) {
	if id == "" {
		return nil, errors.New("verification: empty run id")
	}
	if createdAt.IsZero() {
		return nil, errors.New("verification: zero run time")
	}
	run := &Run{
		ID:        id,
		TenantID:  tenantID,
		Verdicts:  verdicts,
		CreatedAt: createdAt.UTC(),
	}
	run.Recount()
	return run, nil
}

// Recount recomputes Passed and Failed from Verdicts.
func (r *Run) Recount() {
	r.Passed, r.Failed = 0, 0
	for _, verdict := range r.Verdicts {
		if verdict.Passed {
			r.Passed++
		} else {
			r.Failed++
		}
	}
}

// Success reports whether every verdict passed.
func (r *Run) Success() bool {
	return r.Failed == 0 && len(r.Verdicts) > 0
}
