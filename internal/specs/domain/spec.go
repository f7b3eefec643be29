package specs

import (
	"fmt"
	"strconv"
	"strings"
)

// Threshold holds the comparison triple of a spec. Nil fields are unset and
// inherit from the base record during resolution.
type Threshold struct {
	Unit     *string
	Operator *Operator
	Value    *float64
}

// ThresholdSpec is a raw spec record as loaded from a spec file.
type ThresholdSpec struct {
	ID        string
	Metric    string
	Base      []string
	Name      string
	Tags      []string
	MetricRef string
	Package   string
	Source    string
	Threshold Threshold
}

// Key returns the identifier the record is addressed by.
func (s ThresholdSpec) Key() string {
	if s.Metric != "" {
		return s.Metric
	}
	return s.ID
}

// IsBase returns true for records that only exist to be inherited from.
func (s ThresholdSpec) IsBase() bool {
	return s.Metric == ""
}

// Resolved is a concrete spec with its base chain applied and all threshold
// fields present.
type Resolved struct {
	ID        string   `json:"id"`
	Package   string   `json:"package,omitempty"`
	Name      string   `json:"name,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	MetricRef string   `json:"metric_ref,omitempty"`
	Unit      string   `json:"unit"`
	Operator  Operator `json:"operator"`
	Value     float64  `json:"value"`
}

// QualifiedName returns "<package>.<id>", or the id when the package is unknown.
func (r Resolved) QualifiedName() string {
	if r.Package == "" {
		return r.ID
	}
	return r.Package + "." + r.ID
}

// Check reports whether a measured value, expressed in r.Unit, passes.
func (r Resolved) Check(measured float64) bool {
	return r.Operator.Compare(measured, r.Value)
}

// HasTags returns true when every tag in tags is present on the spec.
func (r Resolved) HasTags(tags []string) bool {
	for _, want := range tags {
		found := false
		for _, have := range r.Tags {
			if have == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (r Resolved) clone() Resolved {
	if r.Tags != nil {
		r.Tags = append([]string(nil), r.Tags...)
	}
	return r
}

func (r Resolved) String() string {
	value := strconv.FormatFloat(r.Value, 'f', -1, 64)
	return strings.TrimSpace(fmt.Sprintf("%s %s %s %s", r.ID, r.Operator, value, r.Unit))
}

// StringPtr returns a pointer to value.
func StringPtr(value string) *string { return &value }

// FloatPtr returns a pointer to value.
func FloatPtr(value float64) *float64 { return &value }

// OperatorPtr returns a pointer to value.
func OperatorPtr(value Operator) *Operator { return &value }
