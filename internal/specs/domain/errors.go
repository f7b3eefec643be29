package specs

import "errors"

var (
	// ErrSpecNotFound is returned when a spec id is not in the table.
	ErrSpecNotFound = errors.New("specs: spec not found")
	// ErrBrokenReference is returned when a base points to an unknown id.
	ErrBrokenReference = errors.New("specs: broken reference")
	// ErrCyclicReference is returned when a base chain loops back on itself.
	ErrCyclicReference = errors.New("specs: cyclic reference")
	// ErrMissingField is returned when a concrete spec lacks unit, operator or value after resolution.
	ErrMissingField = errors.New("specs: missing field")
	// ErrInvalidOperator is returned for an unsupported comparison operator.
	ErrInvalidOperator = errors.New("specs: invalid operator")
	// ErrDuplicateSpec is returned when two records share an id.
	ErrDuplicateSpec = errors.New("specs: duplicate spec")
	// ErrEmptyID is returned for a record without id or metric.
	ErrEmptyID = errors.New("specs: empty id")
	// ErrAbstractSpec is returned when a base record is evaluated directly.
	ErrAbstractSpec = errors.New("specs: base spec cannot be evaluated")
	// ErrUnitMismatch is returned when a measured unit cannot be converted.
	ErrUnitMismatch = errors.New("specs: unit mismatch")
	// ErrMetricNotFound is returned when a metric definition is missing.
	ErrMetricNotFound = errors.New("specs: metric not found")
)
