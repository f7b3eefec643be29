package specs

import (
	"fmt"
	"strings"
)

// Index maps spec keys to raw records.
type Index map[string]ThresholdSpec

// NewIndex builds an index keyed by ThresholdSpec.Key.
func NewIndex(records []ThresholdSpec) (Index, error) {
	index := make(Index, len(records))
	for _, record := range records {
		key := record.Key()
		if key == "" {
			return nil, fmt.Errorf("%w: record in %s", ErrEmptyID, sourceOf(record))
		}
		if existing, ok := index[key]; ok {
			return nil, fmt.Errorf("%w: %s in %s and %s", ErrDuplicateSpec, key, sourceOf(existing), sourceOf(record))
		}
		index[key] = record
	}
	return index, nil
}

// Flatten returns the record identified by key with every base in its chain
// overlaid beneath it. The returned record has no base references. Records in
// the index are never modified.
func (idx Index) Flatten(key string) (ThresholdSpec, error) {
	if _, ok := idx[key]; !ok {
		return ThresholdSpec{}, fmt.Errorf("%w: %s", ErrSpecNotFound, key)
	}
	return idx.flatten(key, nil)
}

func (idx Index) flatten(key string, visiting []string) (ThresholdSpec, error) {
	for _, seen := range visiting {
		if seen == key {
			chain := append(append([]string{}, visiting...), key)
			return ThresholdSpec{}, fmt.Errorf("%w: %s", ErrCyclicReference, strings.Join(chain, " -> "))
		}
	}
	record := idx[key]
	if len(record.Base) == 0 {
		return record.clone(), nil
	}

	path := append(append([]string{}, visiting...), key)
	var merged ThresholdSpec
	for i, ref := range record.Base {
		if _, ok := idx[ref]; !ok {
			return ThresholdSpec{}, fmt.Errorf("%w: %s references %q", ErrBrokenReference, key, ref)
		}
		parent, err := idx.flatten(ref, path)
		if err != nil {
			return ThresholdSpec{}, err
		}
		if i == 0 {
			merged = parent
			continue
		}
		merged = Overlay(merged, parent)
	}

	flat := Overlay(merged, record)
	flat.ID = record.ID
	flat.Metric = record.Metric
	flat.Package = record.Package
	flat.Source = record.Source
	flat.Base = nil
	return flat, nil
}

// Resolve flattens the record identified by key and checks that it carries a
// full (unit, operator, value) triple.
func (idx Index) Resolve(key string) (Resolved, error) {
	flat, err := idx.Flatten(key)
	if err != nil {
		return Resolved{}, err
	}
	return Complete(flat)
}

// Overlay returns base with every field set on child copied over it.
func Overlay(base, child ThresholdSpec) ThresholdSpec {
	out := base.clone()
	if child.Name != "" {
		out.Name = child.Name
	}
	if child.Tags != nil {
		out.Tags = append([]string(nil), child.Tags...)
	}
	if child.MetricRef != "" {
		out.MetricRef = child.MetricRef
	}
	if child.Threshold.Unit != nil {
		out.Threshold.Unit = StringPtr(*child.Threshold.Unit)
	}
	if child.Threshold.Operator != nil {
		out.Threshold.Operator = OperatorPtr(*child.Threshold.Operator)
	}
	if child.Threshold.Value != nil {
		out.Threshold.Value = FloatPtr(*child.Threshold.Value)
	}
	return out
}

// Complete converts a flattened record into a Resolved spec.
func Complete(flat ThresholdSpec) (Resolved, error) {
	var missing []string
	if flat.Threshold.Unit == nil {
		missing = append(missing, "unit")
	}
	if flat.Threshold.Operator == nil {
		missing = append(missing, "operator")
	}
	if flat.Threshold.Value == nil {
		missing = append(missing, "value")
	}
	if len(missing) > 0 {
		return Resolved{}, fmt.Errorf("%w: %s lacks %s", ErrMissingField, flat.Key(), strings.Join(missing, ", "))
	}
	op := *flat.Threshold.Operator
	if !op.Valid() {
		return Resolved{}, fmt.Errorf("%w: %s has %q", ErrInvalidOperator, flat.Key(), string(op))
	}
	return Resolved{
		ID:        flat.Key(),
		Package:   flat.Package,
		Name:      flat.Name,
		Tags:      append([]string(nil), flat.Tags...),
		MetricRef: flat.MetricRef,
		Unit:      *flat.Threshold.Unit,
		Operator:  op,
		Value:     *flat.Threshold.Value,
	}, nil
}

func (s ThresholdSpec) clone() ThresholdSpec {
	out := s
	if s.Base != nil {
		out.Base = append([]string(nil), s.Base...)
	}
	if s.Tags != nil {
		out.Tags = append([]string(nil), s.Tags...)
	}
	if s.Threshold.Unit != nil {
		out.Threshold.Unit = StringPtr(*s.Threshold.Unit)
	}
	if s.Threshold.Operator != nil {
		out.Threshold.Operator = OperatorPtr(*s.Threshold.Operator)
	}
	if s.Threshold.Value != nil {
		out.Threshold.Value = FloatPtr(*s.Threshold.Value)
	}
	return out
}

func sourceOf(record ThresholdSpec) string {
	if record.Source == "" {
		return "<inline>"
	}
	return record.Source
}
