package specs

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Table is an immutable set of resolved concrete specs. It is built once and
// is safe for concurrent readers; accessors return copies.
//
// Spec ids are unique across the whole table, packages included, so a
// qualified name "<package>.<id>" only narrows a lookup and never
// disambiguates. Package names must not contain dots.
type Table struct {
	specs map[string]Resolved
	bases map[string]struct{}
	order []string
}

// NewTable resolves every record and returns the table. All resolution
// failures are joined into the returned error.
func NewTable(records []ThresholdSpec) (*Table, error) {
	index, err := NewIndex(records)
	if err != nil {
		return nil, err
	}

	table := &Table{
		specs: make(map[string]Resolved),
		bases: make(map[string]struct{}),
	}
	var errs []error
	for _, record := range records {
		key := record.Key()
		if record.IsBase() {
			table.bases[key] = struct{}{}
			if _, err := index.Flatten(key); err != nil {
				errs = append(errs, err)
			}
			continue
		}
		resolved, err := index.Resolve(key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		table.specs[key] = resolved
		table.order = append(table.order, key)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	sort.Strings(table.order)
	return table, nil
}

// Len returns the number of concrete specs.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.specs)
}

// Lookup returns a concrete spec by id or by "<package>.<id>".
func (t *Table) Lookup(name string) (Resolved, error) {
	if t == nil {
		return Resolved{}, fmt.Errorf("%w: %s", ErrSpecNotFound, name)
	}
	if spec, ok := t.specs[name]; ok {
		return spec.clone(), nil
	}
	if pkg, id, ok := strings.Cut(name, "."); ok {
		if spec, found := t.specs[id]; found && spec.Package == pkg {
			return spec.clone(), nil
		}
	}
	if _, ok := t.bases[name]; ok {
		return Resolved{}, fmt.Errorf("%w: %s", ErrAbstractSpec, name)
	}
	return Resolved{}, fmt.Errorf("%w: %s", ErrSpecNotFound, name)
}

// List returns every concrete spec ordered by id.
func (t *Table) List() []Resolved {
	if t == nil {
		return nil
	}
	out := make([]Resolved, 0, len(t.order))
	for _, key := range t.order {
		out = append(out, t.specs[key].clone())
	}
	return out
}

// Filter returns specs in pkg (any package when empty) carrying all tags.
func (t *Table) Filter(pkg string, tags []string) []Resolved {
	var out []Resolved
	for _, spec := range t.List() {
		if pkg != "" && spec.Package != pkg {
			continue
		}
		if !spec.HasTags(tags) {
			continue
		}
		out = append(out, spec)
	}
	return out
}

// ForMetric returns the specs whose metric reference matches metric, either
// fully qualified ("validate_drp.PA2") or bare ("PA2").
func (t *Table) ForMetric(metric string) []Resolved {
	if metric == "" {
		return nil
	}
	var out []Resolved
	for _, spec := range t.List() {
		if spec.MetricRef == "" {
			continue
		}
		if spec.MetricRef == metric || bareName(spec.MetricRef) == metric {
			out = append(out, spec)
		}
	}
	return out
}

// Packages returns the distinct package names in the table.
func (t *Table) Packages() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, spec := range t.List() {
		if spec.Package == "" {
			continue
		}
		if _, ok := seen[spec.Package]; ok {
			continue
		}
		seen[spec.Package] = struct{}{}
		out = append(out, spec.Package)
	}
	sort.Strings(out)
	return out
}

// Issue is a non-fatal finding about a loaded table.
type Issue struct {
	SpecID  string `json:"spec_id"`
	Message string `json:"message"`
}

// Validate cross-checks specs against metric definitions. A nil metric set
// skips the metric checks.
func (t *Table) Validate(metrics *MetricSet) []Issue {
	var issues []Issue
	for _, spec := range t.List() {
		if _, ok := unitScales[spec.Unit]; !ok {
			issues = append(issues, Issue{SpecID: spec.ID, Message: fmt.Sprintf("unit %q is not convertible", spec.Unit)})
		}
		if metrics == nil || spec.MetricRef == "" {
			continue
		}
		metric, err := metrics.Get(spec.MetricRef)
		if err != nil {
			issues = append(issues, Issue{SpecID: spec.ID, Message: fmt.Sprintf("metric %q is not defined", spec.MetricRef)})
			continue
		}
		if metric.Unit != "" && !UnitsCompatible(metric.Unit, spec.Unit) {
			issues = append(issues, Issue{SpecID: spec.ID, Message: fmt.Sprintf("unit %q does not match metric unit %q", spec.Unit, metric.Unit)})
		}
	}
	return issues
}

func bareName(qualified string) string {
	if idx := strings.LastIndex(qualified, "."); idx >= 0 {
		return qualified[idx+1:]
	}
	return qualified
}
