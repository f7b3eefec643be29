package specs

import (
	"fmt"
	"sort"
	"strings"
)

// Metric describes a measurable quantity that specs are written against.
type Metric struct {
	Package     string   `json:"package"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Unit        string   `json:"unit"`
	Reference   string   `json:"reference,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// QualifiedName returns "<package>.<name>".
func (m Metric) QualifiedName() string {
	if m.Package == "" {
		return m.Name
	}
	return m.Package + "." + m.Name
}

// HasTags returns true when every tag in tags is present on the metric.
func (m Metric) HasTags(tags []string) bool {
	for _, want := range tags {
		found := false
		for _, have := range m.Tags {
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

// MetricSet is a collection of metric definitions keyed by qualified name.
type MetricSet struct {
	metrics map[string]Metric
}

// NewMetricSet builds a set; later metrics replace earlier ones of the same name.
func NewMetricSet(metrics ...Metric) *MetricSet {
	set := &MetricSet{metrics: make(map[string]Metric, len(metrics))}
	for _, metric := range metrics {
		set.Insert(metric)
	}
	return set
}

// Insert adds or replaces a metric.
func (s *MetricSet) Insert(metric Metric) {
	s.metrics[metric.QualifiedName()] = metric
}

// Len returns the number of metrics.
func (s *MetricSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.metrics)
}

// Get returns a metric by qualified name, or by bare name when it is unique.
func (s *MetricSet) Get(name string) (Metric, error) {
	if s == nil {
		return Metric{}, fmt.Errorf("%w: %s", ErrMetricNotFound, name)
	}
	if metric, ok := s.metrics[name]; ok {
		return metric, nil
	}
	if strings.Contains(name, ".") {
		return Metric{}, fmt.Errorf("%w: %s", ErrMetricNotFound, name)
	}
	var match []Metric
	for _, metric := range s.metrics {
		if metric.Name == name {
			match = append(match, metric)
		}
	}
	if len(match) != 1 {
		return Metric{}, fmt.Errorf("%w: %s", ErrMetricNotFound, name)
	}
	return match[0], nil
}

// List returns metrics ordered by qualified name.
func (s *MetricSet) List() []Metric {
	if s == nil {
		return nil
	}
	out := make([]Metric, 0, len(s.metrics))
	for _, metric := range s.metrics {
		out = append(out, metric)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].QualifiedName() < out[j].QualifiedName()
	})
	return out
}

// Subset returns metrics in pkg and/or carrying all tags. When both are given
// the result is the intersection; when neither is given it is empty.
func (s *MetricSet) Subset(pkg string, tags []string) *MetricSet {
	out := NewMetricSet()
	if pkg == "" && len(tags) == 0 {
		return out
	}
	for _, metric := range s.List() {
		if pkg != "" && metric.Package != pkg {
			continue
		}
		if len(tags) > 0 && !metric.HasTags(tags) {
			continue
		}
		out.Insert(metric)
	}
	return out
}

// Merge copies every metric of other into s, replacing same-named metrics.
func (s *MetricSet) Merge(other *MetricSet) {
	for _, metric := range other.List() {
		s.Insert(metric)
	}
}
