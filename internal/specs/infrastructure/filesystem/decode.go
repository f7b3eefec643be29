package filesystem

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	specs "verify-thresholds/internal/specs/domain"
)

type thresholdDocument struct {
	Unit     *string  `yaml:"unit" toml:"unit"`
	Operator *string  `yaml:"operator" toml:"operator"`
	Value    *float64 `yaml:"value" toml:"value"`
}

type specDocument struct {
	ID        string             `yaml:"id" toml:"id"`
	Metric    string             `yaml:"metric" toml:"metric"`
	Base      any                `yaml:"base" toml:"base"`
	Name      string             `yaml:"name" toml:"name"`
	Tags      []string           `yaml:"tags" toml:"tags"`
	MetricRef string             `yaml:"metric_ref" toml:"metric_ref"`
	Threshold *thresholdDocument `yaml:"threshold" toml:"threshold"`
}

type tomlSpecFile struct {
	Spec []specDocument `toml:"spec"`
}

type metricDocument struct {
	Description string   `yaml:"description"`
	Unit        string   `yaml:"unit"`
	Reference   any      `yaml:"reference"`
	Tags        []string `yaml:"tags"`
}

// DecodeSpecsYAML decodes a stream of YAML documents, one record each.
// Empty documents are skipped.
func DecodeSpecsYAML(data []byte, pkg, source string) ([]specs.ThresholdSpec, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	var records []specs.ThresholdSpec
	for n := 1; ; n++ {
		var doc specDocument
		err := decoder.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode %s document %d: %w", source, n, err)
		}
		if doc.isZero() {
			continue
		}
		record, err := doc.toSpec(pkg, source)
		if err != nil {
			return nil, fmt.Errorf("decode %s document %d: %w", source, n, err)
		}
		records = append(records, record)
	}
	return records, nil
}

// DecodeSpecsTOML decodes a TOML file holding an array of [[spec]] tables.
func DecodeSpecsTOML(data []byte, pkg, source string) ([]specs.ThresholdSpec, error) {
	var file tomlSpecFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode %s: %w", source, err)
	}
	records := make([]specs.ThresholdSpec, 0, len(file.Spec))
	for i, doc := range file.Spec {
		record, err := doc.toSpec(pkg, source)
		if err != nil {
			return nil, fmt.Errorf("decode %s spec %d: %w", source, i+1, err)
		}
		records = append(records, record)
	}
	return records, nil
}

// DecodeMetricsYAML decodes a mapping of metric name to definition.
func DecodeMetricsYAML(data []byte, pkg string) ([]specs.Metric, error) {
	var docs map[string]metricDocument
	if err := yaml.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("decode metrics %s: %w", pkg, err)
	}
	metrics := make([]specs.Metric, 0, len(docs))
	for name, doc := range docs {
		metrics = append(metrics, specs.Metric{
			Package:     pkg,
			Name:        name,
			Description: doc.Description,
			Unit:        doc.Unit,
			Reference:   referenceString(doc.Reference),
			Tags:        doc.Tags,
		})
	}
	return metrics, nil
}

func (d specDocument) isZero() bool {
	return d.ID == "" && d.Metric == "" && d.Base == nil && d.Name == "" &&
		len(d.Tags) == 0 && d.MetricRef == "" && d.Threshold == nil
}

func (d specDocument) toSpec(pkg, source string) (specs.ThresholdSpec, error) {
	base, err := baseRefs(d.Base)
	if err != nil {
		return specs.ThresholdSpec{}, err
	}
	record := specs.ThresholdSpec{
		ID:        d.ID,
		Metric:    d.Metric,
		Base:      base,
		Name:      d.Name,
		Tags:      d.Tags,
		MetricRef: d.MetricRef,
		Package:   pkg,
		Source:    source,
	}
	if d.Threshold != nil {
		record.Threshold.Unit = d.Threshold.Unit
		record.Threshold.Value = d.Threshold.Value
		if d.Threshold.Operator != nil {
			record.Threshold.Operator = specs.OperatorPtr(specs.Operator(*d.Threshold.Operator))
		}
	}
	return record, nil
}

// baseRefs accepts a scalar id or a list of ids.
func baseRefs(value any) ([]string, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		if v == "" {
			return nil, nil
		}
		return []string{v}, nil
	case []any:
		refs := make([]string, 0, len(v))
		for _, item := range v {
			ref, ok := item.(string)
			if !ok || ref == "" {
				return nil, fmt.Errorf("base: expected string id, got %v", item)
			}
			refs = append(refs, ref)
		}
		return refs, nil
	default:
		return nil, fmt.Errorf("base: expected id or list of ids, got %T", value)
	}
}

// referenceString flattens a metric reference, which may be a plain string or
// a mapping of document fields.
func referenceString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case map[string]any:
		var buf bytes.Buffer
		for _, key := range []string{"doc", "url", "page"} {
			if field, ok := v[key]; ok {
				if buf.Len() > 0 {
					buf.WriteString(" ")
				}
				fmt.Fprintf(&buf, "%v", field)
			}
		}
		return buf.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
