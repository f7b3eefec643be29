package filesystem

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	specs "verify-thresholds/internal/specs/domain"
)

func TestLoadTablePA2(t *testing.T) {
	loader, err := NewLoader("testdata")
	if err != nil {
		t.Fatalf("new loader: %v", err)
	}
	table, err := loader.LoadTable()
	if err != nil {
		t.Fatalf("load table: %v", err)
	}

	want := map[string]float64{
		"PA2_minimum_gri": 15.0,
		"PA2_design_gri":  15.0,
		"PA2_stretch_gri": 10.0,
		"PA2_minimum_uzy": 22.5,
		"PA2_design_uzy":  22.5,
		"PA2_stretch_uzy": 15.0,
	}
	for id, value := range want {
		spec, err := table.Lookup(id)
		if err != nil {
			t.Fatalf("lookup %s: %v", id, err)
		}
		if spec.Unit != "mmag" {
			t.Fatalf("%s: expected unit mmag, got %q", id, spec.Unit)
		}
		if spec.Operator != specs.OperatorLessOrEqual {
			t.Fatalf("%s: expected operator <=, got %q", id, spec.Operator)
		}
		if spec.Value != value {
			t.Fatalf("%s: expected %v, got %v", id, value, spec.Value)
		}
		if spec.Package != "validate_drp" {
			t.Fatalf("%s: expected package validate_drp, got %q", id, spec.Package)
		}
		if spec.Name != "srd" {
			t.Fatalf("%s: expected name srd, got %q", id, spec.Name)
		}
	}
	if _, err := table.Lookup("PA2-base"); !errors.Is(err, specs.ErrAbstractSpec) {
		t.Fatalf("expected base to be abstract, got %v", err)
	}
}

func TestLoadTableReadsTOML(t *testing.T) {
	loader, err := NewLoader("testdata")
	if err != nil {
		t.Fatalf("new loader: %v", err)
	}
	table, err := loader.LoadTable()
	if err != nil {
		t.Fatalf("load table: %v", err)
	}
	spec, err := table.Lookup("AM1_design")
	if err != nil {
		t.Fatalf("lookup AM1_design: %v", err)
	}
	if spec.Unit != "marcsec" || spec.Value != 10 || spec.Operator != specs.OperatorLessOrEqual {
		t.Fatalf("unexpected AM1_design %+v", spec)
	}
	if table.Len() != 9 {
		t.Fatalf("expected 9 specs, got %d", table.Len())
	}
}

func TestLoadSpecsPackageFilter(t *testing.T) {
	loader, err := NewLoader("testdata", WithPackages("ap_association"))
	if err != nil {
		t.Fatalf("new loader: %v", err)
	}
	records, err := loader.LoadSpecs()
	if err != nil {
		t.Fatalf("load specs: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}
}

func TestLoadMetrics(t *testing.T) {
	loader, err := NewLoader("testdata")
	if err != nil {
		t.Fatalf("new loader: %v", err)
	}
	metrics, err := loader.LoadMetrics()
	if err != nil {
		t.Fatalf("load metrics: %v", err)
	}
	if metrics.Len() != 3 {
		t.Fatalf("expected 3 metrics, got %d", metrics.Len())
	}
	pa2, err := metrics.Get("validate_drp.PA2")
	if err != nil {
		t.Fatalf("get PA2: %v", err)
	}
	if pa2.Unit != "mmag" || pa2.Reference != "LPM-17 21" {
		t.Fatalf("unexpected PA2 %+v", pa2)
	}

	table, err := loader.LoadTable()
	if err != nil {
		t.Fatalf("load table: %v", err)
	}
	if issues := table.Validate(metrics); len(issues) != 0 {
		t.Fatalf("expected no issues, got %+v", issues)
	}
}

func TestLoadTableBrokenReference(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "specs", "pkg", "broken.yaml"), `
---
metric: PA2_orphan
base: PA2-nowhere
threshold:
  value: 1.0
`)
	loader, err := NewLoader(root)
	if err != nil {
		t.Fatalf("new loader: %v", err)
	}
	if _, err := loader.LoadTable(); !errors.Is(err, specs.ErrBrokenReference) {
		t.Fatalf("expected broken reference, got %v", err)
	}
}

func TestLoadTableDuplicateAcrossFiles(t *testing.T) {
	root := t.TempDir()
	doc := `
metric: X
threshold: {unit: mag, operator: "<", value: 1.0}
`
	writeFile(t, filepath.Join(root, "specs", "a", "x.yaml"), doc)
	writeFile(t, filepath.Join(root, "specs", "b", "x.yaml"), doc)
	loader, err := NewLoader(root)
	if err != nil {
		t.Fatalf("new loader: %v", err)
	}
	if _, err := loader.LoadTable(); !errors.Is(err, specs.ErrDuplicateSpec) {
		t.Fatalf("expected duplicate spec, got %v", err)
	}
}

func TestDecodeSpecsYAMLBaseList(t *testing.T) {
	records, err := DecodeSpecsYAML([]byte(`
---
id: unit-base
threshold: {unit: mag}
---
id: op-base
threshold: {operator: ">="}
---
metric: combined
base: [unit-base, op-base]
threshold: {value: 3}
`), "pkg", "inline.yaml")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if got := records[2].Base; len(got) != 2 || got[0] != "unit-base" || got[1] != "op-base" {
		t.Fatalf("unexpected base list %v", got)
	}
	table, err := specs.NewTable(records)
	if err != nil {
		t.Fatalf("new table: %v", err)
	}
	spec, err := table.Lookup("combined")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if spec.Unit != "mag" || spec.Operator != specs.OperatorGreaterOrEqual || spec.Value != 3 {
		t.Fatalf("unexpected spec %+v", spec)
	}
}

func TestDecodeSpecsYAMLRejectsBadBase(t *testing.T) {
	_, err := DecodeSpecsYAML([]byte("metric: x\nbase: {a: b}\n"), "pkg", "bad.yaml")
	if err == nil {
		t.Fatalf("expected error for mapping base")
	}
}

func TestNewLoaderRejectsMissingRoot(t *testing.T) {
	if _, err := NewLoader(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatalf("expected error for missing root")
	}
	if _, err := NewLoader(""); err == nil {
		t.Fatalf("expected error for empty root")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
