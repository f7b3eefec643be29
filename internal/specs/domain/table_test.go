package specs

import (
	"errors"
	"math"
	"sync"
	"testing"
)

func TestNewTableResolvesConcreteSpecs(t *testing.T) {
	table, err := NewTable(pa2Records())
	if err != nil {
		t.Fatalf("new table: %v", err)
	}
	if table.Len() != 6 {
		t.Fatalf("expected 6 specs, got %d", table.Len())
	}
	list := table.List()
	if list[0].ID != "PA2_design_gri" {
		t.Fatalf("expected sorted list, got %s first", list[0].ID)
	}
	for _, spec := range list {
		if spec.Unit != "mmag" || spec.Operator != OperatorLessOrEqual {
			t.Fatalf("unexpected spec %+v", spec)
		}
	}
}

func TestTableLookup(t *testing.T) {
	table, err := NewTable(pa2Records())
	if err != nil {
		t.Fatalf("new table: %v", err)
	}
	spec, err := table.Lookup("validate_drp.PA2_stretch_uzy")
	if err != nil {
		t.Fatalf("lookup qualified: %v", err)
	}
	if spec.Value != 15.0 {
		t.Fatalf("expected 15, got %v", spec.Value)
	}
	if spec.QualifiedName() != "validate_drp.PA2_stretch_uzy" {
		t.Fatalf("unexpected qualified name %s", spec.QualifiedName())
	}
	if _, err := table.Lookup("other_pkg.PA2_stretch_uzy"); !errors.Is(err, ErrSpecNotFound) {
		t.Fatalf("expected not found for wrong package, got %v", err)
	}
	if _, err := table.Lookup("PA2-base"); !errors.Is(err, ErrAbstractSpec) {
		t.Fatalf("expected abstract spec, got %v", err)
	}
	if _, err := table.Lookup("nope"); !errors.Is(err, ErrSpecNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestNewTableFailsOnBrokenReference(t *testing.T) {
	records := append(pa2Records(), ThresholdSpec{
		Metric:    "PA2_broken",
		Base:      []string{"PA2-gone"},
		Threshold: Threshold{Value: FloatPtr(1)},
	})
	_, err := NewTable(records)
	if !errors.Is(err, ErrBrokenReference) {
		t.Fatalf("expected broken reference, got %v", err)
	}
}

func TestNewTableReportsEveryFailure(t *testing.T) {
	_, err := NewTable([]ThresholdSpec{
		{Metric: "a", Base: []string{"missing"}},
		{Metric: "b", Threshold: Threshold{Value: FloatPtr(1)}},
	})
	if !errors.Is(err, ErrBrokenReference) || !errors.Is(err, ErrMissingField) {
		t.Fatalf("expected both failures, got %v", err)
	}
}

func TestTableFilterAndForMetric(t *testing.T) {
	table, err := NewTable(pa2Records())
	if err != nil {
		t.Fatalf("new table: %v", err)
	}
	if got := len(table.Filter("validate_drp", []string{"gri"})); got != 3 {
		t.Fatalf("expected 3 gri specs, got %d", got)
	}
	if got := len(table.Filter("", []string{"stretch"})); got != 2 {
		t.Fatalf("expected 2 stretch specs, got %d", got)
	}
	if got := len(table.Filter("elsewhere", nil)); got != 0 {
		t.Fatalf("expected no specs, got %d", got)
	}
	if got := len(table.ForMetric("PA2")); got != 6 {
		t.Fatalf("expected 6 PA2 specs, got %d", got)
	}
	if got := len(table.ForMetric("validate_drp.PA2")); got != 6 {
		t.Fatalf("expected 6 qualified PA2 specs, got %d", got)
	}
	if got := table.Packages(); len(got) != 1 || got[0] != "validate_drp" {
		t.Fatalf("unexpected packages %v", got)
	}
}

func TestTableConcurrentReaders(t *testing.T) {
	table, err := NewTable(pa2Records())
	if err != nil {
		t.Fatalf("new table: %v", err)
	}
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, spec := range table.List() {
				if _, err := table.Lookup(spec.ID); err != nil {
					t.Errorf("lookup %s: %v", spec.ID, err)
				}
			}
		}()
	}
	wg.Wait()
}

func TestTableValidate(t *testing.T) {
	table, err := NewTable(pa2Records())
	if err != nil {
		t.Fatalf("new table: %v", err)
	}
	metrics := NewMetricSet(Metric{Package: "validate_drp", Name: "PA2", Unit: "mmag"})
	if issues := table.Validate(metrics); len(issues) != 0 {
		t.Fatalf("expected no issues, got %+v", issues)
	}
	if issues := table.Validate(NewMetricSet()); len(issues) != 6 {
		t.Fatalf("expected 6 undefined metric issues, got %d", len(issues))
	}
	wrongUnit := NewMetricSet(Metric{Package: "validate_drp", Name: "PA2", Unit: "arcsec"})
	if issues := table.Validate(wrongUnit); len(issues) != 6 {
		t.Fatalf("expected 6 unit issues, got %d", len(issues))
	}
}

func TestOperatorCompare(t *testing.T) {
	cases := []struct {
		op       Operator
		measured float64
		want     bool
	}{
		{OperatorLessOrEqual, 15, true},
		{OperatorLessOrEqual, 15.01, false},
		{OperatorLess, 15, false},
		{OperatorGreater, 16, true},
		{OperatorGreaterOrEqual, 15, true},
		{OperatorEqual, 15, true},
		{OperatorNotEqual, 15, false},
		{Operator("~"), 15, false},
	}
	for _, tc := range cases {
		if got := tc.op.Compare(tc.measured, 15); got != tc.want {
			t.Fatalf("%v %s 15: expected %v, got %v", tc.measured, tc.op, tc.want, got)
		}
	}
}

func TestConvertUnit(t *testing.T) {
	got, err := ConvertUnit(0.012, "mag", "mmag")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if math.Abs(got-12) > 1e-9 {
		t.Fatalf("expected 12, got %v", got)
	}
	got, err = ConvertUnit(1, "arcmin", "mas")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if math.Abs(got-60000) > 1e-6 {
		t.Fatalf("expected 60000, got %v", got)
	}
	if _, err := ConvertUnit(1, "mag", "arcsec"); !errors.Is(err, ErrUnitMismatch) {
		t.Fatalf("expected unit mismatch, got %v", err)
	}
	if _, err := ConvertUnit(1, "furlong", "mag"); !errors.Is(err, ErrUnitMismatch) {
		t.Fatalf("expected unit mismatch, got %v", err)
	}
}

func TestMetricSetSubsetAndMerge(t *testing.T) {
	set := NewMetricSet(
		Metric{Package: "validate_drp", Name: "PA1", Unit: "mmag", Tags: []string{"photometry"}},
		Metric{Package: "validate_drp", Name: "AM1", Unit: "marcsec", Tags: []string{"astrometry"}},
		Metric{Package: "ap_association", Name: "totalUnassociatedDiaObjects", Tags: []string{"photometry"}},
	)
	if got := set.Subset("validate_drp", nil).Len(); got != 2 {
		t.Fatalf("expected 2 in package, got %d", got)
	}
	if got := set.Subset("", []string{"photometry"}).Len(); got != 2 {
		t.Fatalf("expected 2 tagged, got %d", got)
	}
	if got := set.Subset("validate_drp", []string{"photometry"}).Len(); got != 1 {
		t.Fatalf("expected intersection of 1, got %d", got)
	}
	if got := set.Subset("", nil).Len(); got != 0 {
		t.Fatalf("expected empty subset, got %d", got)
	}

	metric, err := set.Get("AM1")
	if err != nil {
		t.Fatalf("get bare: %v", err)
	}
	if metric.Unit != "marcsec" {
		t.Fatalf("unexpected metric %+v", metric)
	}

	other := NewMetricSet(Metric{Package: "validate_drp", Name: "AM1", Unit: "mas"})
	set.Merge(other)
	metric, err = set.Get("validate_drp.AM1")
	if err != nil {
		t.Fatalf("get qualified: %v", err)
	}
	if metric.Unit != "mas" {
		t.Fatalf("expected merge to replace AM1, got %+v", metric)
	}
	if _, err := set.Get("validate_drp.missing"); !errors.Is(err, ErrMetricNotFound) {
		t.Fatalf("expected metric not found, got %v", err)
	}
}

func TestTableAccessorsReturnCopies(t *testing.T) {
	table, err := NewTable(pa2Records())
	if err != nil {
		t.Fatalf("new table: %v", err)
	}
	first, err := table.Lookup("PA2_design_gri")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	first.Tags[0] = "mutated"
	table.List()[0].Tags[0] = "mutated"
	table.Filter("", []string{"gri"})[0].Tags[0] = "mutated"
	table.ForMetric("PA2")[0].Tags[0] = "mutated"

	second, err := table.Lookup("PA2_design_gri")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	for _, tag := range second.Tags {
		if tag == "mutated" {
			t.Fatalf("expected table tags to be unchanged, got %v", second.Tags)
		}
	}
}

func TestTableLookupDottedID(t *testing.T) {
	table, err := NewTable([]ThresholdSpec{{
		Metric:  "AM1.legacy",
		Package: "validate_drp",
		Threshold: Threshold{
			Unit:     StringPtr("marcsec"),
			Operator: OperatorPtr(OperatorLessOrEqual),
			Value:    FloatPtr(20),
		},
	}})
	if err != nil {
		t.Fatalf("new table: %v", err)
	}
	for _, name := range []string{"AM1.legacy", "validate_drp.AM1.legacy"} {
		spec, err := table.Lookup(name)
		if err != nil {
			t.Fatalf("lookup %s: %v", name, err)
		}
		if spec.Value != 20 {
			t.Fatalf("%s: expected 20, got %v", name, spec.Value)
		}
	}
}

func TestNewTableIDsAreGlobalAcrossPackages(t *testing.T) {
	base := func(pkg string) ThresholdSpec {
		return ThresholdSpec{ID: "PA2-base", Package: pkg, Threshold: Threshold{Unit: StringPtr("mmag")}}
	}
	if _, err := NewTable([]ThresholdSpec{base("validate_drp"), base("validate_drp_hsc")}); !errors.Is(err, ErrDuplicateSpec) {
		t.Fatalf("expected duplicate spec across packages, got %v", err)
	}
}
