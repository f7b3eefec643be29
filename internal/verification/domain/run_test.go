package verification

import (
	"math"
	"testing"
	"time"
)

func TestNewRunCountsVerdicts(t *testing.T) {
	run, err := NewRun("run-1", "tenant-a", []Verdict{
		{SpecID: "PA2_design_gri", Passed: true},
		{SpecID: "PA2_stretch_gri", Passed: false},
		{SpecID: "PA2_minimum_gri", Passed: true},
	}, time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("x", 3600)))
	if err != nil {
		t.Fatalf("new run: %v", err)
	}
	if run.Passed != 2 || run.Failed != 1 {
		t.Fatalf("expected 2/1, got %d/%d", run.Passed, run.Failed)
	}
	if run.Success() {
		t.Fatalf("expected failed run")
	}
	if run.CreatedAt.Location() != time.UTC {
		t.Fatalf("expected UTC created_at")
	}
}

func TestNewRunValidates(t *testing.T) {
	if _, err := NewRun("", "", nil, time.Now()); err == nil {
		t.Fatalf("expected error for empty id")
	}
	if _, err := NewRun("run-1", "", nil, time.Time{}); err == nil {
		t.Fatalf("expected error for zero time")
	}
}

func floatPtr(v float64) *float64 { return &v }

func TestMeasurementValidate(t *testing.T) {
	cases := []struct {
		name string
		m    Measurement
		want error
	}{
		{"no target", Measurement{Value: floatPtr(1)}, ErrInvalidMeasurement},
		{"metric", Measurement{Metric: "PA2", Value: floatPtr(1)}, nil},
		{"zero value", Measurement{Spec: "PA2_stretch_gri", Value: floatPtr(0)}, nil},
		{"missing value", Measurement{Spec: "PA2_stretch_gri"}, ErrMissingValue},
		{"nan", Measurement{Spec: "PA2_stretch_gri", Value: floatPtr(math.NaN())}, ErrNonFiniteValue},
		{"inf", Measurement{Spec: "PA2_stretch_gri", Value: floatPtr(math.Inf(-1))}, ErrNonFiniteValue},
	}
	for _, tc := range cases {
		if err := tc.m.Validate(); err != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}
