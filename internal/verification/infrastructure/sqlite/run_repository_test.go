package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	verification "verify-thresholds/internal/verification/domain"
)

func TestRunRepositorySQLite(t *testing.T) {
	ctx := context.Background()
	repo, err := Open(ctx, filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer repo.Close()

	createdAt := time.Date(2026, 2, 1, 8, 0, 0, 123, time.UTC)
	run, err := verification.NewRun("run-1", "tenant-a", []verification.Verdict{
		{SpecID: "PA2_design_uzy", Package: "validate_drp", Measured: 20, Unit: "mmag", Operator: "<=", Threshold: 22.5, Passed: true},
		{SpecID: "PA2_stretch_uzy", Package: "validate_drp", Measured: 20, Unit: "mmag", Operator: "<=", Threshold: 15, Passed: false},
	}, createdAt)
	if err != nil {
		t.Fatalf("new run: %v", err)
	}
	if err := repo.Save(ctx, run); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := repo.Save(ctx, run); err == nil {
		t.Fatalf("expected duplicate insert to fail")
	}

	got, err := repo.GetByID(ctx, "tenant-a", "run-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatalf("expected run")
	}
	if !got.CreatedAt.Equal(createdAt) {
		t.Fatalf("expected created_at %v, got %v", createdAt, got.CreatedAt)
	}
	if len(got.Verdicts) != 2 || got.Verdicts[0].SpecID != "PA2_design_uzy" || got.Verdicts[1].Passed {
		t.Fatalf("unexpected verdicts %+v", got.Verdicts)
	}
	if got.Passed != 1 || got.Failed != 1 {
		t.Fatalf("expected 1/1, got %d/%d", got.Passed, got.Failed)
	}

	missing, err := repo.GetByID(ctx, "tenant-b", "run-1")
	if err != nil || missing != nil {
		t.Fatalf("expected no run for other tenant, got %v %v", missing, err)
	}

	list, err := repo.ListByTime(ctx, "tenant-a", createdAt, createdAt.Add(time.Second))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || len(list[0].Verdicts) != 2 {
		t.Fatalf("unexpected list %+v", list)
	}
	empty, err := repo.ListByTime(ctx, "tenant-a", createdAt.Add(time.Second), createdAt.Add(time.Hour))
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty list, got %v %v", empty, err)
	}
}
