package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	verification "verify-thresholds/internal/verification/domain"
)

// RunRepository is a Postgres repository for verification runs.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository constructs a repository.
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Save inserts a run and its verdicts in one transaction.
func (r *RunRepository) Save(ctx context.Context, run *verification.Run) error {
	if r == nil || r.db == nil {
		return errors.New("run repo: nil db")
	}
	if run == nil {
		return errors.New("run repo: nil run")
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO verification_runs (id, tenant_id, passed, failed, created_at)
VALUES ($1, $2, $3, $4, $5)`, run.ID, run.TenantID, run.Passed, run.Failed, run.CreatedAt.UTC()); err != nil {
		return err
	}
	for i, verdict := range run.Verdicts {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO verification_verdicts (
	run_id, position, spec_id, package, metric_ref, measured, unit, operator, threshold, passed
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
)`, run.ID, i, verdict.SpecID, verdict.Package, verdict.MetricRef, verdict.Measured,
			verdict.Unit, verdict.Operator, verdict.Threshold, verdict.Passed); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetByID loads a run by id.
func (r *RunRepository) GetByID(ctx context.Context, tenantID, id string) (*verification.Run, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("run repo: nil db")
	}
	if tenantID == "" || id == "" {
		return nil, errors.New("run repo: invalid query")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT id, tenant_id, passed, failed, created_at
FROM verification_runs
WHERE tenant_id = $1 AND id = $2
LIMIT 1`, tenantID, id)
	var run verification.Run
	if err := row.Scan(&run.ID, &run.TenantID, &run.Passed, &run.Failed, &run.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	run.CreatedAt = run.CreatedAt.UTC()
	verdicts, err := r.listVerdicts(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	run.Verdicts = verdicts
	return &run, nil
}

// ListByTime returns tenant runs created in [from, to), newest first.
func (r *RunRepository) ListByTime(ctx context.Context, tenantID string, from, to time.Time) ([]verification.Run, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("run repo: nil db")
	}
	if tenantID == "" {
		return nil, errors.New("run repo: invalid query")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, tenant_id, passed, failed, created_at
FROM verification_runs
WHERE tenant_id = $1 AND created_at >= $2 AND created_at < $3
ORDER BY created_at DESC`, tenantID, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []verification.Run
	for rows.Next() {
		var run verification.Run
		if err := rows.Scan(&run.ID, &run.TenantID, &run.Passed, &run.Failed, &run.CreatedAt); err != nil {
			return nil, err
		}
		run.CreatedAt = run.CreatedAt.UTC()
		result = append(result, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range result {
		verdicts, err := r.listVerdicts(ctx, result[i].ID)
		if err != nil {
			return nil, err
		}
		result[i].Verdicts = verdicts
	}
	return result, nil
}

func (r *RunRepository) listVerdicts(ctx context.Context, runID string) ([]verification.Verdict, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT spec_id, package, metric_ref, measured, unit, operator, threshold, passed
FROM verification_verdicts
WHERE run_id = $1
ORDER BY position ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var verdicts []verification.Verdict
	for rows.Next() {
		var v verification.Verdict
		if err := rows.Scan(&v.SpecID, &v.Package, &v.MetricRef, &v.Measured, &v.Unit, &v.Operator, &v.Threshold, &v.Passed); err != nil {
			return nil, err
		}
		verdicts = append(verdicts, v)
	}
	return verdicts, rows.Err()
}
