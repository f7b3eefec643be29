// Package sqlite stores verification runs in a local SQLite file for offline
// use. Times are stored as Unix nanoseconds.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	verification "verify-thresholds/internal/verification/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS verification_runs (
	id         TEXT PRIMARY KEY,
	tenant_id  TEXT NOT NULL,
	passed     INTEGER NOT NULL,
	failed     INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS verification_runs_tenant_created_idx
	ON verification_runs (tenant_id, created_at);
CREATE TABLE IF NOT EXISTS verification_verdicts (
	run_id     TEXT NOT NULL REFERENCES verification_runs (id) ON DELETE CASCADE,
	position   INTEGER NOT NULL,
	spec_id    TEXT NOT NULL,
	package    TEXT NOT NULL DEFAULT '',
	metric_ref TEXT NOT NULL DEFAULT '',
	measured   REAL NOT NULL,
	unit       TEXT NOT NULL,
	operator   TEXT NOT NULL,
	threshold  REAL NOT NULL,
	passed     INTEGER NOT NULL,
	PRIMARY KEY (run_id, position)
);`

// RunRepository is a SQLite repository for verification runs.
type RunRepository struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*RunRepository, error) {
	if path == "" {
		return nil, errors.New("sqlite run repo: empty path")
	}
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("sqlite run repo: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	repo := &RunRepository{db: db}
	if err := repo.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the database.
func (r *RunRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *RunRepository) ensureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("sqlite run repo: schema: %w", err)
	}
	return nil
}

// Save inserts a run and its verdicts in one transaction.
func (r *RunRepository) Save(ctx context.Context, run *verification.Run) error {
	if r == nil || r.db == nil {
		return errors.New("sqlite run repo: nil db")
	}
	if run == nil {
		return errors.New("sqlite run repo: nil run")
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO verification_runs (id, tenant_id, passed, failed, created_at) VALUES (?, ?, ?, ?, ?)",
		run.ID, run.TenantID, run.Passed, run.Failed, run.CreatedAt.UTC().UnixNano()); err != nil {
		return err
	}
	for i, v := range run.Verdicts {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO verification_verdicts (run_id, position, spec_id, package, metric_ref, measured, unit, operator, threshold, passed)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, i, v.SpecID, v.Package, v.MetricRef, v.Measured, v.Unit, v.Operator, v.Threshold, v.Passed); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetByID loads a run by id.
func (r *RunRepository) GetByID(ctx context.Context, tenantID, id string) (*verification.Run, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("sqlite run repo: nil db")
	}
	row := r.db.QueryRowContext(ctx,
		"SELECT id, tenant_id, passed, failed, created_at FROM verification_runs WHERE tenant_id = ? AND id = ?",
		tenantID, id)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if run.Verdicts, err = r.listVerdicts(ctx, run.ID); err != nil {
		return nil, err
	}
	return run, nil
}

// ListByTime returns tenant runs created in [from, to), newest first.
func (r *RunRepository) ListByTime(ctx context.Context, tenantID string, from, to time.Time) ([]verification.Run, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("sqlite run repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, tenant_id, passed, failed, created_at FROM verification_runs
WHERE tenant_id = ? AND created_at >= ? AND created_at < ?
ORDER BY created_at DESC`, tenantID, from.UTC().UnixNano(), to.UTC().UnixNano())
	if err != nil {
		return nil, err
	}
	var result []verification.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		result = append(result, *run)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range result {
		if result[i].Verdicts, err = r.listVerdicts(ctx, result[i].ID); err != nil {
			return nil, err
		}
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*verification.Run, error) {
	var run verification.Run
	var createdAt int64
	if err := row.Scan(&run.ID, &run.TenantID, &run.Passed, &run.Failed, &createdAt); err != nil {
		return nil, err
	}
	run.CreatedAt = time.Unix(0, createdAt).UTC()
	return &run, nil
}

func (r *RunRepository) listVerdicts(ctx context.Context, runID string) ([]verification.Verdict, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT spec_id, package, metric_ref, measured, unit, operator, threshold, passed
FROM verification_verdicts WHERE run_id = ? ORDER BY position ASC`, runID)
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
