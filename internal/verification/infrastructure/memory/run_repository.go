package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	verification "verify-thresholds/internal/verification/domain"
)

// RunRepository is an in-memory run repository for local use and tests.
type RunRepository struct {
	mu   sync.RWMutex
	data map[string]verification.Run
}

// NewRunRepository constructs a repository.
func NewRunRepository() *RunRepository {
	return &RunRepository{data: make(map[string]verification.Run)}
}

// Save stores a copy of run.
func (r *RunRepository) Save(ctx context.Context, run *verification.Run) error {
	_ = ctx
	if run == nil {
		return errors.New("run repo: nil run")
	}
	if run.ID == "" {
		return errors.New("run repo: empty id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[run.ID]; ok {
		return errors.New("run repo: duplicate id")
	}
	r.data[run.ID] = copyRun(*run)
	return nil
}

// GetByID loads a run by id; nil when missing or owned by another tenant.
func (r *RunRepository) GetByID(ctx context.Context, tenantID, id string) (*verification.Run, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.data[id]
	if !ok || run.TenantID != tenantID {
		return nil, nil
	}
	out := copyRun(run)
	return &out, nil
}

// ListByTime returns tenant runs created in [from, to), newest first.
func (r *RunRepository) ListByTime(ctx context.Context, tenantID string, from, to time.Time) ([]verification.Run, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []verification.Run
	for _, run := range r.data {
		if run.TenantID != tenantID {
			continue
		}
		if run.CreatedAt.Before(from) || !run.CreatedAt.Before(to) {
			continue
		}
		result = append(result, copyRun(run))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func copyRun(run verification.Run) verification.Run {
	run.Verdicts = append([]verification.Verdict(nil), run.Verdicts...)
	return run
}
