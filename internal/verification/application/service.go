package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"verify-thresholds/internal/audit"
	"verify-thresholds/internal/auth"
	"verify-thresholds/internal/observability/metrics"
	specs "verify-thresholds/internal/specs/domain"
	verification "verify-thresholds/internal/verification/domain"
)

// SpecCatalog resolves specs by name.
type SpecCatalog interface {
	Lookup(name string) (specs.Resolved, error)
	ForMetric(metric string) []specs.Resolved
}

// RunRepository persists verification runs. GetByID returns nil, nil for a
// missing run.
type RunRepository interface {
	Save(ctx context.Context, run *verification.Run) error
	GetByID(ctx context.Context, tenantID, id string) (*verification.Run, error)
	ListByTime(ctx context.Context, tenantID string, from, to time.Time) ([]verification.Run, error)
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// Service evaluates measurements against the spec table and records runs.
type Service struct {
	catalog  SpecCatalog
	runs     RunRepository
	auditor  audit.Logger
	clock    Clock
	logger   *log.Logger
	newID    func() string
	tenantID string
}

// ServiceOption customizes the verification service.
type ServiceOption func(*Service)

// WithAuditor assigns an audit logger for completed runs.
func WithAuditor(auditor audit.Logger) ServiceOption {
	return func(s *Service) {
		s.auditor = auditor
	}
}

// WithClock assigns a clock.
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) {
		s.clock = clock
	}
}

// WithLogger assigns a logger.
func WithLogger(logger *log.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithIDGenerator overrides run id generation.
func WithIDGenerator(newID func() string) ServiceOption {
	return func(s *Service) {
		s.newID = newID
	}
}

// NewService constructs a verification service. tenantID is used for
// requests that carry no authenticated identity.
func NewService(catalog SpecCatalog, runs RunRepository, tenantID string, opts ...ServiceOption) (*Service, error) {
	if catalog == nil {
		return nil, errors.New("verification: nil spec catalog")
	}
	if runs == nil {
		return nil, errors.New("verification: nil run repository")
	}
	if tenantID == "" {
		return nil, errors.New("verification: empty tenant id")
	}
	service := &Service{
		catalog:  catalog,
		runs:     runs,
		clock:    systemClock{},
		newID:    func() string { return "run-" + uuid.NewString() },
		tenantID: tenantID,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Evaluate checks one measurement and returns a verdict per selected spec.
// Nothing is stored or counted.
func (s *Service) Evaluate(ctx context.Context, m verification.Measurement) ([]verification.Verdict, error) {
	_ = ctx
	if s == nil {
		return nil, errors.New("verification: nil service")
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}

	selected, err := s.selectSpecs(m)
	if err != nil {
		return nil, err
	}
	verdicts := make([]verification.Verdict, 0, len(selected))
	for _, spec := range selected {
		verdict, err := evaluate(spec, m)
		if err != nil {
			return nil, err
		}
		verdicts = append(verdicts, verdict)
	}
	return verdicts, nil
}

// Verify evaluates every measurement and stores the resulting run. Any
// measurement error aborts the run without storing it.
func (s *Service) Verify(ctx context.Context, measurements []verification.Measurement) (*verification.Run, error) {
	if s == nil {
		return nil, errors.New("verification: nil service")
	}
	start := time.Now()
	run, err := s.verify(ctx, measurements)
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	metrics.ObserveVerification(result, time.Since(start))
	return run, err
}

func (s *Service) verify(ctx context.Context, measurements []verification.Measurement) (*verification.Run, error) {
	if len(measurements) == 0 {
		return nil, verification.ErrNoMeasurements
	}
	var verdicts []verification.Verdict
	for i, m := range measurements {
		got, err := s.Evaluate(ctx, m)
		if err != nil {
			return nil, fmt.Errorf("measurement %d: %w", i, err)
		}
		verdicts = append(verdicts, got...)
	}

	tenantID := auth.TenantIDFromContext(ctx, s.tenantID)
	run, err := verification.NewRun(s.newID(), tenantID, verdicts, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := s.runs.Save(ctx, run); err != nil {
		return nil, err
	}
	for _, verdict := range run.Verdicts {
		metrics.IncVerdict(verdict.SpecID, verdict.Passed)
	}
	s.logf("verification run stored: id=%s tenant=%s passed=%d failed=%d", run.ID, run.TenantID, run.Passed, run.Failed)
	s.audit(ctx, run)
	return run, nil
}

// GetRun loads a run for the caller's tenant.
func (s *Service) GetRun(ctx context.Context, id string) (*verification.Run, error) {
	if s == nil {
		return nil, errors.New("verification: nil service")
	}
	if id == "" {
		return nil, errors.New("verification: run id required")
	}
	run, err := s.runs.GetByID(ctx, auth.TenantIDFromContext(ctx, s.tenantID), id)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, verification.ErrNotFound
	}
	return run, nil
}

// ListRuns returns the caller's runs created in [from, to).
func (s *Service) ListRuns(ctx context.Context, from, to time.Time) ([]verification.Run, error) {
	if s == nil {
		return nil, errors.New("verification: nil service")
	}
	if !to.After(from) {
		return nil, errors.New("verification: to must be after from")
	}
	return s.runs.ListByTime(ctx, auth.TenantIDFromContext(ctx, s.tenantID), from.UTC(), to.UTC())
}

func (s *Service) selectSpecs(m verification.Measurement) ([]specs.Resolved, error) {
	if m.Spec != "" {
		spec, err := s.catalog.Lookup(m.Spec)
		if err != nil {
			return nil, err
		}
		return []specs.Resolved{spec}, nil
	}
	var selected []specs.Resolved
	for _, spec := range s.catalog.ForMetric(m.Metric) {
		if spec.HasTags(m.Tags) {
			selected = append(selected, spec)
		}
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("%w: metric %s", verification.ErrNoMatchingSpecs, m.Metric)
	}
	return selected, nil
}

func evaluate(spec specs.Resolved, m verification.Measurement) (verification.Verdict, error) {
	measured := *m.Value
	if m.Unit != "" {
		converted, err := specs.ConvertUnit(measured, m.Unit, spec.Unit)
		if err != nil {
			return verification.Verdict{}, fmt.Errorf("%s: %w", spec.ID, err)
		}
		measured = converted
	}
	if !verification.IsFinite(measured) {
		return verification.Verdict{}, fmt.Errorf("%w: %s %v %s", verification.ErrNonFiniteValue, spec.ID, *m.Value, m.Unit)
	}
	return verification.Verdict{
		SpecID:    spec.ID,
		Package:   spec.Package,
		MetricRef: spec.MetricRef,
		Measured:  measured,
		Unit:      spec.Unit,
		Operator:  string(spec.Operator),
		Threshold: spec.Value,
		Passed:    spec.Check(measured),
	}, nil
}

func (s *Service) audit(ctx context.Context, run *verification.Run) {
	if s.auditor == nil {
		return
	}
	meta, _ := json.Marshal(map[string]any{
		"passed":   run.Passed,
		"failed":   run.Failed,
		"verdicts": len(run.Verdicts),
	})
	identity, _ := auth.IdentityFromContext(ctx)
	err := s.auditor.Log(ctx, audit.Entry{
		TenantID:     run.TenantID,
		Actor:        identity.Subject,
		Role:         string(identity.Role),
		Action:       "verification.run",
		ResourceType: "verification_run",
		ResourceID:   run.ID,
		Metadata:     meta,
		CreatedAt:    run.CreatedAt,
	})
	if err != nil {
		s.logf("audit log error: run=%s err=%v", run.ID, err)
	}
}

func (s *Service) logf(format string, args ...any) {
	if s.logger == nil {
		return
	}
	s.logger.Printf(format, args...)
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
