package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"verify-thresholds/internal/audit"
	"verify-thresholds/internal/auth"
	"verify-thresholds/internal/observability/metrics"
	specs "verify-thresholds/internal/specs/domain"
	"verify-thresholds/internal/specs/infrastructure/filesystem"
	specinterfaces "verify-thresholds/internal/specs/interfaces"
	verificationapp "verify-thresholds/internal/verification/application"
	"verify-thresholds/internal/verification/infrastructure/memory"
	runpostgres "verify-thresholds/internal/verification/infrastructure/postgres"
	runsqlite "verify-thresholds/internal/verification/infrastructure/sqlite"
	verificationinterfaces "verify-thresholds/internal/verification/interfaces"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)
	cfg, err := loadConfig()
	if err != nil {
		logger.Fatalf("config error: %v", err)
	}
	metrics.Init()

	loader, err := filesystem.NewLoader(cfg.SpecRoot, filesystem.WithPackages(cfg.SpecPackages...), filesystem.WithLogger(logger))
	if err != nil {
		logger.Fatalf("spec loader error: %v", err)
	}
	table, metricSet, err := loadSpecTable(loader, logger)
	if err != nil {
		logger.Fatalf("spec table error: %v", err)
	}

	ctx := context.Background()
	runs, auditor, closeStore, err := openRunStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("run store error: %v", err)
	}
	defer closeStore()

	opts := []verificationapp.ServiceOption{verificationapp.WithLogger(logger)}
	if auditor != nil {
		opts = append(opts, verificationapp.WithAuditor(auditor))
	}
	service, err := verificationapp.NewService(table, runs, cfg.TenantID, opts...)
	if err != nil {
		logger.Fatalf("verification service error: %v", err)
	}
	runHandler, err := verificationinterfaces.NewRunHandler(service, logger)
	if err != nil {
		logger.Fatalf("verification handler error: %v", err)
	}
	specHandler, err := specinterfaces.NewHandler(table, metricSet)
	if err != nil {
		logger.Fatalf("spec handler error: %v", err)
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)
	if cfg.JWTSecret == "" {
		logger.Printf("AUTH_JWT_SECRET not set: api is unauthenticated, runs use tenant %s", cfg.TenantID)
	}

	mux := http.NewServeMux()
	mux.Handle("/api/v1/specs", specHandler)
	mux.Handle("/api/v1/specs/", specHandler)
	mux.Handle("/api/v1/metric-definitions", specHandler)
	mux.Handle("/api/v1/verifications", runHandler)
	mux.Handle("/api/v1/verifications/", runHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           loggingMiddleware(authMiddleware.Wrap(mux), logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stop
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Printf("http shutdown error: %v", err)
		}
	}()

	logger.Printf("http listening on %s", cfg.HTTPAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("http server error: %v", err)
	}
}

// loadSpecTable reads and resolves the spec root and records load metrics.
// Validation issues are logged but do not fail startup.
func loadSpecTable(loader *filesystem.Loader, logger *log.Logger) (*specs.Table, *specs.MetricSet, error) {
	table, err := loader.LoadTable()
	if err != nil {
		metrics.IncSpecLoad(metrics.ResultError)
		return nil, nil, err
	}
	metricSet, err := loader.LoadMetrics()
	if err != nil {
		metrics.IncSpecLoad(metrics.ResultError)
		return nil, nil, err
	}
	metrics.IncSpecLoad(metrics.ResultSuccess)
	for _, pkg := range table.Packages() {
		metrics.SetSpecTableSize(pkg, len(table.Filter(pkg, nil)))
	}
	for _, issue := range table.Validate(metricSet) {
		logger.Printf("spec issue: spec=%s %s", issue.SpecID, issue.Message)
	}
	logger.Printf("spec table loaded: root=%s specs=%d metrics=%d", loader.Root(), table.Len(), metricSet.Len())
	return table, metricSet, nil
}

// openRunStore selects Postgres, then SQLite, then memory. The audit logger
// is only available with Postgres.
func openRunStore(ctx context.Context, cfg config, logger *log.Logger) (verificationapp.RunRepository, audit.Logger, func(), error) {
	switch {
	case cfg.DatabaseURL != "":
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, nil, nil, err
		}
		logger.Printf("run store: postgres")
		return runpostgres.NewRunRepository(db), audit.NewRepository(db), func() { _ = db.Close() }, nil
	case cfg.SQLitePath != "":
		repo, err := runsqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, err
		}
		logger.Printf("run store: sqlite path=%s", cfg.SQLitePath)
		return repo, nil, func() { _ = repo.Close() }, nil
	default:
		logger.Printf("run store: memory")
		return memory.NewRunRepository(), nil, func() {}, nil
	}
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
