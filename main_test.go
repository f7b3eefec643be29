package main

import (
	"bytes"
	"context"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"verify-thresholds/internal/specs/infrastructure/filesystem"
	"verify-thresholds/internal/verification/infrastructure/memory"
	runsqlite "verify-thresholds/internal/verification/infrastructure/sqlite"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("VERIFY_CONFIG", "")
	t.Setenv("SPEC_ROOT", "")
	t.Setenv("SPEC_PACKAGES", "validate_drp, ap_association")
	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.SpecRoot != "data" || cfg.HTTPAddr == "" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if len(cfg.SpecPackages) != 2 || cfg.SpecPackages[1] != "ap_association" {
		t.Fatalf("unexpected packages %v", cfg.SpecPackages)
	}
}

func TestLoadConfigFileOverridesEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "verify.yaml")
	content := "http_addr: \":9090\"\nspec_root: /srv/specs\nshutdown_timeout: 3s\nspec_packages: [validate_drp]\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("HTTP_ADDR", ":8081")
	t.Setenv("VERIFY_CONFIG", path)
	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.HTTPAddr != ":9090" || cfg.SpecRoot != "/srv/specs" {
		t.Fatalf("expected file values, got %+v", cfg)
	}
	if cfg.ShutdownTimeout != 3*time.Second {
		t.Fatalf("expected 3s, got %s", cfg.ShutdownTimeout)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	t.Setenv("VERIFY_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := loadConfig(); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestLoadSpecTableFromData(t *testing.T) {
	loader, err := filesystem.NewLoader("data")
	if err != nil {
		t.Fatalf("new loader: %v", err)
	}
	var buf bytes.Buffer
	table, metricSet, err := loadSpecTable(loader, log.New(&buf, "", 0))
	if err != nil {
		t.Fatalf("load spec table: %v", err)
	}
	if table.Len() != 9 || metricSet.Len() != 3 {
		t.Fatalf("expected 9 specs and 3 metrics, got %d and %d", table.Len(), metricSet.Len())
	}
	if strings.Contains(buf.String(), "spec issue") {
		t.Fatalf("unexpected issues logged: %s", buf.String())
	}
}

func TestOpenRunStoreSelection(t *testing.T) {
	logger := log.New(&bytes.Buffer{}, "", 0)
	ctx := context.Background()

	repo, auditor, closeStore, err := openRunStore(ctx, config{}, logger)
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	defer closeStore()
	if _, ok := repo.(*memory.RunRepository); !ok || auditor != nil {
		t.Fatalf("expected memory store without auditor, got %T %v", repo, auditor)
	}

	repo, _, closeSQLite, err := openRunStore(ctx, config{SQLitePath: filepath.Join(t.TempDir(), "runs.db")}, logger)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer closeSQLite()
	if _, ok := repo.(*runsqlite.RunRepository); !ok {
		t.Fatalf("expected sqlite store, got %T", repo)
	}
}

func TestLoggingMiddlewareRecordsStatus(t *testing.T) {
	var buf bytes.Buffer
	handler := loggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}), log.New(&buf, "", 0))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/specs", nil))
	if !strings.HasPrefix(buf.String(), "http GET /api/v1/specs 418") {
		t.Fatalf("unexpected log line %q", buf.String())
	}
}
