package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type config struct {
	HTTPAddr        string        `yaml:"http_addr"`
	SpecRoot        string        `yaml:"spec_root"`
	SpecPackages    []string      `yaml:"spec_packages"`
	TenantID        string        `yaml:"tenant_id"`
	DatabaseURL     string        `yaml:"database_url"`
	SQLitePath      string        `yaml:"sqlite_path"`
	DBMaxOpenConns  int           `yaml:"db_max_open_conns"`
	JWTSecret       string        `yaml:"-"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// loadConfig reads the environment, then overlays the YAML file named by
// VERIFY_CONFIG when set.
func loadConfig() (config, error) {
	cfg := config{
		HTTPAddr:        getenvDefault("HTTP_ADDR", ":8080"),
		SpecRoot:        getenvDefault("SPEC_ROOT", "data"),
		SpecPackages:    splitCSV(getenvDefault("SPEC_PACKAGES", "")),
		TenantID:        getenvDefault("TENANT_ID", "tenant-default"),
		DatabaseURL:     getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		SQLitePath:      getenvDefault("SQLITE_PATH", ""),
		DBMaxOpenConns:  getenvIntDefault("DB_MAX_OPEN_CONNS", 10),
		JWTSecret:       getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		ShutdownTimeout: getenvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}

	if path := os.Getenv("VERIFY_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if cfg.SpecRoot == "" {
		return cfg, errors.New("SPEC_ROOT is required")
	}
	if cfg.TenantID == "" {
		return cfg, errors.New("TENANT_ID is required")
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	return cfg, nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
