package filesystem

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	specs "verify-thresholds/internal/specs/domain"
)

const (
	specsDirName   = "specs"
	metricsDirName = "metrics"
)

// Loader reads a spec root laid out as
//
//	<root>/specs/<package>/*.yaml|*.yml|*.toml
//	<root>/metrics/<package>.yaml
type Loader struct {
	root     string
	packages map[string]struct{}
	logger   *log.Logger
}

// Option customizes the loader.
type Option func(*Loader)

// WithPackages restricts loading to the named packages.
func WithPackages(packages ...string) Option {
	return func(l *Loader) {
		for _, pkg := range packages {
			pkg = strings.TrimSpace(pkg)
			if pkg == "" {
				continue
			}
			if l.packages == nil {
				l.packages = make(map[string]struct{})
			}
			l.packages[pkg] = struct{}{}
		}
	}
}

// WithLogger assigns a logger.
func WithLogger(logger *log.Logger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

// NewLoader constructs a loader rooted at root.
func NewLoader(root string, opts ...Option) (*Loader, error) {
	if root == "" {
		return nil, errors.New("spec loader: empty root")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("spec loader: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("spec loader: %s is not a directory", abs)
	}
	loader := &Loader{root: abs}
	for _, opt := range opts {
		opt(loader)
	}
	return loader, nil
}

// Root returns the absolute spec root.
func (l *Loader) Root() string {
	return l.root
}

// LoadSpecs reads every spec file under <root>/specs.
func (l *Loader) LoadSpecs() ([]specs.ThresholdSpec, error) {
	dir := filepath.Join(l.root, specsDirName)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("spec loader: specs directory %s not found", dir)
	}

	var paths []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !isSpecFile(path) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	var records []specs.ThresholdSpec
	for _, path := range paths {
		pkg := packageOf(dir, path)
		if !l.wants(pkg) {
			continue
		}
		loaded, err := ReadSpecFile(path, pkg)
		if err != nil {
			return nil, err
		}
		l.logf("spec file loaded: package=%s path=%s records=%d", pkg, path, len(loaded))
		records = append(records, loaded...)
	}
	return records, nil
}

// LoadTable reads and resolves every spec under the root.
func (l *Loader) LoadTable() (*specs.Table, error) {
	records, err := l.LoadSpecs()
	if err != nil {
		return nil, err
	}
	return specs.NewTable(records)
}

// LoadMetrics reads <root>/metrics/*.yaml. A missing metrics directory yields
// an empty set.
func (l *Loader) LoadMetrics() (*specs.MetricSet, error) {
	set := specs.NewMetricSet()
	dir := filepath.Join(l.root, metricsDirName)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return set, nil
	}
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	for _, path := range paths {
		pkg := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		if !l.wants(pkg) {
			continue
		}
		metrics, err := ReadMetricsFile(path)
		if err != nil {
			return nil, err
		}
		for _, metric := range metrics {
			set.Insert(metric)
		}
	}
	return set, nil
}

// ReadSpecFile decodes one spec file, choosing the format by extension.
func ReadSpecFile(path, pkg string) ([]specs.ThresholdSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return DecodeSpecsTOML(data, pkg, path)
	default:
		return DecodeSpecsYAML(data, pkg, path)
	}
}

// ReadMetricsFile decodes one metric definition file; the package is the file stem.
func ReadMetricsFile(path string) ([]specs.Metric, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pkg := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return DecodeMetricsYAML(data, pkg)
}

func (l *Loader) wants(pkg string) bool {
	if len(l.packages) == 0 {
		return true
	}
	_, ok := l.packages[pkg]
	return ok
}

func (l *Loader) logf(format string, args ...any) {
	if l.logger == nil {
		return
	}
	l.logger.Printf(format, args...)
}

func isSpecFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".toml":
		return true
	default:
		return false
	}
}

// packageOf returns the first directory below the specs dir; files placed
// directly in the specs dir have no package.
func packageOf(specsDir, path string) string {
	rel, err := filepath.Rel(specsDir, path)
	if err != nil {
		return ""
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[0]
}
