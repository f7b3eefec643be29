package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "verify_"

	resultSuccess = "success"
	resultError   = "error"

	verdictPassed = "passed"
	verdictFailed = "failed"
)

var (
	registerOnce sync.Once

	specTableSize *prometheus.GaugeVec
	specLoadTotal *prometheus.CounterVec

	verificationTotal   *prometheus.CounterVec
	verificationLatency *prometheus.HistogramVec
	verdictTotal        *prometheus.CounterVec

	reportExportTotal   *prometheus.CounterVec
	reportExportLatency *prometheus.HistogramVec
)

// Init registers metrics with the default registry.
func Init() {
	InitWith(prometheus.DefaultRegisterer)
}

// InitWith registers metrics with reg. Only the first call has an effect.
func InitWith(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		specTableSize = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "spec_table_size",
				Help: "Number of concrete specs loaded by package",
			},
			[]string{"package"},
		)
		specLoadTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "spec_load_total",
				Help: "Total spec table loads by result",
			},
			[]string{"result"},
		)

		verificationTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "verification_total",
				Help: "Total verification runs by result",
			},
			[]string{"result"},
		)
		verificationLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "verification_latency_seconds",
				Help:    "Verification run latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		verdictTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "verdict_total",
				Help: "Total verdicts by spec and outcome",
			},
			[]string{"spec", "outcome"},
		)

		reportExportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_export_total",
				Help: "Total report exports by format and result",
			},
			[]string{"format", "result"},
		)
		reportExportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "report_export_latency_seconds",
				Help:    "Report export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		reg.MustRegister(
			specTableSize,
			specLoadTotal,
			verificationTotal,
			verificationLatency,
			verdictTotal,
			reportExportTotal,
			reportExportLatency,
		)
	})
}

// SetSpecTableSize records the number of specs loaded for a package.
func SetSpecTableSize(pkg string, size int) {
	if pkg == "" {
		pkg = "unknown"
	}
	if specTableSize != nil {
		specTableSize.WithLabelValues(pkg).Set(float64(size))
	}
}

// IncSpecLoad increments the spec load counter.
func IncSpecLoad(result string) {
	if result == "" {
		result = resultSuccess
	}
	if specLoadTotal != nil {
		specLoadTotal.WithLabelValues(result).Inc()
	}
}

// ObserveVerification records verification latency and result.
func ObserveVerification(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if verificationTotal != nil {
		verificationTotal.WithLabelValues(result).Inc()
	}
	if verificationLatency != nil {
		verificationLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncVerdict increments the verdict counter for a spec.
func IncVerdict(spec string, passed bool) {
	if spec == "" {
		spec = "unknown"
	}
	outcome := verdictFailed
	if passed {
		outcome = verdictPassed
	}
	if verdictTotal != nil {
		verdictTotal.WithLabelValues(spec, outcome).Inc()
	}
}

// ObserveReportExport records export latency and result.
func ObserveReportExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if reportExportTotal != nil {
		reportExportTotal.WithLabelValues(format, result).Inc()
	}
	if reportExportLatency != nil {
		reportExportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
