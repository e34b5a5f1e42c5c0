// Package metrics provides Prometheus metrics for the payslip archiver.
package metrics

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the payslip archiver.
type Metrics struct {
	// Per-record outcome counters
	RecordsProcessed prometheus.Counter
	RecordsFailed    *prometheus.CounterVec // labeled by failure stage
	RecordsSkipped   prometheus.Counter

	// Session metrics
	SessionsStarted   prometheus.Counter
	SessionsCompleted *prometheus.CounterVec // labeled by final status
	SessionSize       prometheus.Gauge

	// Timing metrics
	RenderDuration prometheus.Histogram
	StoreDuration  prometheus.Histogram

	// Ledger metrics
	LedgerSaveErrors prometheus.Counter
}

// Config holds metrics configuration.
type Config struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"` // e.g. ":9090"
}

// Init registers and returns the archiver's metrics. Call once at startup.
func Init(namespace string) *Metrics {
	if namespace == "" {
		namespace = "payslip_archiver"
	}

	return &Metrics{
		RecordsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_processed_total",
			Help:      "Total employee records rendered and archived",
		}),
		RecordsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_failed_total",
			Help:      "Total employee records that failed processing",
		}, []string{"stage"}),
		RecordsSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_skipped_total",
			Help:      "Total employee records skipped (already processed)",
		}),
		SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Total processing sessions started",
		}),
		SessionsCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_finished_total",
			Help:      "Total processing sessions finished",
		}, []string{"status"}),
		SessionSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_record_count",
			Help:      "Record count of the most recent session",
		}),
		RenderDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_duration_seconds",
			Help:      "Time to render one payslip document",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		}),
		StoreDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_duration_seconds",
			Help:      "Time to upload one artifact",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		LedgerSaveErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_save_errors_total",
			Help:      "Total failed ledger persistence attempts",
		}),
	}
}

// ObserveRender records one render duration.
func (m *Metrics) ObserveRender(d time.Duration) {
	if m == nil {
		return
	}
	m.RenderDuration.Observe(d.Seconds())
}

// ObserveStore records one upload duration.
func (m *Metrics) ObserveStore(d time.Duration) {
	if m == nil {
		return
	}
	m.StoreDuration.Observe(d.Seconds())
}

// Serve starts the metrics HTTP endpoint in a background goroutine.
func Serve(cfg Config, log *slog.Logger) {
	if !cfg.Enabled {
		return
	}
	addr := cfg.Address
	if addr == "" {
		addr = ":9090"
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		log.Info("metrics server listening", "address", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Error("metrics server stopped", "error", err)
		}
	}()
}
