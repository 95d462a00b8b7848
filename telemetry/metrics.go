// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	MessagesLogged     prometheus.Counter
	AppendFailures     prometheus.Counter
	ReportsSent        prometheus.Counter
	ReportSendFailures prometheus.Counter
	ArchiveFailures    prometheus.Counter
	DigestCycles       prometheus.Counter

	// Histograms (seconds)
	SendDuration prometheus.Observer

	// Gauges
	PendingReportsGauge prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		MessagesLogged = promauto.NewCounter(prometheus.CounterOpts{Name: "loggerd_messages_logged_total", Help: "Number of chat lines appended to day files"})
		AppendFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "loggerd_append_failures_total", Help: "Number of chat lines dropped because the append failed"})
		ReportsSent = promauto.NewCounter(prometheus.CounterOpts{Name: "loggerd_reports_sent_total", Help: "Number of daily reports emailed successfully"})
		ReportSendFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "loggerd_report_send_failures_total", Help: "Number of report email attempts that failed"})
		ArchiveFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "loggerd_archive_failures_total", Help: "Archive moves that failed after a confirmed send (alert on this)"})
		DigestCycles = promauto.NewCounter(prometheus.CounterOpts{Name: "loggerd_digest_cycles_total", Help: "Number of digest passes (digestOnce invocations)"})
		SendDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "loggerd_send_duration_seconds", Help: "Email send duration seconds", Buckets: prometheus.DefBuckets})
		PendingReportsGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "loggerd_pending_reports", Help: "Current number of due, unsent day files"})
	})
}

// SetPendingReports records the current number of due reports.
func SetPendingReports(n int) {
	if PendingReportsGauge != nil {
		PendingReportsGauge.Set(float64(n))
	}
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns the correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with a corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
