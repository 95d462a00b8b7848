package telemetry

import (
	"context"
	"testing"
)

func TestInitIdempotent(t *testing.T) {
	Init()
	Init() // second call must not re-register (promauto panics on duplicates)
	if MessagesLogged == nil || ReportsSent == nil || PendingReportsGauge == nil {
		t.Fatalf("metrics not registered after Init")
	}
}

func TestSetPendingReports(t *testing.T) {
	Init()
	// Must not panic for any value.
	SetPendingReports(0)
	SetPendingReports(42)
	SetPendingReports(-1)
}

func TestCorrelation(t *testing.T) {
	ctx := context.Background()
	if got := GetCorrelation(ctx); got != "" {
		t.Errorf("GetCorrelation(empty ctx) = %q, want empty", got)
	}
	ctx = WithCorrelation(ctx, "abc-123")
	if got := GetCorrelation(ctx); got != "abc-123" {
		t.Errorf("GetCorrelation() = %q, want abc-123", got)
	}
	logger := LoggerWithCorr(ctx)
	if logger == nil {
		t.Fatalf("LoggerWithCorr returned nil")
	}
}
