package report

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/onnwee/loggerd/logfile"
	"github.com/onnwee/loggerd/telemetry"
)

// StartDigestJob runs the digest loop: an immediate catch-up pass at boot,
// then one pass per tick. A single goroutine consumes the ticker, so a slow
// email send delays the next pass instead of overlapping it; that serialization
// is what keeps the at-most-once-archived invariant cheap.
func StartDigestJob(ctx context.Context, dbc *sql.DB, d *Dispatcher, store *logfile.Store, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	slog.Info("digest job starting", slog.Duration("interval", interval))
	if err := digestOnce(ctx, dbc, d, store); err != nil {
		slog.Warn("digest pass failed", slog.Any("err", err))
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("digest job stopped")
			return
		case <-ticker.C:
			if err := digestOnce(ctx, dbc, d, store); err != nil {
				slog.Warn("digest pass failed", slog.Any("err", err))
			}
		}
	}
}

// digestOnce performs one scan-and-dispatch pass. Per-report failures are
// logged and left for the next tick; only a failed directory scan aborts the
// pass.
func digestOnce(ctx context.Context, dbc *sql.DB, d *Dispatcher, store *logfile.Store) error {
	telemetry.DigestCycles.Inc()
	if dbc != nil {
		_, _ = dbc.ExecContext(ctx, `INSERT INTO kv (key,value,updated_at) VALUES ('job_digest_last', to_char(NOW() AT TIME ZONE 'UTC','YYYY-MM-DD"T"HH24:MI:SS.MS"Z"'), NOW())
			ON CONFLICT(key) DO UPDATE SET value=EXCLUDED.value, updated_at=NOW()`)
	}
	due, err := FindDue(store, time.Now())
	if err != nil {
		return err
	}
	telemetry.SetPendingReports(len(due))
	if len(due) == 0 {
		slog.Debug("no reports due", slog.String("component", "digest"))
		return nil
	}
	slog.Info("reports due", slog.Int("count", len(due)), slog.String("component", "digest"))
	done := 0
	for _, rep := range due {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := d.Dispatch(ctx, rep); err != nil {
			slog.Warn("dispatch failed; will retry next tick",
				slog.String("channel", rep.Channel),
				slog.String("day", rep.Day),
				slog.Any("err", err))
			continue
		}
		done++
	}
	telemetry.SetPendingReports(len(due) - done)
	return nil
}
