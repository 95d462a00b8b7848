package report

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/onnwee/loggerd/logfile"
	"github.com/onnwee/loggerd/telemetry"
)

// Dispatcher turns one due report into a sent email plus an archived file.
type Dispatcher struct {
	Store       *logfile.Store
	Mailer      Mailer
	Ledger      Ledger // optional; nil falls back to archive-existence-only semantics
	SendTimeout time.Duration
}

func (d *Dispatcher) timeout() time.Duration {
	if d.SendTimeout > 0 {
		return d.SendTimeout
	}
	return 30 * time.Second
}

// Dispatch sends the report and archives its file. The ordering is the whole
// contract: nothing is written anywhere until the provider confirms the send,
// and the archive rename is the final commit. A failure before the send leaves
// the file untouched for the next tick; a failure after the send is recorded
// in the ledger so the next tick retries only the rename, not the email.
func (d *Dispatcher) Dispatch(ctx context.Context, rep Report) error {
	logger := slog.Default().With(
		slog.String("channel", rep.Channel),
		slog.String("day", rep.Day),
		slog.String("component", "report_dispatch"),
	)

	sent := false
	if d.Ledger != nil {
		var err error
		sent, err = d.Ledger.WasSent(ctx, rep.Channel, rep.Day)
		if err != nil {
			return fmt.Errorf("ledger lookup: %w", err)
		}
	}

	if sent {
		// Crash between send and archive on an earlier run; finish the move only.
		logger.Warn("report already recorded as sent; archiving without resending")
	} else {
		body, err := os.ReadFile(rep.Path)
		if err != nil {
			return fmt.Errorf("read log file: %w", err)
		}
		subject := fmt.Sprintf("IRC log for %s on %s", rep.Channel, rep.Day)
		sctx, cancel := context.WithTimeout(ctx, d.timeout())
		start := time.Now()
		id, err := d.Mailer.Send(sctx, subject, string(body))
		cancel()
		telemetry.SendDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			telemetry.ReportSendFailures.Inc()
			return fmt.Errorf("send report: %w", err)
		}
		telemetry.ReportsSent.Inc()
		logger.Info("report emailed", slog.String("message_id", id), slog.Int("bytes", len(body)))
		if d.Ledger != nil {
			if err := d.Ledger.MarkSent(ctx, rep.Channel, rep.Day, id); err != nil {
				// The archive move below still marks the send; a missing ledger row
				// only costs exactly-once if we crash before the rename lands.
				logger.Error("ledger mark failed after confirmed send", slog.Any("err", err))
			}
		}
	}

	if err := d.Store.Archive(rep.Channel, rep.Day); err != nil {
		telemetry.ArchiveFailures.Inc()
		// The one failure mode that risks a duplicate send (ledger absent or
		// also failing). Surface loudly; the file stays pending.
		logger.Error("archive move failed after confirmed send", slog.Any("err", err))
		return fmt.Errorf("archive %s %s: %w", rep.Channel, rep.Day, err)
	}
	logger.Info("report archived", slog.String("path", d.Store.ArchivePath(rep.Channel, rep.Day)))
	return nil
}
