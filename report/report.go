// Package report implements the daily digest pipeline: finding day files that
// are due, emailing their content, and archiving them once delivery is
// confirmed. The filesystem is the source of truth; the Postgres ledger only
// upgrades the crash-after-send window from at-least-once to exactly-once.
package report

import (
	"context"
	"time"

	"github.com/onnwee/loggerd/logfile"
)

// Report identifies one due (channel, day) file. It is recomputed from
// directory contents on every tick and never persisted.
type Report struct {
	Channel string
	Day     string // logfile.DayFormat, lexically ordered
	Path    string
}

// Mailer sends one digest email and returns the provider message id.
type Mailer interface {
	Send(ctx context.Context, subject, body string) (string, error)
}

// Ledger records confirmed sends. Implementations must treat (channel, day) as
// the identity key.
type Ledger interface {
	WasSent(ctx context.Context, channel, day string) (bool, error)
	MarkSent(ctx context.Context, channel, day, messageID string) error
}

// FindDue scans the log dir and returns every file whose date is strictly
// before today (in now's location) and which has not been archived yet. A
// zero-byte file still counts: a silent day produces an empty report rather
// than no report.
func FindDue(store *logfile.Store, now time.Time) ([]Report, error) {
	today := now.Format(logfile.DayFormat)
	channels, err := store.Channels()
	if err != nil {
		return nil, err
	}
	var due []Report
	for _, ch := range channels {
		days, err := store.Days(ch)
		if err != nil {
			return nil, err
		}
		for _, day := range days {
			// ISO dates compare lexically, so this is a calendar comparison.
			if day >= today {
				continue
			}
			if store.Archived(ch, day) {
				continue
			}
			due = append(due, Report{Channel: ch, Day: day, Path: store.DayPath(ch, day)})
		}
	}
	return due, nil
}
