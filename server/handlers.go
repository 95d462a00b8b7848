package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/onnwee/loggerd/db"
	"github.com/onnwee/loggerd/logfile"
	"github.com/onnwee/loggerd/report"
)

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	db    *sql.DB
	store *logfile.Store
	ctx   context.Context
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(ctx context.Context, dbc *sql.DB, store *logfile.Store) *Handlers {
	return &Handlers{db: dbc, store: store, ctx: ctx}
}

// HandleStatus reports the digest pipeline state: how many day files are due,
// when the last digest pass ran, and the most recently sent reports.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()
	resp := map[string]any{}

	due, err := report.FindDue(h.store, time.Now())
	if err != nil {
		slog.Warn("status: scan for due reports failed", slog.Any("err", err))
	} else {
		resp["pending"] = len(due)
		if len(due) > 0 {
			type pendingReport struct {
				Channel string `json:"channel"`
				Day     string `json:"day"`
			}
			items := make([]pendingReport, 0, len(due))
			for _, d := range due {
				items = append(items, pendingReport{Channel: d.Channel, Day: d.Day})
			}
			resp["pending_reports"] = items
		}
	}

	if last, err := db.GetKV(ctx, h.db, "job_digest_last"); err == nil && last != "" {
		resp["last_digest_run"] = last
	}
	if recent, err := db.RecentSent(ctx, h.db, 20); err == nil && len(recent) > 0 {
		resp["recent_sent"] = recent
	}

	resp["log_dir"] = h.store.LogDir
	resp["sent_logs_dir"] = h.store.SentDir
	resp["digest_interval"] = os.Getenv("DIGEST_INTERVAL")

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
