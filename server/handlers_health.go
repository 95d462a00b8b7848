package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/onnwee/loggerd/db"
)

// HandleHealthz responds to liveness probe requests by checking database connectivity.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := h.db.PingContext(r.Context()); err != nil {
		http.Error(w, "unhealthy", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// heartbeatCutoff is how old the digest heartbeat may get before /readyz flips.
// Ten missed ticks of the configured interval, never tighter than ten minutes.
func heartbeatCutoff() time.Duration {
	interval := time.Minute
	if v := os.Getenv("DIGEST_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			interval = d
		}
	}
	cutoff := 10 * interval
	if cutoff < 10*time.Minute {
		cutoff = 10 * time.Minute
	}
	return cutoff
}

// HandleReadyz responds to readiness probe requests with detailed system checks.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"database", func() error { return h.db.PingContext(r.Context()) }},
		{"log_dirs", func() error {
			for _, dir := range []string{h.store.LogDir, h.store.SentDir} {
				if info, err := os.Stat(dir); err != nil || !info.IsDir() {
					return fmt.Errorf("missing directory %s", dir)
				}
			}
			return nil
		}},
		{"digest_heartbeat", func() error {
			last, err := db.GetKV(r.Context(), h.db, "job_digest_last")
			if err != nil {
				return err
			}
			if last == "" {
				return fmt.Errorf("digest job has not run yet")
			}
			t, err := time.Parse(time.RFC3339, last)
			if err != nil {
				return fmt.Errorf("unparseable heartbeat %q", last)
			}
			if cutoff := heartbeatCutoff(); time.Since(t) > cutoff {
				return fmt.Errorf("digest heartbeat stale since %s (cutoff %s)", last, cutoff)
			}
			return nil
		}},
		{"mail_config", func() error {
			if os.Getenv("MAILGUN_API_KEY") == "" || os.Getenv("MAILGUN_DOMAIN") == "" {
				return fmt.Errorf("mailgun credentials not configured")
			}
			return nil
		}},
	}

	for _, check := range checks {
		if err := check.fn(); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"status":       "not_ready",
				"failed_check": check.name,
				"error":        err.Error(),
			})
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}
