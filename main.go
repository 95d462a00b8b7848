// Command loggerd is the IRC channel logger and daily digest mailer.
// It:
//   - Loads configuration and initializes structured logging.
//   - Connects to Postgres and runs idempotent migrations (sent-report ledger).
//   - Starts background jobs: the IRC chat recorder appending messages to
//     per-channel day files, and the digest job that emails each completed
//     day's log via Mailgun and archives the file after confirmed delivery.
//   - Exposes a minimal HTTP server with /healthz, /readyz, /status, /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/onnwee/loggerd/chat"
	"github.com/onnwee/loggerd/config"
	"github.com/onnwee/loggerd/db"
	"github.com/onnwee/loggerd/logfile"
	"github.com/onnwee/loggerd/mailer"
	"github.com/onnwee/loggerd/report"
	"github.com/onnwee/loggerd/server"
	"github.com/onnwee/loggerd/telemetry"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))

	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	// Metrics / telemetry init
	telemetry.Init()

	// OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("loggerd", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	// Log and archive directories must exist before anything runs; this is the
	// only filesystem failure that terminates the process.
	store := logfile.NewStore(cfg.LogDir, cfg.SentLogsDir)
	if err := store.EnsureDirs(); err != nil {
		slog.Error("failed to create log directories", slog.Any("err", err))
		os.Exit(1)
	}

	// DB (sent-report ledger + job heartbeats)
	database, err := db.Connect(cfg.DBDsn)
	if err != nil {
		slog.Error("failed to open db", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if err := database.Close(); err != nil {
			slog.Error("failed to close database", slog.Any("err", err))
		}
	}()

	slog.Info("running database migrations", slog.String("component", "db_migrate"))
	if err := db.RunMigrations(database); err != nil {
		slog.Warn("versioned migrations failed, falling back to embedded SQL",
			slog.Any("err", err), slog.String("component", "db_migrate"))
		if err := db.Migrate(context.Background(), database); err != nil {
			slog.Error("failed to migrate db", slog.Any("err", err))
			os.Exit(1)
		}
	}

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Chat recorder: append incoming channel messages to today's day files.
	go chat.StartChatRecorder(ctx, store, cfg)

	// Digest job: email completed days and archive them. Without mail creds the
	// job stays off; pending files accumulate and are drained once configured.
	if err := cfg.ValidateMailReady(); err != nil {
		slog.Warn("digest job disabled", slog.Any("reason", err))
	} else {
		dispatcher := &report.Dispatcher{
			Store:       store,
			Mailer:      mailer.New(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.MailgunAPIBase, cfg.ToEmail, cfg.FromEmail),
			Ledger:      &db.SentLedger{DB: database},
			SendTimeout: cfg.SendTimeout,
		}
		go report.StartDigestJob(ctx, database, dispatcher, store, cfg.DigestInterval)
	}

	// HTTP server (health/status/metrics)
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	go func() {
		if err := server.Start(ctx, database, store, addr); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	// Block until shutdown signal
	<-ctx.Done()
	slog.Info("shutting down")
}
