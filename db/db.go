// Package db provides database connection helpers, schema migration, and the
// sent-report ledger.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx postgres driver registered as 'pgx'
)

// Connect opens a Postgres connection. The DSN (and its local-dev default)
// comes from config so there is a single source for it.
func Connect(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}

// Migrate applies idempotent schema changes for all required tables and
// indices. It is the embedded fallback for deployments without the versioned
// migration files on disk.
func Migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sent_reports (
			channel TEXT NOT NULL,
			day TEXT NOT NULL,
			message_id TEXT,
			sent_at TIMESTAMPTZ DEFAULT NOW(),
			PRIMARY KEY (channel, day)
		)`,
		`CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value TEXT,
			updated_at TIMESTAMPTZ DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sent_reports_day ON sent_reports(day)`,
	}
	for i, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("migrate step %d failed: %w", i, err)
		}
	}
	return nil
}

// SentLedger implements report.Ledger on the sent_reports table. A row's
// existence means the email for that (channel, day) was accepted by the
// provider; the row is written after the send and before the archive move.
type SentLedger struct{ DB *sql.DB }

func (l *SentLedger) WasSent(ctx context.Context, channel, day string) (bool, error) {
	var exists bool
	err := l.DB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM sent_reports WHERE channel=$1 AND day=$2)`, channel, day).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query sent_reports: %w", err)
	}
	return exists, nil
}

func (l *SentLedger) MarkSent(ctx context.Context, channel, day, messageID string) error {
	_, err := l.DB.ExecContext(ctx,
		`INSERT INTO sent_reports (channel, day, message_id, sent_at) VALUES ($1,$2,$3,NOW())
		 ON CONFLICT (channel, day) DO UPDATE SET message_id=EXCLUDED.message_id, sent_at=NOW()`,
		channel, day, messageID)
	if err != nil {
		return fmt.Errorf("insert sent_reports: %w", err)
	}
	return nil
}

// SentReport is one ledger row, as exposed by the status endpoint.
type SentReport struct {
	Channel   string    `json:"channel"`
	Day       string    `json:"day"`
	MessageID string    `json:"message_id"`
	SentAt    time.Time `json:"sent_at"`
}

// RecentSent returns the most recently sent reports, newest first.
func RecentSent(ctx context.Context, dbc *sql.DB, limit int) ([]SentReport, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := dbc.QueryContext(ctx,
		`SELECT channel, day, COALESCE(message_id,''), sent_at FROM sent_reports ORDER BY sent_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent sent: %w", err)
	}
	defer rows.Close()
	var out []SentReport
	for rows.Next() {
		var r SentReport
		if err := rows.Scan(&r.Channel, &r.Day, &r.MessageID, &r.SentAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetKV returns a kv value or empty string when the key is absent.
func GetKV(ctx context.Context, dbc *sql.DB, key string) (string, error) {
	var v string
	err := dbc.QueryRowContext(ctx, `SELECT value FROM kv WHERE key=$1`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return v, nil
}
