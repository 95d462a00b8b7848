// Package logfile owns the on-disk layout of channel logs: active day files under
// the log dir, archived files under the sent dir. Filenames are ISO dates so a
// plain string comparison gives calendar order and the filename itself is the
// identity key for a (channel, day) report.
package logfile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DayFormat is the date layout used in filenames and ledger keys.
const DayFormat = "2006-01-02"

const lineTimeFormat = "2006-01-02 15:04:05"

// Store binds the active log directory and the sent archive directory.
// The receive path only ever appends to today's files; the digest job only
// ever moves files dated strictly before today, so the two sides never touch
// the same file.
type Store struct {
	LogDir  string
	SentDir string
}

func NewStore(logDir, sentDir string) *Store {
	return &Store{LogDir: logDir, SentDir: sentDir}
}

// EnsureDirs creates the log and sent directories. Failure here is the one
// startup error the process is allowed to die on.
func (s *Store) EnsureDirs() error {
	if err := os.MkdirAll(s.LogDir, 0o755); err != nil {
		return fmt.Errorf("mkdir log dir: %w", err)
	}
	if err := os.MkdirAll(s.SentDir, 0o755); err != nil {
		return fmt.Errorf("mkdir sent dir: %w", err)
	}
	return nil
}

// DayPath returns the active file path for a (channel, day) pair.
func (s *Store) DayPath(channel, day string) string {
	return filepath.Join(s.LogDir, sanitizeChannel(channel), day+".log")
}

// ArchivePath returns where the file for a (channel, day) pair lives once sent.
func (s *Store) ArchivePath(channel, day string) string {
	return filepath.Join(s.SentDir, sanitizeChannel(channel), day+".log")
}

// Append writes one formatted chat line to the day file selected by ts,
// creating the channel directory and the file on first use. The file is opened
// and closed per line so content is on disk before the next digest tick.
func (s *Store) Append(channel, sender, message string, ts time.Time) error {
	day := ts.Format(DayFormat)
	dir := filepath.Join(s.LogDir, sanitizeChannel(channel))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir channel dir: %w", err)
	}
	f, err := os.OpenFile(s.DayPath(channel, day), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open day file: %w", err)
	}
	line := fmt.Sprintf("[%s] <%s> %s\n", ts.Format(lineTimeFormat), sender, message)
	_, werr := f.WriteString(line)
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return fmt.Errorf("append to %s: %w", s.DayPath(channel, day), werr)
	}
	return nil
}

// Archive moves the day file from the log dir to the sent dir in a single
// rename. The rename is the commit point of "sent": its target existing is what
// keeps the file from ever being selected again.
func (s *Store) Archive(channel, day string) error {
	if err := os.MkdirAll(filepath.Join(s.SentDir, sanitizeChannel(channel)), 0o755); err != nil {
		return fmt.Errorf("mkdir archive channel dir: %w", err)
	}
	if err := os.Rename(s.DayPath(channel, day), s.ArchivePath(channel, day)); err != nil {
		return fmt.Errorf("rename to archive: %w", err)
	}
	return nil
}

// Archived reports whether a (channel, day) file already exists in the sent dir.
func (s *Store) Archived(channel, day string) bool {
	_, err := os.Stat(s.ArchivePath(channel, day))
	return err == nil
}

// Channels lists the channel subdirectories present in the log dir.
func (s *Store) Channels() ([]string, error) {
	entries, err := os.ReadDir(s.LogDir)
	if err != nil {
		return nil, fmt.Errorf("read log dir: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	return out, nil
}

// Days lists the day strings for which a channel has an active log file.
func (s *Store) Days(channel string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.LogDir, sanitizeChannel(channel)))
	if err != nil {
		return nil, fmt.Errorf("read channel dir: %w", err)
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".log") {
			continue
		}
		day := strings.TrimSuffix(name, ".log")
		if _, err := time.Parse(DayFormat, day); err != nil {
			slog.Debug("skipping file without a day name", slog.String("channel", channel), slog.String("file", name))
			continue
		}
		out = append(out, day)
	}
	return out, nil
}

// sanitizeChannel keeps IRC channel names (including the leading '#') usable as
// a single path element.
func sanitizeChannel(channel string) string {
	channel = strings.ReplaceAll(channel, "/", "_")
	return strings.ReplaceAll(channel, string(os.PathSeparator), "_")
}
