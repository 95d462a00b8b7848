package report

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"
)

type fakeMailer struct {
	sent []struct{ subject, body string }
	err  error
}

func (f *fakeMailer) Send(ctx context.Context, subject, body string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, struct{ subject, body string }{subject, body})
	return fmt.Sprintf("<msg-%d@test>", len(f.sent)), nil
}

type memLedger struct {
	rows    map[string]string
	markErr error
	wasErr  error
}

func newMemLedger() *memLedger { return &memLedger{rows: map[string]string{}} }

func (l *memLedger) WasSent(ctx context.Context, channel, day string) (bool, error) {
	if l.wasErr != nil {
		return false, l.wasErr
	}
	_, ok := l.rows[channel+"|"+day]
	return ok, nil
}

func (l *memLedger) MarkSent(ctx context.Context, channel, day, messageID string) error {
	if l.markErr != nil {
		return l.markErr
	}
	l.rows[channel+"|"+day] = messageID
	return nil
}

func TestDispatchSendsAndArchives(t *testing.T) {
	s := newTestStore(t)
	writeDayFile(t, s, "#ops", "2024-01-10", "hello\nworld\n")
	m := &fakeMailer{}
	l := newMemLedger()
	d := &Dispatcher{Store: s, Mailer: m, Ledger: l}

	rep := Report{Channel: "#ops", Day: "2024-01-10", Path: s.DayPath("#ops", "2024-01-10")}
	if err := d.Dispatch(context.Background(), rep); err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}
	if len(m.sent) != 1 {
		t.Fatalf("sent %d emails, want 1", len(m.sent))
	}
	if m.sent[0].body != "hello\nworld\n" {
		t.Errorf("email body = %q, want file content", m.sent[0].body)
	}
	if m.sent[0].subject != "IRC log for #ops on 2024-01-10" {
		t.Errorf("subject = %q", m.sent[0].subject)
	}
	if _, err := os.Stat(s.DayPath("#ops", "2024-01-10")); !os.IsNotExist(err) {
		t.Errorf("day file still in log dir after dispatch")
	}
	if !s.Archived("#ops", "2024-01-10") {
		t.Errorf("day file missing from sent dir after dispatch")
	}
	if id := l.rows["#ops|2024-01-10"]; id == "" {
		t.Errorf("ledger row missing after dispatch")
	}
}

func TestDispatchSendFailureLeavesFilePending(t *testing.T) {
	s := newTestStore(t)
	writeDayFile(t, s, "#ops", "2024-01-10", "hello\n")
	m := &fakeMailer{err: errors.New("provider unavailable")}
	d := &Dispatcher{Store: s, Mailer: m, Ledger: newMemLedger()}

	rep := Report{Channel: "#ops", Day: "2024-01-10", Path: s.DayPath("#ops", "2024-01-10")}
	if err := d.Dispatch(context.Background(), rep); err == nil {
		t.Fatalf("expected error from failed send")
	}
	if _, err := os.Stat(rep.Path); err != nil {
		t.Errorf("day file should remain untouched after failed send: %v", err)
	}
	if s.Archived("#ops", "2024-01-10") {
		t.Errorf("file must not be archived on failed send")
	}
	// Still due on the next pass.
	due, err := FindDue(s, time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 1 {
		t.Errorf("expected file still due after failed send, got %+v", due)
	}
}

func TestDispatchIdempotentAcrossTicks(t *testing.T) {
	s := newTestStore(t)
	writeDayFile(t, s, "#ops", "2024-01-10", "hello\n")
	m := &fakeMailer{}
	d := &Dispatcher{Store: s, Mailer: m, Ledger: newMemLedger()}
	now := time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC)

	due, err := FindDue(s, now)
	if err != nil || len(due) != 1 {
		t.Fatalf("FindDue() = %v, %v", due, err)
	}
	if err := d.Dispatch(context.Background(), due[0]); err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}
	// Second tick: the archive removed it from due status, so nothing runs.
	due, err = FindDue(s, now)
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 0 {
		t.Errorf("second tick found %+v due, want none", due)
	}
	if len(m.sent) != 1 {
		t.Errorf("sent %d emails across two ticks, want 1", len(m.sent))
	}
}

func TestDispatchLedgerHitSkipsResend(t *testing.T) {
	// Crash-after-send recovery: ledger has the row, file is still pending.
	// The dispatcher must archive without emailing again.
	s := newTestStore(t)
	writeDayFile(t, s, "#ops", "2024-01-10", "hello\n")
	m := &fakeMailer{}
	l := newMemLedger()
	l.rows["#ops|2024-01-10"] = "<already-sent@test>"
	d := &Dispatcher{Store: s, Mailer: m, Ledger: l}

	rep := Report{Channel: "#ops", Day: "2024-01-10", Path: s.DayPath("#ops", "2024-01-10")}
	if err := d.Dispatch(context.Background(), rep); err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}
	if len(m.sent) != 0 {
		t.Errorf("sent %d emails for an already-recorded report, want 0", len(m.sent))
	}
	if !s.Archived("#ops", "2024-01-10") {
		t.Errorf("expected file archived on ledger hit")
	}
}

func TestDispatchLedgerMarkFailureStillArchives(t *testing.T) {
	s := newTestStore(t)
	writeDayFile(t, s, "#ops", "2024-01-10", "hello\n")
	m := &fakeMailer{}
	l := newMemLedger()
	l.markErr = errors.New("ledger down")
	d := &Dispatcher{Store: s, Mailer: m, Ledger: l}

	rep := Report{Channel: "#ops", Day: "2024-01-10", Path: s.DayPath("#ops", "2024-01-10")}
	if err := d.Dispatch(context.Background(), rep); err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}
	if len(m.sent) != 1 {
		t.Errorf("sent %d emails, want 1", len(m.sent))
	}
	if !s.Archived("#ops", "2024-01-10") {
		t.Errorf("archive must proceed even when the ledger write fails")
	}
}

func TestDispatchWithoutLedger(t *testing.T) {
	s := newTestStore(t)
	writeDayFile(t, s, "#ops", "2024-01-10", "hello\n")
	m := &fakeMailer{}
	d := &Dispatcher{Store: s, Mailer: m}

	rep := Report{Channel: "#ops", Day: "2024-01-10", Path: s.DayPath("#ops", "2024-01-10")}
	if err := d.Dispatch(context.Background(), rep); err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}
	if len(m.sent) != 1 || !s.Archived("#ops", "2024-01-10") {
		t.Errorf("nil ledger path must still send and archive")
	}
}

func TestDispatchEmptyFileSendsEmptyReport(t *testing.T) {
	s := newTestStore(t)
	writeDayFile(t, s, "#quiet", "2024-01-10", "")
	m := &fakeMailer{}
	d := &Dispatcher{Store: s, Mailer: m, Ledger: newMemLedger()}

	rep := Report{Channel: "#quiet", Day: "2024-01-10", Path: s.DayPath("#quiet", "2024-01-10")}
	if err := d.Dispatch(context.Background(), rep); err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}
	if len(m.sent) != 1 || m.sent[0].body != "" {
		t.Errorf("expected one empty-bodied email, got %+v", m.sent)
	}
}

func TestDigestOncePass(t *testing.T) {
	s := newTestStore(t)
	writeDayFile(t, s, "#ops", "2000-01-10", "a\n")
	writeDayFile(t, s, "#dev", "2000-01-10", "b\n")
	m := &fakeMailer{}
	d := &Dispatcher{Store: s, Mailer: m, Ledger: newMemLedger()}

	if err := digestOnce(context.Background(), nil, d, s); err != nil {
		t.Fatalf("digestOnce() error: %v", err)
	}
	if len(m.sent) != 2 {
		t.Errorf("sent %d emails, want 2", len(m.sent))
	}
	if !s.Archived("#ops", "2000-01-10") || !s.Archived("#dev", "2000-01-10") {
		t.Errorf("expected both files archived after digest pass")
	}
}

func TestDigestOnceContinuesPastFailures(t *testing.T) {
	// A failing send leaves its file pending but must not block other reports.
	s := newTestStore(t)
	writeDayFile(t, s, "#ops", "2000-01-10", "a\n")
	writeDayFile(t, s, "#ops", "2000-01-11", "b\n")
	m := &flakyMailer{failFirst: true}
	d := &Dispatcher{Store: s, Mailer: m, Ledger: newMemLedger()}

	if err := digestOnce(context.Background(), nil, d, s); err != nil {
		t.Fatalf("digestOnce() error: %v", err)
	}
	if m.calls != 2 {
		t.Errorf("mailer called %d times, want 2", m.calls)
	}
	archived := 0
	for _, day := range []string{"2000-01-10", "2000-01-11"} {
		if s.Archived("#ops", day) {
			archived++
		}
	}
	if archived != 1 {
		t.Errorf("archived %d files, want exactly the successful one", archived)
	}
}

// deletingMailer confirms the send but removes the day file first, so the
// archive rename that follows has nothing to move.
type deletingMailer struct {
	path  string
	calls int
}

func (m *deletingMailer) Send(ctx context.Context, subject, body string) (string, error) {
	m.calls++
	if err := os.Remove(m.path); err != nil {
		return "", err
	}
	return "<confirmed@test>", nil
}

func TestDispatchArchiveFailureKeepsLedgerAndRetriesRenameOnly(t *testing.T) {
	s := newTestStore(t)
	writeDayFile(t, s, "#ops", "2024-01-10", "hello\n")
	rep := Report{Channel: "#ops", Day: "2024-01-10", Path: s.DayPath("#ops", "2024-01-10")}
	m := &deletingMailer{path: rep.Path}
	l := newMemLedger()
	d := &Dispatcher{Store: s, Mailer: m, Ledger: l}

	// The email goes out but the file vanishes before the rename: Dispatch must
	// surface the failed move, and the ledger must keep the confirmed send.
	if err := d.Dispatch(context.Background(), rep); err == nil {
		t.Fatalf("expected error from failed archive move")
	}
	if id := l.rows["#ops|2024-01-10"]; id == "" {
		t.Fatalf("ledger row must survive a failed archive move")
	}
	if s.Archived("#ops", "2024-01-10") {
		t.Fatalf("file must not appear archived after a failed rename")
	}

	// Once the file is back, the next pass must finish only the rename: the
	// ledger row stops a second email.
	writeDayFile(t, s, "#ops", "2024-01-10", "hello\n")
	if err := d.Dispatch(context.Background(), rep); err != nil {
		t.Fatalf("Dispatch() retry error: %v", err)
	}
	if m.calls != 1 {
		t.Errorf("mailer called %d times across both passes, want 1", m.calls)
	}
	if !s.Archived("#ops", "2024-01-10") {
		t.Errorf("retry must archive the file")
	}
}

type flakyMailer struct {
	calls     int
	failFirst bool
}

func (f *flakyMailer) Send(ctx context.Context, subject, body string) (string, error) {
	f.calls++
	if f.failFirst && f.calls == 1 {
		return "", errors.New("transient failure")
	}
	return "<ok@test>", nil
}
