package tracker

import (
	"errors"
	"testing"
	"time"

	"github.com/takefinance/payslip-archiver/internal/payroll"
)

// fakeClock returns a strictly increasing time source.
func fakeClock() func() time.Time {
	t := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func newTestTracker(t *testing.T) *Tracker {
	t.Helper()
	trk, err := New(NewMemoryStore(), WithClock(fakeClock()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return trk
}

func TestSessionLifecycle(t *testing.T) {
	trk := newTestTracker(t)

	id, err := trk.BeginSession("payroll.csv")
	if err != nil {
		t.Fatalf("BeginSession: %v", err)
	}
	if id == "" {
		t.Fatal("empty session id")
	}

	s, ok := trk.Session(id)
	if !ok {
		t.Fatal("session not found after begin")
	}
	if s.Status != payroll.SessionRunning {
		t.Errorf("status = %s, want %s", s.Status, payroll.SessionRunning)
	}

	if err := trk.EndSession(id, payroll.SessionCompleted, ""); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	s, _ = trk.Session(id)
	if s.Status != payroll.SessionCompleted {
		t.Errorf("status = %s, want completed", s.Status)
	}
	if s.FinishedAt.IsZero() {
		t.Error("finished_at not set")
	}
}

func TestSessionIDsUnique(t *testing.T) {
	// Frozen clock: every session starts in the same tick.
	frozen := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	trk, err := New(NewMemoryStore(), WithClock(func() time.Time { return frozen }))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id, err := trk.BeginSession("")
		if err != nil {
			t.Fatalf("BeginSession: %v", err)
		}
		if seen[id] {
			t.Fatalf("duplicate session id %s", id)
		}
		seen[id] = true
	}
}

func TestRecordOutcomeCounters(t *testing.T) {
	trk := newTestTracker(t)
	id, _ := trk.BeginSession("")
	trk.SetSessionMeta(id, "payroll.csv", 3)

	outcomes := []payroll.Outcome{
		{EmployeeID: "1", Kind: payroll.OutcomeProcessed, ArtifactRef: "file:///a.pdf"},
		{EmployeeID: "2", Kind: payroll.OutcomeFailed, ErrorDetail: "render exploded"},
		{EmployeeID: "3", Kind: payroll.OutcomeSkipped},
	}
	for _, o := range outcomes {
		if err := trk.RecordOutcome(id, o); err != nil {
			t.Fatalf("RecordOutcome(%s): %v", o.EmployeeID, err)
		}
	}

	s, _ := trk.Session(id)
	if s.Processed != 1 || s.Failed != 1 || s.Skipped != 1 {
		t.Errorf("counters = %d/%d/%d, want 1/1/1", s.Processed, s.Failed, s.Skipped)
	}
	if s.Processed+s.Failed+s.Skipped != s.Total {
		t.Errorf("counter sum %d != total %d", s.Processed+s.Failed+s.Skipped, s.Total)
	}
}

func TestRecordOutcomeLastWriteWins(t *testing.T) {
	trk := newTestTracker(t)
	id, _ := trk.BeginSession("")
	trk.SetSessionMeta(id, "", 1)

	// First attempt fails, retry succeeds; counters must reflect only the
	// final outcome.
	if err := trk.RecordOutcome(id, payroll.Outcome{
		EmployeeID: "7", Kind: payroll.OutcomeFailed, ErrorDetail: "store down",
	}); err != nil {
		t.Fatal(err)
	}
	if err := trk.RecordOutcome(id, payroll.Outcome{
		EmployeeID: "7", Kind: payroll.OutcomeProcessed, ArtifactRef: "file:///7.pdf",
	}); err != nil {
		t.Fatal(err)
	}

	s, _ := trk.Session(id)
	if s.Processed != 1 || s.Failed != 0 {
		t.Errorf("counters = processed %d failed %d, want 1/0", s.Processed, s.Failed)
	}
	o, ok := trk.History("7")
	if !ok || o.Kind != payroll.OutcomeProcessed {
		t.Errorf("history = %+v, want processed", o)
	}
}

func TestIsProcessed(t *testing.T) {
	trk := newTestTracker(t)
	id, _ := trk.BeginSession("")

	trk.RecordOutcome(id, payroll.Outcome{EmployeeID: "ok", Kind: payroll.OutcomeProcessed, ArtifactRef: "x"})
	trk.RecordOutcome(id, payroll.Outcome{EmployeeID: "bad", Kind: payroll.OutcomeFailed, ErrorDetail: "x"})
	trk.RecordOutcome(id, payroll.Outcome{EmployeeID: "skip", Kind: payroll.OutcomeSkipped})

	if !trk.IsProcessed("ok") {
		t.Error("processed employee not reported processed")
	}
	if trk.IsProcessed("bad") {
		t.Error("failed employee reported processed")
	}
	if trk.IsProcessed("skip") {
		t.Error("skipped employee reported processed")
	}
	if trk.IsProcessed("ghost") {
		t.Error("unknown employee reported processed")
	}
}

func TestSkippedKeepsProcessedEntry(t *testing.T) {
	trk := newTestTracker(t)

	first, _ := trk.BeginSession("")
	trk.RecordOutcome(first, payroll.Outcome{
		EmployeeID: "1", Kind: payroll.OutcomeProcessed, ArtifactRef: "file:///1.pdf",
	})
	trk.EndSession(first, payroll.SessionCompleted, "")

	// Re-runs skip the employee; the skip must not displace the processed
	// entry or its artifact reference.
	for i := 0; i < 2; i++ {
		id, _ := trk.BeginSession("")
		if err := trk.RecordOutcome(id, payroll.Outcome{
			EmployeeID: "1", Kind: payroll.OutcomeSkipped,
		}); err != nil {
			t.Fatal(err)
		}
		trk.EndSession(id, payroll.SessionCompleted, "")

		if !trk.IsProcessed("1") {
			t.Fatalf("employee no longer processed after %d skip(s)", i+1)
		}
		o, ok := trk.History("1")
		if !ok || o.Kind != payroll.OutcomeProcessed || o.ArtifactRef != "file:///1.pdf" {
			t.Fatalf("history after skip = %+v", o)
		}
		if o.SessionID != first {
			t.Errorf("history session = %s, want the producing session %s", o.SessionID, first)
		}

		s, _ := trk.Session(id)
		if s.Skipped != 1 || s.Processed != 0 {
			t.Errorf("skip session counters = %+v", s)
		}
	}
}

func TestForceReset(t *testing.T) {
	trk := newTestTracker(t)
	id, _ := trk.BeginSession("")
	trk.RecordOutcome(id, payroll.Outcome{EmployeeID: "1", Kind: payroll.OutcomeProcessed, ArtifactRef: "x"})

	if err := trk.ForceReset("1"); err != nil {
		t.Fatalf("ForceReset: %v", err)
	}
	if trk.IsProcessed("1") {
		t.Error("employee still processed after reset")
	}
	if _, ok := trk.History("1"); ok {
		t.Error("outcome still present after reset")
	}

	// Resetting an unknown employee is a no-op.
	if err := trk.ForceReset("ghost"); err != nil {
		t.Errorf("ForceReset unknown: %v", err)
	}
}

func TestFailedSessionKeepsCounterInvariant(t *testing.T) {
	trk := newTestTracker(t)
	id, _ := trk.BeginSession("")
	trk.SetSessionMeta(id, "", 10)
	trk.RecordOutcome(id, payroll.Outcome{EmployeeID: "1", Kind: payroll.OutcomeProcessed, ArtifactRef: "x"})
	trk.RecordOutcome(id, payroll.Outcome{EmployeeID: "2", Kind: payroll.OutcomeFailed, ErrorDetail: "x"})

	if err := trk.EndSession(id, payroll.SessionFailed, "canceled"); err != nil {
		t.Fatal(err)
	}
	s, _ := trk.Session(id)
	if s.Processed+s.Failed+s.Skipped != s.Total {
		t.Errorf("aborted session: sum %d != total %d",
			s.Processed+s.Failed+s.Skipped, s.Total)
	}
}

func TestUnknownSession(t *testing.T) {
	trk := newTestTracker(t)
	err := trk.RecordOutcome("nope", payroll.Outcome{EmployeeID: "1", Kind: payroll.OutcomeSkipped})
	if !errors.Is(err, ErrUnknownSession) {
		t.Errorf("err = %v, want ErrUnknownSession", err)
	}
	if err := trk.EndSession("nope", payroll.SessionCompleted, ""); !errors.Is(err, ErrUnknownSession) {
		t.Errorf("EndSession err = %v, want ErrUnknownSession", err)
	}
}

func TestStatistics(t *testing.T) {
	trk := newTestTracker(t)

	for i := 0; i < 7; i++ {
		id, _ := trk.BeginSession("")
		trk.EndSession(id, payroll.SessionCompleted, "")
	}
	id, _ := trk.BeginSession("")
	trk.RecordOutcome(id, payroll.Outcome{EmployeeID: "a", Kind: payroll.OutcomeProcessed, ArtifactRef: "x"})
	trk.RecordOutcome(id, payroll.Outcome{EmployeeID: "b", Kind: payroll.OutcomeFailed, ErrorDetail: "x"})

	stats := trk.Statistics()
	if stats.EmployeesTracked != 2 || stats.Succeeded != 1 || stats.Failed != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.TotalSessions != 8 {
		t.Errorf("total sessions = %d, want 8", stats.TotalSessions)
	}
	if len(stats.RecentSessions) != 5 {
		t.Fatalf("recent sessions = %d, want 5", len(stats.RecentSessions))
	}
	// Newest first.
	for i := 1; i < len(stats.RecentSessions); i++ {
		if stats.RecentSessions[i].StartedAt.After(stats.RecentSessions[i-1].StartedAt) {
			t.Error("recent sessions not sorted newest-first")
		}
	}
}

func TestCleanupSessions(t *testing.T) {
	clock := fakeClock()
	trk, err := New(NewMemoryStore(), WithClock(clock))
	if err != nil {
		t.Fatal(err)
	}

	old, _ := trk.BeginSession("")
	trk.EndSession(old, payroll.SessionCompleted, "")

	// Jump the clock far past the cutoff for the next session.
	for i := 0; i < 100; i++ {
		clock()
	}
	recent, _ := trk.BeginSession("")
	trk.EndSession(recent, payroll.SessionCompleted, "")

	removed, err := trk.CleanupSessions(90 * time.Second)
	if err != nil {
		t.Fatalf("CleanupSessions: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, ok := trk.Session(old); ok {
		t.Error("old session survived cleanup")
	}
	if _, ok := trk.Session(recent); !ok {
		t.Error("recent session removed by cleanup")
	}
}

func TestPersistsAfterEveryMutation(t *testing.T) {
	store := NewMemoryStore()
	trk, err := New(store, WithClock(fakeClock()))
	if err != nil {
		t.Fatal(err)
	}

	id, _ := trk.BeginSession("")
	trk.RecordOutcome(id, payroll.Outcome{EmployeeID: "1", Kind: payroll.OutcomeProcessed, ArtifactRef: "x"})
	trk.EndSession(id, payroll.SessionCompleted, "")

	if store.Saves() != 3 {
		t.Errorf("saves = %d, want 3", store.Saves())
	}

	// A fresh tracker over the same store sees the outcome.
	trk2, err := New(store)
	if err != nil {
		t.Fatal(err)
	}
	if !trk2.IsProcessed("1") {
		t.Error("outcome lost across tracker restart")
	}
}
