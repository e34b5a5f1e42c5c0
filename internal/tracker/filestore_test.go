package tracker

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/takefinance/payslip-archiver/internal/payroll"
)

func TestFileStoreMissingFile(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "ledger.json"))
	if err != nil {
		t.Fatal(err)
	}
	l, err := store.Load()
	if err != nil {
		t.Fatalf("Load fresh: %v", err)
	}
	if len(l.Employees) != 0 || len(l.Sessions) != 0 {
		t.Errorf("fresh ledger not empty: %+v", l)
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	store, err := NewFileStore(path)
	if err != nil {
		t.Fatal(err)
	}

	l := NewLedger(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))
	l.Employees["42"] = payroll.Outcome{
		EmployeeID:  "42",
		Kind:        payroll.OutcomeProcessed,
		ArtifactRef: "file:///payslips/2026-08/Payroll_2026-08_42_Ada.pdf",
		SessionID:   "s1",
		Timestamp:   l.CreatedAt,
	}
	l.Sessions["s1"] = payroll.Session{
		ID: "s1", Status: payroll.SessionCompleted,
		Total: 1, Processed: 1, StartedAt: l.CreatedAt,
	}
	if err := store.Save(l); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	o, ok := got.Employees["42"]
	if !ok || o.Kind != payroll.OutcomeProcessed || o.ArtifactRef != l.Employees["42"].ArtifactRef {
		t.Errorf("employee outcome lost: %+v", o)
	}
	s, ok := got.Sessions["s1"]
	if !ok || s.Processed != 1 || s.Status != payroll.SessionCompleted {
		t.Errorf("session lost: %+v", s)
	}

	// Save must not leave a temp file behind.
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind after save")
	}
}

func TestFileStoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	store, err := NewFileStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Load(); !errors.Is(err, ErrCorruptLedger) {
		t.Errorf("Load corrupt: err = %v, want ErrCorruptLedger", err)
	}

	// The tracker surfaces the same error without touching the file.
	if _, err := New(store); !errors.Is(err, ErrCorruptLedger) {
		t.Errorf("New over corrupt store: err = %v, want ErrCorruptLedger", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "{not json" {
		t.Error("corrupt ledger file was modified")
	}
}

func TestFileStoreCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "ledger.json")
	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := store.Save(NewLedger(time.Now())); err != nil {
		t.Fatalf("Save into created dir: %v", err)
	}
}

func TestNewLedgerStoreSelection(t *testing.T) {
	dir := t.TempDir()

	store, err := NewLedgerStore(StoreConfig{Backend: "file", Path: filepath.Join(dir, "l.json")})
	if err != nil {
		t.Fatalf("file backend: %v", err)
	}
	if _, ok := store.(*FileStore); !ok {
		t.Errorf("backend file: got %T", store)
	}
	store.Close()

	if _, err := NewLedgerStore(StoreConfig{Backend: "bogus"}); err == nil {
		t.Error("unknown backend accepted")
	}
}
