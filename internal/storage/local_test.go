package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var august = time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC)

func TestArtifactKey(t *testing.T) {
	tests := []struct {
		name   string
		ref    ArtifactRef
		prefix string
		want   string
	}{
		{
			name: "payslip",
			ref: ArtifactRef{
				EmployeeID: "42", EmployeeName: "Ada Lovelace", Date: august,
			},
			prefix: "payslips/",
			want:   "payslips/2026-08/Payroll_2026-08_42_Ada Lovelace.pdf",
		},
		{
			name: "payslip name sanitized",
			ref: ArtifactRef{
				EmployeeID: "7", EmployeeName: `O'Brien, Jr. <QA>`, Date: august,
			},
			prefix: "",
			want:   "2026-08/Payroll_2026-08_7_OBrien Jr QA.pdf",
		},
		{
			name: "report",
			ref: ArtifactRef{
				Kind: "report", Date: august,
				FileName: "payroll_processing_report_20260815_100000.csv",
			},
			prefix: "payslips/",
			want:   "payslips/reports/2026-08/payroll_processing_report_20260815_100000.csv",
		},
		{
			name: "explicit file name",
			ref: ArtifactRef{
				EmployeeID: "1", Date: august, FileName: "custom.pdf",
			},
			prefix: "",
			want:   "2026-08/custom.pdf",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ref.Key(tt.prefix); got != tt.want {
				t.Errorf("Key() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSafeName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Ada Lovelace", "Ada Lovelace"},
		{"José García", "José García"},
		{"a/b\\c:d", "abcd"},
		{"  padded  ", "padded"},
		{"under_score-dash", "under_score-dash"},
	}
	for _, tt := range tests {
		if got := safeName(tt.in); got != tt.want {
			t.Errorf("safeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLocalStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, "payslips/")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	ref := ArtifactRef{EmployeeID: "42", EmployeeName: "Ada", Date: august}
	ctx := context.Background()

	exists, err := store.Exists(ctx, ref)
	if err != nil || exists {
		t.Fatalf("Exists before store = %v, %v", exists, err)
	}

	uri, err := store.Store(ctx, []byte("%PDF-1.3 test"), ref)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if !strings.HasPrefix(uri, "file://") {
		t.Errorf("uri = %q, want file:// scheme", uri)
	}

	path := filepath.Join(dir, "payslips", "2026-08", "Payroll_2026-08_42_Ada.pdf")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("artifact not at expected path: %v", err)
	}
	if string(data) != "%PDF-1.3 test" {
		t.Errorf("content = %q", data)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}

	exists, err = store.Exists(ctx, ref)
	if err != nil || !exists {
		t.Errorf("Exists after store = %v, %v", exists, err)
	}
}

func TestLocalStoreOverwrite(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "")
	if err != nil {
		t.Fatal(err)
	}
	ref := ArtifactRef{EmployeeID: "1", EmployeeName: "A", Date: august}
	ctx := context.Background()

	if _, err := store.Store(ctx, []byte("v1"), ref); err != nil {
		t.Fatal(err)
	}
	uri, err := store.Store(ctx, []byte("v2"), ref)
	if err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	data, err := os.ReadFile(strings.TrimPrefix(uri, "file://"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "v2" {
		t.Errorf("content after overwrite = %q, want v2", data)
	}
}

func TestNewArtifactStoreValidation(t *testing.T) {
	if _, err := NewArtifactStore(Config{Backend: "local"}); err == nil {
		t.Error("local backend without dir accepted")
	}
	if _, err := NewArtifactStore(Config{Backend: "gcs"}); err == nil {
		t.Error("gcs backend without bucket accepted")
	}
	if _, err := NewArtifactStore(Config{Backend: "s3"}); err == nil {
		t.Error("s3 backend without bucket accepted")
	}
	if _, err := NewArtifactStore(Config{Backend: "ftp"}); err == nil {
		t.Error("unknown backend accepted")
	}
}
