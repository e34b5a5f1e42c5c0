package source

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"

	"github.com/takefinance/payslip-archiver/internal/payroll"
)

const sampleCSV = `ID,Name,Base jan-mar,SLA,Bonus USD,Base periods,Location
1,Ada Lovelace,"3,000.50",0.908,150,3,Remote
2,Grace Hopper,2500,,,2,
,No Id Here,100,,,,
3,Alan Turing,1800.25,0.75,80,1,London
`

func TestParseRecordsCSV(t *testing.T) {
	records, v, err := parseRecords(strings.NewReader(sampleCSV), "payroll.csv")
	if err != nil {
		t.Fatalf("parseRecords: %v", err)
	}

	if v.TotalRows != 4 || v.RowsWithID != 3 {
		t.Errorf("validation rows = %d/%d, want 4 total, 3 with id", v.TotalRows, v.RowsWithID)
	}
	if len(records) != 3 {
		t.Fatalf("records = %d, want 3", len(records))
	}

	// Source order preserved.
	if records[0].ID != "1" || records[1].ID != "2" || records[2].ID != "3" {
		t.Errorf("order = %s,%s,%s", records[0].ID, records[1].ID, records[2].ID)
	}

	ada := records[0]
	if ada.Name != "Ada Lovelace" {
		t.Errorf("name = %q", ada.Name)
	}
	if ada.Base != 3000.5 {
		t.Errorf("base = %v, want 3000.5 (period-qualified column, thousands separator)", ada.Base)
	}
	if got := ada.Num(payroll.FieldSLA); got != 0.908 {
		t.Errorf("sla = %v, want 0.908", got)
	}
	if got := ada.Num(payroll.FieldBasePeriods); got != 3 {
		t.Errorf("base periods = %v, want 3", got)
	}
	if got := ada.Field("location").Str(); got != "Remote" {
		t.Errorf("location = %q", got)
	}

	// Blank cells are absent, not zero.
	grace := records[1]
	if f := grace.Field(payroll.FieldSLA); f.Kind != payroll.FieldAbsent {
		t.Errorf("blank sla parsed as %+v", f)
	}
}

func TestParseRecordsTSV(t *testing.T) {
	tsv := "id\tname\tbase\n10\tKatherine\t1234.5\n"
	records, _, err := parseRecords(strings.NewReader(tsv), "payroll.tsv")
	if err != nil {
		t.Fatalf("parseRecords tsv: %v", err)
	}
	if len(records) != 1 || records[0].Base != 1234.5 {
		t.Errorf("records = %+v", records)
	}
}

func TestParseRecordsGzip(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	gz.Write([]byte(sampleCSV))
	gz.Close()

	records, _, err := parseRecords(&buf, "payroll.csv.gz")
	if err != nil {
		t.Fatalf("parseRecords gz: %v", err)
	}
	if len(records) != 3 {
		t.Errorf("records = %d, want 3", len(records))
	}
}

func TestParseRecordsMissingColumns(t *testing.T) {
	csvData := "id,salary\n1,100\n"
	_, v, err := parseRecords(strings.NewReader(csvData), "bad.csv")
	if !errors.Is(err, ErrSourceFormat) {
		t.Fatalf("err = %v, want ErrSourceFormat", err)
	}
	want := []string{"name", "base"}
	if len(v.MissingCols) != len(want) {
		t.Fatalf("missing = %v, want %v", v.MissingCols, want)
	}
	for i, col := range want {
		if v.MissingCols[i] != col {
			t.Errorf("missing[%d] = %s, want %s", i, v.MissingCols[i], col)
		}
	}
}

func TestParseRecordsBasePeriodsIsNotBase(t *testing.T) {
	// "base periods" alone must not satisfy the base column requirement.
	csvData := "id,name,base periods\n1,A,3\n"
	_, _, err := parseRecords(strings.NewReader(csvData), "bad.csv")
	if !errors.Is(err, ErrSourceFormat) {
		t.Errorf("err = %v, want ErrSourceFormat", err)
	}
}

func TestParseRecordsNoUsableRows(t *testing.T) {
	csvData := "id,name,base\n,Anon,100\n"
	_, v, err := parseRecords(strings.NewReader(csvData), "empty.csv")
	if !errors.Is(err, ErrSourceFormat) {
		t.Fatalf("err = %v, want ErrSourceFormat", err)
	}
	if v.TotalRows != 1 || v.RowsWithID != 0 {
		t.Errorf("validation = %+v", v)
	}
}

func TestParseRecordsEmptyFile(t *testing.T) {
	_, _, err := parseRecords(strings.NewReader(""), "empty.csv")
	if !errors.Is(err, ErrSourceFormat) {
		t.Errorf("err = %v, want ErrSourceFormat", err)
	}
}

func TestLocalSourceFetch(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "payroll.csv"), []byte(sampleCSV), 0644); err != nil {
		t.Fatal(err)
	}

	src := NewLocalSource(dir, "")
	defer src.Close()

	records, v, err := src.Fetch(context.Background(), "payroll.csv")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(records) != 3 {
		t.Errorf("records = %d, want 3", len(records))
	}
	if v.SourceName != "payroll.csv" {
		t.Errorf("source name = %q", v.SourceName)
	}

	_, _, err = src.Fetch(context.Background(), "nope.csv")
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("missing file err = %v, want ErrSourceUnavailable", err)
	}
}

func TestPreview(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "payroll.csv"), []byte(sampleCSV), 0644); err != nil {
		t.Fatal(err)
	}
	src := NewLocalSource(dir, "")

	records, v, err := Preview(context.Background(), src, "payroll.csv", 2)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("preview records = %d, want 2", len(records))
	}
	if v.RowsWithID != 3 {
		t.Errorf("validation still covers full file: rows with id = %d", v.RowsWithID)
	}
}
