// Package source reads employee payroll records from spreadsheet exports.
// Supported inputs are CSV and TSV files (optionally gzipped) and xlsx
// workbooks, either on the local filesystem or in a blob bucket.
package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/takefinance/payslip-archiver/internal/payroll"
)

var (
	// ErrSourceUnavailable means the source could not be reached or read.
	ErrSourceUnavailable = errors.New("record source unavailable")

	// ErrSourceFormat means the source was readable but structurally
	// invalid (missing columns, no usable rows). The batch must not start.
	ErrSourceFormat = errors.New("record source format invalid")
)

// Validation reports what ingestion found in the source file. Rows without
// an ID are excluded from the batch and surface here, not as outcomes.
type Validation struct {
	SourceName  string
	TotalRows   int
	RowsWithID  int
	Columns     []string
	MissingCols []string
}

// RecordSource fetches an ordered batch of employee records.
type RecordSource interface {
	// Fetch reads, validates and parses the referenced file. The returned
	// records preserve source order.
	Fetch(ctx context.Context, ref string) ([]payroll.EmployeeRecord, *Validation, error)

	// Close releases any resources.
	Close() error
}

// Config selects and configures the record source backend.
type Config struct {
	Mode      string `yaml:"mode"`       // "local" | "blob"
	LocalDir  string `yaml:"local_dir"`  // base directory for local refs
	BucketURL string `yaml:"bucket_url"` // e.g. "file:///data", "gs://bucket", "s3://bucket?region=us-east-1"
	Sheet     string `yaml:"sheet"`      // workbook sheet name; empty = first sheet
}

// NewRecordSource constructs a record source based on the configured mode.
func NewRecordSource(cfg Config) (RecordSource, error) {
	switch cfg.Mode {
	case "", "local":
		return NewLocalSource(cfg.LocalDir, cfg.Sheet), nil
	case "blob":
		if cfg.BucketURL == "" {
			return nil, fmt.Errorf("bucket_url required for blob source")
		}
		return NewBlobSource(cfg.BucketURL, cfg.Sheet)
	default:
		return nil, fmt.Errorf("unknown source mode: %s", cfg.Mode)
	}
}

// Preview fetches the referenced file and returns at most n records, for
// inspection before a real run.
func Preview(ctx context.Context, src RecordSource, ref string, n int) ([]payroll.EmployeeRecord, *Validation, error) {
	records, v, err := src.Fetch(ctx, ref)
	if err != nil {
		return nil, v, err
	}
	if n > 0 && len(records) > n {
		records = records[:n]
	}
	return records, v, nil
}
