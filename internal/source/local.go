package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/takefinance/payslip-archiver/internal/payroll"
)

// LocalSource reads spreadsheet exports from the local filesystem.
type LocalSource struct {
	baseDir string
	sheet   string
}

// NewLocalSource creates a local source. Relative refs resolve against
// baseDir; absolute refs are used as-is. sheet selects the workbook sheet
// for xlsx inputs.
func NewLocalSource(baseDir, sheet string) *LocalSource {
	return &LocalSource{baseDir: baseDir, sheet: sheet}
}

// Fetch implements RecordSource.
func (s *LocalSource) Fetch(ctx context.Context, ref string) ([]payroll.EmployeeRecord, *Validation, error) {
	path := ref
	if !filepath.IsAbs(path) && s.baseDir != "" {
		path = filepath.Join(s.baseDir, ref)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: open %s: %v", ErrSourceUnavailable, path, err)
	}
	defer f.Close()

	return parse(f, filepath.Base(path), s.sheet)
}

// Close is a no-op for the local source.
func (s *LocalSource) Close() error { return nil }
