// Package render turns employee records into payslip documents.
package render

import (
	"errors"
	"fmt"
	"time"

	"github.com/takefinance/payslip-archiver/internal/payroll"
)

// ErrRender wraps per-record rendering failures. Recoverable: the batch
// records the failure and continues.
var ErrRender = errors.New("payslip render failed")

// Renderer produces a document artifact for one employee record. Given the
// same record and clock, output is deterministic.
type Renderer interface {
	Render(rec payroll.EmployeeRecord) ([]byte, error)
}

// Config configures the payslip renderer.
type Config struct {
	CompanyName      string `yaml:"company_name"`
	Currency         string `yaml:"currency"`
	DescriptionsFile string `yaml:"descriptions_file"` // methodology texts by SLA ID
}

// Clock is the time source used for the calculation period and the PDF
// creation date; injectable so rendering stays reproducible in tests.
type Clock func() time.Time

// quarterOf formats a time as the "Q1, 2026" style calculation period.
func quarterOf(t time.Time) string {
	q := (int(t.Month())-1)/3 + 1
	return fmt.Sprintf("Q%d, %d", q, t.Year())
}
