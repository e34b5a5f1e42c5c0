package source

import (
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/takefinance/payslip-archiver/internal/payroll"
)

// workbook reports whether the file is an Excel workbook rather than a
// delimited text export.
func workbook(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	return ext == ".xlsx" || ext == ".xlsm"
}

// parseWorkbook reads an xlsx export. An empty sheet name selects the first
// sheet, which is how payroll exports usually arrive.
func parseWorkbook(r io.Reader, name, sheet string) ([]payroll.EmployeeRecord, *Validation, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: open workbook %s: %v", ErrSourceFormat, name, err)
	}
	defer wb.Close()

	if sheet == "" {
		sheet = wb.GetSheetName(0)
	}
	rows, err := wb.GetRows(sheet)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read sheet %q of %s: %v", ErrSourceFormat, sheet, name, err)
	}
	return buildRecords(rows, name)
}
