package source

import (
	"encoding/csv"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/takefinance/payslip-archiver/internal/payroll"
)

// requiredColumns must be present (after header normalization) for the
// batch to start. The base column may be period-qualified in exports,
// e.g. "base jan-mar".
var requiredColumns = []string{"id", "name", "base"}

// parse picks the reader for the file type: Excel workbooks go through
// excelize, everything else is treated as a delimited text export.
func parse(r io.Reader, name, sheet string) ([]payroll.EmployeeRecord, *Validation, error) {
	if strings.EqualFold(path.Ext(name), ".xls") {
		return nil, nil, fmt.Errorf("%w: %s: legacy .xls is not supported, convert to .xlsx", ErrSourceFormat, name)
	}
	if workbook(name) {
		return parseWorkbook(r, name, sheet)
	}
	return parseRecords(r, name)
}

// parseRecords reads a delimited export and returns the validated records.
// name drives format detection: .tsv selects tab delimiting, a .gz suffix
// enables transparent decompression.
func parseRecords(r io.Reader, name string) ([]payroll.EmployeeRecord, *Validation, error) {
	base := name
	if strings.HasSuffix(base, ".gz") {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: open gzip %s: %v", ErrSourceFormat, name, err)
		}
		defer gz.Close()
		r = gz
		base = strings.TrimSuffix(base, ".gz")
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	if strings.EqualFold(path.Ext(base), ".tsv") {
		cr.Comma = '\t'
	}

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read %s: %v", ErrSourceFormat, name, err)
	}
	return buildRecords(rows, name)
}

// buildRecords validates the header row and assembles employee records from
// raw cell rows, whatever reader produced them.
func buildRecords(rows [][]string, name string) ([]payroll.EmployeeRecord, *Validation, error) {
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("%w: %s is empty", ErrSourceFormat, name)
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.ToLower(strings.TrimSpace(h))
	}

	v := &Validation{
		SourceName: name,
		TotalRows:  len(rows) - 1,
		Columns:    headers,
	}

	col := make(map[string]int, len(headers))
	for i, h := range headers {
		if _, ok := col[h]; !ok {
			col[h] = i
		}
	}

	baseCol, baseOK := findBaseColumn(headers)
	for _, req := range requiredColumns {
		if req == "base" {
			if !baseOK {
				v.MissingCols = append(v.MissingCols, req)
			}
			continue
		}
		if _, ok := col[req]; !ok {
			v.MissingCols = append(v.MissingCols, req)
		}
	}
	if len(v.MissingCols) > 0 {
		return nil, v, fmt.Errorf("%w: %s missing required columns %v",
			ErrSourceFormat, name, v.MissingCols)
	}

	cell := func(row []string, i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return row[i]
	}

	var records []payroll.EmployeeRecord
	for _, row := range rows[1:] {
		id := strings.TrimSpace(cell(row, col["id"]))
		if id == "" {
			continue
		}
		v.RowsWithID++

		rec := payroll.EmployeeRecord{
			ID:     id,
			Name:   strings.TrimSpace(cell(row, col["name"])),
			Base:   payroll.ParseField(cell(row, baseCol)).Num(),
			Fields: make(map[string]payroll.FieldValue),
		}
		for h, i := range col {
			if h == "id" || h == "name" || i == baseCol {
				continue
			}
			if f := payroll.ParseField(cell(row, i)); f.Kind != payroll.FieldAbsent {
				rec.Fields[h] = f
			}
		}
		records = append(records, rec)
	}

	if v.RowsWithID == 0 {
		return nil, v, fmt.Errorf("%w: %s has no rows with a valid id", ErrSourceFormat, name)
	}
	return records, v, nil
}

// findBaseColumn locates the base payment column: an exact "base" header,
// or a period-qualified one like "base jan-mar". "base periods" is a
// distinct optional column and never matches.
func findBaseColumn(headers []string) (int, bool) {
	for i, h := range headers {
		if h == "base" {
			return i, true
		}
	}
	for i, h := range headers {
		if strings.HasPrefix(h, "base ") && h != payroll.FieldBasePeriods {
			return i, true
		}
	}
	return -1, false
}
