// Package payroll defines the data model shared by the source, renderer,
// tracker and processor: employee records as read from a spreadsheet export,
// and the processing outcomes recorded for them.
package payroll

import (
	"strconv"
	"strings"
)

// FieldKind tags the variant held by a FieldValue.
type FieldKind int

const (
	FieldAbsent FieldKind = iota
	FieldNumber
	FieldText
)

// FieldValue is a single spreadsheet cell after ingestion. Numeric columns
// that fail to parse are kept as text rather than dropped, so the renderer
// can still show what the sheet contained.
type FieldValue struct {
	Kind   FieldKind
	Number float64
	Text   string
}

// Num returns the numeric value, or 0 for absent/text fields.
func (v FieldValue) Num() float64 {
	if v.Kind == FieldNumber {
		return v.Number
	}
	return 0
}

// Str returns the textual value. Numeric fields are formatted compactly.
func (v FieldValue) Str() string {
	switch v.Kind {
	case FieldNumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	case FieldText:
		return v.Text
	default:
		return ""
	}
}

// ParseField coerces a raw cell into a FieldValue. Blank cells are absent;
// anything that parses as a float (allowing thousands separators) is
// numeric; the rest stays text.
func ParseField(raw string) FieldValue {
	s := strings.TrimSpace(raw)
	if s == "" {
		return FieldValue{Kind: FieldAbsent}
	}
	cleaned := strings.ReplaceAll(s, ",", "")
	if n, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return FieldValue{Kind: FieldNumber, Number: n}
	}
	return FieldValue{Kind: FieldText, Text: s}
}

// Well-known optional column names, normalized (trimmed, lower-cased).
const (
	FieldLocation    = "location"
	FieldPayment     = "payment"
	FieldBasePeriods = "base periods"
	FieldPctFromBase = "% from the base"
	FieldBonusUSD    = "bonus usd"
	FieldBonusUSDFin = "bonus usd fin"
	FieldSLA         = "sla"
	FieldSLABonus    = "sla bonus"
	FieldSLAID       = "sla id"
	FieldTotalUSD    = "total usd"
	FieldRate        = "rate"
	FieldBonusLocal  = "bonus loc cur"
)

// EmployeeRecord is one validated payroll row. ID, Name and Base are
// required at ingestion; everything else lives in Fields. Records are
// immutable once read for a given run.
type EmployeeRecord struct {
	ID     string
	Name   string
	Base   float64
	Fields map[string]FieldValue
}

// Field returns the named optional field, absent if not present.
func (r EmployeeRecord) Field(name string) FieldValue {
	if r.Fields == nil {
		return FieldValue{Kind: FieldAbsent}
	}
	return r.Fields[name]
}

// Num is shorthand for Field(name).Num().
func (r EmployeeRecord) Num(name string) float64 { return r.Field(name).Num() }

// SLAID returns the record's SLA methodology ID, defaulting to 1 when the
// column is missing or blank.
func (r EmployeeRecord) SLAID() int {
	v := r.Field(FieldSLAID)
	if v.Kind != FieldNumber {
		return 1
	}
	return int(v.Number)
}
