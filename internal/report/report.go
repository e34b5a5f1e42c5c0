// Package report generates per-session CSV processing reports and archives
// them alongside the payslips.
package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/takefinance/payslip-archiver/internal/payroll"
	"github.com/takefinance/payslip-archiver/internal/storage"
)

var header = []string{
	"Employee ID",
	"Employee Name",
	"Status",
	"Artifact Link",
	"Processing Date",
	"Session ID",
	"Error Message",
}

// Build renders the report CSV for one session's outcomes.
func Build(session payroll.Session, outcomes []payroll.Outcome) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("write report header: %w", err)
	}
	for _, o := range outcomes {
		detail := o.ErrorDetail
		if o.Kind == payroll.OutcomeSkipped {
			detail = "Already processed"
		}
		row := []string{
			o.EmployeeID,
			o.EmployeeName,
			statusLabel(o.Kind),
			o.ArtifactRef,
			o.Timestamp.Format("2006-01-02 15:04:05"),
			session.ID,
			detail,
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write report row for %s: %w", o.EmployeeID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush report: %w", err)
	}
	return buf.Bytes(), nil
}

// Write builds the session report and stores it under reports/<YYYY-MM>/.
// Returns the stored artifact reference.
func Write(ctx context.Context, store storage.ArtifactStore, session payroll.Session, outcomes []payroll.Outcome, now time.Time) (string, error) {
	data, err := Build(session, outcomes)
	if err != nil {
		return "", err
	}
	ref := storage.ArtifactRef{
		Kind:     "report",
		Date:     now,
		FileName: fmt.Sprintf("payroll_processing_report_%s.csv", now.Format("20060102_150405")),
	}
	return store.Store(ctx, data, ref)
}

var summaryHeader = []string{
	"Session ID",
	"Source File",
	"Status",
	"Total Employees",
	"Processed",
	"Failed",
	"Skipped",
	"Started At",
	"Finished At",
	"Error Message",
}

// BuildSummary renders the one-row aggregate summary for a session.
func BuildSummary(session payroll.Session) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	finished := ""
	if !session.FinishedAt.IsZero() {
		finished = session.FinishedAt.Format("2006-01-02 15:04:05")
	}
	rows := [][]string{
		summaryHeader,
		{
			session.ID,
			session.SourceName,
			string(session.Status),
			strconv.Itoa(session.Total),
			strconv.Itoa(session.Processed),
			strconv.Itoa(session.Failed),
			strconv.Itoa(session.Skipped),
			session.StartedAt.Format("2006-01-02 15:04:05"),
			finished,
			session.Error,
		},
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("write session summary: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteSummary stores the aggregate summary next to the detailed report.
func WriteSummary(ctx context.Context, store storage.ArtifactStore, session payroll.Session, now time.Time) (string, error) {
	data, err := BuildSummary(session)
	if err != nil {
		return "", err
	}
	ref := storage.ArtifactRef{
		Kind:     "report",
		Date:     now,
		FileName: fmt.Sprintf("payroll_processing_summary_%s.csv", now.Format("20060102_150405")),
	}
	return store.Store(ctx, data, ref)
}

func statusLabel(k payroll.OutcomeKind) string {
	switch k {
	case payroll.OutcomeProcessed:
		return "Processed"
	case payroll.OutcomeFailed:
		return "Failed"
	case payroll.OutcomeSkipped:
		return "Skipped"
	default:
		return string(k)
	}
}
