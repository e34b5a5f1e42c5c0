// Package processor drives the batch loop: for each employee record decide
// whether processing is needed, render and archive exactly once per
// decision, and record the outcome durably so re-runs are idempotent.
package processor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/takefinance/payslip-archiver/internal/logging"
	"github.com/takefinance/payslip-archiver/internal/metrics"
	"github.com/takefinance/payslip-archiver/internal/payroll"
	"github.com/takefinance/payslip-archiver/internal/render"
	"github.com/takefinance/payslip-archiver/internal/report"
	"github.com/takefinance/payslip-archiver/internal/source"
	"github.com/takefinance/payslip-archiver/internal/storage"
	"github.com/takefinance/payslip-archiver/internal/tracker"
)

// Options control one batch run.
type Options struct {
	// ForceRecreate bypasses the duplicate-skip check: every record is
	// reset and reprocessed regardless of prior outcome.
	ForceRecreate bool

	// WriteReport emits a per-session CSV processing report through the
	// artifact store.
	WriteReport bool
}

// Processor orchestrates source, renderer, store and tracker for one batch
// at a time. Records are handled strictly sequentially, in source order.
type Processor struct {
	tracker  *tracker.Tracker
	src      source.RecordSource
	renderer render.Renderer
	store    storage.ArtifactStore
	metrics  *metrics.Metrics
	now      func() time.Time
	log      *slog.Logger
}

// Option configures a Processor.
type Option func(*Processor)

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Processor) { p.metrics = m }
}

// WithClock overrides the processor's time source.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

// New creates a batch processor.
func New(t *tracker.Tracker, src source.RecordSource, r render.Renderer, store storage.ArtifactStore, opts ...Option) *Processor {
	p := &Processor{
		tracker:  t,
		src:      src,
		renderer: r,
		store:    store,
		now:      time.Now,
		log:      logging.Component("processor"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RunBatch fetches and validates records from the configured source, then
// processes them as one session. Source-level failures abort before any
// per-record outcome is recorded.
func (p *Processor) RunBatch(ctx context.Context, sourceRef string, opts Options) (payroll.Session, error) {
	sessionID, err := p.tracker.BeginSession(sourceRef)
	if err != nil {
		return payroll.Session{}, err
	}
	if p.metrics != nil {
		p.metrics.SessionsStarted.Inc()
	}
	log := logging.SessionLogger(sessionID, sourceRef)

	records, validation, err := p.src.Fetch(ctx, sourceRef)
	if err != nil {
		p.failSession(sessionID, err)
		return payroll.Session{}, err
	}
	log.Info("source validated",
		"file", validation.SourceName,
		"total_rows", validation.TotalRows,
		"rows_with_id", validation.RowsWithID,
	)

	if err := p.tracker.SetSessionMeta(sessionID, validation.SourceName, len(records)); err != nil {
		p.failSession(sessionID, err)
		return payroll.Session{}, err
	}

	session, outcomes, err := p.runSession(ctx, sessionID, records, opts, log)
	if err != nil {
		return session, err
	}

	if opts.WriteReport && p.store != nil {
		now := p.now()
		// The batch itself succeeded; a missing report is not fatal.
		if _, rerr := report.Write(ctx, p.store, session, outcomes, now); rerr != nil {
			log.Warn("failed to write session report", "error", rerr)
		}
		if _, rerr := report.WriteSummary(ctx, p.store, session, now); rerr != nil {
			log.Warn("failed to write session summary", "error", rerr)
		}
	}
	return session, nil
}

// Run processes an already-loaded batch of records as one session.
func (p *Processor) Run(ctx context.Context, records []payroll.EmployeeRecord, opts Options) (payroll.Session, error) {
	sessionID, err := p.tracker.BeginSession("")
	if err != nil {
		return payroll.Session{}, err
	}
	if p.metrics != nil {
		p.metrics.SessionsStarted.Inc()
	}
	if err := p.tracker.SetSessionMeta(sessionID, "", len(records)); err != nil {
		p.failSession(sessionID, err)
		return payroll.Session{}, err
	}
	session, _, err := p.runSession(ctx, sessionID, records, opts, logging.SessionLogger(sessionID, ""))
	return session, err
}

// runSession is the per-record loop. Per-record render/store failures are
// recorded and the loop continues; ledger persistence failures and
// cancellation abort the session.
func (p *Processor) runSession(ctx context.Context, sessionID string, records []payroll.EmployeeRecord, opts Options, log *slog.Logger) (payroll.Session, []payroll.Outcome, error) {
	if p.metrics != nil {
		p.metrics.SessionSize.Set(float64(len(records)))
	}
	start := p.now()
	outcomes := make([]payroll.Outcome, 0, len(records))

	for i, rec := range records {
		// Cancellation boundary: between records only, so the ledger
		// keeps every completed outcome.
		if err := ctx.Err(); err != nil {
			p.failSession(sessionID, fmt.Errorf("canceled after %d of %d records: %w", i, len(records), err))
			s, _ := p.tracker.Session(sessionID)
			return s, outcomes, err
		}

		rlog := logging.EmployeeLogger(log, rec.ID, rec.Name)
		rlog.Debug("processing record", "position", i+1, "of", len(records))

		if opts.ForceRecreate {
			if err := p.tracker.ForceReset(rec.ID); err != nil {
				p.failSession(sessionID, err)
				s, _ := p.tracker.Session(sessionID)
				return s, outcomes, err
			}
		}

		outcome := p.processRecord(ctx, sessionID, rec, rlog)
		if err := p.tracker.RecordOutcome(sessionID, outcome); err != nil {
			if p.metrics != nil {
				p.metrics.LedgerSaveErrors.Inc()
			}
			p.failSession(sessionID, err)
			s, _ := p.tracker.Session(sessionID)
			return s, outcomes, err
		}
		outcomes = append(outcomes, outcome)
		p.countOutcome(outcome)
	}

	if err := p.tracker.EndSession(sessionID, payroll.SessionCompleted, ""); err != nil {
		s, _ := p.tracker.Session(sessionID)
		return s, outcomes, err
	}
	if p.metrics != nil {
		p.metrics.SessionsCompleted.WithLabelValues(string(payroll.SessionCompleted)).Inc()
	}

	session, _ := p.tracker.Session(sessionID)
	log.Info("batch complete",
		"total", session.Total,
		"processed", session.Processed,
		"failed", session.Failed,
		"skipped", session.Skipped,
		"duration", p.now().Sub(start).String(),
	)
	return session, outcomes, nil
}

// processRecord runs the decision/render/store steps for one employee and
// returns the outcome to record. It never returns an error: per-record
// failures become Failed outcomes.
func (p *Processor) processRecord(ctx context.Context, sessionID string, rec payroll.EmployeeRecord, log *slog.Logger) payroll.Outcome {
	base := payroll.Outcome{
		EmployeeID:   rec.ID,
		EmployeeName: rec.Name,
		SessionID:    sessionID,
		Timestamp:    p.now(),
	}

	if p.tracker.IsProcessed(rec.ID) {
		log.Info("already processed, skipping")
		base.Kind = payroll.OutcomeSkipped
		return base
	}

	renderStart := p.now()
	artifact, err := p.renderer.Render(rec)
	if p.metrics != nil {
		p.metrics.ObserveRender(p.now().Sub(renderStart))
	}
	if err != nil {
		log.Error("render failed", "error", err)
		base.Kind = payroll.OutcomeFailed
		base.Stage = payroll.StageRender
		base.ErrorDetail = err.Error()
		return base
	}

	ref := storage.ArtifactRef{
		EmployeeID:   rec.ID,
		EmployeeName: rec.Name,
		Date:         p.now(),
		Kind:         "payslip",
	}
	storeStart := p.now()
	uri, err := p.store.Store(ctx, artifact, ref)
	if p.metrics != nil {
		p.metrics.ObserveStore(p.now().Sub(storeStart))
	}
	if err != nil {
		// The rendered artifact is discarded; a later run regenerates it.
		log.Error("store failed", "error", err)
		base.Kind = payroll.OutcomeFailed
		base.Stage = payroll.StageStore
		base.ErrorDetail = err.Error()
		return base
	}

	log.Info("archived", "artifact", uri)
	base.Kind = payroll.OutcomeProcessed
	base.ArtifactRef = uri
	return base
}

func (p *Processor) countOutcome(o payroll.Outcome) {
	if p.metrics == nil {
		return
	}
	switch o.Kind {
	case payroll.OutcomeProcessed:
		p.metrics.RecordsProcessed.Inc()
	case payroll.OutcomeFailed:
		p.metrics.RecordsFailed.WithLabelValues(o.Stage).Inc()
	case payroll.OutcomeSkipped:
		p.metrics.RecordsSkipped.Inc()
	}
}

// failSession marks the session failed, tolerating bookkeeping errors since
// the caller already has the original failure.
func (p *Processor) failSession(sessionID string, cause error) {
	if err := p.tracker.EndSession(sessionID, payroll.SessionFailed, cause.Error()); err != nil {
		p.log.Warn("failed to mark session failed", "session_id", sessionID, "error", err)
	}
	if p.metrics != nil {
		p.metrics.SessionsCompleted.WithLabelValues(string(payroll.SessionFailed)).Inc()
	}
}

// Statistics returns the tracker's aggregate view across all sessions.
func (p *Processor) Statistics() tracker.Statistics {
	return p.tracker.Statistics()
}
