package tracker

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/takefinance/payslip-archiver/internal/logging"
	"github.com/takefinance/payslip-archiver/internal/payroll"
)

// Tracker owns the in-memory ledger and its durable store. All mutations
// persist before returning, so a crash loses at most the in-flight record.
// A single mutex guards the session counter read-modify-write; callers may
// therefore process records concurrently as long as no two goroutines touch
// the same employee ID.
type Tracker struct {
	mu     sync.Mutex
	ledger Ledger
	store  LedgerStore
	now    func() time.Time
	log    *slog.Logger
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the tracker's time source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// New loads the ledger from the store, creating an empty one if the store
// holds no prior state. A corrupt store surfaces ErrCorruptLedger.
func New(store LedgerStore, opts ...Option) (*Tracker, error) {
	t := &Tracker{
		store: store,
		now:   time.Now,
		log:   logging.Component("tracker"),
	}
	for _, opt := range opts {
		opt(t)
	}

	ledger, err := store.Load()
	if err != nil {
		return nil, err
	}
	ledger.init()
	t.ledger = ledger
	t.log.Info("ledger loaded",
		"employees", len(ledger.Employees),
		"sessions", len(ledger.Sessions),
	)
	return t, nil
}

// persist stamps last_updated and saves. Callers hold t.mu.
func (t *Tracker) persist() error {
	t.ledger.LastUpdated = t.now()
	if err := t.store.Save(t.ledger); err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}
	return nil
}

// BeginSession allocates a new session and persists it with status Running.
// The ID embeds the start timestamp plus a short disambiguator, so sessions
// started within the same clock tick stay unique.
func (t *Tracker) BeginSession(sourceRef string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	id := fmt.Sprintf("%s-%s", now.UTC().Format("20060102T150405Z"), uuid.NewString()[:8])

	t.ledger.Sessions[id] = payroll.Session{
		ID:        id,
		Status:    payroll.SessionRunning,
		SourceRef: sourceRef,
		StartedAt: now,
	}
	if err := t.persist(); err != nil {
		return "", err
	}
	t.log.Info("session started", "session_id", id, "source", sourceRef)
	return id, nil
}

// SetSessionMeta records the source file name and expected record count for
// a running session.
func (t *Tracker) SetSessionMeta(sessionID, sourceName string, total int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.ledger.Sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}
	s.SourceName = sourceName
	s.Total = total
	t.ledger.Sessions[sessionID] = s
	return t.persist()
}

// EndSession marks the session terminal and persists. errDetail is recorded
// only for failed sessions.
func (t *Tracker) EndSession(sessionID string, status payroll.SessionStatus, errDetail string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.ledger.Sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}
	s.Status = status
	s.FinishedAt = t.now()
	if status == payroll.SessionFailed {
		s.Error = errDetail
		// A batch that aborts mid-run never reached the remaining
		// records; drop them from the total so the counter invariant
		// (processed+failed+skipped == total) holds for terminal sessions.
		if sum := s.Processed + s.Failed + s.Skipped; sum != s.Total {
			s.Total = sum
		}
	}
	t.ledger.Sessions[sessionID] = s
	if err := t.persist(); err != nil {
		return err
	}
	t.log.Info("session finished", "session_id", sessionID, "status", string(status))
	return nil
}

// IsProcessed reports whether the employee's last recorded outcome is
// Processed. Failed and Skipped outcomes do not count.
func (t *Tracker) IsProcessed(employeeID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	o, ok := t.ledger.Employees[employeeID]
	return ok && o.Kind == payroll.OutcomeProcessed
}

// RecordOutcome records the employee's outcome for the session, bumps the
// session counters and persists. Processed and Failed outcomes upsert the
// employee entry (last write wins); Skipped outcomes leave it untouched.
// Calling it again for the same employee within a session replaces the
// previous outcome and adjusts counters accordingly; that is how a retry
// after failure is represented.
func (t *Tracker) RecordOutcome(sessionID string, outcome payroll.Outcome) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.ledger.Sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}

	outcome.SessionID = sessionID
	if outcome.Timestamp.IsZero() {
		outcome.Timestamp = t.now()
	}

	// A repeated call for the same employee in the same session replaces
	// the earlier outcome; undo its counter contribution first.
	if prev, ok := t.ledger.Employees[outcome.EmployeeID]; ok && prev.SessionID == sessionID {
		switch prev.Kind {
		case payroll.OutcomeProcessed:
			s.Processed--
		case payroll.OutcomeFailed:
			s.Failed--
		case payroll.OutcomeSkipped:
			s.Skipped--
		}
	}

	// Skips count in the session but never touch the employee entry: the
	// entry keeps the outcome of the run that actually produced (or failed
	// to produce) the document, so IsProcessed stays true across any number
	// of re-runs.
	if outcome.Kind != payroll.OutcomeSkipped {
		t.ledger.Employees[outcome.EmployeeID] = outcome
	}

	switch outcome.Kind {
	case payroll.OutcomeProcessed:
		s.Processed++
	case payroll.OutcomeFailed:
		s.Failed++
	case payroll.OutcomeSkipped:
		s.Skipped++
	}
	t.ledger.Sessions[sessionID] = s

	return t.persist()
}

// ForceReset removes any recorded outcome for the employee, allowing
// reprocessing even though IsProcessed previously returned true.
func (t *Tracker) ForceReset(employeeID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.ledger.Employees[employeeID]; !ok {
		return nil
	}
	delete(t.ledger.Employees, employeeID)
	if err := t.persist(); err != nil {
		return err
	}
	t.log.Info("employee status reset", "employee_id", employeeID)
	return nil
}

// History returns the last recorded outcome for the employee, if any.
func (t *Tracker) History(employeeID string) (payroll.Outcome, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	o, ok := t.ledger.Employees[employeeID]
	return o, ok
}

// Session returns a copy of the named session summary.
func (t *Tracker) Session(sessionID string) (payroll.Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.ledger.Sessions[sessionID]
	return s, ok
}

// Statistics aggregates processing state across all sessions.
type Statistics struct {
	EmployeesTracked int
	Succeeded        int
	Failed           int
	TotalSessions    int
	RecentSessions   []payroll.Session
	LastUpdated      time.Time
}

// Statistics returns the aggregate summary, with the five most recent
// sessions newest-first.
func (t *Tracker) Statistics() Statistics {
	t.mu.Lock()
	defer t.mu.Unlock()

	stats := Statistics{
		EmployeesTracked: len(t.ledger.Employees),
		TotalSessions:    len(t.ledger.Sessions),
		LastUpdated:      t.ledger.LastUpdated,
	}
	for _, o := range t.ledger.Employees {
		switch o.Kind {
		case payroll.OutcomeProcessed:
			stats.Succeeded++
		case payroll.OutcomeFailed:
			stats.Failed++
		}
	}

	sessions := make([]payroll.Session, 0, len(t.ledger.Sessions))
	for _, s := range t.ledger.Sessions {
		sessions = append(sessions, s)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartedAt.After(sessions[j].StartedAt)
	})
	if len(sessions) > 5 {
		sessions = sessions[:5]
	}
	stats.RecentSessions = sessions
	return stats
}

// CleanupSessions removes sessions that started before the cutoff and
// returns how many were removed. Employee outcomes are kept; only session
// history is pruned.
func (t *Tracker) CleanupSessions(olderThan time.Duration) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.now().Add(-olderThan)
	removed := 0
	for id, s := range t.ledger.Sessions {
		if s.StartedAt.Before(cutoff) {
			delete(t.ledger.Sessions, id)
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}
	if err := t.persist(); err != nil {
		return removed, err
	}
	t.log.Info("cleaned up old sessions", "removed", removed)
	return removed, nil
}
