// Package tracker maintains the durable processing ledger: the last-known
// outcome per employee plus the history of processing sessions. The ledger
// is what makes batch runs idempotent.
package tracker

import (
	"errors"
	"time"

	"github.com/takefinance/payslip-archiver/internal/payroll"
)

// ErrCorruptLedger is returned when durable state exists but cannot be
// parsed. Callers must decide explicitly whether to abort or reinitialize;
// the tracker never reinitializes on its own.
var ErrCorruptLedger = errors.New("ledger state is corrupt")

// ErrUnknownSession is returned when an operation names a session the
// ledger has never seen.
var ErrUnknownSession = errors.New("unknown session")

// Ledger is the persistent processing state. Employees maps employee ID to
// the latest outcome (last write wins); Sessions maps session ID to its
// summary.
type Ledger struct {
	Employees   map[string]payroll.Outcome `json:"employees"`
	Sessions    map[string]payroll.Session `json:"sessions"`
	CreatedAt   time.Time                  `json:"created_at"`
	LastUpdated time.Time                  `json:"last_updated"`
}

// NewLedger returns an empty, initialized ledger.
func NewLedger(now time.Time) Ledger {
	return Ledger{
		Employees:   make(map[string]payroll.Outcome),
		Sessions:    make(map[string]payroll.Session),
		CreatedAt:   now,
		LastUpdated: now,
	}
}

// init backfills nil maps after deserialization.
func (l *Ledger) init() {
	if l.Employees == nil {
		l.Employees = make(map[string]payroll.Outcome)
	}
	if l.Sessions == nil {
		l.Sessions = make(map[string]payroll.Session)
	}
}

// LedgerStore persists the ledger document. Implementations must leave the
// stored representation structurally valid even if the process dies right
// after Save returns (atomic replace or transactional write).
type LedgerStore interface {
	// Load reads durable state. A store with no prior state returns a
	// fresh empty ledger; unparsable state returns ErrCorruptLedger.
	Load() (Ledger, error)

	// Save persists the full ledger document.
	Save(l Ledger) error

	// Close releases any resources.
	Close() error
}

// StoreConfig selects and configures the ledger store backend.
type StoreConfig struct {
	Backend string `yaml:"backend"` // "file" | "sqlite"
	Path    string `yaml:"path"`    // ledger file or sqlite database path
}

// NewLedgerStore creates a ledger store based on configuration.
func NewLedgerStore(cfg StoreConfig) (LedgerStore, error) {
	switch cfg.Backend {
	case "", "file":
		return NewFileStore(cfg.Path)
	case "sqlite":
		return NewSQLiteStore(cfg.Path)
	default:
		return nil, errors.New("unknown ledger backend: " + cfg.Backend)
	}
}
