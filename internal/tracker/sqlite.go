package tracker

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/takefinance/payslip-archiver/internal/payroll"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS ledger_meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS employees (
	employee_id TEXT PRIMARY KEY,
	outcome     TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS sessions (
	session_id TEXT PRIMARY KEY,
	summary    TEXT NOT NULL,
	started_at TEXT NOT NULL
);
`

// SQLiteStore persists the ledger in a sqlite database. Each Save replaces
// the stored document in one transaction, keeping the same whole-document
// contract as the file store.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database and bootstraps the schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite ledger path required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite ledger %s: %w", path, err)
	}
	// The ledger has a single writer; concurrent connections only deadlock.
	db.SetMaxOpenConns(1)
	// The first statement is what actually touches the file; a path holding
	// something other than a sqlite database fails here, and that is
	// corrupt durable state, same as an unparsable JSON ledger.
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: init sqlite schema at %s: %v", ErrCorruptLedger, path, err)
	}
	return &SQLiteStore{db: db}, nil
}

// Load reads the full ledger. An empty database yields a fresh ledger;
// rows that fail to parse yield ErrCorruptLedger.
func (s *SQLiteStore) Load() (Ledger, error) {
	l := NewLedger(time.Now())

	var createdAt string
	err := s.db.QueryRow(`SELECT value FROM ledger_meta WHERE key = 'created_at'`).Scan(&createdAt)
	switch {
	case err == sql.ErrNoRows:
		return l, nil
	case err != nil:
		return Ledger{}, fmt.Errorf("read ledger meta: %w", err)
	}
	if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		l.CreatedAt = ts
	}
	var updatedAt string
	if err := s.db.QueryRow(`SELECT value FROM ledger_meta WHERE key = 'last_updated'`).Scan(&updatedAt); err == nil {
		if ts, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
			l.LastUpdated = ts
		}
	}

	rows, err := s.db.Query(`SELECT employee_id, outcome FROM employees`)
	if err != nil {
		return Ledger{}, fmt.Errorf("read employees: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return Ledger{}, fmt.Errorf("scan employee row: %w", err)
		}
		var o payroll.Outcome
		if err := json.Unmarshal([]byte(raw), &o); err != nil {
			return Ledger{}, fmt.Errorf("%w: employee %s: %v", ErrCorruptLedger, id, err)
		}
		l.Employees[id] = o
	}
	if err := rows.Err(); err != nil {
		return Ledger{}, fmt.Errorf("iterate employees: %w", err)
	}

	srows, err := s.db.Query(`SELECT session_id, summary FROM sessions`)
	if err != nil {
		return Ledger{}, fmt.Errorf("read sessions: %w", err)
	}
	defer srows.Close()
	for srows.Next() {
		var id, raw string
		if err := srows.Scan(&id, &raw); err != nil {
			return Ledger{}, fmt.Errorf("scan session row: %w", err)
		}
		var sess payroll.Session
		if err := json.Unmarshal([]byte(raw), &sess); err != nil {
			return Ledger{}, fmt.Errorf("%w: session %s: %v", ErrCorruptLedger, id, err)
		}
		l.Sessions[id] = sess
	}
	if err := srows.Err(); err != nil {
		return Ledger{}, fmt.Errorf("iterate sessions: %w", err)
	}

	return l, nil
}

// Save replaces the stored ledger in a single transaction.
func (s *SQLiteStore) Save(l Ledger) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin ledger tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM employees`); err != nil {
		return fmt.Errorf("clear employees: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM sessions`); err != nil {
		return fmt.Errorf("clear sessions: %w", err)
	}

	for id, o := range l.Employees {
		raw, err := json.Marshal(o)
		if err != nil {
			return fmt.Errorf("marshal outcome %s: %w", id, err)
		}
		if _, err := tx.Exec(`INSERT INTO employees (employee_id, outcome) VALUES (?, ?)`, id, string(raw)); err != nil {
			return fmt.Errorf("insert employee %s: %w", id, err)
		}
	}
	for id, sess := range l.Sessions {
		raw, err := json.Marshal(sess)
		if err != nil {
			return fmt.Errorf("marshal session %s: %w", id, err)
		}
		if _, err := tx.Exec(
			`INSERT INTO sessions (session_id, summary, started_at) VALUES (?, ?, ?)`,
			id, string(raw), sess.StartedAt.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("insert session %s: %w", id, err)
		}
	}

	for key, ts := range map[string]time.Time{
		"created_at":   l.CreatedAt,
		"last_updated": l.LastUpdated,
	} {
		if _, err := tx.Exec(
			`INSERT INTO ledger_meta (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			key, ts.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("upsert meta %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger tx: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
