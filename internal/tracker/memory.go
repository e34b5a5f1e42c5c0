package tracker

import (
	"sync"
	"time"
)

// MemoryStore is an in-memory ledger store for tests and dry runs.
type MemoryStore struct {
	mu     sync.Mutex
	ledger *Ledger
	saves  int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load() (Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ledger == nil {
		return NewLedger(time.Now()), nil
	}
	return cloneLedger(*s.ledger), nil
}

func (s *MemoryStore) Save(l Ledger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := cloneLedger(l)
	s.ledger = &c
	s.saves++
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// Saves reports how many times Save was called.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func cloneLedger(l Ledger) Ledger {
	c := Ledger{
		CreatedAt:   l.CreatedAt,
		LastUpdated: l.LastUpdated,
	}
	c.init()
	for k, v := range l.Employees {
		c.Employees[k] = v
	}
	for k, v := range l.Sessions {
		c.Sessions[k] = v
	}
	return c
}
