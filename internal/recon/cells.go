package recon

import (
	"fmt"
	"sync"
)

// CellStatus is the reconciliation state of one cell.
type CellStatus string

const (
	StatusUnreconciled CellStatus = "unreconciled"
	StatusReconciled   CellStatus = "reconciled"
	StatusSkipped      CellStatus = "skipped"
)

// CellKey addresses one value of one property on one item.
type CellKey struct {
	ItemID     string `json:"itemId"`
	Property   string `json:"property"`
	ValueIndex int    `json:"valueIndex"`
}

func (k CellKey) String() string {
	return fmt.Sprintf("%s|%s|%d", k.ItemID, k.Property, k.ValueIndex)
}

// Cell holds the reconciliation state for one value. Matches nil means no
// attempt was ever made; an empty non-nil slice means an attempt found
// nothing. The distinction keeps the engine from re-querying dead ends.
type Cell struct {
	Matches         []Candidate `json:"matches,omitempty"`
	SelectedMatch   *Candidate  `json:"selectedMatch,omitempty"`
	Status          CellStatus  `json:"status"`
	AutoAccepted    bool        `json:"autoAccepted,omitempty"`
	AutoAcceptScore float64     `json:"autoAcceptScore,omitempty"`
}

// Attempted reports whether matching ever ran for this cell.
func (c *Cell) Attempted() bool {
	return c.Matches != nil
}

// CellStore holds the cells of one reconciliation session.
type CellStore struct {
	mu    sync.Mutex
	cells map[CellKey]*Cell
}

// NewCellStore returns an empty store.
func NewCellStore() *CellStore {
	return &CellStore{cells: make(map[CellKey]*Cell)}
}

// Get returns a copy of the cell, if it exists.
func (s *CellStore) Get(key CellKey) (Cell, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cell, ok := s.cells[key]
	if !ok {
		return Cell{}, false
	}
	return *cell, true
}

// storeAttempt records a matching attempt's candidates. matches must be
// non-nil so the attempt is distinguishable from "never tried".
func (s *CellStore) storeAttempt(key CellKey, matches []Candidate) *Cell {
	if matches == nil {
		matches = []Candidate{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cell, ok := s.cells[key]
	if !ok {
		cell = &Cell{Status: StatusUnreconciled}
		s.cells[key] = cell
	}
	cell.Matches = matches
	return cell
}

// Select marks the cell reconciled with the given candidate.
func (s *CellStore) Select(key CellKey, match Candidate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cell, ok := s.cells[key]
	if !ok {
		cell = &Cell{Matches: []Candidate{}}
		s.cells[key] = cell
	}
	m := match
	cell.SelectedMatch = &m
	cell.Status = StatusReconciled
}

// autoSelect is Select plus the audit trail for an automatic decision.
func (s *CellStore) autoSelect(key CellKey, match Candidate, score float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cell := s.cells[key]
	m := match
	cell.SelectedMatch = &m
	cell.Status = StatusReconciled
	cell.AutoAccepted = true
	cell.AutoAcceptScore = score
}

// Skip marks the cell skipped.
func (s *CellStore) Skip(key CellKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cell, ok := s.cells[key]
	if !ok {
		cell = &Cell{Matches: []Candidate{}}
		s.cells[key] = cell
	}
	cell.Status = StatusSkipped
}

// Invalidate forgets a cell's stored result so the next request re-queries.
func (s *CellStore) Invalidate(key CellKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cells, key)
}

// Snapshot copies every cell, for serialization into results output.
func (s *CellStore) Snapshot() map[CellKey]Cell {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[CellKey]Cell, len(s.cells))
	for k, c := range s.cells {
		out[k] = *c
	}
	return out
}
