// Package recon implements the entity matching engine: for one scalar value
// of one property it produces a ranked, constraint-aware list of candidate
// knowledge-base entities, or decides the value needs no reconciliation.
package recon

import "github.com/glam-tools/wikimapper/internal/propcache"

// Candidate is one scored match against the knowledge base.
type Candidate struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	// Score is the adjusted score in [0,100] used for ranking
	Score float64 `json:"score"`
	// OriginalScore is what the service reported, or the position-based
	// substitute when it reported none
	OriginalScore float64 `json:"originalScore"`
	// ConstraintScore is the adjustment applied for constraint conformance
	ConstraintScore float64  `json:"constraintScore"`
	Types           []string `json:"types,omitempty"`
	URL             string   `json:"url,omitempty"`
	// Fallback marks candidates from the generic search endpoint rather
	// than the reconciliation service
	Fallback bool `json:"fallback,omitempty"`
}

// ContextProperty is a property/value pair from the same record, sent to the
// reconciliation service to disambiguate candidates.
type ContextProperty struct {
	PropertyID string `json:"pid"`
	Value      string `json:"v"`
}

// Request asks for one cell to be reconciled.
type Request struct {
	ItemID     string
	Property   propcache.PropertyRecord
	ValueIndex int
	Value      string
	Context    []ContextProperty
}

// Result is the engine's answer for one cell.
type Result struct {
	// NeedsDateInput short-circuits matching: the value is date-shaped and
	// should be captured as a date, not an entity
	NeedsDateInput bool `json:"needsDateInput,omitempty"`
	// Candidates are ranked by adjusted score, best first
	Candidates []Candidate `json:"candidates"`
	// AutoAccepted is set when the top candidate cleared the auto-accept
	// threshold and the cell was marked reconciled
	AutoAccepted *Candidate `json:"autoAccepted,omitempty"`
	// FromCache means a previous attempt's stored result was returned and
	// no service was queried
	FromCache bool `json:"fromCache,omitempty"`
}
