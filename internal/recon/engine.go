package recon

import (
	"context"
	"log/slog"
	"regexp"
	"sort"

	"github.com/glam-tools/wikimapper/internal/config"
	"github.com/glam-tools/wikimapper/internal/propcache"
	"github.com/glam-tools/wikimapper/internal/wikibase"
)

// Searcher is the generic full-text entity search used as a last resort.
type Searcher interface {
	Search(ctx context.Context, text string, limit int) ([]wikibase.SearchResult, error)
}

// ConstraintSource supplies a property's constraints; in production this is
// the property knowledge cache.
type ConstraintSource interface {
	GetPropertyConstraints(ctx context.Context, id string) propcache.Constraints
}

// Engine matches literal values against knowledge-base entities.
type Engine struct {
	client      *serviceClient
	search      Searcher
	constraints ConstraintSource

	scoring           config.ScoringConfig
	entityBaseURL     string
	searchLimit       int
	defaultTypeFilter string

	cells *CellStore
}

// NewEngine assembles an engine from its collaborators.
func NewEngine(cfg *config.Config, search Searcher, constraints ConstraintSource, cells *CellStore) *Engine {
	if cells == nil {
		cells = NewCellStore()
	}
	return &Engine{
		client:            newServiceClient(cfg.Reconcile.PrimaryURL, cfg.Reconcile.FallbackURL),
		search:            search,
		constraints:       constraints,
		scoring:           cfg.Scoring,
		entityBaseURL:     cfg.Wikibase.EntityBaseURL,
		searchLimit:       cfg.Wikibase.SearchLimit,
		defaultTypeFilter: cfg.Reconcile.DefaultType,
		cells:             cells,
	}
}

// Cells exposes the engine's cell store.
func (e *Engine) Cells() *CellStore {
	return e.cells
}

// Reconcile produces ranked candidates for one cell, or short-circuits for
// date-shaped values. Service failures degrade to empty candidate lists; the
// returned error is reserved for context cancellation.
func (e *Engine) Reconcile(ctx context.Context, req Request) (Result, error) {
	if needsDateInput(req.Value, req.Property.Datatype) {
		slog.Debug("Value is date-shaped, skipping reconciliation",
			"item", req.ItemID, "property", req.Property.ID, "value", req.Value)
		return Result{NeedsDateInput: true}, nil
	}

	key := CellKey{ItemID: req.ItemID, Property: req.Property.ID, ValueIndex: req.ValueIndex}
	if cell, ok := e.cells.Get(key); ok && cell.Attempted() {
		result := Result{Candidates: cell.Matches, FromCache: true}
		if cell.AutoAccepted {
			result.AutoAccepted = cell.SelectedMatch
		}
		return result, nil
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	constraints := e.constraints.GetPropertyConstraints(ctx, req.Property.ID)
	e.warnFormatViolations(req, constraints.Format)

	candidates := e.fetchCandidates(ctx, req, constraints)
	e.scoreAndSort(candidates, constraints)

	e.cells.storeAttempt(key, candidates)

	result := Result{Candidates: candidates}
	if len(candidates) > 0 && candidates[0].Score >= e.scoring.AutoAcceptThreshold {
		top := candidates[0]
		e.cells.autoSelect(key, top, top.Score)
		result.AutoAccepted = &top
		slog.Info("Auto-accepted match",
			"item", req.ItemID, "property", req.Property.ID, "entity", top.ID, "score", top.Score)
	}
	return result, nil
}

// fetchCandidates runs the reconciliation service and, when it yields
// nothing, falls back to the generic search endpoint.
func (e *Engine) fetchCandidates(ctx context.Context, req Request, constraints propcache.Constraints) []Candidate {
	typeFilter := typeFilterFrom(constraints)
	if typeFilter == "" {
		// configured generic filter when the property constrains nothing
		typeFilter = e.defaultTypeFilter
	}
	raw := e.client.query(ctx, req.Value, typeFilter, req.Context)

	candidates := make([]Candidate, 0, len(raw))
	for i, r := range raw {
		c := Candidate{
			ID:          r.ID,
			Name:        r.Name,
			Description: r.Description,
			URL:         e.entityBaseURL + r.ID,
		}
		if r.Score != nil {
			c.OriginalScore = *r.Score
		} else {
			c.OriginalScore = positionScore(e.scoring.PositionBase, e.scoring, i)
		}
		for _, t := range r.Types {
			c.Types = append(c.Types, t.ID)
		}
		candidates = append(candidates, c)
	}
	if len(candidates) > 0 {
		return candidates
	}

	return e.searchFallback(ctx, req.Value)
}

// searchFallback issues a direct full-text search, tagging results with a
// lower base confidence and fallback true.
func (e *Engine) searchFallback(ctx context.Context, value string) []Candidate {
	if e.search == nil {
		return nil
	}
	hits, err := e.search.Search(ctx, value, e.searchLimit)
	if err != nil {
		slog.Warn("Search fallback failed", "value", value, "err", err)
		return nil
	}
	candidates := make([]Candidate, 0, len(hits))
	for i, hit := range hits {
		candidates = append(candidates, Candidate{
			ID:            hit.ID,
			Name:          hit.Label,
			Description:   hit.Description,
			URL:           e.entityBaseURL + hit.ID,
			OriginalScore: positionScore(e.scoring.SearchBase, e.scoring, i),
			Fallback:      true,
		})
	}
	return candidates
}

// warnFormatViolations checks the literal value against the property's
// format constraints. Violations are a logged warning, never a block: the
// value may still reconcile fine.
func (e *Engine) warnFormatViolations(req Request, formats []propcache.FormatConstraint) {
	for _, fc := range formats {
		re, err := regexp.Compile(fc.Regex)
		if err != nil {
			slog.Debug("Skipping uncompilable format constraint", "property", req.Property.ID, "regex", fc.Regex)
			continue
		}
		if !re.MatchString(req.Value) {
			slog.Warn("Value violates format constraint",
				"item", req.ItemID, "property", req.Property.ID,
				"value", req.Value, "constraint", fc.Description)
		}
	}
}

// typeFilterFrom derives the candidate type filter from the property's
// value-type constraints; with none declared, no filter is applied.
func typeFilterFrom(constraints propcache.Constraints) string {
	for _, vt := range constraints.ValueType {
		if len(vt.Classes) > 0 {
			return vt.Classes[0]
		}
	}
	return ""
}

// positionScore is the strictly decreasing substitute score for services
// that report none: base − step×index, floored.
func positionScore(base float64, scoring config.ScoringConfig, index int) float64 {
	score := base - scoring.PositionStep*float64(index)
	if score < scoring.PositionFloor {
		return scoring.PositionFloor
	}
	return score
}

// scoreAndSort applies constraint adjustment and ranks candidates by
// adjusted score, ties keeping original service order.
func (e *Engine) scoreAndSort(candidates []Candidate, constraints propcache.Constraints) {
	for i := range candidates {
		candidates[i].ConstraintScore = constraintAdjustment(candidates[i], constraints, e.scoring)
		score := candidates[i].OriginalScore + candidates[i].ConstraintScore
		if score > 100 {
			score = 100
		}
		if score < 0 {
			score = 0
		}
		candidates[i].Score = score
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].Score > candidates[b].Score
	})
}

// constraintAdjustment rewards candidates whose types satisfy a value-type
// constraint and penalizes those that satisfy none when constraints exist.
// Candidates with no type data are left alone: absence of evidence is not a
// mismatch.
func constraintAdjustment(c Candidate, constraints propcache.Constraints, scoring config.ScoringConfig) float64 {
	if len(constraints.ValueType) == 0 || len(c.Types) == 0 {
		return 0
	}
	for _, vt := range constraints.ValueType {
		for _, class := range vt.Classes {
			for _, t := range c.Types {
				if t == class {
					return scoring.TypeMatchBonus
				}
			}
		}
	}
	return -scoring.TypeMismatchPenalty
}
