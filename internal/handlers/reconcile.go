package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/glam-tools/wikimapper/internal/analyzer"
	"github.com/glam-tools/wikimapper/internal/mapping"
	"github.com/glam-tools/wikimapper/internal/recon"
	"github.com/glam-tools/wikimapper/internal/storage"
)

type reconcileRequest struct {
	ItemID     string                  `json:"itemId"`
	PropertyID string                  `json:"propertyId"`
	ValueIndex int                     `json:"valueIndex"`
	Value      string                  `json:"value"`
	Context    []recon.ContextProperty `json:"context,omitempty"`
	// Next names the cell the UI wants the cursor moved to after an
	// auto-accepted match; the move is deferred and cancellable
	Next *recon.CellKey `json:"next,omitempty"`
}

type selectRequest struct {
	ItemID     string          `json:"itemId"`
	PropertyID string          `json:"propertyId"`
	ValueIndex int             `json:"valueIndex"`
	Match      recon.Candidate `json:"match"`
	Skip       bool            `json:"skip,omitempty"`
}

// handleReconcile runs the matching engine for one cell (POST) or records a
// manual selection/skip (PUT).
func (h *Handler) handleReconcile(w http.ResponseWriter, r *http.Request, session *storage.MappingSession) {
	switch r.Method {
	case "POST":
		h.reconcileCell(w, r, session)
	case "PUT":
		h.selectMatch(w, r, session)
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) reconcileCell(w http.ResponseWriter, r *http.Request, session *storage.MappingSession) {
	var req reconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.PropertyID == "" || req.ItemID == "" {
		h.writeError(w, "itemId and propertyId are required", http.StatusBadRequest)
		return
	}

	property, err := h.cache.GetPropertyInfo(r.Context(), req.PropertyID)
	if err != nil {
		h.writeError(w, "Unknown property "+req.PropertyID, http.StatusBadRequest)
		return
	}

	// no caller-supplied context: derive it from the record's sibling
	// mapped fields
	if len(req.Context) == 0 {
		req.Context = deriveContext(session, req.ItemID, req.PropertyID)
	}

	engine := h.engineFor(session)
	result, err := engine.Reconcile(r.Context(), recon.Request{
		ItemID:     req.ItemID,
		Property:   property,
		ValueIndex: req.ValueIndex,
		Value:      req.Value,
		Context:    req.Context,
	})
	if err != nil {
		h.writeError(w, "Reconciliation cancelled: "+err.Error(), http.StatusRequestTimeout)
		return
	}

	if result.AutoAccepted != nil && req.Next != nil {
		next := *req.Next
		session.Advancer.Schedule(h.cfg.Reconcile.AutoAdvanceDelay, func() {
			session.SetCursor(next)
		})
	}
	h.writeJSON(w, result)
}

func (h *Handler) selectMatch(w http.ResponseWriter, r *http.Request, session *storage.MappingSession) {
	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	key := recon.CellKey{ItemID: req.ItemID, Property: req.PropertyID, ValueIndex: req.ValueIndex}

	// a manual decision supersedes any pending auto-advance
	session.Advancer.Cancel()

	if req.Skip {
		session.Cells.Skip(key)
	} else {
		session.Cells.Select(key, req.Match)
	}
	cell, _ := session.Cells.Get(key)
	h.writeJSON(w, cell)
}

// deriveContext pairs the values the item's record holds under its other
// mapped keys with those keys' property ids.
func deriveContext(session *storage.MappingSession, itemID, propertyID string) []recon.ContextProperty {
	record, ok := recordByItemID(session.Records, itemID)
	if !ok {
		return nil
	}
	mapped := session.State.Snapshot().Mapped
	return analyzer.ContextFor(record, mapped, keyForProperty(mapped, propertyID))
}

func recordByItemID(records []analyzer.Record, itemID string) (analyzer.Record, bool) {
	for i, record := range records {
		if analyzer.ItemID(record, i) == itemID {
			return record, true
		}
	}
	return nil, false
}

func keyForProperty(mapped []mapping.MappedKey, propertyID string) string {
	for _, mk := range mapped {
		if mk.Property.ID == propertyID {
			return mk.Key
		}
	}
	return ""
}
