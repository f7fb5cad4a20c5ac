package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/glam-tools/wikimapper/internal/mapping"
	"github.com/glam-tools/wikimapper/internal/storage"
)

// handleMapping serves the current partition snapshot.
func (h *Handler) handleMapping(w http.ResponseWriter, r *http.Request, session *storage.MappingSession) {
	if r.Method != "GET" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.writeJSON(w, session.State.Snapshot())
}

type moveRequest struct {
	Key    string           `json:"key"`
	Target mapping.Category `json:"target"`
	// PropertyID is required when the target is mapped
	PropertyID string `json:"propertyId,omitempty"`
	// Custom creates a mapping for a key not derived from the dataset
	Custom bool `json:"custom,omitempty"`
}

// handleMove reclassifies one key and returns the new partition.
func (h *Handler) handleMove(w http.ResponseWriter, r *http.Request, session *storage.MappingSession) {
	if r.Method != "POST" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	if req.Target == mapping.CategoryMapped {
		if req.PropertyID == "" {
			h.writeError(w, "propertyId is required when mapping a key", http.StatusBadRequest)
			return
		}
		property, err := h.cache.GetPropertyInfo(r.Context(), req.PropertyID)
		if err != nil {
			h.writeError(w, "Unknown property "+req.PropertyID, http.StatusBadRequest)
			return
		}
		if req.Custom {
			session.State.AddCustomMapping(req.Key, property)
		} else if _, err := session.State.MapKey(req.Key, property); err != nil {
			h.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
	} else {
		if err := session.State.MoveKey(req.Key, req.Target); err != nil {
			h.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	h.writeJSON(w, session.State.Snapshot())
}

type contextRequest struct {
	Key     string            `json:"key"`
	Context map[string]string `json:"context"`
}

// handleContext attaches (or clears) the contextual associations of a mapped
// or ignored key.
func (h *Handler) handleContext(w http.ResponseWriter, r *http.Request, session *storage.MappingSession) {
	if r.Method != "POST" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req contextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := session.State.SetContext(req.Key, mapping.ContextMapFromMap(req.Context)); err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.writeJSON(w, session.State.Snapshot())
}

type manualRequest struct {
	PropertyID   string `json:"propertyId"`
	DefaultValue string `json:"defaultValue"`
	IsRequired   bool   `json:"isRequired"`
}

// handleManual adds or removes manual properties.
func (h *Handler) handleManual(w http.ResponseWriter, r *http.Request, session *storage.MappingSession) {
	switch r.Method {
	case "POST":
		var req manualRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}
		property, err := h.cache.GetPropertyInfo(r.Context(), req.PropertyID)
		if err != nil {
			h.writeError(w, "Unknown property "+req.PropertyID, http.StatusBadRequest)
			return
		}
		mp := mapping.ManualProperty{
			Property:     property,
			DefaultValue: req.DefaultValue,
			IsRequired:   req.IsRequired,
		}
		if err := session.State.AddManualProperty(mp); err != nil {
			h.writeError(w, err.Error(), http.StatusConflict)
			return
		}
		h.writeJSON(w, session.State.Snapshot())
	case "DELETE":
		propertyID := r.URL.Query().Get("propertyId")
		if propertyID == "" {
			h.writeError(w, "propertyId query parameter required", http.StatusBadRequest)
			return
		}
		if err := session.State.RemoveManualProperty(propertyID); err != nil {
			h.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.writeJSON(w, session.State.Snapshot())
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
