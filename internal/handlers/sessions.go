package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/glam-tools/wikimapper/internal/analyzer"
	"github.com/glam-tools/wikimapper/internal/storage"
	"github.com/google/uuid"
)

type createSessionRequest struct {
	// Records is the raw dataset; the analyzer derives key records from it
	Records []analyzer.Record `json:"records"`
	// IgnorePatterns overrides the configured defaults when non-nil
	IgnorePatterns []string `json:"ignorePatterns"`
	EntitySchema   string   `json:"entitySchema"`
}

type sessionResponse struct {
	ID          string    `json:"id"`
	DatasetKeys []string  `json:"datasetKeys"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (h *Handler) HandleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		sessions := h.sessionStore.GetAll()
		sessionList := make([]sessionResponse, 0, len(sessions))
		for _, session := range sessions {
			sessionList = append(sessionList, sessionResponse{
				ID:          session.ID,
				DatasetKeys: session.DatasetKeys,
				CreatedAt:   session.CreatedAt,
			})
		}
		h.writeJSON(w, sessionList)
	case "POST":
		h.createSession(w, r)
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// createSession analyzes the posted records, classifies every key and runs
// the automatic injections, then returns the new session.
func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.Records) == 0 {
		h.writeError(w, "No records supplied", http.StatusBadRequest)
		return
	}

	keys := analyzer.Analyze(req.Records)
	ignorePatterns := h.cfg.Mapping.IgnorePatterns
	if req.IgnorePatterns != nil {
		ignorePatterns = req.IgnorePatterns
	}

	session := storage.NewMappingSession(uuid.NewString())
	session.Records = req.Records
	for _, k := range keys {
		session.DatasetKeys = append(session.DatasetKeys, k.Key)
	}
	session.State.SetEntitySchema(req.EntitySchema)
	session.State.Classify(keys, ignorePatterns)
	session.State.AutoInjectMetadataFields()
	session.State.AutoInjectRequiredTypeProperty(r.Context(), h.cache, h.cfg.Mapping.RequiredTypeProperty)

	h.sessionStore.Set(session.ID, session)
	h.writeJSON(w, sessionResponse{
		ID:          session.ID,
		DatasetKeys: session.DatasetKeys,
		CreatedAt:   session.CreatedAt,
	})
}

// HandleSessionDetail routes /api/sessions/{id}[/...] to the per-session
// operations.
func (h *Handler) HandleSessionDetail(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	sessionID, sub, _ := strings.Cut(rest, "/")

	session, ok := h.getSessionOrError(w, sessionID)
	if !ok {
		return
	}

	switch sub {
	case "":
		switch r.Method {
		case "GET":
			h.writeJSON(w, sessionResponse{ID: session.ID, DatasetKeys: session.DatasetKeys, CreatedAt: session.CreatedAt})
		case "DELETE":
			h.sessionStore.Delete(session.ID)
			w.WriteHeader(http.StatusNoContent)
		default:
			h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case "mapping":
		h.handleMapping(w, r, session)
	case "move":
		h.handleMove(w, r, session)
	case "manual":
		h.handleManual(w, r, session)
	case "context":
		h.handleContext(w, r, session)
	case "reconcile":
		h.handleReconcile(w, r, session)
	case "cursor":
		h.handleCursor(w, r, session)
	case "schema":
		h.handleSchema(w, r, session)
	default:
		h.writeError(w, "Unknown resource", http.StatusNotFound)
	}
}

func (h *Handler) handleCursor(w http.ResponseWriter, r *http.Request, session *storage.MappingSession) {
	if r.Method != "GET" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if key, ok := session.Cursor(); ok {
		h.writeJSON(w, key)
		return
	}
	h.writeJSON(w, struct{}{})
}
