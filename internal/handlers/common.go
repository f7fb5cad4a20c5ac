package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/glam-tools/wikimapper/internal/config"
	"github.com/glam-tools/wikimapper/internal/propcache"
	"github.com/glam-tools/wikimapper/internal/recon"
	"github.com/glam-tools/wikimapper/internal/storage"
	"github.com/glam-tools/wikimapper/internal/wikibase"
)

// Handler serves the mapping API consumed by the wizard UI.
type Handler struct {
	cfg          *config.Config
	sessionStore *storage.SessionStore
	client       *wikibase.Client
	cache        *propcache.Cache
}

// New wires the handler's collaborators from configuration.
func New(cfg *config.Config) *Handler {
	client := wikibase.NewClient(cfg.Wikibase.APIURL, cfg.Wikibase.Language)
	return &Handler{
		cfg:          cfg,
		sessionStore: storage.New(),
		client:       client,
		cache:        propcache.New(client, cfg.Cache.TTL, cfg.Wikibase.ConstraintProperty),
	}
}

// Shutdown closes every session so pending deferred actions become no-ops.
func (h *Handler) Shutdown() {
	for id := range h.sessionStore.GetAll() {
		h.sessionStore.Delete(id)
	}
}

// engineFor builds a matching engine bound to the session's cell store. The
// engine itself is stateless beyond the cells, so a fresh one per request is
// fine.
func (h *Handler) engineFor(session *storage.MappingSession) *recon.Engine {
	return recon.NewEngine(h.cfg, h.client, h.cache, session.Cells)
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	slog.Error(message)
	http.Error(w, message, code)
}

// Session helpers
func (h *Handler) getSessionOrError(w http.ResponseWriter, sessionID string) (*storage.MappingSession, bool) {
	session, exists := h.sessionStore.Get(sessionID)
	if !exists {
		h.writeError(w, "Session not found", http.StatusNotFound)
		return nil, false
	}
	return session, true
}
