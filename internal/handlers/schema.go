package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/glam-tools/wikimapper/internal/schema"
	"github.com/glam-tools/wikimapper/internal/storage"
)

// handleSchema exports (GET) or imports (POST) the session's mapping
// document.
func (h *Handler) handleSchema(w http.ResponseWriter, r *http.Request, session *storage.MappingSession) {
	switch r.Method {
	case "GET":
		data, err := schema.Marshal(schema.Serialize(session.State))
		if err != nil {
			h.writeError(w, "Failed to serialize mapping: "+err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", `attachment; filename="mapping.json"`)
		if _, err := w.Write(data); err != nil {
			h.writeError(w, "Failed to write document", http.StatusInternalServerError)
		}
	case "POST":
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 10<<20))
		if err != nil {
			h.writeError(w, "Failed to read document: "+err.Error(), http.StatusBadRequest)
			return
		}
		if _, err := schema.Deserialize(data, session.DatasetKeys, session.State); err != nil {
			var formatErr *schema.FormatError
			if errors.As(err, &formatErr) {
				// a corrupt import never partially loads; name the problem
				h.writeError(w, formatErr.Error(), http.StatusUnprocessableEntity)
				return
			}
			h.writeError(w, "Import failed: "+err.Error(), http.StatusInternalServerError)
			return
		}
		h.writeJSON(w, session.State.Snapshot())
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
