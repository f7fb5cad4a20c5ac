package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/glam-tools/wikimapper/internal/propcache"
	"github.com/glam-tools/wikimapper/internal/wikibase"
)

type propertyResponse struct {
	propcache.PropertyRecord
	Constraints propcache.Constraints `json:"constraints"`
}

// HandleProperty serves property metadata plus classified constraints for
// /api/properties/{id}.
func (h *Handler) HandleProperty(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/properties/")
	if id == "" {
		h.writeError(w, "Property id required", http.StatusBadRequest)
		return
	}

	record, err := h.cache.GetPropertyInfo(r.Context(), id)
	if err != nil {
		var notFound *wikibase.NotFoundError
		if errors.As(err, &notFound) {
			h.writeError(w, err.Error(), http.StatusNotFound)
			return
		}
		h.writeError(w, "Property lookup failed: "+err.Error(), http.StatusBadGateway)
		return
	}

	h.writeJSON(w, propertyResponse{
		PropertyRecord: record,
		Constraints:    h.cache.GetPropertyConstraints(r.Context(), id),
	})
}
