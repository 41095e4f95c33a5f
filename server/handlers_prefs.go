package server

import (
	"encoding/json"
	"net/http"

	"github.com/onnwee/chatdeck/db"
)

// HandlePrefs serves the viewer display preferences. GET returns the stored
// prefs (defaults when nothing is persisted), PUT replaces them. Persistence
// is best-effort; without a store GET still answers with defaults.
func (h *Handlers) HandlePrefs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handlePrefsGet(w, r)
	case http.MethodPut:
		h.handlePrefsPut(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handlers) handlePrefsGet(w http.ResponseWriter, r *http.Request) {
	prefs := db.DefaultViewerPrefs()
	if h.prefs != nil {
		loaded, err := h.prefs.Load(r.Context(), h.profileKey)
		if err != nil {
			http.Error(w, "load failed", http.StatusInternalServerError)
			return
		}
		prefs = loaded
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(prefs)
}

func (h *Handlers) handlePrefsPut(w http.ResponseWriter, r *http.Request) {
	if h.prefs == nil {
		http.Error(w, "preferences unavailable", http.StatusServiceUnavailable)
		return
	}
	var prefs db.ViewerPrefs
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.prefs.Save(r.Context(), h.profileKey, prefs); err != nil {
		http.Error(w, "save failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
