package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/onnwee/chatdeck/emotes"
)

// HandleEmoteSearch serves GET /emotes/search?q=...&limit=N. Results come
// from the catalog's remote search with local-index fallback, so a remote
// outage degrades to substring matching instead of failing.
func (h *Handlers) HandleEmoteSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.catalog == nil {
		writeEmoteList(w, nil)
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeEmoteList(w, nil)
		return
	}
	results := h.catalog.Search(r.Context(), query)
	if limit := parseIntQuery(r, "limit", 0); limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	writeEmoteList(w, results)
}

// HandleEmotesRecent serves GET /emotes/recent: the viewer's bounded
// most-recently-used list, newest first.
func (h *Handlers) HandleEmotesRecent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.recent == nil {
		writeEmoteList(w, nil)
		return
	}
	writeEmoteList(w, h.recent.Get())
}

// HandleEmoteCodes serves GET /emotes/codes: the sorted trigger codes in the
// catalog index, for composer autocomplete.
func (h *Handlers) HandleEmoteCodes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	codes := []string{}
	if h.catalog != nil {
		codes = h.catalog.Codes()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"data": codes})
}

func writeEmoteList(w http.ResponseWriter, list []emotes.Emote) {
	if list == nil {
		list = []emotes.Emote{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"data": list})
}
