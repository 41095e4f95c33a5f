package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/onnwee/chatdeck/chat"
)

// chatSendRequest is the POST /chat/send body. A positive amount marks the
// message as a donation.
type chatSendRequest struct {
	Text   string `json:"text"`
	Amount int    `json:"amount,omitempty"`
}

// HandleChatSend serves POST /chat/send: outbound text runs through the
// composer (trigger parsing, placeholder substitution) before reaching the
// session. Returns 202 on accept, 409 when the session is not connected, and
// 403 when the identity cannot send.
func (h *Handlers) HandleChatSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.composer == nil {
		http.Error(w, "chat unavailable", http.StatusServiceUnavailable)
		return
	}
	var req chatSendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}

	var err error
	if req.Amount > 0 {
		err = h.composer.SendDonation(r.Context(), req.Text, req.Amount, nil)
	} else {
		err = h.composer.SendChat(r.Context(), req.Text, nil)
	}
	switch {
	case errors.Is(err, chat.ErrNotConnected):
		http.Error(w, "session not connected", http.StatusConflict)
	case errors.Is(err, chat.ErrNotAuthenticated):
		http.Error(w, "not authenticated", http.StatusForbidden)
	case err != nil:
		http.Error(w, "send failed", http.StatusInternalServerError)
	default:
		w.WriteHeader(http.StatusAccepted)
	}
}
