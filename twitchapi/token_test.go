package twitchapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestTokenSourceFetchesAndCaches(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.Form.Get("grant_type") != "client_credentials" {
			t.Errorf("grant_type = %s", r.Form.Get("grant_type"))
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "fresh-token", "expires_in": 3600, "token_type": "bearer",
		})
	}))
	defer server.Close()

	ts := &TokenSource{ClientID: "id", ClientSecret: "sec", TokenURL: server.URL}
	for i := 0; i < 3; i++ {
		tok, err := ts.Get(context.Background())
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if tok != "fresh-token" {
			t.Errorf("token = %s", tok)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("token endpoint hit %d times, want 1 (cached)", got)
	}
}

func TestTokenSourceErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"status":403,"message":"invalid client secret"}`, http.StatusForbidden)
	}))
	defer server.Close()

	ts := &TokenSource{ClientID: "id", ClientSecret: "bad", TokenURL: server.URL}
	if _, err := ts.Get(context.Background()); err == nil {
		t.Error("expected error on 403")
	}

	empty := &TokenSource{TokenURL: server.URL}
	if _, err := empty.Get(context.Background()); err == nil {
		t.Error("expected error for missing credentials")
	}
}
