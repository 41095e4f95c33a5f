package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/onnwee/chatdeck/chat"
	"github.com/onnwee/chatdeck/emotes"
	"github.com/onnwee/chatdeck/message"
)

// staticFetcher serves a fixed emote set; search fails so the catalog falls
// back to its local index.
type staticFetcher struct {
	global    []emotes.Emote
	searchErr error
	search    []emotes.Emote
}

func (f *staticFetcher) GlobalEmotes(ctx context.Context) ([]emotes.Emote, error) {
	return f.global, nil
}

func (f *staticFetcher) ChannelEmotes(ctx context.Context, channelID string) ([]emotes.Emote, error) {
	return nil, nil
}

func (f *staticFetcher) TierEmotes(ctx context.Context, tierName string) ([]emotes.Emote, error) {
	return nil, nil
}

func (f *staticFetcher) SearchEmotes(ctx context.Context, query string) ([]emotes.Emote, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.search, nil
}

// stubTransport records what the session sends; events pushed on its channel
// drive the dispatch loop.
type stubTransport struct {
	mu     sync.Mutex
	events chan chat.Event
	sent   []chat.Outbound
}

func (tr *stubTransport) Open(ctx context.Context, channelID string) (<-chan chat.Event, error) {
	return tr.events, nil
}

func (tr *stubTransport) Send(ctx context.Context, out chat.Outbound) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.sent = append(tr.sent, out)
	return nil
}

func (tr *stubTransport) Close() error { return nil }

func (tr *stubTransport) sentCount() int {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return len(tr.sent)
}

func testCatalog(t *testing.T) *emotes.Catalog {
	t.Helper()
	fetcher := &staticFetcher{
		global: []emotes.Emote{
			{ID: "e1", Code: ":smile:", Name: "smile", Source: emotes.TierGlobal},
			{ID: "e2", Code: ":smirk:", Name: "smirk", Source: emotes.TierGlobal},
			{ID: "e3", Code: ":wave:", Name: "wave", Source: emotes.TierGlobal},
		},
		searchErr: errors.New("search unavailable"),
	}
	catalog := emotes.NewCatalog(fetcher)
	catalog.FetchGlobal(context.Background(), false)
	return catalog
}

func testHandlers(t *testing.T) *Handlers {
	t.Helper()
	catalog := testCatalog(t)
	recent := emotes.NewRecencyTracker(context.Background(), nil, "test")
	recent.Add(context.Background(), emotes.Emote{ID: "e1", Code: ":smile:"})
	return NewHandlers(nil, nil, nil, catalog, recent, nil, "test", "testchannel")
}

// connectedComposer returns a composer over a session wired to a stub
// transport, driven into the connected state.
func connectedComposer(t *testing.T, catalog *emotes.Catalog) (*chat.Composer, *stubTransport) {
	t.Helper()
	tr := &stubTransport{events: make(chan chat.Event, 4)}
	session := chat.NewSession(func(chat.Identity) chat.Transport { return tr }, chat.Hooks{})
	id := chat.Identity{UserID: "u1", Username: "viewer", Token: "oauth:tok"}
	if err := session.Open(context.Background(), "chan1", id); err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	tr.events <- chat.Event{Kind: chat.EventConnected}
	deadline := time.Now().Add(2 * time.Second)
	for session.State() != chat.Connected {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for connected state")
		}
		time.Sleep(2 * time.Millisecond)
	}
	pipeline := message.NewPipeline(catalog, nil)
	return chat.NewComposer(session, pipeline, catalog, time.Millisecond, time.Millisecond), tr
}

func newTestMux(t *testing.T) http.Handler {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewMux(ctx, testHandlers(t))
}

func decodeEmoteList(t *testing.T, body []byte) []emotes.Emote {
	t.Helper()
	var resp struct {
		Data []emotes.Emote `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("decode response: %v (%s)", err, body)
	}
	return resp.Data
}

func TestHealthzOK(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	newTestMux(t).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body=%s", rr.Code, rr.Body.String())
	}
	if got := rr.Body.String(); got != "ok" {
		t.Fatalf("expected ok body, got %q", got)
	}
}

func TestReadyz(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rr := httptest.NewRecorder()
	newTestMux(t).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body=%s", rr.Code, rr.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["status"] != "ready" {
		t.Errorf("status = %q", resp["status"])
	}
}

func TestStatus(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rr := httptest.NewRecorder()
	newTestMux(t).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["channel"] != "testchannel" {
		t.Errorf("channel = %v", resp["channel"])
	}
	if size, ok := resp["catalog_size"].(float64); !ok || size != 3 {
		t.Errorf("catalog_size = %v", resp["catalog_size"])
	}
	if n, ok := resp["recent_emotes"].(float64); !ok || n != 1 {
		t.Errorf("recent_emotes = %v", resp["recent_emotes"])
	}
}

func TestEmoteSearchLocalFallback(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/emotes/search?q=smi", nil)
	rr := httptest.NewRecorder()
	newTestMux(t).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body=%s", rr.Code, rr.Body.String())
	}
	got := decodeEmoteList(t, rr.Body.Bytes())
	if len(got) != 2 {
		t.Fatalf("results = %d, want 2 (smile, smirk)", len(got))
	}
}

func TestEmoteSearchEmptyQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/emotes/search", nil)
	rr := httptest.NewRecorder()
	newTestMux(t).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got := decodeEmoteList(t, rr.Body.Bytes()); len(got) != 0 {
		t.Errorf("empty query should return empty list, got %d", len(got))
	}
}

func TestEmoteSearchLimit(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/emotes/search?q=s&limit=1", nil)
	rr := httptest.NewRecorder()
	newTestMux(t).ServeHTTP(rr, req)

	if got := decodeEmoteList(t, rr.Body.Bytes()); len(got) != 1 {
		t.Errorf("limit=1 should cap results, got %d", len(got))
	}
}

func TestEmotesRecent(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/emotes/recent", nil)
	rr := httptest.NewRecorder()
	newTestMux(t).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	got := decodeEmoteList(t, rr.Body.Bytes())
	if len(got) != 1 || got[0].ID != "e1" {
		t.Errorf("recent = %+v", got)
	}
}

func TestEmoteCodes(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/emotes/codes", nil)
	rr := httptest.NewRecorder()
	newTestMux(t).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp struct {
		Data []string `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []string{":smile:", ":smirk:", ":wave:"}
	if len(resp.Data) != len(want) {
		t.Fatalf("codes = %v, want %v", resp.Data, want)
	}
	for i, c := range want {
		if resp.Data[i] != c {
			t.Errorf("codes[%d] = %q, want %q", i, resp.Data[i], c)
		}
	}
}

func TestChatSendSubstitutesTriggers(t *testing.T) {
	catalog := testCatalog(t)
	composer, tr := connectedComposer(t, catalog)
	h := NewHandlers(nil, nil, composer, catalog, nil, nil, "test", "testchannel")
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	mux := NewMux(ctx, h)

	req := httptest.NewRequest(http.MethodPost, "/chat/send", strings.NewReader(`{"text":":smile: hi"}`))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d, body=%s", rr.Code, rr.Body.String())
	}
	if tr.sentCount() != 1 {
		t.Fatalf("sent = %d, want 1", tr.sentCount())
	}
	tr.mu.Lock()
	out := tr.sent[0]
	tr.mu.Unlock()
	wantText := message.Placeholder("e1") + " hi"
	if out.Text != wantText {
		t.Errorf("text = %q, want %q", out.Text, wantText)
	}
	if len(out.EmoteIDs) != 1 || out.EmoteIDs[0] != "e1" {
		t.Errorf("emote ids = %v, want [e1]", out.EmoteIDs)
	}
	if out.Kind != chat.OutboundChat {
		t.Errorf("kind = %v, want chat", out.Kind)
	}
}

func TestChatSendDonation(t *testing.T) {
	catalog := testCatalog(t)
	composer, tr := connectedComposer(t, catalog)
	h := NewHandlers(nil, nil, composer, catalog, nil, nil, "test", "testchannel")
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	mux := NewMux(ctx, h)

	req := httptest.NewRequest(http.MethodPost, "/chat/send", strings.NewReader(`{"text":"cheer!","amount":100}`))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rr.Code)
	}
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if len(tr.sent) != 1 || tr.sent[0].Kind != chat.OutboundDonation || tr.sent[0].Amount != 100 {
		t.Errorf("sent = %+v, want donation with amount 100", tr.sent)
	}
}

func TestChatSendRejections(t *testing.T) {
	mux := newTestMux(t) // composer is nil

	req := httptest.NewRequest(http.MethodPost, "/chat/send", strings.NewReader(`{"text":"hi"}`))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("nil composer = %d, want 503", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/chat/send", nil)
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET = %d, want 405", rr.Code)
	}
}

func TestChatSendNotConnected(t *testing.T) {
	catalog := testCatalog(t)
	session := chat.NewSession(func(chat.Identity) chat.Transport {
		return &stubTransport{events: make(chan chat.Event)}
	}, chat.Hooks{})
	composer := chat.NewComposer(session, message.NewPipeline(catalog, nil), catalog, time.Millisecond, time.Millisecond)
	h := NewHandlers(nil, nil, composer, catalog, nil, nil, "test", "testchannel")
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	mux := NewMux(ctx, h)

	req := httptest.NewRequest(http.MethodPost, "/chat/send", strings.NewReader(`{"text":"hi"}`))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusConflict {
		t.Errorf("disconnected send = %d, want 409", rr.Code)
	}
}

func TestChatSendBadBody(t *testing.T) {
	catalog := testCatalog(t)
	composer, _ := connectedComposer(t, catalog)
	h := NewHandlers(nil, nil, composer, catalog, nil, nil, "test", "testchannel")
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	mux := NewMux(ctx, h)

	for _, body := range []string{`{`, `{"text":"   "}`} {
		req := httptest.NewRequest(http.MethodPost, "/chat/send", strings.NewReader(body))
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("body %q = %d, want 400", body, rr.Code)
		}
	}
}

func TestPrefsGetDefaultsWithoutStore(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/prefs", nil)
	rr := httptest.NewRecorder()
	newTestMux(t).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var prefs struct {
		ShowTimestamps bool    `json:"show_timestamps"`
		ShowBadges     bool    `json:"show_badges"`
		CompactMode    bool    `json:"compact_mode"`
		FontScale      float64 `json:"font_scale"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &prefs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !prefs.ShowTimestamps || !prefs.ShowBadges || prefs.CompactMode || prefs.FontScale != 1.0 {
		t.Errorf("prefs = %+v, want defaults", prefs)
	}
}

func TestPrefsPutWithoutStore(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/prefs", strings.NewReader(`{"compact_mode":true}`))
	rr := httptest.NewRecorder()
	newTestMux(t).ServeHTTP(rr, req)
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("PUT without store = %d, want 503", rr.Code)
	}
}

func TestPrefsRejectsPost(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/prefs", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()
	newTestMux(t).ServeHTTP(rr, req)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /prefs = %d, want 405", rr.Code)
	}
}

func TestEmoteEndpointsRejectPost(t *testing.T) {
	for _, path := range []string{"/emotes/search?q=x", "/emotes/recent", "/emotes/codes"} {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		rr := httptest.NewRecorder()
		newTestMux(t).ServeHTTP(rr, req)
		if rr.Code != http.StatusMethodNotAllowed {
			t.Errorf("POST %s = %d, want 405", path, rr.Code)
		}
	}
}

func TestCorrelationIDHeader(t *testing.T) {
	mux := newTestMux(t)

	// Generated when absent.
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Header().Get("X-Correlation-ID") == "" {
		t.Error("expected generated correlation id header")
	}

	// Echoed when provided.
	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Correlation-ID", "corr-123")
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if got := rr.Header().Get("X-Correlation-ID"); got != "corr-123" {
		t.Errorf("correlation id = %q, want corr-123", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/status", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rr := httptest.NewRecorder()
	newTestMux(t).ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("preflight = %d, want 204", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("missing Access-Control-Allow-Origin header")
	}
}

func TestStartAndShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- Start(ctx, testHandlers(t), ":0") }()

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("server returned error: %v", err)
	}
}
