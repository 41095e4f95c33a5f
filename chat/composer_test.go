package chat

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/onnwee/chatdeck/emotes"
	"github.com/onnwee/chatdeck/message"
)

// seedFetcher serves a fixed global list and fails remote search so Search
// exercises the local index scan.
type seedFetcher struct {
	global []emotes.Emote
}

func (f seedFetcher) GlobalEmotes(context.Context) ([]emotes.Emote, error) {
	return f.global, nil
}
func (seedFetcher) ChannelEmotes(context.Context, string) ([]emotes.Emote, error) {
	return nil, nil
}
func (seedFetcher) TierEmotes(context.Context, string) ([]emotes.Emote, error) {
	return nil, nil
}
func (seedFetcher) SearchEmotes(context.Context, string) ([]emotes.Emote, error) {
	return nil, errSearchDown
}

var errSearchDown = errors.New("search down")

func seededCatalog(t *testing.T) *emotes.Catalog {
	t.Helper()
	cat := emotes.NewCatalog(seedFetcher{global: []emotes.Emote{
		{ID: "e1", Code: ":smile:", Name: "Smile", Source: emotes.TierGlobal},
		{ID: "e2", Code: ":smirk:", Name: "Smirk", Source: emotes.TierGlobal},
	}})
	cat.FetchGlobal(context.Background(), false)
	return cat
}

func connectedComposer(t *testing.T) (*Composer, *fakeTransport) {
	t.Helper()
	f := &fakeFactory{}
	s := NewSession(f.factory(), Hooks{})
	if err := s.Open(context.Background(), "chanA", authedIdentity()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(s.Close)
	tr := f.created[0]
	tr.push(Event{Kind: EventConnected})
	waitFor(t, "connected state", func() bool { return s.State() == Connected })

	cat := seededCatalog(t)
	c := NewComposer(s, message.NewPipeline(cat, nil), cat, 5*time.Millisecond, 5*time.Millisecond)
	return c, tr
}

func TestComposerSendChatSubstitutesTriggers(t *testing.T) {
	c, tr := connectedComposer(t)
	if err := c.SendChat(context.Background(), "hi :smile: there", nil); err != nil {
		t.Fatalf("SendChat: %v", err)
	}
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if len(tr.sent) != 1 {
		t.Fatalf("transport saw %d sends, want 1", len(tr.sent))
	}
	out := tr.sent[0]
	if out.Kind != OutboundChat {
		t.Errorf("kind = %s, want chat", out.Kind)
	}
	want := "hi " + message.Placeholder("e1") + " there"
	if out.Text != want {
		t.Errorf("text = %q, want %q", out.Text, want)
	}
	if len(out.EmoteIDs) != 1 || out.EmoteIDs[0] != "e1" {
		t.Errorf("emote ids = %v, want [e1]", out.EmoteIDs)
	}
}

func TestComposerSendChatEmptyTextIsNoop(t *testing.T) {
	c, tr := connectedComposer(t)
	if err := c.SendChat(context.Background(), "   ", nil); err != nil {
		t.Fatalf("SendChat: %v", err)
	}
	if tr.sentCount() != 0 {
		t.Errorf("transport saw %d sends, want 0", tr.sentCount())
	}
}

func TestComposerSendDonationCarriesAmount(t *testing.T) {
	c, tr := connectedComposer(t)
	if err := c.SendDonation(context.Background(), ":smirk: gg", 50, nil); err != nil {
		t.Fatalf("SendDonation: %v", err)
	}
	tr.mu.Lock()
	defer tr.mu.Unlock()
	out := tr.sent[0]
	if out.Kind != OutboundDonation || out.Amount != 50 {
		t.Errorf("got kind=%s amount=%d, want donation/50", out.Kind, out.Amount)
	}
	if out.Text != message.Placeholder("e2")+" gg" {
		t.Errorf("text = %q, want placeholder prefix", out.Text)
	}
}

func TestComposerSendSurfacesSessionErrors(t *testing.T) {
	cat := seededCatalog(t)
	f := &fakeFactory{}
	s := NewSession(f.factory(), Hooks{})
	c := NewComposer(s, message.NewPipeline(cat, nil), cat, time.Millisecond, time.Millisecond)
	if err := c.SendChat(context.Background(), "hi", nil); !errors.Is(err, ErrNotConnected) {
		t.Errorf("SendChat while closed = %v, want ErrNotConnected", err)
	}
}

func TestComposerQueueSearchDebounces(t *testing.T) {
	cat := seededCatalog(t)
	c := NewComposer(nil, message.NewPipeline(cat, nil), cat, 10*time.Millisecond, time.Millisecond)

	var fired atomic.Int64
	var hits atomic.Int64
	// A typing burst: only the final query may run.
	c.QueueSearch(context.Background(), "s", func([]emotes.Emote) { fired.Add(1) })
	c.QueueSearch(context.Background(), "sm", func([]emotes.Emote) { fired.Add(1) })
	c.QueueSearch(context.Background(), "smi", func(got []emotes.Emote) {
		fired.Add(1)
		hits.Store(int64(len(got)))
	})
	waitFor(t, "debounced search fire", func() bool { return fired.Load() == 1 })
	time.Sleep(30 * time.Millisecond)
	if fired.Load() != 1 {
		t.Errorf("search fired %d times across burst, want 1", fired.Load())
	}
	if hits.Load() != 2 {
		t.Errorf("search hits = %d, want 2 (smile, smirk)", hits.Load())
	}
}

func TestComposerCancelSearch(t *testing.T) {
	cat := seededCatalog(t)
	c := NewComposer(nil, message.NewPipeline(cat, nil), cat, 5*time.Millisecond, time.Millisecond)
	var fired atomic.Int64
	c.QueueSearch(context.Background(), "smi", func([]emotes.Emote) { fired.Add(1) })
	c.CancelSearch()
	time.Sleep(20 * time.Millisecond)
	if fired.Load() != 0 {
		t.Errorf("canceled search fired %d times", fired.Load())
	}
}

func TestComposerHoverPreview(t *testing.T) {
	cat := seededCatalog(t)
	c := NewComposer(nil, message.NewPipeline(cat, nil), cat, time.Millisecond, 5*time.Millisecond)

	type result struct {
		e  emotes.Emote
		ok bool
	}
	got := make(chan result, 1)
	c.QueueHoverPreview(":smile:", func(e emotes.Emote, ok bool) {
		got <- result{e, ok}
	})
	select {
	case r := <-got:
		if !r.ok || r.e.ID != "e1" {
			t.Errorf("hover resolved (%v, %t), want e1", r.e, r.ok)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("hover preview never fired")
	}

	// Moving off the target before the delay suppresses the preview.
	fired := make(chan struct{}, 1)
	c.QueueHoverPreview(":smirk:", func(emotes.Emote, bool) { fired <- struct{}{} })
	c.CancelHover()
	select {
	case <-fired:
		t.Error("canceled hover preview fired")
	case <-time.After(20 * time.Millisecond):
	}
}
