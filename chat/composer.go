package chat

import (
	"context"
	"strings"
	"time"

	"github.com/onnwee/chatdeck/emotes"
	"github.com/onnwee/chatdeck/message"
)

// Composer is the input side of the chat client: outbound text passes through
// the emote pipeline before it reaches the session, and the interactive
// surfaces (picker search, hover preview) are debounced with the configured
// delays. One composer per session.
type Composer struct {
	session  *Session
	pipeline *message.Pipeline
	catalog  *emotes.Catalog

	searchDebounce time.Duration
	hoverDelay     time.Duration

	searchTimer DebounceTimer
	hoverTimer  DebounceTimer
}

// NewComposer wires a composer over the given session, pipeline, and catalog.
func NewComposer(session *Session, pipeline *message.Pipeline, catalog *emotes.Catalog, searchDebounce, hoverDelay time.Duration) *Composer {
	return &Composer{
		session:        session,
		pipeline:       pipeline,
		catalog:        catalog,
		searchDebounce: searchDebounce,
		hoverDelay:     hoverDelay,
	}
}

// SendChat parses trigger tokens in text, replaces them with placeholders,
// and forwards the result as a chat message. inScope is the caller's visible
// emote list, consulted before the catalog index; nil is fine.
func (c *Composer) SendChat(ctx context.Context, text string, inScope []emotes.Emote) error {
	out := c.parse(ctx, text, inScope)
	if out.Text == "" {
		return nil
	}
	out.Kind = OutboundChat
	return c.session.Send(ctx, out)
}

// SendDonation is SendChat for a paid message carrying amount tokens.
func (c *Composer) SendDonation(ctx context.Context, text string, amount int, inScope []emotes.Emote) error {
	out := c.parse(ctx, text, inScope)
	out.Kind = OutboundDonation
	out.Amount = amount
	return c.session.Send(ctx, out)
}

func (c *Composer) parse(ctx context.Context, text string, inScope []emotes.Emote) Outbound {
	text = strings.TrimSpace(text)
	parsed, used := c.pipeline.ParseOutgoing(ctx, text, inScope)
	ids := make([]string, 0, len(used))
	for _, e := range used {
		ids = append(ids, e.ID)
	}
	return Outbound{Text: parsed, EmoteIDs: ids}
}

// QueueSearch schedules a catalog search for query after the configured
// debounce; a newer call supersedes a pending one, so only the last query of
// a typing burst runs. deliver executes on the timer goroutine.
func (c *Composer) QueueSearch(ctx context.Context, query string, deliver func([]emotes.Emote)) {
	c.searchTimer.Reset(c.searchDebounce, func() {
		deliver(c.catalog.Search(ctx, query))
	})
}

// CancelSearch drops any pending search.
func (c *Composer) CancelSearch() {
	c.searchTimer.Cancel()
}

// QueueHoverPreview resolves code against the catalog index after the hover
// delay, for the emote detail popover. Moving off the target before the delay
// elapses must call CancelHover.
func (c *Composer) QueueHoverPreview(code string, deliver func(emotes.Emote, bool)) {
	c.hoverTimer.Start(c.hoverDelay, func() {
		e, ok := c.catalog.LookupByCode(code)
		deliver(e, ok)
	})
}

// CancelHover drops any pending hover preview.
func (c *Composer) CancelHover() {
	c.hoverTimer.Cancel()
}
