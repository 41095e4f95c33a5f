package chat

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/onnwee/chatdeck/emotes"
	"github.com/onnwee/chatdeck/message"
)

// ircQueueSize bounds the inbound event queue. The IRC reader blocks when the
// dispatch loop falls behind, which preserves arrival order.
const ircQueueSize = 256

// IRCTransport adapts a Twitch IRC connection to the Transport interface.
// The IRC library owns reconnect policy; this adapter only translates its
// callbacks into typed events. Single-use: one Open, one Close.
type IRCTransport struct {
	username string
	token    string

	mu      sync.Mutex
	client  *twitch.Client
	channel string
	opened  bool

	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
}

// NewIRCTransport builds a transport for the given credentials. With empty
// credentials the connection is anonymous (read-only).
func NewIRCTransport(username, token string) *IRCTransport {
	return &IRCTransport{username: username, token: token}
}

// IRCFactory returns a TransportFactory producing a fresh IRC transport per
// session open.
func IRCFactory() TransportFactory {
	return func(id Identity) Transport {
		return NewIRCTransport(id.Username, id.Token)
	}
}

func (t *IRCTransport) Open(ctx context.Context, channelID string) (<-chan Event, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.opened {
		return nil, errors.New("irc transport already opened")
	}
	t.opened = true

	var client *twitch.Client
	if t.username == "" || t.token == "" {
		client = twitch.NewAnonymousClient()
	} else {
		client = twitch.NewClient(t.username, t.token)
	}
	t.client = client
	t.channel = channelID
	t.events = make(chan Event, ircQueueSize)
	t.done = make(chan struct{})

	client.OnConnect(func() {
		t.emit(Event{Kind: EventConnected})
	})

	client.OnPrivateMessage(func(msg twitch.PrivateMessage) {
		ev := Event{
			Kind: EventChatMessage,
			ID:   msg.ID,
			At:   msg.Time,
			Author: message.Author{
				ID:    msg.User.ID,
				Name:  msg.User.Name,
				Color: msg.User.Color,
			},
			Text:   msg.Message,
			Emotes: convertEmotes(msg.Emotes),
			Badges: convertBadges(msg.User.Badges),
		}
		if msg.Bits > 0 {
			ev.Kind = EventDonation
			ev.Amount = msg.Bits
		}
		t.emit(ev)
	})

	client.OnClearChatMessage(func(msg twitch.ClearChatMessage) {
		switch {
		case msg.TargetUserID == "":
			t.emit(Event{Kind: EventChatCleared, At: msg.Time})
		case msg.BanDuration > 0:
			t.emit(Event{
				Kind:     EventUserTimeout,
				At:       msg.Time,
				UserID:   msg.TargetUserID,
				Username: msg.TargetUsername,
				Duration: time.Duration(msg.BanDuration) * time.Second,
			})
		default:
			t.emit(Event{
				Kind:     EventUserBan,
				At:       msg.Time,
				UserID:   msg.TargetUserID,
				Username: msg.TargetUsername,
			})
		}
	})

	client.OnClearMessage(func(msg twitch.ClearMessage) {
		t.emit(Event{
			Kind:     EventSystemMessage,
			Content:  fmt.Sprintf("a message from %s was deleted", msg.Login),
			Severity: message.SeverityWarning,
		})
	})

	client.OnNoticeMessage(func(msg twitch.NoticeMessage) {
		t.emit(Event{Kind: EventSystemMessage, Content: msg.Message, Severity: message.SeverityInfo})
	})

	client.Join(channelID)

	go func() {
		err := client.Connect()
		if err != nil && !errors.Is(err, twitch.ErrClientDisconnected) {
			t.emit(Event{Kind: EventError, Err: err.Error()})
		}
		t.emit(Event{Kind: EventDisconnected})
	}()
	go func() {
		select {
		case <-ctx.Done():
			_ = t.Close()
		case <-t.done:
		}
	}()

	return t.events, nil
}

// emit enqueues an event unless the transport has been closed.
func (t *IRCTransport) emit(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	select {
	case t.events <- ev:
	case <-t.done:
	}
}

func (t *IRCTransport) Send(_ context.Context, out Outbound) error {
	t.mu.Lock()
	client := t.client
	channel := t.channel
	t.mu.Unlock()
	if client == nil {
		return errors.New("irc transport not open")
	}

	switch out.Kind {
	case OutboundChat:
		client.Say(channel, out.Text)
	case OutboundDonation:
		// Bits are cheered inline in the message body.
		client.Say(channel, fmt.Sprintf("cheer%d %s", out.Amount, out.Text))
	case OutboundModTimeout:
		secs := int(out.Options.Duration.Seconds())
		if secs <= 0 {
			secs = 600
		}
		client.Say(channel, fmt.Sprintf("/timeout %s %d %s", out.TargetUsername, secs, out.Options.Reason))
	case OutboundModBan:
		client.Say(channel, fmt.Sprintf("/ban %s %s", out.TargetUsername, out.Options.Reason))
	case OutboundModUnban:
		client.Say(channel, fmt.Sprintf("/unban %s", out.TargetUsername))
	case OutboundModDelete:
		client.Say(channel, fmt.Sprintf("/delete %s", out.Options.MessageID))
	case OutboundModClear:
		client.Say(channel, "/clear")
	default:
		return fmt.Errorf("unsupported outbound kind %q", out.Kind)
	}
	return nil
}

func (t *IRCTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.mu.Lock()
		client := t.client
		if t.done != nil {
			close(t.done)
		}
		t.mu.Unlock()
		if client != nil {
			err = client.Disconnect()
		}
	})
	return err
}

func convertEmotes(in []*twitch.Emote) []emotes.Emote {
	if len(in) == 0 {
		return nil
	}
	out := make([]emotes.Emote, 0, len(in))
	for _, e := range in {
		out = append(out, emotes.Emote{
			ID:     e.ID,
			Code:   ":" + e.Name + ":",
			Name:   e.Name,
			Source: emotes.TierChannel,
		})
	}
	return out
}

func convertBadges(in map[string]int) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for k, v := range in {
		out = append(out, fmt.Sprintf("%s:%d", k, v))
	}
	sort.Strings(out)
	return out
}
