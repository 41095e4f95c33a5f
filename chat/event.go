package chat

import (
	"context"
	"time"

	"github.com/onnwee/chatdeck/emotes"
	"github.com/onnwee/chatdeck/message"
)

// EventKind names an inbound transport event.
type EventKind string

const (
	EventConnected     EventKind = "connected"
	EventDisconnected  EventKind = "disconnected"
	EventError         EventKind = "error"
	EventChatMessage   EventKind = "chat-message"
	EventDonation      EventKind = "donation"
	EventSystemMessage EventKind = "system-message"
	EventUserTimeout   EventKind = "user-timeout"
	EventUserBan       EventKind = "user-ban"
	EventChatCleared   EventKind = "chat-cleared"
)

// Event is one inbound transport event. Which fields are populated depends on
// Kind; unused fields stay zero.
type Event struct {
	Kind EventKind
	At   time.Time

	// chat-message / donation
	ID     string
	Author message.Author
	Text   string
	Emotes []emotes.Emote
	Badges []string
	Amount int

	// system-message
	Content  string
	Severity message.Severity

	// user-timeout / user-ban
	UserID   string
	Username string
	Duration time.Duration
	Reason   string

	// error
	Err string
}

// OutboundKind names an outbound user intent.
type OutboundKind string

const (
	OutboundChat       OutboundKind = "chat-message"
	OutboundDonation   OutboundKind = "donation"
	OutboundModTimeout OutboundKind = "mod-timeout"
	OutboundModBan     OutboundKind = "mod-ban"
	OutboundModUnban   OutboundKind = "mod-unban"
	OutboundModDelete  OutboundKind = "mod-delete"
	OutboundModClear   OutboundKind = "mod-clear"
)

// ModOptions parameterizes moderator actions.
type ModOptions struct {
	Duration  time.Duration
	Reason    string
	MessageID string
}

// Outbound is one emission toward the transport.
type Outbound struct {
	Kind     OutboundKind
	Text     string
	EmoteIDs []string
	Amount   int
	Effects  []string

	TargetUserID   string
	TargetUsername string
	Options        ModOptions
}

// Transport is one underlying connection to a channel's chat. A Transport
// instance is single-use: Open it once, then Close releases it and all its
// handlers. Retry policy (reconnect backoff) belongs to the transport, not
// the session.
type Transport interface {
	// Open starts the transport for channelID and returns the inbound event
	// queue. It returns promptly; connection progress is reported as events.
	// The channel is consumed by exactly one dispatch loop; arrival order is
	// dispatch order.
	Open(ctx context.Context, channelID string) (<-chan Event, error)
	Send(ctx context.Context, out Outbound) error
	Close() error
}

// TransportFactory builds a fresh transport for an identity. The session
// calls it on every Open so a re-open never reuses a torn-down transport.
type TransportFactory func(identity Identity) Transport
