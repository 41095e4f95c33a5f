package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/chatdeck/message"
	"github.com/onnwee/chatdeck/telemetry"
)

// State is the externally visible connection state. There is no reconnecting
// substate: the transport owns retry policy and the session simply re-enters
// Connecting.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

var (
	// ErrNotConnected is returned by Send while the session is not Connected.
	ErrNotConnected = errors.New("session not connected")
	// ErrNotAuthenticated is returned by Send when the session identity
	// cannot author messages.
	ErrNotAuthenticated = errors.New("identity not authenticated")
)

// Identity is the local viewer identity a session speaks as.
type Identity struct {
	UserID   string
	Username string
	Token    string
}

// Authenticated reports whether the identity can author messages.
func (id Identity) Authenticated() bool {
	return id.UserID != "" && id.Token != ""
}

// Hooks are the session consumer's callbacks. Append and Clear own the
// ordered message log; the session holds no copy. SelfAffected fires once per
// timeout/ban event targeting the local viewer, in addition to the log
// append. Notice surfaces transient transport and send failures.
// Nil hooks are skipped.
type Hooks struct {
	Append       func(message.Message)
	Clear        func()
	SelfAffected func(message.System)
	Notice       func(error)
}

// HistoryFetcher loads past messages for a channel, oldest first.
type HistoryFetcher interface {
	ChatHistory(ctx context.Context, channelID string, limit int) ([]message.Message, error)
}

// Session owns at most one live transport per channel at a time. Inbound
// events are consumed by a single dispatch goroutine, so the log sees them in
// arrival order.
//
// Two locks with distinct roles: lifecycle serializes Open/Close against each
// other, mu guards field access. mu is never held while waiting for the
// dispatch loop, so hooks may call back into Send without deadlocking a
// concurrent Open or Close.
type Session struct {
	factory TransportFactory
	hooks   Hooks

	state atomic.Int32

	lifecycle sync.Mutex

	mu        sync.Mutex
	identity  Identity
	channelID string
	transport Transport
	cancel    context.CancelFunc
	loopDone  chan struct{}
}

// NewSession builds a session. It starts Disconnected; call Open.
func NewSession(factory TransportFactory, hooks Hooks) *Session {
	s := &Session{factory: factory, hooks: hooks}
	s.setState(Disconnected)
	return s
}

// State returns the current connection state.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
	telemetry.SetConnectionState(int(st))
}

// Open tears down any existing transport, then opens a new one scoped to
// channelID. It returns without waiting for the connection to establish;
// progress arrives as events. After Open returns, no event from a previously
// opened transport can reach the log.
func (s *Session) Open(ctx context.Context, channelID string, identity Identity) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	s.teardown()

	s.mu.Lock()
	s.identity = identity
	s.channelID = channelID
	s.mu.Unlock()
	s.setState(Connecting)

	t := s.factory(identity)
	dispatchCtx, cancel := context.WithCancel(ctx)
	events, err := t.Open(dispatchCtx, channelID)
	if err != nil {
		cancel()
		_ = t.Close()
		s.setState(Disconnected)
		err = fmt.Errorf("open transport for %s: %w", channelID, err)
		s.notice(err)
		return err
	}
	loopDone := make(chan struct{})
	s.mu.Lock()
	s.transport = t
	s.cancel = cancel
	s.loopDone = loopDone
	s.mu.Unlock()
	if telemetry.SessionsOpened != nil {
		telemetry.SessionsOpened.Inc()
	}
	slog.Info("chat session opening", slog.String("channel_id", channelID), slog.String("user", identity.Username))
	go s.dispatch(dispatchCtx, events, identity, loopDone)
	return nil
}

// Send forwards an outbound intent over the live transport. It requires a
// Connected state and an authenticated identity; violations are reported to
// the caller, never thrown into the dispatch path.
func (s *Session) Send(ctx context.Context, out Outbound) error {
	if s.State() != Connected {
		s.countSendFailure()
		return ErrNotConnected
	}
	s.mu.Lock()
	id := s.identity
	t := s.transport
	s.mu.Unlock()
	if !id.Authenticated() {
		s.countSendFailure()
		return ErrNotAuthenticated
	}
	if t == nil {
		s.countSendFailure()
		return ErrNotConnected
	}
	if err := t.Send(ctx, out); err != nil {
		s.countSendFailure()
		return fmt.Errorf("send %s: %w", out.Kind, err)
	}
	return nil
}

// LoadHistory fetches past messages and appends them to the log in order.
// A fetch failure degrades to an empty backfill.
func (s *Session) LoadHistory(ctx context.Context, fetcher HistoryFetcher, limit int) error {
	s.mu.Lock()
	channelID := s.channelID
	s.mu.Unlock()
	if channelID == "" {
		return errors.New("no channel opened")
	}
	history, err := fetcher.ChatHistory(ctx, channelID, limit)
	if err != nil {
		slog.Warn("chat history fetch failed; skipping backfill", slog.String("channel_id", channelID), slog.Any("err", err))
		return fmt.Errorf("chat history: %w", err)
	}
	for _, m := range history {
		s.append(m)
	}
	return nil
}

// Close releases the transport and all its listeners. Idempotent.
func (s *Session) Close() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	s.teardown()
}

// teardown cancels the dispatch loop, closes the transport, and waits for the
// loop to exit so no stale event lands afterward. Caller holds s.lifecycle.
// The wait happens with s.mu released: a hook executing on the dispatch
// goroutine may call Send, which needs s.mu, while teardown is waiting.
func (s *Session) teardown() {
	s.mu.Lock()
	cancel := s.cancel
	transport := s.transport
	loopDone := s.loopDone
	s.cancel = nil
	s.transport = nil
	s.loopDone = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if transport != nil {
		if err := transport.Close(); err != nil {
			slog.Debug("transport close", slog.Any("err", err))
		}
		if telemetry.SessionsClosed != nil {
			telemetry.SessionsClosed.Inc()
		}
	}
	if loopDone != nil {
		<-loopDone
	}
	s.setState(Disconnected)
}

func (s *Session) dispatch(ctx context.Context, events <-chan Event, identity Identity, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			select {
			case <-ctx.Done():
				return
			default:
			}
			s.handle(ev, identity)
		}
	}
}

// handle translates one inbound event into its log mutation. Events are
// handled strictly in arrival order on the single dispatch goroutine.
func (s *Session) handle(ev Event, identity Identity) {
	telemetry.CountInboundEvent(string(ev.Kind))
	switch ev.Kind {
	case EventConnected:
		s.setState(Connected)
		s.append(message.NewSystem("connected to chat", message.SeverityInfo))

	case EventDisconnected:
		s.setState(Disconnected)
		s.append(message.NewSystem("disconnected from chat", message.SeverityWarning))

	case EventError:
		s.notice(fmt.Errorf("transport: %s", ev.Err))

	case EventChatMessage:
		s.append(message.Standard{
			ID:     orNewID(ev.ID),
			At:     orNow(ev.At),
			Author: ev.Author,
			Text:   ev.Text,
			Emotes: ev.Emotes,
			Badges: ev.Badges,
		})

	case EventDonation:
		s.append(message.Donation{
			ID:     orNewID(ev.ID),
			At:     orNow(ev.At),
			Author: ev.Author,
			Amount: ev.Amount,
			Text:   ev.Text,
			Emotes: ev.Emotes,
		})

	case EventSystemMessage:
		sev := ev.Severity
		if sev == "" {
			sev = message.SeverityInfo
		}
		s.append(message.System{ID: orNewID(ev.ID), At: orNow(ev.At), Content: ev.Content, Severity: sev})

	case EventUserTimeout:
		content := fmt.Sprintf("%s was timed out for %s", ev.Username, ev.Duration)
		if ev.Reason != "" {
			content += ": " + ev.Reason
		}
		s.moderation(ev, identity, content)

	case EventUserBan:
		content := fmt.Sprintf("%s was banned", ev.Username)
		if ev.Reason != "" {
			content += ": " + ev.Reason
		}
		s.moderation(ev, identity, content)

	case EventChatCleared:
		if s.hooks.Clear != nil {
			s.hooks.Clear()
		}

	default:
		slog.Debug("unhandled inbound event", slog.String("kind", string(ev.Kind)))
	}
}

// moderation appends the system-style log entry and, when the target is the
// local viewer, raises exactly one self-affected notification on top of it.
func (s *Session) moderation(ev Event, identity Identity, content string) {
	sys := message.System{ID: uuid.NewString(), At: orNow(ev.At), Content: content, Severity: message.SeverityWarning}
	s.append(sys)
	if identity.UserID != "" && ev.UserID == identity.UserID && s.hooks.SelfAffected != nil {
		s.hooks.SelfAffected(sys)
	}
}

func (s *Session) append(m message.Message) {
	if s.hooks.Append != nil {
		s.hooks.Append(m)
	}
}

func (s *Session) notice(err error) {
	if s.hooks.Notice != nil {
		s.hooks.Notice(err)
	}
}

func (s *Session) countSendFailure() {
	if telemetry.SendFailures != nil {
		telemetry.SendFailures.Inc()
	}
}

func orNewID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

func orNow(t time.Time) time.Time {
	if !t.IsZero() {
		return t
	}
	return time.Now().UTC()
}
