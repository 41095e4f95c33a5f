// Package chat contains the connection session and its transport layer.
//
// A Session is one logical connection to a channel's chat, possibly spanning
// multiple underlying transport connections over its lifetime. It owns the
// Disconnected/Connecting/Connected state machine, consumes inbound transport
// events on a single dispatch loop so the consumer's log sees them in arrival
// order, and validates outbound sends (state and identity) before forwarding
// them to the transport.
//
// IRCTransport is the production Transport: it adapts Twitch IRC callbacks
// (PRIVMSG, CLEARCHAT, CLEARMSG, NOTICE, connect/disconnect) into the typed
// event taxonomy. Reconnect/backoff policy lives inside the IRC client; the
// session only re-enters Connecting.
//
// Credentials: an authenticated session requires a username and an OAuth
// token with chat:read/chat:edit scopes. With empty credentials the transport
// connects anonymously and the session is read-only.
package chat
