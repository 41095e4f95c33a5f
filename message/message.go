// Package message defines the chat message variants and the emote
// substitution pipeline applied to text entering and leaving a session.
package message

import (
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/chatdeck/emotes"
)

// Severity styles a system message.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Author identifies the sender of a standard or donation message.
type Author struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// Message is the closed union of chat log entries. Exactly three variants
// exist: Standard, System, and Donation. Each carries a unique id and an
// RFC3339 timestamp. Messages are immutable once appended; the only log-level
// mutation is clearing the whole log.
type Message interface {
	MessageID() string
	Timestamp() time.Time
	isMessage()
}

// Standard is an ordinary viewer chat line.
type Standard struct {
	ID     string         `json:"id"`
	At     time.Time      `json:"timestamp"`
	Author Author         `json:"author"`
	Text   string         `json:"text"`
	Emotes []emotes.Emote `json:"emotes,omitempty"`
	Badges []string       `json:"badges,omitempty"`
}

func (m Standard) MessageID() string    { return m.ID }
func (m Standard) Timestamp() time.Time { return m.At }
func (Standard) isMessage()             {}

// System is a server- or client-generated notice rendered inline in the log.
type System struct {
	ID       string    `json:"id"`
	At       time.Time `json:"timestamp"`
	Content  string    `json:"content"`
	Severity Severity  `json:"severity"`
}

func (m System) MessageID() string    { return m.ID }
func (m System) Timestamp() time.Time { return m.At }
func (System) isMessage()             {}

// Donation is a paid message with an amount in platform tokens.
type Donation struct {
	ID     string         `json:"id"`
	At     time.Time      `json:"timestamp"`
	Author Author         `json:"author"`
	Amount int            `json:"amount"`
	Text   string         `json:"text"`
	Emotes []emotes.Emote `json:"emotes,omitempty"`
}

func (m Donation) MessageID() string    { return m.ID }
func (m Donation) Timestamp() time.Time { return m.At }
func (Donation) isMessage()             {}

// NewSystem builds a System message stamped now.
func NewSystem(content string, sev Severity) System {
	return System{ID: uuid.NewString(), At: time.Now().UTC(), Content: content, Severity: sev}
}
