// Package server exposes the operational HTTP surface: health and readiness
// probes, session status, Prometheus metrics, emote endpoints, viewer
// preferences, and chat send. It includes permissive CORS for development and
// injects correlation IDs into request contexts for consistent logging.
package server

import (
	"database/sql"
	"time"

	"github.com/onnwee/chatdeck/chat"
	"github.com/onnwee/chatdeck/db"
	"github.com/onnwee/chatdeck/emotes"
)

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	db         *sql.DB
	session    *chat.Session
	composer   *chat.Composer
	catalog    *emotes.Catalog
	recent     *emotes.RecencyTracker
	prefs      *db.PrefsStore
	profileKey string
	channel    string
	startedAt  time.Time
}

// NewHandlers creates a Handlers instance with the given dependencies. Any of
// session, composer, catalog, recent, or prefs may be nil; the corresponding
// endpoints then report empty values or 503.
func NewHandlers(database *sql.DB, session *chat.Session, composer *chat.Composer, catalog *emotes.Catalog, recent *emotes.RecencyTracker, prefs *db.PrefsStore, profileKey, channel string) *Handlers {
	return &Handlers{
		db:         database,
		session:    session,
		composer:   composer,
		catalog:    catalog,
		recent:     recent,
		prefs:      prefs,
		profileKey: profileKey,
		channel:    channel,
		startedAt:  time.Now(),
	}
}
