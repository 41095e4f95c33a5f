package emotes

import (
	"context"
	"log/slog"
	"sync"

	"github.com/onnwee/chatdeck/telemetry"
)

// RecencyCapacity bounds the persisted most-recently-used emote list.
const RecencyCapacity = 20

// RecencyStore persists the recency list keyed by a viewer profile key.
type RecencyStore interface {
	Load(ctx context.Context, profileKey string) ([]Emote, error)
	Save(ctx context.Context, profileKey string, list []Emote) error
}

// RecencyTracker is a bounded MRU list of emotes, deduplicated by id and
// persisted best-effort on every mutation. Persistence failures are non-fatal:
// the tracker logs once, drops persistence for the rest of the session, and
// keeps the in-memory list working.
type RecencyTracker struct {
	mu         sync.Mutex
	profileKey string
	store      RecencyStore
	persist    bool
	warned     bool
	list       []Emote
}

// NewRecencyTracker loads the persisted list for profileKey. A nil store or a
// failed load yields an empty in-memory-only tracker.
func NewRecencyTracker(ctx context.Context, store RecencyStore, profileKey string) *RecencyTracker {
	t := &RecencyTracker{profileKey: profileKey, store: store, persist: store != nil}
	if store == nil {
		return t
	}
	list, err := store.Load(ctx, profileKey)
	if err != nil {
		slog.Warn("recency list load failed; starting empty without persistence", slog.String("profile", profileKey), slog.Any("err", err))
		if telemetry.RecencyPersistFailures != nil {
			telemetry.RecencyPersistFailures.Inc()
		}
		t.persist = false
		return t
	}
	if len(list) > RecencyCapacity {
		list = list[:RecencyCapacity]
	}
	t.list = list
	return t
}

// Add promotes e to the front, removing any prior entry with the same id and
// truncating to capacity, then saves best-effort.
func (t *RecencyTracker) Add(ctx context.Context, e Emote) {
	t.mu.Lock()
	next := make([]Emote, 0, len(t.list)+1)
	next = append(next, e)
	for _, cur := range t.list {
		if cur.ID == e.ID {
			continue
		}
		next = append(next, cur)
	}
	if len(next) > RecencyCapacity {
		next = next[:RecencyCapacity]
	}
	t.list = next
	persist := t.persist
	snapshot := append([]Emote(nil), t.list...)
	t.mu.Unlock()

	if !persist {
		return
	}
	if err := t.store.Save(ctx, t.profileKey, snapshot); err != nil {
		t.mu.Lock()
		if !t.warned {
			slog.Warn("recency list save failed; continuing in-memory only", slog.String("profile", t.profileKey), slog.Any("err", err))
			t.warned = true
		}
		t.persist = false
		t.mu.Unlock()
		if telemetry.RecencyPersistFailures != nil {
			telemetry.RecencyPersistFailures.Inc()
		}
	}
}

// Get returns the list most-recent-first. The returned slice is a copy.
func (t *RecencyTracker) Get() []Emote {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Emote(nil), t.list...)
}
