package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// ViewerPrefs are per-profile display preferences. Persistence is
// best-effort; the defaults below apply when nothing is stored.
type ViewerPrefs struct {
	ShowTimestamps bool    `json:"show_timestamps"`
	ShowBadges     bool    `json:"show_badges"`
	CompactMode    bool    `json:"compact_mode"`
	FontScale      float64 `json:"font_scale"`
}

// DefaultViewerPrefs returns the preferences used before a profile has saved any.
func DefaultViewerPrefs() ViewerPrefs {
	return ViewerPrefs{ShowTimestamps: true, ShowBadges: true, FontScale: 1.0}
}

// PrefsStore persists viewer display preferences as a JSON document per
// profile key.
type PrefsStore struct {
	DB *sql.DB
}

// Load returns the stored preferences for profileKey, or the defaults when
// no row exists yet.
func (s *PrefsStore) Load(ctx context.Context, profileKey string) (ViewerPrefs, error) {
	var raw string
	err := s.DB.QueryRowContext(ctx,
		`SELECT prefs FROM viewer_prefs WHERE profile_key = $1`, profileKey).Scan(&raw)
	if err == sql.ErrNoRows {
		return DefaultViewerPrefs(), nil
	}
	if err != nil {
		return ViewerPrefs{}, fmt.Errorf("load viewer prefs: %w", err)
	}
	var p ViewerPrefs
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return ViewerPrefs{}, fmt.Errorf("decode viewer prefs: %w", err)
	}
	return p, nil
}

// Save replaces the stored preferences for profileKey.
func (s *PrefsStore) Save(ctx context.Context, profileKey string, p ViewerPrefs) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode viewer prefs: %w", err)
	}
	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO viewer_prefs(profile_key, prefs, updated_at) VALUES($1,$2,NOW())
		 ON CONFLICT(profile_key) DO UPDATE SET prefs=EXCLUDED.prefs, updated_at=NOW()`,
		profileKey, string(raw))
	if err != nil {
		return fmt.Errorf("save viewer prefs: %w", err)
	}
	return nil
}
