package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/onnwee/chatdeck/emotes"
)

// RecencyStore persists the per-profile recent-emote list as a JSON document.
// It satisfies emotes.RecencyStore.
type RecencyStore struct {
	DB *sql.DB
}

// Load returns the stored list for profileKey, or an empty list when no row
// exists yet.
func (s *RecencyStore) Load(ctx context.Context, profileKey string) ([]emotes.Emote, error) {
	var raw string
	err := s.DB.QueryRowContext(ctx,
		`SELECT emotes FROM recent_emotes WHERE profile_key = $1`, profileKey).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load recent emotes: %w", err)
	}
	var list []emotes.Emote
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, fmt.Errorf("decode recent emotes: %w", err)
	}
	return list, nil
}

// Save replaces the stored list for profileKey.
func (s *RecencyStore) Save(ctx context.Context, profileKey string, list []emotes.Emote) error {
	if list == nil {
		list = []emotes.Emote{}
	}
	raw, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode recent emotes: %w", err)
	}
	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO recent_emotes(profile_key, emotes, updated_at) VALUES($1,$2,NOW())
		 ON CONFLICT(profile_key) DO UPDATE SET emotes=EXCLUDED.emotes, updated_at=NOW()`,
		profileKey, string(raw))
	if err != nil {
		return fmt.Errorf("save recent emotes: %w", err)
	}
	return nil
}
