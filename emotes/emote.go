// Package emotes implements the emote model, the multi-tier catalog with its
// merged code index, and the persisted recency (most-recently-used) list.
package emotes

// Tier identifies which source an emote came from.
type Tier string

const (
	TierGlobal  Tier = "global"
	TierChannel Tier = "channel"
	TierSub     Tier = "tier"
)

// Emote is a single emote entry. Identity is by ID; Code is the human-facing
// trigger (e.g. ":smile:") and is matched case-insensitively.
type Emote struct {
	ID       string `json:"id"`
	Code     string `json:"code"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	Animated bool   `json:"animated"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Source   Tier   `json:"source"`
	Category string `json:"category"`
}
