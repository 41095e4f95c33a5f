package emotes

// Static fallback lists served when a remote tier fetch fails. The global and
// subscription tiers carry a small built-in set so the picker is never empty;
// a channel without reachable emote data simply has none.

func fallbackGlobal() []Emote {
	return []Emote{
		{ID: "global-smile", Code: ":smile:", Name: "Smile", URL: "https://static.chatdeck.dev/emotes/smile.png", Width: 28, Height: 28, Source: TierGlobal, Category: "smileys"},
		{ID: "global-heart", Code: ":heart:", Name: "Heart", URL: "https://static.chatdeck.dev/emotes/heart.png", Width: 28, Height: 28, Source: TierGlobal, Category: "smileys"},
		{ID: "global-lol", Code: ":lol:", Name: "LOL", URL: "https://static.chatdeck.dev/emotes/lol.png", Width: 28, Height: 28, Source: TierGlobal, Category: "smileys"},
		{ID: "global-hype", Code: ":hype:", Name: "Hype", URL: "https://static.chatdeck.dev/emotes/hype.gif", Animated: true, Width: 28, Height: 28, Source: TierGlobal, Category: "reactions"},
		{ID: "global-gg", Code: ":gg:", Name: "GG", URL: "https://static.chatdeck.dev/emotes/gg.png", Width: 28, Height: 28, Source: TierGlobal, Category: "reactions"},
	}
}

func fallbackTier(tierName string) []Emote {
	return []Emote{
		{ID: "tier-star-" + tierName, Code: ":star:", Name: "Star", URL: "https://static.chatdeck.dev/emotes/star.png", Width: 28, Height: 28, Source: TierSub, Category: "subscriber"},
		{ID: "tier-crown-" + tierName, Code: ":crown:", Name: "Crown", URL: "https://static.chatdeck.dev/emotes/crown.png", Width: 28, Height: 28, Source: TierSub, Category: "subscriber"},
	}
}

func fallbackChannel() []Emote { return nil }
