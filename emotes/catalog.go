package emotes

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/onnwee/chatdeck/telemetry"
)

// TierFetcher is the remote boundary the catalog pulls emote lists from.
type TierFetcher interface {
	GlobalEmotes(ctx context.Context) ([]Emote, error)
	ChannelEmotes(ctx context.Context, channelID string) ([]Emote, error)
	TierEmotes(ctx context.Context, tierName string) ([]Emote, error)
	SearchEmotes(ctx context.Context, query string) ([]Emote, error)
}

// Catalog maintains three independently cached emote tiers and a merged
// code index. It is an explicitly constructed service: create one per process
// with NewCatalog and pass it by reference to consumers.
//
// Two merge priorities coexist on purpose, mirroring observed behavior:
// GetAll dedupes by id keeping the FIRST occurrence in global->channel->tier
// order, while the code index is rebuilt by walking the same order with later
// writes overwriting earlier ones, so LookupByCode resolves to the LAST entry
// indexed. Callers that care which one they get should be explicit about
// which operation they use.
type Catalog struct {
	fetcher TierFetcher

	mu           sync.RWMutex
	retryable    func(error) bool
	global       []Emote
	globalLoaded bool
	channels     map[string][]Emote
	channelOrder []string
	tiers        map[string][]Emote
	tierOrder    []string
	index        map[string]Emote // lowercased code -> emote; nil means dirty
}

// NewCatalog returns an empty catalog backed by the given fetcher.
func NewCatalog(fetcher TierFetcher) *Catalog {
	return &Catalog{
		fetcher:  fetcher,
		channels: make(map[string][]Emote),
		tiers:    make(map[string][]Emote),
		index:    make(map[string]Emote),
	}
}

// SetErrorClassifier installs fn to judge failed remote fetches. When fn
// reports a failure retryable, the fallback list is returned but NOT cached,
// so the next call retries the remote; non-retryable failures cache the
// fallback. Without a classifier every failure caches (one fetch attempt per
// tier). Call before the catalog is shared.
func (c *Catalog) SetErrorClassifier(fn func(error) bool) {
	c.mu.Lock()
	c.retryable = fn
	c.mu.Unlock()
}

func (c *Catalog) retryableErr(err error) bool {
	c.mu.RLock()
	fn := c.retryable
	c.mu.RUnlock()
	return fn != nil && fn(err)
}

// FetchGlobal returns the global tier, fetching remotely on a cache miss or
// when forceRefresh is set. A failed remote fetch degrades to the static
// global fallback list; the failure is logged, never surfaced.
func (c *Catalog) FetchGlobal(ctx context.Context, forceRefresh bool) []Emote {
	c.mu.RLock()
	if c.globalLoaded && !forceRefresh {
		cached := c.global
		c.mu.RUnlock()
		return cached
	}
	c.mu.RUnlock()

	list, err := c.fetchTimed(ctx, TierGlobal, func() ([]Emote, error) {
		return c.fetcher.GlobalEmotes(ctx)
	})
	if err != nil {
		retry := c.retryableErr(err)
		slog.Warn("global emote fetch failed; using fallback", slog.Any("err", err), slog.Bool("retryable", retry))
		telemetry.CountFetchFailure(string(TierGlobal))
		if retry {
			// Leave the tier uncached; the next call retries the remote.
			return fallbackGlobal()
		}
		list = fallbackGlobal()
	}

	c.mu.Lock()
	c.global = list
	c.globalLoaded = true
	c.rebuildIndexLocked()
	c.mu.Unlock()
	return list
}

// FetchChannel returns the emote list for one channel. A failed remote fetch
// degrades to an empty list (channels have no static fallback).
func (c *Catalog) FetchChannel(ctx context.Context, channelID string, forceRefresh bool) []Emote {
	if channelID == "" {
		return nil
	}
	c.mu.RLock()
	if cached, ok := c.channels[channelID]; ok && !forceRefresh {
		c.mu.RUnlock()
		return cached
	}
	c.mu.RUnlock()

	list, err := c.fetchTimed(ctx, TierChannel, func() ([]Emote, error) {
		return c.fetcher.ChannelEmotes(ctx, channelID)
	})
	if err != nil {
		retry := c.retryableErr(err)
		slog.Warn("channel emote fetch failed; using empty list", slog.String("channel_id", channelID), slog.Any("err", err), slog.Bool("retryable", retry))
		telemetry.CountFetchFailure(string(TierChannel))
		if retry {
			return fallbackChannel()
		}
		list = fallbackChannel()
	}

	c.mu.Lock()
	if _, seen := c.channels[channelID]; !seen {
		c.channelOrder = append(c.channelOrder, channelID)
	}
	c.channels[channelID] = list
	c.rebuildIndexLocked()
	c.mu.Unlock()
	return list
}

// FetchTier returns the emote list for one subscription tier. A failed remote
// fetch degrades to the static subscriber fallback list.
func (c *Catalog) FetchTier(ctx context.Context, tierName string, forceRefresh bool) []Emote {
	if tierName == "" {
		return nil
	}
	c.mu.RLock()
	if cached, ok := c.tiers[tierName]; ok && !forceRefresh {
		c.mu.RUnlock()
		return cached
	}
	c.mu.RUnlock()

	list, err := c.fetchTimed(ctx, TierSub, func() ([]Emote, error) {
		return c.fetcher.TierEmotes(ctx, tierName)
	})
	if err != nil {
		retry := c.retryableErr(err)
		slog.Warn("tier emote fetch failed; using fallback", slog.String("tier", tierName), slog.Any("err", err), slog.Bool("retryable", retry))
		telemetry.CountFetchFailure(string(TierSub))
		if retry {
			return fallbackTier(tierName)
		}
		list = fallbackTier(tierName)
	}

	c.mu.Lock()
	if _, seen := c.tiers[tierName]; !seen {
		c.tierOrder = append(c.tierOrder, tierName)
	}
	c.tiers[tierName] = list
	c.rebuildIndexLocked()
	c.mu.Unlock()
	return list
}

func (c *Catalog) fetchTimed(ctx context.Context, tier Tier, fn func() ([]Emote, error)) ([]Emote, error) {
	_, span := telemetry.StartSpan(ctx, "emotes", "catalog.fetch."+string(tier))
	defer span.End()
	var list []Emote
	var err error
	telemetry.TimeFunc(telemetry.EmoteFetchDuration, func() {
		list, err = fn()
	})
	telemetry.RecordError(span, err)
	return list, err
}

// GetAll fetches (or reuses) the three tiers for one channel/tier pairing
// concurrently and returns them concatenated global->channel->tier,
// deduplicated by id keeping the first occurrence. The merge is deterministic
// regardless of fetch completion order because the merge key is the fixed
// tier sequence.
func (c *Catalog) GetAll(ctx context.Context, channelID, tierName string) []Emote {
	var global, channel, sub []Emote
	var g errgroup.Group
	g.Go(func() error {
		global = c.FetchGlobal(ctx, false)
		return nil
	})
	g.Go(func() error {
		channel = c.FetchChannel(ctx, channelID, false)
		return nil
	})
	g.Go(func() error {
		sub = c.FetchTier(ctx, tierName, false)
		return nil
	})
	_ = g.Wait() // fetches never error; they degrade to fallbacks

	merged := make([]Emote, 0, len(global)+len(channel)+len(sub))
	seen := make(map[string]struct{}, len(global)+len(channel)+len(sub))
	for _, list := range [][]Emote{global, channel, sub} {
		for _, e := range list {
			if _, dup := seen[e.ID]; dup {
				continue
			}
			seen[e.ID] = struct{}{}
			merged = append(merged, e)
		}
	}
	return merged
}

// LookupByCode resolves a trigger code case-insensitively against the merged
// index. The index accumulates every channel and tier fetched during the
// process lifetime, not just the pairing last passed to GetAll.
func (c *Catalog) LookupByCode(code string) (Emote, bool) {
	key := strings.ToLower(code)
	c.mu.RLock()
	if c.index != nil {
		e, ok := c.index[key]
		c.mu.RUnlock()
		return e, ok
	}
	c.mu.RUnlock()

	c.mu.Lock()
	if c.index == nil {
		c.rebuildIndexLocked()
	}
	e, ok := c.index[key]
	c.mu.Unlock()
	return e, ok
}

// LookupByID scans the merged index for the entry with the given id.
// Lookups by id are rare (inbound placeholder resolution falls back here
// only when a message's own used list is missing the id), so a linear scan
// over the index is adequate.
func (c *Catalog) LookupByID(id string) (Emote, bool) {
	c.mu.Lock()
	if c.index == nil {
		c.rebuildIndexLocked()
	}
	defer c.mu.Unlock()
	for _, e := range c.index {
		if e.ID == id {
			return e, true
		}
	}
	return Emote{}, false
}

// Invalidate clears cached tiers. Scope selects which: TierGlobal clears the
// global list, TierChannel/TierSub clear one keyed entry (or all entries of
// that tier when key is empty), and an empty scope clears everything. The
// code index is rebuilt lazily on next access.
func (c *Catalog) Invalidate(scope Tier, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch scope {
	case TierGlobal:
		c.global = nil
		c.globalLoaded = false
	case TierChannel:
		if key == "" {
			c.channels = make(map[string][]Emote)
			c.channelOrder = nil
		} else {
			delete(c.channels, key)
			c.channelOrder = removeString(c.channelOrder, key)
		}
	case TierSub:
		if key == "" {
			c.tiers = make(map[string][]Emote)
			c.tierOrder = nil
		} else {
			delete(c.tiers, key)
			c.tierOrder = removeString(c.tierOrder, key)
		}
	default:
		c.global = nil
		c.globalLoaded = false
		c.channels = make(map[string][]Emote)
		c.channelOrder = nil
		c.tiers = make(map[string][]Emote)
		c.tierOrder = nil
	}
	c.index = nil
}

// Search prefers the remote full-text search and degrades to a local
// case-insensitive substring scan over code and name across all cached
// tiers, deduplicated by id.
func (c *Catalog) Search(ctx context.Context, query string) []Emote {
	if query == "" {
		return nil
	}
	results, err := c.fetcher.SearchEmotes(ctx, query)
	if err == nil {
		return results
	}
	slog.Debug("remote emote search failed; scanning local caches", slog.String("query", query), slog.Any("err", err))
	return c.localSearch(query)
}

func (c *Catalog) localSearch(query string) []Emote {
	q := strings.ToLower(query)
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []Emote
	seen := make(map[string]struct{})
	scan := func(list []Emote) {
		for _, e := range list {
			if _, dup := seen[e.ID]; dup {
				continue
			}
			if strings.Contains(strings.ToLower(e.Code), q) || strings.Contains(strings.ToLower(e.Name), q) {
				seen[e.ID] = struct{}{}
				out = append(out, e)
			}
		}
	}
	scan(c.global)
	for _, id := range c.channelOrder {
		scan(c.channels[id])
	}
	for _, name := range c.tierOrder {
		scan(c.tiers[name])
	}
	return out
}

// Size returns the number of entries in the merged code index.
func (c *Catalog) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.index == nil {
		c.rebuildIndexLocked()
	}
	return len(c.index)
}

// rebuildIndexLocked rebuilds the code index into a fresh map and swaps it in,
// so readers never observe a partial rebuild. Walk order is fixed:
// global, then channels in first-fetch order, then tiers in first-fetch order;
// later writes overwrite earlier ones.
func (c *Catalog) rebuildIndexLocked() {
	next := make(map[string]Emote)
	for _, e := range c.global {
		next[strings.ToLower(e.Code)] = e
	}
	for _, id := range c.channelOrder {
		for _, e := range c.channels[id] {
			next[strings.ToLower(e.Code)] = e
		}
	}
	for _, name := range c.tierOrder {
		for _, e := range c.tiers[name] {
			next[strings.ToLower(e.Code)] = e
		}
	}
	c.index = next
	if telemetry.CatalogRebuilds != nil {
		telemetry.CatalogRebuilds.Inc()
	}
	telemetry.SetCatalogSize(len(next))
}

// Codes returns the sorted trigger codes currently in the index, for
// completion surfaces.
func (c *Catalog) Codes() []string {
	c.mu.Lock()
	if c.index == nil {
		c.rebuildIndexLocked()
	}
	codes := make([]string, 0, len(c.index))
	for code := range c.index {
		codes = append(codes, code)
	}
	c.mu.Unlock()
	sort.Strings(codes)
	return codes
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
