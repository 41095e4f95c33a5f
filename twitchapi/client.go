package twitchapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/onnwee/chatdeck/emotes"
	"github.com/onnwee/chatdeck/message"
)

// Client provides the REST calls the chat core consumes. It implements
// emotes.TierFetcher and chat.HistoryFetcher.
type Client struct {
	AppTokenSource *TokenSource
	ClientID       string
	HTTPClient     *http.Client
	BaseURL        string // defaults to the production API host
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) base() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return "https://api.twitch.tv/helix"
}

// get issues an authenticated GET and decodes the response body into out.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader, out any) error {
	tok, err := c.AppTokenSource.Get(ctx)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base()+path, body)
	if err != nil {
		return err
	}
	if query != nil {
		req.URL.RawQuery = query.Encode()
	}
	req.Header.Set("Client-Id", c.ClientID)
	req.Header.Set("Authorization", "Bearer "+tok)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http().Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s %s failed: %s: %s", method, path, resp.Status, string(b))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// ChannelInfo is the channel metadata slice the client cares about.
type ChannelInfo struct {
	ID          string `json:"broadcaster_id"`
	Login       string `json:"broadcaster_login"`
	DisplayName string `json:"broadcaster_name"`
	Title       string `json:"title"`
	Category    string `json:"game_name"`
	IsLive      bool   `json:"is_live"`
}

// GetChannel fetches channel metadata by id.
func (c *Client) GetChannel(ctx context.Context, channelID string) (ChannelInfo, error) {
	if channelID == "" {
		return ChannelInfo{}, fmt.Errorf("channelID empty")
	}
	q := url.Values{}
	q.Set("broadcaster_id", channelID)
	var body struct {
		Data []ChannelInfo `json:"data"`
	}
	if err := c.get(ctx, "/channels", q, &body); err != nil {
		return ChannelInfo{}, err
	}
	if len(body.Data) == 0 {
		return ChannelInfo{}, fmt.Errorf("channel not found")
	}
	return body.Data[0], nil
}

// User is the account metadata slice the client cares about.
type User struct {
	ID          string `json:"id"`
	Login       string `json:"login"`
	DisplayName string `json:"display_name"`
}

// GetUserByLogin resolves a login name to its account, primarily to turn the
// configured channel name into the broadcaster id the emote and history
// endpoints key on.
func (c *Client) GetUserByLogin(ctx context.Context, login string) (User, error) {
	if login == "" {
		return User{}, fmt.Errorf("login empty")
	}
	q := url.Values{}
	q.Set("login", login)
	var body struct {
		Data []User `json:"data"`
	}
	if err := c.get(ctx, "/users", q, &body); err != nil {
		return User{}, err
	}
	if len(body.Data) == 0 {
		return User{}, fmt.Errorf("user %q not found", login)
	}
	return body.Data[0], nil
}

// Moderator is one entry of a channel's moderator list.
type Moderator struct {
	UserID   string `json:"user_id"`
	Username string `json:"user_login"`
}

// GetModerators lists the moderators of a channel.
func (c *Client) GetModerators(ctx context.Context, channelID string) ([]Moderator, error) {
	if channelID == "" {
		return nil, fmt.Errorf("channelID empty")
	}
	q := url.Values{}
	q.Set("broadcaster_id", channelID)
	var body struct {
		Data []Moderator `json:"data"`
	}
	if err := c.get(ctx, "/moderation/moderators", q, &body); err != nil {
		return nil, err
	}
	return body.Data, nil
}

// emoteRecord is the wire shape of one emote entry.
type emoteRecord struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Images struct {
		URL1x string `json:"url_1x"`
		URL2x string `json:"url_2x"`
	} `json:"images"`
	Format   []string `json:"format"`
	Category string   `json:"emote_type"`
}

func (r emoteRecord) toEmote(src emotes.Tier) emotes.Emote {
	animated := false
	for _, f := range r.Format {
		if f == "animated" {
			animated = true
		}
	}
	return emotes.Emote{
		ID:       r.ID,
		Code:     ":" + r.Name + ":",
		Name:     r.Name,
		URL:      r.Images.URL1x,
		Animated: animated,
		Width:    28,
		Height:   28,
		Source:   src,
		Category: r.Category,
	}
}

func (c *Client) fetchEmotes(ctx context.Context, path string, q url.Values, src emotes.Tier) ([]emotes.Emote, error) {
	var body struct {
		Data []emoteRecord `json:"data"`
	}
	if err := c.get(ctx, path, q, &body); err != nil {
		return nil, err
	}
	out := make([]emotes.Emote, 0, len(body.Data))
	for _, r := range body.Data {
		out = append(out, r.toEmote(src))
	}
	return out, nil
}

// GlobalEmotes fetches the platform-wide emote list.
func (c *Client) GlobalEmotes(ctx context.Context) ([]emotes.Emote, error) {
	return c.fetchEmotes(ctx, "/chat/emotes/global", nil, emotes.TierGlobal)
}

// ChannelEmotes fetches the emote list of one channel.
func (c *Client) ChannelEmotes(ctx context.Context, channelID string) ([]emotes.Emote, error) {
	if channelID == "" {
		return nil, fmt.Errorf("channelID empty")
	}
	q := url.Values{}
	q.Set("broadcaster_id", channelID)
	return c.fetchEmotes(ctx, "/chat/emotes", q, emotes.TierChannel)
}

// TierEmotes fetches the emote set unlocked by a subscription tier.
func (c *Client) TierEmotes(ctx context.Context, tierName string) ([]emotes.Emote, error) {
	if tierName == "" {
		return nil, fmt.Errorf("tierName empty")
	}
	q := url.Values{}
	q.Set("tier", tierName)
	return c.fetchEmotes(ctx, "/chat/emotes/set", q, emotes.TierSub)
}

// SearchEmotes runs the remote full-text emote search.
func (c *Client) SearchEmotes(ctx context.Context, query string) ([]emotes.Emote, error) {
	if query == "" {
		return nil, nil
	}
	q := url.Values{}
	q.Set("query", query)
	return c.fetchEmotes(ctx, "/chat/emotes/search", q, emotes.TierGlobal)
}

// historyRecord is the wire shape of one archived chat line.
type historyRecord struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_login"`
	Color     string    `json:"color"`
	Text      string    `json:"message"`
	Badges    []string  `json:"badges"`
	Timestamp time.Time `json:"sent_at"`
}

// historyPage fetches one page of archived messages, returning the page and
// the cursor for the next one (empty when exhausted).
func (c *Client) historyPage(ctx context.Context, channelID string, first int, after string) ([]historyRecord, string, error) {
	q := url.Values{}
	q.Set("broadcaster_id", channelID)
	q.Set("first", strconv.Itoa(first))
	if after != "" {
		q.Set("after", after)
	}
	var body struct {
		Data       []historyRecord `json:"data"`
		Pagination struct {
			Cursor string `json:"cursor"`
		} `json:"pagination"`
	}
	if err := c.get(ctx, "/chat/history", q, &body); err != nil {
		return nil, "", err
	}
	return body.Data, body.Pagination.Cursor, nil
}

const historyPageSize = 100

// ChatHistory fetches up to limit archived messages for a channel, oldest
// first, following pagination cursors as needed.
func (c *Client) ChatHistory(ctx context.Context, channelID string, limit int) ([]message.Message, error) {
	if channelID == "" {
		return nil, fmt.Errorf("channelID empty")
	}
	if limit <= 0 {
		limit = historyPageSize
	}
	var out []message.Message
	after := ""
	for len(out) < limit {
		first := historyPageSize
		if remaining := limit - len(out); remaining < first {
			first = remaining
		}
		page, cursor, err := c.historyPage(ctx, channelID, first, after)
		if err != nil {
			return nil, err
		}
		for _, r := range page {
			out = append(out, message.Standard{
				ID:     r.ID,
				At:     r.Timestamp,
				Author: message.Author{ID: r.UserID, Name: r.UserName, Color: r.Color},
				Text:   r.Text,
				Badges: r.Badges,
			})
		}
		if cursor == "" || len(page) == 0 {
			break
		}
		after = cursor
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetTokenBalance fetches the viewer's donation token balance. The balance
// itself is owned by the remote collaborator; the core only reads it.
func (c *Client) GetTokenBalance(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, fmt.Errorf("userID empty")
	}
	q := url.Values{}
	q.Set("user_id", userID)
	var body struct {
		Data struct {
			Balance int `json:"balance"`
		} `json:"data"`
	}
	if err := c.get(ctx, "/tokens/balance", q, &body); err != nil {
		return 0, err
	}
	return body.Data.Balance, nil
}

// DeductTokens spends amount from the viewer's balance (for a donation) and
// returns the remaining balance.
func (c *Client) DeductTokens(ctx context.Context, userID string, amount int) (int, error) {
	if userID == "" {
		return 0, fmt.Errorf("userID empty")
	}
	if amount <= 0 {
		return 0, fmt.Errorf("amount must be positive")
	}
	payload, err := json.Marshal(map[string]any{"user_id": userID, "amount": amount})
	if err != nil {
		return 0, err
	}
	var body struct {
		Data struct {
			Balance int `json:"balance"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/tokens/deduct", nil, bytes.NewReader(payload), &body); err != nil {
		return 0, err
	}
	return body.Data.Balance, nil
}
