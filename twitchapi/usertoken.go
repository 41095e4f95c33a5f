package twitchapi

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"
	oauthtwitch "golang.org/x/oauth2/twitch"
)

// UserOAuthConfig builds the oauth2 config for the chat user token (the one
// IRC actually needs, scoped chat:read/chat:edit).
func UserOAuthConfig(clientID, clientSecret, redirectURI, scopes string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       strings.Fields(scopes),
		Endpoint:     oauthtwitch.Endpoint,
	}
}

// RefreshUserToken exchanges a refresh token for a fresh access token.
// Returns (access, refresh, expiry, scope).
func RefreshUserToken(ctx context.Context, cfg *oauth2.Config, refreshToken string) (string, string, time.Time, string, error) {
	if refreshToken == "" {
		return "", "", time.Time{}, "", fmt.Errorf("refresh token empty")
	}
	src := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return "", "", time.Time{}, "", fmt.Errorf("refresh user token: %w", err)
	}
	return tok.AccessToken, tok.RefreshToken, tok.Expiry, strings.Join(cfg.Scopes, " "), nil
}
