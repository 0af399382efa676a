// Package identity resolves and refreshes the OAuth tokens the pipeline
// needs to download recordings. The authorization-code flows that mint the
// initial tokens live outside the core; this package only reads stored
// tokens and exchanges refresh tokens.
package identity

import (
	"context"
	"fmt"
	"time"

	"meetrecap/internal/config"

	"golang.org/x/oauth2"
)

// Tokens is one stored token set for a user/provider pair.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Expired reports whether the access token needs refreshing. Tokens without
// a recorded expiry are treated as valid.
func (t Tokens) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && t.ExpiresAt.Before(now)
}

var endpoints = map[string]oauth2.Endpoint{
	"zoom": {
		AuthURL:  "https://zoom.us/oauth/authorize",
		TokenURL: "https://zoom.us/oauth/token",
	},
	"google": {
		AuthURL:  "https://accounts.google.com/o/oauth2/auth",
		TokenURL: "https://oauth2.googleapis.com/token",
	},
}

// Refresher exchanges refresh tokens for fresh access tokens.
type Refresher struct {
	configs map[string]*oauth2.Config
}

func NewRefresher(cfg config.OAuthConfig) *Refresher {
	return &Refresher{
		configs: map[string]*oauth2.Config{
			"zoom": {
				ClientID:     cfg.Zoom.ClientID,
				ClientSecret: cfg.Zoom.ClientSecret,
				Endpoint:     endpoints["zoom"],
			},
			"google": {
				ClientID:     cfg.Google.ClientID,
				ClientSecret: cfg.Google.ClientSecret,
				Endpoint:     endpoints["google"],
			},
		},
	}
}

// Refresh exchanges the refresh token once and returns the rotated token
// set. Providers that do not rotate refresh tokens keep the old one.
func (r *Refresher) Refresh(ctx context.Context, provider string, old Tokens) (Tokens, error) {
	conf, ok := r.configs[provider]
	if !ok {
		return Tokens{}, fmt.Errorf("no oauth client configured for provider %s", provider)
	}
	src := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: old.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		return Tokens{}, fmt.Errorf("refresh %s token: %w", provider, err)
	}
	fresh := Tokens{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = old.RefreshToken
	}
	return fresh, nil
}
