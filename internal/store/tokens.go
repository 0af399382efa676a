package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"meetrecap/internal/identity"
)

// SaveOAuthTokens upserts the token set for one user/provider pair.
func (s *Service) SaveOAuthTokens(ctx context.Context, userID, provider string, t identity.Tokens) error {
	now := time.Now().UTC()
	var err error
	if s.driver == "mysql" {
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO oauth_tokens (user_id, provider, access_token, refresh_token, expires_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON DUPLICATE KEY UPDATE access_token = VALUES(access_token),
				refresh_token = VALUES(refresh_token),
				expires_at = VALUES(expires_at),
				updated_at = VALUES(updated_at)`,
			userID, provider, t.AccessToken, t.RefreshToken, nullableTime(t.ExpiresAt), now)
	} else {
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO oauth_tokens (user_id, provider, access_token, refresh_token, expires_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(user_id, provider) DO UPDATE SET access_token = excluded.access_token,
				refresh_token = excluded.refresh_token,
				expires_at = excluded.expires_at,
				updated_at = excluded.updated_at`,
			userID, provider, t.AccessToken, t.RefreshToken, nullableTime(t.ExpiresAt), now)
	}
	if err != nil {
		return fmt.Errorf("save oauth tokens: %w", err)
	}
	return nil
}

// GetOAuthTokens reads the token set for one user/provider pair.
func (s *Service) GetOAuthTokens(ctx context.Context, userID, provider string) (*identity.Tokens, error) {
	var t identity.Tokens
	var expires sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT access_token, refresh_token, expires_at FROM oauth_tokens
		 WHERE user_id = ? AND provider = ?`,
		userID, provider).Scan(&t.AccessToken, &t.RefreshToken, &expires)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get oauth tokens: %w", err)
	}
	if expires.Valid {
		t.ExpiresAt = expires.Time
	}
	return &t, nil
}

// nullableTime maps the zero time to NULL so absent timestamps stay absent.
func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}
