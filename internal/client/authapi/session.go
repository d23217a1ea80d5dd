package authapi

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/optionsauth/internal/client/models"
	"github.com/dmitrijs2005/optionsauth/internal/client/repositories/storage"
	"github.com/golang-jwt/jwt/v5"
)

func (c *HTTPClient) loadSession(ctx context.Context) (*models.Session, error) {
	var s models.Session
	ok, err := storage.GetJSON(ctx, c.store, c.storageKey, &s)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if !ok || s.AccessToken == "" {
		return nil, nil
	}
	return &s, nil
}

func (c *HTTPClient) saveSession(ctx context.Context, s *models.Session) error {
	raw, err := c.encodeSession(s)
	if err != nil {
		return err
	}
	if err := c.store.Set(ctx, c.storageKey, raw); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// completeCodeExchange stores the exchanged session and drops the code
// verifier in one write, so a verifier is never left behind a saved session.
func (c *HTTPClient) completeCodeExchange(ctx context.Context, s *models.Session) error {
	raw, err := c.encodeSession(s)
	if err != nil {
		return err
	}
	b := storage.Batch{c.storageKey: raw, c.verifierKey(): nil}
	if err := c.store.Apply(ctx, b); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (c *HTTPClient) encodeSession(s *models.Session) ([]byte, error) {
	if s.ExpiresAt == 0 {
		s.ExpiresAt = expiresAt(s, c.now())
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	return raw, nil
}

func (c *HTTPClient) removeSession(ctx context.Context) error {
	if err := c.store.Remove(ctx, c.storageKey); err != nil {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

// expiresAt works out the unix expiry of a session that did not carry
// expires_at: from expires_in when present, else from the access token's
// exp claim. The token signature is not checked; the service does that.
func expiresAt(s *models.Session, now time.Time) int64 {
	if s.ExpiresIn > 0 {
		return now.Unix() + s.ExpiresIn
	}

	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(s.AccessToken, &claims); err != nil {
		return 0
	}
	if claims.ExpiresAt == nil {
		return 0
	}
	return claims.ExpiresAt.Unix()
}
