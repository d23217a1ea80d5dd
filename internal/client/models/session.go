package models

import "time"

// Session is the token pair issued by the auth service together with the
// identity it was issued for.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int64 `json:"expires_in"`
	// ExpiresAt is the unix time (seconds) the access token stops being valid.
	// Zero when the service did not report it.
	ExpiresAt int64 `json:"expires_at,omitempty"`
	User      *User `json:"user"`
}

// Expiry returns ExpiresAt as a time, or the zero time when unknown.
func (s *Session) Expiry() time.Time {
	if s == nil || s.ExpiresAt == 0 {
		return time.Time{}
	}
	return time.Unix(s.ExpiresAt, 0)
}

// Expired reports whether the access token is expired, or will be within
// margin, at now. Sessions with unknown expiry are treated as valid.
func (s *Session) Expired(now time.Time, margin time.Duration) bool {
	exp := s.Expiry()
	if exp.IsZero() {
		return false
	}
	return !now.Add(margin).Before(exp)
}
