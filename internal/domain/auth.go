package domain

import "time"

// Identity is an account known to the session store.
type Identity struct {
	ID        string            `json:"id"`
	Email     string            `json:"email"`
	Metadata  map[string]string `json:"user_metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// FullName returns the display name captured at registration, if any.
func (i Identity) FullName() string {
	if i.Metadata == nil {
		return ""
	}
	return i.Metadata["full_name"]
}

// Session is an access/refresh token pair issued by the session store.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"-"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	Identity     Identity  `json:"user"`
}

// Expired reports whether the access token is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return s == nil || !now.Before(s.ExpiresAt)
}
