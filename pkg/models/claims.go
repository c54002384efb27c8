package models

import "github.com/golang-jwt/jwt/v5"

// TokenClaims is the claim set of a Supabase access token.
type TokenClaims struct {
	Email        string         `json:"email"`
	Role         string         `json:"role"` // postgres role: "authenticated", "anon", "service_role"
	SessionID    string         `json:"session_id"`
	AppMetadata  map[string]any `json:"app_metadata,omitempty"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the subject, which Supabase sets to the auth user id.
func (c *TokenClaims) UserID() string {
	return c.Subject
}

// AuthUser is the authenticated caller attached to a request context.
type AuthUser struct {
	ID        string
	Email     string
	SessionID string
	Token     string
	Claims    *TokenClaims
}
