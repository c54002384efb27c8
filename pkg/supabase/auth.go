package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Session is the token pair GoTrue returns after a successful sign-in.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	User         User   `json:"user"`
}

// User is the GoTrue auth user.
type User struct {
	ID           string                 `json:"id"`
	Email        string                 `json:"email"`
	UserMetadata map[string]interface{} `json:"user_metadata,omitempty"`
}

// AuthClient is the subset of GoTrue the handlers rely on.
type AuthClient interface {
	ExchangeCodeForSession(ctx context.Context, authCode, codeVerifier string) (*Session, error)
	AuthorizeURL(provider, redirectTo, codeChallenge string) string
	UpdatePassword(ctx context.Context, accessToken, password string) error
	SignOut(ctx context.Context, accessToken string) error
}

var _ AuthClient = (*Client)(nil)

// ExchangeCodeForSession trades a PKCE authorization code for a session.
func (c *Client) ExchangeCodeForSession(ctx context.Context, authCode, codeVerifier string) (*Session, error) {
	data, _, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/token?grant_type=pkce",
		body: map[string]string{
			"auth_code":     authCode,
			"code_verifier": codeVerifier,
		},
		apiKey: c.publicKey(),
	})
	if err != nil {
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	if s.AccessToken == "" {
		return nil, fmt.Errorf("session response carried no access token")
	}
	return &s, nil
}

// AuthorizeURL is where the browser goes to start an OAuth sign-in.
func (c *Client) AuthorizeURL(provider, redirectTo, codeChallenge string) string {
	q := url.Values{}
	q.Set("provider", provider)
	q.Set("redirect_to", redirectTo)
	q.Set("code_challenge", codeChallenge)
	q.Set("code_challenge_method", "s256")
	return c.baseURL + "/auth/v1/authorize?" + q.Encode()
}

// UpdatePassword sets the password of the user owning accessToken.
func (c *Client) UpdatePassword(ctx context.Context, accessToken, password string) error {
	_, _, err := c.do(ctx, request{
		method: http.MethodPut,
		path:   "/auth/v1/user",
		body:   map[string]string{"password": password},
		apiKey: c.publicKey(),
		bearer: accessToken,
	})
	return err
}

// SignOut revokes the refresh tokens of the session owning accessToken.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	_, _, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/logout?scope=local",
		apiKey: c.publicKey(),
		bearer: accessToken,
	})
	return err
}
