// Package supabase talks to the hosted Supabase APIs: GoTrue for auth,
// Storage for files and PostgREST for table access.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// APIError is a non-2xx answer from a Supabase API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("supabase request failed with status %d: %s", e.Status, e.Message)
}

// Client is a thin HTTP client for one Supabase project.
type Client struct {
	baseURL    string
	anonKey    string
	serviceKey string
	httpClient *http.Client
}

// NewClient builds a client. Either key may be empty; requests fall back
// to whichever is configured.
func NewClient(baseURL, anonKey, serviceKey string) *Client {
	if !strings.HasPrefix(baseURL, "http") {
		baseURL = "https://" + baseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		anonKey:    anonKey,
		serviceKey: serviceKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// WithHTTPClient swaps the underlying http.Client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// BaseURL returns the project URL without trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) publicKey() string {
	if c.anonKey != "" {
		return c.anonKey
	}
	return c.serviceKey
}

func (c *Client) privilegedKey() string {
	if c.serviceKey != "" {
		return c.serviceKey
	}
	return c.anonKey
}

// request describes one API call.
type request struct {
	method  string
	path    string // includes the API prefix, e.g. /rest/v1/tasks
	body    interface{}
	raw     io.Reader
	bearer  string
	apiKey  string
	headers map[string]string
}

func (c *Client) do(ctx context.Context, r request) ([]byte, http.Header, error) {
	reqBody := r.raw
	if reqBody == nil && r.body != nil {
		jsonData, err := json.Marshal(r.body)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, reqBody)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", r.apiKey)
	bearer := r.bearer
	if bearer == "" {
		bearer = r.apiKey
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, resp.Header, &APIError{Status: resp.StatusCode, Message: errorMessage(respBody)}
	}
	return respBody, resp.Header, nil
}

// errorMessage pulls the human readable part out of the different error
// shapes GoTrue, Storage and PostgREST return.
func errorMessage(body []byte) string {
	var e struct {
		Message          string `json:"message"`
		Msg              string `json:"msg"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if json.Unmarshal(body, &e) == nil {
		for _, s := range []string{e.ErrorDescription, e.Message, e.Msg, e.Error} {
			if s != "" {
				return s
			}
		}
	}
	return strings.TrimSpace(string(body))
}

// REST issues a PostgREST call with the privileged key. path is relative
// to /rest/v1 and carries the query string.
func (c *Client) REST(ctx context.Context, method, path string, body interface{}, headers map[string]string) ([]byte, error) {
	h := map[string]string{"Prefer": "return=representation"}
	for k, v := range headers {
		h[k] = v
	}
	data, _, err := c.do(ctx, request{
		method:  method,
		path:    "/rest/v1" + path,
		body:    body,
		apiKey:  c.privilegedKey(),
		headers: h,
	})
	return data, err
}
