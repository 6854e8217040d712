package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	SessionsPath = "/sessions"
	MePath       = "/me"

	maxErrorBody = 4 << 10
)

// ErrUnauthorized is matched by errors.Is for 401 responses.
var ErrUnauthorized = errors.New("unauthorized")

// Credentials is the sign-in request body.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionResponse is the body returned by POST /sessions.
type SessionResponse struct {
	Token        string   `json:"token"`
	RefreshToken string   `json:"refreshToken"`
	Permissions  []string `json:"permissions"`
	Roles        []string `json:"roles"`
}

// Profile is the body returned by GET /me.
type Profile struct {
	Email       string   `json:"email"`
	Permissions []string `json:"permissions"`
	Roles       []string `json:"roles"`
}

// StatusError reports a non-2xx response.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.StatusCode)
}

func (e *StatusError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

// Client calls the session API.
type Client struct {
	baseURL *url.URL
	http    *http.Client

	timeout    time.Duration
	hasTimeout bool
	source     TokenSource
}

// Option configures a [Client].
type Option func(*Client)

// WithHTTPClient replaces the underlying client. hc is copied. Its Transport
// is wrapped, not replaced, when a token source is also configured, and
// WithTimeout overrides its Timeout, regardless of option order.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			cp := *hc
			c.http = &cp
		}
	}
}

// WithTimeout bounds each request. Zero leaves requests unbounded.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
		c.hasTimeout = true
	}
}

// WithTokenSource attaches "Authorization: Bearer <token>" to every request
// for which ts yields a non-empty token.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.source = ts }
}

// New returns a client rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}

	c := &Client{baseURL: u, http: &http.Client{}}
	for _, opt := range opts {
		opt(c)
	}
	if c.hasTimeout {
		c.http.Timeout = c.timeout
	}
	if c.source != nil {
		c.http.Transport = &bearerTransport{base: c.http.Transport, source: c.source}
	}
	return c, nil
}

// CreateSession posts credentials and returns the issued tokens and claims.
func (c *Client) CreateSession(ctx context.Context, creds Credentials) (SessionResponse, error) {
	var out SessionResponse
	err := c.do(ctx, http.MethodPost, SessionsPath, creds, &out)
	return out, err
}

// Me returns the profile of the user owning the attached token.
func (c *Client) Me(ctx context.Context) (Profile, error) {
	var out Profile
	err := c.do(ctx, http.MethodGet, MePath, nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(msg)),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
