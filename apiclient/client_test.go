package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestCreateSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != SessionsPath {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var creds Credentials
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if creds.Email != "ada@example.com" || creds.Password != "pw" {
			t.Errorf("creds = %+v", creds)
		}
		_ = json.NewEncoder(w).Encode(SessionResponse{
			Token:        "tok",
			RefreshToken: "ref",
			Permissions:  []string{"read"},
			Roles:        []string{"editor"},
		})
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	resp, err := c.CreateSession(context.Background(), Credentials{Email: "ada@example.com", Password: "pw"})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if resp.Token != "tok" || resp.RefreshToken != "ref" || resp.Roles[0] != "editor" {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestMeAttachesBearerPerRequest(t *testing.T) {
	var seen atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.Store(r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(Profile{Email: "ada@example.com"})
	}))
	defer srv.Close()

	token := "first"
	c, err := New(srv.URL, WithTokenSource(TokenSourceFunc(func() string { return token })))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := c.Me(context.Background()); err != nil {
		t.Fatalf("Me: %v", err)
	}
	if got := seen.Load(); got != "Bearer first" {
		t.Fatalf("Authorization = %v", got)
	}

	token = "second"
	if _, err := c.Me(context.Background()); err != nil {
		t.Fatalf("Me: %v", err)
	}
	if got := seen.Load(); got != "Bearer second" {
		t.Fatalf("Authorization = %v", got)
	}

	token = ""
	if _, err := c.Me(context.Background()); err != nil {
		t.Fatalf("Me: %v", err)
	}
	if got := seen.Load(); got != "" {
		t.Fatalf("Authorization without token = %v", got)
	}
}

// headerTransport tags requests so a test can tell its transport was used.
type headerTransport struct{}

func (headerTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.Header.Set("X-Transport", "custom")
	return http.DefaultTransport.RoundTrip(r)
}

func TestOptionOrderKeepsBearerAndTransport(t *testing.T) {
	type seenHeaders struct{ auth, transport string }
	var seen atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.Store(seenHeaders{r.Header.Get("Authorization"), r.Header.Get("X-Transport")})
		_ = json.NewEncoder(w).Encode(Profile{Email: "ada@example.com"})
	}))
	defer srv.Close()

	ts := TokenSourceFunc(func() string { return "tok" })
	hc := &http.Client{Transport: headerTransport{}}

	tests := []struct {
		name string
		opts []Option
	}{
		{"client first", []Option{WithHTTPClient(hc), WithTokenSource(ts), WithTimeout(time.Second)}},
		{"token source first", []Option{WithTokenSource(ts), WithTimeout(time.Second), WithHTTPClient(hc)}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, err := New(srv.URL, tc.opts...)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if c.http.Timeout != time.Second {
				t.Fatalf("Timeout = %v, want 1s", c.http.Timeout)
			}
			if _, err := c.Me(context.Background()); err != nil {
				t.Fatalf("Me: %v", err)
			}
			got := seen.Load().(seenHeaders)
			if got.auth != "Bearer tok" || got.transport != "custom" {
				t.Fatalf("headers = %+v", got)
			}
		})
	}
}

func TestUnauthorizedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "token expired", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = c.Me(context.Background())
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("Me error = %v, want ErrUnauthorized", err)
	}
	var se *StatusError
	if !errors.As(err, &se) || se.Body != "token expired" {
		t.Fatalf("StatusError = %+v", se)
	}
}

func TestNewRejectsRelativeURL(t *testing.T) {
	if _, err := New("/api"); err == nil {
		t.Fatal("expected error for relative base url")
	}
}
