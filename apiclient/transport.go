package apiclient

import "net/http"

// TokenSource yields the current session token, or "" when there is none.
type TokenSource interface {
	Token() string
}

// TokenSourceFunc adapts a function to [TokenSource].
type TokenSourceFunc func() string

func (f TokenSourceFunc) Token() string { return f() }

type bearerTransport struct {
	base   http.RoundTripper
	source TokenSource
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	if req.Header.Get("Authorization") != "" {
		return base.RoundTrip(req)
	}
	token := t.source.Token()
	if token == "" {
		return base.RoundTrip(req)
	}

	// RoundTrippers must not modify the caller's request.
	r := req.Clone(req.Context())
	r.Header.Set("Authorization", "Bearer "+token)
	return base.RoundTrip(r)
}
