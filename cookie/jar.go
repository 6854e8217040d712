package cookie

import (
	"net/http"
	"time"
)

const (
	// TokenName is the cookie holding the session token.
	TokenName = "nextauth.token"
	// RefreshTokenName is the cookie holding the refresh token.
	RefreshTokenName = "nextauth.refreshToken"

	// DefaultMaxAge is the lifetime given to both session cookies.
	DefaultMaxAge = 30 * 24 * time.Hour
	// DefaultPath scopes session cookies to the whole site.
	DefaultPath = "/"
)

// Options controls how a cookie is written.
type Options struct {
	MaxAge   time.Duration
	Path     string
	Secure   bool
	HTTPOnly bool
	SameSite http.SameSite
}

// SessionOptions returns the options used for both session cookies.
func SessionOptions() Options {
	return Options{
		MaxAge: DefaultMaxAge,
		Path:   DefaultPath,
	}
}

// Jar is the semantic contract of cookie storage.
//
// Destroy must be given the Path and scope the cookie was set with; a browser
// only expires a cookie whose path matches. Destroy on an absent cookie is a
// no-op. Concurrent writers are not coordinated: the last Set or
// Destroy wins.
type Jar interface {
	Get(name string) (string, bool)
	Set(name, value string, opts Options)
	Destroy(name string, opts Options)
}

// DestroySession removes both session cookies from jar. opts should be the
// options the cookies were set with.
func DestroySession(jar Jar, opts Options) {
	if jar == nil {
		return
	}
	jar.Destroy(TokenName, opts)
	jar.Destroy(RefreshTokenName, opts)
}
