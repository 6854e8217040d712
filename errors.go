package authstate

import "errors"

var (
	// ErrAuthTokenInvalid signals that the session token was rejected by the
	// backend. Page loaders return it (wrapped or not) to force a sign-out.
	ErrAuthTokenInvalid = errors.New("auth token invalid")
	// ErrEmptyToken is recorded when the backend accepted credentials but
	// returned no session token.
	ErrEmptyToken = errors.New("session response carried no token")
	// ErrNotInitialized is returned by operations that need Init to have run.
	ErrNotInitialized = errors.New("store not initialized")
	// ErrStoreClosed is returned by operations on a closed store.
	ErrStoreClosed = errors.New("store closed")
	// ErrChannelUnavailable wraps failures to open the cross-tab channel.
	ErrChannelUnavailable = errors.New("cross-tab channel unavailable")
	// ErrInvalidConfig wraps configuration validation failures.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrBuilderUsed is returned by a second Build on the same Builder.
	ErrBuilderUsed = errors.New("builder already used")
)
