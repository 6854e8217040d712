// Package apiclient talks to the backend session API: POST /sessions to
// exchange credentials for tokens and GET /me to read the current profile.
//
// Credentials are attached per request by a [TokenSource] consulted from the
// client's RoundTripper, never by mutating shared default headers.
package apiclient
