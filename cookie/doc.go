// Package cookie defines the storage contract for session cookies and two
// implementations of it: a process-wide [MemoryJar] that plays the role of a
// browser profile shared by every tab, and an [HTTPJar] that reads cookies from
// an incoming request and writes Set-Cookie headers on the response.
//
// # Architecture boundaries
//
// This package only stores and expires name/value pairs. It does NOT decide
// when tokens are created or destroyed; the session store and the render guard
// own those decisions.
package cookie
