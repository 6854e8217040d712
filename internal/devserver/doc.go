// Package devserver is a small in-memory implementation of the session API
// that authstate talks to: POST /sessions and GET /me. It backs the demo
// command and end-to-end tests.
//
// Session tokens are JWTs signed by a jwt.Manager and carry the account's
// email, permissions and roles. Refresh tokens are opaque and never
// redeemed.
package devserver
