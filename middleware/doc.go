// Package middleware gates server-rendered pages on the session cookie.
//
// # Render guard
//
//   - [Guard.Wrap] / [WithSSRAuth] wrap a [RenderFunc]: no token cookie
//     redirects to "/", claims missing a required permission or role redirect
//     to "/dashboard", and a loader failing with authstate.ErrAuthTokenInvalid
//     expires both session cookies and redirects to "/".
//   - [Guard.Handler] adapts a guarded loader to net/http.
//
// Claims are decoded without verification unless the guard has a verifier
// ([WithVerifier] or JWT.Verify in [NewGuardFromConfig]). Unverified claims
// only choose a redirect; the backend stays the authority on every API call.
//
// # API side
//
// [RequireBearer] verifies the Authorization header for backend endpoints.
//
// # What this package must NOT do
//
//   - Call the session API.
//   - Hold per-user state between requests.
package middleware
