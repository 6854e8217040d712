// Package authstate keeps a signed-in user's identity and permission claims in
// memory, persists session tokens in cookies, and keeps sibling tabs that share
// a cookie profile consistent on sign-out.
//
// A [Store] is built once per tab with [Builder.Build], initialized with
// [Store.Init], and released with [Store.Close]. Store methods are safe to call
// from multiple goroutines.
//
// # Architecture boundaries
//
// authstate is the client-side surface. Server-side page gating lives in the
// middleware package; cookie storage, the cross-tab channel, and the backend
// HTTP client live in cookie, broadcast, and apiclient.
//
// # What this package must NOT do
//
//   - Treat a token cookie as proof of identity. IsAuthenticated is true only
//     after the backend confirmed the user (sign-in or GET /me).
//   - Mutate shared HTTP client defaults. The bearer token is attached per
//     request from the store's cookie jar.
//   - Re-broadcast a sign-out it received from another tab.
package authstate
