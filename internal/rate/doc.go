// Package rate throttles failed sign-ins with Redis counters.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefixes
// (after the configured namespace):
//   - "si:" counts failed sign-ins per email
//   - "sip:" counts failed sign-ins per client IP
//
// A budget of MaxAttempts failures is allowed per window; the next attempt
// is refused until the window expires.
package rate
