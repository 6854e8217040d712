// Package permission evaluates permission and role requirements against the
// claims carried by a session token.
//
// # Architecture boundaries
//
// This package is pure and performs no I/O. It does NOT decode tokens; callers
// pass the permission and role lists they already hold.
package permission
