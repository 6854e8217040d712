// Package jwt reads and issues the session tokens whose claims carry a user's
// email, permissions and roles.
//
// [Decode] reads claims without checking the signature. Its output is
// advisory: it is only safe where the token is read back by the same backend
// that issued it. [Manager] verifies signatures (HS256 or Ed25519) and should
// be preferred wherever the verification key is available.
package jwt
