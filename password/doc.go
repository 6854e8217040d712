// Package password hashes and verifies passwords with argon2id for the
// reference session backend.
//
// Hashes are PHC strings:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Hasher.NeedsRehash] reports hashes made with weaker parameters so a backend
// can re-hash after the next successful sign-in.
package password
