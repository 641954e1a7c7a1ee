// Package password implements bcrypt password hashing and verification.
//
// # Output format
//
// Hashes are standard modular-crypt bcrypt strings:
//
//	$2a$<cost>$<22-char salt><31-char hash>
//
// [Bcrypt.NeedsUpgrade] reports hashes produced with a lower cost than the
// configured one so the caller can re-hash on the next successful login.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Password policy (minimum
// length, forced reset) is enforced by the Engine.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Import any other sessiongate package.
//   - Log plaintext passwords.
package password
