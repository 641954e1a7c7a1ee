// Package session provides the Redis-backed ephemeral session store and the
// versioned binary record it persists.
//
// # Binary encoding
//
// A record is a schema version byte followed by uint16 length-prefixed
// strings and big-endian int64 timestamps. Decode either consumes the whole
// blob or fails; a partially parsed record is never returned.
//
// # Architecture boundaries
//
// This package owns the [Store] (Redis operations) and the [Session] model. It
// does NOT verify tokens, check user status, or touch the durable ledger;
// those belong to the engine.
//
// # What this package must NOT do
//
//   - Import sessiongate, jwt, or permission (no upward imports).
//   - Extend a TTL additively: every write re-applies the full window.
package session
