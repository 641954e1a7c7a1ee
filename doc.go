// Package sessiongate is a session-bound authentication and authorization
// engine: signed access tokens tied to revocable Redis sessions, a per
// (ip, path) failure rate limiter, attribute-based RBAC with a super-admin
// bypass, and a single-use password reset flow.
//
// Engine methods are safe to call from multiple goroutines after
// [Builder.Build].
//
// # Architecture boundaries
//
// sessiongate is the public surface. It exposes [Engine], [Builder],
// [Config], the collaborator interfaces ([UserProvider], [RoleProvider],
// [SessionLedger], [ResetLedger], [Sweeper]) and the error taxonomy with
// [StatusCode] and [PublicMessage]. Flow orchestration, rate limiter
// bookkeeping and audit dispatch live under internal/.
//
// A session is valid only while its Redis record exists, embeds the token
// being presented, and its user is enabled. The relational ledger mirrors
// sessions for listing, audit and bulk revocation and may lag behind Redis.
//
// # What this package must NOT do
//
//   - Expose Redis clients or the session record encoding in its public API.
//   - Translate errors to HTTP responses (middleware and internal/httpapi do).
//   - Grant access when a store call fails.
package sessiongate
