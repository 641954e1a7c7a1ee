// Package middleware adapts sessiongate.Engine to net/http.
//
// # Handlers
//
//   - [IPResolver.ClientInfo] resolves the client IP once per request and
//     stores it, with the User-Agent, in the request context.
//   - [RateLimit] rejects blocked (ip, path) pairs with 429 and feeds every
//     response status back to the engine's failure limiter.
//   - [Guard] runs the authentication gate on the bearer token.
//   - [RequireAttributes] enforces RBAC attributes on a guarded route.
//
// Failures are written as the JSON envelope {"code", "message", "data"}
// with the status and message from sessiongate.StatusCode and
// sessiongate.PublicMessage.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. Every
// authentication, authorization and rate-limit decision is delegated.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly.
//   - Access Redis or the relational store.
//   - Expose internal error detail to clients.
package middleware
