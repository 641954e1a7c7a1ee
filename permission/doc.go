// Package permission provides the attribute registry and the RBAC resolver
// used by sessiongate authorization checks.
//
// # Attributes
//
// An attribute is a named boolean capability such as "view-users". The
// [Registry] assigns each one a stable bit in a [Mask64], so at most
// [MaxAttributes] attributes can be registered. A role grants attributes
// through mapping rows; a missing row and a row holding false both deny,
// but only the latter appears in [Attributes.Map].
//
// # Super-admin
//
// A user whose role name equals the configured super-admin role resolves to
// every registered attribute set to true, whatever the mapping rows say.
//
// # Architecture boundaries
//
// This package is a pure in-memory data structure with no I/O. The Engine
// loads roles and mapping rows and hands them to [Resolver.Resolve].
//
// # What this package must NOT do
//
//   - Access Redis, databases, or the network.
//   - Import sessiongate, jwt, or session.
//   - Cache resolved attributes across requests.
package permission
