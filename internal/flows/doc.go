// Package flows contains pure-function orchestrators for every Engine operation.
//
// Each flow function (RunLogin, RunValidate, RunRefresh, RunResetPassword,
// etc.) accepts a typed dependency struct and returns results without
// side-effects beyond those dependencies, so every branch can be tested with
// in-memory fakes.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the session store, ledgers, JWT
// manager, password hasher, audit emitter, and metrics. They do NOT own any
// of these resources; ownership stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import sessiongate (to avoid import cycles).
//   - Perform I/O directly. All I/O is mediated through dependency functions.
package flows
