// Package httpapi exposes the engine over HTTP: registration, login, token
// refresh, logout, password reset and change, the caller's profile, and a
// small RBAC-guarded administration surface.
//
// Every response uses the middleware.Envelope shape. Routes are declared in
// one table so the gate and the attribute requirements of each route are
// visible in a single place.
//
// # Architecture boundaries
//
// Handlers translate JSON and cookies to engine calls and back. They do not
// hash passwords, sign tokens or touch Redis; all of that stays inside the
// engine. Administrative reads and writes go through AdminStore.
//
// # What this package must NOT do
//
//   - Reveal which authentication check failed.
//   - Return password hashes or reset tokens outside the reset flow.
//   - Decide authorization itself instead of asking the engine.
package httpapi
