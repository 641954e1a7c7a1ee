// Package postgres stores users, roles, attribute mappings, the session
// ledger, password reset tokens and the login log in PostgreSQL.
//
// Queries go through database/sql with the pgx stdlib driver. The schema is
// embedded and applied with Migrate.
//
// # Architecture boundaries
//
// Store satisfies sessiongate.UserProvider, RoleProvider, SessionLedger,
// ResetLedger and Sweeper. LoginLogSink is an audit sink that appends login
// attempts. Missing rows are reported with the sessiongate sentinels; every
// other database error is returned unwrapped for the engine to classify.
//
// # What this package must NOT do
//
//   - Touch Redis or the ephemeral session records.
//   - Hash or compare passwords.
//   - Update or delete login_logs rows.
package postgres
