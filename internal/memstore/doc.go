// Package memstore is an in-memory implementation of the collaborators the
// engine consumes: credential store, role store, session ledger, reset
// ledger, sweeper and login log.
//
// It backs development mode (no DATABASE_URL) and the HTTP and engine tests.
// All data is lost on restart.
package memstore
