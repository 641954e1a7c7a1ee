// Package rate implements the Redis bookkeeping behind the authentication
// failure limiter.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefixes:
//   - fail:api:<ip>:<path>  failure counter, expires after the fail window
//   - block:api:<ip>:<path> block flag, expires after the block time
//
// # What this package must NOT do
//
//   - Decide HTTP responses. The middleware turns a block into 429.
//   - Be imported outside the sessiongate module.
package rate
