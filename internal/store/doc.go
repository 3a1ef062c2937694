// Package store implements the command executor applied to one shard's
// data and TTL maps.
//
// Engine holds the actual key -> Value map and key -> expiry map for one
// shard. ParseCommand turns a RESP command array into a Command, and Executor
// dispatches it against an Engine, producing a resp.Value reply. Both types are built
// to be owned by exactly one goroutine at a time (the shard actor,
// internal/shard) — neither holds an internal mutex: per-key
// serializability comes from single-owner message passing, not from
// locking.
//
// Lazy expiry happens inline on every access: Engine checks the accessed
// key's expiry against an injected clock.Source before the operation
// proceeds.
package store
