// Package shard implements the single-owner actor that serializes access to
// one partition of the key space.
//
// # Overview
//
// A Shard is the atomic unit of data ownership. Each Shard holds exactly one
// internal/store.Engine and runs one goroutine — its run loop — which is the
// only code in the process ever permitted to touch that Engine directly.
// Every other goroutine reaches a Shard's data exclusively through Submit,
// SweepNow or RunOnActor, each of which posts a request to the run loop and
// blocks for a reply.
//
// # Concurrency model
//
// Earlier sharded stores in this codebase guarded a map with a
// sync.RWMutex: readers took RLock, writers took Lock, and throughput was
// bounded by contention on that single lock. A Shard instead dedicates one
// goroutine per partition and gives every caller a mailbox instead of a
// lock:
//
//	Caller A ─┐
//	Caller B ─┼─► mailbox (chan request) ─► run loop ─► Engine
//	Caller C ─┘                              (single goroutine, no mutex)
//
// Because the run loop is the sole owner of its Engine, per-key operations
// never race and never need internal/store.Engine to do its own locking.
// The cost is that all operations on a shard are strictly serialized — two
// concurrent GETs on different keys in the same shard still queue behind
// each other. Splitting the key space across more Shards, not adding
// concurrency within one, is how that serialization is amortized.
//
// # Lifecycle
//
// Run starts the actor's loop and blocks until its context is canceled,
// following the same ticker/context/WaitGroup shutdown shape used elsewhere
// in this codebase for long-lived background loops: a caller starts Run in
// its own goroutine, then cancels the context and calls Stop to wait for the
// loop to drain its mailbox and exit.
package shard
