// Package ttlsweep implements active TTL eviction: a periodic background
// pass over every shard that removes keys whose TTL has already passed,
// independent of and in addition to the lazy expiry internal/store performs
// on every read and write. Both are needed because a key nobody reads again
// would otherwise linger forever.
//
// The loop is a ticker driven by a clock.Source, wrapped in a
// context/WaitGroup pair so Start/Stop give callers the same
// graceful-shutdown contract as the other background loops in this
// repository.
package ttlsweep
