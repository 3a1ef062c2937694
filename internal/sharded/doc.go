// Package sharded routes a parsed command to the shard (or shards) that own
// its keys, and assembles the replies from a command that touches more than
// one.
//
// Routing uses xxhash of the key modulo the shard count — a stable, fast
// non-cryptographic hash, the same family internal/ring uses for its
// consistent-hash ring positions. A Router is purely a function of shard
// count and key; it holds no mutable routing table, because ridgecache
// never migrates a key between shards at runtime.
package sharded
