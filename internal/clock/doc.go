// Package clock provides the single time source used throughout ridgecache.
//
// Every notion of "now" in the command executor (internal/store), the TTL
// sweeper (internal/ttlsweep) and the adaptive replication-factor controller
// (internal/adaptive) flows through the Source interface defined here. A
// wall-clock implementation backs the production server; a virtual
// implementation lets tests (and, eventually, a deterministic simulator)
// drive time explicitly instead of racing against the real clock.
package clock
