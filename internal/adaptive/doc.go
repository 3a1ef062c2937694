// Package adaptive implements the controller that tracks each key's recent
// access rate in a sliding window and promotes hot keys to a higher
// replication factor. It satisfies internal/ring.RFProvider, so the ring
// reads the hot-key map without owning any hot-key state itself: the
// controller owns the map, the ring only looks it up.
//
// The recalculation loop follows the same ticker pattern as the TTL sweeper
// (context + clock.Source.Interval + WaitGroup), reusing internal/clock so
// tests drive recalculation with a clock.Virtual instead of real time.
package adaptive
