// Package metrics defines the Recorder port consulted by the command
// executor, connection handler, TTL sweeper and gossip actor to report
// counters, gauges, histograms and timings.
//
// Two implementations are provided: NoOp, which every call compiles away to
// nothing measurable on the hot path, and Memory, an in-process recorder that
// stores every sample for assertions in tests. A production binary is
// expected to wire a third implementation (Prometheus, StatsD, ...) behind
// this same interface; no concrete backend ships with this repository.
package metrics
