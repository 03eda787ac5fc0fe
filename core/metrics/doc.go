// Package metrics defines the sinks that receive optimizer progress. Sinks
// like PromSink and InfluxSink record per-iteration convergence events and
// run summaries and can be combined with NewMultiSink. The factory helpers
// return a MultiSink automatically when multiple sinks are configured.
package metrics
