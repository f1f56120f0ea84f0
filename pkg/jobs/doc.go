// Package jobs provides the propagation work queue and the runner that drains
// it. Units of work enqueue DependentValuesUpdate items on commit; the runner
// executes each item in its own unit, recomputing the dependent value graph.
package jobs
