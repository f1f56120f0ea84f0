// Package engine implements the attribute graph at the core of propgraph.
//
// # Overview
//
// Schemas declare variants, each with a typed prop tree. Components
// instantiate variants and carry their own values for the variant's props.
// Every value lives at an AttributeContext: a discriminator (prop, internal
// provider, or external provider) plus schema, variant, and component scope.
// Reads resolve the most specific value visible to a read context, so a
// component-level override shadows the variant default, which shadows the
// schema default.
//
// Values are computed: each value links to an AttributePrototype naming a
// function and the provider-sourced arguments feeding it. Providers expose
// values through sockets; connections between sockets bind one component's
// external provider into another component's internal provider. Frames
// compose components spatially, wiring sockets by name (configuration
// frames) or fanning child providers through the frame's own sockets
// (aggregation frames).
//
// Component-level values start as unsealed proxies of their variant-level
// originals, so variant edits flow through until a component takes an
// override, which seals the proxy.
//
// # Units of work
//
// All mutations run inside a Unit, a transaction over the injected Store.
// Propagation roots accumulate on the unit and reach the job queue only
// after a successful commit; ProcessDependentValues later recomputes
// everything downstream of those roots.
//
// # Error Classification
//
// Errors carry a class (validation, integrity, store, conflict) and a code
// naming the exact failure. Use the helper predicates to branch:
//
//	if engine.IsNotFound(err) {
//	    // fail-closed read, nothing at this context
//	}
//
// # Collaborators
//
// The engine takes its collaborators (Store, JobQueue, FuncEvaluator,
// Notifier) as interfaces declared in this package and implemented in
// pkg/stores, pkg/jobs, pkg/funcs, and pkg/telemetry.
package engine
