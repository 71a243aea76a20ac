// Package graph implements the state-graph engine that drives ChatGraph's
// conversation pipeline. It provides:
//
//   - State: the per-turn working record flowing between nodes
//   - Schema: a declarative per-field merge policy (reducer table)
//   - StateGraph: a fluent builder for node topologies with unconditional
//     and conditional edges
//   - Executor: sequential execution with routing, step limits, context
//     cancellation and optional per-key turn serialization
//
// Nodes are pure with respect to their input: each node receives a state
// snapshot and returns only the fields it changed; the executor merges the
// partial update through the schema's reducers before routing to the next
// node. This keeps merge behavior independently testable and eliminates
// aliasing hazards between nodes.
package graph
