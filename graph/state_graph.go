package graph

import "fmt"

// StateGraph is the fluent builder for executable graphs.
//
// Example:
//
//	g, err := graph.NewStateGraph(schema).
//	  AddNode("step", stepFunc).
//	  SetEntryPoint("step").
//	  SetFinishPoint("step").
//	  Compile()
//
// Build errors are collected and reported by Compile so call chains stay
// readable; the first error wins.
type StateGraph struct {
	graph *Graph
	err   error
}

// NewStateGraph creates a builder with the given state schema. A nil schema
// yields a schema where every field overwrites.
func NewStateGraph(schema *Schema) *StateGraph {
	return &StateGraph{graph: newGraph(schema)}
}

func (sg *StateGraph) record(err error) {
	if sg.err == nil && err != nil {
		sg.err = err
	}
}

// AddNode registers a named node function. Options mutate the node before
// registration, e.g. marking it detached. Chainable.
func (sg *StateGraph) AddNode(id string, fn NodeFunc, optFns ...func(n *Node)) *StateGraph {
	node := &Node{ID: id, Function: fn}
	for _, optFn := range optFns {
		optFn(node)
	}
	sg.record(sg.graph.addNode(node))
	return sg
}

// AddEdge adds an unconditional edge between two nodes. Chainable.
func (sg *StateGraph) AddEdge(from, to string) *StateGraph {
	sg.record(sg.graph.addEdge(&Edge{From: from, To: to}))
	return sg
}

// AddConditionalEdges adds router-driven transitions from a node. All
// possible targets must be declared in pathMap; a router result outside the
// map fails the execution. Chainable.
func (sg *StateGraph) AddConditionalEdges(from string, router RouterFunc, pathMap map[string]string) *StateGraph {
	sg.record(sg.graph.addConditionalEdge(&ConditionalEdge{From: from, Router: router, PathMap: pathMap}))
	return sg
}

// SetEntryPoint declares the first node executed per turn. Chainable.
func (sg *StateGraph) SetEntryPoint(nodeID string) *StateGraph {
	sg.record(sg.graph.setEntryPoint(nodeID))
	return sg
}

// SetFinishPoint routes a node to the virtual End node. Chainable.
func (sg *StateGraph) SetFinishPoint(nodeID string) *StateGraph {
	sg.record(sg.graph.addEdge(&Edge{From: nodeID, To: End}))
	return sg
}

// Compile validates the topology and returns the immutable graph.
func (sg *StateGraph) Compile() (*Graph, error) {
	if sg.err != nil {
		return nil, fmt.Errorf("invalid graph: %w", sg.err)
	}
	if err := sg.graph.validate(); err != nil {
		return nil, fmt.Errorf("invalid graph: %w", err)
	}
	return sg.graph, nil
}

// MustCompile compiles the graph or panics. Intended for wiring code where
// the topology is static and a build error is a programming mistake.
func (sg *StateGraph) MustCompile() *Graph {
	g, err := sg.Compile()
	if err != nil {
		panic(err)
	}
	return g
}
