package graph

import (
	"context"
	"fmt"
)

// Special node identifiers for routing.
const (
	// Start is the virtual entry node.
	Start = "__start__"
	// End is the virtual terminal node.
	End = "__end__"
)

// NodeFunc is the unit of work executed by a node. It receives a read-only
// state snapshot and returns a partial update containing only the fields it
// changed. Returning a nil State is a valid no-op.
type NodeFunc func(ctx context.Context, state State) (State, error)

// RouterFunc selects the next node id based on the merged state. The result
// must be one of the keys declared in the conditional edge's path map.
type RouterFunc func(ctx context.Context, state State) (string, error)

// Node is a named pipeline step.
type Node struct {
	ID       string
	Function NodeFunc
	// Detached exempts the node from turn cancellation. Once execution
	// reaches a detached node it runs on a context detached from the
	// caller's, so state committed by earlier nodes is not lost when the
	// caller gives up mid-turn. Intended for persistence steps.
	Detached bool
}

// Edge is an unconditional transition between two nodes.
type Edge struct {
	From string
	To   string
}

// ConditionalEdge routes to one of several statically declared targets.
type ConditionalEdge struct {
	From    string
	Router  RouterFunc
	PathMap map[string]string // router result -> target node id
}

// Graph is the compiled, immutable topology executed by the Executor. Build
// instances through StateGraph; after Compile the graph is never mutated, so
// it is safe for concurrent executions.
type Graph struct {
	schema           *Schema
	nodes            map[string]*Node
	edges            map[string]*Edge
	conditionalEdges map[string]*ConditionalEdge
	entryPoint       string
}

func newGraph(schema *Schema) *Graph {
	if schema == nil {
		schema = NewSchema()
	}
	return &Graph{
		schema:           schema,
		nodes:            make(map[string]*Node),
		edges:            make(map[string]*Edge),
		conditionalEdges: make(map[string]*ConditionalEdge),
	}
}

// Node returns a node by id.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Schema returns the state schema (reducer table).
func (g *Graph) Schema() *Schema { return g.schema }

// EntryPoint returns the entry node id.
func (g *Graph) EntryPoint() string { return g.entryPoint }

func (g *Graph) addNode(node *Node) error {
	if node.ID == "" {
		return fmt.Errorf("node id cannot be empty")
	}
	if node.ID == Start || node.ID == End {
		return fmt.Errorf("node id %s is reserved", node.ID)
	}
	if _, exists := g.nodes[node.ID]; exists {
		return fmt.Errorf("node %s already exists", node.ID)
	}
	g.nodes[node.ID] = node
	return nil
}

func (g *Graph) addEdge(edge *Edge) error {
	if edge.From == "" || edge.To == "" {
		return fmt.Errorf("edge endpoints cannot be empty")
	}
	if edge.From != Start {
		if _, exists := g.nodes[edge.From]; !exists {
			return fmt.Errorf("source node %s does not exist", edge.From)
		}
	}
	if edge.To != End {
		if _, exists := g.nodes[edge.To]; !exists {
			return fmt.Errorf("target node %s does not exist", edge.To)
		}
	}
	if _, exists := g.edges[edge.From]; exists {
		return fmt.Errorf("node %s already has an outgoing edge", edge.From)
	}
	if _, exists := g.conditionalEdges[edge.From]; exists {
		return fmt.Errorf("node %s already has a conditional edge", edge.From)
	}
	g.edges[edge.From] = edge
	return nil
}

func (g *Graph) addConditionalEdge(edge *ConditionalEdge) error {
	if edge.From == "" {
		return fmt.Errorf("conditional edge source cannot be empty")
	}
	if edge.Router == nil {
		return fmt.Errorf("conditional edge from %s has no router", edge.From)
	}
	if _, exists := g.nodes[edge.From]; !exists && edge.From != Start {
		return fmt.Errorf("source node %s does not exist", edge.From)
	}
	if _, exists := g.edges[edge.From]; exists {
		return fmt.Errorf("node %s already has an outgoing edge", edge.From)
	}
	for _, to := range edge.PathMap {
		if to == End {
			continue
		}
		if _, exists := g.nodes[to]; !exists {
			return fmt.Errorf("target node %s does not exist", to)
		}
	}
	g.conditionalEdges[edge.From] = edge
	return nil
}

func (g *Graph) setEntryPoint(nodeID string) error {
	if _, exists := g.nodes[nodeID]; !exists {
		return fmt.Errorf("entry point node %s does not exist", nodeID)
	}
	g.entryPoint = nodeID
	return nil
}

// validate checks structural integrity before execution.
func (g *Graph) validate() error {
	if g.entryPoint == "" {
		return fmt.Errorf("graph must have an entry point")
	}
	if _, exists := g.nodes[g.entryPoint]; !exists {
		return fmt.Errorf("entry point node %s does not exist", g.entryPoint)
	}
	for id := range g.nodes {
		if _, hasEdge := g.edges[id]; hasEdge {
			continue
		}
		if _, hasCond := g.conditionalEdges[id]; hasCond {
			continue
		}
		return fmt.Errorf("node %s has no outgoing edge; route it to End explicitly", id)
	}
	return nil
}
