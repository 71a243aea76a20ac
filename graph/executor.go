package graph

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/chatgraph/core"
	"github.com/hupe1980/chatgraph/logging"
)

// ExecutorOptions configure an Executor.
type ExecutorOptions struct {
	// MaxSteps bounds the number of node executions per turn, guarding
	// against topology mistakes that produce unbounded loops. The tool loop
	// has its own round bound; MaxSteps is a safety net above it.
	MaxSteps int
	// SerializationKey names a state field whose string value serializes
	// executions: two turns carrying the same value for this field never
	// merge state concurrently. Empty disables serialization.
	SerializationKey string
	// Logger receives node-level execution logs. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Executor runs a compiled graph to completion for one turn.
//
// Contract: Execute(initialState) returns the final merged state, failing
// with *core.ExecutionError only on unrecoverable faults (unknown node,
// router result outside the declared path map, node returning a hard error).
// Collaborator failures that the pipeline recovers from never surface here;
// recovering is the owning node's job.
type Executor struct {
	graph  *Graph
	opts   ExecutorOptions
	logger logging.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewExecutor creates an executor for the given compiled graph.
func NewExecutor(g *Graph, optFns ...func(o *ExecutorOptions)) (*Executor, error) {
	if err := g.validate(); err != nil {
		return nil, fmt.Errorf("invalid graph: %w", err)
	}
	opts := ExecutorOptions{
		MaxSteps: 50,
		Logger:   logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Executor{
		graph:  g,
		opts:   opts,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}, nil
}

// Execute runs the graph from its entry point and returns the final state.
// Exactly one path through the topology executes; no node runs twice unless
// the topology routes back to it (the tool loop). Cancellation is honored
// between nodes: once ctx is done no further node is scheduled, except nodes
// marked Detached, which still run so committed upstream work is persisted.
func (e *Executor) Execute(ctx context.Context, initialState State) (State, error) {
	if key := e.opts.SerializationKey; key != "" {
		if id, ok := initialState[key].(string); ok && id != "" {
			lock := e.keyLock(id)
			lock.Lock()
			defer lock.Unlock()
		}
	}

	state := initialState.Clone()
	currentID := e.graph.EntryPoint()
	if currentID == "" {
		return nil, core.NewExecutionError("", fmt.Errorf("no entry point"))
	}

	for step := 0; ; step++ {
		if step >= e.opts.MaxSteps {
			return state, core.NewExecutionError(currentID, fmt.Errorf("maximum execution steps (%d) exceeded", e.opts.MaxSteps))
		}
		if currentID == End {
			return state, nil
		}

		node, exists := e.graph.Node(currentID)
		if !exists {
			return state, core.NewExecutionError(currentID, fmt.Errorf("node not found"))
		}

		nodeCtx := ctx
		if node.Detached {
			nodeCtx = context.WithoutCancel(ctx)
		} else {
			select {
			case <-ctx.Done():
				return state, core.NewExecutionError(currentID, ctx.Err())
			default:
			}
		}

		e.logger.Debug("graph.node.start", "node", currentID, "step", step)
		if node.Function != nil {
			update, err := node.Function(nodeCtx, state)
			if err != nil {
				e.logger.Error("graph.node.error", "node", currentID, "error", err.Error())
				return state, core.NewExecutionError(currentID, err)
			}
			if update != nil {
				state = e.graph.Schema().ApplyUpdate(state, update)
			}
		}

		nextID, err := e.selectNext(nodeCtx, state, currentID)
		if err != nil {
			return state, core.NewExecutionError(currentID, err)
		}
		e.logger.Debug("graph.node.done", "node", currentID, "next", nextID)
		currentID = nextID
	}
}

// selectNext resolves the outgoing edge of the current node.
func (e *Executor) selectNext(ctx context.Context, state State, currentID string) (string, error) {
	if cond, ok := e.graph.conditionalEdges[currentID]; ok {
		result, err := cond.Router(ctx, state)
		if err != nil {
			return "", fmt.Errorf("router failed: %w", err)
		}
		next, declared := cond.PathMap[result]
		if !declared {
			return "", fmt.Errorf("router result %q not in path map", result)
		}
		return next, nil
	}
	if edge, ok := e.graph.edges[currentID]; ok {
		return edge.To, nil
	}
	return "", fmt.Errorf("no outgoing edge")
}

// keyLock returns the mutex serializing executions for the given key,
// creating it on first use. Locks are never evicted; the key space is the
// set of active session ids, which is small relative to session payloads.
func (e *Executor) keyLock(key string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[key] = lock
	}
	return lock
}
