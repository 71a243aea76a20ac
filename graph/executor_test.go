package graph

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/chatgraph/core"
)

func appendLog(entry string) NodeFunc {
	return func(ctx context.Context, state State) (State, error) {
		return State{"log": []string{entry}}, nil
	}
}

func logSchema() *Schema {
	return NewSchema().AddField("log", Field{
		Reducer: StringSliceReducer,
		Default: func() any { return []string{} },
	})
}

func TestExecutor_LinearPath(t *testing.T) {
	g, err := NewStateGraph(logSchema()).
		AddNode("a", appendLog("a")).
		AddNode("b", appendLog("b")).
		AddEdge("a", "b").
		SetEntryPoint("a").
		SetFinishPoint("b").
		Compile()
	require.NoError(t, err)

	exec, err := NewExecutor(g)
	require.NoError(t, err)

	final, err := exec.Execute(context.Background(), State{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, final["log"])
}

func TestExecutor_ConditionalRouting(t *testing.T) {
	router := func(ctx context.Context, state State) (string, error) {
		if skip, _ := state["skip"].(bool); skip {
			return "short", nil
		}
		return "long", nil
	}

	build := func() *Graph {
		return NewStateGraph(logSchema()).
			AddNode("entry", appendLog("entry")).
			AddNode("short", appendLog("short")).
			AddNode("long", appendLog("long")).
			AddConditionalEdges("entry", router, map[string]string{
				"short": "short",
				"long":  "long",
			}).
			SetEntryPoint("entry").
			SetFinishPoint("short").
			SetFinishPoint("long").
			MustCompile()
	}

	exec, err := NewExecutor(build())
	require.NoError(t, err)

	final, err := exec.Execute(context.Background(), State{"skip": true})
	require.NoError(t, err)
	assert.Equal(t, []string{"entry", "short"}, final["log"])

	final, err = exec.Execute(context.Background(), State{})
	require.NoError(t, err)
	assert.Equal(t, []string{"entry", "long"}, final["log"])
}

func TestExecutor_LoopBoundedByMaxSteps(t *testing.T) {
	// A two-node cycle with no exit condition must hit the step limit.
	g := NewStateGraph(logSchema()).
		AddNode("a", appendLog("a")).
		AddNode("b", appendLog("b")).
		AddEdge("a", "b").
		AddEdge("b", "a").
		SetEntryPoint("a").
		MustCompile()

	exec, err := NewExecutor(g, func(o *ExecutorOptions) { o.MaxSteps = 6 })
	require.NoError(t, err)

	_, err = exec.Execute(context.Background(), State{})
	var execErr *core.ExecutionError
	require.ErrorAs(t, err, &execErr)
}

func TestExecutor_RouterResultOutsidePathMap(t *testing.T) {
	g := NewStateGraph(nil).
		AddNode("entry", appendLog("entry")).
		AddNode("next", appendLog("next")).
		AddConditionalEdges("entry", func(ctx context.Context, state State) (string, error) {
			return "unknown", nil
		}, map[string]string{"next": "next"}).
		SetEntryPoint("entry").
		SetFinishPoint("next").
		MustCompile()

	exec, err := NewExecutor(g)
	require.NoError(t, err)

	_, err = exec.Execute(context.Background(), State{})
	var execErr *core.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "entry", execErr.Node)
}

func TestExecutor_NodeErrorIsFatal(t *testing.T) {
	boom := errors.New("collaborator missing")
	g := NewStateGraph(nil).
		AddNode("a", func(ctx context.Context, state State) (State, error) {
			return nil, boom
		}).
		SetEntryPoint("a").
		SetFinishPoint("a").
		MustCompile()

	exec, err := NewExecutor(g)
	require.NoError(t, err)

	_, err = exec.Execute(context.Background(), State{})
	require.ErrorIs(t, err, boom)
}

func TestExecutor_CancellationStopsScheduling(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	g := NewStateGraph(logSchema()).
		AddNode("a", func(c context.Context, state State) (State, error) {
			cancel()
			return State{"log": []string{"a"}}, nil
		}).
		AddNode("b", appendLog("b")).
		AddEdge("a", "b").
		SetEntryPoint("a").
		SetFinishPoint("b").
		MustCompile()

	exec, err := NewExecutor(g)
	require.NoError(t, err)

	final, err := exec.Execute(ctx, State{})
	require.Error(t, err)
	log, _ := final["log"].([]string)
	assert.NotContains(t, log, "b", "no node after cancellation")
}

func TestExecutor_DetachedNodeRunsAfterCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	persisted := false
	g := NewStateGraph(logSchema()).
		AddNode("mutate", func(c context.Context, state State) (State, error) {
			cancel()
			return State{"log": []string{"mutate"}}, nil
		}).
		AddNode("persist", func(c context.Context, state State) (State, error) {
			require.NoError(t, c.Err(), "detached node must see a live context")
			persisted = true
			return State{"log": []string{"persist"}}, nil
		}, func(n *Node) { n.Detached = true }).
		AddEdge("mutate", "persist").
		SetEntryPoint("mutate").
		SetFinishPoint("persist").
		MustCompile()

	exec, err := NewExecutor(g)
	require.NoError(t, err)

	final, err := exec.Execute(ctx, State{})
	require.NoError(t, err)
	log, _ := final["log"].([]string)
	assert.Equal(t, []string{"mutate", "persist"}, log)
	assert.True(t, persisted)
}

func TestExecutor_SerializesPerKey(t *testing.T) {
	var mu sync.Mutex
	active := 0
	maxActive := 0

	g := NewStateGraph(nil).
		AddNode("work", func(ctx context.Context, state State) (State, error) {
			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()
			time.Sleep(10 * time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
			return nil, nil
		}).
		SetEntryPoint("work").
		SetFinishPoint("work").
		MustCompile()

	exec, err := NewExecutor(g, func(o *ExecutorOptions) { o.SerializationKey = "sessionId" })
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := exec.Execute(context.Background(), State{"sessionId": "same"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxActive, "turns for one session id must not overlap")
}

func TestStateGraph_CompileRejectsDanglingNode(t *testing.T) {
	_, err := NewStateGraph(nil).
		AddNode("a", appendLog("a")).
		SetEntryPoint("a").
		Compile()
	require.Error(t, err)
}
