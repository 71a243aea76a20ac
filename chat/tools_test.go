package chat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/chatgraph/core"
	"github.com/hupe1980/chatgraph/graph"
	"github.com/hupe1980/chatgraph/internal/testutil"
	"github.com/hupe1980/chatgraph/tool"
)

func findTool(t *testing.T, p *pipeline, name string) tool.Tool {
	t.Helper()
	tl, ok := p.toolIndex[name]
	require.True(t, ok, "tool %s not registered", name)
	return tl
}

func sessionContext(sess *core.Session) context.Context {
	return withTurnContext(context.Background(), turnContext{
		SessionID: sess.ID,
		Session:   sess,
	})
}

func TestSearchKnowledgeBaseTool(t *testing.T) {
	p := newTestPipeline(t, func(o *ServiceOptions) {
		o.Retriever = testIndex(t)
	})

	result, err := findTool(t, p, ToolSearchKnowledgeBase).Call(context.Background(),
		map[string]any{"query": "premium plan price"})
	require.NoError(t, err)

	assert.Contains(t, result.Text, "Pricing overview")
	assert.NotEmpty(t, result.Sources)
}

func TestSearchKnowledgeBaseToolWithoutRetriever(t *testing.T) {
	p := newTestPipeline(t)

	result, err := findTool(t, p, ToolSearchKnowledgeBase).Call(context.Background(),
		map[string]any{"query": "anything"})
	require.NoError(t, err)
	assert.Equal(t, "Knowledge base search is not available.", result.Text)
	assert.Empty(t, result.Sources)
}

func TestGetFullAnswerTool(t *testing.T) {
	p := newTestPipeline(t)

	sess := testutil.NewSessionBuilder("s1").
		Answer("ex-11111111", "The premium plan costs 25 euro per month.",
			core.Source{Title: "Pricing overview", DocumentID: "doc-pricing"}).
		Build()

	result, err := findTool(t, p, ToolGetFullAnswer).Call(sessionContext(sess),
		map[string]any{"exchange_id": "ex-11111111"})
	require.NoError(t, err)

	assert.Contains(t, result.Text, "25 euro per month")
	assert.Contains(t, result.Text, "Pricing overview")
	require.Len(t, result.Sources, 1)
	assert.Equal(t, "doc-pricing", result.Sources[0].DocumentID)
}

func TestGetFullAnswerToolUnknownExchange(t *testing.T) {
	p := newTestPipeline(t)
	sess := testutil.NewSessionBuilder("s1").Build()

	result, err := findTool(t, p, ToolGetFullAnswer).Call(sessionContext(sess),
		map[string]any{"exchange_id": "ex-deadbeef"})
	require.NoError(t, err)
	assert.Contains(t, result.Text, "No archived answer")
}

func TestSearchChatHistoryTool(t *testing.T) {
	p := newTestPipeline(t)

	sess := testutil.NewSessionBuilder("s1").
		QAEntry("asked about premium pricing", "25 euro per month", "pricing").
		QAEntry("asked about support hours", "weekdays 9 to 17", "support").
		Build()

	result, err := findTool(t, p, ToolSearchChatHistory).Call(sessionContext(sess),
		map[string]any{"topic": "pricing"})
	require.NoError(t, err)

	assert.Contains(t, result.Text, "premium pricing")
	assert.NotContains(t, result.Text, "support hours")
}

func TestExecuteToolsTurnsFailuresIntoMessages(t *testing.T) {
	p := newTestPipeline(t)

	state := graph.State{
		KeySessionID: "s1",
		KeyMessages: []core.Message{{
			Role: core.RoleAssistant,
			ToolCalls: []core.ToolCall{
				{ID: "call-1", Name: "no_such_tool", Arguments: `{}`},
				{ID: "call-2", Name: ToolSearchKnowledgeBase, Arguments: `{broken`},
			},
		}},
	}

	update, err := p.executeTools(context.Background(), state)
	require.NoError(t, err, "tool failures never abort the turn")

	msgs := stateMessages(update)
	require.Len(t, msgs, 2)
	assert.Equal(t, core.RoleTool, msgs[0].Role)
	assert.Equal(t, "call-1", msgs[0].ToolCallID)
	assert.Contains(t, msgs[0].Content, "unknown tool")
	assert.Contains(t, msgs[1].Content, "invalid arguments")
}

func TestExecuteToolsPreservesCallOrder(t *testing.T) {
	p := newTestPipeline(t, func(o *ServiceOptions) {
		o.Retriever = testIndex(t)
	})

	state := graph.State{
		KeySessionID: "s1",
		KeyMessages: []core.Message{{
			Role: core.RoleAssistant,
			ToolCalls: []core.ToolCall{
				{ID: "call-1", Name: ToolSearchKnowledgeBase, Arguments: `{"query":"support hours"}`},
				{ID: "call-2", Name: ToolSearchKnowledgeBase, Arguments: `{"query":"premium plan"}`},
			},
		}},
	}

	update, err := p.executeTools(context.Background(), state)
	require.NoError(t, err)

	msgs := stateMessages(update)
	require.Len(t, msgs, 2)
	assert.Equal(t, "call-1", msgs[0].ToolCallID)
	assert.Equal(t, "call-2", msgs[1].ToolCallID)
}
