package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/chatgraph/core"
	"github.com/hupe1980/chatgraph/faq"
	"github.com/hupe1980/chatgraph/graph"
	"github.com/hupe1980/chatgraph/tool"
)

// Built-in tool names.
const (
	ToolSearchKnowledgeBase = "search_knowledge_base"
	ToolGetFullAnswer       = "get_full_answer"
	ToolSearchChatHistory   = "search_chat_history"
)

// turnContextKey carries the read-only session snapshot of the running turn
// to the built-in memory tools. Tools never mutate the session; the memory
// update node owns all session writes.
type turnContextKey struct{}

type turnContext struct {
	SessionID string
	Session   *core.Session
}

func withTurnContext(ctx context.Context, tc turnContext) context.Context {
	return context.WithValue(ctx, turnContextKey{}, tc)
}

func turnFromContext(ctx context.Context) (turnContext, bool) {
	tc, ok := ctx.Value(turnContextKey{}).(turnContext)
	return tc, ok
}

// defaultTools builds the three built-in tools against the pipeline's
// collaborators. Retrieval failures are soft: the model sees an empty result
// text instead of an error aborting the turn.
func (p *pipeline) defaultTools() []tool.Tool {
	searchKB := tool.NewFunctionTool(
		ToolSearchKnowledgeBase,
		"Search the knowledge base for documents relevant to a factual question.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The search query",
				},
			},
			"required": []string{"query"},
		},
		func(ctx context.Context, args map[string]any) (*tool.Result, error) {
			query, _ := args["query"].(string)
			if p.retriever == nil {
				return tool.TextResult("Knowledge base search is not available."), nil
			}
			sources, err := p.retriever.Search(ctx, query, p.cfg.SearchLimit)
			if err != nil {
				p.logger.Warn("retrieval failed, returning empty results", "error", err)
				return tool.TextResult("No results found."), nil
			}
			if len(sources) == 0 {
				return tool.TextResult("No results found."), nil
			}
			var sb strings.Builder
			for i, src := range sources {
				fmt.Fprintf(&sb, "[%d] %s (id=%s, score=%.2f)\n%s\n",
					i+1, src.Title, src.DocumentID, src.RelevanceScore, src.Snippet)
			}
			return &tool.Result{Text: sb.String(), Sources: sources}, nil
		},
		func(o *tool.FunctionToolOptions) { o.Logger = p.logger },
	)

	getAnswer := tool.NewFunctionTool(
		ToolGetFullAnswer,
		"Retrieve the full text and sources of an earlier answer by its exchange id.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"exchange_id": map[string]any{
					"type":        "string",
					"description": "The exchange id, e.g. ex-1a2b3c4d",
				},
			},
			"required": []string{"exchange_id"},
		},
		func(ctx context.Context, args map[string]any) (*tool.Result, error) {
			exchangeID, _ := args["exchange_id"].(string)
			tc, ok := turnFromContext(ctx)
			if !ok || tc.Session == nil {
				return tool.TextResult("No conversation history available."), nil
			}
			answer, found := tc.Session.FullAnswers[exchangeID]
			if !found {
				return tool.TextResult(fmt.Sprintf("No archived answer for exchange id %q.", exchangeID)), nil
			}
			text := answer.Text
			if len(answer.Sources) > 0 {
				var sb strings.Builder
				sb.WriteString(text)
				sb.WriteString("\n\nSources:\n")
				for _, src := range answer.Sources {
					fmt.Fprintf(&sb, "- %s (%s) %s\n", src.Title, src.DocumentID, src.URL)
				}
				text = sb.String()
			}
			return &tool.Result{Text: text, Sources: answer.Sources}, nil
		},
		func(o *tool.FunctionToolOptions) { o.Logger = p.logger },
	)

	searchHistory := tool.NewFunctionTool(
		ToolSearchChatHistory,
		"Look up earlier exchanges in this conversation by topic, returning exchange ids for get_full_answer.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"topic": map[string]any{
					"type":        "string",
					"description": "Topic or keywords to look for",
				},
			},
			"required": []string{"topic"},
		},
		func(ctx context.Context, args map[string]any) (*tool.Result, error) {
			topic, _ := args["topic"].(string)
			tc, ok := turnFromContext(ctx)
			if !ok || tc.Session == nil || len(tc.Session.QAIndex) == 0 {
				return tool.TextResult("No conversation history available."), nil
			}
			matches := matchQAEntries(tc.Session.QAIndex, topic)
			if len(matches) == 0 {
				return tool.TextResult(fmt.Sprintf("No earlier exchange matches %q.", topic)), nil
			}
			var sb strings.Builder
			for _, e := range matches {
				fmt.Fprintf(&sb, "- [%s] Q: %s A: %s (topics: %s)\n",
					e.ExchangeID, e.QuestionSummary, e.AnswerSummary, strings.Join(e.Topics, ", "))
			}
			return tool.TextResult(sb.String()), nil
		},
		func(o *tool.FunctionToolOptions) { o.Logger = p.logger },
	)

	return []tool.Tool{searchKB, getAnswer, searchHistory}
}

// matchQAEntries returns index entries whose topics or summaries share a
// token with the query, preserving conversation order.
func matchQAEntries(entries []core.QAEntry, query string) []core.QAEntry {
	queryTokens := faq.Tokenize(query)
	if len(queryTokens) == 0 {
		return nil
	}
	var matches []core.QAEntry
	for _, e := range entries {
		haystack := strings.ToLower(strings.Join(e.Topics, " ") + " " + e.QuestionSummary + " " + e.AnswerSummary)
		for _, qt := range queryTokens {
			if strings.Contains(haystack, qt) {
				matches = append(matches, e)
				break
			}
		}
	}
	return matches
}

// toolOutcome is one slot of a round's result set, indexed by call order so
// concurrent execution cannot reorder messages or sources.
type toolOutcome struct {
	message core.Message
	sources []core.Source
}

// executeTools runs every tool call of the current round. Independent calls
// execute concurrently; the round completes only once all have resolved. A
// call that fails or times out becomes an error-content tool message rather
// than aborting the turn.
func (p *pipeline) executeTools(ctx context.Context, state graph.State) (graph.State, error) {
	msgs := stateMessages(state)
	if len(msgs) == 0 {
		return nil, fmt.Errorf("no messages before tool execution")
	}
	calls := msgs[len(msgs)-1].ToolCalls
	if len(calls) == 0 {
		return nil, fmt.Errorf("no tool calls requested")
	}

	toolCtx := withTurnContext(ctx, turnContext{
		SessionID: stateString(state, KeySessionID),
		Session:   stateSession(state),
	})

	outcomes := make([]toolOutcome, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call core.ToolCall) {
			defer wg.Done()
			outcomes[i] = p.runToolCall(toolCtx, call)
		}(i, call)
	}
	wg.Wait()

	resultMsgs := make([]core.Message, 0, len(calls))
	var sources []core.Source
	for _, out := range outcomes {
		resultMsgs = append(resultMsgs, out.message)
		sources = append(sources, out.sources...)
	}

	p.logger.Info("tool round completed",
		"node", NodeExecuteTools,
		"calls", len(calls),
		"sources", len(sources),
		"round", stateInt(state, KeyToolRounds))

	return graph.State{
		KeyMessages:         resultMsgs,
		KeyRetrievedSources: sources,
	}, nil
}

// runToolCall resolves a single requested call with its own timeout. Every
// failure path yields a tool message the model can read.
func (p *pipeline) runToolCall(ctx context.Context, call core.ToolCall) toolOutcome {
	t, known := p.toolIndex[call.Name]
	if !known {
		return toolOutcome{message: core.NewToolMessage(call.ID,
			fmt.Sprintf("Error: unknown tool %q.", call.Name))}
	}

	args := map[string]any{}
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return toolOutcome{message: core.NewToolMessage(call.ID,
				fmt.Sprintf("Error: invalid arguments for %s: %v.", call.Name, err))}
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.ToolTimeout)
	defer cancel()

	result, err := t.Call(callCtx, args)
	if err != nil {
		p.logger.Warn("tool call failed", "tool", call.Name, "error", err)
		return toolOutcome{message: core.NewToolMessage(call.ID,
			fmt.Sprintf("Error executing %s: %v", call.Name, err))}
	}

	return toolOutcome{
		message: core.NewToolMessage(call.ID, result.Text),
		sources: result.Sources,
	}
}
