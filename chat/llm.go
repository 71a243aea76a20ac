package chat

import (
	"context"
	"errors"
	"time"

	"github.com/hupe1980/chatgraph/core"
	"github.com/hupe1980/chatgraph/graph"
	"github.com/hupe1980/chatgraph/model"
)

// callLlm invokes the model with the accumulated messages and the declared
// tool specifications, appends the assistant response and increments the
// round counter. Failed calls are retried up to the configured count; after
// exhaustion the turn degrades to the fixed fallback answer instead of
// failing, unless the caller's context itself was cancelled.
func (p *pipeline) callLlm(ctx context.Context, state graph.State) (graph.State, error) {
	req := model.Request{
		Messages: stateMessages(state),
		Tools:    p.toolDefs,
	}

	rounds := stateInt(state, KeyToolRounds)

	var resp *model.Response
	var err error
	for attempt := 0; attempt <= p.cfg.LLMRetries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, p.cfg.LLMTimeout)
		start := time.Now()
		resp, err = p.model.Generate(callCtx, req)
		cancel()

		if err == nil {
			p.logger.Info("llm call completed",
				"node", NodeCallLLM,
				"round", rounds+1,
				"tool_calls", len(resp.Message.ToolCalls),
				"duration_ms", time.Since(start).Milliseconds())
			return graph.State{
				KeyMessages:   []core.Message{resp.Message},
				KeyToolRounds: rounds + 1,
			}, nil
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p.logger.Warn("llm call failed",
			"node", NodeCallLLM, "attempt", attempt+1, "error", err)
	}

	p.logger.Error("llm retries exhausted, using fallback answer",
		"node", NodeCallLLM, "retries", p.cfg.LLMRetries, "error", err)
	return graph.State{
		KeyMessages:   []core.Message{core.NewAssistantMessage(FallbackAnswer)},
		KeyToolRounds: rounds + 1,
	}, nil
}

// routeAfterLlm continues the tool loop while the last assistant message
// requests tools and the round bound has not been reached. Reaching the
// bound is a normal exit, not an error.
func (p *pipeline) routeAfterLlm(ctx context.Context, state graph.State) (string, error) {
	msgs := stateMessages(state)
	if len(msgs) == 0 {
		return "", errors.New("no messages after llm call")
	}
	last := msgs[len(msgs)-1]
	if last.HasToolCalls() && stateInt(state, KeyToolRounds) < p.cfg.MaxToolRounds {
		return NodeExecuteTools, nil
	}
	if last.HasToolCalls() {
		p.logger.Warn("tool round limit reached, exiting loop",
			"node", NodeCallLLM, "max_rounds", p.cfg.MaxToolRounds)
	}
	return NodeBundleSources, nil
}
