package chat

import (
	"context"
	"strings"

	"github.com/hupe1980/chatgraph/core"
	"github.com/hupe1980/chatgraph/graph"
)

// bundleSources closes the model path: it extracts the final assistant text,
// mints a fresh exchange id and computes the deduplicated source list from
// everything the tool loop retrieved. An empty model answer degrades to the
// fixed fallback so the turn always produces assistant text.
func (p *pipeline) bundleSources(ctx context.Context, state graph.State) (graph.State, error) {
	text := lastAssistantText(stateMessages(state))
	if text == "" {
		p.logger.Warn("no assistant text produced, using fallback", "node", NodeBundleSources)
		text = FallbackAnswer
	}

	unique := core.DedupeSources(stateSources(state, KeyRetrievedSources))

	p.logger.Info("sources bundled",
		"node", NodeBundleSources,
		"unique", len(unique),
		"retrieved", len(stateSources(state, KeyRetrievedSources)),
		"answer_chars", len(text))

	return graph.State{
		KeyAssistantText: text,
		KeyExchangeID:    core.NewExchangeID(),
		KeyUniqueSources: unique,
		KeySourceIDs:     core.SourceIDs(unique),
	}, nil
}

// lastAssistantText returns the content of the newest assistant message that
// carries text rather than only tool calls.
func lastAssistantText(msgs []core.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == core.RoleAssistant && strings.TrimSpace(msgs[i].Content) != "" {
			return msgs[i].Content
		}
	}
	return ""
}
