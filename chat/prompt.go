package chat

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/hupe1980/chatgraph/core"
	"github.com/hupe1980/chatgraph/graph"
	"github.com/hupe1980/chatgraph/internal/util"
)

// DefaultSystemPrompt is the base persona and tool-use instruction layer.
// Deployments can replace it via WithSystemPrompt; Go template markers are
// rendered against the turn's user context.
const DefaultSystemPrompt = `You are a helpful assistant answering questions from a curated knowledge base.

CORE RULE: Base your answer on the results of search_knowledge_base. Cite concrete facts, dates and names from the retrieved documents. Never invent information. If the retrieved documents do not answer the question, say honestly that you could not find the information.

TOOL CHOICE:
- New factual question: use search_knowledge_base.
- Question about the sources or full text of an earlier answer: use search_chat_history to find the exchange id, then get_full_answer to fetch the archived answer with its sources. Do not use search_knowledge_base for these meta questions.
- Reference to something discussed earlier in the conversation: use search_chat_history with the topic as the query.

NO REPETITION:
- The "Already answered" section below summarizes what you already said. Do not repeat it; give only new information on follow-up questions.

STYLE:
- Be concrete. Use short paragraphs and bullet lists where they help readability.`

// answeredPlaceholder stands in for prior assistant replies in the history
// window, so the model knows it responded without copy-paste material.
const answeredPlaceholder = "[Answer given]"

// buildPrompt assembles the layered system prompt plus the conversation
// window and resets the loop counters. Layers: persona, session summary,
// compact Q&A index with already-cited source ids, FAQ suggestion, user
// context. History replays recent user messages with placeholder assistant
// replies; full past answers stay behind the get_full_answer tool.
func (p *pipeline) buildPrompt(ctx context.Context, state graph.State) (graph.State, error) {
	message := stateString(state, KeyMessage)
	useMemory := stateBool(state, KeyUseMemory)
	sess := stateSession(state)
	t := stateTriage(state)
	userContext, _ := state[KeyUserContext].(map[string]any)

	base, err := util.RenderTemplate(p.cfg.SystemPrompt, userContext)
	if err != nil {
		p.logger.Warn("system prompt template failed, using raw text", "error", err)
		base = p.cfg.SystemPrompt
	}

	var sb strings.Builder
	sb.WriteString(base)

	if useMemory && sess != nil {
		if sess.Summary != "" {
			sb.WriteString("\n\n## Session summary\n")
			sb.WriteString(sess.Summary)
		}

		if len(sess.QAIndex) > 0 {
			entries := sess.QAIndex
			if len(entries) > 10 {
				entries = entries[len(entries)-10:]
			}
			sb.WriteString("\n\n## Already answered (do not repeat)\n")
			var citedIDs []string
			seen := map[string]struct{}{}
			for _, e := range entries {
				fmt.Fprintf(&sb, "- [%s] Q: %s A: %s\n", e.ExchangeID, e.QuestionSummary, e.AnswerSummary)
				for _, id := range e.SourceIDs {
					if _, dup := seen[id]; !dup {
						seen[id] = struct{}{}
						citedIDs = append(citedIDs, id)
					}
				}
			}
			if len(citedIDs) > 0 {
				if len(citedIDs) > 10 {
					citedIDs = citedIDs[:10]
				}
				sb.WriteString("\n## Sources you already cited\n")
				sb.WriteString("If the same sources come back from search_knowledge_base, focus on other information in them.\n")
				sb.WriteString("Cited source ids: ")
				sb.WriteString(strings.Join(citedIDs, ", "))
			}
		}
	}

	if t.FAQSuggestion != "" {
		sb.WriteString("\n\n## Possibly related FAQ entry\n")
		sb.WriteString(t.FAQSuggestion)
	}

	if len(userContext) > 0 {
		keys := make([]string, 0, len(userContext))
		for k := range userContext {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var pairs []string
		for _, k := range keys {
			v := userContext[k]
			if v == nil || v == "" {
				continue
			}
			pairs = append(pairs, fmt.Sprintf("%s: %v", k, v))
		}
		if len(pairs) > 0 {
			sb.WriteString("\n\n## User context\n")
			sb.WriteString(strings.Join(pairs, ", "))
		}
	}

	msgs := []core.Message{core.NewSystemMessage(sb.String())}

	if useMemory && sess != nil {
		recent := sess.RecentMessages
		if len(recent) > 10 {
			recent = recent[len(recent)-10:]
		}
		for _, m := range recent {
			if m.Role == core.RoleUser && strings.TrimSpace(m.Content) != "" {
				msgs = append(msgs, core.NewUserMessage(m.Content))
				msgs = append(msgs, core.NewAssistantMessage(answeredPlaceholder))
			}
		}
	}

	msgs = append(msgs, core.NewUserMessage(message))

	p.logger.Info("prompt built",
		"node", NodeBuildPrompt,
		"messages", len(msgs),
		"system_chars", sb.Len(),
		"faq_suggestion", t.FAQSuggestion != "")

	return graph.State{
		KeyMessages:         msgs,
		KeyRetrievedSources: []core.Source{},
		KeyToolRounds:       0,
	}, nil
}
