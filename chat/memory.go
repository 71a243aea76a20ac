package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/chatgraph/core"
	"github.com/hupe1980/chatgraph/faq"
	"github.com/hupe1980/chatgraph/graph"
	"github.com/hupe1980/chatgraph/model"
)

// ExchangeSummary is a compact digest of one question/answer exchange,
// produced by a Summarizer for the session index.
type ExchangeSummary struct {
	QuestionSummary string
	AnswerSummary   string
	Topics          []string
}

// Summarizer condenses exchanges into index entries and maintains the rolling
// session summary. Both operations degrade to truncation on failure, so an
// implementation may return errors freely.
type Summarizer interface {
	SummarizeExchange(ctx context.Context, question, answer string) (ExchangeSummary, error)
	UpdateSummary(ctx context.Context, current, question, answer string) (string, error)
}

// loadSession resolves the session for the turn. An unknown or empty id
// yields a fresh session; store errors do too, so a flaky store never blocks
// a turn.
func (p *pipeline) loadSession(ctx context.Context, state graph.State) (graph.State, error) {
	sessionID := stateString(state, KeySessionID)
	useMemory := stateBool(state, KeyUseMemory)

	if useMemory && sessionID != "" {
		session, err := p.store.Load(ctx, sessionID)
		if err != nil {
			p.logger.Warn("session load failed, starting fresh",
				"node", NodeLoadSession, "session_id", sessionID, "error", err)
		} else if session != nil {
			p.logger.Info("session loaded",
				"node", NodeLoadSession,
				"session_id", session.ID,
				"message_count", session.MessageCount,
				"qa_index", len(session.QAIndex),
				"recent", len(session.RecentMessages))
			return graph.State{KeySession: session}, nil
		}
	}

	session := core.NewSession(sessionID)
	p.logger.Info("session created",
		"node", NodeLoadSession, "session_id", sessionID, "memory", useMemory)
	return graph.State{KeySession: session}, nil
}

// updateMemory folds the finished exchange into a cloned session: archives
// the full answer, appends the index entry, refreshes the rolling window and
// the summary. The exchange digest and the summary refresh run concurrently.
func (p *pipeline) updateMemory(ctx context.Context, state graph.State) (graph.State, error) {
	current := stateSession(state)
	if current == nil {
		return nil, core.NewExecutionError(NodeUpdateMemory, fmt.Errorf("no session in state"))
	}

	message := stateString(state, KeyMessage)
	assistantText := stateString(state, KeyAssistantText)
	exchangeID := stateString(state, KeyExchangeID)
	sourceIDs := stateStrings(state, KeySourceIDs)
	uniqueSources := stateSources(state, KeyUniqueSources)

	session := current.Clone()
	session.MessageCount++
	session.AppendExchange(message, assistantText, p.cfg.WindowPairs)

	var (
		wg       sync.WaitGroup
		digest   ExchangeSummary
		digestEr error
		summary  string
		sumErr   error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		digest, digestEr = p.summarizer.SummarizeExchange(ctx, message, assistantText)
	}()
	go func() {
		defer wg.Done()
		summary, sumErr = p.summarizer.UpdateSummary(ctx, session.Summary, message, assistantText)
	}()
	wg.Wait()

	if digestEr != nil {
		p.logger.Warn("exchange digest failed, truncating",
			"node", NodeUpdateMemory, "error", digestEr)
		digest = ExchangeSummary{
			QuestionSummary: truncate(message, 100),
			AnswerSummary:   truncate(assistantText, 100),
		}
	}
	if sumErr != nil {
		p.logger.Warn("summary update failed, keeping previous",
			"node", NodeUpdateMemory, "error", sumErr)
	} else {
		session.Summary = summary
	}

	session.ArchiveAnswer(exchangeID,
		core.Answer{Text: assistantText, Sources: uniqueSources},
		core.QAEntry{
			ExchangeID:      exchangeID,
			QuestionSummary: digest.QuestionSummary,
			AnswerSummary:   digest.AnswerSummary,
			Topics:          digest.Topics,
			SourceIDs:       sourceIDs,
			Timestamp:       time.Now().UTC(),
		},
	)

	p.logger.Info("memory updated",
		"node", NodeUpdateMemory,
		"exchange_id", exchangeID,
		"qa_index", len(session.QAIndex),
		"summary_chars", len(session.Summary))

	return graph.State{KeySession: session}, nil
}

// saveSession persists the session. Persistence failures are recorded in
// state and logged; the answer still reaches the user.
func (p *pipeline) saveSession(ctx context.Context, state graph.State) (graph.State, error) {
	session := stateSession(state)
	if session == nil {
		return nil, core.NewExecutionError(NodeSaveSession, fmt.Errorf("no session in state"))
	}

	if err := p.store.Save(ctx, session); err != nil {
		p.logger.Error("session save failed",
			"node", NodeSaveSession, "session_id", session.ID, "error", err)
		return graph.State{KeySaveFailed: true}, nil
	}

	p.logger.Info("session saved",
		"node", NodeSaveSession,
		"session_id", session.ID,
		"qa_index", len(session.QAIndex),
		"recent", len(session.RecentMessages),
		"full_answers", len(session.FullAnswers))
	return graph.State{}, nil
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// ---------------------------------------------------------------------------
// Default summarizers
// ---------------------------------------------------------------------------

// HeuristicSummarizer builds index entries and the rolling summary without a
// model: truncated texts, token-frequency topics, marker-prefixed summary
// lines.
type HeuristicSummarizer struct {
	// MaxSummaryLines caps the rolling summary at this many exchange lines.
	MaxSummaryLines int
}

// NewHeuristicSummarizer returns the default model-free summarizer.
func NewHeuristicSummarizer() *HeuristicSummarizer {
	return &HeuristicSummarizer{MaxSummaryLines: 20}
}

// SummarizeExchange implements Summarizer.
func (s *HeuristicSummarizer) SummarizeExchange(_ context.Context, question, answer string) (ExchangeSummary, error) {
	return ExchangeSummary{
		QuestionSummary: truncate(strings.TrimSpace(question), 100),
		AnswerSummary:   truncate(strings.TrimSpace(answer), 100),
		Topics:          topTopics(question+" "+answer, 3),
	}, nil
}

// UpdateSummary implements Summarizer. Each exchange contributes one line;
// USER/ASSISTANT markers keep the provenance of statements apparent.
func (s *HeuristicSummarizer) UpdateSummary(_ context.Context, current, question, answer string) (string, error) {
	line := fmt.Sprintf("USER: %s ASSISTANT: %s",
		truncate(strings.TrimSpace(question), 80),
		truncate(strings.TrimSpace(answer), 80))

	var lines []string
	if current != "" {
		lines = strings.Split(current, "\n")
	}
	lines = append(lines, line)

	max := s.MaxSummaryLines
	if max <= 0 {
		max = 20
	}
	if len(lines) > max {
		lines = lines[len(lines)-max:]
	}
	return strings.Join(lines, "\n"), nil
}

// topTopics picks the n most frequent content tokens as topic tags.
func topTopics(text string, n int) []string {
	counts := map[string]int{}
	for _, tok := range faq.Tokenize(text) {
		if len(tok) < 4 {
			continue
		}
		if _, stop := stopwords[tok]; stop {
			continue
		}
		counts[tok]++
	}
	if len(counts) == 0 {
		return nil
	}

	topics := make([]string, 0, len(counts))
	for tok := range counts {
		topics = append(topics, tok)
	}
	sort.Slice(topics, func(i, j int) bool {
		if counts[topics[i]] != counts[topics[j]] {
			return counts[topics[i]] > counts[topics[j]]
		}
		return topics[i] < topics[j]
	})
	if len(topics) > n {
		topics = topics[:n]
	}
	return topics
}

// ModelSummarizer delegates both summarization operations to a model.
type ModelSummarizer struct {
	model model.Model
}

// NewModelSummarizer returns a model-backed summarizer.
func NewModelSummarizer(m model.Model) *ModelSummarizer {
	return &ModelSummarizer{model: m}
}

// SummarizeExchange implements Summarizer, expecting a JSON digest back.
func (s *ModelSummarizer) SummarizeExchange(ctx context.Context, question, answer string) (ExchangeSummary, error) {
	prompt := fmt.Sprintf(`Analyze this exchange and produce a compact digest.

USER: %s
ASSISTANT: %s

Reply ONLY with valid JSON (no markdown, no explanation):
{"question_summary": "short summary of the question", "answer_summary": "short summary of the answer", "topics": ["topic1", "topic2"]}`,
		truncate(question, 500), truncate(answer, 500))

	resp, err := s.model.Generate(ctx, model.Request{Messages: []core.Message{
		core.NewSystemMessage("You write compact digests. Reply only with valid JSON."),
		core.NewUserMessage(prompt),
	}})
	if err != nil {
		return ExchangeSummary{}, err
	}

	raw := strings.TrimSpace(resp.Message.Content)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var digest struct {
		QuestionSummary string   `json:"question_summary"`
		AnswerSummary   string   `json:"answer_summary"`
		Topics          []string `json:"topics"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &digest); err != nil {
		return ExchangeSummary{}, fmt.Errorf("parse digest: %w", err)
	}

	out := ExchangeSummary(digest)
	if out.QuestionSummary == "" {
		out.QuestionSummary = truncate(question, 100)
	}
	if out.AnswerSummary == "" {
		out.AnswerSummary = truncate(answer, 100)
	}
	return out, nil
}

// UpdateSummary implements Summarizer, folding the exchange into a rolling
// summary of at most roughly 200 words.
func (s *ModelSummarizer) UpdateSummary(ctx context.Context, current, question, answer string) (string, error) {
	if current == "" {
		current = "(none, this is the first exchange)"
	}
	prompt := fmt.Sprintf(`Update the session summary with the latest exchange.
Keep it under 200 words.

Mark the origin of each statement:
- USER = what the user said (their words, not necessarily true)
- ASSISTANT = what the assistant answered

Focus on user preferences, decisions and confirmed facts.

Current summary:
%s

New exchange:
USER: %s
ASSISTANT: %s

Reply ONLY with the updated summary.`,
		current, truncate(question, 300), truncate(answer, 300))

	resp, err := s.model.Generate(ctx, model.Request{Messages: []core.Message{
		core.NewSystemMessage("You maintain session summaries. Keep user statements and assistant answers clearly attributed. Reply only with the summary."),
		core.NewUserMessage(prompt),
	}})
	if err != nil {
		return "", err
	}
	summary := strings.TrimSpace(resp.Message.Content)
	if summary == "" {
		return "", fmt.Errorf("empty summary")
	}
	return summary, nil
}
