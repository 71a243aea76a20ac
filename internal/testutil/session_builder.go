// Package testutil contains helper builders used across tests to reduce
// boilerplate when constructing core model objects (sessions, index entries,
// archived answers). These helpers are intentionally minimal and avoid adding
// third-party dependencies. They are not intended for production usage.
package testutil

import (
	"fmt"
	"time"

	"github.com/hupe1980/chatgraph/core"
)

// SessionBuilder helps construct sessions with fluent chaining for tests.
// Example:
//
//	sess := NewSessionBuilder("sess-1").Summary("...").Exchange("q", "a").Build()
type SessionBuilder struct {
	id        string
	summary   string
	exchanges [][2]string
	entries   []core.QAEntry
	answers   map[string]core.Answer
}

// NewSessionBuilder creates a new builder for a session with the given id.
// Use chainable methods (Summary, Exchange, QAEntry, Answer) then call Build.
func NewSessionBuilder(id string) *SessionBuilder {
	return &SessionBuilder{id: id, answers: map[string]core.Answer{}}
}

// Summary sets the rolling summary on the resulting session (chainable).
func (b *SessionBuilder) Summary(summary string) *SessionBuilder {
	b.summary = summary
	return b
}

// Exchange appends a completed user/assistant pair to the rolling window (chainable).
func (b *SessionBuilder) Exchange(userText, assistantText string) *SessionBuilder {
	b.exchanges = append(b.exchanges, [2]string{userText, assistantText})
	return b
}

// QAEntry appends an index entry with a generated exchange id (chainable).
func (b *SessionBuilder) QAEntry(questionSummary, answerSummary string, topics ...string) *SessionBuilder {
	b.entries = append(b.entries, core.QAEntry{
		ExchangeID:      fmt.Sprintf("ex-%08d", len(b.entries)+1),
		QuestionSummary: questionSummary,
		AnswerSummary:   answerSummary,
		Topics:          topics,
		Timestamp:       time.Now().UTC(),
	})
	return b
}

// Answer archives a full answer under the given exchange id (chainable).
func (b *SessionBuilder) Answer(exchangeID, text string, sources ...core.Source) *SessionBuilder {
	b.answers[exchangeID] = core.Answer{Text: text, Sources: sources}
	return b
}

// Build returns a *core.Session with the accumulated memory pre-populated.
func (b *SessionBuilder) Build() *core.Session {
	s := core.NewSession(b.id)
	s.Summary = b.summary

	for _, ex := range b.exchanges {
		s.AppendExchange(ex[0], ex[1], core.DefaultWindowPairs)
		s.MessageCount++
	}

	s.QAIndex = append(s.QAIndex, b.entries...)
	for id, answer := range b.answers {
		s.FullAnswers[id] = answer
	}
	return s
}
