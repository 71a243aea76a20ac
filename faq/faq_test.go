package faq

import (
	"context"
	"testing"

	"github.com/hupe1980/chatgraph/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEntries() []Entry {
	return []Entry{
		{
			ID:       "faq-hours",
			Question: "What are your opening hours?",
			Answer:   "We are open Monday through Friday from 9:00 to 17:00.",
			Sources:  []core.Source{{Title: "Opening hours", DocumentID: "kb-hours"}},
		},
		{
			ID:       "faq-password",
			Question: "How do I reset my password?",
			Answer:   "Use the forgot password link on the sign-in page.",
		},
	}
}

func TestMatcher_ExactMatch(t *testing.T) {
	m := NewMatcher(NewLexicalEmbedder(256), testEntries())

	match, err := m.Match(context.Background(), "What are your opening hours?")
	require.NoError(t, err)
	assert.Equal(t, DecisionExact, match.Decision)
	require.NotNil(t, match.Entry)
	assert.Equal(t, "faq-hours", match.Entry.ID)
	assert.GreaterOrEqual(t, match.Score, DefaultExactThreshold)
}

func TestMatcher_NoMatch(t *testing.T) {
	m := NewMatcher(NewLexicalEmbedder(256), testEntries())

	match, err := m.Match(context.Background(), "Tell me about quantum entanglement experiments")
	require.NoError(t, err)
	assert.Equal(t, DecisionNone, match.Decision)
	assert.Nil(t, match.Entry)
}

func TestMatcher_SuggestBand(t *testing.T) {
	m := NewMatcher(NewLexicalEmbedder(256), testEntries(), func(o *MatcherOptions) {
		o.ExactThreshold = 0.99
		o.SuggestThreshold = 0.50
	})

	// Shares most tokens with the hours entry but not all of them.
	match, err := m.Match(context.Background(), "what are your opening hours on weekends")
	require.NoError(t, err)
	assert.Equal(t, DecisionSuggest, match.Decision)
	require.NotNil(t, match.Entry)
	assert.Equal(t, "faq-hours", match.Entry.ID)
}

func TestMatcher_EmptyEntries(t *testing.T) {
	m := NewMatcher(NewLexicalEmbedder(256), nil)

	match, err := m.Match(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, DecisionNone, match.Decision)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float64{1, 2, 3}, []float64{1, 2, 3}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.Equal(t, 0.0, CosineSimilarity([]float64{1, 2}, []float64{1, 2, 3}))
	assert.Equal(t, 0.0, CosineSimilarity([]float64{0, 0}, []float64{1, 2}))
}
