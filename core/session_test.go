package core

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_AppendExchangeWindow(t *testing.T) {
	s := NewSession("s1")

	// N+2 exchanges must leave exactly N most recent pairs.
	const window = 3
	for i := 0; i < window+2; i++ {
		s.AppendExchange(fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i), window)
	}

	require.Len(t, s.RecentMessages, window*2)
	assert.Equal(t, "q2", s.RecentMessages[0].Content)
	assert.Equal(t, "a4", s.RecentMessages[len(s.RecentMessages)-1].Content)
}

func TestSession_AppendExchangeSkipsEmptyAnswer(t *testing.T) {
	s := NewSession("s1")
	s.AppendExchange("question", "", 5)
	assert.Empty(t, s.RecentMessages)
}

func TestSession_Clone(t *testing.T) {
	s := NewSession("s1")
	s.AppendExchange("q", "a", 5)
	s.ArchiveAnswer("ex-1", Answer{Text: "full"}, QAEntry{ExchangeID: "ex-1"})

	clone := s.Clone()
	require.NotSame(t, s, clone)

	clone.AppendExchange("q2", "a2", 5)
	clone.FullAnswers["ex-2"] = Answer{Text: "other"}

	assert.Len(t, s.RecentMessages, 2, "original window should not see clone appends")
	assert.Len(t, s.FullAnswers, 1, "original archive should not see clone writes")
}

func TestDedupeSources_FirstSeenOrder(t *testing.T) {
	sources := []Source{
		{DocumentID: "doc-b", Title: "B"},
		{DocumentID: "doc-a", Title: "A"},
		{DocumentID: "doc-b", Title: "B again"},
		{DocumentID: "doc-c", Title: "C"},
		{DocumentID: "doc-a", Title: "A again"},
	}

	unique := DedupeSources(sources)

	require.Len(t, unique, 3)
	assert.Equal(t, []string{"doc-b", "doc-a", "doc-c"}, SourceIDs(unique))
	assert.Equal(t, "B", unique[0].Title, "first occurrence wins")
}
