// Package faq matches incoming questions against a curated list of frequently
// asked questions using embedding similarity. A strong match answers the
// question directly without involving the model; a weaker match is surfaced as
// a suggestion alongside the regular pipeline output.
package faq

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/hupe1980/chatgraph/core"
)

// Decision classifies the strength of an FAQ match.
type Decision string

const (
	// DecisionExact means the curated answer can be returned as-is.
	DecisionExact Decision = "exact"
	// DecisionSuggest means the entry is close enough to mention but not to answer with.
	DecisionSuggest Decision = "suggest"
	// DecisionNone means no entry was similar enough to act on.
	DecisionNone Decision = "none"
)

const (
	// DefaultExactThreshold is the cosine similarity at or above which a
	// curated answer is returned directly.
	DefaultExactThreshold = 0.85
	// DefaultSuggestThreshold is the cosine similarity at or above which an
	// entry is offered as a suggestion.
	DefaultSuggestThreshold = 0.70
)

// Entry is a single curated question/answer pair.
type Entry struct {
	ID       string        `json:"id"`
	Question string        `json:"question"`
	Answer   string        `json:"answer"`
	Sources  []core.Source `json:"sources,omitempty"`
}

// Embedder converts text into a vector for similarity comparison.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Match is the outcome of comparing a question against the curated entries.
type Match struct {
	Decision Decision
	Entry    *Entry
	Score    float64
}

// MatcherOptions configure a Matcher.
type MatcherOptions struct {
	ExactThreshold   float64
	SuggestThreshold float64
}

// Matcher compares questions against curated entries by embedding similarity.
// Entry vectors are computed lazily on first use and cached.
type Matcher struct {
	embedder Embedder
	entries  []Entry
	opts     MatcherOptions

	mu      sync.Mutex
	vectors [][]float64
}

// NewMatcher creates a Matcher over the given entries.
func NewMatcher(embedder Embedder, entries []Entry, optFns ...func(o *MatcherOptions)) *Matcher {
	opts := MatcherOptions{
		ExactThreshold:   DefaultExactThreshold,
		SuggestThreshold: DefaultSuggestThreshold,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Matcher{embedder: embedder, entries: entries, opts: opts}
}

// Entries returns the curated entries backing this matcher.
func (m *Matcher) Entries() []Entry { return m.entries }

// Match embeds the question and returns the best scoring entry classified by
// the configured thresholds. With no entries it returns DecisionNone.
func (m *Matcher) Match(ctx context.Context, question string) (*Match, error) {
	if len(m.entries) == 0 {
		return &Match{Decision: DecisionNone}, nil
	}

	qv, err := m.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	vectors, err := m.entryVectors(ctx)
	if err != nil {
		return nil, err
	}

	bestIdx := -1
	bestScore := -1.0
	for i, v := range vectors {
		score := CosineSimilarity(qv, v)
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}

	match := &Match{Decision: DecisionNone, Score: bestScore}
	if bestIdx < 0 {
		return match, nil
	}

	switch {
	case bestScore >= m.opts.ExactThreshold:
		match.Decision = DecisionExact
		match.Entry = &m.entries[bestIdx]
	case bestScore >= m.opts.SuggestThreshold:
		match.Decision = DecisionSuggest
		match.Entry = &m.entries[bestIdx]
	}
	return match, nil
}

func (m *Matcher) entryVectors(ctx context.Context) ([][]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.vectors != nil {
		return m.vectors, nil
	}
	vectors := make([][]float64, len(m.entries))
	for i, e := range m.entries {
		v, err := m.embedder.Embed(ctx, e.Question)
		if err != nil {
			return nil, fmt.Errorf("embed entry %q: %w", e.ID, err)
		}
		vectors[i] = v
	}
	m.vectors = vectors
	return vectors, nil
}

// CosineSimilarity returns the cosine of the angle between two vectors.
// Mismatched lengths or zero vectors yield 0.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
