// Package retrieval provides the default in-memory knowledge base used by the
// knowledge search tool. Documents are split into chunks at load time and
// scored against queries by token overlap. The scoring is intentionally
// simple; production deployments plug in a vector store behind core.Retriever.
package retrieval

import (
	"context"
	"sort"
	"strings"

	"github.com/hupe1980/chatgraph/core"
	"github.com/hupe1980/chatgraph/faq"
)

// Document is a knowledge base article before chunking.
type Document struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	URL          string `json:"url,omitempty"`
	SectionTitle string `json:"section_title,omitempty"`
	Content      string `json:"content"`
}

// chunk is a scored unit of retrieval.
type chunk struct {
	doc        Document
	index      int
	total      int
	text       string
	tokens     map[string]int
	tokenCount int
}

// IndexOptions configure chunking behavior.
type IndexOptions struct {
	// ChunkSize is the approximate chunk length in runes.
	ChunkSize int
}

// Index is an in-memory retriever over chunked documents.
// It is immutable after construction and safe for concurrent use.
type Index struct {
	chunks []chunk
}

// NewIndex chunks the given documents and builds the in-memory index.
func NewIndex(docs []Document, optFns ...func(o *IndexOptions)) *Index {
	opts := IndexOptions{ChunkSize: 800}
	for _, fn := range optFns {
		fn(&opts)
	}

	var chunks []chunk
	for _, doc := range docs {
		parts := splitChunks(doc.Content, opts.ChunkSize)
		for i, part := range parts {
			tokens := map[string]int{}
			count := 0
			for _, tok := range faq.Tokenize(doc.Title + " " + part) {
				tokens[tok]++
				count++
			}
			chunks = append(chunks, chunk{
				doc:        doc,
				index:      i,
				total:      len(parts),
				text:       part,
				tokens:     tokens,
				tokenCount: count,
			})
		}
	}
	return &Index{chunks: chunks}
}

// Search implements core.Retriever. Results are ordered by descending score;
// chunks with no token overlap are omitted.
func (idx *Index) Search(ctx context.Context, query string, limit int) ([]core.Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 3
	}

	queryTokens := faq.Tokenize(query)
	if len(queryTokens) == 0 {
		return nil, nil
	}

	type scored struct {
		c     *chunk
		score float64
	}
	var results []scored
	for i := range idx.chunks {
		c := &idx.chunks[i]
		hits := 0
		for _, qt := range queryTokens {
			if c.tokens[qt] > 0 {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		results = append(results, scored{c: c, score: float64(hits) / float64(len(queryTokens))})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].score > results[j].score })
	if len(results) > limit {
		results = results[:limit]
	}

	sources := make([]core.Source, len(results))
	for i, r := range results {
		sources[i] = core.Source{
			Title:          r.c.doc.Title,
			DocumentID:     r.c.doc.ID,
			Snippet:        snippet(r.c.text, 200),
			RelevanceScore: r.score,
			URL:            r.c.doc.URL,
			SectionTitle:   r.c.doc.SectionTitle,
			ChunkIndex:     r.c.index,
			TotalChunks:    r.c.total,
		}
	}
	return sources, nil
}

// splitChunks breaks text into roughly size-rune pieces on paragraph, then
// sentence boundaries. Short texts come back as a single chunk.
func splitChunks(text string, size int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len([]rune(text)) <= size {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if current.Len() > 0 && current.Len()+len(para) > size {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	if current.Len() > 0 {
		chunks = append(chunks, strings.TrimSpace(current.String()))
	}
	return chunks
}

// snippet truncates text to at most max runes, ending on a word boundary.
func snippet(text string, max int) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= max {
		return string(runes)
	}
	cut := string(runes[:max])
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		cut = cut[:idx]
	}
	return cut + "…"
}
