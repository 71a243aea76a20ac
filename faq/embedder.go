package faq

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

// LexicalEmbedder is a deterministic, dependency free Embedder that hashes
// tokens into a fixed size bag-of-words vector. It is good enough for exact
// and near-exact question matching and serves as the default when no real
// embedding model is configured.
type LexicalEmbedder struct {
	dims int
}

// NewLexicalEmbedder creates a LexicalEmbedder with the given dimensionality.
// Values below 16 fall back to 256.
func NewLexicalEmbedder(dims int) *LexicalEmbedder {
	if dims < 16 {
		dims = 256
	}
	return &LexicalEmbedder{dims: dims}
}

// Embed implements Embedder.
func (e *LexicalEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	vec := make([]float64, e.dims)
	for _, token := range Tokenize(text) {
		h := fnv.New32a()
		h.Write([]byte(token))
		vec[int(h.Sum32())%e.dims]++
	}
	return vec, nil
}

// Tokenize lowercases the text and splits it on non-letter, non-digit runes.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
