package retrieval

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDocs() []Document {
	return []Document{
		{
			ID:      "kb-billing",
			Title:   "Billing and invoices",
			Content: "Invoices are issued on the first day of each month. Payment is due within 30 days.",
		},
		{
			ID:      "kb-shipping",
			Title:   "Shipping policy",
			URL:     "https://example.com/shipping",
			Content: "Orders ship within two business days. International shipping takes up to ten days.",
		},
	}
}

func TestIndex_Search(t *testing.T) {
	idx := NewIndex(testDocs())

	sources, err := idx.Search(context.Background(), "when are invoices issued", 3)
	require.NoError(t, err)
	require.NotEmpty(t, sources)
	assert.Equal(t, "kb-billing", sources[0].DocumentID)
	assert.Equal(t, "Billing and invoices", sources[0].Title)
	assert.Greater(t, sources[0].RelevanceScore, 0.0)
}

func TestIndex_SearchNoHits(t *testing.T) {
	idx := NewIndex(testDocs())

	sources, err := idx.Search(context.Background(), "zebra migration patterns", 3)
	require.NoError(t, err)
	assert.Empty(t, sources)
}

func TestIndex_SearchLimit(t *testing.T) {
	idx := NewIndex(testDocs())

	sources, err := idx.Search(context.Background(), "shipping invoices days", 1)
	require.NoError(t, err)
	assert.Len(t, sources, 1)
}

func TestSplitChunks(t *testing.T) {
	long := strings.Repeat("First paragraph sentence.\n\n", 20)
	chunks := splitChunks(long, 100)
	assert.Greater(t, len(chunks), 1)

	short := splitChunks("tiny", 100)
	assert.Equal(t, []string{"tiny"}, short)

	assert.Nil(t, splitChunks("   ", 100))
}

func TestNewIndexFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kb.json")
	data, err := json.Marshal(testDocs())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	idx, err := NewIndexFromFile(path)
	require.NoError(t, err)

	sources, err := idx.Search(context.Background(), "shipping", 3)
	require.NoError(t, err)
	require.NotEmpty(t, sources)
	assert.Equal(t, "kb-shipping", sources[0].DocumentID)

	_, err = NewIndexFromFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
