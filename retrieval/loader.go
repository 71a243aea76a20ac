package retrieval

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadDocuments reads a JSON array of documents from the given path.
func LoadDocuments(path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read knowledge base: %w", err)
	}
	var docs []Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("parse knowledge base %s: %w", path, err)
	}
	return docs, nil
}

// NewIndexFromFile loads documents from a JSON file and builds an index.
func NewIndexFromFile(path string, optFns ...func(o *IndexOptions)) (*Index, error) {
	docs, err := LoadDocuments(path)
	if err != nil {
		return nil, err
	}
	return NewIndex(docs, optFns...), nil
}
