package faq

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadEntries reads curated entries from a JSON file holding an array of
// Entry objects.
func LoadEntries(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read faq file: %w", err)
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse faq file %s: %w", path, err)
	}
	return entries, nil
}

// NewMatcherFromFile loads entries from path and builds a matcher over them.
func NewMatcherFromFile(embedder Embedder, path string, optFns ...func(o *MatcherOptions)) (*Matcher, error) {
	entries, err := LoadEntries(path)
	if err != nil {
		return nil, err
	}
	return NewMatcher(embedder, entries, optFns...), nil
}
