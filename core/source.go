package core

// Source is a retrieved knowledge-base snippet with document identity and
// provenance metadata. DocumentID is the deduplication key used when the
// pipeline computes the unique source list for a turn.
type Source struct {
	Title          string  `json:"title"`
	DocumentID     string  `json:"document_id"`
	Snippet        string  `json:"snippet"` // First ~200 chars of the matched content
	RelevanceScore float64 `json:"relevance_score"`
	URL            string  `json:"url,omitempty"`
	SectionTitle   string  `json:"section_title,omitempty"`
	ChunkIndex     int     `json:"chunk_index,omitempty"`
	TotalChunks    int     `json:"total_chunks,omitempty"`
}

// DedupeSources returns sources with duplicate document ids removed,
// preserving first-seen order. Sources without a document id are kept as-is
// since they cannot collide.
func DedupeSources(sources []Source) []Source {
	seen := make(map[string]struct{}, len(sources))
	unique := make([]Source, 0, len(sources))
	for _, src := range sources {
		if src.DocumentID != "" {
			if _, dup := seen[src.DocumentID]; dup {
				continue
			}
			seen[src.DocumentID] = struct{}{}
		}
		unique = append(unique, src)
	}
	return unique
}

// SourceIDs extracts the non-empty document ids of the given sources in order.
func SourceIDs(sources []Source) []string {
	ids := make([]string, 0, len(sources))
	for _, src := range sources {
		if src.DocumentID != "" {
			ids = append(ids, src.DocumentID)
		}
	}
	return ids
}
