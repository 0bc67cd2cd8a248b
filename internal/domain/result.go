package domain

import "time"

// SearchResult is one ranked chunk returned by the search collaborator.
// Score is only guaranteed comparable within a single search invocation.
type SearchResult struct {
	DocumentID string
	Title      string
	Content    string
	Score      float32
	Source     Source
	ChunkIndex int
	UpdatedAt  time.Time
}

// ResolvedSource returns the result's source, mapping missing metadata to
// the default fallback bucket.
func (r SearchResult) ResolvedSource() Source {
	if r.Source.IsValid() {
		return r.Source
	}
	return DefaultSource
}
