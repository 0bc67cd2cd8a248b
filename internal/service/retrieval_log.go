package service

import "context"

// RetrievalLogEntry captures one engine invocation and its decisions.
// Logged entries feed offline evaluation of the focus thresholds.
type RetrievalLogEntry struct {
	Query       string
	QueryType   string
	Complexity  string
	Confidence  float64
	RoutePath   string
	UsedSources []string
	ChunkCount  int
	DurationMs  int
}

// RetrievalLogRepository persists retrieval decision logs.
type RetrievalLogRepository interface {
	CreateRetrievalLog(ctx context.Context, entry RetrievalLogEntry) (string, error)
}
