package service

import (
	"context"

	"github.com/loreleaf-app/loreleaf/internal/domain"
	"github.com/loreleaf-app/loreleaf/internal/retrieval"
	"github.com/loreleaf-app/loreleaf/internal/telemetry"
)

// SearchStoreInterface defines the ranked vector-search backend.
type SearchStoreInterface interface {
	Search(ctx context.Context, embedding []float32, filter domain.SourceFilter, limit int) ([]domain.SearchResult, error)
}

// EmbeddingServiceInterface defines the interface for embedding generation
type EmbeddingServiceInterface interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// RetrieveInput represents one retrieval request from the chat handler.
type RetrieveInput struct {
	Query          string
	Filter         domain.SourceFilter
	MaxChunks      int
	IsFirstMessage bool
	History        []retrieval.Turn
}

// RetrieveOutput is the ranked context set plus the decisions that
// produced it, for logging and prompt assembly.
type RetrieveOutput struct {
	Results     []domain.SearchResult
	UsedSources domain.SourceFilter
	ChunkCount  int
	Analysis    retrieval.QueryAnalysis
	Route       retrieval.QueryRoute
}

// ExplainOutput carries classifier and router diagnostics for a query.
type ExplainOutput struct {
	Analysis retrieval.QueryAnalysis
	Route    retrieval.QueryRoute
}

// RetrievalServiceConfig controls retrieval service behavior.
type RetrievalServiceConfig struct {
	// MaxChunks is the global ceiling on context chunks per retrieval.
	// Caller-supplied limits are clamped against it.
	MaxChunks int
}

// DefaultRetrievalServiceConfig returns the default service configuration.
func DefaultRetrievalServiceConfig() RetrievalServiceConfig {
	return RetrievalServiceConfig{MaxChunks: 20}
}

// RetrievalService wires the decision engine to its collaborators: the
// embedding client, the vector search store, and telemetry.
type RetrievalService struct {
	store        SearchStoreInterface
	embedding    EmbeddingServiceInterface
	classifier   *retrieval.Classifier
	router       *retrieval.Router
	orchestrator *retrieval.Orchestrator
	cfg          RetrievalServiceConfig
}

// NewRetrievalService creates a RetrievalService with default configuration.
func NewRetrievalService(store SearchStoreInterface, embedding EmbeddingServiceInterface) *RetrievalService {
	return NewRetrievalServiceWithConfig(store, embedding, DefaultRetrievalServiceConfig(), nil)
}

// NewRetrievalServiceWithConfig creates a RetrievalService with explicit
// configuration and an optional per-search telemetry hook.
func NewRetrievalServiceWithConfig(
	store SearchStoreInterface,
	embedding EmbeddingServiceInterface,
	cfg RetrievalServiceConfig,
	hook retrieval.TelemetryHook,
) *RetrievalService {
	classifier := retrieval.NewClassifier()
	return &RetrievalService{
		store:        store,
		embedding:    embedding,
		classifier:   classifier,
		router:       retrieval.NewRouter(),
		orchestrator: retrieval.NewOrchestratorWithHook(classifier, hook),
		cfg:          cfg,
	}
}

// Retrieve runs the full decision engine for a query and returns the
// ranked context set. Collaborator errors propagate unwrapped.
func (s *RetrievalService) Retrieve(ctx context.Context, input RetrieveInput) (*RetrieveOutput, error) {
	analysis := s.classifier.Classify(input.Query)
	route := s.router.Route(input.Query, input.IsFirstMessage, input.History)

	ctx, span := telemetry.StartSpan(ctx, "RetrievalService.Retrieve", telemetry.SpanAttributes{
		Operation: "retrieve",
		QueryType: string(analysis.Type),
		RoutePath: string(route.Path),
	})
	defer span.End()

	maxChunks := input.MaxChunks
	if maxChunks <= 0 || (s.cfg.MaxChunks > 0 && maxChunks > s.cfg.MaxChunks) {
		maxChunks = s.cfg.MaxChunks
	}

	out, err := s.orchestrator.RetrieveWithAnalysis(ctx, input.Query, analysis, input.Filter, maxChunks, s.newSearchFunc())
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	return &RetrieveOutput{
		Results:     out.Results,
		UsedSources: out.UsedSources,
		ChunkCount:  out.ChunkCount,
		Analysis:    analysis,
		Route:       route,
	}, nil
}

// Explain returns classifier and router diagnostics without touching any
// backend. Useful for telemetry and the explain CLI.
func (s *RetrievalService) Explain(query string, isFirstMessage bool, history []retrieval.Turn) ExplainOutput {
	return ExplainOutput{
		Analysis: s.classifier.Classify(query),
		Route:    s.router.Route(query, isFirstMessage, history),
	}
}

// newSearchFunc adapts the embedding client plus search store into the
// orchestrator's search collaborator. The query embedding is memoized so
// the probe and focus stages share a single embedding call.
func (s *RetrievalService) newSearchFunc() retrieval.SearchFunc {
	cache := make(map[string][]float32)
	return func(ctx context.Context, query string, limit int, sources domain.SourceFilter) ([]domain.SearchResult, error) {
		if sources.IsNone() {
			return []domain.SearchResult{}, nil
		}
		embedding, ok := cache[query]
		if !ok {
			var err error
			embedding, err = s.embedding.GenerateEmbedding(ctx, query)
			if err != nil {
				return nil, err
			}
			cache[query] = embedding
		}
		return s.store.Search(ctx, embedding, sources, limit)
	}
}
