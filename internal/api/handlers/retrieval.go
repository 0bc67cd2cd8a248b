package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/loreleaf-app/loreleaf/internal/api"
	"github.com/loreleaf-app/loreleaf/internal/domain"
	"github.com/loreleaf-app/loreleaf/internal/retrieval"
	"github.com/loreleaf-app/loreleaf/internal/service"
)

type RetrievalServiceAPI interface {
	Retrieve(ctx context.Context, input service.RetrieveInput) (*service.RetrieveOutput, error)
	Explain(query string, isFirstMessage bool, history []retrieval.Turn) service.ExplainOutput
}

type RetrievalHandler struct {
	svc     RetrievalServiceAPI
	logRepo service.RetrievalLogRepository
}

func NewRetrievalHandler(svc RetrievalServiceAPI, logRepo service.RetrievalLogRepository) *RetrievalHandler {
	return &RetrievalHandler{svc: svc, logRepo: logRepo}
}

type HistoryTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type RetrieveRequest struct {
	Query          string        `json:"query"`
	Sources        []string      `json:"sources,omitempty"`
	MaxChunks      int           `json:"max_chunks,omitempty"`
	IsFirstMessage bool          `json:"is_first_message,omitempty"`
	History        []HistoryTurn `json:"history,omitempty"`
}

type RetrievalResultResponse struct {
	DocumentID string  `json:"document_id"`
	Title      string  `json:"title"`
	Content    string  `json:"content"`
	Score      float32 `json:"score"`
	Source     string  `json:"source"`
	ChunkIndex int     `json:"chunk_index,omitempty"`
	UpdatedAt  string  `json:"updated_at,omitempty"`
}

type RetrievalDecisionResponse struct {
	QueryType   string   `json:"query_type"`
	Complexity  string   `json:"complexity"`
	Confidence  float64  `json:"confidence"`
	Keywords    []string `json:"keywords,omitempty"`
	RoutePath   string   `json:"route_path"`
	RouteReason string   `json:"route_reason"`
}

type RetrieveResponse struct {
	Results     []*RetrievalResultResponse `json:"results"`
	UsedSources []string                   `json:"used_sources"`
	ChunkCount  int                        `json:"chunk_count"`
	Decision    RetrievalDecisionResponse  `json:"decision"`
	LogID       string                     `json:"log_id,omitempty"`
}

// Retrieve runs the full decision engine for a chat query and returns
// the ranked context set plus the decisions that produced it.
func (h *RetrievalHandler) Retrieve(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req RetrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Query) == "" {
		api.HandleError(w, domain.ErrEmptyQuery)
		return
	}

	filter, err := domain.ParseSourceFilter(req.Sources)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	input := service.RetrieveInput{
		Query:          req.Query,
		Filter:         filter,
		MaxChunks:      req.MaxChunks,
		IsFirstMessage: req.IsFirstMessage,
		History:        toTurns(req.History),
	}

	output, err := h.svc.Retrieve(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*RetrievalResultResponse, len(output.Results))
	for i, result := range output.Results {
		updatedAt := ""
		if !result.UpdatedAt.IsZero() {
			updatedAt = result.UpdatedAt.UTC().Format(time.RFC3339Nano)
		}
		responses[i] = &RetrievalResultResponse{
			DocumentID: result.DocumentID,
			Title:      result.Title,
			Content:    result.Content,
			Score:      result.Score,
			Source:     string(result.ResolvedSource()),
			ChunkIndex: result.ChunkIndex,
			UpdatedAt:  updatedAt,
		}
	}

	resp := RetrieveResponse{
		Results:     responses,
		UsedSources: output.UsedSources.Strings(),
		ChunkCount:  output.ChunkCount,
		Decision: RetrievalDecisionResponse{
			QueryType:   string(output.Analysis.Type),
			Complexity:  string(output.Analysis.Complexity),
			Confidence:  output.Analysis.Confidence,
			Keywords:    output.Analysis.Keywords,
			RoutePath:   string(output.Route.Path),
			RouteReason: output.Route.Reason,
		},
	}

	if h.logRepo != nil {
		entry := service.RetrievalLogEntry{
			Query:       req.Query,
			QueryType:   string(output.Analysis.Type),
			Complexity:  string(output.Analysis.Complexity),
			Confidence:  output.Analysis.Confidence,
			RoutePath:   string(output.Route.Path),
			UsedSources: output.UsedSources.Strings(),
			ChunkCount:  output.ChunkCount,
			DurationMs:  int(time.Since(start).Milliseconds()),
		}
		if logID, err := h.logRepo.CreateRetrievalLog(r.Context(), entry); err == nil {
			resp.LogID = logID
		}
	}

	api.Success(w, http.StatusOK, resp)
}

type ExplainRequest struct {
	Query          string        `json:"query"`
	IsFirstMessage bool          `json:"is_first_message,omitempty"`
	History        []HistoryTurn `json:"history,omitempty"`
}

type ExplainResponse struct {
	QueryType        string   `json:"query_type"`
	Complexity       string   `json:"complexity"`
	SuggestedSources []string `json:"suggested_sources"`
	ChunkCount       int      `json:"chunk_count"`
	Confidence       float64  `json:"confidence"`
	Keywords         []string `json:"keywords,omitempty"`
	RoutePath        string   `json:"route_path"`
	RouteReason      string   `json:"route_reason"`
	RouteFlags       struct {
		SkipRephrasing         bool `json:"skip_rephrasing"`
		SkipIterativeRetrieval bool `json:"skip_iterative_retrieval"`
		SkipSourceAnalysis     bool `json:"skip_source_analysis"`
		UseTwoStageSearch      bool `json:"use_two_stage_search"`
	} `json:"route_flags"`
}

// Explain returns classifier and router diagnostics for a query
// without touching the embedding backend or the search store.
func (h *RetrievalHandler) Explain(w http.ResponseWriter, r *http.Request) {
	var req ExplainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Query) == "" {
		api.HandleError(w, domain.ErrEmptyQuery)
		return
	}

	out := h.svc.Explain(req.Query, req.IsFirstMessage, toTurns(req.History))
	flags := out.Route.Flags()

	resp := ExplainResponse{
		QueryType:        string(out.Analysis.Type),
		Complexity:       string(out.Analysis.Complexity),
		SuggestedSources: out.Analysis.Sources.Strings(),
		ChunkCount:       out.Analysis.ChunkCount,
		Confidence:       out.Analysis.Confidence,
		Keywords:         out.Analysis.Keywords,
		RoutePath:        string(out.Route.Path),
		RouteReason:      out.Route.Reason,
	}
	resp.RouteFlags.SkipRephrasing = flags.SkipRephrasing
	resp.RouteFlags.SkipIterativeRetrieval = flags.SkipIterativeRetrieval
	resp.RouteFlags.SkipSourceAnalysis = flags.SkipSourceAnalysis
	resp.RouteFlags.UseTwoStageSearch = flags.UseTwoStageSearch

	api.Success(w, http.StatusOK, resp)
}

func toTurns(history []HistoryTurn) []retrieval.Turn {
	if len(history) == 0 {
		return nil
	}
	turns := make([]retrieval.Turn, len(history))
	for i, turn := range history {
		turns[i] = retrieval.Turn{Role: turn.Role, Content: turn.Content}
	}
	return turns
}
