package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/loreleaf-app/loreleaf/internal/domain"
	"github.com/loreleaf-app/loreleaf/internal/retrieval"
	"github.com/loreleaf-app/loreleaf/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRetrievalService struct {
	mock.Mock
}

func (m *MockRetrievalService) Retrieve(ctx context.Context, input service.RetrieveInput) (*service.RetrieveOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.RetrieveOutput), args.Error(1)
}

func (m *MockRetrievalService) Explain(query string, isFirstMessage bool, history []retrieval.Turn) service.ExplainOutput {
	args := m.Called(query, isFirstMessage, history)
	return args.Get(0).(service.ExplainOutput)
}

type MockRetrievalLogRepo struct {
	mock.Mock
}

func (m *MockRetrievalLogRepo) CreateRetrievalLog(ctx context.Context, entry service.RetrievalLogEntry) (string, error) {
	args := m.Called(ctx, entry)
	return args.String(0), args.Error(1)
}

func postJSON(t *testing.T, handler http.HandlerFunc, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func TestRetrievalHandler_Retrieve(t *testing.T) {
	t.Run("success with decision log", func(t *testing.T) {
		mockSvc := new(MockRetrievalService)
		mockLog := new(MockRetrievalLogRepo)
		handler := NewRetrievalHandler(mockSvc, mockLog)

		output := &service.RetrieveOutput{
			Results: []domain.SearchResult{
				{DocumentID: "doc-1", Title: "Dune", Content: "five stars", Score: 0.91, Source: domain.SourceReadingLog},
			},
			UsedSources: domain.ExplicitSources(domain.SourceReadingLog),
			ChunkCount:  1,
			Analysis: retrieval.QueryAnalysis{
				Type:       retrieval.QueryTypeBook,
				Complexity: retrieval.ComplexityModerate,
				Confidence: 0.75,
			},
			Route: retrieval.QueryRoute{Path: retrieval.RoutePathSlow, Reason: "fast=0 slow=2 signals=[needs-context]"},
		}
		mockSvc.On("Retrieve", mock.Anything, mock.MatchedBy(func(in service.RetrieveInput) bool {
			return in.Query == "rating for the novel" && in.Filter.IsAll()
		})).Return(output, nil)
		mockLog.On("CreateRetrievalLog", mock.Anything, mock.MatchedBy(func(e service.RetrievalLogEntry) bool {
			return e.Query == "rating for the novel" && e.QueryType == "book" && e.ChunkCount == 1
		})).Return("log-123", nil)

		w := postJSON(t, handler.Retrieve, RetrieveRequest{Query: "rating for the novel"})

		assert.Equal(t, http.StatusOK, w.Code)

		var envelope struct {
			Data RetrieveResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
		require.Len(t, envelope.Data.Results, 1)
		assert.Equal(t, "doc-1", envelope.Data.Results[0].DocumentID)
		assert.Equal(t, "reading-log", envelope.Data.Results[0].Source)
		assert.Equal(t, []string{"reading-log"}, envelope.Data.UsedSources)
		assert.Equal(t, "book", envelope.Data.Decision.QueryType)
		assert.Equal(t, "slow", envelope.Data.Decision.RoutePath)
		assert.Equal(t, "log-123", envelope.Data.LogID)
		mockSvc.AssertExpectations(t)
		mockLog.AssertExpectations(t)
	})

	t.Run("empty query rejected", func(t *testing.T) {
		handler := NewRetrievalHandler(new(MockRetrievalService), nil)

		w := postJSON(t, handler.Retrieve, RetrieveRequest{Query: "   "})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "query cannot be empty")
	})

	t.Run("unknown source rejected", func(t *testing.T) {
		handler := NewRetrievalHandler(new(MockRetrievalService), nil)

		w := postJSON(t, handler.Retrieve, RetrieveRequest{
			Query:   "tax forms",
			Sources: []string{"email"},
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "unknown source")
	})

	t.Run("invalid body rejected", func(t *testing.T) {
		handler := NewRetrievalHandler(new(MockRetrievalService), nil)

		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte("{not json")))
		w := httptest.NewRecorder()
		handler.Retrieve(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "invalid request body")
	})

	t.Run("service error maps to status", func(t *testing.T) {
		mockSvc := new(MockRetrievalService)
		handler := NewRetrievalHandler(mockSvc, nil)

		mockSvc.On("Retrieve", mock.Anything, mock.Anything).Return(nil, assert.AnError)

		w := postJSON(t, handler.Retrieve, RetrieveRequest{Query: "garden plans"})

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("log failure does not fail the request", func(t *testing.T) {
		mockSvc := new(MockRetrievalService)
		mockLog := new(MockRetrievalLogRepo)
		handler := NewRetrievalHandler(mockSvc, mockLog)

		output := &service.RetrieveOutput{
			Results:     []domain.SearchResult{},
			UsedSources: domain.AllSources(),
		}
		mockSvc.On("Retrieve", mock.Anything, mock.Anything).Return(output, nil)
		mockLog.On("CreateRetrievalLog", mock.Anything, mock.Anything).Return("", assert.AnError)

		w := postJSON(t, handler.Retrieve, RetrieveRequest{Query: "garden plans"})

		assert.Equal(t, http.StatusOK, w.Code)

		var envelope struct {
			Data RetrieveResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
		assert.Empty(t, envelope.Data.LogID)
	})
}

func TestRetrievalHandler_Explain(t *testing.T) {
	t.Run("returns classifier and router diagnostics", func(t *testing.T) {
		mockSvc := new(MockRetrievalService)
		handler := NewRetrievalHandler(mockSvc, nil)

		out := service.ExplainOutput{
			Analysis: retrieval.QueryAnalysis{
				Type:       retrieval.QueryTypeGeneral,
				Complexity: retrieval.ComplexitySimple,
				Sources:    domain.AllSources(),
				ChunkCount: 5,
				Confidence: 0.5,
			},
			Route: retrieval.QueryRoute{Path: retrieval.RoutePathFast, Reason: "fast=5 slow=0 signals=[short definitional]"},
		}
		mockSvc.On("Explain", "What is Stoicism", true, []retrieval.Turn(nil)).Return(out)

		w := postJSON(t, handler.Explain, ExplainRequest{Query: "What is Stoicism", IsFirstMessage: true})

		assert.Equal(t, http.StatusOK, w.Code)

		var envelope struct {
			Data ExplainResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
		assert.Equal(t, "general", envelope.Data.QueryType)
		assert.Equal(t, "simple", envelope.Data.Complexity)
		assert.Equal(t, []string{"all"}, envelope.Data.SuggestedSources)
		assert.Equal(t, 5, envelope.Data.ChunkCount)
		assert.Equal(t, "fast", envelope.Data.RoutePath)
		assert.True(t, envelope.Data.RouteFlags.SkipRephrasing)
		assert.False(t, envelope.Data.RouteFlags.UseTwoStageSearch)
		mockSvc.AssertExpectations(t)
	})

	t.Run("empty query rejected", func(t *testing.T) {
		handler := NewRetrievalHandler(new(MockRetrievalService), nil)

		w := postJSON(t, handler.Explain, ExplainRequest{Query: ""})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "query cannot be empty")
	})

	t.Run("history forwarded to service", func(t *testing.T) {
		mockSvc := new(MockRetrievalService)
		handler := NewRetrievalHandler(mockSvc, nil)

		history := []retrieval.Turn{{Role: "user", Content: "tell me about my tax documents"}}
		mockSvc.On("Explain", "what about last year", false, history).
			Return(service.ExplainOutput{
				Analysis: retrieval.QueryAnalysis{Sources: domain.AllSources()},
				Route:    retrieval.QueryRoute{Path: retrieval.RoutePathSlow},
			})

		w := postJSON(t, handler.Explain, ExplainRequest{
			Query:   "what about last year",
			History: []HistoryTurn{{Role: "user", Content: "tell me about my tax documents"}},
		})

		assert.Equal(t, http.StatusOK, w.Code)
		mockSvc.AssertExpectations(t)
	})
}
