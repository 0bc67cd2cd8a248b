package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/loreleaf-app/loreleaf/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordedCall captures one invocation of the search collaborator.
type recordedCall struct {
	query   string
	limit   int
	sources domain.SourceFilter
}

// scriptedSearch returns canned result sets in order and records every call.
func scriptedSearch(calls *[]recordedCall, batches ...[]domain.SearchResult) SearchFunc {
	return func(ctx context.Context, query string, limit int, sources domain.SourceFilter) ([]domain.SearchResult, error) {
		*calls = append(*calls, recordedCall{query: query, limit: limit, sources: sources})
		if len(*calls) > len(batches) {
			return nil, nil
		}
		return batches[len(*calls)-1], nil
	}
}

func probeResult(source domain.Source, score float32) domain.SearchResult {
	return domain.SearchResult{Content: "chunk", Score: score, Source: source}
}

func TestOrchestrator_ExplicitOverride(t *testing.T) {
	orchestrator := NewOrchestrator(NewClassifier())
	ctx := context.Background()

	t.Run("bypasses source selection and issues one call", func(t *testing.T) {
		var calls []recordedCall
		filter := domain.ExplicitSources(domain.SourceArchive)
		search := scriptedSearch(&calls, []domain.SearchResult{
			probeResult(domain.SourceArchive, 0.8),
			probeResult(domain.SourceArchive, 0.6),
		})

		// Book-flavoured query: override must still win over classification.
		out, err := orchestrator.Retrieve(ctx, "novel chapter notes", filter, 50, search)

		require.NoError(t, err)
		require.Len(t, calls, 1)
		assert.Equal(t, filter, calls[0].sources)
		assert.Equal(t, filter, out.UsedSources)
		assert.Len(t, out.Results, 2)
		assert.Equal(t, 2, out.ChunkCount)
	})

	t.Run("clamps classifier chunk suggestion to max", func(t *testing.T) {
		var calls []recordedCall
		filter := domain.ExplicitSources(domain.SourceUploaded)
		search := scriptedSearch(&calls)

		// Long analytical query suggests 20 chunks; caller allows 8.
		_, err := orchestrator.Retrieve(ctx,
			"explain every deduction on the return we filed together with the accountant in spring of last year",
			filter, 8, search)

		require.NoError(t, err)
		require.Len(t, calls, 1)
		assert.Equal(t, 8, calls[0].limit)
	})
}

func TestOrchestrator_HighConfidenceDirectHit(t *testing.T) {
	orchestrator := NewOrchestrator(NewClassifier())
	ctx := context.Background()

	t.Run("confident book query searches reading log directly", func(t *testing.T) {
		var calls []recordedCall
		search := scriptedSearch(&calls, []domain.SearchResult{
			probeResult(domain.SourceReadingLog, 0.9),
		})

		// Two book terms: confidence 0.9, concrete source set.
		out, err := orchestrator.Retrieve(ctx, "rating for the novel I finished", domain.AllSources(), 50, search)

		require.NoError(t, err)
		require.Len(t, calls, 1)
		assert.Equal(t, []domain.Source{domain.SourceReadingLog}, calls[0].sources.Sources())
		assert.Equal(t, []domain.Source{domain.SourceReadingLog}, out.UsedSources.Sources())
	})

	t.Run("mixed query at exactly 0.7 falls through to two-stage", func(t *testing.T) {
		var calls []recordedCall
		search := scriptedSearch(&calls)

		_, err := orchestrator.Retrieve(ctx, "book review pdf", domain.AllSources(), 50, search)

		require.NoError(t, err)
		// Probe ran (and came back empty), proving branch 2 was not taken.
		require.Len(t, calls, 1)
		assert.True(t, calls[0].sources.IsAll())
		assert.Equal(t, probeLimit, calls[0].limit)
	})

	t.Run("caller-supplied analysis drives the decision", func(t *testing.T) {
		var calls []recordedCall
		search := scriptedSearch(&calls, []domain.SearchResult{
			probeResult(domain.SourceArchive, 0.8),
		})

		// "garden plans" classifies as general/low-confidence; the
		// supplied analysis must win and take the direct-hit branch.
		analysis := QueryAnalysis{
			Type:       QueryTypeDocument,
			Complexity: ComplexityModerate,
			Sources:    domain.ExplicitSources(domain.SourceArchive),
			ChunkCount: 10,
			Confidence: 0.9,
		}
		out, err := orchestrator.RetrieveWithAnalysis(ctx, "garden plans", analysis, domain.AllSources(), 50, search)

		require.NoError(t, err)
		require.Len(t, calls, 1)
		assert.Equal(t, 10, calls[0].limit)
		assert.Equal(t, []domain.Source{domain.SourceArchive}, calls[0].sources.Sources())
		assert.Equal(t, []domain.Source{domain.SourceArchive}, out.UsedSources.Sources())
	})
}

func TestOrchestrator_TwoStage(t *testing.T) {
	orchestrator := NewOrchestrator(NewClassifier())
	ctx := context.Background()

	t.Run("probe uses fixed limit and all sources", func(t *testing.T) {
		var calls []recordedCall
		search := scriptedSearch(&calls,
			[]domain.SearchResult{probeResult(domain.SourceUploaded, 0.5)},
			[]domain.SearchResult{probeResult(domain.SourceUploaded, 0.5)},
		)

		_, err := orchestrator.Retrieve(ctx, "plans for the garden shed", domain.AllSources(), 50, search)

		require.NoError(t, err)
		require.Len(t, calls, 2)
		assert.Equal(t, 10, calls[0].limit)
		assert.True(t, calls[0].sources.IsAll())
	})

	t.Run("dominant source wins the focus stage", func(t *testing.T) {
		// Source A: avg 0.9 over 3 matches. Source B: avg 0.5 over 2.
		// 0.9 > 0.5*1.15 and count >= 2, so focus on A alone.
		var calls []recordedCall
		probe := []domain.SearchResult{
			probeResult(domain.SourceSynced, 0.95),
			probeResult(domain.SourceSynced, 0.9),
			probeResult(domain.SourceSynced, 0.85),
			probeResult(domain.SourceUploaded, 0.55),
			probeResult(domain.SourceUploaded, 0.45),
		}
		final := []domain.SearchResult{probeResult(domain.SourceSynced, 0.95)}
		search := scriptedSearch(&calls, probe, final)

		out, err := orchestrator.Retrieve(ctx, "notes from the kitchen renovation", domain.AllSources(), 50, search)

		require.NoError(t, err)
		require.Len(t, calls, 2)
		assert.Equal(t, []domain.Source{domain.SourceSynced}, calls[1].sources.Sources())
		assert.Equal(t, []domain.Source{domain.SourceSynced}, out.UsedSources.Sources())
		assert.Equal(t, 1, out.ChunkCount)
	})

	t.Run("single high-scoring outlier does not starve other sources", func(t *testing.T) {
		// Top source has a big lead but only one match: the count guard
		// rejects the single-source focus, and with only two sources the
		// pair branch has no third to compare against.
		var calls []recordedCall
		probe := []domain.SearchResult{
			probeResult(domain.SourceArchive, 0.99),
			probeResult(domain.SourceUploaded, 0.4),
			probeResult(domain.SourceUploaded, 0.4),
		}
		search := scriptedSearch(&calls, probe, nil)

		out, err := orchestrator.Retrieve(ctx, "that one odd page", domain.AllSources(), 50, search)

		require.NoError(t, err)
		require.Len(t, calls, 2)
		assert.True(t, calls[1].sources.IsAll())
		assert.True(t, out.UsedSources.IsAll())
	})

	t.Run("top pair beats a distant third", func(t *testing.T) {
		// Top avg 0.8 vs second 0.75: no single-source lead. Third at 0.5:
		// 0.8 > 0.5*1.2, so focus narrows to the top two.
		var calls []recordedCall
		probe := []domain.SearchResult{
			probeResult(domain.SourceSynced, 0.8),
			probeResult(domain.SourceSynced, 0.8),
			probeResult(domain.SourceUploaded, 0.75),
			probeResult(domain.SourceUploaded, 0.75),
			probeResult(domain.SourceReadingLog, 0.5),
		}
		search := scriptedSearch(&calls, probe, nil)

		out, err := orchestrator.Retrieve(ctx, "travel plans from last summer", domain.AllSources(), 50, search)

		require.NoError(t, err)
		require.Len(t, calls, 2)
		assert.ElementsMatch(t,
			[]domain.Source{domain.SourceSynced, domain.SourceUploaded},
			calls[1].sources.Sources())
		assert.True(t, out.UsedSources.IsExplicit())
	})

	t.Run("close scores keep all sources", func(t *testing.T) {
		var calls []recordedCall
		probe := []domain.SearchResult{
			probeResult(domain.SourceSynced, 0.8),
			probeResult(domain.SourceSynced, 0.8),
			probeResult(domain.SourceUploaded, 0.78),
			probeResult(domain.SourceReadingLog, 0.75),
		}
		search := scriptedSearch(&calls, probe, nil)

		out, err := orchestrator.Retrieve(ctx, "everything about the move", domain.AllSources(), 50, search)

		require.NoError(t, err)
		require.Len(t, calls, 2)
		assert.True(t, calls[1].sources.IsAll())
		assert.True(t, out.UsedSources.IsAll())
	})

	t.Run("empty probe terminates without a second call", func(t *testing.T) {
		var calls []recordedCall
		search := scriptedSearch(&calls)

		out, err := orchestrator.Retrieve(ctx, "anything at all here", domain.AllSources(), 50, search)

		require.NoError(t, err)
		require.Len(t, calls, 1)
		assert.Empty(t, out.Results)
		assert.True(t, out.UsedSources.IsAll())
		assert.Equal(t, 0, out.ChunkCount)
	})

	t.Run("results without source metadata fall into the default bucket", func(t *testing.T) {
		var calls []recordedCall
		probe := []domain.SearchResult{
			{Content: "orphan", Score: 0.9},
			{Content: "orphan", Score: 0.9},
			probeResult(domain.SourceReadingLog, 0.3),
		}
		search := scriptedSearch(&calls, probe, nil)

		_, err := orchestrator.Retrieve(ctx, "something uncategorized", domain.AllSources(), 50, search)

		require.NoError(t, err)
		require.Len(t, calls, 2)
		assert.Equal(t, []domain.Source{domain.DefaultSource}, calls[1].sources.Sources())
	})

	t.Run("none filter is not an override", func(t *testing.T) {
		var calls []recordedCall
		search := scriptedSearch(&calls)

		out, err := orchestrator.Retrieve(ctx, "whatever happened in june", domain.NoSources(), 50, search)

		require.NoError(t, err)
		// No explicit selection: the default probe pipeline runs.
		require.Len(t, calls, 1)
		assert.True(t, calls[0].sources.IsAll())
		assert.Empty(t, out.Results)
	})
}

func TestOrchestrator_ErrorPropagation(t *testing.T) {
	orchestrator := NewOrchestrator(NewClassifier())
	ctx := context.Background()
	backendErr := errors.New("vector index unavailable")

	t.Run("probe error surfaces verbatim", func(t *testing.T) {
		search := func(ctx context.Context, query string, limit int, sources domain.SourceFilter) ([]domain.SearchResult, error) {
			return nil, backendErr
		}

		out, err := orchestrator.Retrieve(ctx, "household inventory", domain.AllSources(), 50, search)

		require.Error(t, err)
		assert.Equal(t, backendErr, err)
		assert.Nil(t, out)
	})

	t.Run("focus stage error surfaces verbatim", func(t *testing.T) {
		call := 0
		search := func(ctx context.Context, query string, limit int, sources domain.SourceFilter) ([]domain.SearchResult, error) {
			call++
			if call == 1 {
				return []domain.SearchResult{probeResult(domain.SourceUploaded, 0.5)}, nil
			}
			return nil, backendErr
		}

		_, err := orchestrator.Retrieve(ctx, "household inventory", domain.AllSources(), 50, search)

		require.Error(t, err)
		assert.Equal(t, backendErr, err)
	})

	t.Run("cancellation propagates through the collaborator", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(context.Background())
		cancel()
		search := func(ctx context.Context, query string, limit int, sources domain.SourceFilter) ([]domain.SearchResult, error) {
			return nil, ctx.Err()
		}

		_, err := orchestrator.Retrieve(cancelled, "household inventory", domain.AllSources(), 50, search)

		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestOrchestrator_TelemetryHook(t *testing.T) {
	ctx := context.Background()

	t.Run("hook observes every search call", func(t *testing.T) {
		var observed []SearchCallMetrics
		orchestrator := NewOrchestratorWithHook(NewClassifier(), func(m SearchCallMetrics) {
			observed = append(observed, m)
		})

		var calls []recordedCall
		probe := []domain.SearchResult{probeResult(domain.SourceUploaded, 0.5)}
		search := scriptedSearch(&calls, probe, probe)

		_, err := orchestrator.Retrieve(ctx, "garage door manual", domain.AllSources(), 50, search)

		require.NoError(t, err)
		require.Len(t, observed, 2)
		assert.Equal(t, StageProbe, observed[0].Stage)
		assert.Equal(t, StageFocus, observed[1].Stage)
		assert.Equal(t, 1, observed[0].ResultCount)
	})

	t.Run("hook sees direct-hit calls", func(t *testing.T) {
		var observed []SearchCallMetrics
		orchestrator := NewOrchestratorWithHook(NewClassifier(), func(m SearchCallMetrics) {
			observed = append(observed, m)
		})

		var calls []recordedCall
		search := scriptedSearch(&calls, []domain.SearchResult{probeResult(domain.SourceReadingLog, 0.9)})

		_, err := orchestrator.Retrieve(ctx, "rating for the novel I finished", domain.AllSources(), 50, search)

		require.NoError(t, err)
		require.Len(t, observed, 1)
		assert.Equal(t, StageDirect, observed[0].Stage)
	})
}
