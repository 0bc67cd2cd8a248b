package retrieval

import (
	"context"
	"sort"
	"time"

	"github.com/loreleaf-app/loreleaf/internal/domain"
)

// SearchFunc is the external ranked-search collaborator. Results come
// back ordered by descending score, at most limit of them. Errors
// propagate to the orchestrator's caller unmodified.
type SearchFunc func(ctx context.Context, query string, limit int, sources domain.SourceFilter) ([]domain.SearchResult, error)

// SearchStage labels which stage of the decision tree issued a search call.
type SearchStage string

const (
	StageDirect SearchStage = "direct"
	StageProbe  SearchStage = "probe"
	StageFocus  SearchStage = "focus"
)

// SearchCallMetrics describes one underlying search invocation. Purely
// observational; hooks must never influence routing decisions.
type SearchCallMetrics struct {
	Stage       SearchStage
	Limit       int
	ResultCount int
	Duration    time.Duration
	Err         error
}

// TelemetryHook receives per-call search metrics.
type TelemetryHook func(SearchCallMetrics)

// RetrievalOutput is the final ranked context set plus bookkeeping about
// which sources produced it.
type RetrievalOutput struct {
	Results     []domain.SearchResult
	UsedSources domain.SourceFilter
	ChunkCount  int
}

const (
	probeLimit = 10

	// Focus thresholds are contractual: changing them changes retrieval
	// behavior. The minimum-match guard keeps a single lucky high-scoring
	// hit from starving every other source.
	singleSourceLead = 1.15
	pairSourceLead   = 1.2
	minFocusMatches  = 2
)

// sourceProbeScore aggregates probe matches for one source. Discarded
// once the focus decision is made.
type sourceProbeScore struct {
	source     domain.Source
	totalScore float32
	count      int
}

func (s sourceProbeScore) avg() float32 {
	if s.count == 0 {
		return 0
	}
	return s.totalScore / float32(s.count)
}

// Orchestrator drives one or two rounds of search calls depending on
// how confident the classifier is about where the answer lives.
type Orchestrator struct {
	classifier *Classifier
	hook       TelemetryHook
}

// NewOrchestrator creates an orchestrator using the given classifier.
func NewOrchestrator(classifier *Classifier) *Orchestrator {
	return &Orchestrator{classifier: classifier}
}

// NewOrchestratorWithHook creates an orchestrator that reports per-call
// search metrics to hook.
func NewOrchestratorWithHook(classifier *Classifier, hook TelemetryHook) *Orchestrator {
	return &Orchestrator{classifier: classifier, hook: hook}
}

// Retrieve executes the retrieval decision tree:
//
//  1. An explicit user source filter bypasses source selection entirely.
//  2. A high-confidence classification with a concrete source set gets a
//     single direct search.
//  3. Everything else runs the two-stage probe-then-focus protocol.
//
// Errors from search are returned verbatim: no retries, no wrapping, no
// partial results. Cancellation of ctx propagates through search.
func (o *Orchestrator) Retrieve(ctx context.Context, query string, filter domain.SourceFilter, maxChunks int, search SearchFunc) (*RetrievalOutput, error) {
	return o.RetrieveWithAnalysis(ctx, query, o.classifier.Classify(query), filter, maxChunks, search)
}

// RetrieveWithAnalysis runs the decision tree against an analysis the
// caller already computed, so callers that classify for their own
// bookkeeping do not classify twice.
func (o *Orchestrator) RetrieveWithAnalysis(ctx context.Context, query string, analysis QueryAnalysis, filter domain.SourceFilter, maxChunks int, search SearchFunc) (*RetrievalOutput, error) {
	count := clampChunkCount(analysis.ChunkCount, maxChunks)

	if filter.IsExplicit() {
		results, err := o.search(ctx, StageDirect, query, count, filter, search)
		if err != nil {
			return nil, err
		}
		return &RetrievalOutput{Results: results, UsedSources: filter, ChunkCount: len(results)}, nil
	}

	if analysis.Confidence > 0.7 && analysis.Sources.IsExplicit() {
		results, err := o.search(ctx, StageDirect, query, count, analysis.Sources, search)
		if err != nil {
			return nil, err
		}
		return &RetrievalOutput{Results: results, UsedSources: analysis.Sources, ChunkCount: len(results)}, nil
	}

	probe, err := o.search(ctx, StageProbe, query, probeLimit, domain.AllSources(), search)
	if err != nil {
		return nil, err
	}
	if len(probe) == 0 {
		return &RetrievalOutput{
			Results:     []domain.SearchResult{},
			UsedSources: domain.AllSources(),
			ChunkCount:  0,
		}, nil
	}

	focused := focusSources(probe)

	results, err := o.search(ctx, StageFocus, query, count, focused, search)
	if err != nil {
		return nil, err
	}
	return &RetrievalOutput{Results: results, UsedSources: focused, ChunkCount: len(results)}, nil
}

func (o *Orchestrator) search(ctx context.Context, stage SearchStage, query string, limit int, sources domain.SourceFilter, search SearchFunc) ([]domain.SearchResult, error) {
	start := time.Now()
	results, err := search(ctx, query, limit, sources)
	if o.hook != nil {
		o.hook(SearchCallMetrics{
			Stage:       stage,
			Limit:       limit,
			ResultCount: len(results),
			Duration:    time.Since(start),
			Err:         err,
		})
	}
	return results, err
}

// focusSources picks which sources the final search should target, based
// on per-source average relevance in the probe results.
func focusSources(probe []domain.SearchResult) domain.SourceFilter {
	ranked := rankProbeScores(probe)

	top := ranked[0]
	if len(ranked) >= 2 {
		second := ranked[1]
		if top.avg() > second.avg()*singleSourceLead && top.count >= minFocusMatches {
			return domain.ExplicitSources(top.source)
		}
		if len(ranked) >= 3 && top.avg() > ranked[2].avg()*pairSourceLead {
			return domain.ExplicitSources(top.source, second.source)
		}
	}
	return domain.AllSources()
}

// rankProbeScores groups probe results by source and orders the groups
// by average score descending. Results without source metadata fall into
// the default bucket.
func rankProbeScores(probe []domain.SearchResult) []sourceProbeScore {
	bySource := make(map[domain.Source]*sourceProbeScore)
	for _, r := range probe {
		source := r.ResolvedSource()
		agg, ok := bySource[source]
		if !ok {
			agg = &sourceProbeScore{source: source}
			bySource[source] = agg
		}
		agg.totalScore += r.Score
		agg.count++
	}

	ranked := make([]sourceProbeScore, 0, len(bySource))
	for _, agg := range bySource {
		ranked = append(ranked, *agg)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].avg() != ranked[j].avg() {
			return ranked[i].avg() > ranked[j].avg()
		}
		return ranked[i].source < ranked[j].source
	})
	return ranked
}

func clampChunkCount(suggested, maxChunks int) int {
	if maxChunks > 0 && suggested > maxChunks {
		return maxChunks
	}
	return suggested
}
