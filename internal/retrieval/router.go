package retrieval

import (
	"fmt"
	"regexp"
	"strings"
)

// RoutePath is the routing outcome: fast queries skip the expensive
// pipeline steps, slow queries run all of them.
type RoutePath string

const (
	RoutePathFast RoutePath = "fast"
	RoutePathSlow RoutePath = "slow"
)

// RouteFlags are the pipeline gates derived from a route path. They are
// computed at the point of use so they can never drift out of sync with
// the path.
type RouteFlags struct {
	SkipRephrasing         bool
	SkipIterativeRetrieval bool
	SkipSourceAnalysis     bool
	UseTwoStageSearch      bool
}

// Flags returns the pipeline gates for the path.
func (p RoutePath) Flags() RouteFlags {
	fast := p == RoutePathFast
	return RouteFlags{
		SkipRephrasing:         fast,
		SkipIterativeRetrieval: fast,
		SkipSourceAnalysis:     fast,
		UseTwoStageSearch:      !fast,
	}
}

// QueryRoute is the router's decision. Reason is a human-readable trace
// for diagnostics only; nothing downstream may parse it.
type QueryRoute struct {
	Path   RoutePath
	Reason string
}

// Flags returns the pipeline gates derived from the chosen path.
func (r QueryRoute) Flags() RouteFlags {
	return r.Path.Flags()
}

// Turn is one prior conversation message. The router accepts history for
// interface symmetry with future heuristics; the current scoring only
// uses the first-message flag and the query's own self-containment.
type Turn struct {
	Role    string
	Content string
}

const (
	fastShortQueryWords = 8
	slowLongQueryWords  = 20

	fastShortScore        = 3
	fastDefinitionalScore = 2
	fastSelfContainedScore = 2
	fastCountingScore     = 2
	fastListScore         = 1
	fastFirstMessageScore = 1

	slowAnalyticalScore = 3
	slowMultiPartScore  = 3
	slowClausesScore    = 2
	slowLongScore       = 2
	slowContextScore    = 2
)

// RouterConfig holds the signal vocabularies. Immutable after
// construction so tests can substitute fixtures.
type RouterConfig struct {
	// ContinuationMarkers are anaphora that make a query depend on prior
	// turns. Single words match whole tokens; phrases match as substrings.
	ContinuationMarkers []string
	AnalyticalTerms     []string
}

// DefaultRouterConfig returns the production signal vocabularies.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		ContinuationMarkers: []string{
			"it", "this", "that", "they", "them", "these", "those",
			"he", "she", "his", "her", "its", "their", "and",
			"what about",
		},
		AnalyticalTerms: []string{
			"why", "how", "explain", "analyze", "compare", "discuss", "elaborate",
		},
	}
}

var (
	definitionalRe = regexp.MustCompile(`^\s*(what is|what's|who is|who's|when is|where is|define)\b`)
	countingRe     = regexp.MustCompile(`\b(how many|count|total|number of)\b`)
	listPrefixRe   = regexp.MustCompile(`^\s*(list|show me|give me|find)\b`)
)

// Router decides whether a query takes the fast or slow path. Pure and
// total like the classifier.
type Router struct {
	cfg RouterConfig
}

// NewRouter creates a router with the default signal vocabularies.
func NewRouter() *Router {
	return NewRouterWithConfig(DefaultRouterConfig())
}

// NewRouterWithConfig creates a router with explicit configuration.
func NewRouterWithConfig(cfg RouterConfig) *Router {
	return &Router{cfg: cfg}
}

// Route scores fast-path and slow-path signals independently and picks
// the larger. Ties resolve to the slow path, the conservative choice.
func (r *Router) Route(query string, isFirstMessage bool, history []Turn) QueryRoute {
	_ = history

	lowered := strings.ToLower(query)
	wordCount := len(strings.Fields(lowered))
	selfContained := r.isSelfContained(lowered)

	var fastScore, slowScore int
	var fastSignals, slowSignals []string

	if wordCount <= fastShortQueryWords {
		fastScore += fastShortScore
		fastSignals = append(fastSignals, "short-query")
	}
	if definitionalRe.MatchString(lowered) {
		fastScore += fastDefinitionalScore
		fastSignals = append(fastSignals, "definitional")
	}
	if selfContained {
		fastScore += fastSelfContainedScore
		fastSignals = append(fastSignals, "self-contained")
	}
	if countingRe.MatchString(lowered) {
		fastScore += fastCountingScore
		fastSignals = append(fastSignals, "counting")
	}
	if listPrefixRe.MatchString(lowered) {
		fastScore += fastListScore
		fastSignals = append(fastSignals, "list-request")
	}
	if isFirstMessage {
		fastScore += fastFirstMessageScore
		fastSignals = append(fastSignals, "first-message")
	}

	if containsAnyTerm(lowered, r.cfg.AnalyticalTerms) {
		slowScore += slowAnalyticalScore
		slowSignals = append(slowSignals, "analytical")
	}
	if questionSegments(lowered) > 2 {
		slowScore += slowMultiPartScore
		slowSignals = append(slowSignals, "multi-part")
	}
	if strings.Contains(lowered, " and ") || strings.Contains(lowered, " or ") ||
		strings.Contains(lowered, "; ") {
		slowScore += slowClausesScore
		slowSignals = append(slowSignals, "multiple-clauses")
	}
	if wordCount > slowLongQueryWords {
		slowScore += slowLongScore
		slowSignals = append(slowSignals, "long-query")
	}
	if !isFirstMessage && !selfContained {
		slowScore += slowContextScore
		slowSignals = append(slowSignals, "needs-context")
	}

	path := RoutePathSlow
	signals := slowSignals
	if fastScore > slowScore {
		path = RoutePathFast
		signals = fastSignals
	}

	return QueryRoute{
		Path:   path,
		Reason: fmt.Sprintf("fast=%d slow=%d signals=[%s]", fastScore, slowScore, strings.Join(signals, " ")),
	}
}

// isSelfContained reports whether the query carries no anaphoric or
// continuation markers and can be answered without prior turns.
func (r *Router) isSelfContained(lowered string) bool {
	words := tokenWords(lowered)
	for _, marker := range r.cfg.ContinuationMarkers {
		if strings.Contains(marker, " ") {
			if strings.Contains(lowered, marker) {
				return false
			}
			continue
		}
		if _, ok := words[marker]; ok {
			return false
		}
	}
	return true
}

func containsAnyTerm(lowered string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(lowered, term) {
			return true
		}
	}
	return false
}

// questionSegments counts non-empty "?"-delimited parts of the query.
func questionSegments(lowered string) int {
	segments := 0
	for _, part := range strings.Split(lowered, "?") {
		if strings.TrimSpace(part) != "" {
			segments++
		}
	}
	return segments
}

func tokenWords(lowered string) map[string]struct{} {
	words := make(map[string]struct{})
	for _, field := range strings.Fields(lowered) {
		trimmed := strings.TrimFunc(field, func(r rune) bool {
			return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
		})
		if trimmed != "" {
			words[trimmed] = struct{}{}
		}
	}
	return words
}
