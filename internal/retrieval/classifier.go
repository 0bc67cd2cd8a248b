// Package retrieval implements the adaptive retrieval decision engine:
// query classification, fast/slow routing, and the two-stage
// probe-then-focus search orchestration that selects which content
// sources to pull chat context from.
package retrieval

import (
	"strings"

	"github.com/loreleaf-app/loreleaf/internal/domain"
)

// QueryType is the domain guess for a query.
type QueryType string

const (
	QueryTypeBook     QueryType = "book"
	QueryTypeDocument QueryType = "document"
	QueryTypeGeneral  QueryType = "general"
	QueryTypeMixed    QueryType = "mixed"
)

// Complexity buckets queries by how much context they are likely to need.
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

// QueryAnalysis is the classifier's best-effort read of a query.
type QueryAnalysis struct {
	Type       QueryType
	Complexity Complexity
	Sources    domain.SourceFilter
	ChunkCount int
	Confidence float64
	Keywords   []string
}

const (
	chunkCountSimple   = 5
	chunkCountModerate = 10
	chunkCountComplex  = 20

	// Simple book lookups still warrant a handful of chunks even if the
	// complexity table is ever lowered below this.
	bookSimpleChunkFloor = 5

	confidenceBase     = 0.6
	confidencePerMatch = 0.15
	confidenceCap      = 0.9
	confidenceMixed    = 0.7
	confidenceGeneral  = 0.5
)

// ClassifierConfig holds the vocabulary tables and source buckets used
// for classification. It is immutable once the classifier is built, so
// tests can substitute fixture vocabularies without global state.
type ClassifierConfig struct {
	// BookTerms and DocumentTerms are matched by case-insensitive
	// substring containment against the whole query, so multi-word
	// entries match correctly.
	BookTerms     []string
	DocumentTerms []string

	// BookSources is the exclusive bucket for book-flavoured queries;
	// DocumentSources covers everything else.
	BookSources     []domain.Source
	DocumentSources []domain.Source

	ComplexTerms []string
}

// DefaultClassifierConfig returns the production vocabularies.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		BookTerms: []string{
			"book", "read", "author", "novel", "chapter", "rating",
			"review", "fiction", "memoir", "biography", "bookshelf",
		},
		DocumentTerms: []string{
			"document", "file", "pdf", "invoice", "receipt", "tax",
			"contract", "report", "form", "letter", "correspondence",
			"scan", "statement",
		},
		BookSources: []domain.Source{domain.SourceReadingLog},
		DocumentSources: []domain.Source{
			domain.SourceUploaded, domain.SourceSynced, domain.SourceArchive,
		},
		ComplexTerms: []string{"how", "why", "explain"},
	}
}

// Classifier derives a structured analysis from raw query text. It is a
// pure function over its input: no I/O, no side effects, never fails.
type Classifier struct {
	cfg ClassifierConfig
}

// NewClassifier creates a classifier with the default vocabularies.
func NewClassifier() *Classifier {
	return NewClassifierWithConfig(DefaultClassifierConfig())
}

// NewClassifierWithConfig creates a classifier with explicit configuration.
func NewClassifierWithConfig(cfg ClassifierConfig) *Classifier {
	return &Classifier{cfg: cfg}
}

// Classify produces a best-effort analysis of the query. When no signal
// is detected it degrades to general/moderate/all-sources at 0.5
// confidence rather than failing.
func (c *Classifier) Classify(query string) QueryAnalysis {
	lowered := strings.ToLower(query)
	wordCount := len(strings.Fields(lowered))

	bookMatches := matchTerms(lowered, c.cfg.BookTerms)
	docMatches := matchTerms(lowered, c.cfg.DocumentTerms)

	analysis := QueryAnalysis{
		Sources:  domain.AllSources(),
		Keywords: append(bookMatches, docMatches...),
	}

	switch {
	case len(bookMatches) > 0 && len(docMatches) > 0:
		analysis.Type = QueryTypeMixed
		analysis.Confidence = confidenceMixed
	case len(bookMatches) > 0:
		analysis.Type = QueryTypeBook
		analysis.Sources = domain.ExplicitSources(c.cfg.BookSources...)
		analysis.Confidence = matchConfidence(len(bookMatches))
	case len(docMatches) > 0:
		analysis.Type = QueryTypeDocument
		analysis.Sources = domain.ExplicitSources(c.cfg.DocumentSources...)
		analysis.Confidence = matchConfidence(len(docMatches))
	default:
		analysis.Type = QueryTypeGeneral
		analysis.Confidence = confidenceGeneral
	}

	analysis.Complexity = classifyComplexity(lowered, wordCount, c.cfg.ComplexTerms)

	switch analysis.Complexity {
	case ComplexitySimple:
		analysis.ChunkCount = chunkCountSimple
	case ComplexityComplex:
		analysis.ChunkCount = chunkCountComplex
	default:
		analysis.ChunkCount = chunkCountModerate
	}

	if analysis.Type == QueryTypeBook && analysis.Complexity == ComplexitySimple &&
		analysis.ChunkCount < bookSimpleChunkFloor {
		analysis.ChunkCount = bookSimpleChunkFloor
	}

	return analysis
}

func classifyComplexity(lowered string, wordCount int, complexTerms []string) Complexity {
	if wordCount <= 5 {
		return ComplexitySimple
	}
	if wordCount > 15 || strings.Contains(lowered, "?") {
		return ComplexityComplex
	}
	for _, term := range complexTerms {
		if strings.Contains(lowered, term) {
			return ComplexityComplex
		}
	}
	return ComplexityModerate
}

// matchTerms returns the vocabulary terms contained in the query, in
// vocabulary-declaration order.
func matchTerms(lowered string, terms []string) []string {
	var matched []string
	for _, term := range terms {
		if strings.Contains(lowered, term) {
			matched = append(matched, term)
		}
	}
	return matched
}

func matchConfidence(matches int) float64 {
	confidence := confidenceBase + confidencePerMatch*float64(matches)
	if confidence > confidenceCap {
		return confidenceCap
	}
	return confidence
}
