package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// End-to-end fixtures pairing the classifier and router on the kinds of
// queries the chat handler actually sees.
func TestEngineScenarios(t *testing.T) {
	classifier := NewClassifier()
	router := NewRouter()

	t.Run("short factual opener takes the fast path", func(t *testing.T) {
		query := "What is Stoicism"

		analysis := classifier.Classify(query)
		route := router.Route(query, true, nil)

		assert.Equal(t, QueryTypeGeneral, analysis.Type)
		assert.Equal(t, ComplexitySimple, analysis.Complexity)
		assert.Equal(t, 0.5, analysis.Confidence)
		assert.Equal(t, 5, analysis.ChunkCount)
		assert.Equal(t, RoutePathFast, route.Path)
	})

	t.Run("reflective book comparison takes the slow path", func(t *testing.T) {
		query := "Why did I rate this book five stars and how does it compare to the other novels I read this year"

		analysis := classifier.Classify(query)
		route := router.Route(query, false, nil)

		assert.Equal(t, QueryTypeBook, analysis.Type)
		assert.GreaterOrEqual(t, analysis.Confidence, 0.75)
		assert.Equal(t, ComplexityComplex, analysis.Complexity)
		assert.Equal(t, 20, analysis.ChunkCount)
		require.True(t, analysis.Sources.IsExplicit())
		assert.Equal(t, RoutePathSlow, route.Path)
		assert.True(t, route.Flags().UseTwoStageSearch)
	})
}
