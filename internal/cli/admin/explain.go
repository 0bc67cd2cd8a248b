package admin

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/loreleaf-app/loreleaf/internal/retrieval"
	"github.com/spf13/cobra"
)

// ExplainCmd returns the explain command, an offline diagnostic that
// runs the classifier and router against a query without touching the
// database or the embedding provider.
func ExplainCmd() *cobra.Command {
	var (
		firstMessage bool
		history      []string
	)

	cmd := &cobra.Command{
		Use:   "explain <query>",
		Short: "Explain how a query would be classified and routed",
		Long:  "Runs the query classifier and router locally and prints the resulting decisions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFormat, _ := cmd.Flags().GetString("output")
			return runExplain(args[0], firstMessage, history, outputFormat)
		},
	}

	cmd.Flags().BoolVar(&firstMessage, "first-message", false, "Treat the query as the first message of a conversation")
	cmd.Flags().StringArrayVar(&history, "history", nil, "Prior user turns, oldest first (repeatable)")
	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runExplain(query string, firstMessage bool, history []string, outputFormat string) error {
	turns := make([]retrieval.Turn, len(history))
	for i, content := range history {
		turns[i] = retrieval.Turn{Role: "user", Content: content}
	}

	classifier := retrieval.NewClassifier()
	router := retrieval.NewRouter()

	analysis := classifier.Classify(query)
	route := router.Route(query, firstMessage, turns)
	flags := route.Flags()

	if outputFormat == "json" {
		payload := map[string]any{
			"query_type":        string(analysis.Type),
			"complexity":        string(analysis.Complexity),
			"suggested_sources": analysis.Sources.Strings(),
			"chunk_count":       analysis.ChunkCount,
			"confidence":        analysis.Confidence,
			"keywords":          analysis.Keywords,
			"route_path":        string(route.Path),
			"route_reason":      route.Reason,
			"route_flags": map[string]bool{
				"skip_rephrasing":          flags.SkipRephrasing,
				"skip_iterative_retrieval": flags.SkipIterativeRetrieval,
				"skip_source_analysis":     flags.SkipSourceAnalysis,
				"use_two_stage_search":     flags.UseTwoStageSearch,
			},
		}
		out, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal output: %w", err)
		}
		fmt.Println(string(out))
		return nil
	}

	fmt.Printf("Query:      %s\n", query)
	fmt.Printf("Type:       %s\n", analysis.Type)
	fmt.Printf("Complexity: %s\n", analysis.Complexity)
	fmt.Printf("Sources:    %s\n", analysis.Sources)
	fmt.Printf("Chunks:     %d\n", analysis.ChunkCount)
	fmt.Printf("Confidence: %.2f\n", analysis.Confidence)
	if len(analysis.Keywords) > 0 {
		fmt.Printf("Keywords:   %s\n", strings.Join(analysis.Keywords, ", "))
	}
	fmt.Printf("Route:      %s (%s)\n", route.Path, route.Reason)
	fmt.Printf("Flags:      skip-rephrasing=%t skip-iterative=%t skip-source-analysis=%t two-stage=%t\n",
		flags.SkipRephrasing, flags.SkipIterativeRetrieval, flags.SkipSourceAnalysis, flags.UseTwoStageSearch)

	return nil
}
