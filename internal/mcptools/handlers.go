package mcptools

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/qvidal/aor/internal/questionnaire"
)

// makeSearchHandler creates the search_knowledge tool handler.
// Search flow: embed the query, run a similarity search against the chunk
// points, return the ranked matches above the score threshold.
func makeSearchHandler(cfg *Config) func(
	context.Context, *mcp.CallToolRequest, SearchKnowledgeInput,
) (*mcp.CallToolResult, SearchKnowledgeOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SearchKnowledgeInput) (
		*mcp.CallToolResult, SearchKnowledgeOutput, error,
	) {
		maxResults := input.MaxResults
		if maxResults <= 0 {
			maxResults = cfg.TopK
		}
		minScore := input.MinScore
		if minScore <= 0 {
			minScore = cfg.MinScore
		}

		vector, err := cfg.Embedder.EmbedQuery(ctx, input.Query)
		if err != nil {
			return nil, SearchKnowledgeOutput{}, fmt.Errorf("failed to embed query: %w", err)
		}

		chunks, err := cfg.Store.Query(ctx, vector, maxResults, minScore)
		if err != nil {
			return nil, SearchKnowledgeOutput{}, fmt.Errorf("search failed: %w", err)
		}

		results := make([]SearchResult, 0, len(chunks))
		for _, c := range chunks {
			results = append(results, SearchResult{
				ChunkID:    c.ChunkID,
				SourcePath: c.SourcePath,
				Position:   c.Position,
				Score:      c.Score,
				Text:       c.Text,
			})
		}

		if len(results) == 0 {
			return nil, SearchKnowledgeOutput{
				Results: []SearchResult{},
				Message: "No chunks matched above the score threshold. Try broader terms or a lower min_score.",
			}, nil
		}

		return nil, SearchKnowledgeOutput{Results: results}, nil
	}
}

// makeAnswerHandler creates the answer_question tool handler. It runs the
// same retrieve-then-generate flow as the batch questionnaire pipeline,
// for a single ad-hoc question.
func makeAnswerHandler(cfg *Config) func(
	context.Context, *mcp.CallToolRequest, AnswerQuestionInput,
) (*mcp.CallToolResult, AnswerQuestionOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input AnswerQuestionInput) (
		*mcp.CallToolResult, AnswerQuestionOutput, error,
	) {
		vector, err := cfg.Embedder.EmbedQuery(ctx, input.Question)
		if err != nil {
			return nil, AnswerQuestionOutput{}, fmt.Errorf("failed to embed question: %w", err)
		}

		chunks, err := cfg.Store.Query(ctx, vector, cfg.TopK, cfg.MinScore)
		if err != nil {
			return nil, AnswerQuestionOutput{}, fmt.Errorf("retrieval failed: %w", err)
		}

		q := questionnaire.Question{Text: input.Question, Category: input.Category}
		a, err := cfg.Generator.Generate(ctx, q, chunks)
		if err != nil {
			return nil, AnswerQuestionOutput{}, fmt.Errorf("generation failed: %w", err)
		}

		sources := a.Sources
		if sources == nil {
			sources = []string{}
		}

		return nil, AnswerQuestionOutput{
			Response:      a.Response,
			Confidence:    a.Confidence,
			Sources:       sources,
			ContextChunks: len(chunks),
		}, nil
	}
}

// makeStatusHandler creates the index_status tool handler. Status comes
// from the document manifests plus the collection point count; the chunk
// count excludes the one vectorless manifest point each document carries.
func makeStatusHandler(cfg *Config) func(
	context.Context, *mcp.CallToolRequest, IndexStatusInput,
) (*mcp.CallToolResult, IndexStatusOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input IndexStatusInput) (
		*mcp.CallToolResult, IndexStatusOutput, error,
	) {
		manifests, err := cfg.Store.Manifests(ctx)
		if err != nil {
			return nil, IndexStatusOutput{}, fmt.Errorf("failed to list manifests: %w", err)
		}

		points, err := cfg.Store.Count(ctx)
		if err != nil {
			return nil, IndexStatusOutput{}, fmt.Errorf("failed to count points: %w", err)
		}

		paths := make([]string, 0, len(manifests))
		var lastIndexed time.Time
		for _, m := range manifests {
			paths = append(paths, m.SourcePath)
			if m.IndexedAt.After(lastIndexed) {
				lastIndexed = m.IndexedAt
			}
		}

		chunks := int(points) - len(manifests)
		if chunks < 0 {
			chunks = 0
		}

		out := IndexStatusOutput{
			Documents:   len(manifests),
			Chunks:      chunks,
			SourcePaths: paths,
		}
		if !lastIndexed.IsZero() {
			out.LastIndexed = lastIndexed.Format(time.RFC3339)
		}
		return nil, out, nil
	}
}
