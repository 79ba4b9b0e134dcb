// Package retriever turns a question into ranked knowledge context.
package retriever

import (
	"context"
	"fmt"

	"github.com/qvidal/aor/internal/storage"
)

// Embedder is the single-text embedding capability retrieval needs.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Retriever embeds a question and queries the vector index with the
// configured top-k and similarity threshold. Failures propagate as-is:
// degrading to an empty context on a transient error would make the
// generator hallucinate unsourced answers.
type Retriever struct {
	embedder Embedder
	index    storage.VectorIndex
	topK     int
	minScore float64
}

func New(embedder Embedder, index storage.VectorIndex, topK int, minScore float64) *Retriever {
	return &Retriever{
		embedder: embedder,
		index:    index,
		topK:     topK,
		minScore: minScore,
	}
}

// Retrieve returns the ranked, threshold-filtered context for a question.
// An empty result means the knowledge base holds nothing relevant enough,
// which is a valid outcome, not an error.
func (r *Retriever) Retrieve(ctx context.Context, question string) ([]storage.ScoredChunk, error) {
	vector, err := r.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	chunks, err := r.index.Query(ctx, vector, r.topK, r.minScore)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	return chunks, nil
}
