package chain

import (
	"context"
	"fmt"

	"github.com/iamvartikasingh/chat-with-multiple-pdf/internal/domain"
)

// Retriever embeds a standalone question and returns the top-K most
// similar chunks. No caching across requests: each query re-embeds and
// re-queries.
type Retriever struct {
	embedder  domain.Embedder
	index     domain.Index
	namespace string
	k         int
}

// NewRetriever builds a retriever. k defaults to 6.
func NewRetriever(embedder domain.Embedder, index domain.Index, namespace string, k int) *Retriever {
	if k <= 0 {
		k = 6
	}
	return &Retriever{embedder: embedder, index: index, namespace: namespace, k: k}
}

// Retrieve returns chunks ordered by descending relevance. Dependency
// errors propagate unchanged.
func (r *Retriever) Retrieve(ctx context.Context, question string) ([]domain.RetrievedChunk, error) {
	vectors, err := r.embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("expected 1 query vector, got %d: %w", len(vectors), domain.ErrPipeline)
	}
	return r.index.Query(ctx, vectors[0], r.k, r.namespace)
}
