package retrieval

import (
	"context"
	"strings"
)

// Retriever combines embedding and vector search to find relevant context.
type Retriever struct {
	embedder *Embedder
	store    VectorStore
}

// NewRetriever creates a Retriever backed by the given Embedder and VectorStore.
func NewRetriever(embedder *Embedder, store VectorStore) *Retriever {
	return &Retriever{embedder: embedder, store: store}
}

// Retrieve embeds the query and returns the top-K matches within namespace.
func (r *Retriever) Retrieve(ctx context.Context, namespace, query string, topK int) ([]Match, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return r.store.Query(ctx, namespace, vec, topK)
}

// BuildContext joins the non-blank chunk texts of matches, best first,
// separated by blank lines.
func BuildContext(matches []Match) string {
	parts := make([]string, 0, len(matches))
	for _, m := range matches {
		if t := strings.TrimSpace(m.Metadata.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n")
}
