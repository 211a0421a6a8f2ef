package retrieval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/papermind/internal/deadline"
)

// MaxEmbedBatch is the most texts sent in a single provider request.
const MaxEmbedBatch = 100

// ErrEmptyEmbedding is returned by Embed when the provider yields no values.
var ErrEmptyEmbedding = errors.New("provider returned an empty embedding")

// EmbeddingProvider embeds a group of texts in one request. The result is
// aligned with the input; nil entries mark texts the provider could not embed.
type EmbeddingProvider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Embedder splits work into provider-sized requests and bounds each one.
type Embedder struct {
	provider EmbeddingProvider
	timeout  time.Duration
}

// NewEmbedder creates an Embedder. timeout applies to every provider request;
// zero disables it.
func NewEmbedder(p EmbeddingProvider, timeout time.Duration) *Embedder {
	return &Embedder{provider: p, timeout: timeout}
}

// Embed returns the embedding vector for a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.request(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embedding text: %w", err)
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return vecs[0], nil
}

// EmbedBatch returns one entry per text, in input order. Entries are nil
// where the provider returned nothing usable. Returns nil (not error) for
// empty input.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	results := make([][]float32, len(texts))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for start := 0; start < len(texts); start += MaxEmbedBatch {
		end := min(start+MaxEmbedBatch, len(texts))
		g.Go(func() error {
			vecs, err := e.request(gCtx, texts[start:end])
			if err != nil {
				return fmt.Errorf("embedding texts %d-%d: %w", start, end-1, err)
			}
			if len(vecs) != end-start {
				return fmt.Errorf("embedding texts %d-%d: got %d vectors", start, end-1, len(vecs))
			}
			copy(results[start:end], vecs)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (e *Embedder) request(ctx context.Context, texts []string) ([][]float32, error) {
	return deadline.Call(ctx, e.timeout, "embedding", func(ctx context.Context) ([][]float32, error) {
		return e.provider.Embed(ctx, texts)
	})
}
