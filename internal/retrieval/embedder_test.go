package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kalambet/papermind/internal/deadline"
)

// mockProvider implements EmbeddingProvider for testing.
type mockProvider struct {
	embedFn func(ctx context.Context, texts []string) ([][]float32, error)
}

func (m *mockProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return m.embedFn(ctx, texts)
}

func makeVector(dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = float32(i) * 0.001
	}
	return v
}

// constProvider embeds every text as a vector of the given dimension.
func constProvider(dim int) *mockProvider {
	return &mockProvider{embedFn: func(_ context.Context, texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i := range texts {
			out[i] = makeVector(dim)
		}
		return out, nil
	}}
}

func TestEmbed_ReturnsDimension(t *testing.T) {
	e := NewEmbedder(constProvider(768), 0)

	vec, err := e.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 768 {
		t.Errorf("got %d dimensions, want 768", len(vec))
	}
}

func TestEmbed_ProviderError(t *testing.T) {
	sentinel := errors.New("connection refused")
	e := NewEmbedder(&mockProvider{embedFn: func(context.Context, []string) ([][]float32, error) {
		return nil, sentinel
	}}, 0)

	_, err := e.Embed(context.Background(), "hello")
	if !errors.Is(err, sentinel) {
		t.Fatalf("err = %v, want wrapped provider error", err)
	}
}

func TestEmbed_EmptyVector(t *testing.T) {
	e := NewEmbedder(&mockProvider{embedFn: func(_ context.Context, texts []string) ([][]float32, error) {
		return make([][]float32, len(texts)), nil
	}}, 0)

	if _, err := e.Embed(context.Background(), "hello"); !errors.Is(err, ErrEmptyEmbedding) {
		t.Fatalf("err = %v, want ErrEmptyEmbedding", err)
	}
}

func TestEmbed_Timeout(t *testing.T) {
	e := NewEmbedder(&mockProvider{embedFn: func(ctx context.Context, _ []string) ([][]float32, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}, 10*time.Millisecond)

	if _, err := e.Embed(context.Background(), "hello"); !errors.Is(err, deadline.ErrTimeout) {
		t.Fatalf("err = %v, want deadline.ErrTimeout", err)
	}
}

func TestEmbedBatch_SplitsAndKeepsOrder(t *testing.T) {
	var (
		mu    sync.Mutex
		sizes []int
	)
	p := &mockProvider{embedFn: func(_ context.Context, texts []string) ([][]float32, error) {
		mu.Lock()
		sizes = append(sizes, len(texts))
		mu.Unlock()
		out := make([][]float32, len(texts))
		for i, text := range texts {
			var n int
			fmt.Sscanf(text, "t%d", &n)
			out[i] = []float32{float32(n)}
		}
		return out, nil
	}}
	e := NewEmbedder(p, 0)

	texts := make([]string, 250)
	for i := range texts {
		texts[i] = fmt.Sprintf("t%d", i)
	}

	vecs, err := e.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(vecs) != 250 {
		t.Fatalf("got %d vectors, want 250", len(vecs))
	}
	for i, v := range vecs {
		if len(v) != 1 || v[0] != float32(i) {
			t.Fatalf("vector %d = %v, want [%d]", i, v, i)
		}
	}

	if len(sizes) != 3 {
		t.Fatalf("got %d provider requests, want 3", len(sizes))
	}
	total := 0
	for _, s := range sizes {
		if s > MaxEmbedBatch {
			t.Errorf("request of %d texts exceeds MaxEmbedBatch", s)
		}
		total += s
	}
	if total != 250 {
		t.Errorf("provider saw %d texts, want 250", total)
	}
}

func TestEmbedBatch_KeepsNilForEmpty(t *testing.T) {
	p := &mockProvider{embedFn: func(_ context.Context, texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i := range texts {
			if i%2 == 0 {
				out[i] = makeVector(4)
			}
		}
		return out, nil
	}}
	e := NewEmbedder(p, 0)

	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(vecs) != 3 || vecs[0] == nil || vecs[1] != nil || vecs[2] == nil {
		t.Errorf("unexpected vectors: %v", vecs)
	}
}

func TestEmbedBatch_EmptyInput(t *testing.T) {
	e := NewEmbedder(&mockProvider{embedFn: func(context.Context, []string) ([][]float32, error) {
		t.Fatal("provider should not be called for empty input")
		return nil, nil
	}}, 0)

	vecs, err := e.EmbedBatch(context.Background(), nil)
	if err != nil || vecs != nil {
		t.Errorf("got (%v, %v), want (nil, nil)", vecs, err)
	}
}

func TestEmbedBatch_PartialFailure(t *testing.T) {
	p := &mockProvider{embedFn: func(_ context.Context, texts []string) ([][]float32, error) {
		if texts[0] == "t100" {
			return nil, errors.New("quota")
		}
		out := make([][]float32, len(texts))
		for i := range texts {
			out[i] = makeVector(4)
		}
		return out, nil
	}}
	e := NewEmbedder(p, 0)

	texts := make([]string, 150)
	for i := range texts {
		texts[i] = fmt.Sprintf("t%d", i)
	}
	if _, err := e.EmbedBatch(context.Background(), texts); err == nil {
		t.Fatal("expected error when one request fails")
	}
}
