package api

import (
	"context"
	"sync"
	"time"

	"github.com/kalambet/papermind/internal/history"
	"github.com/kalambet/papermind/internal/pipeline"
	"github.com/kalambet/papermind/internal/storage"
)

// fakePipeline implements Pipeline with overridable function fields.
type fakePipeline struct {
	mu       sync.Mutex
	readyErr error
	cleared  []string
	entries  map[string][]history.Entry

	ingestFn   func(ctx context.Context, up pipeline.Upload) (storage.Document, error)
	converseFn func(ctx context.Context, req pipeline.ChatRequest, emit func(string) error) (pipeline.Reply, error)
	docs       []storage.Document
}

func (f *fakePipeline) Ready() error { return f.readyErr }

func (f *fakePipeline) Ingest(ctx context.Context, up pipeline.Upload) (storage.Document, error) {
	if f.ingestFn != nil {
		return f.ingestFn(ctx, up)
	}
	return storage.Document{ID: "doc-1", Name: up.Name, Size: int64(len(up.Data)), Pages: 1, Chunks: 1}, nil
}

func (f *fakePipeline) Converse(ctx context.Context, req pipeline.ChatRequest, emit func(string) error) (pipeline.Reply, error) {
	if f.converseFn != nil {
		return f.converseFn(ctx, req, emit)
	}
	for _, frag := range []string{"The capital ", "is Paris."} {
		if emit != nil {
			if err := emit(frag); err != nil {
				return pipeline.Reply{}, err
			}
		}
	}
	return pipeline.Reply{
		ID:         "msg-1",
		DocumentID: req.DocumentID,
		Role:       "general",
		Text:       "The capital is Paris.",
		Sources: []pipeline.Source{
			{DocumentID: req.DocumentID, Page: 1, ChunkIndex: 0, Excerpt: "The capital of France is Paris.", Confidence: 0.91},
		},
		ContextLength: 31,
		CreatedAt:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}, nil
}

func (f *fakePipeline) Documents(ctx context.Context) ([]storage.Document, error) {
	if f.docs == nil {
		return []storage.Document{}, nil
	}
	return f.docs, nil
}

func (f *fakePipeline) Document(ctx context.Context, id string) (storage.Document, error) {
	for _, d := range f.docs {
		if d.ID == id {
			return d, nil
		}
	}
	return storage.Document{}, pipeline.ErrNotFound
}

func (f *fakePipeline) History(docID string) []history.Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entries[docID]
}

func (f *fakePipeline) ClearHistory(docID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, docID)
	delete(f.entries, docID)
}
