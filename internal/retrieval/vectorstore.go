package retrieval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kalambet/papermind/internal/deadline"
)

// UpsertBatchSize is the number of records sent per upsert request.
const UpsertBatchSize = 100

var (
	// ErrNotConfigured is returned by Init when credentials or the index name are missing.
	ErrNotConfigured = errors.New("vector store not configured")
	// ErrNotInitialized is returned when a store is used before Init succeeded.
	ErrNotInitialized = errors.New("vector store not initialized")
)

// VectorStore holds chunk vectors partitioned by namespace, one namespace per
// document. A query in one namespace never sees records from another.
type VectorStore interface {
	// Init prepares the store. It is idempotent once it has succeeded and may
	// be retried after a failure.
	Init(ctx context.Context) error

	// Upsert writes records in sequential batches of UpsertBatchSize. The first
	// failing batch aborts the remaining ones.
	Upsert(ctx context.Context, namespace string, records []Record) error

	// Query returns up to topK records ordered by similarity, best first.
	// An empty or unknown namespace yields no matches and no error.
	Query(ctx context.Context, namespace string, vector []float32, topK int) ([]Match, error)

	Close() error
}

// Metadata is stored alongside each vector.
type Metadata struct {
	Text       string
	Page       int
	ChunkIndex int
}

// Record is one chunk vector.
type Record struct {
	ID       string
	Values   []float32
	Metadata Metadata
}

// Match is a query hit.
type Match struct {
	ID       string
	Metadata Metadata
	Score    float32
}

// RecordID names the vector of a document's index-th chunk.
func RecordID(docID string, index int) string {
	return fmt.Sprintf("%s-chunk-%d", docID, index)
}

func forEachBatch(records []Record, size int, fn func(batch []Record) error) error {
	for start := 0; start < len(records); start += size {
		end := min(start+size, len(records))
		if err := fn(records[start:end]); err != nil {
			return fmt.Errorf("batch %d-%d: %w", start, end-1, err)
		}
	}
	return nil
}

// timeoutStore bounds every call of the wrapped store.
type timeoutStore struct {
	VectorStore
	d time.Duration
}

// WithTimeout wraps s so Init, Upsert and Query each run under their own
// deadline of d. An expired deadline is reported as deadline.ErrTimeout.
func WithTimeout(s VectorStore, d time.Duration) VectorStore {
	if d <= 0 {
		return s
	}
	return &timeoutStore{VectorStore: s, d: d}
}

func (t *timeoutStore) Init(ctx context.Context) error {
	_, err := deadline.Call(ctx, t.d, "vector store init", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, t.VectorStore.Init(ctx)
	})
	return err
}

func (t *timeoutStore) Upsert(ctx context.Context, namespace string, records []Record) error {
	_, err := deadline.Call(ctx, t.d, "vector upsert", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, t.VectorStore.Upsert(ctx, namespace, records)
	})
	return err
}

func (t *timeoutStore) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]Match, error) {
	return deadline.Call(ctx, t.d, "vector query", func(ctx context.Context) ([]Match, error) {
		return t.VectorStore.Query(ctx, namespace, vector, topK)
	})
}
