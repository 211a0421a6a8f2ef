// Package pipeline runs the document chat workflow: ingesting PDFs into a
// vector store and answering questions about them with streamed completions.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kalambet/papermind/internal/composer"
	"github.com/kalambet/papermind/internal/history"
	"github.com/kalambet/papermind/internal/ingest"
	"github.com/kalambet/papermind/internal/retrieval"
	"github.com/kalambet/papermind/internal/storage"
)

// Extractor turns PDF bytes into page text.
type Extractor interface {
	Extract(data []byte) (ingest.Document, error)
}

// Completer streams an answer for a question over retrieved context.
type Completer interface {
	Complete(ctx context.Context, message, docContext string, hist []history.Entry, role composer.Role) iter.Seq2[string, error]
}

// DocumentStore records ingested documents.
type DocumentStore interface {
	SaveDocument(ctx context.Context, d storage.Document) error
	GetDocument(ctx context.Context, id string) (storage.Document, error)
	ListDocuments(ctx context.Context, limit int) ([]storage.Document, error)
}

// Deps are the collaborators a Service is built from. Documents may be nil.
type Deps struct {
	Extractor Extractor
	Embedder  *retrieval.Embedder
	Vectors   retrieval.VectorStore
	Completer Completer
	History   *history.Cache
	Documents DocumentStore
	Logger    *slog.Logger
}

// Config tunes chunking, retrieval and the completion deadline.
type Config struct {
	ChunkSize         int
	ChunkOverlap      int
	TopK              int
	CompletionTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.ChunkSize <= 0 {
		c.ChunkSize = ingest.DefaultChunkSize
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		c.ChunkOverlap = min(ingest.DefaultChunkOverlap, c.ChunkSize/2)
	}
	if c.TopK <= 0 {
		c.TopK = 5
	}
	return c
}

// Service is the chat orchestrator. It accepts work only after Init succeeded.
type Service struct {
	extractor Extractor
	embedder  *retrieval.Embedder
	vectors   retrieval.VectorStore
	retriever *retrieval.Retriever
	completer Completer
	history   *history.Cache
	docs      DocumentStore
	cfg       Config
	logger    *slog.Logger

	ready   atomic.Bool
	mu      sync.Mutex
	initErr error
}

// New wires a Service. It does not contact any provider; call Init.
func New(d Deps, cfg Config) *Service {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := d.History
	if h == nil {
		h = history.New(history.DefaultMaxPairs)
	}
	return &Service{
		extractor: d.Extractor,
		embedder:  d.Embedder,
		vectors:   d.Vectors,
		retriever: retrieval.NewRetriever(d.Embedder, d.Vectors),
		completer: d.Completer,
		history:   h,
		docs:      d.Documents,
		cfg:       cfg.withDefaults(),
		logger:    logger,
	}
}

// Init prepares the vector store and opens the readiness gate.
func (s *Service) Init(ctx context.Context) error {
	if s.ready.Load() {
		return nil
	}
	if err := s.vectors.Init(ctx); err != nil {
		err = classify("initializing vector store", err)
		s.mu.Lock()
		s.initErr = err
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.initErr = nil
	s.mu.Unlock()
	s.ready.Store(true)
	s.logger.Info("pipeline ready")
	return nil
}

// Start calls Init until it succeeds, ctx ends, or the failure is one that
// retrying cannot fix (missing configuration). Waits double from interval up
// to one minute.
func (s *Service) Start(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second
	}
	for {
		err := s.Init(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, retrieval.ErrNotConfigured) {
			s.logger.Error("pipeline not configured; serving 503 until restarted", "error", err)
			return err
		}
		s.logger.Warn("pipeline init failed, retrying", "error", err, "in", interval)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
		interval = min(2*interval, time.Minute)
	}
}

// Ready returns nil once Init has succeeded and ErrServiceUnavailable before.
func (s *Service) Ready() error {
	if s.ready.Load() {
		return nil
	}
	s.mu.Lock()
	cause := s.initErr
	s.mu.Unlock()
	if cause != nil {
		if errors.Is(cause, ErrServiceUnavailable) {
			return cause
		}
		return fmt.Errorf("%w: %w", ErrServiceUnavailable, cause)
	}
	return fmt.Errorf("%w: initialization has not completed", ErrServiceUnavailable)
}

// Shutdown closes the gate and releases the vector store.
func (s *Service) Shutdown(ctx context.Context) error {
	s.ready.Store(false)
	return s.vectors.Close()
}

// History returns the stored turns for a document.
func (s *Service) History(docID string) []history.Entry {
	return s.history.Get(docID)
}

// ClearHistory forgets the conversation about a document.
func (s *Service) ClearHistory(docID string) {
	s.history.Clear(docID)
}

// Documents lists ingested documents, newest first.
func (s *Service) Documents(ctx context.Context) ([]storage.Document, error) {
	if s.docs == nil {
		return []storage.Document{}, nil
	}
	return s.docs.ListDocuments(ctx, 100)
}

// Document returns one ingested document or ErrNotFound.
func (s *Service) Document(ctx context.Context, id string) (storage.Document, error) {
	if s.docs == nil {
		return storage.Document{}, ErrNotFound
	}
	d, err := s.docs.GetDocument(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.Document{}, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	return d, err
}
