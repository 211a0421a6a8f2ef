package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/kalambet/papermind/internal/completion"
	"github.com/kalambet/papermind/internal/composer"
	"github.com/kalambet/papermind/internal/config"
	"github.com/kalambet/papermind/internal/gemini"
	"github.com/kalambet/papermind/internal/history"
	"github.com/kalambet/papermind/internal/ingest"
	"github.com/kalambet/papermind/internal/pipeline"
	"github.com/kalambet/papermind/internal/retrieval"
	"github.com/kalambet/papermind/internal/storage"
)

func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// app is the wired pipeline plus the resources it owns.
type app struct {
	svc   *pipeline.Service
	store *storage.Store
}

func (a *app) Close(ctx context.Context) error {
	if err := a.svc.Shutdown(ctx); err != nil {
		slog.Warn("closing vector store", "error", err)
	}
	return a.store.Close()
}

// buildApp wires storage, the Gemini client, the configured vector store and
// the pipeline. Nothing here talks to a provider; readiness comes from
// Service.Start.
func buildApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}
	if v, err := store.SchemaVersion(ctx); err == nil {
		logger.Info("storage ready", "data_dir", cfg.Storage.DataDir, "schema_version", v)
	}

	gem, err := gemini.New(ctx, gemini.Options{
		APIKey:     cfg.Gemini.APIKey,
		ChatModel:  cfg.Gemini.ChatModel,
		EmbedModel: cfg.Gemini.EmbedModel,
	})
	if err != nil {
		store.Close()
		return nil, err
	}
	if !gem.Configured() {
		logger.Warn("GEMINI_API_KEY is not set; uploads and chat will answer 503")
	}

	var vectors retrieval.VectorStore
	switch cfg.VectorStore.Backend {
	case config.BackendSQLite:
		vectors = retrieval.NewSQLiteStore(store.DB())
	default:
		vectors = retrieval.NewPineconeStore(cfg.VectorStore.PineconeAPIKey, cfg.VectorStore.PineconeIndex)
	}
	vectors = retrieval.WithTimeout(vectors, cfg.VectorStore.Timeout)
	logger.Info("vector store selected", "backend", cfg.VectorStore.Backend)

	svc := pipeline.New(pipeline.Deps{
		Extractor: ingest.Extractor{},
		Embedder:  retrieval.NewEmbedder(gem, cfg.Gemini.EmbedTimeout),
		Vectors:   vectors,
		Completer: completion.New(gem, composer.New("")),
		History:   history.New(cfg.History.MaxPairs),
		Documents: store,
		Logger:    logger,
	}, pipeline.Config{
		ChunkSize:         cfg.Retrieval.ChunkSize,
		ChunkOverlap:      cfg.Retrieval.ChunkOverlap,
		TopK:              cfg.Retrieval.TopK,
		CompletionTimeout: cfg.Gemini.CompletionTimeout,
	})
	return &app{svc: svc, store: store}, nil
}
