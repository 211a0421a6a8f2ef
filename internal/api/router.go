// Package api exposes the chat pipeline over HTTP and MCP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/kalambet/papermind/internal/history"
	"github.com/kalambet/papermind/internal/pipeline"
	"github.com/kalambet/papermind/internal/storage"
)

// Pipeline is the subset of pipeline.Service the transports use.
type Pipeline interface {
	Ready() error
	Ingest(ctx context.Context, up pipeline.Upload) (storage.Document, error)
	Converse(ctx context.Context, req pipeline.ChatRequest, emit func(string) error) (pipeline.Reply, error)
	Documents(ctx context.Context) ([]storage.Document, error)
	Document(ctx context.Context, id string) (storage.Document, error)
	History(docID string) []history.Entry
	ClearHistory(docID string)
}

// Deps configure the HTTP handler.
type Deps struct {
	Pipeline       Pipeline
	Logger         *slog.Logger
	Version        string
	Production     bool
	AllowedOrigin  string
	MaxUploadBytes int64
	// RateLimit requests per RateWindow per client IP. Zero disables limiting.
	RateLimit  int
	RateWindow time.Duration
}

type handlers struct {
	p          Pipeline
	logger     *slog.Logger
	version    string
	production bool
	maxUpload  int64
}

// NewHandler returns the routed HTTP API.
func NewHandler(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxUpload := deps.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}
	h := &handlers{
		p:          deps.Pipeline,
		logger:     logger,
		version:    deps.Version,
		production: deps.Production,
		maxUpload:  maxUpload,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(rememberPeer)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{deps.AllowedOrigin},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/status", h.handleStatus)
	r.Get("/health", handleHealth)
	r.Get("/ready", h.handleReady)

	r.Route("/api", func(r chi.Router) {
		if deps.RateLimit > 0 {
			r.Use(newIPLimiter(deps.RateLimit, deps.RateWindow).middleware)
		}
		r.Post("/upload", h.handleUpload)
		r.Post("/chat", h.handleChat)
		r.Get("/documents", h.handleListDocuments)
		r.Get("/documents/{id}", h.handleGetDocument)
		r.Get("/chat/{documentId}/history", h.handleGetHistory)
		r.Delete("/chat/{documentId}/history", h.handleClearHistory)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpError(w, http.StatusNotFound, "not_found", "route %s %s not found", r.Method, r.URL.Path)
	})
	return r
}
