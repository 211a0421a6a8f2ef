package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/papermind/internal/ingest"
	"github.com/kalambet/papermind/internal/retrieval"
	"github.com/kalambet/papermind/internal/storage"
)

// Upload is a file received for ingestion.
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

// Ingest extracts, chunks, embeds and stores a PDF under a new document id.
// Validation and readiness are checked before any provider is called.
func (s *Service) Ingest(ctx context.Context, up Upload) (storage.Document, error) {
	if len(up.Data) == 0 {
		return storage.Document{}, validation("no file uploaded")
	}
	if !ingest.IsPDF(up.ContentType, up.Data) {
		return storage.Document{}, validation("only PDF files are accepted, got %q", up.ContentType)
	}
	if err := s.Ready(); err != nil {
		return storage.Document{}, err
	}

	start := time.Now()
	doc, err := s.extractor.Extract(up.Data)
	if err != nil {
		if errors.Is(err, ingest.ErrUnreadable) {
			return storage.Document{}, fmt.Errorf("%w: %w", ErrUnreadableContent, err)
		}
		return storage.Document{}, fmt.Errorf("extracting text: %w", err)
	}
	if strings.TrimSpace(doc.Text()) == "" {
		return storage.Document{}, fmt.Errorf("%w: %s", ErrUnreadableContent, "the PDF may be scanned or image-only")
	}

	chunks, err := ingest.ChunkPages(doc.Pages, s.cfg.ChunkSize, s.cfg.ChunkOverlap)
	if err != nil {
		return storage.Document{}, fmt.Errorf("chunking text: %w", err)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vecs, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return storage.Document{}, classify("embedding chunks", err)
	}

	docID := uuid.NewString()
	records := make([]retrieval.Record, 0, len(chunks))
	for i, c := range chunks {
		if len(vecs[i]) == 0 {
			continue
		}
		records = append(records, retrieval.Record{
			ID:     retrieval.RecordID(docID, c.Index),
			Values: vecs[i],
			Metadata: retrieval.Metadata{
				Text:       c.Text,
				Page:       c.Page,
				ChunkIndex: c.Index,
			},
		})
	}
	if skipped := len(chunks) - len(records); skipped > 0 {
		s.logger.Warn("chunks without embeddings skipped", "document_id", docID, "skipped", skipped, "total", len(chunks))
	}
	if len(records) == 0 {
		return storage.Document{}, fmt.Errorf("%w: no chunk could be embedded", ErrProvider)
	}

	if err := s.vectors.Upsert(ctx, docID, records); err != nil {
		return storage.Document{}, classify("storing vectors", err)
	}

	d := storage.Document{
		ID:          docID,
		Name:        up.Name,
		Size:        int64(len(up.Data)),
		ContentType: "application/pdf",
		Pages:       len(doc.Pages),
		Chunks:      len(records),
		ProcessedAt: time.Now().UTC(),
	}
	if s.docs != nil {
		// The vectors are already stored; a registry failure only hides the
		// document from listings.
		if err := s.docs.SaveDocument(ctx, d); err != nil {
			s.logger.Warn("registering document failed", "document_id", docID, "error", err)
		}
	}

	s.logger.Info("document ingested",
		"document_id", docID,
		"name", up.Name,
		"pages", d.Pages,
		"chunks", d.Chunks,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return d, nil
}
