package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// timeLayout sorts lexically in UTC.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SaveDocument records an ingested document.
func (s *Store) SaveDocument(ctx context.Context, d Document) error {
	contentType := d.ContentType
	if contentType == "" {
		contentType = "application/pdf"
	}
	processedAt := d.ProcessedAt
	if processedAt.IsZero() {
		processedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, name, size, content_type, pages, chunks, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Name, d.Size, contentType, d.Pages, d.Chunks, processedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("saving document %s: %w", d.ID, err)
	}
	return nil
}

// GetDocument returns the document with id, or ErrNotFound.
func (s *Store) GetDocument(ctx context.Context, id string) (Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, size, content_type, pages, chunks, processed_at
		FROM documents WHERE id = ?`, id)
	d, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("getting document %s: %w", id, err)
	}
	return d, nil
}

// ListDocuments returns up to limit documents, newest first.
func (s *Store) ListDocuments(ctx context.Context, limit int) ([]Document, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, size, content_type, pages, chunks, processed_at
		FROM documents ORDER BY processed_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(sc scanner) (Document, error) {
	var (
		d           Document
		processedAt string
	)
	if err := sc.Scan(&d.ID, &d.Name, &d.Size, &d.ContentType, &d.Pages, &d.Chunks, &processedAt); err != nil {
		return Document{}, err
	}
	t, err := time.Parse(timeLayout, processedAt)
	if err != nil {
		return Document{}, fmt.Errorf("parsing processed_at for %s: %w", d.ID, err)
	}
	d.ProcessedAt = t
	return d, nil
}
