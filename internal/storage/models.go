package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Document is a successfully ingested PDF.
type Document struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"contentType"`
	Pages       int       `json:"pages"`
	Chunks      int       `json:"chunks"`
	ProcessedAt time.Time `json:"processedAt"`
}
