package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrUnreadable is returned when a file cannot be parsed as a PDF.
var ErrUnreadable = errors.New("unreadable PDF")

// Page is the plain text of one PDF page.
type Page struct {
	Number int
	Text   string
}

// Document is the extracted text of a PDF, page by page.
type Document struct {
	Pages []Page
}

// Text joins all pages with newlines.
func (d Document) Text() string {
	parts := make([]string, len(d.Pages))
	for i, p := range d.Pages {
		parts[i] = p.Text
	}
	return strings.Join(parts, "\n")
}

// Extractor pulls plain text out of PDF bytes.
type Extractor struct{}

// Extract parses data and returns the text of every non-empty page object.
// The parser panics on some malformed inputs; those are reported as ErrUnreadable.
func (Extractor) Extract(data []byte) (doc Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc = Document{}
			err = fmt.Errorf("%w: parser panic: %v", ErrUnreadable, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Document{}, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}

	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return Document{}, fmt.Errorf("%w: page %d: %w", ErrUnreadable, i, err)
		}
		doc.Pages = append(doc.Pages, Page{Number: i, Text: text})
	}
	return doc, nil
}

var pdfMediaTypes = map[string]bool{
	"application/pdf":     true,
	"application/x-pdf":   true,
	"application/acrobat": true,
}

// IsPDF reports whether an upload looks like a PDF. Generic binary uploads
// are accepted only when the bytes carry the PDF signature.
func IsPDF(contentType string, data []byte) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(contentType))
	}
	if pdfMediaTypes[mt] {
		return true
	}
	if mt == "application/octet-stream" || mt == "" {
		return bytes.HasPrefix(data, []byte("%PDF-"))
	}
	return false
}
