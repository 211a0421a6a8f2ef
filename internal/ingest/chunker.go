package ingest

import (
	"fmt"
	"strings"
)

const (
	DefaultChunkSize    = 1500
	DefaultChunkOverlap = 200
)

// Chunk is one window of a document's extracted text.
type Chunk struct {
	Index int
	Text  string
	// Page is the 1-based page on which the chunk starts.
	Page int
}

// ChunkText splits text into fixed windows of size runes, each starting
// size-overlap runes after the previous one. The last window ends at the end
// of the text. Empty text yields no chunks.
func ChunkText(text string, size, overlap int) ([]string, error) {
	spans, err := windows(len([]rune(text)), size, overlap)
	if err != nil {
		return nil, err
	}
	runes := []rune(text)
	out := make([]string, len(spans))
	for i, s := range spans {
		out[i] = string(runes[s.start:s.end])
	}
	return out, nil
}

// ChunkPages chunks the concatenated page text (pages joined by a newline)
// and attributes each chunk to the page its first rune belongs to.
func ChunkPages(pages []Page, size, overlap int) ([]Chunk, error) {
	var (
		sb     strings.Builder
		starts = make([]int, len(pages))
		pos    int
	)
	for i, p := range pages {
		if i > 0 {
			sb.WriteByte('\n')
			pos++
		}
		starts[i] = pos
		sb.WriteString(p.Text)
		pos += len([]rune(p.Text))
	}

	runes := []rune(sb.String())
	spans, err := windows(len(runes), size, overlap)
	if err != nil {
		return nil, err
	}

	chunks := make([]Chunk, len(spans))
	pi := 0
	for i, s := range spans {
		for pi+1 < len(starts) && starts[pi+1] <= s.start {
			pi++
		}
		page := 1
		if len(pages) > 0 {
			page = pages[pi].Number
		}
		chunks[i] = Chunk{Index: i, Text: string(runes[s.start:s.end]), Page: page}
	}
	return chunks, nil
}

type span struct{ start, end int }

func windows(n, size, overlap int) ([]span, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap %d must be in [0, %d)", overlap, size)
	}
	if n == 0 {
		return nil, nil
	}

	step := size - overlap
	var out []span
	for off := 0; ; off += step {
		end := min(off+size, n)
		out = append(out, span{start: off, end: end})
		if end == n {
			return out, nil
		}
	}
}
