package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/papermind/internal/composer"
	"github.com/kalambet/papermind/internal/deadline"
	"github.com/kalambet/papermind/internal/history"
	"github.com/kalambet/papermind/internal/retrieval"
)

const excerptRunes = 150

// ChatRequest is one question about a document.
type ChatRequest struct {
	DocumentID string
	Message    string
	UserType   string
}

// Source is a retrieved chunk that grounded an answer.
type Source struct {
	DocumentID string  `json:"documentId"`
	Page       int     `json:"page"`
	ChunkIndex int     `json:"chunkIndex"`
	Excerpt    string  `json:"excerpt"`
	Confidence float32 `json:"confidence"`
}

// Reply is a finished answer.
type Reply struct {
	ID            string
	DocumentID    string
	Role          composer.Role
	Text          string
	Sources       []Source
	ContextLength int
	CreatedAt     time.Time
}

// Converse answers req.Message from the document's stored chunks. Each
// fragment is passed to emit as it arrives; a non-nil error from emit stops
// the stream. Nothing is emitted when Converse fails before the model starts
// answering, so callers can still report a clean error.
func (s *Service) Converse(ctx context.Context, req ChatRequest, emit func(fragment string) error) (Reply, error) {
	message := strings.TrimSpace(req.Message)
	docID := strings.TrimSpace(req.DocumentID)
	if message == "" || docID == "" {
		return Reply{}, validation("message and documentId are required")
	}
	role := composer.ParseRole(req.UserType)

	if err := s.Ready(); err != nil {
		return Reply{}, err
	}

	matches, err := s.retriever.Retrieve(ctx, docID, message, s.cfg.TopK)
	if err != nil {
		return Reply{}, classify("retrieving context", err)
	}
	docContext := retrieval.BuildContext(matches)
	if docContext == "" {
		return Reply{}, fmt.Errorf("document %s: %w", docID, ErrNoRelevantContent)
	}

	prior := s.history.Get(docID)
	s.history.Append(docID, history.Entry{Role: history.RoleUser, Content: message})

	text, err := s.stream(ctx, message, docContext, prior, role, emit)
	if err != nil {
		return Reply{}, err
	}
	if strings.TrimSpace(text) == "" {
		return Reply{}, fmt.Errorf("%w: model returned an empty answer", ErrProvider)
	}
	s.history.Append(docID, history.Entry{Role: history.RoleModel, Content: text})

	s.logger.Debug("answer complete",
		"document_id", docID,
		"role", role,
		"matches", len(matches),
		"context_tokens_est", composer.EstimateTokens(docContext),
		"answer_chars", len(text),
	)

	return Reply{
		ID:            uuid.NewString(),
		DocumentID:    docID,
		Role:          role,
		Text:          text,
		Sources:       sourcesFrom(docID, matches),
		ContextLength: len(docContext),
		CreatedAt:     time.Now().UTC(),
	}, nil
}

func (s *Service) stream(ctx context.Context, message, docContext string, prior []history.Entry, role composer.Role, emit func(string) error) (string, error) {
	cctx, cancel := ctx, context.CancelFunc(func() {})
	if d := s.cfg.CompletionTimeout; d > 0 {
		cctx, cancel = context.WithTimeout(ctx, d)
	}
	defer cancel()

	var sb strings.Builder
	for frag, err := range s.completer.Complete(cctx, message, docContext, prior, role) {
		if err != nil {
			return "", classify("completion", deadline.Check(cctx, ctx, "completion", s.cfg.CompletionTimeout, err))
		}
		sb.WriteString(frag)
		if emit != nil {
			if err := emit(frag); err != nil {
				return "", fmt.Errorf("sending fragment: %w", err)
			}
		}
	}
	return sb.String(), nil
}

func sourcesFrom(docID string, matches []retrieval.Match) []Source {
	sources := make([]Source, 0, len(matches))
	for _, m := range matches {
		text := strings.TrimSpace(m.Metadata.Text)
		if text == "" {
			continue
		}
		sources = append(sources, Source{
			DocumentID: docID,
			Page:       m.Metadata.Page,
			ChunkIndex: m.Metadata.ChunkIndex,
			Excerpt:    excerpt(text, excerptRunes),
			Confidence: m.Score,
		})
	}
	return sources
}

func excerpt(text string, n int) string {
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n]) + "..."
}
