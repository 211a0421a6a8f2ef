// Package completion turns retrieved context, history and a question into a
// streamed answer from the chat model.
package completion

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/kalambet/papermind/internal/composer"
	"github.com/kalambet/papermind/internal/gemini"
	"github.com/kalambet/papermind/internal/history"
)

var (
	// ErrUnavailable means the chat model has no credentials.
	ErrUnavailable = errors.New("completion service unavailable")
	// ErrCompletion wraps any other failure reported by the chat model.
	ErrCompletion = errors.New("completion failed")
)

// ChatStreamer is the chat side of the model client.
type ChatStreamer interface {
	StreamChat(ctx context.Context, system string, history []gemini.Turn, message string) iter.Seq2[string, error]
}

// Client composes prompts and streams completions.
type Client struct {
	streamer ChatStreamer
	composer *composer.Composer
}

// New creates a Client. A nil composer selects the default persona.
func New(s ChatStreamer, c *composer.Composer) *Client {
	if c == nil {
		c = composer.New("")
	}
	return &Client{streamer: s, composer: c}
}

// Complete returns the answer as a lazy sequence of fragments. Prior turns
// are sent as conversation history; the current question travels inside the
// composed prompt. The sequence ends after the first error.
func (c *Client) Complete(ctx context.Context, message, docContext string, hist []history.Entry, role composer.Role) iter.Seq2[string, error] {
	prompt := c.composer.Compose(message, docContext, role)

	turns := make([]gemini.Turn, 0, len(hist))
	for _, h := range hist {
		turns = append(turns, gemini.Turn{Role: string(h.Role), Text: h.Content})
	}

	return func(yield func(string, error) bool) {
		for frag, err := range c.streamer.StreamChat(ctx, prompt.System, turns, prompt.User) {
			if err != nil {
				if errors.Is(err, gemini.ErrNotConfigured) {
					yield("", fmt.Errorf("%w: %w", ErrUnavailable, err))
				} else {
					yield("", fmt.Errorf("%w: %w", ErrCompletion, err))
				}
				return
			}
			if !yield(frag, nil) {
				return
			}
		}
	}
}
