// Package gemini adapts the Gemini API SDK to the embedding and chat
// contracts used by the rest of papermind.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"google.golang.org/genai"
)

// ErrNotConfigured is returned by every call when no API key was supplied.
var ErrNotConfigured = errors.New("gemini API key not configured")

// Generation defaults.
const (
	DefaultTemperature = 0.7
	DefaultTopK        = 1
	DefaultTopP        = 1
)

var safetySettings = []*genai.SafetySetting{
	{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
	{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
	{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
	{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
}

// Options configures a Client.
type Options struct {
	APIKey     string
	ChatModel  string
	EmbedModel string
}

// Turn is one prior message passed to the chat model.
type Turn struct {
	// Role is "user" or "model".
	Role string
	Text string
}

// Client talks to the Gemini API. A Client built without an API key is
// valid; its methods fail with ErrNotConfigured.
type Client struct {
	api        *genai.Client
	chatModel  string
	embedModel string
}

// New creates a Client. No network call is made.
func New(ctx context.Context, opts Options) (*Client, error) {
	c := &Client{chatModel: opts.ChatModel, embedModel: opts.EmbedModel}
	if opts.APIKey == "" {
		return c, nil
	}
	api, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	c.api = api
	return c, nil
}

// Configured reports whether the client has credentials.
func (c *Client) Configured() bool {
	return c.api != nil
}

// Embed embeds texts in one request. The result is aligned with texts; an
// entry is nil when the API returned no values for that text.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if c.api == nil {
		return nil, ErrNotConfigured
	}
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	resp, err := c.api.Models.EmbedContent(ctx, c.embedModel, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embed content: got %d embeddings for %d texts", len(resp.Embeddings), len(texts))
	}

	out := make([][]float32, len(texts))
	for i, e := range resp.Embeddings {
		if e != nil && len(e.Values) > 0 {
			out[i] = e.Values
		}
	}
	return out, nil
}

// StreamChat sends history followed by message and yields text fragments as
// the model produces them. The sequence stops at the first error.
func (c *Client) StreamChat(ctx context.Context, system string, history []Turn, message string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if c.api == nil {
			yield("", ErrNotConfigured)
			return
		}

		contents := make([]*genai.Content, 0, len(history)+1)
		for _, h := range history {
			contents = append(contents, genai.NewContentFromText(h.Text, genai.Role(h.Role)))
		}
		contents = append(contents, genai.NewContentFromText(message, genai.RoleUser))

		for resp, err := range c.api.Models.GenerateContentStream(ctx, c.chatModel, contents, generateConfig(system)) {
			if err != nil {
				yield("", fmt.Errorf("generate content: %w", err))
				return
			}
			text := resp.Text()
			if text == "" {
				continue
			}
			if !yield(text, nil) {
				return
			}
		}
	}
}

func generateConfig(system string) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature:    genai.Ptr[float32](DefaultTemperature),
		TopK:           genai.Ptr[float32](DefaultTopK),
		TopP:           genai.Ptr[float32](DefaultTopP),
		SafetySettings: safetySettings,
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	return cfg
}
