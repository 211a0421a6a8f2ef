//go:build integration

package gemini

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"
)

func liveClient(t *testing.T) *Client {
	t.Helper()
	key := os.Getenv("GEMINI_API_KEY")
	if key == "" {
		t.Skip("GEMINI_API_KEY not set")
	}
	c, err := New(context.Background(), Options{
		APIKey:     key,
		ChatModel:  "gemini-2.5-flash",
		EmbedModel: "text-embedding-004",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestLiveEmbed(t *testing.T) {
	c := liveClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	vecs, err := c.Embed(ctx, []string{"hello", "world"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vecs) != 2 || len(vecs[0]) == 0 || len(vecs[0]) != len(vecs[1]) {
		t.Fatalf("unexpected embedding shapes")
	}
}

func TestLiveStreamChat(t *testing.T) {
	c := liveClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	var sb strings.Builder
	for frag, err := range c.StreamChat(ctx, "Answer in one word.", nil, "What is the capital of France?") {
		if err != nil {
			t.Fatalf("StreamChat: %v", err)
		}
		sb.WriteString(frag)
	}
	if !strings.Contains(sb.String(), "Paris") {
		t.Errorf("answer %q does not mention Paris", sb.String())
	}
}
