package api

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kalambet/papermind/internal/ingest"
	"github.com/kalambet/papermind/internal/ingest/ingesttest"
	"github.com/kalambet/papermind/internal/pipeline"
	"github.com/kalambet/papermind/internal/storage"
)

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func TestMCPTool_UploadPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "france.pdf")
	if err := os.WriteFile(path, ingesttest.PDF("The capital of France is Paris."), 0o600); err != nil {
		t.Fatal(err)
	}

	var got pipeline.Upload
	p := &fakePipeline{ingestFn: func(_ context.Context, up pipeline.Upload) (storage.Document, error) {
		got = up
		return storage.Document{ID: "doc-7", Name: up.Name}, nil
	}}
	handler := mcpUploadPDF(MCPDeps{Pipeline: p, MaxUploadBytes: 1 << 20})

	result, err := handler(context.Background(), makeCallToolRequest("upload_pdf", map[string]any{"path": path}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}

	var doc storage.Document
	if err := json.Unmarshal([]byte(toolText(t, result)), &doc); err != nil {
		t.Fatalf("parsing result: %v", err)
	}
	if doc.ID != "doc-7" {
		t.Errorf("doc id = %q", doc.ID)
	}
	if got.Name != "france.pdf" || got.ContentType != "" || len(got.Data) == 0 {
		t.Errorf("upload = name %q type %q len %d", got.Name, got.ContentType, len(got.Data))
	}
}

func TestMCPTool_UploadPDF_Errors(t *testing.T) {
	dir := t.TempDir()
	big := filepath.Join(dir, "big.pdf")
	os.WriteFile(big, make([]byte, 2048), 0o600)

	handler := mcpUploadPDF(MCPDeps{Pipeline: &fakePipeline{}, MaxUploadBytes: 1024})
	for name, args := range map[string]map[string]any{
		"missing path": {},
		"no such file": {"path": filepath.Join(dir, "nope.pdf")},
		"too large":    {"path": big},
	} {
		result, err := handler(context.Background(), makeCallToolRequest("upload_pdf", args))
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
		if !result.IsError {
			t.Errorf("%s: expected tool error, got %s", name, toolText(t, result))
		}
	}
}

func TestMCPTool_UploadPDF_RejectsNonPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.pdf")
	if err := os.WriteFile(path, []byte("just some notes, not a PDF"), 0o600); err != nil {
		t.Fatal(err)
	}

	p := &fakePipeline{ingestFn: func(_ context.Context, up pipeline.Upload) (storage.Document, error) {
		if !ingest.IsPDF(up.ContentType, up.Data) {
			return storage.Document{}, fmt.Errorf("%w: only PDF files are allowed", pipeline.ErrValidation)
		}
		return storage.Document{ID: "doc-8", Name: up.Name}, nil
	}}
	handler := mcpUploadPDF(MCPDeps{Pipeline: p, MaxUploadBytes: 1 << 20})

	result, err := handler(context.Background(), makeCallToolRequest("upload_pdf", map[string]any{"path": path}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatalf("text file renamed to .pdf was accepted: %s", toolText(t, result))
	}
	if !strings.Contains(toolText(t, result), "only PDF") {
		t.Errorf("error text = %q", toolText(t, result))
	}
}

func TestMCPTool_AskDocument(t *testing.T) {
	var got pipeline.ChatRequest
	p := &fakePipeline{}
	p.converseFn = func(ctx context.Context, req pipeline.ChatRequest, emit func(string) error) (pipeline.Reply, error) {
		got = req
		p.converseFn = nil
		return p.Converse(ctx, req, emit)
	}
	handler := mcpAskDocument(MCPDeps{Pipeline: p})

	result, err := handler(context.Background(), makeCallToolRequest("ask_document", map[string]any{
		"document_id": "doc-1",
		"message":     "What is the capital?",
		"user_type":   "teacher",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}
	if got.DocumentID != "doc-1" || got.UserType != "teacher" {
		t.Errorf("request = %+v", got)
	}

	var msg chatMessage
	if err := json.Unmarshal([]byte(toolText(t, result)), &msg); err != nil {
		t.Fatalf("parsing result: %v", err)
	}
	if !strings.Contains(msg.Text, "Paris") || len(msg.Sources) != 1 {
		t.Errorf("message = %+v", msg)
	}
}

func TestMCPTool_AskDocument_NoContent(t *testing.T) {
	p := &fakePipeline{converseFn: func(context.Context, pipeline.ChatRequest, func(string) error) (pipeline.Reply, error) {
		return pipeline.Reply{}, fmt.Errorf("document x: %w", pipeline.ErrNoRelevantContent)
	}}
	handler := mcpAskDocument(MCPDeps{Pipeline: p})

	result, err := handler(context.Background(), makeCallToolRequest("ask_document", map[string]any{
		"document_id": "x",
		"message":     "anything?",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError || !strings.Contains(toolText(t, result), "no relevant content") {
		t.Errorf("result = %+v", result)
	}
}

func TestMCPTool_AskDocument_MissingArgs(t *testing.T) {
	handler := mcpAskDocument(MCPDeps{Pipeline: &fakePipeline{}})
	result, _ := handler(context.Background(), makeCallToolRequest("ask_document", map[string]any{"document_id": "x"}))
	if !result.IsError {
		t.Error("expected error for missing message")
	}
}

func TestMCPTool_ListDocuments(t *testing.T) {
	p := &fakePipeline{docs: []storage.Document{{ID: "a"}, {ID: "b"}}}
	handler := mcpListDocuments(MCPDeps{Pipeline: p})

	result, err := handler(context.Background(), makeCallToolRequest("list_documents", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var docs []storage.Document
	if err := json.Unmarshal([]byte(toolText(t, result)), &docs); err != nil || len(docs) != 2 {
		t.Fatalf("docs = %v, %v", docs, err)
	}
}

func TestMCPTool_ClearHistory(t *testing.T) {
	p := &fakePipeline{}
	handler := mcpClearHistory(MCPDeps{Pipeline: p})

	result, err := handler(context.Background(), makeCallToolRequest("clear_history", map[string]any{"document_id": "doc-1"}))
	if err != nil || result.IsError {
		t.Fatalf("result = %+v, err = %v", result, err)
	}
	if len(p.cleared) != 1 || p.cleared[0] != "doc-1" {
		t.Errorf("cleared = %v", p.cleared)
	}
}

func TestMCPServer_ConcurrentCalls(t *testing.T) {
	p := &fakePipeline{}
	srv := NewMCPServer(MCPDeps{Pipeline: p, Version: "test"})
	if srv == nil {
		t.Fatal("NewMCPServer returned nil")
	}
	handler := mcpAskDocument(MCPDeps{Pipeline: p})

	var wg sync.WaitGroup
	errs := make(chan string, 10)
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := handler(context.Background(), makeCallToolRequest("ask_document", map[string]any{
				"document_id": fmt.Sprintf("doc-%d", i),
				"message":     "capital?",
			}))
			if err != nil || result.IsError {
				errs <- fmt.Sprintf("call %d failed", i)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for e := range errs {
		t.Error(e)
	}
}
