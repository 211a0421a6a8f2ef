package api

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/papermind/internal/pipeline"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Pipeline       Pipeline
	Version        string
	MaxUploadBytes int64
}

// NewMCPServer creates an MCP server exposing document upload and chat tools.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"papermind",
		deps.Version,
		server.WithToolCapabilities(true),
		server.WithInstructions("papermind answers questions about uploaded PDF documents using only their content."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("upload_pdf",
			mcp.WithDescription("Ingest a local PDF file so questions can be asked about it. Returns the document record including its id."),
			mcp.WithString("path", mcp.Description("Path to the PDF file"), mcp.Required()),
		),
		mcpUploadPDF(deps),
	)

	s.AddTool(
		mcp.NewTool("ask_document",
			mcp.WithDescription("Ask a question about an ingested document. The answer is grounded in the document text and lists its sources."),
			mcp.WithString("document_id", mcp.Description("Document id returned by upload_pdf"), mcp.Required()),
			mcp.WithString("message", mcp.Description("The question"), mcp.Required()),
			mcp.WithString("user_type", mcp.Description("Answer style: student, teacher, researcher or general")),
		),
		mcpAskDocument(deps),
	)

	s.AddTool(
		mcp.NewTool("list_documents",
			mcp.WithDescription("List ingested documents, newest first."),
		),
		mcpListDocuments(deps),
	)

	s.AddTool(
		mcp.NewTool("clear_history",
			mcp.WithDescription("Forget the conversation history kept for a document."),
			mcp.WithString("document_id", mcp.Description("Document id"), mcp.Required()),
		),
		mcpClearHistory(deps),
	)

	return s
}

func mcpUploadPDF(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path, err := req.RequireString("path")
		if err != nil {
			return mcpError("path is required"), nil
		}

		info, err := os.Stat(path)
		if err != nil {
			return mcpError(fmt.Sprintf("cannot read %s: %v", path, err)), nil
		}
		if deps.MaxUploadBytes > 0 && info.Size() > deps.MaxUploadBytes {
			return mcpError(fmt.Sprintf("file too large, maximum size is %d MB", deps.MaxUploadBytes>>20)), nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return mcpError(fmt.Sprintf("cannot read %s: %v", path, err)), nil
		}

		doc, err := deps.Pipeline.Ingest(ctx, pipeline.Upload{
			Name: filepath.Base(path),
			// No declared type: the pipeline sniffs the %PDF- signature.
			Data: data,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("upload failed: %v", err)), nil
		}
		return mcpJSON(doc)
	}
}

func mcpAskDocument(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		docID, err := req.RequireString("document_id")
		if err != nil {
			return mcpError("document_id is required"), nil
		}
		message, err := req.RequireString("message")
		if err != nil {
			return mcpError("message is required"), nil
		}

		reply, err := deps.Pipeline.Converse(ctx, pipeline.ChatRequest{
			DocumentID: docID,
			Message:    message,
			UserType:   req.GetString("user_type", ""),
		}, nil)
		if err != nil {
			_, _, msg := classify(err)
			return mcpError(fmt.Sprintf("%s: %v", msg, err)), nil
		}
		return mcpJSON(messageFrom(reply))
	}
}

func mcpListDocuments(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		docs, err := deps.Pipeline.Documents(ctx)
		if err != nil {
			return mcpError(fmt.Sprintf("listing documents failed: %v", err)), nil
		}
		return mcpJSON(docs)
	}
}

func mcpClearHistory(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		docID, err := req.RequireString("document_id")
		if err != nil {
			return mcpError("document_id is required"), nil
		}
		deps.Pipeline.ClearHistory(docID)
		return mcpText(fmt.Sprintf("Cleared history for %s", docID)), nil
	}
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
