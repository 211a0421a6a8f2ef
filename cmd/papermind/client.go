package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kalambet/papermind/internal/config"
	"github.com/kalambet/papermind/internal/pipeline"
)

type apiClient struct {
	baseURL    string
	httpClient *http.Client
}

var newAPIClient = func() (*apiClient, error) {
	base := serverURL
	if base == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		base = fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	}
	return &apiClient{
		baseURL: strings.TrimRight(base, "/"),
		// Uploads embed every chunk before answering.
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}, nil
}

func (c *apiClient) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshalling request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req)
}

func (c *apiClient) send(req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("server not reachable, is papermind serve running? (%w)", err)
	}
	return resp, nil
}

func (c *apiClient) get(ctx context.Context, path string) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *apiClient) post(ctx context.Context, path string, body any) (*http.Response, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

func (c *apiClient) delete(ctx context.Context, path string) (*http.Response, error) {
	return c.do(ctx, http.MethodDelete, path, nil)
}

// upload sends a file as the multipart field "file".
func (c *apiClient) upload(ctx context.Context, path string) (*http.Response, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(path)))
	hdr.Set("Content-Type", "application/pdf")
	part, err := mw.CreatePart(hdr)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/upload", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.send(req)
}

// chatReply is the final message of a chat stream.
type chatReply struct {
	ID            string            `json:"id"`
	Text          string            `json:"text"`
	DocumentID    string            `json:"documentId"`
	UserType      string            `json:"userType"`
	ContextLength int               `json:"contextLength"`
	Sources       []pipeline.Source `json:"sources"`
}

type streamEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// chat posts a question and calls onToken for every streamed fragment.
func (c *apiClient) chat(ctx context.Context, docID, message, role string, onToken func(string)) (chatReply, error) {
	resp, err := c.post(ctx, "/api/chat", map[string]string{
		"documentId": docID,
		"message":    message,
		"userType":   role,
	})
	if err != nil {
		return chatReply{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return chatReply{}, responseError(resp)
	}

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 64*1024), 4<<20)
	for sc.Scan() {
		line, ok := strings.CutPrefix(sc.Text(), "data: ")
		if !ok {
			continue
		}
		var ev streamEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			return chatReply{}, fmt.Errorf("malformed event: %w", err)
		}
		switch ev.Type {
		case "token":
			var frag string
			if err := json.Unmarshal(ev.Payload, &frag); err == nil && onToken != nil {
				onToken(frag)
			}
		case "complete":
			var reply chatReply
			if err := json.Unmarshal(ev.Payload, &reply); err != nil {
				return chatReply{}, fmt.Errorf("malformed reply: %w", err)
			}
			return reply, nil
		case "error":
			var p struct {
				Message string `json:"message"`
			}
			json.Unmarshal(ev.Payload, &p)
			return chatReply{}, fmt.Errorf("answer failed: %s", p.Message)
		}
	}
	if err := sc.Err(); err != nil {
		return chatReply{}, fmt.Errorf("reading stream: %w", err)
	}
	return chatReply{}, fmt.Errorf("stream ended without a reply")
}

func decodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return responseError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// responseError turns an error response into an error, preferring the
// server's message over the raw body.
func responseError(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("server returned %d (failed to read body: %w)", resp.StatusCode, err)
	}
	var e struct {
		Error struct {
			Message string `json:"message"`
			Details string `json:"details"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error.Message != "" {
		if e.Error.Details != "" {
			return fmt.Errorf("server returned %d: %s (%s)", resp.StatusCode, e.Error.Message, e.Error.Details)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, e.Error.Message)
	}
	return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
