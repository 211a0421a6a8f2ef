package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/kalambet/papermind/internal/pipeline"
)

const maxRequestBodySize = 1 << 20 // 1MB

type chatRequest struct {
	Message    string `json:"message"`
	DocumentID string `json:"documentId"`
	UserType   string `json:"userType"`
}

// chatMessage is the answer as the browser client renders it.
type chatMessage struct {
	ID            string            `json:"id"`
	Text          string            `json:"text"`
	Sender        string            `json:"sender"`
	Timestamp     time.Time         `json:"timestamp"`
	DocumentID    string            `json:"documentId"`
	UserType      string            `json:"userType"`
	ContextLength int               `json:"contextLength"`
	Sources       []pipeline.Source `json:"sources"`
}

// streamEvent is one SSE data frame. Type is token, complete or error.
type streamEvent struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

func messageFrom(r pipeline.Reply) chatMessage {
	sources := r.Sources
	if sources == nil {
		sources = []pipeline.Source{}
	}
	return chatMessage{
		ID:            r.ID,
		Text:          r.Text,
		Sender:        "ai",
		Timestamp:     r.CreatedAt,
		DocumentID:    r.DocumentID,
		UserType:      string(r.Role),
		ContextLength: r.ContextLength,
		Sources:       sources,
	}
}

// sseWriter writes events once the first one commits the response headers.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

func (s *sseWriter) send(ev streamEvent) error {
	if !s.started {
		h := s.w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		s.w.WriteHeader(http.StatusOK)
		s.started = true
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", b); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (h *handlers) handleChat(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpError(w, http.StatusInternalServerError, "api_error", "streaming not supported")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return
	}

	sse := &sseWriter{w: w, flusher: flusher}
	reply, err := h.p.Converse(r.Context(), pipeline.ChatRequest{
		DocumentID: req.DocumentID,
		Message:    req.Message,
		UserType:   req.UserType,
	}, func(fragment string) error {
		return sse.send(streamEvent{Type: "token", Payload: fragment})
	})
	if err != nil {
		h.logger.Warn("chat failed", "document_id", req.DocumentID, "streamed", sse.started, "error", err)
		if !sse.started {
			h.writeError(w, err)
			return
		}
		_, _, msg := classify(err)
		sse.send(streamEvent{Type: "error", Payload: map[string]string{"message": msg}})
		return
	}

	if err := sse.send(streamEvent{Type: "complete", Payload: messageFrom(reply)}); err != nil {
		h.logger.Debug("client gone before completion event", "document_id", req.DocumentID, "error", err)
	}
}
