package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/papermind/internal/history"
	"github.com/kalambet/papermind/internal/pipeline"
)

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func (h *handlers) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "running",
		"ready":   h.p.Ready() == nil,
		"version": h.version,
	})
}

func (h *handlers) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := h.p.Ready(); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *handlers) handleUpload(w http.ResponseWriter, r *http.Request) {
	// Room for the multipart envelope on top of the file itself.
	limit := h.maxUpload + 1<<20
	if r.ContentLength > limit {
		h.tooLarge(w)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	defer r.Body.Close()

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		if tooLarge(err) {
			h.tooLarge(w)
			return
		}
		httpError(w, http.StatusBadRequest, "invalid_request_error", "no file uploaded")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "no file uploaded")
		return
	}
	defer file.Close()

	if header.Size > h.maxUpload {
		h.tooLarge(w)
		return
	}
	data, err := io.ReadAll(io.LimitReader(file, h.maxUpload+1))
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "reading upload: %v", err)
		return
	}
	if int64(len(data)) > h.maxUpload {
		h.tooLarge(w)
		return
	}

	doc, err := h.p.Ingest(r.Context(), pipeline.Upload{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		h.logger.Warn("upload failed", "name", header.Filename, "error", err)
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message":  "File processed successfully",
		"document": doc,
	})
}

func (h *handlers) tooLarge(w http.ResponseWriter) {
	httpError(w, http.StatusRequestEntityTooLarge, "file_too_large",
		"file too large, maximum size is %d MB", h.maxUpload>>20)
}

func tooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}

func (h *handlers) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.p.Documents(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

func (h *handlers) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.p.Document(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *handlers) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	entries := h.p.History(chi.URLParam(r, "documentId"))
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *handlers) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	h.p.ClearHistory(chi.URLParam(r, "documentId"))
	w.WriteHeader(http.StatusNoContent)
}
