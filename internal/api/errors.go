package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/kalambet/papermind/internal/pipeline"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Details string `json:"details,omitempty"`
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeErrorBody(w, code, errorDetail{Message: fmt.Sprintf(format, args...), Type: errType})
}

func writeErrorBody(w http.ResponseWriter, code int, d errorDetail) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(errorBody{Error: d})
}

// classify maps a pipeline error onto a status code, an error type and a
// client-safe message.
func classify(err error) (code int, errType, message string) {
	switch {
	case errors.Is(err, pipeline.ErrValidation):
		return http.StatusBadRequest, "invalid_request_error", err.Error()
	case errors.Is(err, pipeline.ErrUnreadableContent):
		return http.StatusBadRequest, "unreadable_content", "could not extract text from the PDF; it may be scanned or image-only"
	case errors.Is(err, pipeline.ErrNoRelevantContent):
		return http.StatusNotFound, "no_relevant_content", "no relevant content found in this document"
	case errors.Is(err, pipeline.ErrNotFound):
		return http.StatusNotFound, "not_found", "document not found"
	case errors.Is(err, pipeline.ErrServiceUnavailable):
		return http.StatusServiceUnavailable, "service_unavailable", "service is not ready, try again later"
	case errors.Is(err, pipeline.ErrTimeout):
		return http.StatusGatewayTimeout, "timeout", "the AI provider did not respond in time"
	default:
		return http.StatusInternalServerError, "api_error", "internal server error"
	}
}

// writeError reports err to the client. Outside production the underlying
// error text is included as details.
func (h *handlers) writeError(w http.ResponseWriter, err error) {
	code, errType, msg := classify(err)
	d := errorDetail{Message: msg, Type: errType}
	if !h.production {
		d.Details = err.Error()
	}
	writeErrorBody(w, code, d)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
