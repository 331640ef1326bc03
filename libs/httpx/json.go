package httpx

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the uniform error payload returned by the API.
type ErrorBody struct {
	Error     string         `json:"error"`
	Code      string         `json:"code,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func WriteError(w http.ResponseWriter, r *http.Request, status int, code, msg string, details map[string]any) {
	WriteJSON(w, status, ErrorBody{
		Error:     msg,
		Code:      code,
		Details:   details,
		RequestID: RequestIDFromContext(r.Context()),
	})
}
