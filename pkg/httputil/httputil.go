package httputil

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the structured error payload every failure is rendered as.
type ErrorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// ReadJSON decodes the request body into out. Unknown fields are ignored.
func ReadJSON(r *http.Request, out any) error {
	return json.NewDecoder(r.Body).Decode(out)
}

// WriteJSON sets the content type before the status so the header is sent.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, body ErrorBody) {
	WriteJSON(w, status, body)
}
