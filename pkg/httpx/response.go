package httpx

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the envelope every rejection path returns.
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// WriteJSON writes a JSON response with the given status code. It sets
// Content-Type and no-store caching headers; everything this service
// returns is per-request and must not be cached.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes the structured {status:"error", message} envelope.
func WriteError(w http.ResponseWriter, code int, message string) {
	WriteJSON(w, code, ErrorResponse{Status: "error", Message: message})
}

// NoCache sets Cache-Control and Pragma headers to prevent caching.
// Required for anything carrying credentials.
func NoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}
