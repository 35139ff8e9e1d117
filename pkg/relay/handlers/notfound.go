package handlers

import "net/http"

// NotFoundHandler is the mux fallback so unknown routes get the same JSON
// error body as every other refusal.
type NotFoundHandler struct{}

func (h NotFoundHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	WriteError(w, http.StatusNotFound, "not_found", "not found")
}
