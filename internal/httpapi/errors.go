package httpapi

import (
	"encoding/json"
	"net/http"

	"assetd/internal/bundle"
	"assetd/internal/fetch"
	"assetd/internal/loader"
	"assetd/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

// statusForError maps well-known engine errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case bundle.IsSessionNotFound(err):
		return http.StatusNotFound
	case fetch.IsCircuitOpen(err), fetch.IsOffline(err), bundle.IsSuspended(err):
		return http.StatusServiceUnavailable
	case loader.IsDecode(err):
		return http.StatusUnprocessableEntity
	case fetch.IsNetwork(err), bundle.IsBundleLoad(err):
		return http.StatusBadGateway
	}
	if he, ok := err.(HTTPError); ok {
		return he.StatusCode()
	}
	return http.StatusInternalServerError
}
