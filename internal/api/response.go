package api

import (
	"encoding/json"
	"net/http"

	"github.com/planweave/tally/internal/variable"
)

// writeJSON encodes v as JSON with the given status. Encode errors
// are dropped: the status line is already on the wire.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// apiError is the error envelope shared by every endpoint.
type apiError struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, apiError{Error: msg})
}

// updatedResponse carries the recomputed summaries a write endpoint
// returns, keyed by item ID.
type updatedResponse struct {
	Updated map[string]variable.Summary `json:"updated"`
}

func writeUpdated(w http.ResponseWriter, updated map[string]variable.Summary) {
	writeJSON(w, http.StatusOK, updatedResponse{Updated: updated})
}
