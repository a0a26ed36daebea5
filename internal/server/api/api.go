// Package api provides HTTP API handlers for the pairclick solver.
package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/ayusman/pairclick/internal/app"
)

// timeFormat is used for every timestamp in API responses.
const timeFormat = "2006-01-02T15:04:05Z07:00"

// Solver is the part of the application the API drives.
type Solver interface {
	SolveBytes(ctx context.Context, data []byte) (*app.Outcome, error)
	SolveNow(ctx context.Context) (*app.Outcome, error)
	Last() *app.Outcome
	DryRun() bool
	SetDryRun(dryRun bool)
	Reload() error
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// reload rebuilds the solver's engine after the library or profiles change.
func reload(s Solver) {
	if s == nil {
		return
	}
	if err := s.Reload(); err != nil {
		log.Printf("Engine reload failed: %v", err)
	}
}
