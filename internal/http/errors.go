package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/maddasher/titlebot/internal/core"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeEngineError maps the engine's error taxonomy onto HTTP statuses.
// Anything untyped is a validation failure from the engine's input
// checks and maps to 400.
func writeEngineError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, core.ErrTitleNotFound):
		status = http.StatusNotFound
	case errors.As(err, new(*core.InvolvedError)),
		errors.As(err, new(*core.NotDueError)):
		status = http.StatusConflict
	case errors.As(err, new(*core.NotHolderError)):
		status = http.StatusForbidden
	case errors.As(err, new(*core.NoSuccessorError)),
		errors.As(err, new(*core.PersistenceError)):
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeForbidden(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusForbidden, map[string]string{"error": msg})
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}
