// Package handlers implements the lingua-quest HTTP api.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

var errInvalidPath = errors.New("invalid path")

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", "error", err, "status", status)
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, msg string) {
	writeJSON(w, logger, status, ErrorResponse{Error: msg})
}

// splitSessionPath parses paths of the form prefix/{id}[/rest...]. A bare
// prefix yields uuid.Nil.
func splitSessionPath(path, prefix string) (uuid.UUID, []string, error) {
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if rest == "" {
		return uuid.Nil, nil, nil
	}
	parts := strings.Split(rest, "/")
	id, err := uuid.Parse(parts[0])
	if err != nil {
		return uuid.Nil, nil, errInvalidPath
	}
	return id, parts[1:], nil
}
