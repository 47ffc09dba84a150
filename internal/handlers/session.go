package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/jwebster45206/lingua-quest/pkg/contract"
	"github.com/jwebster45206/lingua-quest/pkg/state"
	"github.com/jwebster45206/lingua-quest/pkg/storage"
)

const sessionsPrefix = "/v1/sessions"

// CreateSessionRequest defines the request body for starting a session.
// Every field is optional; empty fields fall back to the server's seed.
type CreateSessionRequest struct {
	Contract string `json:"contract,omitempty"`
	state.Seed
}

// SessionResponse is a game state plus the fields a client derives from it
type SessionResponse struct {
	*state.GameState
	GameOver bool             `json:"game_over"`
	Last     *contract.Display `json:"last,omitempty"`
}

type SessionHandler struct {
	storage         storage.Storage
	contractVersion string
	seed            state.Seed
	logger          *slog.Logger
}

// NewSessionHandler creates a session handler. contractVersion and seed are
// the defaults for sessions that do not choose their own.
func NewSessionHandler(storage storage.Storage, contractVersion string, seed state.Seed, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		storage:         storage,
		contractVersion: contractVersion,
		seed:            seed,
		logger:          logger,
	}
}

// ServeHTTP handles HTTP requests for sessions
// Routes:
// POST /v1/sessions          - Create a session
// GET /v1/sessions/{id}      - Read a session
// DELETE /v1/sessions/{id}   - Delete a session
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, rest, err := splitSessionPath(r.URL.Path, sessionsPrefix)
	if err != nil || len(rest) > 0 {
		h.logger.Warn("Invalid session path", "path", r.URL.Path)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid session ID format")
		return
	}

	switch r.Method {
	case http.MethodPost:
		if id != uuid.Nil {
			writeError(w, h.logger, http.StatusMethodNotAllowed, "Sessions are created at /v1/sessions")
			return
		}
		h.handleCreate(w, r)
	case http.MethodGet:
		if id == uuid.Nil {
			writeError(w, h.logger, http.StatusBadRequest, "Session ID is required for GET requests")
			return
		}
		h.handleRead(w, r, id)
	case http.MethodDelete:
		if id == uuid.Nil {
			writeError(w, h.logger, http.StatusBadRequest, "Session ID is required for DELETE requests")
			return
		}
		h.handleDelete(w, r, id)
	default:
		h.logger.Warn("Method not allowed for session endpoint", "method", r.Method)
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: POST, GET, DELETE")
	}
}

func (h *SessionHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.logger.Warn("Invalid create session body", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return
	}

	version := req.Contract
	if version == "" {
		version = h.contractVersion
	}
	c, err := contract.Lookup(version)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	gs := state.NewGameState(mergeSeed(h.seed, req.Seed), c.Version())
	if err := h.storage.SaveGameState(r.Context(), gs.ID, gs); err != nil {
		h.logger.Error("Failed to save new session", "error", err, "game_state_id", gs.ID.String())
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to create session")
		return
	}

	h.logger.Info("Session created",
		"game_state_id", gs.ID.String(),
		"contract", gs.Contract,
		"target_language", gs.TargetLanguage)
	writeJSON(w, h.logger, http.StatusCreated, newSessionResponse(gs))
}

func (h *SessionHandler) handleRead(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	gs, err := h.storage.LoadGameState(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to load session", "error", err, "game_state_id", id.String())
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to load session")
		return
	}
	if gs == nil {
		writeError(w, h.logger, http.StatusNotFound, "Session not found")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, newSessionResponse(gs))
}

func (h *SessionHandler) handleDelete(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	gs, err := h.storage.LoadGameState(r.Context(), id)
	if err == nil && gs == nil {
		writeError(w, h.logger, http.StatusNotFound, "Session not found")
		return
	}
	if err == nil {
		err = h.storage.DeleteGameState(r.Context(), id)
	}
	if err != nil {
		h.logger.Error("Failed to delete session", "error", err, "game_state_id", id.String())
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to delete session")
		return
	}
	h.logger.Info("Session deleted", "game_state_id", id.String())
	w.WriteHeader(http.StatusNoContent)
}

func newSessionResponse(gs *state.GameState) SessionResponse {
	resp := SessionResponse{GameState: gs, GameOver: gs.IsGameOver()}
	if raw, ok := gs.LastNarratorMessage(); ok {
		if c, err := contract.Lookup(gs.Contract); err == nil {
			display := contract.Render(contract.Parse(c, raw))
			resp.Last = &display
		}
	}
	return resp
}

// mergeSeed lets request values override the server defaults field by field
func mergeSeed(base, override state.Seed) state.Seed {
	merged := base
	if override.TargetLanguage != "" {
		merged.TargetLanguage = override.TargetLanguage
	}
	if override.LanguageLevel != "" {
		merged.LanguageLevel = override.LanguageLevel
	}
	if override.Location != "" {
		merged.Location = override.Location
	}
	if override.Mission != "" {
		merged.Mission = override.Mission
	}
	if override.Health != nil {
		merged.Health = override.Health
	}
	if override.Standing != nil {
		merged.Standing = override.Standing
	}
	if override.Inventory != nil {
		merged.Inventory = override.Inventory
	}
	return merged
}
