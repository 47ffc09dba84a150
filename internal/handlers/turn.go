package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/jwebster45206/lingua-quest/pkg/chat"
	"github.com/jwebster45206/lingua-quest/pkg/queue"
	"github.com/jwebster45206/lingua-quest/pkg/storage"
)

// TurnEnqueuer hands a request to the workers
type TurnEnqueuer interface {
	EnqueueRequest(ctx context.Context, req *queue.Request) error
}

// QueuedPublisher announces a newly queued turn on the session's event stream
type QueuedPublisher interface {
	PublishTurnQueued(ctx context.Context, gameID uuid.UUID, requestID string, requestType string) error
}

type TurnHandler struct {
	storage   storage.Storage
	queue     TurnEnqueuer
	publisher QueuedPublisher
	logger    *slog.Logger
}

// NewTurnHandler creates a turn handler. publisher may be nil.
func NewTurnHandler(storage storage.Storage, queue TurnEnqueuer, publisher QueuedPublisher, logger *slog.Logger) *TurnHandler {
	return &TurnHandler{
		storage:   storage,
		queue:     queue,
		publisher: publisher,
		logger:    logger,
	}
}

// ServeHTTP queues a turn for a session
// POST /v1/sessions/{id}/turns
//
// The first turn of a session may have an empty message; it becomes the
// opening request in which the narrator sets the scene.
func (h *TurnHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only POST is supported.")
		return
	}

	id, rest, err := splitSessionPath(r.URL.Path, sessionsPrefix)
	if err != nil || id == uuid.Nil || len(rest) != 1 || rest[0] != "turns" {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid path. Expected /v1/sessions/{id}/turns")
		return
	}

	req := chat.TurnRequest{GameStateID: id}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.logger.Warn("Invalid turn body", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body. Expected JSON with 'message' field.")
		return
	}
	// The path is authoritative over any id in the body
	req.GameStateID = id
	req.Message = strings.TrimSpace(req.Message)
	if err := req.Validate(); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

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
	if gs.IsGameOver() {
		writeError(w, h.logger, http.StatusConflict, "Game over. Start a new session to keep practising.")
		return
	}

	var queued *queue.Request
	switch {
	case req.Message != "":
		queued = queue.NewTurnRequest(id, req.Message)
	case gs.IsOpening():
		queued = queue.NewStartRequest(id)
	default:
		writeError(w, h.logger, http.StatusBadRequest, "Message cannot be empty.")
		return
	}

	if err := h.queue.EnqueueRequest(r.Context(), queued); err != nil {
		h.logger.Error("Failed to enqueue turn", "error", err, "game_state_id", id.String())
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to queue turn")
		return
	}

	if h.publisher != nil {
		if err := h.publisher.PublishTurnQueued(r.Context(), id, queued.RequestID, string(queued.Type)); err != nil {
			h.logger.Warn("Failed to publish queued event", "error", err, "request_id", queued.RequestID)
		}
	}

	h.logger.Info("Turn queued",
		"game_state_id", id.String(),
		"request_id", queued.RequestID,
		"type", queued.Type)
	writeJSON(w, h.logger, http.StatusAccepted, chat.TurnAccepted{
		GameStateID: id,
		RequestID:   queued.RequestID,
	})
}
