package queue

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// RequestType identifies the type of request in the queue
type RequestType string

const (
	// RequestTypeStart opens a session: the narrator sets the first scene
	RequestTypeStart RequestType = "start"

	// RequestTypeTurn carries a player utterance
	RequestTypeTurn RequestType = "turn"
)

// Request is one unit of work for a worker
type Request struct {
	RequestID   string      `json:"request_id"`
	Type        RequestType `json:"type"`
	GameStateID uuid.UUID   `json:"game_state_id"`

	// Turn-specific fields
	Message string `json:"message,omitempty"`

	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NewTurnRequest builds a queued player turn with a fresh request id
func NewTurnRequest(gameStateID uuid.UUID, message string) *Request {
	return &Request{
		RequestID:   uuid.New().String(),
		Type:        RequestTypeTurn,
		GameStateID: gameStateID,
		Message:     message,
		EnqueuedAt:  time.Now(),
	}
}

// NewStartRequest builds a queued opening turn
func NewStartRequest(gameStateID uuid.UUID) *Request {
	return &Request{
		RequestID:   uuid.New().String(),
		Type:        RequestTypeStart,
		GameStateID: gameStateID,
		EnqueuedAt:  time.Now(),
	}
}

// ToJSON converts the request to JSON bytes for Redis
func (r *Request) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

// FromJSON parses a request from JSON bytes
func FromJSON(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// Ticket announces one waiting request for a session. Tickets for the same
// session are interchangeable: the requests themselves wait in order on the
// session's own list, so a ticket can be re-queued without reordering turns.
type Ticket struct {
	GameStateID uuid.UUID `json:"game_state_id"`

	// Attempts counts how many times the ticket was re-queued behind a game lock
	Attempts int `json:"attempts,omitempty"`
}

// ToJSON converts the ticket to JSON bytes for Redis
func (t *Ticket) ToJSON() ([]byte, error) {
	return json.Marshal(t)
}

// TicketFromJSON parses a ticket from JSON bytes
func TicketFromJSON(data []byte) (*Ticket, error) {
	var t Ticket
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	return &t, nil
}
